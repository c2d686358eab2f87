package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

const gib = 1024 * 1024 * 1024

func TestScoreCandidateDeviceClasses(t *testing.T) {
	discrete := ScoreCandidate(vk.PhysicalDeviceTypeDiscreteGpu, 4*gib, false, 0)
	integrated := ScoreCandidate(vk.PhysicalDeviceTypeIntegratedGpu, 1*gib, false, 0)

	assert.Equal(t, uint32(10400), discrete)
	assert.Equal(t, uint32(1100), integrated)
	assert.Greater(t, discrete, integrated)
}

func TestScoreCandidateDiscreteDominatesVram(t *testing.T) {
	// A discrete part with no reported VRAM still beats an integrated part
	// with a huge shared heap.
	discrete := ScoreCandidate(vk.PhysicalDeviceTypeDiscreteGpu, 0, false, 0)
	integrated := ScoreCandidate(vk.PhysicalDeviceTypeIntegratedGpu, 64*gib, false, 0)
	assert.Greater(t, discrete, integrated)
}

func TestScoreCandidateRayTracingBonus(t *testing.T) {
	without := ScoreCandidate(vk.PhysicalDeviceTypeDiscreteGpu, 8*gib, false, 500)
	with := ScoreCandidate(vk.PhysicalDeviceTypeDiscreteGpu, 8*gib, true, 500)
	assert.Equal(t, without+500, with)

	// A zero bonus makes ray tracing irrelevant to ordering.
	assert.Equal(t,
		ScoreCandidate(vk.PhysicalDeviceTypeDiscreteGpu, 8*gib, false, 0),
		ScoreCandidate(vk.PhysicalDeviceTypeDiscreteGpu, 8*gib, true, 0))
}

func TestScoreCandidatePartialGiBRoundsDown(t *testing.T) {
	assert.Equal(t,
		ScoreCandidate(vk.PhysicalDeviceTypeCpu, gib, false, 0),
		ScoreCandidate(vk.PhysicalDeviceTypeCpu, gib+gib/2, false, 0))
}

func TestRankCandidatesOrdersByScore(t *testing.T) {
	candidates := []DeviceCandidate{
		{Name: "igpu", Score: ScoreCandidate(vk.PhysicalDeviceTypeIntegratedGpu, 1*gib, false, 0)},
		{Name: "dgpu", Score: ScoreCandidate(vk.PhysicalDeviceTypeDiscreteGpu, 4*gib, false, 0)},
		{Name: "cpu", Score: ScoreCandidate(vk.PhysicalDeviceTypeCpu, 0, false, 0)},
	}

	ranked := RankCandidates(candidates)

	assert.Equal(t, "dgpu", ranked[0].Name)
	assert.Equal(t, "igpu", ranked[1].Name)
	assert.Equal(t, "cpu", ranked[2].Name)
	// Input order untouched.
	assert.Equal(t, "igpu", candidates[0].Name)
}

func TestRankCandidatesTieKeepsEnumerationOrder(t *testing.T) {
	candidates := []DeviceCandidate{
		{Name: "first", Score: 10400},
		{Name: "second", Score: 10400},
	}
	ranked := RankCandidates(candidates)
	assert.Equal(t, "first", ranked[0].Name)
}
