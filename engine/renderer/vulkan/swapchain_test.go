package vulkan

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func surfaceSupport() *VulkanSwapchainSupportInfo {
	return &VulkanSwapchainSupportInfo{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  vk.Extent2D{Width: 1280, Height: 720},
			MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
	}
}

func TestPlanSwapchainPrefersSrgbFormat(t *testing.T) {
	plan, ok := planSwapchain(surfaceSupport(), 1280, 720, false)
	require.True(t, ok)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, plan.Format.Format)
	assert.Equal(t, vk.ColorSpaceSrgbNonlinear, plan.Format.ColorSpace)
}

func TestPlanSwapchainFallsBackToFirstFormat(t *testing.T) {
	support := surfaceSupport()
	support.Formats = []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	plan, ok := planSwapchain(support, 1280, 720, false)
	require.True(t, ok)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, plan.Format.Format)
}

func TestPlanSwapchainPresentModePolicy(t *testing.T) {
	plan, ok := planSwapchain(surfaceSupport(), 1280, 720, true)
	require.True(t, ok)
	assert.Equal(t, vk.PresentModeMailbox, plan.PresentMode)

	// Mailbox not requested.
	plan, ok = planSwapchain(surfaceSupport(), 1280, 720, false)
	require.True(t, ok)
	assert.Equal(t, vk.PresentModeFifo, plan.PresentMode)

	// Mailbox requested but unavailable.
	support := surfaceSupport()
	support.PresentModes = []vk.PresentMode{vk.PresentModeFifo}
	plan, ok = planSwapchain(support, 1280, 720, true)
	require.True(t, ok)
	assert.Equal(t, vk.PresentModeFifo, plan.PresentMode)
}

func TestPlanSwapchainUsesCurrentExtent(t *testing.T) {
	plan, ok := planSwapchain(surfaceSupport(), 9999, 9999, false)
	require.True(t, ok)
	assert.Equal(t, vk.Extent2D{Width: 1280, Height: 720}, plan.Extent)
}

func TestPlanSwapchainClampsRequestedExtent(t *testing.T) {
	support := surfaceSupport()
	// The sentinel means the surface takes the size from the swapchain.
	support.Capabilities.CurrentExtent = vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}

	plan, ok := planSwapchain(support, 9999, 9999, false)
	require.True(t, ok)
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 4096}, plan.Extent)
}

func TestPlanSwapchainZeroExtentFails(t *testing.T) {
	support := surfaceSupport()
	support.Capabilities.CurrentExtent = vk.Extent2D{Width: 0, Height: 0}

	_, ok := planSwapchain(support, 0, 0, false)
	assert.False(t, ok)
}

func TestPlanSwapchainImageCount(t *testing.T) {
	plan, ok := planSwapchain(surfaceSupport(), 1280, 720, false)
	require.True(t, ok)
	assert.Equal(t, uint32(3), plan.ImageCount)

	// Capped by the surface maximum.
	support := surfaceSupport()
	support.Capabilities.MinImageCount = 4
	support.Capabilities.MaxImageCount = 4
	plan, ok = planSwapchain(support, 1280, 720, false)
	require.True(t, ok)
	assert.Equal(t, uint32(4), plan.ImageCount)

	// MaxImageCount zero means unbounded.
	support = surfaceSupport()
	support.Capabilities.MaxImageCount = 0
	plan, ok = planSwapchain(support, 1280, 720, false)
	require.True(t, ok)
	assert.Equal(t, uint32(3), plan.ImageCount)
}

// A minimized window at startup must not leave a half-built swapchain: the
// build is skipped entirely, so session bring-up can detect the missing
// handle and refuse to bake an undefined image format into the renderpass.
func TestSwapchainBuildZeroExtentLeavesNoHandle(t *testing.T) {
	support := surfaceSupport()
	support.Capabilities.CurrentExtent = vk.Extent2D{Width: 0, Height: 0}
	context := &VulkanContext{Device: &VulkanDevice{SwapchainSupport: *support}}

	swapchain := &VulkanSwapchain{State: SwapchainStateNeedsRebuild}
	require.NoError(t, swapchain.build(context, 0, 0))

	assert.Equal(t, vk.NullSwapchain, swapchain.Handle)
	assert.Equal(t, SwapchainStateNeedsRebuild, swapchain.State)
	assert.Equal(t, vk.SurfaceFormat{}, swapchain.ImageFormat)
}
