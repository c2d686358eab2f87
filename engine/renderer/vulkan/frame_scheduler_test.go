package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/reactor/engine/core"
)

// fakeFrameOps scripts the side effects of the frame protocol and records
// the call order.
type fakeFrameOps struct {
	state        SwapchainState
	rebuildFails error
	// Swapchain state after a rebuild attempt.
	stateAfterRebuild SwapchainState

	waitErr     error
	acquireOK   bool
	submitErr   error
	fenceSet    map[int]bool
	calls       []string
	waitedSlots []int
}

func newFakeFrameOps() *fakeFrameOps {
	return &fakeFrameOps{
		state:             SwapchainStateValid,
		stateAfterRebuild: SwapchainStateValid,
		acquireOK:         true,
		fenceSet:          map[int]bool{0: true, 1: true, 2: true},
	}
}

func (f *fakeFrameOps) swapchainState() SwapchainState { return f.state }

func (f *fakeFrameOps) rebuildSwapchain() error {
	f.calls = append(f.calls, "rebuild")
	if f.rebuildFails != nil {
		return f.rebuildFails
	}
	f.state = f.stateAfterRebuild
	return nil
}

func (f *fakeFrameOps) waitSlotFence(slot int) error {
	f.calls = append(f.calls, "wait")
	f.waitedSlots = append(f.waitedSlots, slot)
	return f.waitErr
}

func (f *fakeFrameOps) resetSlotFence(slot int) error {
	f.calls = append(f.calls, "reset")
	if !f.fenceSet[slot] {
		return core.ErrUnknown
	}
	f.fenceSet[slot] = false
	return nil
}

func (f *fakeFrameOps) acquireImage(slot int) (uint32, bool) {
	f.calls = append(f.calls, "acquire")
	if !f.acquireOK {
		f.state = SwapchainStateNeedsRebuild
		return 0, false
	}
	return 1, true
}

func (f *fakeFrameOps) recordAndSubmit(slot int, imageIndex uint32) error {
	f.calls = append(f.calls, "submit")
	if f.submitErr != nil {
		return f.submitErr
	}
	f.fenceSet[slot] = true
	return nil
}

func (f *fakeFrameOps) present(slot int, imageIndex uint32) {
	f.calls = append(f.calls, "present")
}

func testScheduler() *FrameScheduler {
	return &FrameScheduler{slotCount: 3}
}

func TestRunFrameHappyPathOrder(t *testing.T) {
	scheduler := testScheduler()
	ops := newFakeFrameOps()

	require.NoError(t, scheduler.RunFrame(ops))
	assert.Equal(t, []string{"wait", "acquire", "reset", "submit", "present"}, ops.calls)
	assert.Equal(t, 1, scheduler.CurrentSlot)
}

func TestRunFrameSlotRotation(t *testing.T) {
	scheduler := testScheduler()
	ops := newFakeFrameOps()

	for i := 0; i < 9; i++ {
		require.NoError(t, scheduler.RunFrame(ops))
	}
	// Nine frames across three slots: every fence waited exactly three times,
	// strictly in ring order.
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0, 1, 2}, ops.waitedSlots)
	assert.Equal(t, 0, scheduler.CurrentSlot)
}

func TestRunFrameRebuildsBeforeRendering(t *testing.T) {
	scheduler := testScheduler()
	ops := newFakeFrameOps()
	ops.state = SwapchainStateNeedsRebuild

	require.NoError(t, scheduler.RunFrame(ops))
	assert.Equal(t, []string{"rebuild", "wait", "acquire", "reset", "submit", "present"}, ops.calls)
}

func TestRunFrameSkipsWhileMinimized(t *testing.T) {
	scheduler := testScheduler()
	ops := newFakeFrameOps()
	ops.state = SwapchainStateNeedsRebuild
	ops.stateAfterRebuild = SwapchainStateNeedsRebuild

	require.NoError(t, scheduler.RunFrame(ops))
	// No rendering work and no slot advance while the window is zero-extent.
	assert.Equal(t, []string{"rebuild"}, ops.calls)
	assert.Equal(t, 0, scheduler.CurrentSlot)
}

// A burst of resizes makes acquire fail repeatedly. Each failed frame must
// leave the slot's fence signaled (no reset without a matching submit) and
// must not advance the slot, so the storm can never deadlock a later wait.
func TestRunFrameResizeStorm(t *testing.T) {
	scheduler := testScheduler()
	ops := newFakeFrameOps()

	for i := 0; i < 5; i++ {
		ops.acquireOK = false
		require.NoError(t, scheduler.RunFrame(ops))
		assert.Equal(t, 0, scheduler.CurrentSlot)
		assert.True(t, ops.fenceSet[0], "fence must stay signaled after failed acquire")

		// The failed acquire flagged the swapchain; next frame rebuilds.
		assert.Equal(t, SwapchainStateNeedsRebuild, ops.state)
		ops.acquireOK = true
		require.NoError(t, scheduler.RunFrame(ops))
		assert.Equal(t, 1, scheduler.CurrentSlot)

		scheduler.CurrentSlot = 0
	}
}

// A fence that never signals must surface as ErrDeviceHang instead of
// blocking the loop forever, leaving the slot untouched.
func TestRunFrameDeviceHang(t *testing.T) {
	scheduler := testScheduler()
	ops := newFakeFrameOps()
	ops.waitErr = core.ErrDeviceHang

	err := scheduler.RunFrame(ops)
	assert.ErrorIs(t, err, core.ErrDeviceHang)
	assert.Equal(t, []string{"wait"}, ops.calls)
	assert.Equal(t, 0, scheduler.CurrentSlot)
	assert.True(t, ops.fenceSet[0])
}

func TestRunFrameSubmitFailureDoesNotAdvance(t *testing.T) {
	scheduler := testScheduler()
	ops := newFakeFrameOps()
	ops.submitErr = core.ErrUnknown

	err := scheduler.RunFrame(ops)
	assert.Error(t, err)
	assert.Equal(t, 0, scheduler.CurrentSlot)
	assert.NotContains(t, ops.calls, "present")
}

func TestRunFrameRebuildErrorPropagates(t *testing.T) {
	scheduler := testScheduler()
	ops := newFakeFrameOps()
	ops.state = SwapchainStateNeedsRebuild
	ops.rebuildFails = core.ErrSwapchainCreationFailed

	err := scheduler.RunFrame(ops)
	assert.ErrorIs(t, err, core.ErrSwapchainCreationFailed)
	assert.Equal(t, []string{"rebuild"}, ops.calls)
}
