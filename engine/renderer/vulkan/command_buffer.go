package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

type CommandBufferState int

const (
	CommandBufferStateReady CommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
	CommandBufferStateNotAllocated
)

// VulkanCommandBuffer tracks its recording state alongside the handle so the
// frame scheduler can assert the begin/end protocol instead of trusting it.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  CommandBufferState
}

func CommandBufferAllocate(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              level,
		CommandBufferCount: 1,
	}

	commandBuffer := &VulkanCommandBuffer{
		State: CommandBufferStateNotAllocated,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		core.LogError("AllocateCommandBuffers failed: %s", VulkanResultString(res))
		return nil, core.ErrDeviceCreationFailed
	}
	commandBuffer.Handle = handles[0]
	commandBuffer.State = CommandBufferStateReady
	return commandBuffer, nil
}

func CommandBufferFree(context *VulkanContext, pool vk.CommandPool, commandBuffer *VulkanCommandBuffer) {
	if commandBuffer.Handle != nil {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{commandBuffer.Handle})
		commandBuffer.Handle = nil
	}
	commandBuffer.State = CommandBufferStateNotAllocated
}

func (cb *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	if res := vk.BeginCommandBuffer(cb.Handle, &beginInfo); res != vk.Success {
		core.LogError("BeginCommandBuffer failed: %s", VulkanResultString(res))
		return core.ErrUnknown
	}
	cb.State = CommandBufferStateRecording
	return nil
}

func (cb *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(cb.Handle); res != vk.Success {
		core.LogError("EndCommandBuffer failed: %s", VulkanResultString(res))
		return core.ErrUnknown
	}
	cb.State = CommandBufferStateRecordingEnded
	return nil
}

func (cb *VulkanCommandBuffer) UpdateSubmitted() {
	cb.State = CommandBufferStateSubmitted
}

func (cb *VulkanCommandBuffer) Reset() {
	cb.State = CommandBufferStateReady
}

// CommandBufferAllocateAndBeginSingleUse allocates a throwaway primary buffer
// from pool and starts recording it for one submission.
func CommandBufferAllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	commandBuffer, err := CommandBufferAllocate(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := commandBuffer.Begin(true, false, false); err != nil {
		CommandBufferFree(context, pool, commandBuffer)
		return nil, err
	}
	return commandBuffer, nil
}

// CommandBufferEndSingleUse ends recording, submits on queue and blocks until
// the queue drains. Only the startup transfer path uses this, so the full
// queue stall is acceptable.
func CommandBufferEndSingleUse(context *VulkanContext, pool vk.CommandPool, commandBuffer *VulkanCommandBuffer, queue vk.Queue) error {
	if err := commandBuffer.End(); err != nil {
		CommandBufferFree(context, pool, commandBuffer)
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer.Handle},
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		core.LogError("QueueSubmit failed: %s", VulkanResultString(res))
		CommandBufferFree(context, pool, commandBuffer)
		return core.ErrUnknown
	}
	if res := vk.QueueWaitIdle(queue); res != vk.Success {
		core.LogError("QueueWaitIdle failed: %s", VulkanResultString(res))
		CommandBufferFree(context, pool, commandBuffer)
		return core.ErrUnknown
	}

	CommandBufferFree(context, pool, commandBuffer)
	return nil
}
