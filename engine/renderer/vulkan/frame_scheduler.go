package vulkan

import (
	"time"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

const (
	// Triple buffering: the CPU may run up to three frames ahead of the GPU.
	DefaultFramesInFlight = 3

	DefaultFenceTimeout = 5 * time.Second
)

// GlobalUniform is the per-frame data written into each slot's uniform
// buffer before recording. Matrices are column-major, matching GLSL.
type GlobalUniform struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

const globalUniformSize = vk.DeviceSize(unsafe.Sizeof(GlobalUniform{}))

// FrameSlot bundles everything one in-flight frame owns. The fence is
// created signaled so the very first wait on a slot returns immediately.
type FrameSlot struct {
	ImageAvailable vk.Semaphore
	RenderComplete vk.Semaphore
	InFlight       vk.Fence
	CommandBuffer  *VulkanCommandBuffer
	UniformBuffer  *VulkanBuffer
	DescriptorSet  vk.DescriptorSet
}

// frameOps is the side-effect surface of one frame. The renderer backend
// implements it against the real device; the protocol itself stays a pure
// function over this interface.
type frameOps interface {
	swapchainState() SwapchainState
	rebuildSwapchain() error
	waitSlotFence(slot int) error
	resetSlotFence(slot int) error
	acquireImage(slot int) (uint32, bool)
	recordAndSubmit(slot int, imageIndex uint32) error
	present(slot int, imageIndex uint32)
}

// FrameScheduler drives the acquire/record/submit/present protocol across a
// fixed ring of frame slots.
type FrameScheduler struct {
	Slots       []FrameSlot
	CurrentSlot int

	// Hard deadline on the per-slot fence wait. A timeout means the GPU
	// stopped making progress and the frame loop must stop with an error
	// instead of spinning forever.
	FenceTimeout time.Duration

	GlobalDescriptorSetLayout vk.DescriptorSetLayout

	slotCount      int
	descriptorPool vk.DescriptorPool
}

// RunFrame executes one iteration of the frame protocol:
//
//	rebuild-if-needed -> wait fence -> acquire -> reset fence ->
//	record+submit -> present -> advance slot
//
// The fence is reset only after a successful acquire, so a failed acquire
// leaves the slot's fence signaled and the next wait cannot deadlock. The
// slot advances only after a successful submit; skipped frames reuse it.
func (fs *FrameScheduler) RunFrame(ops frameOps) error {
	slot := fs.CurrentSlot

	if ops.swapchainState() == SwapchainStateNeedsRebuild {
		if err := ops.rebuildSwapchain(); err != nil {
			return err
		}
		if ops.swapchainState() == SwapchainStateNeedsRebuild {
			// Still zero-extent (minimized). Nothing to render.
			return nil
		}
	}

	if err := ops.waitSlotFence(slot); err != nil {
		return err
	}

	imageIndex, ok := ops.acquireImage(slot)
	if !ok {
		return nil
	}

	if err := ops.resetSlotFence(slot); err != nil {
		return err
	}
	if err := ops.recordAndSubmit(slot, imageIndex); err != nil {
		return err
	}

	ops.present(slot, imageIndex)
	fs.CurrentSlot = (slot + 1) % fs.slotCount
	return nil
}

// NewFrameScheduler creates the slot ring: per-slot semaphores, a signaled
// fence, a primary command buffer, a host-visible uniform buffer and a
// descriptor set pointing at it.
func NewFrameScheduler(context *VulkanContext, framesInFlight int, fenceTimeout time.Duration) (*FrameScheduler, error) {
	if framesInFlight <= 0 {
		framesInFlight = DefaultFramesInFlight
	}
	if fenceTimeout <= 0 {
		fenceTimeout = DefaultFenceTimeout
	}

	scheduler := &FrameScheduler{
		Slots:        make([]FrameSlot, framesInFlight),
		FenceTimeout: fenceTimeout,
		slotCount:    framesInFlight,
	}

	layoutBinding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{layoutBinding},
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		core.LogError("CreateDescriptorSetLayout failed: %s", VulkanResultString(res))
		return nil, core.ErrDeviceCreationFailed
	}
	scheduler.GlobalDescriptorSetLayout = layout

	poolSize := vk.DescriptorPoolSize{
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: uint32(framesInFlight),
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: 1,
		PPoolSizes:    []vk.DescriptorPoolSize{poolSize},
		MaxSets:       uint32(framesInFlight),
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		core.LogError("CreateDescriptorPool failed: %s", VulkanResultString(res))
		scheduler.Destroy(context)
		return nil, core.ErrDeviceCreationFailed
	}
	scheduler.descriptorPool = pool

	for i := range scheduler.Slots {
		slot := &scheduler.Slots[i]

		semaphoreInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreInfo, context.Allocator, &slot.ImageAvailable); res != vk.Success {
			core.LogError("CreateSemaphore failed: %s", VulkanResultString(res))
			scheduler.Destroy(context)
			return nil, core.ErrDeviceCreationFailed
		}
		if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreInfo, context.Allocator, &slot.RenderComplete); res != vk.Success {
			core.LogError("CreateSemaphore failed: %s", VulkanResultString(res))
			scheduler.Destroy(context)
			return nil, core.ErrDeviceCreationFailed
		}

		// Signaled at birth: the first frame on this slot must not wait.
		fenceInfo := vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}
		if res := vk.CreateFence(context.Device.LogicalDevice, &fenceInfo, context.Allocator, &slot.InFlight); res != vk.Success {
			core.LogError("CreateFence failed: %s", VulkanResultString(res))
			scheduler.Destroy(context)
			return nil, core.ErrDeviceCreationFailed
		}

		commandBuffer, err := CommandBufferAllocate(context, context.Device.GraphicsCommandPool, true)
		if err != nil {
			scheduler.Destroy(context)
			return nil, err
		}
		slot.CommandBuffer = commandBuffer

		uniformBuffer, err := NewUniformBuffer(context, globalUniformSize)
		if err != nil {
			scheduler.Destroy(context)
			return nil, err
		}
		slot.UniformBuffer = uniformBuffer

		allocateInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     scheduler.descriptorPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{scheduler.GlobalDescriptorSetLayout},
		}
		sets := make([]vk.DescriptorSet, 1)
		if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &sets[0]); res != vk.Success {
			core.LogError("AllocateDescriptorSets failed: %s", VulkanResultString(res))
			scheduler.Destroy(context)
			return nil, core.ErrDeviceCreationFailed
		}
		slot.DescriptorSet = sets[0]

		bufferInfo := vk.DescriptorBufferInfo{
			Buffer: slot.UniformBuffer.Handle,
			Offset: 0,
			Range:  globalUniformSize,
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          slot.DescriptorSet,
			DstBinding:      0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
		}
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	}

	core.LogInfo("Frame scheduler ready (%d frames in flight).", framesInFlight)
	return scheduler, nil
}

// UpdateGlobalUniform writes the frame's view and projection into the given
// slot's persistently mapped uniform buffer.
func (fs *FrameScheduler) UpdateGlobalUniform(slot int, uniform GlobalUniform) error {
	data := unsafe.Slice((*byte)(unsafe.Pointer(&uniform)), int(globalUniformSize))
	return fs.Slots[slot].UniformBuffer.LoadData(0, data)
}

// Destroy releases every slot. The device must be idle first.
func (fs *FrameScheduler) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice

	for i := range fs.Slots {
		slot := &fs.Slots[i]
		if slot.ImageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(device, slot.ImageAvailable, context.Allocator)
			slot.ImageAvailable = vk.NullSemaphore
		}
		if slot.RenderComplete != vk.NullSemaphore {
			vk.DestroySemaphore(device, slot.RenderComplete, context.Allocator)
			slot.RenderComplete = vk.NullSemaphore
		}
		if slot.InFlight != vk.NullFence {
			vk.DestroyFence(device, slot.InFlight, context.Allocator)
			slot.InFlight = vk.NullFence
		}
		if slot.CommandBuffer != nil {
			CommandBufferFree(context, context.Device.GraphicsCommandPool, slot.CommandBuffer)
			slot.CommandBuffer = nil
		}
		if slot.UniformBuffer != nil {
			slot.UniformBuffer.Release()
			slot.UniformBuffer = nil
		}
	}

	if fs.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(device, fs.descriptorPool, context.Allocator)
		fs.descriptorPool = vk.NullDescriptorPool
	}
	if fs.GlobalDescriptorSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, fs.GlobalDescriptorSetLayout, context.Allocator)
		fs.GlobalDescriptorSetLayout = vk.NullDescriptorSetLayout
	}
}
