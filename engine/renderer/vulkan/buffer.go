package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

// VulkanBuffer pairs a vk.Buffer with its region of sub-allocated memory.
// Release is idempotent: the first call frees both handle and allocation and
// nils them out, so a second call finds nothing to do.
type VulkanBuffer struct {
	Handle     vk.Buffer
	TotalSize  vk.DeviceSize
	Usage      vk.BufferUsageFlagBits
	allocation *Allocation
	context    *VulkanContext
}

// BufferCreate creates the native buffer, sub-allocates memory matching its
// requirements and binds the two. hostVisible selects coherent host memory
// and leaves the allocation persistently mapped.
func BufferCreate(context *VulkanContext, size vk.DeviceSize, usage vk.BufferUsageFlagBits, hostVisible bool) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		TotalSize: size,
		Usage:     usage,
		context:   context,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		core.LogError("CreateBuffer failed: %s", VulkanResultString(res))
		return nil, core.ErrOutOfDeviceMemory
	}
	buffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &requirements)
	requirements.Deref()

	properties := uint32(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible {
		properties = uint32(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	typeIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if typeIndex < 0 {
		buffer.destroyHandle()
		return nil, core.ErrOutOfDeviceMemory
	}

	allocation, err := context.MemoryAllocator.Allocate(AllocationCreateInfo{
		Size:        requirements.Size,
		Alignment:   requirements.Alignment,
		TypeIndex:   uint32(typeIndex),
		HostVisible: hostVisible,
		Linear:      true,
	})
	if err != nil {
		buffer.destroyHandle()
		return nil, err
	}
	buffer.allocation = allocation

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, buffer.Handle, allocation.Memory(), allocation.Offset()); res != vk.Success {
		core.LogError("BindBufferMemory failed: %s", VulkanResultString(res))
		_ = context.MemoryAllocator.Free(allocation)
		buffer.allocation = nil
		buffer.destroyHandle()
		return nil, core.ErrOutOfDeviceMemory
	}
	return buffer, nil
}

// NewVertexBuffer creates a device-local buffer that can also be a transfer
// destination for the staging upload.
func NewVertexBuffer(context *VulkanContext, size vk.DeviceSize) (*VulkanBuffer, error) {
	return BufferCreate(context, size,
		vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit, false)
}

func NewIndexBuffer(context *VulkanContext, size vk.DeviceSize) (*VulkanBuffer, error) {
	return BufferCreate(context, size,
		vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit, false)
}

// NewUniformBuffer is host-visible so the frame scheduler can write it every
// frame without a transfer.
func NewUniformBuffer(context *VulkanContext, size vk.DeviceSize) (*VulkanBuffer, error) {
	return BufferCreate(context, size, vk.BufferUsageUniformBufferBit, true)
}

func NewStagingBuffer(context *VulkanContext, size vk.DeviceSize) (*VulkanBuffer, error) {
	return BufferCreate(context, size, vk.BufferUsageTransferSrcBit, true)
}

// LoadData copies data into a host-visible buffer through its persistent
// mapping. offset is relative to the start of the buffer.
func (b *VulkanBuffer) LoadData(offset vk.DeviceSize, data []byte) error {
	if b.allocation == nil {
		return core.ErrAllocationReleased
	}
	mapped := b.allocation.MappedBytes()
	if mapped == nil {
		core.LogError("LoadData called on a device-local buffer")
		return core.ErrUnknown
	}
	copy(mapped[offset:], data)
	return nil
}

// CopyTo records a single-use transfer from this buffer into dst and waits
// for it to finish. Used by the mesh upload path; startup-time only.
func (b *VulkanBuffer) CopyTo(dst *VulkanBuffer, size vk.DeviceSize) error {
	commandBuffer, err := CommandBufferAllocateAndBeginSingleUse(b.context, b.context.TransferCommandPool)
	if err != nil {
		return err
	}

	copyRegion := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      size,
	}
	vk.CmdCopyBuffer(commandBuffer.Handle, b.Handle, dst.Handle, 1, []vk.BufferCopy{copyRegion})

	return CommandBufferEndSingleUse(b.context, b.context.TransferCommandPool, commandBuffer, b.context.Device.GraphicsQueue)
}

// Release destroys the handle and frees the allocation. Safe to call more
// than once.
func (b *VulkanBuffer) Release() {
	if b.allocation != nil {
		if err := b.context.MemoryAllocator.Free(b.allocation); err != nil {
			core.LogError("buffer release: %s", err.Error())
		}
		b.allocation = nil
	}
	b.destroyHandle()
}

func (b *VulkanBuffer) destroyHandle() {
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, b.Handle, b.context.Allocator)
		b.Handle = vk.NullBuffer
	}
}
