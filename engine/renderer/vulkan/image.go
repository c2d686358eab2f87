package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

// VulkanImage is a GPU image plus its sub-allocated memory and optional view.
// Images allocated here are always optimally tiled and device-local; the only
// producers are the depth target and the multisample color target, both owned
// by the swapchain.
type VulkanImage struct {
	Handle     vk.Image
	View       vk.ImageView
	Width      uint32
	Height     uint32
	allocation *Allocation
	context    *VulkanContext
}

func ImageCreate(
	context *VulkanContext,
	width uint32,
	height uint32,
	format vk.Format,
	usage vk.ImageUsageFlagBits,
	samples vk.SampleCountFlagBits,
	viewAspect vk.ImageAspectFlagBits,
) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:   width,
		Height:  height,
		context: context,
	}

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(usage),
		Samples:       samples,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageInfo, context.Allocator, &handle); res != vk.Success {
		core.LogError("CreateImage failed: %s", VulkanResultString(res))
		return nil, core.ErrOutOfDeviceMemory
	}
	image.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image.Handle, &requirements)
	requirements.Deref()

	typeIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if typeIndex < 0 {
		image.destroyHandle()
		return nil, core.ErrOutOfDeviceMemory
	}

	allocation, err := context.MemoryAllocator.Allocate(AllocationCreateInfo{
		Size:      requirements.Size,
		Alignment: requirements.Alignment,
		TypeIndex: uint32(typeIndex),
		Linear:    false,
	})
	if err != nil {
		image.destroyHandle()
		return nil, err
	}
	image.allocation = allocation

	if res := vk.BindImageMemory(context.Device.LogicalDevice, image.Handle, allocation.Memory(), allocation.Offset()); res != vk.Success {
		core.LogError("BindImageMemory failed: %s", VulkanResultString(res))
		_ = context.MemoryAllocator.Free(allocation)
		image.allocation = nil
		image.destroyHandle()
		return nil, core.ErrOutOfDeviceMemory
	}

	if err := image.createView(format, viewAspect); err != nil {
		image.Release()
		return nil, err
	}
	return image, nil
}

func (i *VulkanImage) createView(format vk.Format, aspect vk.ImageAspectFlagBits) error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(i.context.Device.LogicalDevice, &viewInfo, i.context.Allocator, &view); res != vk.Success {
		core.LogError("CreateImageView failed: %s", VulkanResultString(res))
		return core.ErrOutOfDeviceMemory
	}
	i.View = view
	return nil
}

// Release destroys view, handle and memory. Idempotent, same contract as
// VulkanBuffer.Release.
func (i *VulkanImage) Release() {
	if i.View != vk.NullImageView {
		vk.DestroyImageView(i.context.Device.LogicalDevice, i.View, i.context.Allocator)
		i.View = vk.NullImageView
	}
	if i.allocation != nil {
		if err := i.context.MemoryAllocator.Free(i.allocation); err != nil {
			core.LogError("image release: %s", err.Error())
		}
		i.allocation = nil
	}
	i.destroyHandle()
}

func (i *VulkanImage) destroyHandle() {
	if i.Handle != vk.NullImage {
		vk.DestroyImage(i.context.Device.LogicalDevice, i.Handle, i.context.Allocator)
		i.Handle = vk.NullImage
	}
}
