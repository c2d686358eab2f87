package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

// SwapchainState tracks whether presentation can proceed. The swapchain is
// born Valid and drops to NeedsRebuild on resize, out-of-date acquire or
// suboptimal present; a rebuild against a zero-extent surface leaves it in
// NeedsRebuild until the window is visible again.
type SwapchainState int

const (
	SwapchainStateValid SwapchainState = iota
	SwapchainStateNeedsRebuild
)

// swapchainPlan is the pure outcome of surface negotiation, split from the
// vk calls so the selection policy is testable on captured capability data.
type swapchainPlan struct {
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32
}

// planSwapchain negotiates format, present mode, extent and image count from
// the surface capabilities. Returns false when the drawable extent is zero,
// which means the window is minimized and no swapchain can exist.
func planSwapchain(support *VulkanSwapchainSupportInfo, requestedWidth, requestedHeight uint32, preferMailbox bool) (swapchainPlan, bool) {
	plan := swapchainPlan{}

	found := false
	for _, format := range support.Formats {
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			plan.Format = format
			found = true
			break
		}
	}
	if !found && len(support.Formats) > 0 {
		plan.Format = support.Formats[0]
	}

	// FIFO is the only mode the standard guarantees.
	plan.PresentMode = vk.PresentModeFifo
	if preferMailbox {
		for _, mode := range support.PresentModes {
			if mode == vk.PresentModeMailbox {
				plan.PresentMode = mode
				break
			}
		}
	}

	capabilities := support.Capabilities
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		plan.Extent = capabilities.CurrentExtent
	} else {
		plan.Extent = vk.Extent2D{
			Width:  MathClamp(requestedWidth, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
			Height: MathClamp(requestedHeight, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
		}
	}
	if plan.Extent.Width == 0 || plan.Extent.Height == 0 {
		return plan, false
	}

	plan.ImageCount = capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && plan.ImageCount > capabilities.MaxImageCount {
		plan.ImageCount = capabilities.MaxImageCount
	}
	return plan, true
}

// VulkanSwapchain owns the presentable images plus the depth target and, when
// multisampling is on, the resolve source. Framebuffers are regenerated after
// every rebuild once the renderpass exists.
type VulkanSwapchain struct {
	Handle      vk.Swapchain
	State       SwapchainState
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32
	Samples     vk.SampleCountFlagBits

	Images     []vk.Image
	ImageViews []vk.ImageView

	DepthAttachment *VulkanImage
	// Multisampled color target; nil when Samples is 1.
	ColorAttachment *VulkanImage

	Framebuffers []vk.Framebuffer

	preferMailbox bool
}

func SwapchainCreate(context *VulkanContext, width, height uint32, preferMailbox bool, samples vk.SampleCountFlagBits) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{
		State:         SwapchainStateNeedsRebuild,
		Samples:       samples,
		preferMailbox: preferMailbox,
	}
	if err := swapchain.build(context, width, height); err != nil {
		return nil, err
	}
	return swapchain, nil
}

func (s *VulkanSwapchain) build(context *VulkanContext, width, height uint32) error {
	support := &context.Device.SwapchainSupport
	plan, ok := planSwapchain(support, width, height, s.preferMailbox)
	if !ok {
		core.LogDebug("Swapchain rebuild skipped: zero drawable extent.")
		s.State = SwapchainStateNeedsRebuild
		return nil
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    plan.ImageCount,
		ImageFormat:      plan.Format.Format,
		ImageColorSpace:  plan.Format.ColorSpace,
		ImageExtent:      plan.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      plan.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle); res != vk.Success {
		core.LogError("CreateSwapchain failed: %s", VulkanResultString(res))
		return core.ErrSwapchainCreationFailed
	}
	s.Handle = handle
	s.ImageFormat = plan.Format
	s.PresentMode = plan.PresentMode
	s.Extent = plan.Extent

	var imageCount uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, s.Handle, &imageCount, nil); res != vk.Success {
		core.LogError("GetSwapchainImages failed: %s", VulkanResultString(res))
		return core.ErrSwapchainCreationFailed
	}
	s.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, s.Handle, &imageCount, s.Images); res != vk.Success {
		core.LogError("GetSwapchainImages failed: %s", VulkanResultString(res))
		return core.ErrSwapchainCreationFailed
	}
	s.ImageCount = imageCount

	s.ImageViews = make([]vk.ImageView, imageCount)
	for i := range s.Images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    s.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   s.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &s.ImageViews[i]); res != vk.Success {
			core.LogError("CreateImageView failed: %s", VulkanResultString(res))
			return core.ErrSwapchainCreationFailed
		}
	}

	if !DeviceDetectDepthFormat(context.Device) {
		core.LogError("Failed to find a supported depth format!")
		return core.ErrSwapchainCreationFailed
	}
	depth, err := ImageCreate(context,
		plan.Extent.Width, plan.Extent.Height,
		context.Device.DepthFormat,
		vk.ImageUsageDepthStencilAttachmentBit,
		s.Samples,
		vk.ImageAspectDepthBit)
	if err != nil {
		return err
	}
	s.DepthAttachment = depth

	if s.Samples > vk.SampleCount1Bit {
		color, err := ImageCreate(context,
			plan.Extent.Width, plan.Extent.Height,
			s.ImageFormat.Format,
			vk.ImageUsageTransientAttachmentBit|vk.ImageUsageColorAttachmentBit,
			s.Samples,
			vk.ImageAspectColorBit)
		if err != nil {
			return err
		}
		s.ColorAttachment = color
	}

	s.State = SwapchainStateValid
	core.LogInfo("Swapchain created (%dx%d, %d images).", plan.Extent.Width, plan.Extent.Height, imageCount)
	return nil
}

// RegenerateFramebuffers creates one framebuffer per swapchain image against
// renderpass. Called after every successful build.
func (s *VulkanSwapchain) RegenerateFramebuffers(context *VulkanContext, renderpass *VulkanRenderpass) error {
	s.Framebuffers = make([]vk.Framebuffer, s.ImageCount)
	for i := range s.Framebuffers {
		var attachments []vk.ImageView
		if s.ColorAttachment != nil {
			attachments = []vk.ImageView{s.ColorAttachment.View, s.DepthAttachment.View, s.ImageViews[i]}
		} else {
			attachments = []vk.ImageView{s.ImageViews[i], s.DepthAttachment.View}
		}
		framebufferInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderpass.Handle,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           s.Extent.Width,
			Height:          s.Extent.Height,
			Layers:          1,
		}
		if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferInfo, context.Allocator, &s.Framebuffers[i]); res != vk.Success {
			core.LogError("CreateFramebuffer failed: %s", VulkanResultString(res))
			return core.ErrSwapchainCreationFailed
		}
	}
	return nil
}

// Recreate tears the old chain down and builds a new one at the given size.
// Safe to call while minimized; the swapchain then stays NeedsRebuild and the
// call is an effective no-op apart from the teardown.
func (s *VulkanSwapchain) Recreate(context *VulkanContext, width, height uint32) error {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
	s.destroyResources(context)

	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, &context.Device.SwapchainSupport); err != nil {
		return err
	}
	if err := s.build(context, width, height); err != nil {
		return err
	}
	if s.State != SwapchainStateValid {
		return nil
	}
	if context.MainRenderpass != nil {
		return s.RegenerateFramebuffers(context, context.MainRenderpass)
	}
	return nil
}

// AcquireNextImage hands out the next presentable image index. A false second
// return means the chain went out of date and the frame must be skipped.
func (s *VulkanSwapchain) AcquireNextImage(context *VulkanContext, timeoutNs uint64, imageAvailable vk.Semaphore, fence vk.Fence) (uint32, bool) {
	var imageIndex uint32
	res := vk.AcquireNextImage(context.Device.LogicalDevice, s.Handle, timeoutNs, imageAvailable, fence, &imageIndex)
	switch {
	case res == vk.ErrorOutOfDate:
		s.State = SwapchainStateNeedsRebuild
		return 0, false
	case res != vk.Success && res != vk.Suboptimal:
		core.LogError("AcquireNextImage failed: %s", VulkanResultString(res))
		return 0, false
	}
	return imageIndex, true
}

// Present queues the image for presentation. Out-of-date and suboptimal both
// flip the state to NeedsRebuild; the next frame triggers the rebuild.
func (s *VulkanSwapchain) Present(context *VulkanContext, queue vk.Queue, renderComplete vk.Semaphore, imageIndex uint32) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	res := vk.QueuePresent(queue, &presentInfo)
	switch res {
	case vk.ErrorOutOfDate, vk.Suboptimal:
		s.State = SwapchainStateNeedsRebuild
	case vk.Success:
	default:
		core.LogError("QueuePresent failed: %s", VulkanResultString(res))
	}
}

func (s *VulkanSwapchain) destroyResources(context *VulkanContext) {
	for _, framebuffer := range s.Framebuffers {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, framebuffer, context.Allocator)
	}
	s.Framebuffers = nil

	if s.ColorAttachment != nil {
		s.ColorAttachment.Release()
		s.ColorAttachment = nil
	}
	if s.DepthAttachment != nil {
		s.DepthAttachment.Release()
		s.DepthAttachment = nil
	}
	for _, view := range s.ImageViews {
		vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
	}
	s.ImageViews = nil
	s.Images = nil

	if s.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullSwapchain
	}
}

func (s *VulkanSwapchain) Destroy(context *VulkanContext) {
	s.destroyResources(context)
}
