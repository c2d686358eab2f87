package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

// VulkanContext is the long-lived session root. It owns the instance, the
// surface and the logical device, and every other component borrows from it
// for its whole lifetime. Exactly one context exists per running engine and
// it is destroyed last, after the device reached idle.
type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match
	// FramebufferSizeLastGeneration, the swapchain must be rebuilt.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when the swapchain was last created.
	FramebufferSizeLastGeneration uint64

	Instance vk.Instance
	// Host-side allocation callbacks handed to every vk create/destroy call.
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// Shared GPU memory sub-allocator; reference-counted by every resource.
	MemoryAllocator *VulkanAllocator

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass

	// Transient pool used by the synchronous single-use transfer path
	// (mesh upload). Created once at startup rather than per call.
	TransferCommandPool vk.CommandPool

	Scheduler *FrameScheduler

	ImageIndex uint32
}

// FindMemoryIndex returns the index of a memory type matching typeFilter and
// carrying all of propertyFlags, or -1 when the device has none. Reads the
// memory info cached on VulkanDevice at creation; no device query happens
// here.
func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	memory := &vc.Device.Memory
	for i := uint32(0); i < memory.MemoryTypeCount; i++ {
		if (typeFilter&(1<<i)) != 0 && (uint32(memory.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
