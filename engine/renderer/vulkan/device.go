package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

// VulkanDevice owns the logical device and its queues. Properties, features
// and memory info are copied out of the selector's winning candidate so no
// other component ever re-queries device capability.
type VulkanDevice struct {
	PhysicalDevice   vk.PhysicalDevice
	LogicalDevice    vk.Device
	SwapchainSupport VulkanSwapchainSupportInfo

	// Single queue family capable of both graphics and presentation.
	QueueFamilyIndex uint32
	GraphicsQueue    vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties
	RayTracing bool

	DepthFormat vk.Format
}

// DeviceCreate runs device selection and brings up the logical device, the
// graphics queue and the graphics command pool. Fatal on any failure; the
// caller aborts initialization.
func DeviceCreate(context *VulkanContext, rayTracingBonus uint32) error {
	candidate, err := SelectPhysicalDevice(context, rayTracingBonus)
	if err != nil {
		return err
	}

	device := &VulkanDevice{
		PhysicalDevice:   candidate.PhysicalDevice,
		QueueFamilyIndex: candidate.QueueFamilyIndex,
		RayTracing:       candidate.RayTracing,
	}
	vk.GetPhysicalDeviceProperties(device.PhysicalDevice, &device.Properties)
	device.Properties.Deref()
	vk.GetPhysicalDeviceMemoryProperties(device.PhysicalDevice, &device.Memory)
	device.Memory.Deref()
	for i := uint32(0); i < device.Memory.MemoryTypeCount; i++ {
		device.Memory.MemoryTypes[i].Deref()
	}
	context.Device = device

	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, context.Surface, &device.SwapchainSupport); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: device.QueueFamilyIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if deviceHasExtension(device.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}
	if device.RayTracing {
		// Declared up front even though nothing submits ray-tracing work yet.
		extensionNames = append(extensionNames,
			"VK_KHR_deferred_host_operations",
			rayTracingExtensionName,
		)
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	// Feature chain: buffer device addressing lives in the 1.2 feature block.
	chainedFeatures := vk.PhysicalDeviceVulkan12Features{
		SType:               vk.StructureTypePhysicalDeviceVulkan12Features,
		BufferDeviceAddress: vk.True,
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		PNext:                   unsafe.Pointer(&chainedFeatures),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	if res := vk.CreateDevice(
		device.PhysicalDevice,
		&deviceCreateInfo,
		context.Allocator,
		&device.LogicalDevice); res != vk.Success {
		core.LogError("CreateDevice failed: %s", VulkanResultString(res))
		return core.ErrDeviceCreationFailed
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(
		device.LogicalDevice,
		device.QueueFamilyIndex,
		0,
		&device.GraphicsQueue)
	core.LogInfo("Queue obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.QueueFamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(
		device.LogicalDevice,
		&poolCreateInfo,
		context.Allocator,
		&device.GraphicsCommandPool); res != vk.Success {
		core.LogError("CreateCommandPool failed: %s", VulkanResultString(res))
		return core.ErrDeviceCreationFailed
	}
	core.LogInfo("Graphics command pool created.")

	return nil
}

// DeviceDestroy tears the logical device down. The device must already be
// idle; only the session Shutdown routine calls this.
func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}

	device.GraphicsQueue = nil

	core.LogInfo("Destroying command pools...")
	if device.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = vk.NullCommandPool
	}

	core.LogInfo("Destroying logical device...")
	if device.LogicalDevice != nil {
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
}

// DeviceQuerySwapchainSupport refreshes capabilities, formats and present
// modes. Called once at device creation and again before every rebuild.
func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		core.LogError("failed to get surface capabilities: %s", VulkanResultString(res))
		return core.ErrSwapchainCreationFailed
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		core.LogError("failed to get surface formats: %s", VulkanResultString(res))
		return core.ErrSwapchainCreationFailed
	}
	if supportInfo.FormatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			core.LogError("failed to get surface formats: %s", VulkanResultString(res))
			return core.ErrSwapchainCreationFailed
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		core.LogError("failed to get surface present modes: %s", VulkanResultString(res))
		return core.ErrSwapchainCreationFailed
	}
	if supportInfo.PresentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			core.LogError("failed to get surface present modes: %s", VulkanResultString(res))
			return core.ErrSwapchainCreationFailed
		}
	}
	return nil
}

// DeviceDetectDepthFormat picks the first depth format with depth-stencil
// attachment support, preferring the higher precision candidates.
func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureDepthStencilAttachmentBit
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if (vk.FormatFeatureFlagBits(properties.LinearTilingFeatures) & flags) == flags {
			device.DepthFormat = candidate
			return true
		} else if (vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures) & flags) == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}
