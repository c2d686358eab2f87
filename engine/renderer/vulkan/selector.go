package vulkan

import (
	"sort"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

const rayTracingExtensionName = "VK_KHR_ray_tracing_pipeline"

// DeviceCandidate is one enumerated GPU that passed the queue-family filter.
// Candidates exist only while selection runs and are discarded afterwards.
type DeviceCandidate struct {
	PhysicalDevice   vk.PhysicalDevice
	Name             string
	DeviceType       vk.PhysicalDeviceType
	DeviceLocalBytes uint64
	RayTracing       bool
	QueueFamilyIndex uint32
	Score            uint32
}

// ScoreCandidate weighs a candidate by device class, device-local memory and
// optional ray-tracing support. Discrete parts dominate everything else.
func ScoreCandidate(deviceType vk.PhysicalDeviceType, deviceLocalBytes uint64, rayTracing bool, rayTracingBonus uint32) uint32 {
	var score uint32
	switch deviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		score += 10000
	case vk.PhysicalDeviceTypeIntegratedGpu:
		score += 1000
	case vk.PhysicalDeviceTypeVirtualGpu:
		score += 500
	case vk.PhysicalDeviceTypeCpu:
		score += 100
	}
	// 100 points per GiB of device-local memory.
	score += uint32(deviceLocalBytes/(1024*1024*1024)) * 100
	if rayTracing {
		score += rayTracingBonus
	}
	return score
}

// RankCandidates sorts descending by score. The sort is stable so ties keep
// enumeration order: the first-enumerated device wins.
func RankCandidates(candidates []DeviceCandidate) []DeviceCandidate {
	ranked := make([]DeviceCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// SelectPhysicalDevice enumerates every physical device, keeps the ones with
// a queue family that is both graphics-capable and able to present to the
// session surface, scores them and returns the best. This is the only place
// device capability is queried; everything downstream reads the copies kept
// on VulkanDevice.
func SelectPhysicalDevice(context *VulkanContext, rayTracingBonus uint32) (*DeviceCandidate, error) {
	var physicalDeviceCount uint32 = 0
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		core.LogError("EnumeratePhysicalDevices failed: %s", VulkanResultString(res))
		return nil, core.ErrNoSuitableDevice
	}
	if physicalDeviceCount == 0 {
		core.LogError("No devices which support Vulkan were found.")
		return nil, core.ErrNoSuitableDevice
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		core.LogError("EnumeratePhysicalDevices failed: %s", VulkanResultString(res))
		return nil, core.ErrNoSuitableDevice
	}

	core.LogInfo("Detecting GPUs...")

	candidates := make([]DeviceCandidate, 0, physicalDeviceCount)
	for i := 0; i < int(physicalDeviceCount); i++ {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()

		queueIndex, ok := findGraphicsPresentQueueFamily(physicalDevices[i], context.Surface)
		if !ok {
			continue
		}

		memory := vk.PhysicalDeviceMemoryProperties{}
		vk.GetPhysicalDeviceMemoryProperties(physicalDevices[i], &memory)
		memory.Deref()

		var vram uint64
		for j := 0; j < int(memory.MemoryHeapCount); j++ {
			memory.MemoryHeaps[j].Deref()
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit > 0 {
				vram += uint64(memory.MemoryHeaps[j].Size)
			}
		}

		rayTracing := deviceHasExtension(physicalDevices[i], rayTracingExtensionName)

		candidate := DeviceCandidate{
			PhysicalDevice:   physicalDevices[i],
			Name:             vk.ToString(properties.DeviceName[:]),
			DeviceType:       properties.DeviceType,
			DeviceLocalBytes: vram,
			RayTracing:       rayTracing,
			QueueFamilyIndex: queueIndex,
			Score:            ScoreCandidate(properties.DeviceType, vram, rayTracing, rayTracingBonus),
		}
		core.LogInfo("Found GPU: %s (score: %d, type: %s)", candidate.Name, candidate.Score, deviceTypeString(candidate.DeviceType))
		candidates = append(candidates, candidate)
	}

	ranked := RankCandidates(candidates)
	if len(ranked) == 0 {
		core.LogError("No physical devices were found which meet the requirements.")
		return nil, core.ErrNoSuitableDevice
	}

	best := ranked[0]
	core.LogInfo("Selected GPU: %s", best.Name)
	return &best, nil
}

// findGraphicsPresentQueueFamily returns the first queue family that supports
// both graphics and presentation to the given surface.
func findGraphicsPresentQueueFamily(device vk.PhysicalDevice, surface vk.Surface) (uint32, bool) {
	var queueFamilyCount uint32 = 0
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := 0; i < int(queueFamilyCount); i++ {
		queueFamilies[i].Deref()
		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit == 0 {
			continue
		}
		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			continue
		}
		if supportsPresent == vk.True {
			return uint32(i), true
		}
	}
	return 0, false
}

func deviceHasExtension(device vk.PhysicalDevice, name string) bool {
	var availableExtensionCount uint32 = 0
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, nil); res != vk.Success {
		return false
	}
	if availableExtensionCount == 0 {
		return false
	}
	availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, availableExtensions); res != vk.Success {
		return false
	}
	for i := range availableExtensions {
		availableExtensions[i].Deref()
		extEnd := FindFirstZeroInByteArray(availableExtensions[i].ExtensionName[:])
		if string(availableExtensions[i].ExtensionName[:extEnd]) == name {
			return true
		}
	}
	return false
}

func deviceTypeString(deviceType vk.PhysicalDeviceType) string {
	switch deviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "Discrete"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "Integrated"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "Virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "CPU"
	default:
		return "Unknown"
	}
}
