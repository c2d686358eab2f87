package vulkan

import (
	vk "github.com/goki/vulkan"
	"golang.org/x/exp/constraints"
)

var resultNames = map[vk.Result]string{
	vk.Success:                 "VK_SUCCESS",
	vk.NotReady:                "VK_NOT_READY",
	vk.Timeout:                 "VK_TIMEOUT",
	vk.EventSet:                "VK_EVENT_SET",
	vk.EventReset:              "VK_EVENT_RESET",
	vk.Incomplete:              "VK_INCOMPLETE",
	vk.Suboptimal:              "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfHostMemory:    "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:  "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:         "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:    "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:    "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent: "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:  "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver: "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:     "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported: "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:     "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorSurfaceLost:        "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:  "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:          "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorIncompatibleDisplay: "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR",
	vk.ErrorOutOfPoolMemory:    "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorInvalidExternalHandle: "VK_ERROR_INVALID_EXTERNAL_HANDLE",
	vk.ErrorFragmentation:      "VK_ERROR_FRAGMENTATION",
	vk.ErrorUnknown:            "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return "VK_ERROR_UNKNOWN"
}

func VulkanResultIsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.EventSet, vk.EventReset,
		vk.Incomplete, vk.Suboptimal:
		return true
	default:
		return false
	}
}

var end = "\x00"
var endChar byte = '\x00'

// VulkanSafeString null-terminates a string for the C side of the bindings.
func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

func MathClamp[T constraints.Ordered](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
