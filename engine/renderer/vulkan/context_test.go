package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func memoryContext(types ...vk.MemoryPropertyFlagBits) *VulkanContext {
	device := &VulkanDevice{}
	device.Memory.MemoryTypeCount = uint32(len(types))
	for i, flags := range types {
		device.Memory.MemoryTypes[i] = vk.MemoryType{
			PropertyFlags: vk.MemoryPropertyFlags(flags),
			HeapIndex:     0,
		}
	}
	return &VulkanContext{Device: device}
}

func TestFindMemoryIndexUsesCachedProperties(t *testing.T) {
	context := memoryContext(
		vk.MemoryPropertyDeviceLocalBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
	)

	idx := context.FindMemoryIndex(
		0b11,
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	assert.Equal(t, int32(1), idx)

	idx = context.FindMemoryIndex(0b11, uint32(vk.MemoryPropertyDeviceLocalBit))
	assert.Equal(t, int32(0), idx)
}

func TestFindMemoryIndexHonorsTypeFilter(t *testing.T) {
	context := memoryContext(
		vk.MemoryPropertyDeviceLocalBit,
		vk.MemoryPropertyDeviceLocalBit,
	)

	// Only the second type is allowed by the filter.
	idx := context.FindMemoryIndex(0b10, uint32(vk.MemoryPropertyDeviceLocalBit))
	assert.Equal(t, int32(1), idx)
}

func TestFindMemoryIndexNoMatch(t *testing.T) {
	context := memoryContext(vk.MemoryPropertyDeviceLocalBit)

	idx := context.FindMemoryIndex(0b1, uint32(vk.MemoryPropertyHostVisibleBit))
	assert.Equal(t, int32(-1), idx)
}
