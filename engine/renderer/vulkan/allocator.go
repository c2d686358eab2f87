package vulkan

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

// Blocks are carved out of device memory in 64 MiB slabs; requests larger
// than a slab get a dedicated block.
const allocatorBlockSize vk.DeviceSize = 64 * 1024 * 1024

// AllocationCreateInfo describes one sub-allocation request. TypeIndex comes
// from VulkanContext.FindMemoryIndex applied to the native object's memory
// requirements.
type AllocationCreateInfo struct {
	Size        vk.DeviceSize
	Alignment   vk.DeviceSize
	TypeIndex   uint32
	HostVisible bool
	// Buffers are linear; optimally-tiled images are not. The two kinds
	// never share a block so bufferImageGranularity cannot be violated.
	Linear bool
}

// Allocation is the token a resource holds for its region of device memory.
// It is handed back to Free exactly once; the released flag is the sentinel
// that makes a second Free a detectable error instead of a corruption.
type Allocation struct {
	block    *memoryBlock
	offset   vk.DeviceSize
	size     vk.DeviceSize
	released bool
}

func (a *Allocation) Memory() vk.DeviceMemory {
	return a.block.handle.memory
}

func (a *Allocation) Offset() vk.DeviceSize {
	return a.offset
}

func (a *Allocation) Size() vk.DeviceSize {
	return a.size
}

// MappedBytes returns the host-visible window of this allocation, or nil for
// device-local memory. Host-visible blocks stay persistently mapped, so the
// slice is valid until the allocation is freed.
func (a *Allocation) MappedBytes() []byte {
	if a.block.handle.mapped == nil || a.released {
		return nil
	}
	ptr := unsafe.Add(a.block.handle.mapped, uintptr(a.offset))
	return unsafe.Slice((*byte)(ptr), int(a.size))
}

// region is one contiguous span inside a block, either free or in use.
type region struct {
	offset vk.DeviceSize
	size   vk.DeviceSize
	free   bool
}

type memoryBlock struct {
	handle    *deviceBlock
	size      vk.DeviceSize
	typeIndex uint32
	linear    bool
	// Sorted by offset; adjacent free regions are merged on Free.
	regions []region
}

// deviceBlock is one vkAllocateMemory result. mapped is non-nil for
// host-visible blocks, which are mapped once at creation.
type deviceBlock struct {
	memory vk.DeviceMemory
	mapped unsafe.Pointer
}

// blockSource produces and retires whole blocks of device memory. The
// device-backed implementation calls vkAllocateMemory; tests substitute a
// host-heap source so the bookkeeping can run without a GPU.
type blockSource interface {
	allocateBlock(size vk.DeviceSize, typeIndex uint32, hostVisible bool) (*deviceBlock, error)
	freeBlock(block *deviceBlock, mapped bool)
}

// VulkanAllocator is the single shared entry point for device-memory
// allocation. Every GPU-resident resource holds a reference to it; the mutex
// guards only the allocate/free bookkeeping so unrelated resource
// construction is never serialized.
type VulkanAllocator struct {
	mu     sync.Mutex
	source blockSource
	blocks []*memoryBlock
	live   int
}

func NewVulkanAllocator(context *VulkanContext) *VulkanAllocator {
	return newAllocatorWithSource(&vulkanBlockSource{
		device:    context.Device.LogicalDevice,
		callbacks: context.Allocator,
	})
}

func newAllocatorWithSource(source blockSource) *VulkanAllocator {
	return &VulkanAllocator{source: source}
}

// Allocate carves a region out of an existing block, growing the block list
// when nothing fits. Exhaustion propagates to the resource-creation caller.
func (va *VulkanAllocator) Allocate(info AllocationCreateInfo) (*Allocation, error) {
	if info.Alignment == 0 {
		info.Alignment = 1
	}

	va.mu.Lock()
	defer va.mu.Unlock()

	for _, block := range va.blocks {
		if block.typeIndex != info.TypeIndex || block.linear != info.Linear {
			continue
		}
		if offset, ok := block.fit(info.Size, info.Alignment); ok {
			va.live++
			return &Allocation{block: block, offset: offset, size: info.Size}, nil
		}
	}

	blockSize := allocatorBlockSize
	if info.Size > blockSize {
		blockSize = info.Size
	}
	handle, err := va.source.allocateBlock(blockSize, info.TypeIndex, info.HostVisible)
	if err != nil {
		return nil, err
	}
	block := &memoryBlock{
		handle:    handle,
		size:      blockSize,
		typeIndex: info.TypeIndex,
		linear:    info.Linear,
		regions:   []region{{offset: 0, size: blockSize, free: true}},
	}
	va.blocks = append(va.blocks, block)

	offset, ok := block.fit(info.Size, info.Alignment)
	if !ok {
		// A fresh block always fits its own request.
		return nil, core.ErrOutOfDeviceMemory
	}
	va.live++
	return &Allocation{block: block, offset: offset, size: info.Size}, nil
}

// Free returns the allocation's region to its block. Freeing twice is an
// error and leaves the allocator untouched.
func (va *VulkanAllocator) Free(allocation *Allocation) error {
	if allocation == nil {
		return nil
	}

	va.mu.Lock()
	defer va.mu.Unlock()

	if allocation.released {
		core.LogError("allocation at offset %d freed twice", allocation.offset)
		return core.ErrAllocationReleased
	}
	if err := allocation.block.release(allocation.offset); err != nil {
		return err
	}
	allocation.released = true
	va.live--
	return nil
}

// Live reports the number of outstanding allocations.
func (va *VulkanAllocator) Live() int {
	va.mu.Lock()
	defer va.mu.Unlock()
	return va.live
}

// Destroy retires every block. All allocations must already be freed; leaks
// are logged, not hidden.
func (va *VulkanAllocator) Destroy() {
	va.mu.Lock()
	defer va.mu.Unlock()

	if va.live != 0 {
		core.LogWarn("memory allocator destroyed with %d live allocations", va.live)
	}
	for _, block := range va.blocks {
		va.source.freeBlock(block.handle, block.handle.mapped != nil)
	}
	va.blocks = nil
}

// fit finds the first free region able to hold size at the given alignment
// and marks it used. Leading and trailing slack stay free.
func (mb *memoryBlock) fit(size, alignment vk.DeviceSize) (vk.DeviceSize, bool) {
	for i := 0; i < len(mb.regions); i++ {
		r := mb.regions[i]
		if !r.free {
			continue
		}
		aligned := alignUp(r.offset, alignment)
		padding := aligned - r.offset
		if r.size < padding+size {
			continue
		}

		replacement := make([]region, 0, 3)
		if padding > 0 {
			replacement = append(replacement, region{offset: r.offset, size: padding, free: true})
		}
		replacement = append(replacement, region{offset: aligned, size: size, free: false})
		if trailing := r.size - padding - size; trailing > 0 {
			replacement = append(replacement, region{offset: aligned + size, size: trailing, free: true})
		}

		mb.regions = append(mb.regions[:i], append(replacement, mb.regions[i+1:]...)...)
		return aligned, true
	}
	return 0, false
}

// release frees the used region at offset and merges it with free neighbors.
func (mb *memoryBlock) release(offset vk.DeviceSize) error {
	for i := range mb.regions {
		if mb.regions[i].offset != offset || mb.regions[i].free {
			continue
		}
		mb.regions[i].free = true

		// Merge with the next region first so indices stay valid.
		if i+1 < len(mb.regions) && mb.regions[i+1].free {
			mb.regions[i].size += mb.regions[i+1].size
			mb.regions = append(mb.regions[:i+1], mb.regions[i+2:]...)
		}
		if i > 0 && mb.regions[i-1].free {
			mb.regions[i-1].size += mb.regions[i].size
			mb.regions = append(mb.regions[:i], mb.regions[i+1:]...)
		}
		return nil
	}
	return core.ErrAllocationReleased
}

func alignUp(value, alignment vk.DeviceSize) vk.DeviceSize {
	return (value + alignment - 1) &^ (alignment - 1)
}

// vulkanBlockSource backs blocks with real device memory.
type vulkanBlockSource struct {
	device    vk.Device
	callbacks *vk.AllocationCallbacks
}

func (s *vulkanBlockSource) allocateBlock(size vk.DeviceSize, typeIndex uint32, hostVisible bool) (*deviceBlock, error) {
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(s.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: typeIndex,
	}, s.callbacks, &memory)
	switch res {
	case vk.Success:
	case vk.ErrorOutOfDeviceMemory:
		return nil, core.ErrOutOfDeviceMemory
	case vk.ErrorOutOfHostMemory:
		return nil, core.ErrOutOfHostMemory
	default:
		core.LogError("AllocateMemory failed: %s", VulkanResultString(res))
		return nil, core.ErrOutOfDeviceMemory
	}

	block := &deviceBlock{memory: memory}
	if hostVisible {
		var mapped unsafe.Pointer
		if res := vk.MapMemory(s.device, memory, 0, vk.DeviceSize(vk.WholeSize), 0, &mapped); res != vk.Success {
			vk.FreeMemory(s.device, memory, s.callbacks)
			core.LogError("MapMemory failed: %s", VulkanResultString(res))
			return nil, core.ErrOutOfHostMemory
		}
		block.mapped = mapped
	}
	return block, nil
}

func (s *vulkanBlockSource) freeBlock(block *deviceBlock, mapped bool) {
	if mapped {
		vk.UnmapMemory(s.device, block.memory)
	}
	vk.FreeMemory(s.device, block.memory, s.callbacks)
	block.memory = vk.NullDeviceMemory
	block.mapped = nil
}
