package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/reactor/engine/core"
)

// hostBlockSource backs blocks with plain host memory so the region
// bookkeeping runs without a device.
type hostBlockSource struct {
	backings  [][]byte
	allocated int
	freed     int
}

func (s *hostBlockSource) allocateBlock(size vk.DeviceSize, typeIndex uint32, hostVisible bool) (*deviceBlock, error) {
	block := &deviceBlock{}
	if hostVisible {
		backing := make([]byte, size)
		s.backings = append(s.backings, backing)
		block.mapped = unsafe.Pointer(&backing[0])
	}
	s.allocated++
	return block, nil
}

func (s *hostBlockSource) freeBlock(block *deviceBlock, mapped bool) {
	s.freed++
}

func TestAllocatorLiveCount(t *testing.T) {
	va := newAllocatorWithSource(&hostBlockSource{})

	a, err := va.Allocate(AllocationCreateInfo{Size: 256, Alignment: 16, TypeIndex: 0, Linear: true})
	require.NoError(t, err)
	b, err := va.Allocate(AllocationCreateInfo{Size: 512, Alignment: 16, TypeIndex: 0, Linear: true})
	require.NoError(t, err)
	assert.Equal(t, 2, va.Live())

	require.NoError(t, va.Free(a))
	assert.Equal(t, 1, va.Live())
	require.NoError(t, va.Free(b))
	assert.Equal(t, 0, va.Live())
}

func TestAllocatorDoubleFree(t *testing.T) {
	va := newAllocatorWithSource(&hostBlockSource{})

	a, err := va.Allocate(AllocationCreateInfo{Size: 64, Linear: true})
	require.NoError(t, err)

	require.NoError(t, va.Free(a))
	err = va.Free(a)
	assert.ErrorIs(t, err, core.ErrAllocationReleased)
	assert.Equal(t, 0, va.Live())
}

func TestAllocatorAlignment(t *testing.T) {
	va := newAllocatorWithSource(&hostBlockSource{})

	// Misalign the free cursor, then demand a large alignment.
	_, err := va.Allocate(AllocationCreateInfo{Size: 10, Alignment: 1, Linear: true})
	require.NoError(t, err)

	a, err := va.Allocate(AllocationCreateInfo{Size: 100, Alignment: 256, Linear: true})
	require.NoError(t, err)
	assert.Zero(t, a.Offset()%256)
}

func TestAllocatorMappedRoundTrip(t *testing.T) {
	va := newAllocatorWithSource(&hostBlockSource{})

	a, err := va.Allocate(AllocationCreateInfo{Size: 32, HostVisible: true, Linear: true})
	require.NoError(t, err)
	b, err := va.Allocate(AllocationCreateInfo{Size: 32, HostVisible: true, Linear: true})
	require.NoError(t, err)

	copy(a.MappedBytes(), []byte("first allocation"))
	copy(b.MappedBytes(), []byte("second one"))

	assert.Equal(t, []byte("first allocation"), a.MappedBytes()[:16])
	assert.Equal(t, []byte("second one"), b.MappedBytes()[:10])
}

func TestAllocatorMappedNilAfterFree(t *testing.T) {
	va := newAllocatorWithSource(&hostBlockSource{})

	a, err := va.Allocate(AllocationCreateInfo{Size: 32, HostVisible: true, Linear: true})
	require.NoError(t, err)
	require.NoError(t, va.Free(a))
	assert.Nil(t, a.MappedBytes())
}

func TestAllocatorDeviceLocalNotMapped(t *testing.T) {
	va := newAllocatorWithSource(&hostBlockSource{})

	a, err := va.Allocate(AllocationCreateInfo{Size: 32, Linear: true})
	require.NoError(t, err)
	assert.Nil(t, a.MappedBytes())
}

func TestAllocatorNeighborMerge(t *testing.T) {
	va := newAllocatorWithSource(&hostBlockSource{})

	a, err := va.Allocate(AllocationCreateInfo{Size: 1000, Linear: true})
	require.NoError(t, err)
	b, err := va.Allocate(AllocationCreateInfo{Size: 1000, Linear: true})
	require.NoError(t, err)
	c, err := va.Allocate(AllocationCreateInfo{Size: 1000, Linear: true})
	require.NoError(t, err)

	// Free the middle, then its left neighbor; the merged hole must fit a
	// request spanning both at the original offset.
	require.NoError(t, va.Free(b))
	require.NoError(t, va.Free(a))

	merged, err := va.Allocate(AllocationCreateInfo{Size: 2000, Linear: true})
	require.NoError(t, err)
	assert.Equal(t, a.Offset(), merged.Offset())

	require.NoError(t, va.Free(c))
	require.NoError(t, va.Free(merged))
	assert.Equal(t, 0, va.Live())
}

func TestAllocatorReusesBlocks(t *testing.T) {
	source := &hostBlockSource{}
	va := newAllocatorWithSource(source)

	for i := 0; i < 10; i++ {
		a, err := va.Allocate(AllocationCreateInfo{Size: 4096, Linear: true})
		require.NoError(t, err)
		require.NoError(t, va.Free(a))
	}
	assert.Equal(t, 1, source.allocated)
}

func TestAllocatorDedicatedBlockForLargeRequest(t *testing.T) {
	source := &hostBlockSource{}
	va := newAllocatorWithSource(source)

	a, err := va.Allocate(AllocationCreateInfo{Size: allocatorBlockSize * 2, Linear: true})
	require.NoError(t, err)
	assert.Equal(t, vk.DeviceSize(allocatorBlockSize*2), a.Size())
	assert.Equal(t, 1, source.allocated)
}

func TestAllocatorSeparatesLinearAndNonLinear(t *testing.T) {
	source := &hostBlockSource{}
	va := newAllocatorWithSource(source)

	_, err := va.Allocate(AllocationCreateInfo{Size: 64, TypeIndex: 0, Linear: true})
	require.NoError(t, err)
	_, err = va.Allocate(AllocationCreateInfo{Size: 64, TypeIndex: 0, Linear: false})
	require.NoError(t, err)

	assert.Equal(t, 2, source.allocated)
}

func TestAllocatorDestroyFreesBlocks(t *testing.T) {
	source := &hostBlockSource{}
	va := newAllocatorWithSource(source)

	a, err := va.Allocate(AllocationCreateInfo{Size: 64, Linear: true})
	require.NoError(t, err)
	require.NoError(t, va.Free(a))

	va.Destroy()
	assert.Equal(t, source.allocated, source.freed)
}
