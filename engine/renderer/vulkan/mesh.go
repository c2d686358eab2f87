package vulkan

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

// Vertex is the interleaved layout every pipeline in the engine consumes.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

const vertexStride = uint32(unsafe.Sizeof(Vertex{}))

func VertexBindingDescription() vk.VertexInputBindingDescription {
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    vertexStride,
		InputRate: vk.VertexInputRateVertex,
	}
}

func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Location: 0,
			Binding:  0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Position)),
		},
		{
			Location: 1,
			Binding:  0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
		{
			Location: 2,
			Binding:  0,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.TexCoord)),
		},
	}
}

// VulkanMesh is uploaded geometry: a device-local vertex buffer and an
// optional device-local index buffer.
type VulkanMesh struct {
	VertexBuffer *VulkanBuffer
	IndexBuffer  *VulkanBuffer
	VertexCount  uint32
	IndexCount   uint32
}

// MeshUpload pushes vertices and indices through a host-visible staging
// buffer into device-local memory. The copy is synchronous: it records a
// single-use command buffer on the shared transient pool and waits for the
// queue to drain, which is acceptable because uploads happen at load time,
// never inside the frame loop.
func MeshUpload(context *VulkanContext, vertices []Vertex, indices []uint32) (*VulkanMesh, error) {
	if len(vertices) == 0 {
		core.LogError("mesh upload with no vertices")
		return nil, core.ErrUnknown
	}

	mesh := &VulkanMesh{
		VertexCount: uint32(len(vertices)),
		IndexCount:  uint32(len(indices)),
	}

	vertexBytes := unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(vertexStride))
	vertexBuffer, err := uploadThroughStaging(context, vertexBytes, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, err
	}
	mesh.VertexBuffer = vertexBuffer

	if len(indices) > 0 {
		indexBytes := unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
		indexBuffer, err := uploadThroughStaging(context, indexBytes, vk.BufferUsageIndexBufferBit)
		if err != nil {
			mesh.Release()
			return nil, err
		}
		mesh.IndexBuffer = indexBuffer
	}
	return mesh, nil
}

func uploadThroughStaging(context *VulkanContext, data []byte, usage vk.BufferUsageFlagBits) (*VulkanBuffer, error) {
	size := vk.DeviceSize(len(data))

	staging, err := NewStagingBuffer(context, size)
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	if err := staging.LoadData(0, data); err != nil {
		return nil, err
	}

	deviceLocal, err := BufferCreate(context, size, usage|vk.BufferUsageTransferDstBit, false)
	if err != nil {
		return nil, err
	}
	if err := staging.CopyTo(deviceLocal, size); err != nil {
		deviceLocal.Release()
		return nil, err
	}
	return deviceLocal, nil
}

// Draw binds the mesh and issues the draw call. Indexed when an index buffer
// exists, plain otherwise.
func (m *VulkanMesh) Draw(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 1,
		[]vk.Buffer{m.VertexBuffer.Handle}, []vk.DeviceSize{0})
	if m.IndexBuffer != nil {
		vk.CmdBindIndexBuffer(commandBuffer.Handle, m.IndexBuffer.Handle, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexed(commandBuffer.Handle, m.IndexCount, 1, 0, 0, 0)
	} else {
		vk.CmdDraw(commandBuffer.Handle, m.VertexCount, 1, 0, 0)
	}
}

// Release frees both buffers. Idempotent.
func (m *VulkanMesh) Release() {
	if m.VertexBuffer != nil {
		m.VertexBuffer.Release()
		m.VertexBuffer = nil
	}
	if m.IndexBuffer != nil {
		m.IndexBuffer.Release()
		m.IndexBuffer = nil
	}
}
