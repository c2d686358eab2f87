package renderer

import (
	"sync"
	"time"

	"github.com/spaghettifunk/reactor/engine/platform"
	"github.com/spaghettifunk/reactor/engine/renderer/vulkan"
)

// RendererBackend is the surface a graphics API implementation provides.
// Vulkan is the only backend today.
type RendererBackend interface {
	Initialize() error
	Shutdown() error
	Resized(width, height uint32)
	DrawFrame(packet *vulkan.RenderPacket) error
	UploadMesh(vertices []vulkan.Vertex, indices []uint32) (*vulkan.VulkanMesh, error)
	CreateMaterial(name string, config vulkan.PipelineConfig) (*vulkan.VulkanMaterial, error)
	DestroyMaterial(material *vulkan.VulkanMaterial)
	WaitIdle()
}

type RendererType uint8

const (
	Vulkan RendererType = iota
	DirectX
	Metal
	OpenGL
)

// Options mirrors the renderer section of the application config.
type Options struct {
	ApplicationName  string
	ApplicationVer   uint32
	EnableValidation bool
	FramesInFlight   int
	FenceTimeout     time.Duration
	PreferMailbox    bool
	MSAASamples      int
	RayTracingBonus  uint32
}

type Renderer struct {
	backend RendererBackend
}

var initRenderer sync.Once
var renderer *Renderer

func Initialize(p *platform.Platform, options Options) error {
	initRenderer.Do(func() {
		renderer = &Renderer{
			backend: vulkan.New(p, vulkan.RendererOptions{
				ApplicationName:  options.ApplicationName,
				ApplicationVer:   options.ApplicationVer,
				EnableValidation: options.EnableValidation,
				FramesInFlight:   options.FramesInFlight,
				FenceTimeout:     options.FenceTimeout,
				PreferMailbox:    options.PreferMailbox,
				MSAASamples:      options.MSAASamples,
				RayTracingBonus:  options.RayTracingBonus,
			}),
		}
	})
	return renderer.backend.Initialize()
}

func Shutdown() error {
	return renderer.backend.Shutdown()
}

func OnResize(width, height uint32) {
	renderer.backend.Resized(width, height)
}

func DrawFrame(packet *vulkan.RenderPacket) error {
	return renderer.backend.DrawFrame(packet)
}

func UploadMesh(vertices []vulkan.Vertex, indices []uint32) (*vulkan.VulkanMesh, error) {
	return renderer.backend.UploadMesh(vertices, indices)
}

func CreateMaterial(name string, config vulkan.PipelineConfig) (*vulkan.VulkanMaterial, error) {
	return renderer.backend.CreateMaterial(name, config)
}

func DestroyMaterial(material *vulkan.VulkanMaterial) {
	renderer.backend.DestroyMaterial(material)
}

func WaitIdle() {
	renderer.backend.WaitIdle()
}
