package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/assets"
	"github.com/spaghettifunk/reactor/engine/core"
	"github.com/spaghettifunk/reactor/engine/platform"
	"github.com/spaghettifunk/reactor/engine/renderer"
	"github.com/spaghettifunk/reactor/engine/renderer/components"
	"github.com/spaghettifunk/reactor/engine/renderer/vulkan"
)

// SceneObject ties uploaded geometry to a material and a transform.
type SceneObject struct {
	MeshID     uuid.UUID
	MaterialID uuid.UUID
	Model      mgl32.Mat4
}

// Engine is the application root: it owns the platform window, the renderer
// session, the shader catalog and every mesh and material handle.
type Engine struct {
	config   *ApplicationConfig
	platform *platform.Platform
	camera   *components.Camera
	shaders  *assets.ShaderCatalog
	clock    *core.Clock

	meshes    map[uuid.UUID]*vulkan.VulkanMesh
	materials map[uuid.UUID]*vulkan.VulkanMaterial
	scene     []SceneObject

	isRunning   bool
	isSuspended bool
	width       uint32
	height      uint32
}

func New(config *ApplicationConfig) *Engine {
	core.EventSystemInitialize()
	core.MetricsInitialize()

	return &Engine{
		config:    config,
		platform:  platform.New(),
		camera:    components.NewCamera(),
		clock:     core.NewClock(),
		meshes:    make(map[uuid.UUID]*vulkan.VulkanMesh),
		materials: make(map[uuid.UUID]*vulkan.VulkanMaterial),
		width:     config.StartWidth,
		height:    config.StartHeight,
	}
}

// Initialize opens the window, brings the renderer session up and loads the
// shader catalog.
func (e *Engine) Initialize() error {
	if err := e.platform.Startup(e.config.Name, e.config.StartPosX, e.config.StartPosY, e.config.StartWidth, e.config.StartHeight); err != nil {
		return err
	}

	if err := renderer.Initialize(e.platform, renderer.Options{
		ApplicationName:  e.config.Name,
		ApplicationVer:   1,
		EnableValidation: e.config.Renderer.EnableValidation,
		FramesInFlight:   e.config.Renderer.FramesInFlight,
		FenceTimeout:     time.Duration(e.config.Renderer.FenceTimeoutMS) * time.Millisecond,
		PreferMailbox:    e.config.Renderer.PreferMailbox,
		MSAASamples:      e.config.Renderer.MSAASamples,
		RayTracingBonus:  e.config.Renderer.RayTracingBonus,
	}); err != nil {
		return err
	}

	if e.config.Renderer.ShaderDir != "" {
		e.loadShaderCatalog(e.config.Renderer.ShaderDir)
	}

	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onQuit)

	e.camera.SetPosition(mgl32.Vec3{0, 0, 3})

	e.isRunning = true
	return nil
}

// loadShaderCatalog loads dir and starts the hot-reload watcher, so shader
// recompiles are picked up while the engine runs. Both are optional: the
// engine stays usable with an empty scene when either fails.
func (e *Engine) loadShaderCatalog(dir string) {
	catalog, err := assets.NewShaderCatalog(dir)
	if err != nil {
		core.LogWarn("shader catalog unavailable: %s", err.Error())
		return
	}
	if err := catalog.Watch(func(name string) {
		core.LogInfo("Shader %s updated on disk.", name)
	}); err != nil {
		core.LogWarn("shader hot reload unavailable: %s", err.Error())
	}
	e.shaders = catalog
}

func (e *Engine) onResized(code core.SystemEventCode, context core.EventContext) error {
	width := context.Data.U32[0]
	height := context.Data.U32[1]
	e.width = width
	e.height = height

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending.")
		e.isSuspended = true
	} else {
		e.isSuspended = false
	}
	renderer.OnResize(width, height)
	return nil
}

func (e *Engine) onQuit(code core.SystemEventCode, context core.EventContext) error {
	e.isRunning = false
	return nil
}

// Camera exposes the engine camera for application-side movement.
func (e *Engine) Camera() *components.Camera {
	return e.camera
}

// CreateMesh uploads geometry and returns its handle.
func (e *Engine) CreateMesh(vertices []vulkan.Vertex, indices []uint32) (uuid.UUID, error) {
	mesh, err := renderer.UploadMesh(vertices, indices)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	e.meshes[id] = mesh
	return id, nil
}

// DestroyMesh releases the mesh behind the handle. Unknown or already
// destroyed handles are a no-op.
func (e *Engine) DestroyMesh(id uuid.UUID) {
	if mesh, ok := e.meshes[id]; ok {
		renderer.WaitIdle()
		mesh.Release()
		delete(e.meshes, id)
	}
}

// CreateMaterial builds a pipeline from two catalog shaders and returns the
// material handle.
func (e *Engine) CreateMaterial(name, vertexShader, fragmentShader string, cullBackfaces, depthTest bool) (uuid.UUID, error) {
	if e.shaders == nil {
		return uuid.Nil, errors.New("no shader catalog configured")
	}
	vertexCode, ok := e.shaders.Get(vertexShader)
	if !ok {
		return uuid.Nil, fmt.Errorf("shader %q not in catalog", vertexShader)
	}
	fragmentCode, ok := e.shaders.Get(fragmentShader)
	if !ok {
		return uuid.Nil, fmt.Errorf("shader %q not in catalog", fragmentShader)
	}

	cullMode := vk.CullModeNone
	if cullBackfaces {
		cullMode = vk.CullModeBackBit
	}
	material, err := renderer.CreateMaterial(name, vulkan.PipelineConfig{
		VertexShader:   vertexCode,
		FragmentShader: fragmentCode,
		CullMode:       cullMode,
		DepthTest:      depthTest,
	})
	if err != nil {
		return uuid.Nil, err
	}
	e.materials[material.ID] = material
	return material.ID, nil
}

// AddToScene appends one draw of mesh with material at transform.
func (e *Engine) AddToScene(meshID, materialID uuid.UUID, model mgl32.Mat4) error {
	if _, ok := e.meshes[meshID]; !ok {
		return fmt.Errorf("unknown mesh handle %s", meshID)
	}
	if _, ok := e.materials[materialID]; !ok {
		return fmt.Errorf("unknown material handle %s", materialID)
	}
	e.scene = append(e.scene, SceneObject{MeshID: meshID, MaterialID: materialID, Model: model})
	return nil
}

func (e *Engine) buildPacket() *vulkan.RenderPacket {
	aspect := float32(1.0)
	if e.height > 0 {
		aspect = float32(e.width) / float32(e.height)
	}
	packet := &vulkan.RenderPacket{
		View:       e.camera.View(),
		Projection: mgl32.Perspective(mgl32.DegToRad(45.0), aspect, 0.1, 1000.0),
	}
	for _, object := range e.scene {
		packet.Commands = append(packet.Commands, vulkan.DrawCommand{
			Mesh:     e.meshes[object.MeshID],
			Material: e.materials[object.MaterialID],
			Model:    object.Model,
		})
	}
	return packet
}

// Run drives the frame loop until the window closes or the device stops
// responding.
func (e *Engine) Run() error {
	e.clock.Start()
	e.clock.Update()

	for e.isRunning && !e.platform.ShouldClose() {
		e.platform.PumpMessages()

		if e.isSuspended {
			continue
		}

		e.clock.Update()
		delta := e.clock.Delta()

		if err := renderer.DrawFrame(e.buildPacket()); err != nil {
			if errors.Is(err, core.ErrDeviceHang) {
				core.LogError("GPU stopped responding, shutting down.")
				return err
			}
			core.LogError("draw frame failed: %s", err.Error())
			return err
		}

		core.MetricsUpdate(delta)
	}
	return nil
}

// Shutdown releases every resource and tears the session down.
func (e *Engine) Shutdown() error {
	renderer.WaitIdle()

	if e.shaders != nil {
		e.shaders.Close()
		e.shaders = nil
	}

	for id, mesh := range e.meshes {
		mesh.Release()
		delete(e.meshes, id)
	}

	for id, material := range e.materials {
		renderer.DestroyMaterial(material)
		delete(e.materials, id)
	}

	if err := renderer.Shutdown(); err != nil {
		return err
	}
	return e.platform.Shutdown()
}
