package vulkan

import (
	"math"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
	"github.com/spaghettifunk/reactor/engine/platform"
)

// RendererOptions is the renderer's slice of the application config.
type RendererOptions struct {
	ApplicationName  string
	ApplicationVer   uint32
	EnableValidation bool
	FramesInFlight   int
	FenceTimeout     time.Duration
	PreferMailbox    bool
	MSAASamples      int
	RayTracingBonus  uint32
}

// DrawCommand is one mesh drawn with one material at one transform.
type DrawCommand struct {
	Mesh     *VulkanMesh
	Material *VulkanMaterial
	Model    mgl32.Mat4
}

// RenderPacket carries everything the backend needs for one frame.
type RenderPacket struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Commands   []DrawCommand
}

// VulkanRenderer owns the whole GPU session. It implements the frame
// scheduler's operation surface, so DrawFrame is one protocol run with the
// current packet in scope.
type VulkanRenderer struct {
	platform *platform.Platform
	context  *VulkanContext
	options  RendererOptions

	// Packet for the frame currently being recorded.
	packet *RenderPacket

	debugging bool
}

func New(p *platform.Platform, options RendererOptions) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		context:  &VulkanContext{},
		options:  options,
	}
}

func (vr *VulkanRenderer) Context() *VulkanContext {
	return vr.context
}

// Initialize brings the session up in dependency order: loader, instance,
// surface, device, memory allocator, transfer pool, swapchain, renderpass,
// framebuffers, frame scheduler. Any failure aborts; nothing is retried.
func (vr *VulkanRenderer) Initialize() error {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize the Vulkan loader: %s", err.Error())
		return core.ErrInstanceCreationFailed
	}

	width, height := vr.platform.DrawableExtent()
	vr.context.FramebufferWidth = width
	vr.context.FramebufferHeight = height

	requiredExtensions := vr.platform.Window.GetRequiredInstanceExtensions()
	requiredLayers := []string{}
	if vr.options.EnableValidation {
		core.LogInfo("Validation layers enabled.")
		requiredExtensions = append(requiredExtensions, "VK_EXT_debug_report")
		requiredLayers = append(requiredLayers, "VK_LAYER_KHRONOS_validation")
		vr.debugging = true
	}

	applicationInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: vr.options.ApplicationVer,
		PApplicationName:   VulkanSafeString(vr.options.ApplicationName),
		PEngineName:        VulkanSafeString("Reactor Engine"),
		EngineVersion:      uint32(vk.MakeVersion(1, 0, 0)),
	}
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        applicationInfo,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(requiredExtensions),
		EnabledLayerCount:       uint32(len(requiredLayers)),
		PpEnabledLayerNames:     VulkanSafeStrings(requiredLayers),
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&instanceInfo, vr.context.Allocator, &instance); res != vk.Success {
		core.LogError("CreateInstance failed: %s", VulkanResultString(res))
		return core.ErrInstanceCreationFailed
	}
	vr.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		core.LogError("InitInstance failed: %s", err.Error())
		return core.ErrInstanceCreationFailed
	}

	if vr.debugging {
		if err := vr.createDebugMessenger(); err != nil {
			return err
		}
	}

	surfacePtr, err := vr.platform.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		core.LogError("failed to create window surface: %s", err.Error())
		return core.ErrSurfaceCreationFailed
	}
	vr.context.Surface = vk.SurfaceFromPointer(surfacePtr)

	if err := DeviceCreate(vr.context, vr.options.RayTracingBonus); err != nil {
		return err
	}

	vr.context.MemoryAllocator = NewVulkanAllocator(vr.context)

	// Shared pool for the synchronous single-use transfer path.
	transferPoolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: vr.context.Device.QueueFamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	var transferPool vk.CommandPool
	if res := vk.CreateCommandPool(vr.context.Device.LogicalDevice, &transferPoolInfo, vr.context.Allocator, &transferPool); res != vk.Success {
		core.LogError("CreateCommandPool failed: %s", VulkanResultString(res))
		return core.ErrDeviceCreationFailed
	}
	vr.context.TransferCommandPool = transferPool

	samples := sampleCountFromConfig(vr.options.MSAASamples)
	swapchain, err := SwapchainCreate(vr.context, width, height, vr.options.PreferMailbox, samples)
	if err != nil {
		return err
	}
	if swapchain.Handle == vk.NullSwapchain {
		// A minimized window at startup leaves no image format to build the
		// renderpass against. Refuse to come up half-initialized.
		core.LogError("window has zero drawable extent at startup")
		return core.ErrSwapchainCreationFailed
	}
	vr.context.Swapchain = swapchain

	renderpass, err := RenderpassCreate(vr.context, [4]float32{0.0, 0.0, 0.2, 1.0}, 1.0, 0)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = renderpass

	if err := swapchain.RegenerateFramebuffers(vr.context, renderpass); err != nil {
		return err
	}

	scheduler, err := NewFrameScheduler(vr.context, vr.options.FramesInFlight, vr.options.FenceTimeout)
	if err != nil {
		return err
	}
	vr.context.Scheduler = scheduler

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createDebugMessenger() error {
	debugInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	var callback vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugInfo, vr.context.Allocator, &callback); res != vk.Success {
		core.LogError("CreateDebugReportCallback failed: %s", VulkanResultString(res))
		return core.ErrInstanceCreationFailed
	}
	vr.context.debugMessenger = callback
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] %s", pLayerPrefix, pMessage)
	default:
		core.LogWarn("[%s] %s", pLayerPrefix, pMessage)
	}
	return vk.Bool32(vk.False)
}

func sampleCountFromConfig(samples int) vk.SampleCountFlagBits {
	switch samples {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	default:
		return vk.SampleCount1Bit
	}
}

// Resized records the new drawable size and flags the swapchain. The rebuild
// itself happens at the top of the next frame.
func (vr *VulkanRenderer) Resized(width, height uint32) {
	vr.context.FramebufferWidth = width
	vr.context.FramebufferHeight = height
	vr.context.FramebufferSizeGeneration++
	if vr.context.Swapchain != nil {
		vr.context.Swapchain.State = SwapchainStateNeedsRebuild
	}
}

// DrawFrame runs one iteration of the frame protocol with packet in scope.
func (vr *VulkanRenderer) DrawFrame(packet *RenderPacket) error {
	vr.packet = packet
	defer func() { vr.packet = nil }()
	return vr.context.Scheduler.RunFrame(vr)
}

// frameOps implementation.

func (vr *VulkanRenderer) swapchainState() SwapchainState {
	return vr.context.Swapchain.State
}

func (vr *VulkanRenderer) rebuildSwapchain() error {
	err := vr.context.Swapchain.Recreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err == nil && vr.context.Swapchain.State == SwapchainStateValid {
		vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration
	}
	return err
}

func (vr *VulkanRenderer) waitSlotFence(slot int) error {
	fence := vr.context.Scheduler.Slots[slot].InFlight
	timeout := uint64(vr.context.Scheduler.FenceTimeout.Nanoseconds())
	res := vk.WaitForFences(vr.context.Device.LogicalDevice, 1, []vk.Fence{fence}, vk.True, timeout)
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogError("fence wait exceeded %s on slot %d", vr.context.Scheduler.FenceTimeout, slot)
		return core.ErrDeviceHang
	default:
		core.LogError("WaitForFences failed: %s", VulkanResultString(res))
		return core.ErrUnknown
	}
}

func (vr *VulkanRenderer) resetSlotFence(slot int) error {
	fence := vr.context.Scheduler.Slots[slot].InFlight
	if res := vk.ResetFences(vr.context.Device.LogicalDevice, 1, []vk.Fence{fence}); res != vk.Success {
		core.LogError("ResetFences failed: %s", VulkanResultString(res))
		return core.ErrUnknown
	}
	return nil
}

func (vr *VulkanRenderer) acquireImage(slot int) (uint32, bool) {
	frameSlot := &vr.context.Scheduler.Slots[slot]
	imageIndex, ok := vr.context.Swapchain.AcquireNextImage(vr.context, math.MaxUint64, frameSlot.ImageAvailable, vk.NullFence)
	if ok {
		vr.context.ImageIndex = imageIndex
	}
	return imageIndex, ok
}

func (vr *VulkanRenderer) recordAndSubmit(slot int, imageIndex uint32) error {
	frameSlot := &vr.context.Scheduler.Slots[slot]
	commandBuffer := frameSlot.CommandBuffer

	if vr.packet != nil {
		if err := vr.context.Scheduler.UpdateGlobalUniform(slot, GlobalUniform{
			View:       vr.packet.View,
			Projection: vr.packet.Projection,
		}); err != nil {
			return err
		}
	}

	vk.ResetCommandBuffer(commandBuffer.Handle, 0)
	commandBuffer.Reset()
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}

	extent := vr.context.Swapchain.Extent

	// Flipped viewport: positive Y up, matching the projection convention.
	viewport := vk.Viewport{
		X:        0.0,
		Y:        float32(extent.Height),
		Width:    float32(extent.Width),
		Height:   -float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	vr.context.MainRenderpass.Begin(commandBuffer, vr.context.Swapchain.Framebuffers[imageIndex], extent)

	if vr.packet != nil {
		for i := range vr.packet.Commands {
			command := &vr.packet.Commands[i]
			command.Material.Pipeline.Bind(commandBuffer)
			vk.CmdBindDescriptorSets(commandBuffer.Handle, vk.PipelineBindPointGraphics,
				command.Material.Pipeline.Layout, 0, 1,
				[]vk.DescriptorSet{frameSlot.DescriptorSet}, 0, nil)
			model := command.Model
			vk.CmdPushConstants(commandBuffer.Handle, command.Material.Pipeline.Layout,
				vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, modelPushConstantSize,
				unsafe.Pointer(&model))
			command.Mesh.Draw(commandBuffer)
		}
	}

	vr.context.MainRenderpass.End(commandBuffer)
	if err := commandBuffer.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{frameSlot.ImageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{frameSlot.RenderComplete},
	}
	if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, frameSlot.InFlight); res != vk.Success {
		core.LogError("QueueSubmit failed: %s", VulkanResultString(res))
		return core.ErrUnknown
	}
	commandBuffer.UpdateSubmitted()
	return nil
}

func (vr *VulkanRenderer) present(slot int, imageIndex uint32) {
	frameSlot := &vr.context.Scheduler.Slots[slot]
	vr.context.Swapchain.Present(vr.context, vr.context.Device.GraphicsQueue, frameSlot.RenderComplete, imageIndex)
}

// UploadMesh pushes geometry to device-local memory through the staging path.
func (vr *VulkanRenderer) UploadMesh(vertices []Vertex, indices []uint32) (*VulkanMesh, error) {
	return MeshUpload(vr.context, vertices, indices)
}

// CreateMaterial compiles a pipeline from SPIR-V bytecode.
func (vr *VulkanRenderer) CreateMaterial(name string, config PipelineConfig) (*VulkanMaterial, error) {
	return MaterialCreate(vr.context, name, config)
}

// DestroyMaterial tears the material's pipeline down.
func (vr *VulkanRenderer) DestroyMaterial(material *VulkanMaterial) {
	material.Destroy(vr.context)
}

// WaitIdle blocks until the device finished all submitted work.
func (vr *VulkanRenderer) WaitIdle() {
	if vr.context.Device != nil && vr.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
	}
}

// Shutdown tears the session down in reverse dependency order.
func (vr *VulkanRenderer) Shutdown() error {
	vr.WaitIdle()

	if vr.context.Scheduler != nil {
		vr.context.Scheduler.Destroy(vr.context)
		vr.context.Scheduler = nil
	}
	if vr.context.MainRenderpass != nil {
		vr.context.MainRenderpass.Destroy(vr.context)
		vr.context.MainRenderpass = nil
	}
	if vr.context.Swapchain != nil {
		vr.context.Swapchain.Destroy(vr.context)
		vr.context.Swapchain = nil
	}
	if vr.context.TransferCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(vr.context.Device.LogicalDevice, vr.context.TransferCommandPool, vr.context.Allocator)
		vr.context.TransferCommandPool = vk.NullCommandPool
	}
	if vr.context.MemoryAllocator != nil {
		vr.context.MemoryAllocator.Destroy()
		vr.context.MemoryAllocator = nil
	}

	DeviceDestroy(vr.context)

	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}
	if vr.debugging && vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}
	if vr.context.Instance != nil {
		vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
		vr.context.Instance = nil
	}

	core.LogInfo("Vulkan renderer shut down.")
	return nil
}
