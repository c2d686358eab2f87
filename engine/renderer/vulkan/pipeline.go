package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

// Push constant block: one column-major model matrix.
const modelPushConstantSize = 64

// PipelineConfig is the configurable surface of the single graphics pipeline
// component. Everything else about pipeline state is fixed engine policy.
type PipelineConfig struct {
	VertexShader   []byte
	FragmentShader []byte
	CullMode       vk.CullModeFlagBits
	Wireframe      bool
	DepthTest      bool
}

type VulkanPipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

// PipelineCreate builds a graphics pipeline against renderpass. Viewport and
// scissor are dynamic so swapchain rebuilds never touch pipelines.
func PipelineCreate(context *VulkanContext, renderpass *VulkanRenderpass, globalLayout vk.DescriptorSetLayout, config PipelineConfig) (*VulkanPipeline, error) {
	vertexModule, err := ShaderModuleCreate(context, config.VertexShader)
	if err != nil {
		return nil, err
	}
	defer ShaderModuleDestroy(context, vertexModule)

	fragmentModule, err := ShaderModuleCreate(context, config.FragmentShader)
	if err != nil {
		return nil, err
	}
	defer ShaderModuleDestroy(context, fragmentModule)

	shaderStages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertexModule,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragmentModule,
			PName:  VulkanSafeString("main"),
		},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{VertexBindingDescription()},
		VertexAttributeDescriptionCount: uint32(len(VertexAttributeDescriptions())),
		PVertexAttributeDescriptions:    VertexAttributeDescriptions(),
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	polygonMode := vk.PolygonModeFill
	if config.Wireframe {
		polygonMode = vk.PolygonModeLine
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             polygonMode,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(config.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: context.Swapchain.Samples,
	}

	depthTest := vk.Bool32(vk.False)
	if config.DepthTest {
		depthTest = vk.True
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       depthTest,
		DepthWriteEnable:      depthTest,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	pushConstantRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       modelPushConstantSize,
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{globalLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushConstantRange},
	}

	pipeline := &VulkanPipeline{}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		core.LogError("CreatePipelineLayout failed: %s", VulkanResultString(res))
		return nil, core.ErrUnknown
	}
	pipeline.Layout = layout

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              pipeline.Layout,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(
		context.Device.LogicalDevice,
		vk.NullPipelineCache,
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineInfo},
		context.Allocator,
		pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.Layout, context.Allocator)
		core.LogError("CreateGraphicsPipelines failed: %s", VulkanResultString(res))
		return nil, core.ErrUnknown
	}
	pipeline.Handle = pipelines[0]

	core.LogDebug("Graphics pipeline created.")
	return pipeline, nil
}

func (p *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, vk.PipelineBindPointGraphics, p.Handle)
}

func (p *VulkanPipeline) Destroy(context *VulkanContext) {
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, p.Handle, context.Allocator)
		p.Handle = vk.NullPipeline
	}
	if p.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, p.Layout, context.Allocator)
		p.Layout = vk.NullPipelineLayout
	}
}
