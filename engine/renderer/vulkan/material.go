package vulkan

import (
	"github.com/google/uuid"
)

// VulkanMaterial is a handle-addressable pipeline. The engine hands the ID to
// callers and keeps the material itself internal.
type VulkanMaterial struct {
	ID       uuid.UUID
	Name     string
	Pipeline *VulkanPipeline
}

func MaterialCreate(context *VulkanContext, name string, config PipelineConfig) (*VulkanMaterial, error) {
	pipeline, err := PipelineCreate(context, context.MainRenderpass, context.Scheduler.GlobalDescriptorSetLayout, config)
	if err != nil {
		return nil, err
	}
	return &VulkanMaterial{
		ID:       uuid.New(),
		Name:     name,
		Pipeline: pipeline,
	}, nil
}

func (m *VulkanMaterial) Destroy(context *VulkanContext) {
	if m.Pipeline != nil {
		m.Pipeline.Destroy(context)
		m.Pipeline = nil
	}
}
