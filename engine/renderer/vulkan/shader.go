package vulkan

import (
	"encoding/binary"
	"errors"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/reactor/engine/core"
)

// First word of every valid SPIR-V binary.
const spirvMagic uint32 = 0x07230203

var ErrInvalidSpirv = errors.New("bytecode is not a SPIR-V binary")

// ValidateSpirv checks the size and magic number of a shader binary before it
// is handed to the driver. Catches truncated files and GLSL source passed by
// mistake.
func ValidateSpirv(bytecode []byte) error {
	if len(bytecode) < 4 || len(bytecode)%4 != 0 {
		return ErrInvalidSpirv
	}
	if binary.LittleEndian.Uint32(bytecode[:4]) != spirvMagic {
		return ErrInvalidSpirv
	}
	return nil
}

// ShaderModuleCreate validates bytecode and wraps it in a vk.ShaderModule.
func ShaderModuleCreate(context *VulkanContext, bytecode []byte) (vk.ShaderModule, error) {
	if err := ValidateSpirv(bytecode); err != nil {
		core.LogError("shader module rejected: %s", err.Error())
		return vk.NullShaderModule, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(bytecode)),
		PCode:    bytesToWords(bytecode),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module); res != vk.Success {
		core.LogError("CreateShaderModule failed: %s", VulkanResultString(res))
		return vk.NullShaderModule, core.ErrUnknown
	}
	return module, nil
}

func ShaderModuleDestroy(context *VulkanContext, module vk.ShaderModule) {
	if module != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, module, context.Allocator)
	}
}

func bytesToWords(bytecode []byte) []uint32 {
	words := make([]uint32, len(bytecode)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(bytecode[i*4:])
	}
	return words
}
