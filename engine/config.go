package engine

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/reactor/engine/core"
)

// RendererConfig is the renderer section of the application config file.
type RendererConfig struct {
	EnableValidation bool   `toml:"enable_validation"`
	FramesInFlight   int    `toml:"frames_in_flight"`
	FenceTimeoutMS   int    `toml:"fence_timeout_ms"`
	PreferMailbox    bool   `toml:"prefer_mailbox"`
	MSAASamples      int    `toml:"msaa_samples"`
	RayTracingBonus  uint32 `toml:"raytracing_bonus"`
	ShaderDir        string `toml:"shader_dir"`
}

type ApplicationConfig struct {
	Name        string `toml:"name"`
	StartPosX   uint32 `toml:"start_pos_x"`
	StartPosY   uint32 `toml:"start_pos_y"`
	StartWidth  uint32 `toml:"start_width"`
	StartHeight uint32 `toml:"start_height"`

	Renderer RendererConfig `toml:"renderer"`
}

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:        "Reactor",
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 720,
		Renderer: RendererConfig{
			EnableValidation: false,
			FramesInFlight:   3,
			FenceTimeoutMS:   5000,
			PreferMailbox:    true,
			MSAASamples:      1,
			RayTracingBonus:  500,
			ShaderDir:        "assets/shaders",
		},
	}
}

// LoadConfig reads a TOML config file, applying defaults for anything the
// file does not set. A missing file is not an error; the defaults apply.
func LoadConfig(path string) (*ApplicationConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			core.LogInfo("Config file %s not found, using defaults.", path)
			return config, nil
		}
		core.LogError("failed to read config %s: %s", path, err.Error())
		return nil, err
	}

	if err := toml.Unmarshal(data, config); err != nil {
		core.LogError("failed to parse config %s: %s", path, err.Error())
		return nil, err
	}
	if config.Renderer.FramesInFlight <= 0 {
		config.Renderer.FramesInFlight = 3
	}
	if config.Renderer.FenceTimeoutMS <= 0 {
		config.Renderer.FenceTimeoutMS = 5000
	}
	return config, nil
}
