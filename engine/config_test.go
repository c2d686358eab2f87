package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "Reactor", config.Name)
	assert.Equal(t, 3, config.Renderer.FramesInFlight)
	assert.Equal(t, 5000, config.Renderer.FenceTimeoutMS)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactor.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "Demo"
start_width = 800
start_height = 600

[renderer]
enable_validation = true
frames_in_flight = 2
msaa_samples = 4
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Demo", config.Name)
	assert.Equal(t, uint32(800), config.StartWidth)
	assert.True(t, config.Renderer.EnableValidation)
	assert.Equal(t, 2, config.Renderer.FramesInFlight)
	assert.Equal(t, 4, config.Renderer.MSAASamples)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5000, config.Renderer.FenceTimeoutMS)
	assert.Equal(t, "assets/shaders", config.Renderer.ShaderDir)
}

func TestLoadConfigRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = [unterminated"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigClampsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactor.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[renderer]
frames_in_flight = 0
fence_timeout_ms = -1
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, config.Renderer.FramesInFlight)
	assert.Equal(t, 5000, config.Renderer.FenceTimeoutMS)
}
