package engine

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirvBytes(payload uint32) []byte {
	words := []uint32{0x07230203, 0x00010000, 0, 1, payload}
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

// Engine initialization must start the catalog watcher, so shaders
// recompiled while the engine runs become visible without a restart.
func TestLoadShaderCatalogStartsWatcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "triangle.vert.spv"), spirvBytes(1), 0o644))

	e := New(DefaultConfig())
	e.loadShaderCatalog(dir)
	require.NotNil(t, e.shaders)
	defer e.shaders.Close()

	_, ok := e.shaders.Get("triangle.vert")
	assert.True(t, ok)

	// A shader compiled after startup must show up through the watcher.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "triangle.frag.spv"), spirvBytes(2), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		if _, ok := e.shaders.Get("triangle.frag"); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("new shader was not picked up by the watcher")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestLoadShaderCatalogMissingDirectory(t *testing.T) {
	e := New(DefaultConfig())
	e.loadShaderCatalog(filepath.Join(t.TempDir(), "missing"))
	assert.Nil(t, e.shaders)
}
