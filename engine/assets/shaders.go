package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/reactor/engine/core"
	"github.com/spaghettifunk/reactor/engine/renderer/vulkan"
)

// ShaderCatalog holds the compiled SPIR-V binaries under one directory,
// keyed by file name without the .spv suffix. Every binary is validated on
// load; a file that fails validation never replaces a good entry.
type ShaderCatalog struct {
	mu      sync.RWMutex
	dir     string
	shaders map[string][]byte

	watcher  *fsnotify.Watcher
	onReload func(name string)
	done     chan struct{}
}

// NewShaderCatalog scans dir for .spv files and loads them all.
func NewShaderCatalog(dir string) (*ShaderCatalog, error) {
	catalog := &ShaderCatalog{
		dir:     dir,
		shaders: make(map[string][]byte),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		core.LogError("failed to read shader directory %s: %s", dir, err.Error())
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".spv") {
			continue
		}
		if err := catalog.load(filepath.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
	}
	core.LogInfo("Shader catalog loaded %d shaders from %s.", len(catalog.shaders), dir)
	return catalog, nil
}

func (sc *ShaderCatalog) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		core.LogError("failed to read shader %s: %s", path, err.Error())
		return err
	}
	if err := vulkan.ValidateSpirv(data); err != nil {
		core.LogError("shader %s is not valid SPIR-V", path)
		return err
	}

	name := strings.TrimSuffix(filepath.Base(path), ".spv")
	sc.mu.Lock()
	sc.shaders[name] = data
	sc.mu.Unlock()
	return nil
}

// Get returns the bytecode for name ("triangle.vert", for a file named
// triangle.vert.spv).
func (sc *ShaderCatalog) Get(name string) ([]byte, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	data, ok := sc.shaders[name]
	return data, ok
}

func (sc *ShaderCatalog) Names() []string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	names := make([]string, 0, len(sc.shaders))
	for name := range sc.shaders {
		names = append(names, name)
	}
	return names
}

// Watch reloads shaders as they are recompiled on disk. onReload runs on the
// watcher goroutine after a successful reload; invalid binaries are logged
// and skipped, keeping the previous bytecode in place.
func (sc *ShaderCatalog) Watch(onReload func(name string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		core.LogError("failed to create shader watcher: %s", err.Error())
		return err
	}
	if err := watcher.Add(sc.dir); err != nil {
		watcher.Close()
		core.LogError("failed to watch %s: %s", sc.dir, err.Error())
		return err
	}

	sc.watcher = watcher
	sc.onReload = onReload
	sc.done = make(chan struct{})

	go sc.watchLoop()
	core.LogInfo("Watching %s for shader changes.", sc.dir)
	return nil
}

func (sc *ShaderCatalog) watchLoop() {
	for {
		select {
		case event, ok := <-sc.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".spv") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := sc.load(event.Name); err != nil {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(event.Name), ".spv")
			core.LogInfo("Shader %s reloaded.", name)
			if sc.onReload != nil {
				sc.onReload(name)
			}
		case err, ok := <-sc.watcher.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher: %s", err.Error())
		case <-sc.done:
			return
		}
	}
}

// Close stops the watcher. Safe to call when Watch was never started.
func (sc *ShaderCatalog) Close() {
	if sc.watcher != nil {
		close(sc.done)
		sc.watcher.Close()
		sc.watcher = nil
	}
}
