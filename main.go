package main

import (
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/reactor/engine"
	"github.com/spaghettifunk/reactor/engine/core"
	"github.com/spaghettifunk/reactor/engine/renderer/vulkan"
)

func main() {
	config, err := engine.LoadConfig("reactor.toml")
	if err != nil {
		core.LogFatal("failed to load config: %s", err.Error())
	}

	app := engine.New(config)
	if err := app.Initialize(); err != nil {
		core.LogFatal("failed to initialize engine: %s", err.Error())
	}

	if err := setupScene(app); err != nil {
		core.LogWarn("demo scene not loaded: %s", err.Error())
	}

	runErr := app.Run()
	if err := app.Shutdown(); err != nil {
		core.LogError("shutdown failed: %s", err.Error())
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func setupScene(app *engine.Engine) error {
	vertices := []vulkan.Vertex{
		{Position: mgl32.Vec3{0.0, 0.5, 0.0}, Color: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{-0.5, -0.5, 0.0}, Color: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{0.5, -0.5, 0.0}, Color: mgl32.Vec3{0, 0, 1}},
	}
	meshID, err := app.CreateMesh(vertices, []uint32{0, 1, 2})
	if err != nil {
		return err
	}

	materialID, err := app.CreateMaterial("triangle", "triangle.vert", "triangle.frag", false, true)
	if err != nil {
		return err
	}

	return app.AddToScene(meshID, materialID, mgl32.Ident4())
}
