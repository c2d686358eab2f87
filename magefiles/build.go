//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the GLSL sources into the SPIR-V binaries the engine loads.
func (Build) Shaders() error {
	// glslc does not create parent directories.
	if err := os.MkdirAll("assets/shaders", 0o755); err != nil {
		return err
	}
	if _, err := executeCmd("glslc", withArgs("shaders/triangle.vert", "-o", "assets/shaders/triangle.vert.spv"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("glslc", withArgs("shaders/triangle.frag", "-o", "assets/shaders/triangle.frag.spv"), withStream()); err != nil {
		return err
	}
	return nil
}

// Builds the engine binary.
func (Build) Engine() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "reactor", "."), withStream()); err != nil {
		return err
	}
	return nil
}
