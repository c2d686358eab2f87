package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCameraStartsAtIdentity(t *testing.T) {
	camera := NewCamera()
	assert.Equal(t, mgl32.Ident4(), camera.View())
}

func TestCameraViewInvertsPosition(t *testing.T) {
	camera := NewCamera()
	camera.SetPosition(mgl32.Vec3{0, 0, 3})

	// A point at the camera's position maps to the view-space origin.
	origin := camera.View().Mul4x1(mgl32.Vec4{0, 0, 3, 1})
	assert.InDelta(t, 0, origin.X(), 1e-5)
	assert.InDelta(t, 0, origin.Y(), 1e-5)
	assert.InDelta(t, 0, origin.Z(), 1e-5)
}

func TestCameraForwardIsNegativeZ(t *testing.T) {
	camera := NewCamera()
	forward := camera.Forward()
	assert.InDelta(t, 0, forward.X(), 1e-5)
	assert.InDelta(t, 0, forward.Y(), 1e-5)
	assert.InDelta(t, -1, forward.Z(), 1e-5)
}

func TestCameraMoveForward(t *testing.T) {
	camera := NewCamera()
	camera.MoveForward(2)
	assert.InDelta(t, -2, camera.Position().Z(), 1e-5)

	camera.MoveBackward(2)
	assert.InDelta(t, 0, camera.Position().Z(), 1e-5)
}

func TestCameraPitchClamped(t *testing.T) {
	camera := NewCamera()
	camera.Pitch(10)
	assert.InDelta(t, pitchLimit, camera.EulerRotation().X(), 1e-5)
	camera.Pitch(-20)
	assert.InDelta(t, -pitchLimit, camera.EulerRotation().X(), 1e-5)
}
