package components

import (
	"github.com/go-gl/mathgl/mgl32"
)

// 89 degrees; keeps pitch away from gimbal lock.
const pitchLimit = float32(1.55334306)

// Camera produces the view matrix for the frame's global uniform. Position
// and rotation go through the setters so the matrix is only rebuilt when
// something changed.
type Camera struct {
	position      mgl32.Vec3
	eulerRotation mgl32.Vec3
	isDirty       bool
	viewMatrix    mgl32.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.position = mgl32.Vec3{}
	c.eulerRotation = mgl32.Vec3{}
	c.isDirty = false
	c.viewMatrix = mgl32.Ident4()
}

func (c *Camera) Position() mgl32.Vec3 {
	return c.position
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.position = position
	c.isDirty = true
}

func (c *Camera) EulerRotation() mgl32.Vec3 {
	return c.eulerRotation
}

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.eulerRotation = rotation
	c.isDirty = true
}

// View returns the camera's view matrix, rebuilding it if stale.
func (c *Camera) View() mgl32.Mat4 {
	if c.isDirty {
		rotation := c.orientation().Mat4()
		translation := mgl32.Translate3D(c.position.X(), c.position.Y(), c.position.Z())
		c.viewMatrix = translation.Mul4(rotation).Inv()
		c.isDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) orientation() mgl32.Quat {
	return mgl32.AnglesToQuat(c.eulerRotation.X(), c.eulerRotation.Y(), c.eulerRotation.Z(), mgl32.XYZ)
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.orientation().Rotate(mgl32.Vec3{0, 0, -1})
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.orientation().Rotate(mgl32.Vec3{1, 0, 0})
}

func (c *Camera) MoveForward(amount float32) {
	c.position = c.position.Add(c.Forward().Mul(amount))
	c.isDirty = true
}

func (c *Camera) MoveBackward(amount float32) {
	c.MoveForward(-amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.position = c.position.Add(c.Right().Mul(amount))
	c.isDirty = true
}

func (c *Camera) MoveLeft(amount float32) {
	c.MoveRight(-amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.position = c.position.Add(mgl32.Vec3{0, 1, 0}.Mul(amount))
	c.isDirty = true
}

func (c *Camera) MoveDown(amount float32) {
	c.MoveUp(-amount)
}

func (c *Camera) Yaw(amount float32) {
	c.eulerRotation[1] += amount
	c.isDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.eulerRotation[0] = mgl32.Clamp(c.eulerRotation[0]+amount, -pitchLimit, pitchLimit)
	c.isDirty = true
}
