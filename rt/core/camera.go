package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is the per-frame camera record handed to the frame driver.
type CameraState struct {
	CameraToWorld mgl32.Mat4
	FieldOfView   float32 // vertical, degrees
	PixelWidth    int
	PixelHeight   int
}

// NewCameraState looks at target from eye with a y-up basis.
func NewCameraState(eye, target mgl32.Vec3, fov float32, width, height int) CameraState {
	view := mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
	return CameraState{
		CameraToWorld: view.Inv(),
		FieldOfView:   fov,
		PixelWidth:    width,
		PixelHeight:   height,
	}
}

// Zoom is tan(fov/2), the half-height of the image plane at unit distance.
func (c CameraState) Zoom() float32 {
	return math32.Tan(mgl32.DegToRad(c.FieldOfView) * 0.5)
}

func (c CameraState) Valid() bool {
	return c.PixelWidth > 0 && c.PixelHeight > 0
}

// Position is the translation column of the camera-to-world matrix.
func (c CameraState) Position() mgl32.Vec3 {
	return c.CameraToWorld.Col(3).Vec3()
}
