package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestPlacementRoundTrip(t *testing.T) {
	tr := Placement(mgl32.Vec3{-6, 0, 0}, 5)

	o2w := tr.ObjectToWorld()
	p := o2w.Mul4x1(mgl32.Vec4{1, 0, 1, 1}).Vec3()
	assert.True(t, p.ApproxEqual(mgl32.Vec3{-1, 0, 5}), "got %v", p)

	back := tr.WorldToObject().Mul4x1(p.Vec4(1)).Vec3()
	assert.True(t, back.ApproxEqual(mgl32.Vec3{1, 0, 1}), "got %v", back)
}

func TestBoundsTransform(t *testing.T) {
	world := UnitCube().Transform(Placement(mgl32.Vec3{6, 0, 0}, 5).ObjectToWorld())
	assert.True(t, world.Min.ApproxEqual(mgl32.Vec3{1, -5, -5}), "min %v", world.Min)
	assert.True(t, world.Max.ApproxEqual(mgl32.Vec3{11, 5, 5}), "max %v", world.Max)
}

func TestBoundsUnionAndEmpty(t *testing.T) {
	assert.True(t, EmptyBounds().Empty())

	b := EmptyBounds().Union(UnitCube())
	assert.Equal(t, UnitCube(), b)
	assert.Equal(t, b, b.Union(EmptyBounds()))
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, b.Centroid())
}

func TestBoundsIntersectRay(t *testing.T) {
	b := UnitCube()
	inf := float32(math.Inf(1))

	tHit, ok := b.IntersectRay(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{inf, inf, 1}, 100)
	assert.True(t, ok)
	assert.InDelta(t, 4, tHit, 1e-6)

	_, ok = b.IntersectRay(mgl32.Vec3{3, 0, -5}, mgl32.Vec3{inf, inf, 1}, 100)
	assert.False(t, ok)

	_, ok = b.IntersectRay(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{inf, inf, 1}, 2)
	assert.False(t, ok, "box beyond tMax")
}

func TestCameraZoom(t *testing.T) {
	cam := CameraState{FieldOfView: 90}
	assert.InDelta(t, 1, cam.Zoom(), 1e-6)

	cam.FieldOfView = 60
	assert.InDelta(t, math.Tan(math.Pi/6), cam.Zoom(), 1e-6)
}

func TestNewCameraState(t *testing.T) {
	cam := NewCameraState(mgl32.Vec3{0, 5, 20}, mgl32.Vec3{0, 0, 0}, 60, 320, 200)
	assert.True(t, cam.Valid())
	assert.True(t, cam.Position().ApproxEqualThreshold(mgl32.Vec3{0, 5, 20}, 1e-4), "got %v", cam.Position())

	// Camera looks down -Z in its own space.
	forward := cam.CameraToWorld.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3().Normalize()
	want := mgl32.Vec3{0, -5, -20}.Normalize()
	assert.True(t, forward.ApproxEqualThreshold(want, 1e-5), "got %v", forward)

	assert.False(t, CameraState{}.Valid())
}
