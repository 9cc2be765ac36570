package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Bounds is an axis-aligned box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// UnitCube covers [-1,1]^3, the local volume of both wave meshes.
func UnitCube() Bounds {
	return Bounds{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
}

// EmptyBounds returns an inverted box that any Extend call will overwrite.
func EmptyBounds() Bounds {
	inf := float32(math.Inf(1))
	return Bounds{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func (b Bounds) Empty() bool {
	return b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() || b.Min.Z() > b.Max.Z()
}

func (b Bounds) Extend(p mgl32.Vec3) Bounds {
	return Bounds{
		Min: mgl32.Vec3{min(b.Min.X(), p.X()), min(b.Min.Y(), p.Y()), min(b.Min.Z(), p.Z())},
		Max: mgl32.Vec3{max(b.Max.X(), p.X()), max(b.Max.Y(), p.Y()), max(b.Max.Z(), p.Z())},
	}
}

func (b Bounds) Union(o Bounds) Bounds {
	if o.Empty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

func (b Bounds) Centroid() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Transform returns the conservative world box of the eight transformed corners.
func (b Bounds) Transform(m mgl32.Mat4) Bounds {
	if b.Empty() {
		return b
	}
	corners := [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}
	out := EmptyBounds()
	for _, c := range corners {
		out = out.Extend(m.Mul4x1(c.Vec4(1.0)).Vec3())
	}
	return out
}

// IntersectRay returns the entry distance of a slab test, or false on a miss.
func (b Bounds) IntersectRay(origin, invDir mgl32.Vec3, tMax float32) (float32, bool) {
	tNear, tFar := float32(0), tMax
	for axis := 0; axis < 3; axis++ {
		t0 := (b.Min[axis] - origin[axis]) * invDir[axis]
		t1 := (b.Max[axis] - origin[axis]) * invDir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		// NaN from 0*inf on a slab boundary is ignored by the comparisons.
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return 0, false
		}
	}
	return tNear, true
}
