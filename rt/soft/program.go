package soft

import (
	"github.com/chewxy/math32"
	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

// Hit describes the closest intersection along a ray. Instance is -1 on a miss.
type Hit struct {
	T        float32
	Instance int
	Normal   mgl32.Vec3 // world space, unnormalized facing
	Material core.Material
}

func (h Hit) Missed() bool { return h.Instance < 0 }

// HitShader turns a traced ray into a color.
type HitShader func(hit Hit, dir mgl32.Vec3, env *Image) [4]float32

// RayProgram maps pass names to shaders. Only one ray generation entry exists.
type RayProgram struct {
	name   string
	entry  string
	passes map[string]HitShader
}

// NewRayProgram returns a program with the dynamic-geometry pass and the
// standard ray generation entry.
func NewRayProgram(name string) *RayProgram {
	return &RayProgram{
		name:   name,
		entry:  shaders.RayGenEntry,
		passes: map[string]HitShader{shaders.RayPass: Shade},
	}
}

func (p *RayProgram) Name() string               { return p.name }
func (p *RayProgram) HasEntry(entry string) bool { return entry == p.entry }

func (p *RayProgram) HasPass(pass string) bool {
	_, ok := p.passes[pass]
	return ok
}

func (p *RayProgram) SetPass(pass string, shade HitShader) { p.passes[pass] = shade }

var lightDir = mgl32.Vec3{1, 2, 1}.Normalize()

// Shade matches the GPU ray generation shader: environment on a miss, a
// diffuse term plus an environment reflection on a hit.
func Shade(hit Hit, dir mgl32.Vec3, env *Image) [4]float32 {
	if hit.Missed() {
		c := envLookup(env, dir)
		return [4]float32{c[0], c[1], c[2], 1}
	}
	n := hit.Normal.Normalize()
	if n.Dot(dir) > 0 {
		n = n.Mul(-1)
	}
	albedo := mgl32.Vec3(hit.Material.Albedo)
	diffuse := max(n.Dot(lightDir), 0)
	refl := envLookup(env, reflect(dir, n))
	c := albedo.Mul((0.15 + 0.85*diffuse) * 0.7).Add(refl.Mul(0.3))
	return [4]float32{c[0], c[1], c[2], 1}
}

func envLookup(env *Image, dir mgl32.Vec3) mgl32.Vec3 {
	if env == nil || env.Released() {
		return mgl32.Vec3{}
	}
	u := 0.5 + math32.Atan2(dir.X(), -dir.Z())/(2*math32.Pi)
	v := math32.Acos(mgl32.Clamp(dir.Y(), -1, 1)) / math32.Pi
	t := env.Sample(u, v)
	return mgl32.Vec3{t[0], t[1], t[2]}
}

func reflect(d, n mgl32.Vec3) mgl32.Vec3 {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}
