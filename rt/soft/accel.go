package soft

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"
	"github.com/gekko3d/wavert/rt/bvh"
	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/geometry"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const blasLeafSize = 4

type triangle struct {
	a, e1, e2 mgl32.Vec3
}

type instance struct {
	id            uuid.UUID
	cfg           device.InstanceConfig
	worldToObject mgl32.Mat4
	tris          []triangle
	blas          *bvh.Tree
	world         core.Bounds
}

// AccelerationStructure is a two-level BVH: one triangle tree per instance in
// object space and a top-level tree over instance world bounds.
type AccelerationStructure struct {
	dev       *Device
	mu        sync.RWMutex
	instances []*instance
	tlas      *bvh.Tree
	builds    int
	released  bool
}

func (s *AccelerationStructure) AddInstance(cfg device.InstanceConfig) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return uuid.Nil, device.ErrReleased
	}
	if cfg.Vertices == nil || cfg.Indices == nil {
		return uuid.Nil, fmt.Errorf("%w: instance needs vertex and index buffers", device.ErrInvalidCommand)
	}
	if _, ok := cfg.Vertices.(*Buffer); !ok {
		return uuid.Nil, fmt.Errorf("%w: vertex buffer %q does not belong to the soft device", device.ErrInvalidCommand, cfg.Vertices.Label())
	}
	if _, ok := cfg.Indices.(*Buffer); !ok {
		return uuid.Nil, fmt.Errorf("%w: index buffer %q does not belong to the soft device", device.ErrInvalidCommand, cfg.Indices.Label())
	}
	if cfg.Indices.Count()%3 != 0 {
		return uuid.Nil, fmt.Errorf("%w: index count %d is not a triangle list", device.ErrInvalidCommand, cfg.Indices.Count())
	}

	inst := &instance{
		id:            uuid.New(),
		cfg:           cfg,
		worldToObject: cfg.Transform.Inv(),
		world:         cfg.Bounds.Transform(cfg.Transform),
	}
	s.instances = append(s.instances, inst)
	return inst.id, nil
}

func (s *AccelerationStructure) InstanceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// Builds counts completed build commands.
func (s *AccelerationStructure) Builds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builds
}

func (s *AccelerationStructure) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.instances = nil
	s.tlas = nil
	s.mu.Unlock()
	if s.dev != nil {
		s.dev.free(0, &s.dev.stats.StructsReleased)
	}
}

func (s *AccelerationStructure) Released() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.released
}

// build re-reads dynamic geometry and rebuilds both levels. Static instances
// keep the triangle tree from their first build.
func (s *AccelerationStructure) build() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return device.ErrReleased
	}

	builder := bvh.Builder{MaxLeafSize: blasLeafSize}
	worlds := make([]core.Bounds, len(s.instances))
	for i, inst := range s.instances {
		if inst.blas == nil || inst.cfg.Flags&device.InstanceDynamicGeometry != 0 {
			if err := inst.rebuild(&builder); err != nil {
				return err
			}
		}
		worlds[i] = inst.world
	}

	top := bvh.Builder{MaxLeafSize: 1}
	s.tlas = top.Build(worlds)
	s.builds++
	return nil
}

func (inst *instance) rebuild(builder *bvh.Builder) error {
	vb := inst.cfg.Vertices.(*Buffer)
	ib := inst.cfg.Indices.(*Buffer)
	if vb.Released() || ib.Released() {
		return fmt.Errorf("instance %s geometry: %w", inst.id, device.ErrReleased)
	}
	vertices := geometry.DecodeVertices(vb.Bytes(), vb.Stride())
	indices := geometry.DecodeIndices(ib.Bytes())

	inst.tris = inst.tris[:0]
	bounds := make([]core.Bounds, 0, len(indices)/3)
	local := core.EmptyBounds()
	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		if int(max(i0, i1, i2)) >= len(vertices) {
			return fmt.Errorf("%w: index out of range in instance %s", device.ErrInvalidCommand, inst.id)
		}
		a, b, c := vertices[i0], vertices[i1], vertices[i2]
		inst.tris = append(inst.tris, triangle{a: a, e1: b.Sub(a), e2: c.Sub(a)})
		tb := core.EmptyBounds().Extend(a).Extend(b).Extend(c)
		bounds = append(bounds, tb)
		local = local.Union(tb)
	}
	inst.blas = builder.Build(bounds)
	// Declared bounds stay in so a flat grid never yields a zero-height box.
	inst.world = inst.cfg.Bounds.Union(local).Transform(inst.cfg.Transform)
	return nil
}

// Trace returns the closest hit along origin + t*dir for t in (epsilon, tMax).
func (s *AccelerationStructure) Trace(origin, dir mgl32.Vec3, tMax float32) Hit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hit := Hit{T: tMax, Instance: -1}
	if s.tlas == nil {
		return hit
	}
	s.tlas.Intersect(origin, dir, tMax, func(item int, best float32) float32 {
		inst := s.instances[item]
		o := inst.worldToObject.Mul4x1(origin.Vec4(1)).Vec3()
		d := inst.worldToObject.Mul4x1(dir.Vec4(0)).Vec3()
		// d is not renormalized, so t stays in world units.
		inst.blas.Intersect(o, d, best, func(tri int, best float32) float32 {
			t, ok := inst.tris[tri].intersect(o, d, best)
			if !ok {
				return best
			}
			n := inst.tris[tri].e1.Cross(inst.tris[tri].e2)
			hit = Hit{
				T:        t,
				Instance: item,
				Normal:   inst.cfg.Transform.Mul4x1(n.Vec4(0)).Vec3(),
				Material: inst.cfg.Material,
			}
			return t
		})
		return hit.T
	})
	return hit
}

const hitEpsilon = 1e-4

// intersect is Moller-Trumbore.
func (tr *triangle) intersect(o, d mgl32.Vec3, tMax float32) (float32, bool) {
	p := d.Cross(tr.e2)
	det := tr.e1.Dot(p)
	if math32.Abs(det) < 1e-9 {
		return 0, false
	}
	inv := 1 / det
	s := o.Sub(tr.a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(tr.e1)
	v := d.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := tr.e2.Dot(q) * inv
	if t <= hitEpsilon || t >= tMax {
		return 0, false
	}
	return t, true
}
