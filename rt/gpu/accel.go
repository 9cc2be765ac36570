package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert/rt/bvh"
	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/shaders"
	"github.com/google/uuid"
)

type instance struct {
	id  uuid.UUID
	cfg device.InstanceConfig
	// packed is false until the geometry has been copied at its current offset.
	packed bool
}

// AccelerationStructure keeps the instance tree on the host and the geometry
// on the device. A build uploads the tree and instance records and packs every
// dynamic (or not yet packed) instance's buffers into shared storage.
type AccelerationStructure struct {
	dev       *Device
	instances []*instance
	tlas      *bvh.Tree

	nodes    *Buffer
	records  *Buffer
	vertices *Buffer
	indices  *Buffer

	built    bool
	released bool
}

func (d *Device) CreateAccelerationStructure() (device.AccelerationStructure, error) {
	return &AccelerationStructure{dev: d}, nil
}

func (s *AccelerationStructure) AddInstance(cfg device.InstanceConfig) (uuid.UUID, error) {
	if s.released {
		return uuid.Nil, device.ErrReleased
	}
	for _, b := range []device.Buffer{cfg.Vertices, cfg.Indices} {
		if b == nil {
			return uuid.Nil, fmt.Errorf("%w: instance needs vertex and index buffers", device.ErrInvalidCommand)
		}
		if _, ok := b.(*Buffer); !ok {
			return uuid.Nil, fmt.Errorf("%w: buffer %q does not belong to the webgpu device", device.ErrInvalidCommand, b.Label())
		}
	}
	if cfg.Indices.Count()%3 != 0 {
		return uuid.Nil, fmt.Errorf("%w: index count %d is not a triangle list", device.ErrInvalidCommand, cfg.Indices.Count())
	}
	if cfg.Vertices.Stride()%4 != 0 || cfg.Vertices.Stride() < 12 {
		return uuid.Nil, fmt.Errorf("%w: vertex stride %d", device.ErrStrideAlignment, cfg.Vertices.Stride())
	}

	inst := &instance{id: uuid.New(), cfg: cfg}
	s.instances = append(s.instances, inst)
	// Offsets move with the tree order, so everything repacks.
	for _, in := range s.instances {
		in.packed = false
	}
	return inst.id, nil
}

func (s *AccelerationStructure) InstanceCount() int { return len(s.instances) }
func (s *AccelerationStructure) Released() bool     { return s.released }

func (s *AccelerationStructure) Release() {
	if s.released {
		return
	}
	s.released = true
	for _, b := range []*Buffer{s.nodes, s.records, s.vertices, s.indices} {
		if b != nil {
			b.Release()
		}
	}
	s.nodes, s.records, s.vertices, s.indices = nil, nil, nil, nil
	s.instances = nil
}

func (s *AccelerationStructure) configs() []device.InstanceConfig {
	cfgs := make([]device.InstanceConfig, len(s.instances))
	for i, in := range s.instances {
		cfgs[i] = in.cfg
	}
	return cfgs
}

// buildTree orders instances by a one-per-leaf tree over their world bounds.
func buildTree(cfgs []device.InstanceConfig) *bvh.Tree {
	bounds := make([]core.Bounds, len(cfgs))
	for i, cfg := range cfgs {
		bounds[i] = cfg.Bounds.Transform(cfg.Transform)
	}
	b := bvh.Builder{MaxLeafSize: 1}
	return b.Build(bounds)
}

// planLayout assigns packed offsets in tree order and returns the records in that
// order with the total word counts.
func planLayout(cfgs []device.InstanceConfig, order []int) ([]instanceRecord, int, int) {
	records := make([]instanceRecord, 0, len(order))
	vertexWords, indexWords := 0, 0
	for _, idx := range order {
		cfg := cfgs[idx]
		records = append(records, instanceRecord{
			WorldToObject: cfg.Transform.Inv(),
			ObjectToWorld: cfg.Transform,
			Albedo:        cfg.Material.Albedo,
			VertexOffset:  uint32(vertexWords),
			VertexStride:  uint32(cfg.Vertices.Stride() / 4),
			IndexOffset:   uint32(indexWords),
			IndexCount:    uint32(cfg.Indices.Count()),
		})
		vertexWords += cfg.Vertices.Size() / 4
		indexWords += cfg.Indices.Size() / 4
	}
	return records, vertexWords, indexWords
}

// ensureBuffer grows b to at least size bytes, dropping the old contents.
func (s *AccelerationStructure) ensureBuffer(b **Buffer, label string, size int) (bool, error) {
	size = max(size, 16)
	if *b != nil && (*b).Size() >= size {
		return false, nil
	}
	if *b != nil {
		(*b).Release()
	}
	nb, err := s.dev.CreateBuffer(device.BufferDescriptor{
		Label: label, Count: size / 4, Stride: 4, Usage: device.BufferUsageRaw,
	})
	if err != nil {
		*b = nil
		return false, err
	}
	*b = nb.(*Buffer)
	return true, nil
}

func (s *AccelerationStructure) encodeBuild(encoder *wgpu.CommandEncoder, f *frameResources) error {
	cfgs := s.configs()
	s.tlas = buildTree(cfgs)
	records, vertexWords, indexWords := planLayout(cfgs, s.tlas.Order)

	grewV, err := s.ensureBuffer(&s.vertices, "Packed Vertices", vertexWords*4)
	if err != nil {
		return err
	}
	grewI, err := s.ensureBuffer(&s.indices, "Packed Indices", indexWords*4)
	if err != nil {
		return err
	}
	if grewV || grewI {
		for _, in := range s.instances {
			in.packed = false
		}
	}

	nodes := s.tlas.Bytes()
	if _, err := s.ensureBuffer(&s.nodes, "TLAS Nodes", len(nodes)); err != nil {
		return err
	}
	if err := s.nodes.Write(0, nodes); err != nil {
		return err
	}
	if len(records) > 0 {
		data := make([]byte, 0, len(records)*InstanceSize)
		for i := range records {
			data = records[i].appendBytes(data)
		}
		if _, err := s.ensureBuffer(&s.records, "Instances", len(data)); err != nil {
			return err
		}
		if err := s.records.Write(0, data); err != nil {
			return err
		}
	} else if _, err := s.ensureBuffer(&s.records, "Instances", InstanceSize); err != nil {
		return err
	}

	pack, err := s.dev.packKernel()
	if err != nil {
		return err
	}
	for i, idx := range s.tlas.Order {
		in := s.instances[idx]
		if in.packed && in.cfg.Flags&device.InstanceDynamicGeometry == 0 {
			continue
		}
		r := records[i]
		if err := s.dev.encodeCompute(encoder, packDispatch(pack, in.cfg.Vertices, s.vertices, r.VertexOffset), f); err != nil {
			return err
		}
		if err := s.dev.encodeCompute(encoder, packDispatch(pack, in.cfg.Indices, s.indices, r.IndexOffset), f); err != nil {
			return err
		}
		in.packed = true
	}
	s.built = true
	return nil
}

func packDispatch(k *Kernel, src, dst device.Buffer, offset uint32) *device.ComputeDispatch {
	words := src.Size() / 4
	return &device.ComputeDispatch{
		Kernel:  k,
		Buffers: map[string]device.Buffer{shaders.PackSource: src, shaders.PackDest: dst},
		Ints: map[string]int32{
			shaders.PackCount:     int32(words),
			shaders.PackDstOffset: int32(offset),
		},
		Groups: [3]uint32{device.GroupCount(words, k.GroupSize()[0]), 1, 1},
	}
}

func (d *Device) packKernel() (*Kernel, error) {
	if d.pack != nil {
		return d.pack, nil
	}
	k, err := d.NewKernel("PackGeometry", shaders.PackWGSL, shaders.PackEntry, KernelLayout{
		Buffers: []string{shaders.PackSource, shaders.PackDest},
		Uniforms: []UniformField{
			{Name: shaders.PackCount, Kind: UniformInt},
			{Name: shaders.PackDstOffset, Kind: UniformInt},
		},
	})
	if err != nil {
		return nil, err
	}
	d.pack = k
	return k, nil
}
