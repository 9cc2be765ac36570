// Package mesh owns the vertex/index buffer pairs of the two wave surfaces:
// HostMesh is rewritten by the host every frame, DeviceMesh is animated in place
// by a compute kernel.
package mesh

import (
	"errors"
	"fmt"

	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/geometry"
)

var ErrInvalidResolution = errors.New("mesh resolution must be at least 1")

// Mesh is what the acceleration structure needs from a surface.
type Mesh interface {
	VertexBuffer() device.Buffer
	IndexBuffer() device.Buffer
	// Bounds is the object-space volume the geometry stays inside while animating.
	Bounds() core.Bounds
	Dynamic() bool
}

type buffers struct {
	vertices device.Buffer
	indices  device.Buffer
}

func createBuffers(dev device.Device, label string, resolution uint32, indices []uint32, usage device.BufferUsage) (buffers, error) {
	if resolution == 0 {
		return buffers{}, ErrInvalidResolution
	}
	if len(indices) != geometry.IndexCount(resolution) {
		return buffers{}, fmt.Errorf("%s: %d indices for resolution %d", label, len(indices), resolution)
	}

	vb, err := dev.CreateBuffer(device.BufferDescriptor{
		Label:  label + " VB",
		Count:  geometry.VertexCount(resolution),
		Stride: geometry.VertexStride,
		Usage:  device.BufferUsageVertex | usage,
	})
	if err != nil {
		return buffers{}, fmt.Errorf("%s vertex buffer: %w", label, err)
	}

	ib, err := dev.CreateBuffer(device.BufferDescriptor{
		Label:  label + " IB",
		Count:  len(indices),
		Stride: 4,
		Usage:  device.BufferUsageIndex | (usage &^ device.BufferUsageHostWrite),
	})
	if err != nil {
		vb.Release()
		return buffers{}, fmt.Errorf("%s index buffer: %w", label, err)
	}

	// One-time uploads; the encoded slices go out of scope here.
	if err := vb.Write(0, geometry.VertexBytes(nil, geometry.FlatVertices(resolution))); err != nil {
		vb.Release()
		ib.Release()
		return buffers{}, fmt.Errorf("%s vertex upload: %w", label, err)
	}
	if err := ib.Write(0, geometry.IndexBytes(indices)); err != nil {
		vb.Release()
		ib.Release()
		return buffers{}, fmt.Errorf("%s index upload: %w", label, err)
	}
	return buffers{vertices: vb, indices: ib}, nil
}

func (b *buffers) release() {
	if b.vertices != nil {
		b.vertices.Release()
		b.vertices = nil
	}
	if b.indices != nil {
		b.indices.Release()
		b.indices = nil
	}
}
