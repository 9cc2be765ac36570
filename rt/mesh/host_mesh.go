package mesh

import (
	"fmt"

	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/geometry"
)

// HostMesh recomputes every vertex on the host and uploads the whole buffer each frame.
type HostMesh struct {
	resolution uint32
	buffers

	// Reused every frame; Buffer.Write copies before returning.
	staging []byte
}

func NewHostMesh(dev device.Device, resolution uint32, indices []uint32) (*HostMesh, error) {
	b, err := createBuffers(dev, "Host Mesh", resolution, indices, device.BufferUsageHostWrite)
	if err != nil {
		return nil, err
	}
	return &HostMesh{
		resolution: resolution,
		buffers:    b,
		staging:    make([]byte, 0, geometry.VertexCount(resolution)*geometry.VertexStride),
	}, nil
}

// Animate replaces the full vertex buffer content with the displaced grid at time.
func (m *HostMesh) Animate(time float32) error {
	if m.vertices == nil {
		return fmt.Errorf("host mesh: %w", device.ErrReleased)
	}
	m.staging = geometry.VertexBytes(m.staging, geometry.DisplacedVertices(m.resolution, time))
	return m.vertices.Write(0, m.staging)
}

func (m *HostMesh) Resolution() uint32          { return m.resolution }
func (m *HostMesh) VertexBuffer() device.Buffer { return m.vertices }
func (m *HostMesh) IndexBuffer() device.Buffer  { return m.indices }
func (m *HostMesh) Bounds() core.Bounds         { return core.UnitCube() }
func (m *HostMesh) Dynamic() bool               { return true }

func (m *HostMesh) Release() {
	m.release()
	m.staging = nil
}
