package mesh

import (
	"fmt"

	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/shaders"
)

// DeviceMesh keeps its vertices on the device; a wave kernel rewrites them in place.
// The index buffer is never touched after creation.
type DeviceMesh struct {
	resolution uint32
	buffers

	kernel    device.Kernel
	groupSize uint32

	// StrideWarning is set when the vertex stride is not a multiple of 4
	// and the mesh was created in non-strict mode.
	StrideWarning error
}

// NewDeviceMesh uploads the flat grid once. With strict set, a vertex stride that is not a
// multiple of 4 rejects creation; otherwise the violation is kept in StrideWarning.
func NewDeviceMesh(dev device.Device, kernel device.Kernel, resolution uint32, indices []uint32, strict bool) (*DeviceMesh, error) {
	if kernel == nil {
		return nil, fmt.Errorf("device mesh: no animation kernel: %w", device.ErrCapabilityUnavailable)
	}

	b, err := createBuffers(dev, "Device Mesh", resolution, indices, device.BufferUsageRaw)
	if err != nil {
		return nil, err
	}

	m := &DeviceMesh{
		resolution: resolution,
		buffers:    b,
		kernel:     kernel,
		groupSize:  kernel.GroupSize()[0],
	}
	if m.groupSize == 0 {
		m.groupSize = 1
	}

	if stride := b.vertices.Stride(); stride%4 != 0 {
		err := fmt.Errorf("device mesh stride %d: %w", stride, device.ErrStrideAlignment)
		if strict {
			m.release()
			return nil, err
		}
		m.StrideWarning = err
	}
	return m, nil
}

// Animate records the wave dispatch on cb. Nothing runs until cb is submitted.
func (m *DeviceMesh) Animate(cb *device.CommandBuffer, time float32) error {
	if m.vertices == nil {
		return fmt.Errorf("device mesh: %w", device.ErrReleased)
	}
	count := m.vertices.Count()
	cb.DispatchCompute(device.ComputeDispatch{
		Kernel:  m.kernel,
		Buffers: map[string]device.Buffer{shaders.WaveVertexBuffer: m.vertices},
		Floats:  map[string]float32{shaders.WaveTime: time},
		Ints: map[string]int32{
			shaders.WaveVertexCount:  int32(count),
			shaders.WaveVertexStride: int32(m.vertices.Stride()),
		},
		Groups: [3]uint32{device.GroupCount(count, m.groupSize), 1, 1},
	})
	return nil
}

func (m *DeviceMesh) Resolution() uint32          { return m.resolution }
func (m *DeviceMesh) GroupSize() uint32           { return m.groupSize }
func (m *DeviceMesh) VertexBuffer() device.Buffer { return m.vertices }
func (m *DeviceMesh) IndexBuffer() device.Buffer  { return m.indices }
func (m *DeviceMesh) Bounds() core.Bounds         { return core.UnitCube() }
func (m *DeviceMesh) Dynamic() bool               { return true }

func (m *DeviceMesh) Release() { m.release() }
