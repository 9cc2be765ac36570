package mesh

import (
	"testing"

	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/geometry"
	"github.com/gekko3d/wavert/rt/shaders"
	"github.com/gekko3d/wavert/rt/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paddedDevice allocates vertex storage with a stride the wave kernel cannot address.
type paddedDevice struct {
	*soft.Device
	stride int
}

func (d *paddedDevice) CreateBuffer(desc device.BufferDescriptor) (device.Buffer, error) {
	if desc.Usage.Has(device.BufferUsageVertex) {
		desc.Stride = d.stride
	}
	return d.Device.CreateBuffer(desc)
}

func newSoft(t *testing.T) *soft.Device {
	opts := soft.DefaultOptions()
	opts.Workers = 2
	dev := soft.New(opts)
	t.Cleanup(dev.Close)
	return dev
}

func TestHostMeshAnimateRewritesVertices(t *testing.T) {
	const res = 6
	dev := newSoft(t)
	m, err := NewHostMesh(dev, res, geometry.Indices(res))
	require.NoError(t, err)
	assert.True(t, m.Dynamic())
	assert.Equal(t, uint32(res), m.Resolution())
	assert.True(t, m.VertexBuffer().Usage().Has(device.BufferUsageHostWrite))
	assert.False(t, m.IndexBuffer().Usage().Has(device.BufferUsageHostWrite))

	vb := m.VertexBuffer().(*soft.Buffer)
	assert.Equal(t, geometry.FlatVertices(res), geometry.DecodeVertices(vb.Bytes(), geometry.VertexStride))

	require.NoError(t, m.Animate(0.3))
	assert.Equal(t, geometry.DisplacedVertices(res, 0.3), geometry.DecodeVertices(vb.Bytes(), geometry.VertexStride))

	// Same buffer, no reallocation.
	require.NoError(t, m.Animate(0.9))
	assert.Same(t, vb, m.VertexBuffer())
	assert.Equal(t, 2, dev.Stats().BuffersCreated)

	m.Release()
	m.Release()
	assert.True(t, vb.Released())
	assert.ErrorIs(t, m.Animate(1), device.ErrReleased)
	assert.Equal(t, 2, dev.Stats().BuffersReleased)
}

func TestMeshRejectsBadInput(t *testing.T) {
	dev := newSoft(t)
	_, err := NewHostMesh(dev, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = NewHostMesh(dev, 4, geometry.Indices(3))
	assert.Error(t, err)

	_, err = NewDeviceMesh(dev, nil, 4, geometry.Indices(4), true)
	assert.ErrorIs(t, err, device.ErrCapabilityUnavailable)
	assert.Zero(t, dev.Stats().BuffersCreated)
}

func TestMeshAllocationFailureReleasesPartialBuffers(t *testing.T) {
	const res = 4
	// Room for the vertex buffer only.
	dev := soft.New(soft.Options{Workers: 1, MemoryLimit: geometry.VertexCount(res) * geometry.VertexStride})
	_, err := NewHostMesh(dev, res, geometry.Indices(res))
	require.ErrorIs(t, err, device.ErrAllocation)

	stats := dev.Stats()
	assert.Equal(t, 1, stats.BuffersCreated)
	assert.Equal(t, 1, stats.BuffersReleased)
	assert.Zero(t, stats.LiveBytes)
}

func TestDeviceMeshRecordsDispatch(t *testing.T) {
	const res = 32
	dev := newSoft(t)
	k := soft.WaveKernel()
	m, err := NewDeviceMesh(dev, k, res, geometry.Indices(res), true)
	require.NoError(t, err)
	assert.NoError(t, m.StrideWarning)
	assert.Equal(t, uint32(64), m.GroupSize())
	assert.Equal(t, uint32(res), m.Resolution())
	assert.True(t, m.VertexBuffer().Usage().Has(device.BufferUsageRaw))

	cb := device.NewCommandBuffer("frame")
	require.NoError(t, m.Animate(cb, 0.5))
	require.Len(t, cb.Commands, 1)

	d := cb.Commands[0].Compute
	require.NotNil(t, d)
	assert.Equal(t, [3]uint32{18, 1, 1}, d.Groups) // ceil(1089 / 64)
	assert.Same(t, m.VertexBuffer(), d.Buffers[shaders.WaveVertexBuffer])
	assert.Equal(t, float32(0.5), d.Floats[shaders.WaveTime])
	assert.Equal(t, int32(1089), d.Ints[shaders.WaveVertexCount])
	assert.Equal(t, int32(geometry.VertexStride), d.Ints[shaders.WaveVertexStride])

	// Recording alone leaves the buffer flat.
	vb := m.VertexBuffer().(*soft.Buffer)
	assert.Equal(t, geometry.FlatVertices(res), geometry.DecodeVertices(vb.Bytes(), geometry.VertexStride))

	require.NoError(t, dev.Submit(cb))
	got := geometry.DecodeVertices(vb.Bytes(), geometry.VertexStride)
	want := geometry.DisplacedVertices(res, 0.5)
	for i := range want {
		assert.InDelta(t, want[i].Y(), got[i].Y(), 1e-6)
	}
}

func TestDeviceMeshStrideCheck(t *testing.T) {
	const res = 2
	dev := &paddedDevice{Device: newSoft(t), stride: 14}

	_, err := NewDeviceMesh(dev, soft.WaveKernel(), res, geometry.Indices(res), true)
	require.ErrorIs(t, err, device.ErrStrideAlignment)
	stats := dev.Stats()
	assert.Equal(t, stats.BuffersCreated, stats.BuffersReleased)

	m, err := NewDeviceMesh(dev, soft.WaveKernel(), res, geometry.Indices(res), false)
	require.NoError(t, err)
	assert.ErrorIs(t, m.StrideWarning, device.ErrStrideAlignment)
	m.Release()
}
