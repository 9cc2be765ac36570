package wavert

import (
	"testing"

	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/soft"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oddStrideDevice pads vertex storage to a stride the wave kernel cannot address.
type oddStrideDevice struct {
	*soft.Device
}

func (d *oddStrideDevice) CreateBuffer(desc device.BufferDescriptor) (device.Buffer, error) {
	if desc.Usage.Has(device.BufferUsageVertex) {
		desc.Stride = 13
	}
	return d.Device.CreateBuffer(desc)
}

func TestResourcesPlacement(t *testing.T) {
	dev := soft.New(soft.Options{RayTracing: true, Compute: true, Workers: 1})
	res := NewResources(dev, testConfig(), nil)
	require.NoError(t, res.Activate(soft.WaveKernel()))

	instances := res.Manager().Instances()
	require.Len(t, instances, 2)
	assert.Same(t, res.HostMesh(), instances[0].Mesh)
	assert.Same(t, res.DeviceMesh(), instances[1].Mesh)
	assert.Equal(t, mgl32.Vec3{-6, 0, 0}, instances[0].Transform.Position)
	assert.Equal(t, mgl32.Vec3{6, 0, 0}, instances[1].Transform.Position)
	assert.Equal(t, mgl32.Vec3{5, 5, 5}, instances[1].Transform.Scale)
	assert.Len(t, res.Indices(), 6*8*8)
}

func TestEnsureOutput(t *testing.T) {
	dev := soft.New(soft.Options{Workers: 1})
	res := NewResources(dev, testConfig(), nil)

	created, err := res.EnsureOutput(8, 6)
	require.NoError(t, err)
	assert.True(t, created)
	out := res.Output()
	assert.True(t, out.RandomWrite())
	assert.Equal(t, device.FormatRGBA16Float, out.Format())

	created, err = res.EnsureOutput(8, 6)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = res.EnsureOutput(0, 6)
	assert.ErrorIs(t, err, device.ErrAllocation)
	assert.True(t, out.Released())
	assert.Nil(t, res.Output())
	w, h := res.OutputSize()
	assert.Zero(t, w+h)
}

func TestStrictStrideRejectsActivation(t *testing.T) {
	dev := &oddStrideDevice{Device: soft.New(soft.Options{RayTracing: true, Compute: true, Workers: 1})}
	res := NewResources(dev, testConfig(), nil)

	err := res.Activate(soft.WaveKernel())
	require.ErrorIs(t, err, device.ErrStrideAlignment)
	assert.False(t, res.Active())
	stats := dev.Stats()
	assert.Equal(t, stats.BuffersCreated, stats.BuffersReleased)
}

func TestLenientStrideWarns(t *testing.T) {
	dev := &oddStrideDevice{Device: soft.New(soft.Options{RayTracing: true, Compute: true, Workers: 1})}
	cfg := testConfig()
	cfg.StrictStride = false
	log := &recordingLogger{}
	res := NewResources(dev, cfg, log)

	require.NoError(t, res.Activate(soft.WaveKernel()))
	assert.True(t, res.Active())
	require.Len(t, log.warns, 1)
	assert.Contains(t, log.warns[0], "stride 13")
	res.Deactivate()
}
