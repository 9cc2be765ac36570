package accel

import (
	"testing"

	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/geometry"
	"github.com/gekko3d/wavert/rt/mesh"
	"github.com/gekko3d/wavert/rt/soft"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*soft.Device, *mesh.HostMesh, *mesh.DeviceMesh) {
	t.Helper()
	const res = 8
	dev := soft.New(soft.Options{RayTracing: true, Compute: true, Workers: 2})
	t.Cleanup(dev.Close)
	indices := geometry.Indices(res)
	host, err := mesh.NewHostMesh(dev, res, indices)
	require.NoError(t, err)
	dm, err := mesh.NewDeviceMesh(dev, soft.WaveKernel(), res, indices, true)
	require.NoError(t, err)
	return dev, host, dm
}

func TestRegisterAndWorldBounds(t *testing.T) {
	dev, host, dm := setup(t)
	m, err := NewManager(dev)
	require.NoError(t, err)

	a, err := m.Register(host, core.Placement(mgl32.Vec3{-6, 0, 0}, 5), core.DefaultMaterial())
	require.NoError(t, err)
	b, err := m.Register(dm, core.Placement(mgl32.Vec3{6, 0, 0}, 5), core.DefaultMaterial())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.Structure().InstanceCount())
	require.Len(t, m.Instances(), 2)

	wb := b.WorldBounds()
	assert.True(t, wb.Min.ApproxEqual(mgl32.Vec3{1, -5, -5}), "min %v", wb.Min)
	assert.True(t, wb.Max.ApproxEqual(mgl32.Vec3{11, 5, 5}), "max %v", wb.Max)

	all := m.WorldBounds()
	assert.True(t, all.Min.ApproxEqual(mgl32.Vec3{-11, -5, -5}), "min %v", all.Min)
	assert.True(t, all.Max.ApproxEqual(mgl32.Vec3{11, 5, 5}), "max %v", all.Max)
}

func TestRebuildRecordsBuildAfterAnimation(t *testing.T) {
	dev, host, dm := setup(t)
	m, err := NewManager(dev)
	require.NoError(t, err)
	_, err = m.Register(host, core.Placement(mgl32.Vec3{-6, 0, 0}, 5), core.DefaultMaterial())
	require.NoError(t, err)
	_, err = m.Register(dm, core.Placement(mgl32.Vec3{6, 0, 0}, 5), core.DefaultMaterial())
	require.NoError(t, err)

	const time = 0.0
	require.NoError(t, host.Animate(time))
	cb := device.NewCommandBuffer("frame")
	require.NoError(t, dm.Animate(cb, time))
	require.NoError(t, m.Rebuild(cb))
	assert.Equal(t, []device.CommandKind{device.CommandDispatchCompute, device.CommandBuildAccelerationStructure}, cb.Kinds())
	require.NoError(t, dev.Submit(cb))

	as := m.Structure().(*soft.AccelerationStructure)
	assert.Equal(t, 2, as.InstanceCount())

	// Both grid centres sit at y = 5 * 0.1 after displacement at t = 0.
	for _, x := range []float32{-6, 6} {
		hit := as.Trace(mgl32.Vec3{x + 0.01, 10, 0.02}, mgl32.Vec3{0, -1, 0}, 1e30)
		require.False(t, hit.Missed(), "x=%v", x)
		assert.InDelta(t, 9.5, hit.T, 0.05, "x=%v", x)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	dev, host, _ := setup(t)
	m, err := NewManager(dev)
	require.NoError(t, err)
	as := m.Structure()

	m.Release()
	m.Release()
	assert.True(t, m.Released())
	assert.True(t, as.Released())
	assert.Equal(t, 1, dev.Stats().StructsReleased)
	assert.Empty(t, m.Instances())

	_, err = m.Register(host, core.NewTransform(), core.DefaultMaterial())
	assert.ErrorIs(t, err, device.ErrReleased)
	assert.ErrorIs(t, m.Rebuild(device.NewCommandBuffer("late")), device.ErrReleased)
}
