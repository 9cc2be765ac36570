package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/shaders"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hostBuffer stands in for device buffers in layout planning.
type hostBuffer struct {
	count, stride int
}

func (b hostBuffer) Label() string                    { return "host" }
func (b hostBuffer) Count() int                       { return b.count }
func (b hostBuffer) Stride() int                      { return b.stride }
func (b hostBuffer) Size() int                        { return b.count * b.stride }
func (b hostBuffer) Usage() device.BufferUsage        { return 0 }
func (b hostBuffer) Write(offset int, d []byte) error { return nil }
func (b hostBuffer) Release()                         {}
func (b hostBuffer) Released() bool                   { return false }

func word(buf []byte, off int) uint32 { return binary.LittleEndian.Uint32(buf[off:]) }
func float(buf []byte, off int) float32 {
	return math.Float32frombits(word(buf, off))
}

func TestWaveUniformPacking(t *testing.T) {
	layout := KernelLayout{
		Buffers: []string{shaders.WaveVertexBuffer},
		Uniforms: []UniformField{
			{Name: shaders.WaveTime, Kind: UniformFloat},
			{Name: shaders.WaveVertexCount, Kind: UniformInt},
			{Name: shaders.WaveVertexStride, Kind: UniformInt},
		},
	}
	data := layout.packUniforms(
		map[string]float32{shaders.WaveTime: 1.5},
		map[string]int32{shaders.WaveVertexCount: 1089, shaders.WaveVertexStride: 12},
	)
	require.Len(t, data, 16)
	assert.Equal(t, float32(1.5), float(data, 0))
	assert.Equal(t, uint32(1089), word(data, 4))
	assert.Equal(t, uint32(12), word(data, 8))
	assert.Zero(t, word(data, 12))
}

func TestUniformSizeRoundsToSixteen(t *testing.T) {
	assert.Equal(t, 0, KernelLayout{}.uniformSize())
	five := make([]UniformField, 5)
	assert.Equal(t, 32, KernelLayout{Uniforms: five}.uniformSize())
}

func TestCameraBytes(t *testing.T) {
	inv := mgl32.Translate3D(1, 2, 3)
	data := cameraBytes(inv, 0.5, 640, 480, 2)
	require.Len(t, data, CameraSize)
	// Column 3 holds the translation.
	assert.Equal(t, float32(1), float(data, 48))
	assert.Equal(t, float32(2), float(data, 52))
	assert.Equal(t, float32(3), float(data, 56))
	assert.Equal(t, float32(0.5), float(data, 64))
	assert.Equal(t, uint32(640), word(data, 68))
	assert.Equal(t, uint32(480), word(data, 72))
	assert.Equal(t, uint32(2), word(data, 76))
}

func TestPlanLayoutFollowsTreeOrder(t *testing.T) {
	left := core.Placement(mgl32.Vec3{-6, 0, 0}, 5).ObjectToWorld()
	right := core.Placement(mgl32.Vec3{6, 0, 0}, 5).ObjectToWorld()
	cfgs := []device.InstanceConfig{
		{
			Vertices: hostBuffer{count: 9, stride: 16}, Indices: hostBuffer{count: 24, stride: 4},
			Transform: right, Bounds: core.UnitCube(),
			Material: core.Material{Albedo: [3]float32{1, 0, 0}},
		},
		{
			Vertices: hostBuffer{count: 4, stride: 12}, Indices: hostBuffer{count: 6, stride: 4},
			Transform: left, Bounds: core.UnitCube(),
			Material: core.Material{Albedo: [3]float32{0, 1, 0}},
		},
	}
	tree := buildTree(cfgs)
	require.Len(t, tree.Order, 2)

	records, vertexWords, indexWords := planLayout(cfgs, tree.Order)
	require.Len(t, records, 2)
	assert.Equal(t, 9*4+4*3, vertexWords)
	assert.Equal(t, 30, indexWords)

	first, second := cfgs[tree.Order[0]], cfgs[tree.Order[1]]
	assert.Equal(t, first.Material.Albedo, records[0].Albedo)
	assert.Equal(t, second.Material.Albedo, records[1].Albedo)
	assert.Zero(t, records[0].VertexOffset)
	assert.Equal(t, uint32(first.Vertices.Size()/4), records[1].VertexOffset)
	assert.Equal(t, uint32(first.Indices.Count()), records[1].IndexOffset)
	assert.Equal(t, uint32(first.Vertices.Stride()/4), records[0].VertexStride)
	assert.True(t, records[0].WorldToObject.Mul4(records[0].ObjectToWorld).ApproxEqual(mgl32.Ident4()))
}

func TestInstanceRecordBytes(t *testing.T) {
	r := instanceRecord{
		WorldToObject: mgl32.Ident4(),
		ObjectToWorld: mgl32.Scale3D(2, 2, 2),
		Albedo:        [3]float32{0.8, 0.8, 0.85},
		VertexOffset:  12,
		VertexStride:  3,
		IndexOffset:   60,
		IndexCount:    6,
	}
	data := r.appendBytes(nil)
	require.Len(t, data, InstanceSize)
	assert.Equal(t, float32(1), float(data, 0))
	assert.Equal(t, float32(2), float(data, 64))
	assert.Equal(t, float32(0.85), float(data, 136))
	assert.Equal(t, float32(1), float(data, 140))
	assert.Equal(t, uint32(12), word(data, 144))
	assert.Equal(t, uint32(3), word(data, 148))
	assert.Equal(t, uint32(60), word(data, 152))
	assert.Equal(t, uint32(6), word(data, 156))

	two := r.appendBytes(data)
	assert.Len(t, two, 2*InstanceSize)
}

func TestBufferUsageAlwaysStorage(t *testing.T) {
	for _, u := range []device.BufferUsage{0, device.BufferUsageVertex, device.BufferUsageIndex | device.BufferUsageHostWrite} {
		assert.NotZero(t, bufferUsage(u)&wgpu.BufferUsageStorage)
	}
	assert.Equal(t, uint64(16), alignedSize(13))
	assert.Equal(t, uint64(12), alignedSize(12))
}
