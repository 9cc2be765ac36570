package geometry

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// VertexStride is the size in bytes of one position-only vertex (float32x3).
const VertexStride = 12

// Wave parameters. The WGSL kernel in rt/shaders mirrors these constants.
const (
	WaveAmplitude = 0.1
	WaveSpeed     = 5.0
	WaveFrequency = 10.0
)

// VertexCount returns (res+1)^2.
func VertexCount(resolution uint32) int {
	n := int(resolution) + 1
	return n * n
}

// IndexCount returns 6*res^2.
func IndexCount(resolution uint32) int {
	r := int(resolution)
	return 6 * r * r
}

// Indices emits two triangles per grid cell on a (res+1)x(res+1) row-major vertex grid.
func Indices(resolution uint32) []uint32 {
	indices := make([]uint32, 0, IndexCount(resolution))
	row := resolution + 1
	for i := uint32(0); i < resolution; i++ {
		for j := uint32(0); j < resolution; j++ {
			indices = append(indices,
				i*row+j, (i+1)*row+j, (i+1)*row+j+1,
				i*row+j, (i+1)*row+j+1, i*row+j+1,
			)
		}
	}
	return indices
}

// FlatVertices lays the grid out on [-1,1]x{0}x[-1,1] with step 2/res.
// Positions are computed per index, not accumulated, so the corners land exactly on ±1.
func FlatVertices(resolution uint32) []mgl32.Vec3 {
	return layout(resolution, func(x, z float32) float32 { return 0 })
}

// DisplacedVertices is the host-side wave animation.
func DisplacedVertices(resolution uint32, time float32) []mgl32.Vec3 {
	return layout(resolution, func(x, z float32) float32 { return Displacement(x, z, time) })
}

// Displacement is the wave height at (x, z) for the given clock value.
func Displacement(x, z, time float32) float32 {
	return WaveAmplitude * math32.Cos(time*WaveSpeed-WaveFrequency*math32.Sqrt(x*x+z*z))
}

func layout(resolution uint32, height func(x, z float32) float32) []mgl32.Vec3 {
	vertices := make([]mgl32.Vec3, 0, VertexCount(resolution))
	res := float32(resolution)
	for zi := uint32(0); zi <= resolution; zi++ {
		z := -1 + 2*float32(zi)/res
		for xi := uint32(0); xi <= resolution; xi++ {
			x := -1 + 2*float32(xi)/res
			vertices = append(vertices, mgl32.Vec3{x, height(x, z), z})
		}
	}
	return vertices
}

// VertexBytes encodes positions in device layout, reusing dst when it is large enough.
func VertexBytes(dst []byte, vertices []mgl32.Vec3) []byte {
	size := len(vertices) * VertexStride
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	for i, v := range vertices {
		off := i * VertexStride
		binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v.X()))
		binary.LittleEndian.PutUint32(dst[off+4:], math.Float32bits(v.Y()))
		binary.LittleEndian.PutUint32(dst[off+8:], math.Float32bits(v.Z()))
	}
	return dst
}

// DecodeVertices reads positions back from a raw buffer with the given stride.
func DecodeVertices(data []byte, stride int) []mgl32.Vec3 {
	if stride <= 0 {
		return nil
	}
	vertices := make([]mgl32.Vec3, 0, len(data)/stride)
	for off := 0; off+VertexStride <= len(data); off += stride {
		vertices = append(vertices, mgl32.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
		})
	}
	return vertices
}

// IndexBytes encodes a u32 index list.
func IndexBytes(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// DecodeIndices is the inverse of IndexBytes.
func DecodeIndices(data []byte) []uint32 {
	indices := make([]uint32, len(data)/4)
	for i := range indices {
		indices[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return indices
}
