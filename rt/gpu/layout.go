package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL Camera
// struct Camera {
//    inv_view : mat4x4<f32>; (64)
//    zoom : f32; (4)
//    width : u32; (4)
//    height : u32; (4)
//    instance_count : u32; (4)
// }; -> 80 bytes
const CameraSize = 80

// Matches WGSL Instance
// struct Instance {
//    world_to_object : mat4x4<f32>; (64)
//    object_to_world : mat4x4<f32>; (64)
//    albedo : vec4<f32>; (16)
//    vertex_offset, vertex_stride, index_offset, index_count : u32; (16)
// }; -> 160 bytes
//
// Offsets and strides are in 32-bit words of the packed geometry buffers.
const InstanceSize = 160

type instanceRecord struct {
	WorldToObject mgl32.Mat4
	ObjectToWorld mgl32.Mat4
	Albedo        [3]float32
	VertexOffset  uint32
	VertexStride  uint32
	IndexOffset   uint32
	IndexCount    uint32
}

func putMat4(buf []byte, m mgl32.Mat4) {
	// mgl32 is column major like WGSL.
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

func cameraBytes(invView mgl32.Mat4, zoom float32, width, height, instances uint32) []byte {
	buf := make([]byte, CameraSize)
	putMat4(buf[0:64], invView)
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(zoom))
	binary.LittleEndian.PutUint32(buf[68:72], width)
	binary.LittleEndian.PutUint32(buf[72:76], height)
	binary.LittleEndian.PutUint32(buf[76:80], instances)
	return buf
}

func (r *instanceRecord) appendBytes(dst []byte) []byte {
	buf := make([]byte, InstanceSize)
	putMat4(buf[0:64], r.WorldToObject)
	putMat4(buf[64:128], r.ObjectToWorld)
	for i, c := range r.Albedo {
		binary.LittleEndian.PutUint32(buf[128+i*4:], math.Float32bits(c))
	}
	binary.LittleEndian.PutUint32(buf[140:144], math.Float32bits(1))
	binary.LittleEndian.PutUint32(buf[144:148], r.VertexOffset)
	binary.LittleEndian.PutUint32(buf[148:152], r.VertexStride)
	binary.LittleEndian.PutUint32(buf[152:156], r.IndexOffset)
	binary.LittleEndian.PutUint32(buf[156:160], r.IndexCount)
	return append(dst, buf...)
}
