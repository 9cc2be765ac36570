package shaders

import (
	_ "embed"
	"regexp"
	"strconv"
)

//go:embed wave.wgsl
var WaveWGSL string

//go:embed raytrace.wgsl
var RaytraceWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string

//go:embed pack.wgsl
var PackWGSL string

// Wave kernel bindings.
const (
	WaveEntry        = "main"
	WaveVertexBuffer = "vertexBuffer"
	WaveTime         = "time"
	WaveVertexCount  = "vertexCount"
	WaveVertexStride = "vertexSizeInBytes"
)

// Geometry pack kernel bindings.
const (
	PackEntry     = "main"
	PackSource    = "src"
	PackDest      = "dst"
	PackCount     = "count"
	PackDstOffset = "dst_offset"
)

// Ray program selection.
const (
	RayPass     = "DynamicGeometry"
	RayGenEntry = "MainRayGenShader"
)

// captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
var workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

// WorkgroupSize returns the first @workgroup_size in src, [1,1,1] if there is none.
func WorkgroupSize(src string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(src)
	if match == nil {
		return size
	}
	for i := 0; i < 3; i++ {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil && v > 0 {
			size[i] = uint32(v)
		}
	}
	return size
}
