package shaders

import (
	"strings"
	"testing"

	"github.com/gekko3d/wavert/rt/geometry"
	"github.com/stretchr/testify/assert"
)

func TestWorkgroupSize(t *testing.T) {
	assert.Equal(t, [3]uint32{64, 1, 1}, WorkgroupSize(WaveWGSL))
	assert.Equal(t, [3]uint32{8, 8, 1}, WorkgroupSize(RaytraceWGSL))
	assert.Equal(t, [3]uint32{128, 1, 1}, WorkgroupSize("@compute @workgroup_size(128) fn main() {}"))
	assert.Equal(t, [3]uint32{4, 2, 1}, WorkgroupSize("@workgroup_size( 4 , 2 )"))
	assert.Equal(t, [3]uint32{1, 1, 1}, WorkgroupSize("fn main() {}"))
}

func TestWaveKernelMatchesHostConstants(t *testing.T) {
	assert.True(t, strings.Contains(WaveWGSL, "AMPLITUDE : f32 = 0.1;"))
	assert.True(t, strings.Contains(WaveWGSL, "SPEED : f32 = 5.0;"))
	assert.True(t, strings.Contains(WaveWGSL, "FREQUENCY : f32 = 10.0;"))
	assert.Equal(t, float32(0.1), float32(geometry.WaveAmplitude))
	assert.Equal(t, float32(5), float32(geometry.WaveSpeed))
	assert.Equal(t, float32(10), float32(geometry.WaveFrequency))
}

func TestRaytraceEntryPresent(t *testing.T) {
	assert.Contains(t, RaytraceWGSL, "fn "+RayGenEntry+"(")
	assert.Contains(t, WaveWGSL, "fn "+WaveEntry+"(")
}

func TestPackKernel(t *testing.T) {
	assert.Equal(t, [3]uint32{64, 1, 1}, WorkgroupSize(PackWGSL))
	assert.Contains(t, PackWGSL, "fn "+PackEntry+"(")
	for _, name := range []string{PackSource, PackDest, PackCount, PackDstOffset} {
		assert.Contains(t, PackWGSL, name)
	}
}
