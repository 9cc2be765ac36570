package soft

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/geometry"
	"github.com/gekko3d/wavert/rt/shaders"
)

// KernelFunc runs one invocation. id is the global invocation id.
type KernelFunc func(id [3]uint32, d *device.ComputeDispatch) error

type Kernel struct {
	name      string
	groupSize [3]uint32
	fn        KernelFunc
}

func NewKernel(name string, groupSize [3]uint32, fn KernelFunc) *Kernel {
	for i := range groupSize {
		groupSize[i] = max(groupSize[i], 1)
	}
	return &Kernel{name: name, groupSize: groupSize, fn: fn}
}

func (k *Kernel) Name() string         { return k.name }
func (k *Kernel) GroupSize() [3]uint32 { return k.groupSize }

func (k *Kernel) runGroup(group [3]uint32, d *device.ComputeDispatch) error {
	gs := k.groupSize
	for z := uint32(0); z < gs[2]; z++ {
		for y := uint32(0); y < gs[1]; y++ {
			for x := uint32(0); x < gs[0]; x++ {
				id := [3]uint32{group[0]*gs[0] + x, group[1]*gs[1] + y, group[2]*gs[2] + z}
				if err := k.fn(id, d); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// WaveKernel displaces the y component of every vertex in place. Its group
// size is read from the same WGSL source the GPU backend compiles.
func WaveKernel() *Kernel {
	return NewKernel(shaders.WaveEntry, shaders.WorkgroupSize(shaders.WaveWGSL), waveInvocation)
}

func waveInvocation(id [3]uint32, d *device.ComputeDispatch) error {
	count := d.Ints[shaders.WaveVertexCount]
	k := int(id[0])
	if k >= int(count) {
		return nil
	}
	buf, ok := d.Buffers[shaders.WaveVertexBuffer].(*Buffer)
	if !ok {
		return fmt.Errorf("%w: %s is not bound", device.ErrInvalidCommand, shaders.WaveVertexBuffer)
	}
	stride := int(d.Ints[shaders.WaveVertexStride])
	data := buf.words()
	base := k * stride
	if base+12 > len(data) {
		return fmt.Errorf("%w: vertex %d outside buffer %q", device.ErrInvalidCommand, k, buf.Label())
	}
	x := math.Float32frombits(binary.LittleEndian.Uint32(data[base:]))
	z := math.Float32frombits(binary.LittleEndian.Uint32(data[base+8:]))
	y := geometry.Displacement(x, z, d.Floats[shaders.WaveTime])
	binary.LittleEndian.PutUint32(data[base+4:], math.Float32bits(y))
	return nil
}
