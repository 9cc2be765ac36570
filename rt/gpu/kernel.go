package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/shaders"
)

type UniformKind int

const (
	UniformFloat UniformKind = iota
	UniformInt
)

type UniformField struct {
	Name string
	Kind UniformKind
}

// KernelLayout maps dispatch names to bindings in group 0: storage buffers
// first, then one uniform block holding the fields in order.
type KernelLayout struct {
	Buffers  []string
	Uniforms []UniformField
}

func (l KernelLayout) uniformSize() int {
	n := len(l.Uniforms) * 4
	if n%16 != 0 {
		n += 16 - n%16
	}
	return n
}

// packUniforms writes the fields as 32-bit words, zero padded to 16 bytes.
// Missing values stay zero.
func (l KernelLayout) packUniforms(floats map[string]float32, ints map[string]int32) []byte {
	buf := make([]byte, l.uniformSize())
	for i, f := range l.Uniforms {
		off := i * 4
		switch f.Kind {
		case UniformFloat:
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(floats[f.Name]))
		case UniformInt:
			binary.LittleEndian.PutUint32(buf[off:], uint32(ints[f.Name]))
		}
	}
	return buf
}

type Kernel struct {
	name      string
	groupSize [3]uint32
	layout    KernelLayout
	module    *wgpu.ShaderModule
	pipeline  *wgpu.ComputePipeline
}

func (d *Device) NewKernel(name, source, entry string, layout KernelLayout) (*Kernel, error) {
	module, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("kernel %s shader: %w", name, err)
	}
	pipeline, err := d.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: name,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("kernel %s pipeline: %w", name, err)
	}
	return &Kernel{
		name:      name,
		groupSize: shaders.WorkgroupSize(source),
		layout:    layout,
		module:    module,
		pipeline:  pipeline,
	}, nil
}

// WaveKernel compiles the vertex displacement kernel.
func (d *Device) WaveKernel() (*Kernel, error) {
	return d.NewKernel("WaveVertices", shaders.WaveWGSL, shaders.WaveEntry, KernelLayout{
		Buffers: []string{shaders.WaveVertexBuffer},
		Uniforms: []UniformField{
			{Name: shaders.WaveTime, Kind: UniformFloat},
			{Name: shaders.WaveVertexCount, Kind: UniformInt},
			{Name: shaders.WaveVertexStride, Kind: UniformInt},
		},
	})
}

func (k *Kernel) Name() string         { return k.name }
func (k *Kernel) GroupSize() [3]uint32 { return k.groupSize }

func (k *Kernel) Release() {
	if k.pipeline != nil {
		k.pipeline.Release()
		k.pipeline = nil
	}
	if k.module != nil {
		k.module.Release()
		k.module = nil
	}
}

// encodeCompute records one dispatch. Created bind groups and uniform buffers go to
// f and are released after the submit.
func (d *Device) encodeCompute(encoder *wgpu.CommandEncoder, dispatch *device.ComputeDispatch, f *frameResources) error {
	k, ok := dispatch.Kernel.(*Kernel)
	if !ok {
		return fmt.Errorf("%w: kernel %s does not belong to the webgpu device", device.ErrInvalidCommand, dispatch.Kernel.Name())
	}
	if k.pipeline == nil {
		return fmt.Errorf("kernel %s: %w", k.name, device.ErrReleased)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(k.layout.Buffers)+1)
	for i, name := range k.layout.Buffers {
		b, ok := dispatch.Buffers[name].(*Buffer)
		if !ok || b.buf == nil {
			return fmt.Errorf("%w: kernel %s needs webgpu buffer %q", device.ErrInvalidCommand, k.name, name)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  b.buf,
			Size:    wgpu.WholeSize,
		})
	}
	if len(k.layout.Uniforms) > 0 {
		data := k.layout.packUniforms(dispatch.Floats, dispatch.Ints)
		ub, err := d.uniformBuffer(k.name+" Params", data)
		if err != nil {
			return err
		}
		f.buffers = append(f.buffers, ub)
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(len(k.layout.Buffers)),
			Buffer:  ub,
			Size:    wgpu.WholeSize,
		})
	}

	bg, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.name + " BG",
		Layout:  k.pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("kernel %s bind group: %w", k.name, err)
	}
	f.bindGroups = append(f.bindGroups, bg)

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(dispatch.Groups[0], max(dispatch.Groups[1], 1), max(dispatch.Groups[2], 1))
	return pass.End()
}

func (d *Device) uniformBuffer(label string, data []byte) (*wgpu.Buffer, error) {
	buf, err := d.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", label, device.ErrAllocation, err)
	}
	return buf, nil
}
