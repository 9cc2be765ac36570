package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert/rt/shaders"
)

// RayProgram runs ray generation, closest hit and miss as one compute pipeline.
type RayProgram struct {
	name     string
	pass     string
	entry    string
	module   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
}

func (d *Device) NewRayProgram(name string) (*RayProgram, error) {
	module, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RaytraceWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("ray program %s shader: %w", name, err)
	}
	pipeline, err := d.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: name,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: shaders.RayGenEntry,
		},
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("ray program %s pipeline: %w", name, err)
	}
	return &RayProgram{
		name:     name,
		pass:     shaders.RayPass,
		entry:    shaders.RayGenEntry,
		module:   module,
		pipeline: pipeline,
	}, nil
}

func (p *RayProgram) Name() string               { return p.name }
func (p *RayProgram) HasPass(pass string) bool   { return pass == p.pass }
func (p *RayProgram) HasEntry(entry string) bool { return entry == p.entry }

func (p *RayProgram) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}
