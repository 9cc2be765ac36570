// Package gpu implements the device surface on WebGPU. Ray dispatch is a compute
// pipeline over a host-built instance tree and geometry copied device-side at
// build time.
package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/shaders"
)

var (
	_ device.Device                = (*Device)(nil)
	_ device.AccelerationStructure = (*AccelerationStructure)(nil)
	_ device.Image                 = (*Image)(nil)
	_ device.Buffer                = (*Buffer)(nil)
)

type Options struct {
	// DisableRayTracing reports the ray capability as missing, for pass-through runs.
	DisableRayTracing bool
	PowerPreference   wgpu.PowerPreference
}

type Device struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	opts Options

	sampler        *wgpu.Sampler
	fullscreen     *wgpu.ShaderModule
	blitPipelines  map[wgpu.TextureFormat]*wgpu.RenderPipeline
	defaultEnvTex  *wgpu.Texture
	defaultEnvView *wgpu.TextureView
	pack           *Kernel
}

// New requests an adapter and device. surface may be nil for offscreen use.
func New(instance *wgpu.Instance, surface *wgpu.Surface, opts Options) (*Device, error) {
	if opts.PowerPreference == 0 {
		opts.PowerPreference = wgpu.PowerPreferenceHighPerformance
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   opts.PowerPreference,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	d := &Device{
		Instance:      instance,
		Adapter:       adapter,
		Device:        dev,
		Queue:         dev.GetQueue(),
		opts:          opts,
		blitPipelines: make(map[wgpu.TextureFormat]*wgpu.RenderPipeline),
	}
	if err := d.init(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	var err error
	d.sampler, err = d.Device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("sampler: %w", err)
	}

	d.fullscreen, err = d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fullscreen VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL},
	})
	if err != nil {
		return fmt.Errorf("fullscreen shader: %w", err)
	}

	// 1x1 black environment bound when a dispatch has none.
	d.defaultEnvTex, err = d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Default Env",
		Size:          wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("default environment: %w", err)
	}
	d.Queue.WriteTexture(d.defaultEnvTex.AsImageCopy(), []byte{0, 0, 0, 255},
		&wgpu.TextureDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1})
	d.defaultEnvView, err = d.defaultEnvTex.CreateView(nil)
	if err != nil {
		return fmt.Errorf("default environment view: %w", err)
	}
	return nil
}

func (d *Device) Name() string { return "webgpu" }

func (d *Device) Capabilities() device.Capabilities {
	return device.Capabilities{RayTracing: !d.opts.DisableRayTracing, Compute: true}
}

func (d *Device) Release() {
	if d.pack != nil {
		d.pack.Release()
		d.pack = nil
	}
	for f, p := range d.blitPipelines {
		p.Release()
		delete(d.blitPipelines, f)
	}
	if d.defaultEnvView != nil {
		d.defaultEnvView.Release()
		d.defaultEnvView = nil
	}
	if d.defaultEnvTex != nil {
		d.defaultEnvTex.Release()
		d.defaultEnvTex = nil
	}
	if d.fullscreen != nil {
		d.fullscreen.Release()
		d.fullscreen = nil
	}
	if d.sampler != nil {
		d.sampler.Release()
		d.sampler = nil
	}
	if d.Device != nil {
		d.Device.Release()
		d.Device = nil
	}
	if d.Adapter != nil {
		d.Adapter.Release()
		d.Adapter = nil
	}
}

func (d *Device) blitPipeline(format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	if p, ok := d.blitPipelines[format]; ok {
		return p, nil
	}
	p, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     d.fullscreen,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     d.fullscreen,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blit pipeline: %w", err)
	}
	d.blitPipelines[format] = p
	return p, nil
}
