package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert/rt/device"
)

// frameResources holds per-submit objects released once the queue has the work.
type frameResources struct {
	buffers    []*wgpu.Buffer
	bindGroups []*wgpu.BindGroup
}

func (f *frameResources) release() {
	for _, bg := range f.bindGroups {
		bg.Release()
	}
	for _, b := range f.buffers {
		b.Release()
	}
	f.bindGroups, f.buffers = nil, nil
}

// Submit encodes the commands into one command encoder in recording order.
func (d *Device) Submit(cb *device.CommandBuffer) error {
	if err := cb.Validate(); err != nil {
		return err
	}
	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("%s: command encoder: %w", cb.Name, err)
	}
	defer encoder.Release()

	var f frameResources
	defer f.release()

	for i, c := range cb.Commands {
		if err := d.encode(encoder, c, &f); err != nil {
			return fmt.Errorf("%s command %d (%s): %w", cb.Name, i, c.Kind, err)
		}
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("%s: finish: %w", cb.Name, err)
	}
	defer cmd.Release()
	d.Queue.Submit(cmd)
	return nil
}

func (d *Device) encode(encoder *wgpu.CommandEncoder, c device.Command, f *frameResources) error {
	switch c.Kind {
	case device.CommandDispatchCompute:
		return d.encodeCompute(encoder, c.Compute, f)
	case device.CommandBuildAccelerationStructure:
		s, ok := c.Structure.(*AccelerationStructure)
		if !ok {
			return fmt.Errorf("%w: structure does not belong to the webgpu device", device.ErrInvalidCommand)
		}
		return s.encodeBuild(encoder, f)
	case device.CommandDispatchRays:
		if !d.Capabilities().RayTracing {
			return device.ErrCapabilityUnavailable
		}
		return d.encodeRays(encoder, c.Rays, f)
	case device.CommandBlit:
		return d.encodeBlit(encoder, c.Blit, f)
	}
	return fmt.Errorf("%w: unknown kind %d", device.ErrInvalidCommand, int(c.Kind))
}

func (d *Device) encodeRays(encoder *wgpu.CommandEncoder, r *device.RayDispatch, f *frameResources) error {
	prog, ok := r.Program.(*RayProgram)
	if !ok || prog.pipeline == nil {
		return fmt.Errorf("%w: ray program %s is not a live webgpu program", device.ErrInvalidCommand, r.Program.Name())
	}
	s, ok := r.Structure.(*AccelerationStructure)
	if !ok {
		return fmt.Errorf("%w: structure does not belong to the webgpu device", device.ErrInvalidCommand)
	}
	if !s.built {
		return fmt.Errorf("%w: acceleration structure was never built", device.ErrInvalidCommand)
	}
	out, ok := r.Output.(*Image)
	if !ok || out.view == nil {
		return fmt.Errorf("%w: output image does not belong to the webgpu device", device.ErrInvalidCommand)
	}
	if out.format != wgpu.TextureFormatRGBA16Float {
		return fmt.Errorf("%w: output image %s must be RGBA16Float", device.ErrInvalidCommand, out.Label())
	}
	envView := d.defaultEnvView
	if env, ok := r.Environment.(*Image); ok && env.view != nil {
		envView = env.view
	}

	camera, err := d.uniformBuffer("Camera", cameraBytes(r.InvView, r.Zoom, r.Width, r.Height, uint32(len(s.instances))))
	if err != nil {
		return err
	}
	f.buffers = append(f.buffers, camera)

	sceneBG, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Ray Scene BG",
		Layout: prog.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: camera, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: s.nodes.buf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: s.records.buf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: s.vertices.buf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: s.indices.buf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("ray scene bind group: %w", err)
	}
	f.bindGroups = append(f.bindGroups, sceneBG)

	outputBG, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Ray Output BG",
		Layout: prog.pipeline.GetBindGroupLayout(1),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: out.view},
			{Binding: 1, TextureView: envView},
			{Binding: 2, Sampler: d.sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("ray output bind group: %w", err)
	}
	f.bindGroups = append(f.bindGroups, outputBG)

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(prog.pipeline)
	pass.SetBindGroup(0, sceneBG, nil)
	pass.SetBindGroup(1, outputBG, nil)
	wgX := (r.Width + 7) / 8
	wgY := (r.Height + 7) / 8
	pass.DispatchWorkgroups(wgX, wgY, max(r.Depth, 1))
	return pass.End()
}

// encodeBlit draws src over dst with a fullscreen triangle, scaling with the
// linear sampler.
func (d *Device) encodeBlit(encoder *wgpu.CommandEncoder, b *device.BlitCommand, f *frameResources) error {
	src, ok := b.Src.(*Image)
	if !ok || src.view == nil {
		return fmt.Errorf("%w: blit source does not belong to the webgpu device", device.ErrInvalidCommand)
	}
	dst, ok := b.Dst.(*Image)
	if !ok || dst.view == nil {
		return fmt.Errorf("%w: blit destination does not belong to the webgpu device", device.ErrInvalidCommand)
	}
	pipeline, err := d.blitPipeline(dst.format)
	if err != nil {
		return err
	}
	bg, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Blit BG",
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: src.view},
			{Binding: 1, Sampler: d.sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("blit bind group: %w", err)
	}
	f.bindGroups = append(f.bindGroups, bg)

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       dst.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Draw(3, 1, 0, 0)
	return pass.End()
}
