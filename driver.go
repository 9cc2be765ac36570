// Package wavert drives two wave-animated grids through a ray tracing pipeline:
// one animated on the host, one by a compute kernel on the device, both kept in
// a single acceleration structure that is rebuilt every frame.
package wavert

import (
	"errors"
	"fmt"

	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/shaders"
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateAnimating
	StateRebuilding
	StateDispatching
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateAnimating:
		return "Animating"
	case StateRebuilding:
		return "Rebuilding"
	case StateDispatching:
		return "Dispatching"
	case StateReleased:
		return "Released"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Programs are the device programs a frame needs. Environment is optional.
type Programs struct {
	RayProgram  device.RayProgram
	WaveKernel  device.Kernel
	Environment device.Image
}

func (p Programs) check() error {
	if p.RayProgram == nil {
		return fmt.Errorf("no ray program: %w", device.ErrCapabilityUnavailable)
	}
	if p.WaveKernel == nil {
		return fmt.Errorf("no wave kernel: %w", device.ErrCapabilityUnavailable)
	}
	if !p.RayProgram.HasPass(shaders.RayPass) || !p.RayProgram.HasEntry(shaders.RayGenEntry) {
		return fmt.Errorf("ray program %s lacks pass %q or entry %q: %w",
			p.RayProgram.Name(), shaders.RayPass, shaders.RayGenEntry, device.ErrCapabilityUnavailable)
	}
	return nil
}

type DriverOption func(*FrameDriver)

func WithLogger(l Logger) DriverOption {
	return func(d *FrameDriver) { d.log = orNop(l) }
}

func WithProfiler(p *Profiler) DriverOption {
	return func(d *FrameDriver) { d.profiler = p }
}

// FrameDriver runs the per-frame sequence. It is not safe for concurrent use;
// all calls come from the render loop.
type FrameDriver struct {
	dev      device.Device
	cfg      Config
	programs Programs
	log      Logger
	profiler *Profiler
	res      *Resources

	state State
	// degraded latches a capability failure until the next activation.
	degraded error
}

func NewFrameDriver(dev device.Device, programs Programs, cfg Config, opts ...DriverOption) *FrameDriver {
	d := &FrameDriver{
		dev:      dev,
		cfg:      cfg,
		programs: programs,
		log:      NewNopLogger(),
		profiler: NewProfiler(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.res = NewResources(dev, cfg, d.log)
	return d
}

func (d *FrameDriver) State() State          { return d.state }
func (d *FrameDriver) Resources() *Resources { return d.res }
func (d *FrameDriver) Profiler() *Profiler   { return d.profiler }
func (d *FrameDriver) PassThrough() bool     { return d.degraded != nil }
func (d *FrameDriver) DegradedReason() error { return d.degraded }

func (d *FrameDriver) capabilityCheck() error {
	caps := d.dev.Capabilities()
	if !caps.RayTracing {
		return fmt.Errorf("%s has no ray tracing: %w", d.dev.Name(), device.ErrCapabilityUnavailable)
	}
	if !caps.Compute {
		return fmt.Errorf("%s has no compute: %w", d.dev.Name(), device.ErrCapabilityUnavailable)
	}
	return d.programs.check()
}

func (d *FrameDriver) degrade(err error) {
	if d.degraded != nil {
		return
	}
	d.degraded = err
	d.log.Warnf("ray tracing disabled until reactivation: %v", err)
}

// OnActivate allocates the activation's resources. Without the required
// capabilities it allocates nothing and the driver copies source to destination.
// Allocation failures are returned and leave the driver Uninitialized.
func (d *FrameDriver) OnActivate() error {
	switch d.state {
	case StateReleased:
		return fmt.Errorf("activate: %w", device.ErrReleased)
	case StateUninitialized:
	default:
		return nil
	}

	d.degraded = nil
	if err := d.capabilityCheck(); err != nil {
		d.degrade(err)
		d.state = StateReady
		return nil
	}
	if err := d.res.Activate(d.programs.WaveKernel); err != nil {
		d.log.Errorf("activate: %v", err)
		return err
	}
	d.state = StateReady
	d.log.Infof("activated on %s", d.dev.Name())
	return nil
}

// OnDeactivate releases everything; OnActivate may be called again afterwards.
func (d *FrameDriver) OnDeactivate() {
	if d.state == StateReleased {
		return
	}
	d.res.Deactivate()
	d.state = StateUninitialized
}

// OnDestroy releases everything for good.
func (d *FrameDriver) OnDestroy() {
	d.res.Deactivate()
	d.state = StateReleased
}

// OnFrame renders into dst. Failures are logged and the frame falls back to
// copying src into dst.
func (d *FrameDriver) OnFrame(src, dst device.Image, camera core.CameraState, clock float32) {
	switch {
	case d.state == StateReleased:
		return
	case d.state == StateUninitialized:
		d.passThrough(src, dst)
		return
	case d.degraded != nil:
		d.passThrough(src, dst)
		return
	}

	if err := d.capabilityCheck(); err != nil {
		d.degrade(err)
		d.passThrough(src, dst)
		return
	}
	if err := d.render(dst, camera, clock); err != nil {
		if errors.Is(err, device.ErrCapabilityUnavailable) {
			d.degrade(err)
		} else {
			d.log.Errorf("frame: %v", err)
		}
		d.state = StateReady
		d.passThrough(src, dst)
		return
	}
	d.state = StateReady
	d.profiler.AddCount(CountFrames, 1)
}

func (d *FrameDriver) render(dst device.Image, camera core.CameraState, clock float32) error {
	if !camera.Valid() {
		return fmt.Errorf("%w: camera %dx%d", device.ErrInvalidCommand, camera.PixelWidth, camera.PixelHeight)
	}

	d.profiler.BeginScope(ScopeResize)
	created, err := d.res.EnsureOutput(camera.PixelWidth, camera.PixelHeight)
	d.profiler.EndScope(ScopeResize)
	if err != nil {
		return err
	}
	if created {
		d.profiler.AddCount(CountOutputImages, 1)
		d.log.Debugf("output image %dx%d", camera.PixelWidth, camera.PixelHeight)
	}

	d.state = StateAnimating
	d.profiler.BeginScope(ScopeHostAnimate)
	err = d.res.HostMesh().Animate(clock)
	d.profiler.EndScope(ScopeHostAnimate)
	if err != nil {
		return err
	}

	d.profiler.BeginScope(ScopeRecord)
	cb := device.NewCommandBuffer("Wave RT")
	if err := d.res.DeviceMesh().Animate(cb, clock); err != nil {
		return err
	}

	d.state = StateRebuilding
	if err := d.res.Manager().Rebuild(cb); err != nil {
		return err
	}

	d.state = StateDispatching
	w, h := d.res.OutputSize()
	cb.DispatchRays(device.RayDispatch{
		Program:     d.programs.RayProgram,
		Pass:        shaders.RayPass,
		Entry:       shaders.RayGenEntry,
		Structure:   d.res.Manager().Structure(),
		InvView:     camera.CameraToWorld,
		Zoom:        camera.Zoom(),
		Environment: d.programs.Environment,
		Output:      d.res.Output(),
		Width:       uint32(w),
		Height:      uint32(h),
		Depth:       1,
	})
	cb.Blit(d.res.Output(), dst)
	d.profiler.EndScope(ScopeRecord)

	d.profiler.BeginScope(ScopeSubmit)
	defer d.profiler.EndScope(ScopeSubmit)
	return d.dev.Submit(cb)
}

func (d *FrameDriver) passThrough(src, dst device.Image) {
	if src == nil || dst == nil {
		return
	}
	d.profiler.BeginScope(ScopePassThrough)
	defer d.profiler.EndScope(ScopePassThrough)

	cb := device.NewCommandBuffer("Wave RT pass-through")
	cb.Blit(src, dst)
	if err := d.dev.Submit(cb); err != nil {
		d.log.Errorf("pass-through: %v", err)
		return
	}
	d.profiler.AddCount(CountPassThrough, 1)
}
