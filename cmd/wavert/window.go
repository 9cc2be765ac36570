package main

import (
	"runtime"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/wavert"
	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/gpu"
	"github.com/gekko3d/wavert/rt/soft"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/urfave/cli"
)

func init() {
	runtime.LockOSThread()
}

// RenderWindow presents frames to a glfw window. Space tears the pipeline down
// and brings it back; while it is down frames show the plain environment.
func RenderWindow(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := wavert.NewDefaultLogger(cfg.LogPrefix, cfg.Debug)

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.WindowWidth, cfg.WindowHeight, cfg.WindowTitle, nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	defer surface.Release()

	dev, err := gpu.New(instance, surface, gpu.Options{DisableRayTracing: ctx.Bool("no-raytracing")})
	if err != nil {
		return err
	}
	defer dev.Release()

	width, height := window.GetFramebufferSize()
	caps := surface.GetCapabilities(dev.Adapter)
	surfaceConfig := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(dev.Adapter, dev.Device, surfaceConfig)

	kernel, err := dev.WaveKernel()
	if err != nil {
		return err
	}
	defer kernel.Release()
	program, err := dev.NewRayProgram("wave")
	if err != nil {
		return err
	}
	defer program.Release()
	sky, err := dev.UploadImage("Sky", soft.SkyImage(512, 256))
	if err != nil {
		return err
	}
	defer sky.Release()

	driver := wavert.NewFrameDriver(dev, wavert.Programs{
		RayProgram:  program,
		WaveKernel:  kernel,
		Environment: sky,
	}, cfg, wavert.WithLogger(log))
	defer driver.OnDestroy()
	if err := driver.OnActivate(); err != nil {
		return err
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if width > 0 && height > 0 {
			surfaceConfig.Width = uint32(width)
			surfaceConfig.Height = uint32(height)
			surface.Configure(dev.Adapter, dev.Device, surfaceConfig)
		}
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			if driver.State() == wavert.StateUninitialized {
				if err := driver.OnActivate(); err != nil {
					log.Errorf("activate: %v", err)
				}
			} else {
				driver.OnDeactivate()
			}
		}
	})

	clock := wavert.NewClock(cfg.TickStep)
	stepper := &wavert.FixedStepper{Clock: clock, MaxTicks: 10}
	for !window.ShouldClose() {
		glfw.PollEvents()
		stepper.Advance(time.Now())

		next, err := surface.GetCurrentTexture()
		if err != nil {
			log.Errorf("surface texture: %v", err)
			continue
		}
		presentFrame(next, func(view *wgpu.TextureView) {
			w, h := int(surfaceConfig.Width), int(surfaceConfig.Height)
			dst := dev.WrapView("Surface", view, w, h, surfaceConfig.Format)
			camera := core.NewCameraState(cameraEye, cameraTarget, cfg.FieldOfView, w, h)
			driver.OnFrame(sky, dst, camera, clock.Now())
		}, func() { surface.Present() }, log)
	}

	log.Infof("%s", driver.Profiler().GetStatsString())
	return nil
}

// surfaceTexture is the part of *wgpu.Texture a frame needs.
type surfaceTexture interface {
	CreateView(descriptor *wgpu.TextureViewDescriptor) (*wgpu.TextureView, error)
	Release()
}

// presentFrame draws into the acquired surface texture and presents it. The
// texture is released on every path, the view whenever it was created.
func presentFrame(next surfaceTexture, draw func(view *wgpu.TextureView), present func(), log wavert.Logger) {
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		log.Errorf("surface view: %v", err)
		return
	}
	defer view.Release()

	draw(view)
	present()
}
