package main

import (
	"bytes"
	"fmt"
	"image/png"
	"os"

	"github.com/gekko3d/wavert"
	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/soft"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Looks at the origin from above and in front, framing both instances.
var (
	cameraEye    = mgl32.Vec3{0, 12, 25}
	cameraTarget = mgl32.Vec3{0, 0, 0}
)

// RenderFrames drives the CPU device for N ticks and writes the last frame.
func RenderFrames(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := wavert.NewDefaultLogger(cfg.LogPrefix, cfg.Debug)

	width, height := ctx.Int("width"), ctx.Int("height")
	frames := ctx.Int("frames")
	if width <= 0 || height <= 0 || frames <= 0 {
		return fmt.Errorf("width, height and frames must be positive")
	}

	opts := soft.DefaultOptions()
	if cfg.Workers > 0 {
		opts.Workers = cfg.Workers
	}
	opts.RayTracing = !ctx.Bool("no-raytracing")
	dev := soft.New(opts)
	defer dev.Close()

	sky := soft.SkyImage(256, 128)
	programs := wavert.Programs{
		RayProgram:  soft.NewRayProgram("wave"),
		WaveKernel:  soft.WaveKernel(),
		Environment: sky,
	}
	driver := wavert.NewFrameDriver(dev, programs, cfg, wavert.WithLogger(log))
	defer driver.OnDestroy()

	if err := driver.OnActivate(); err != nil {
		return err
	}

	dst, err := dev.NewImage(device.ImageDescriptor{
		Label: "Frame", Width: width, Height: height, Format: device.FormatRGBA8Unorm,
	})
	if err != nil {
		return err
	}
	defer dst.Release()

	camera := core.NewCameraState(cameraEye, cameraTarget, cfg.FieldOfView, width, height)
	clock := wavert.NewClock(cfg.TickStep)
	for i := 0; i < frames; i++ {
		clock.Tick()
		driver.OnFrame(sky, dst, camera, clock.Now())
	}
	if driver.PassThrough() {
		log.Infof("rendered in pass-through: %v", driver.DegradedReason())
	}

	out, err := os.Create(ctx.String("out"))
	if err != nil {
		return err
	}
	defer out.Close()
	if err := png.Encode(out, dst); err != nil {
		return fmt.Errorf("encode %s: %w", ctx.String("out"), err)
	}

	displayStats(log, dev.Stats(), clock)
	log.Infof("%s", driver.Profiler().GetStatsString())
	log.Infof("wrote %s (%dx%d, t=%.2f)", ctx.String("out"), width, height, clock.Now())
	return nil
}

func displayStats(log wavert.Logger, stats soft.Stats, clock *wavert.Clock) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Command", "Executed"})
	for _, kind := range []device.CommandKind{
		device.CommandDispatchCompute,
		device.CommandBuildAccelerationStructure,
		device.CommandDispatchRays,
		device.CommandBlit,
	} {
		table.Append([]string{kind.String(), fmt.Sprintf("%d", stats.Commands[kind])})
	}
	table.SetFooter([]string{"Submits", fmt.Sprintf("%d", stats.Submits)})
	table.Render()
	log.Infof("device statistics after %d ticks\n%s", clock.Ticks(), buf.String())
}
