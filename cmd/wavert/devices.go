package main

import (
	"bytes"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert"
	"github.com/gekko3d/wavert/rt/gpu"
	"github.com/gekko3d/wavert/rt/soft"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// ListDevices prints the CPU device and every WebGPU adapter that answers.
func ListDevices(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := wavert.NewDefaultLogger(cfg.LogPrefix, cfg.Debug)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Device", "Name", "Type", "Backend", "Ray tracing", "Compute"})

	cpu := soft.New(soft.DefaultOptions())
	defer cpu.Close()
	caps := cpu.Capabilities()
	table.Append([]string{cpu.Name(), "cpu", "CPU", "worker pool",
		fmt.Sprintf("%t", caps.RayTracing), fmt.Sprintf("%t", caps.Compute)})

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	adapters, err := gpu.Adapters(instance)
	if err != nil {
		log.Warnf("webgpu: %v", err)
	}
	for _, a := range adapters {
		// Ray dispatch runs as a compute pipeline, so any adapter offers both.
		table.Append([]string{"webgpu (" + a.Preference + ")", a.Name, a.Type, a.Backend, "true", "true"})
	}

	table.Render()
	fmt.Print(buf.String())
	return nil
}
