package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "wavert"
	app.Usage = "ray trace animated wave meshes through a rebuilt acceleration structure"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML config file; defaults are used when omitted",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render frames headless on the CPU device and save the last one",
			Description: `
Animate both wave meshes for the requested number of clock ticks, rebuilding the
acceleration structure and tracing one frame per tick. The final frame is written
as a PNG.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 640,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 360,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "frames, n",
					Value: 1,
					Usage: "number of frames to render",
				},
				cli.BoolFlag{
					Name:  "no-raytracing",
					Usage: "report ray tracing as unavailable to exercise pass-through",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			},
			Action: RenderFrames,
		},
		{
			Name:   "window",
			Usage:  "render interactively through WebGPU",
			Action: RenderWindow,
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "no-raytracing",
					Usage: "report ray tracing as unavailable to exercise pass-through",
				},
			},
		},
		{
			Name:   "devices",
			Usage:  "list available devices",
			Action: ListDevices,
		},
		{
			Name:   "config",
			Usage:  "print the effective configuration as TOML",
			Action: PrintConfig,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
