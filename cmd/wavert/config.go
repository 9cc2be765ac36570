package main

import (
	"fmt"

	"github.com/gekko3d/wavert"
	"github.com/urfave/cli"
)

func loadConfig(ctx *cli.Context) (wavert.Config, error) {
	cfg := wavert.DefaultConfig()
	if path := ctx.GlobalString("config"); path != "" {
		var err error
		if cfg, err = wavert.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if ctx.GlobalBool("debug") {
		cfg.Debug = true
	}
	return cfg, nil
}

func PrintConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
