package wavert

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

const DefaultResolution uint32 = 32

type Config struct {
	Resolution uint32  `toml:"resolution"`
	TickStep   float32 `toml:"tick_step"`

	// Host mesh sits at -PlacementX, device mesh at +PlacementX.
	PlacementX    float32    `toml:"placement_x"`
	InstanceScale float32    `toml:"instance_scale"`
	Albedo        [3]float32 `toml:"albedo"`

	// StrictStride rejects a device mesh whose vertex stride is not 4-byte aligned.
	StrictStride bool `toml:"strict_stride"`

	Debug     bool   `toml:"debug"`
	LogPrefix string `toml:"log_prefix"`
	Workers   int    `toml:"workers"`

	WindowWidth  int     `toml:"window_width"`
	WindowHeight int     `toml:"window_height"`
	WindowTitle  string  `toml:"window_title"`
	FieldOfView  float32 `toml:"field_of_view"`
}

func DefaultConfig() Config {
	return Config{
		Resolution:    DefaultResolution,
		TickStep:      DefaultTickStep,
		PlacementX:    6,
		InstanceScale: 5,
		Albedo:        [3]float32{0.8, 0.8, 0.85},
		StrictStride:  true,
		LogPrefix:     "wavert",
		WindowWidth:   1280,
		WindowHeight:  720,
		WindowTitle:   "Wave RT",
		FieldOfView:   60,
	}
}

// LoadConfig reads a TOML file over the defaults. Keys absent from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Resolution == 0 {
		return fmt.Errorf("config: resolution must be at least 1")
	}
	if c.TickStep <= 0 {
		return fmt.Errorf("config: tick_step must be positive, got %v", c.TickStep)
	}
	if c.InstanceScale <= 0 {
		return fmt.Errorf("config: instance_scale must be positive, got %v", c.InstanceScale)
	}
	if c.FieldOfView <= 0 || c.FieldOfView >= 180 {
		return fmt.Errorf("config: field_of_view must be in (0, 180), got %v", c.FieldOfView)
	}
	return nil
}

// Marshal renders c as TOML, used by the CLI to print the effective settings.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) hostPlacement() mgl32.Vec3   { return mgl32.Vec3{-c.PlacementX, 0, 0} }
func (c Config) devicePlacement() mgl32.Vec3 { return mgl32.Vec3{c.PlacementX, 0, 0} }
