package wavert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(32), cfg.Resolution)
	assert.Equal(t, float32(0.02), cfg.TickStep)
	assert.True(t, cfg.StrictStride)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wavert.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
resolution = 16
strict_stride = false
placement_x = 8.0
albedo = [0.1, 0.2, 0.3]
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), cfg.Resolution)
	assert.False(t, cfg.StrictStride)
	assert.Equal(t, float32(8), cfg.PlacementX)
	assert.Equal(t, [3]float32{0.1, 0.2, 0.3}, cfg.Albedo)
	assert.Equal(t, float32(5), cfg.InstanceScale, "untouched keys keep defaults")
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("resolution = 0\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "resolution")
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	data, err := DefaultConfig().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "resolution = 32")
}
