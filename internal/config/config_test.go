package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no spbu-maps.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Paths.Root)
	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, "geojsons", cfg.Paths.GeoJSONDir)
	assert.Equal(t, "raw_data", cfg.Paths.RawDataDir)
	assert.Equal(t, "outputs", cfg.Paths.OutputsDir)
	assert.Equal(t, "maps", cfg.Paths.MapsDir)
	assert.Equal(t, "cartodbpositron", cfg.Render.Tiles)
	assert.Empty(t, cfg.Render.Palette, "each format picks its own default palette")
	assert.Equal(t, 10, cfg.Render.ZoomStart)
	assert.InDelta(t, 0.7, cfg.Render.FillOpacity, 0.001)
	assert.InDelta(t, 0.2, cfg.Render.LineOpacity, 0.001)
	assert.Equal(t, 800, cfg.Render.Width)
	assert.Equal(t, "spbu-maps/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
paths:
  root: /srv/research
  data_dir: tables
render:
  tiles: openstreetmap
  zoom_start: 13
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spbu-maps.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/research", cfg.Paths.Root)
	assert.Equal(t, "tables", cfg.Paths.DataDir)
	assert.Equal(t, "openstreetmap", cfg.Render.Tiles)
	assert.Equal(t, 13, cfg.Render.ZoomStart)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "geojsons", cfg.Paths.GeoJSONDir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
render:
  tiles: openstreetmap
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spbu-maps.yaml"), []byte(yaml), 0644))
	t.Setenv("SPBU_MAPS_RENDER_TILES", "cartodbdark_matter")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cartodbdark_matter", cfg.Render.Tiles)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SPBU_MAPS_PATHS_MAPS_DIR=rendered\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("SPBU_MAPS_PATHS_MAPS_DIR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "rendered", cfg.Paths.MapsDir)
}

func TestLoadInvalidZoom(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SPBU_MAPS_RENDER_ZOOM_START", "40")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zoom_start")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Render: RenderConfig{ZoomStart: 10, FillOpacity: 0.7, Width: 800, Height: 600},
			Fetch:  FetchConfig{MaxRetries: 3},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Render.FillOpacity = 1.5
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Render.Width = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Fetch.MaxRetries = 0
	assert.Error(t, cfg.Validate())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
