// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds all viewer settings.
type Config struct {
	Graphics   GraphicsConfig    `yaml:"graphics"`
	Terrain    TerrainConfig     `yaml:"terrain"`
	Atmosphere AtmosphereConfig  `yaml:"atmosphere"`
	Data       DataConfig        `yaml:"data"`
	Camera     CameraConfig      `yaml:"camera"`
	Logging    LoggingConfig     `yaml:"logging"`
	Console    ConsoleConfig     `yaml:"console"`
	Bindings   map[string]string `yaml:"bindings"` // event -> "object.method(args)"
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Fullscreen bool    `yaml:"fullscreen"`
	VSync      bool    `yaml:"vsync"`
	FOV        float64 `yaml:"fov"` // vertical, degrees
}

// TerrainConfig holds patch tree and tile streaming settings.
type TerrainConfig struct {
	CPUDetail          string `yaml:"cpu_detail"`
	GPUDetail          string `yaml:"gpu_detail"`
	MaxConcurrentReads int    `yaml:"max_concurrent_reads"`
	Wireframe          bool   `yaml:"wireframe"`
	TileCacheOverride  int    `yaml:"tile_cache_override"` // 0 keeps the GPU detail size
	DecodedCacheTiles  int    `yaml:"decoded_cache_tiles"`
	TraceStates        bool   `yaml:"trace_states"`
	DumpDir            string `yaml:"dump_dir"`
}

// AtmosphereConfig holds the precompute and cache settings.
type AtmosphereConfig struct {
	CacheDir                  string `yaml:"cache_dir"`
	NumPrecomputedWavelengths int    `yaml:"num_precomputed_wavelengths"`
	NumScatteringPasses       int    `yaml:"num_scattering_passes"`
	Workers                   int    `yaml:"workers"` // 0 means one per CPU
}

// DataConfig holds content catalog locations.
type DataConfig struct {
	CatalogPaths []string `yaml:"catalog_paths"` // directories or .pack files
	Glob         string   `yaml:"glob"`          // tile set sidecars to load
}

// CameraConfig holds the initial viewpoint.
type CameraConfig struct {
	LatDeg     float64 `yaml:"lat_deg"`
	LonDeg     float64 `yaml:"lon_deg"`
	AltitudeKm float64 `yaml:"altitude_km"`
	Heading    float64 `yaml:"heading"` // degrees clockwise from north
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console or json
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ConsoleConfig holds the remote terminal settings.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FOV:        60,
		},
		Terrain: TerrainConfig{
			CPUDetail:          "high",
			GPUDetail:          "high",
			MaxConcurrentReads: 5,
			DecodedCacheTiles:  256,
			DumpDir:            "__dump__",
		},
		Atmosphere: AtmosphereConfig{
			CacheDir:                  "cache/atmosphere",
			NumPrecomputedWavelengths: 40,
			NumScatteringPasses:       4,
		},
		Data: DataConfig{
			CatalogPaths: []string{"data"},
			Glob:         "*-index.json",
		},
		Camera: CameraConfig{
			LatDeg:     27.988,
			LonDeg:     -86.925,
			AltitudeKm: 408,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Console: ConsoleConfig{
			Enabled: false,
			Addr:    "127.0.0.1:7300",
		},
		Bindings: DefaultBindings(),
	}
}

// DefaultBindings maps the debug keys and mouse to script calls.
func DefaultBindings() map[string]string {
	return map[string]string{
		"key.p":        "terrain.toggle_pin_camera(pressed)",
		"key.w":        "terrain.toggle_wireframe(pressed)",
		"key.i":        "terrain.capture_index_snapshot()",
		"key.up":       "camera.move_view(1, 0, pressed)",
		"key.down":     "camera.move_view(-1, 0, pressed)",
		"key.left":     "camera.move_view(0, -1, pressed)",
		"key.right":    "camera.move_view(0, 1, pressed)",
		"mouse.motion": "camera.handle_mousemotion(dx, dy)",
		"mouse.wheel":  "camera.handle_mousewheel(dy)",
	}
}

var detailNames = []string{"low", "medium", "high", "ultra"}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Validate reports the first setting the viewer cannot start with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}
	check(c.Graphics.Width > 0 && c.Graphics.Height > 0,
		"graphics size %dx%d", c.Graphics.Width, c.Graphics.Height)
	check(c.Graphics.FOV > 0 && c.Graphics.FOV < 180, "graphics.fov %g", c.Graphics.FOV)
	check(isDetail(c.Terrain.CPUDetail), "terrain.cpu_detail %q", c.Terrain.CPUDetail)
	check(isDetail(c.Terrain.GPUDetail), "terrain.gpu_detail %q", c.Terrain.GPUDetail)
	check(c.Terrain.MaxConcurrentReads > 0, "terrain.max_concurrent_reads %d", c.Terrain.MaxConcurrentReads)
	check(c.Terrain.TileCacheOverride >= 0, "terrain.tile_cache_override %d", c.Terrain.TileCacheOverride)
	check(c.Atmosphere.NumPrecomputedWavelengths > 0,
		"atmosphere.num_precomputed_wavelengths %d", c.Atmosphere.NumPrecomputedWavelengths)
	check(c.Atmosphere.NumScatteringPasses > 0,
		"atmosphere.num_scattering_passes %d", c.Atmosphere.NumScatteringPasses)
	check(c.Camera.LatDeg >= -90 && c.Camera.LatDeg <= 90, "camera.lat_deg %g", c.Camera.LatDeg)
	check(c.Camera.LonDeg >= -180 && c.Camera.LonDeg <= 180, "camera.lon_deg %g", c.Camera.LonDeg)
	check(c.Camera.AltitudeKm >= 0, "camera.altitude_km %g", c.Camera.AltitudeKm)
	check(c.Logging.Format == "console" || c.Logging.Format == "json", "logging.format %q", c.Logging.Format)
	check(len(c.Data.CatalogPaths) > 0, "data.catalog_paths is empty")
	return errors.Join(errs...)
}

func isDetail(name string) bool {
	for _, d := range detailNames {
		if strings.EqualFold(name, d) {
			return true
		}
	}
	return false
}
