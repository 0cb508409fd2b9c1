package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagCatalog    = flag.String("catalog", "", "Catalog directory, replacing data.catalog_paths")
	flagDetail     = flag.String("detail", "", "CPU and GPU detail level (low, medium, high, ultra)")
	flagAtmoCache  = flag.String("atmo-cache", "", "Atmosphere cache directory")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagCatalog != "" {
		cfg.Data.CatalogPaths = []string{*flagCatalog}
	}
	if *flagDetail != "" {
		cfg.Terrain.CPUDetail = *flagDetail
		cfg.Terrain.GPUDetail = *flagDetail
	}
	if *flagAtmoCache != "" {
		cfg.Atmosphere.CacheDir = *flagAtmoCache
	}
}
