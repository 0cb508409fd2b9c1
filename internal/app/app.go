// Package app wires the viewer together: window, renderer, terrain,
// atmosphere, scripting and the remote console, driven one frame at a time.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/orbis/internal/atmosphere"
	"github.com/Faultbox/orbis/internal/config"
	"github.com/Faultbox/orbis/internal/console"
	"github.com/Faultbox/orbis/internal/engine/camera"
	"github.com/Faultbox/orbis/internal/engine/input"
	"github.com/Faultbox/orbis/internal/engine/renderer"
	"github.com/Faultbox/orbis/internal/engine/scene"
	"github.com/Faultbox/orbis/internal/engine/window"
	"github.com/Faultbox/orbis/internal/script"
	"github.com/Faultbox/orbis/internal/terrain"
	"github.com/Faultbox/orbis/pkg/catalog"
)

const (
	// consoleLinesPerFrame bounds the console lines evaluated per frame.
	consoleLinesPerFrame = 16
	statsInterval        = 5 * time.Second
	scancodeEscape       = 41
)

// App is the viewer.
type App struct {
	cfg *config.Config
	log *zap.Logger

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	scene    *scene.Scene

	catalog *catalog.Catalog
	terrain *terrain.Terrain
	camera  *camera.PlanetCamera
	clock   *atmosphere.Clock

	registry *script.Registry
	bindings *script.Bindings
	console  *console.Server

	running bool
}

// New opens the window and builds every system. Errors here are fatal.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{cfg: cfg, log: log, clock: atmosphere.NewClock(time.Now())}

	var err error
	a.window, err = window.New(log.Named("window"), window.Config{
		Title:      "Orbis",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	width, height := a.window.DrawableSize()
	a.renderer, err = renderer.New(log.Named("gl"), renderer.Config{
		Width:  width,
		Height: height,
		Debug:  cfg.Logging.Level == "debug",
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	a.input = input.New()

	if err := a.initScene(ctx, width, height); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initTerrain(); err != nil {
		a.Close()
		return nil, err
	}

	a.camera, err = camera.NewPlanetCamera(cfg.Camera.LatDeg, cfg.Camera.LonDeg, cfg.Camera.AltitudeKm,
		cfg.Camera.Heading, cfg.Graphics.FOV)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initial camera: %w", err)
	}

	a.registry = script.NewRegistry(log.Named("script"))
	Register(a.registry, Targets{
		Terrain:  a.terrain,
		Camera:   a.camera,
		Clock:    a.clock,
		Scene:    a.scene,
		Viewport: a.renderer.Size,
	})
	a.bindings, err = script.ParseBindings(cfg.Bindings)
	if err != nil {
		// Valid bindings still apply.
		log.Warn("invalid bindings", zap.Error(err))
	}

	if cfg.Console.Enabled {
		a.console = console.New(log.Named("console"), 64)
		if err := a.console.Listen(cfg.Console.Addr); err != nil {
			a.Close()
			return nil, fmt.Errorf("starting console: %w", err)
		}
	}

	log.Info("viewer initialized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("bindings", a.bindings.Len()),
		zap.Int("methods", len(a.registry.Methods())))
	return a, nil
}

func (a *App) initScene(ctx context.Context, width, height int) error {
	cfg := a.cfg
	opts := atmosphere.DefaultOptions()
	opts.Wavelengths = cfg.Atmosphere.NumPrecomputedWavelengths
	opts.ScatteringOrders = cfg.Atmosphere.NumScatteringPasses
	opts.Workers = cfg.Atmosphere.Workers
	model := atmosphere.Earth()

	sc := scene.DefaultConfig()
	sc.Width, sc.Height = int32(width), int32(height)
	sc.Wavelengths = opts.Wavelengths
	var err error
	a.scene, err = scene.New(a.log.Named("scene"), sc, model, opts.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to create scene: %w", err)
	}

	opts.Readback = a.scene.ReadbackAtmosphere
	cache := atmosphere.NewCache(a.log.Named("atmosphere"), cfg.Atmosphere.CacheDir)
	tables, hit, err := atmosphere.Ensure(ctx, a.log.Named("atmosphere"), cache, model, opts)
	if err != nil {
		return err
	}
	if hit {
		return a.scene.SetAtmosphere(tables)
	}
	return nil
}

func (a *App) initTerrain() error {
	cfg := a.cfg
	var err error
	a.catalog, err = catalog.Open(a.log.Named("catalog"), cfg.Data.CatalogPaths...)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}

	cpu, err := terrain.ParseDetailLevel(cfg.Terrain.CPUDetail)
	if err != nil {
		return err
	}
	gpu, err := terrain.ParseDetailLevel(cfg.Terrain.GPUDetail)
	if err != nil {
		return err
	}
	a.terrain, err = terrain.New(a.log.Named("terrain"), a.catalog, terrain.Options{
		CPU:                cpu,
		GPU:                gpu,
		MaxConcurrentReads: cfg.Terrain.MaxConcurrentReads,
		TileCacheOverride:  cfg.Terrain.TileCacheOverride,
		DecodedCacheTiles:  cfg.Terrain.DecodedCacheTiles,
		TraceStates:        cfg.Terrain.TraceStates,
		DumpDir:            cfg.Terrain.DumpDir,
		IndexGlob:          cfg.Data.Glob,
	}, a.scene.NewAtlas)
	if err != nil {
		return fmt.Errorf("failed to create terrain: %w", err)
	}
	if cfg.Terrain.Wireframe {
		a.terrain.ToggleWireframe(true)
	}
	return a.scene.AttachLayout(a.terrain.Layout())
}

// Registry returns the script registry.
func (a *App) Registry() *script.Registry { return a.registry }

// Run drives frames until the window closes or ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.running = true
	a.log.Info("starting frame loop")

	last := time.Now()
	statsAt := last
	frames := 0
	for a.running {
		if ctx.Err() != nil {
			break
		}
		now := time.Now()
		dt := now.Sub(last)
		last = now

		if a.input.Update() {
			break
		}
		a.handleEvents()
		if a.console != nil {
			a.console.Drain(a.registry, consoleLinesPerFrame)
		}

		a.frame()
		a.window.SwapBuffers()

		frames++
		if now.Sub(statsAt) >= statsInterval {
			a.logStats(frames, now.Sub(statsAt), dt)
			frames = 0
			statsAt = now
		}
	}
	return nil
}

func (a *App) handleEvents() {
	for _, ev := range a.input.Events() {
		switch ev.Type {
		case input.EventWindowResize:
			w, h := a.window.DrawableSize()
			a.renderer.Resize(w, h)
			if err := a.scene.Resize(int32(w), int32(h)); err != nil {
				a.log.Warn("scene resize failed", zap.Error(err))
			}
			continue
		case input.EventKeyDown:
			if ev.Key == scancodeEscape {
				a.running = false
				continue
			}
		}
		name, env := input.Binding(ev)
		if name == "" {
			continue
		}
		if _, bound, err := a.bindings.Fire(a.registry, name, env); bound && err != nil {
			a.log.Warn("binding failed", zap.String("event", name), zap.Error(err))
		}
	}
}

// frame runs one CPU update and the GPU passes. Failures are logged and the
// loop carries on.
func (a *App) frame() {
	width, height := a.renderer.Size()
	view := a.camera.View(width, height)
	f := a.terrain.Update(view)

	a.renderer.Begin()
	_, err := a.scene.Render(scene.Input{
		Frame:        f,
		Sets:         a.terrain.Sets(),
		Optimise:     a.terrain.OptimiseView(),
		Eye:          a.camera.Position(),
		ViewRotation: a.camera.ViewRotation(),
		Projection:   a.camera.Projection(width, height),
		Sun:          atmosphere.SunDirection(a.clock.Time(), a.camera.Graticule()),
	})
	if err != nil {
		a.log.Warn("render failed", zap.Uint64("frame", f.Number), zap.Error(err))
	} else {
		a.scene.Present(int32(width), int32(height))
	}
	a.renderer.End()
}

func (a *App) logStats(frames int, elapsed, last time.Duration) {
	f := a.terrain.Frame()
	fields := []zap.Field{
		zap.Uint64("frame", f.Number),
		zap.Float64("fps", float64(frames)/elapsed.Seconds()),
		zap.Duration("frame_time", last),
		zap.Int("patches", a.scene.Patches()),
		zap.Int("regions", f.Regions),
		zap.Bool("pinned", f.Pinned),
	}
	for _, s := range a.terrain.Sets() {
		st := s.Stats()
		fields = append(fields, zap.String(s.Name(),
			fmt.Sprintf("%d/%d active, %d reads, level %d", st.Active, s.Capacity(), st.ReadsOutstanding, st.MaxLevel)))
	}
	a.log.Debug("frame stats", fields...)
}

// Close shuts every system down in reverse order. Tile reads are drained
// before the catalog closes.
func (a *App) Close() {
	a.log.Info("closing viewer")
	if a.console != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := a.console.Close(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.log.Warn("console close", zap.Error(err))
		}
		cancel()
	}
	if a.terrain != nil {
		a.terrain.Shutdown()
		scene.DestroyAtlases(a.terrain.Sets())
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.log.Warn("catalog close", zap.Error(err))
		}
	}
	if a.scene != nil {
		a.scene.Destroy()
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.window != nil {
		a.window.Close()
	}
}
