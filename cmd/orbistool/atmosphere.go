package main

import (
	"context"
	"flag"
	"fmt"
	gomath "math"
	"os"
	"os/signal"
	"time"

	"github.com/Faultbox/orbis/internal/atmosphere"
	"github.com/Faultbox/orbis/internal/config"
	"github.com/Faultbox/orbis/internal/logger"
	"github.com/Faultbox/orbis/pkg/geodesy"
)

func cmdAtmosphereBuild(args []string) {
	defaults := config.Default().Atmosphere
	fs := flag.NewFlagSet("atmosphere build", flag.ExitOnError)
	dir := fs.String("cache", defaults.CacheDir, "Cache directory")
	wavelengths := fs.Int("wavelengths", defaults.NumPrecomputedWavelengths, "Spectral samples")
	orders := fs.Int("orders", defaults.NumScatteringPasses, "Scattering orders")
	workers := fs.Int("workers", defaults.Workers, "Worker goroutines (0 = one per CPU)")
	force := fs.Bool("force", false, "Rebuild even when the cache is valid")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logger.Get("atmosphere")
	cache := atmosphere.NewCache(log, *dir)
	if *force {
		if err := cache.Invalidate(); err != nil {
			fatalf("%v", err)
		}
	}
	opts := atmosphere.DefaultOptions()
	opts.Wavelengths = *wavelengths
	opts.ScatteringOrders = *orders
	opts.Workers = *workers

	start := time.Now()
	_, hit, err := atmosphere.Ensure(ctx, log, cache, atmosphere.Earth(), opts)
	if err != nil {
		fatalf("%v", err)
	}
	state := "built"
	if hit {
		state = "already cached"
	}
	fmt.Printf("Atmosphere tables %s in %s\n", state, time.Since(start).Round(time.Millisecond))
	for _, p := range cache.Paths() {
		if st, err := os.Stat(p); err == nil {
			fmt.Printf("  %-60s %10d bytes\n", p, st.Size())
		}
	}
}

// cmdAtmosphereSample prints transmittance from the cached tables, either
// along mu or towards the sun at a given place and instant.
func cmdAtmosphereSample(args []string) {
	fs := flag.NewFlagSet("atmosphere sample", flag.ExitOnError)
	dir := fs.String("cache", config.Default().Atmosphere.CacheDir, "Cache directory")
	alt := fs.Float64("alt", 0, "Altitude above the ground in km")
	mu := fs.Float64("mu", 1, "Cosine of the view zenith angle")
	date := fs.String("date", "", "RFC 3339 instant; samples towards the sun instead of -mu")
	lat := fs.Float64("lat", 0, "Latitude in degrees, with -date")
	lon := fs.Float64("lon", 0, "Longitude in degrees, with -date")
	fs.Parse(args)

	model := atmosphere.Earth()
	if *date != "" {
		t, err := time.Parse(time.RFC3339, *date)
		if err != nil {
			fatalf("date: %v", err)
		}
		g, err := geodesy.Surface(*lat, *lon, *alt)
		if err != nil {
			fatalf("%v", err)
		}
		sun := atmosphere.SunAt(t, g)
		*mu = gomath.Sin(sun.Altitude)
		fmt.Printf("Sun: altitude %.3f deg, azimuth %.3f deg\n",
			geodesy.Degrees(sun.Altitude), geodesy.Degrees(sun.Azimuth))
	}

	tables, err := atmosphere.NewCache(logger.Get("atmosphere"), *dir).Load(atmosphere.DefaultDimensions())
	if err != nil {
		fatalf("%v (run: orbistool atmosphere build)", err)
	}
	s := tables.TransmittanceAt(model, *alt, *mu)
	fmt.Printf("Transmittance at %.3f km, mu %.4f: R %.5f G %.5f B %.5f\n", *alt, *mu, s[0], s[1], s[2])
}
