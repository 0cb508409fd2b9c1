package atmosphere

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestCacheRoundTripIsByteIdentical(t *testing.T) {
	built := buildSmall(t)

	first := NewCache(zaptest.NewLogger(t), t.TempDir())
	if err := first.Save(built); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := first.Load(built.Dimensions)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	second := NewCache(zaptest.NewLogger(t), t.TempDir())
	if err := second.Save(loaded); err != nil {
		t.Fatalf("Save reloaded: %v", err)
	}

	pairs := [][2][]float32{
		{built.Transmittance, loaded.Transmittance},
		{built.Irradiance, loaded.Irradiance},
		{built.Scattering, loaded.Scattering},
		{built.SingleMieScattering, loaded.SingleMieScattering},
	}
	for i, p := range pairs {
		if !bytes.Equal(encodeRGBA32F(p[0]), encodeRGBA32F(p[1])) {
			t.Errorf("table %d differs after reload", i)
		}
	}
	for i, path := range first.Paths() {
		a, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(second.Paths()[i])
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs after a second save", filepath.Base(path))
		}
	}
}

func TestCacheLoadMisses(t *testing.T) {
	dims := smallOptions().Dimensions

	empty := NewCache(nil, t.TempDir())
	if _, err := empty.Load(dims); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("empty dir: err = %v, want ErrCacheMiss", err)
	}

	c := NewCache(nil, t.TempDir())
	if err := c.Save(buildSmall(t)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.Paths()[2], []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Load(dims); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("truncated file: err = %v, want ErrCacheMiss", err)
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(nil, t.TempDir())
	if err := c.Invalidate(); err != nil {
		t.Fatalf("Invalidate on empty dir: %v", err)
	}
	if err := c.Save(buildSmall(t)); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(); err != nil {
		t.Fatal(err)
	}
	for _, p := range c.Paths() {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still present", filepath.Base(p))
		}
	}
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	opts := smallOptions()
	cache := NewCache(log, t.TempDir())

	t.Setenv(RebuildEnv, "")
	if _, hit, err := Ensure(ctx, log, cache, Earth(), opts); err != nil || hit {
		t.Fatalf("first Ensure: hit=%v err=%v, want a build", hit, err)
	}

	start := time.Now()
	tables, hit, err := Ensure(ctx, log, cache, Earth(), opts)
	if err != nil || !hit {
		t.Fatalf("second Ensure: hit=%v err=%v, want a cache hit", hit, err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("cached startup took %v", elapsed)
	}
	if tables.Dimensions != opts.Dimensions {
		t.Errorf("dimensions = %+v", tables.Dimensions)
	}

	t.Setenv(RebuildEnv, "1")
	if err := os.WriteFile(cache.Paths()[0], []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := Ensure(ctx, log, cache, Earth(), opts); err != nil || hit {
		t.Fatalf("Ensure with %s=1: hit=%v err=%v, want a rebuild", RebuildEnv, hit, err)
	}
	if _, err := cache.Load(opts.Dimensions); err != nil {
		t.Errorf("rebuilt cache does not load: %v", err)
	}
}

func TestEnsureSavesReadback(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	t.Setenv(RebuildEnv, "")
	cache := NewCache(log, t.TempDir())

	calls := 0
	opts := smallOptions()
	opts.Readback = func(built *Tables) (*Tables, error) {
		calls++
		out := *built
		out.Transmittance = make([]float32, len(built.Transmittance))
		for i := range out.Transmittance {
			out.Transmittance[i] = 0.5
		}
		return &out, nil
	}
	if _, _, err := Ensure(ctx, log, cache, Earth(), opts); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := Ensure(ctx, log, cache, Earth(), opts); err != nil || !hit {
		t.Fatalf("second Ensure: hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Errorf("readback called %d times, want once", calls)
	}
	loaded, err := cache.Load(opts.Dimensions)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Transmittance[0] != 0.5 {
		t.Errorf("cache holds %v, want the read back tables", loaded.Transmittance[0])
	}

	failing := smallOptions()
	failing.Readback = func(*Tables) (*Tables, error) { return nil, errors.New("no context") }
	if err := cache.Invalidate(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Ensure(ctx, log, NewCache(log, t.TempDir()), Earth(), failing); err == nil {
		t.Error("want the readback error")
	}
}
