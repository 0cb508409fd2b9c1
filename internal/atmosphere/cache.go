package atmosphere

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/orbis/pkg/catalog"
)

// RebuildEnv forces a rebuild of the cached tables when set to "1".
const RebuildEnv = "ORBIS_REBUILD_ATMOSPHERE"

// ErrCacheMiss is returned by Cache.Load when a table file is missing or
// has the wrong size.
var ErrCacheMiss = errors.New("atmosphere: cache miss")

// Cache file names, in Tables field order.
const (
	TransmittanceFile       = "solar_transmittance.bin"
	IrradianceFile          = "solar_irradiance.bin"
	ScatteringFile          = "solar_scattering.bin"
	SingleMieScatteringFile = "solar_single_mie_scattering.bin"
)

const texelBytes = 16

// Cache stores tables as raw little-endian RGBA32F files in a directory.
type Cache struct {
	dir string
	log *zap.Logger
}

// NewCache returns a cache rooted at dir.
func NewCache(log *zap.Logger, dir string) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{dir: dir, log: log}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Paths returns the four table files.
func (c *Cache) Paths() []string {
	return []string{
		filepath.Join(c.dir, TransmittanceFile),
		filepath.Join(c.dir, IrradianceFile),
		filepath.Join(c.dir, ScatteringFile),
		filepath.Join(c.dir, SingleMieScatteringFile),
	}
}

func texelCounts(d Dimensions) [4]int {
	sw, sh, sd := d.ScatteringSize()
	return [4]int{
		d.TransmittanceWidth * d.TransmittanceHeight,
		d.IrradianceWidth * d.IrradianceHeight,
		sw * sh * sd,
		sw * sh * sd,
	}
}

// Load maps the four files and decodes them as tables of the given size.
func (c *Cache) Load(dims Dimensions) (*Tables, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	counts := texelCounts(dims)
	var out [4][]float32
	for i, path := range c.Paths() {
		data, err := loadTable(path, counts[i])
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return &Tables{
		Dimensions:          dims,
		Transmittance:       out[0],
		Irradiance:          out[1],
		Scattering:          out[2],
		SingleMieScattering: out[3],
	}, nil
}

func loadTable(path string, texels int) ([]float32, error) {
	m, err := catalog.MapFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s missing", ErrCacheMiss, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	defer m.Close()

	raw := m.Bytes()
	if len(raw) != texels*texelBytes {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d",
			ErrCacheMiss, filepath.Base(path), len(raw), texels*texelBytes)
	}
	return decodeRGBA32F(raw), nil
}

// Save writes the tables, replacing any previous files.
func (c *Cache) Save(t *Tables) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create atmosphere cache: %w", err)
	}
	tables := [4][]float32{t.Transmittance, t.Irradiance, t.Scattering, t.SingleMieScattering}
	for i, path := range c.Paths() {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, encodeRGBA32F(tables[i]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("rename %s: %w", tmp, err)
		}
	}
	return nil
}

// Invalidate removes the cached files. Missing files are not an error.
func (c *Cache) Invalidate() error {
	for _, path := range c.Paths() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// Ensure returns cached tables, rebuilding and saving them when the cache
// is missing, corrupt or invalidated through RebuildEnv. The boolean
// reports a cache hit.
func Ensure(ctx context.Context, log *zap.Logger, cache *Cache, model Model, opts Options) (*Tables, bool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	if os.Getenv(RebuildEnv) == "1" {
		log.Info("atmosphere cache invalidated", zap.String("dir", cache.Dir()))
		if err := cache.Invalidate(); err != nil {
			return nil, false, err
		}
	} else {
		t, err := cache.Load(opts.Dimensions)
		if err == nil {
			log.Info("atmosphere cache hit",
				zap.String("dir", cache.Dir()),
				zap.Duration("elapsed", time.Since(start)))
			return t, true, nil
		}
		log.Info("atmosphere cache miss", zap.Error(err))
	}

	t, err := Precompute(ctx, log, model, opts)
	if err != nil {
		return nil, false, fmt.Errorf("precompute atmosphere: %w", err)
	}
	if opts.Readback != nil {
		if t, err = opts.Readback(t); err != nil {
			return nil, false, fmt.Errorf("read back atmosphere: %w", err)
		}
	}
	if err := cache.Save(t); err != nil {
		log.Warn("atmosphere cache not written", zap.Error(err))
	}
	return t, false, nil
}

func encodeRGBA32F(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeRGBA32F(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
