// Package terrain drives the adaptive terrain pipeline one frame at a time:
// the patch tree picks what to draw, its visible regions vote for tiles,
// every tile set streams and repaints its index, and the deferred pass turns
// the selection into per-pixel colour and normals.
package terrain

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/orbis/internal/engine/debug"
	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/internal/terrain/tile"
	"github.com/Faultbox/orbis/pkg/catalog"
	"github.com/Faultbox/orbis/pkg/formats"
	"github.com/Faultbox/orbis/pkg/geodesy"
)

// Options configures a Terrain.
type Options struct {
	CPU DetailLevel
	GPU DetailLevel
	// MaxConcurrentReads bounds tile reads across every tile set.
	MaxConcurrentReads int
	// TileCacheOverride replaces the GPU detail's atlas size when non-zero.
	TileCacheOverride int
	// DecodedCacheTiles keeps that many decoded tiles per set for re-reads.
	DecodedCacheTiles int
	TraceStates       bool
	// DumpDir receives index snapshots.
	DumpDir string
	// IndexGlob selects the tile set sidecars; empty means every sidecar.
	IndexGlob string
}

// AtlasFactory creates the atlas backing one tile set.
type AtlasFactory func(ts formats.TileSetIndex, capacity int) (tile.Atlas, error)

// MemoryAtlases is the AtlasFactory used without a GPU.
func MemoryAtlases(ts formats.TileSetIndex, capacity int) (tile.Atlas, error) {
	return tile.NewMemoryAtlas(ts.Kind, capacity), nil
}

// Frame is everything the renderer needs from one Update.
type Frame struct {
	Number    uint64
	Selection *patch.Selection
	// Seeds holds three vertices per patch slot.
	Seeds []patch.UploadVertex
	// Draws lists the base vertex of every patch slot by winding.
	Draws     [patch.NumWindings][]int32
	Regions   int
	Pinned    bool
	Wireframe bool
}

// Terrain owns the patch tree and every tile set.
type Terrain struct {
	log    *zap.Logger
	cat    *catalog.Catalog
	opts   Options
	cpu    CPUDetail
	gpu    GPUDetail
	tree   *patch.Tree
	layout *patch.Layout
	reader *tile.Reader
	sets   []*tile.Set
	dumper *debug.Dumper

	view      patch.View
	pinned    bool
	wireframe bool
	regions   []tile.Region
	frame     Frame
}

// New discovers the tile sets in cat and builds the pipeline around them.
func New(log *zap.Logger, cat *catalog.Catalog, opts Options, newAtlas AtlasFactory) (*Terrain, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if newAtlas == nil {
		newAtlas = MemoryAtlases
	}
	cpu, gpu := opts.CPU.CPU(), opts.GPU.GPU()
	capacity := gpu.TileCacheSize
	if opts.TileCacheOverride > 0 {
		capacity = opts.TileCacheOverride
	}

	tree, err := patch.NewTree(cpu.TreeConfig())
	if err != nil {
		return nil, err
	}
	layout, err := patch.NewLayout(gpu.Subdivisions)
	if err != nil {
		return nil, err
	}

	t := &Terrain{
		log:    log,
		cat:    cat,
		opts:   opts,
		cpu:    cpu,
		gpu:    gpu,
		tree:   tree,
		layout: layout,
		reader: tile.NewReader(cat, opts.MaxConcurrentReads),
		dumper: debug.NewDumper(opts.DumpDir),
	}

	indices, err := Discover(log, cat, opts.IndexGlob)
	if err != nil {
		return nil, fmt.Errorf("discovering tile sets: %w", err)
	}
	for _, idx := range indices {
		if idx.Kind == formats.KindNormal {
			log.Info("ignoring normal tile set; normals come from heights", zap.String("prefix", idx.Prefix))
			continue
		}
		if err := t.addSet(idx, capacity, newAtlas); err != nil {
			t.Shutdown()
			return nil, err
		}
	}

	log.Info("terrain ready",
		zap.Stringer("cpu_detail", opts.CPU),
		zap.Stringer("gpu_detail", opts.GPU),
		zap.Int("tile_sets", len(t.sets)),
		zap.Int("atlas_slots", capacity),
		zap.Int("patch_vertices", layout.Stride()))
	return t, nil
}

func (t *Terrain) addSet(idx formats.TileSetIndex, capacity int, newAtlas AtlasFactory) error {
	qt, err := tile.LoadQuadTree(t.cat, idx.Prefix)
	if err != nil {
		return fmt.Errorf("tile set %s: %w", idx.Prefix, err)
	}
	atlas, err := newAtlas(idx, capacity)
	if err != nil {
		return fmt.Errorf("tile set %s: creating atlas: %w", idx.Prefix, err)
	}
	set, err := tile.NewSet(t.log, tile.SetConfig{
		Name:        idx.Prefix,
		Kind:        idx.Kind,
		Capacity:    capacity,
		MaxReads:    t.reader.Limit(),
		CacheTiles:  t.opts.DecodedCacheTiles,
		TraceStates: t.opts.TraceStates,
	}, qt, atlas, t.reader)
	if err != nil {
		return err
	}
	t.log.Info("tile set loaded",
		zap.String("prefix", idx.Prefix),
		zap.Stringer("kind", idx.Kind),
		zap.Int("tiles", qt.Len()),
		zap.Int("max_level", qt.MaxLevel()))
	t.sets = append(t.sets, set)
	return nil
}

// Sets returns the tile sets in declaration order.
func (t *Terrain) Sets() []*tile.Set { return t.sets }

// Layout returns the per-patch vertex layout.
func (t *Terrain) Layout() *patch.Layout { return t.layout }

// Tree returns the patch tree.
func (t *Terrain) Tree() *patch.Tree { return t.tree }

// CPUDetail returns the current patch tree sizing.
func (t *Terrain) CPUDetail() CPUDetail { return t.cpu }

// GPUDetail returns the tessellation and atlas sizing.
func (t *Terrain) GPUDetail() GPUDetail { return t.gpu }

// Pinned reports whether the optimise camera is frozen.
func (t *Terrain) Pinned() bool { return t.pinned }

// OptimiseView returns the view the patch tree refines for.
func (t *Terrain) OptimiseView() patch.View { return t.view }

// Wireframe reports whether patch wireframes are drawn.
func (t *Terrain) Wireframe() bool { return t.wireframe }

// Frame returns the last Update's output.
func (t *Terrain) Frame() *Frame { return &t.frame }

// Update runs the CPU half of a frame: patch selection, tile votes, reads,
// uploads and index repaints, then the seed and draw lists.
func (t *Terrain) Update(view patch.View) *Frame {
	if !t.pinned {
		t.view = view
	}
	sel := t.tree.Update(t.view)

	t.regions = t.regions[:0]
	edgeScale := 1000 / float64(int(1)<<t.gpu.Subdivisions)
	for _, leaf := range sel.Leaves {
		t.regions = appendRegions(t.regions, leaf, leaf.EdgeKm*edgeScale)
	}

	for _, s := range t.sets {
		s.BeginUpdate()
		for _, r := range t.regions {
			s.NoteRequired(r)
		}
		s.FinishUpdate()
		s.PaintIndex()
	}

	t.frame.Number++
	t.frame.Selection = sel
	t.frame.Seeds = patch.AppendSeeds(t.frame.Seeds[:0], sel)
	t.frame.Draws = patch.DrawList(sel, t.layout.Stride())
	t.frame.Regions = len(t.regions)
	t.frame.Pinned = t.pinned
	t.frame.Wireframe = t.wireframe
	return &t.frame
}

const (
	halfTurnAS = 180 * 3600
	fullTurnAS = 2 * halfTurnAS
)

// appendRegions adds the footprint of leaf. A leaf across the antimeridian
// votes on both sides of it.
func appendRegions(dst []tile.Region, leaf patch.Leaf, edgeM float64) []tile.Region {
	g := patch.UnwrapLongitudes([3]geodesy.Graticule{
		geodesy.FromCartesian(leaf.Corners[0]),
		geodesy.FromCartesian(leaf.Corners[1]),
		geodesy.FromCartesian(leaf.Corners[2]),
	})
	r := tile.RegionFromGraticules(g[0], g[1], g[2], edgeM)
	if r.LonMaxAS <= halfTurnAS {
		return append(dst, r)
	}
	east, west := r, r
	east.LonMaxAS = halfTurnAS
	west.LonMinAS = -halfTurnAS
	west.LonMaxAS = r.LonMaxAS - fullTurnAS
	return append(dst, east, west)
}

// TogglePinCamera freezes or releases the optimise camera on key press.
func (t *Terrain) TogglePinCamera(pressed bool) {
	if !pressed {
		return
	}
	t.pinned = !t.pinned
	t.log.Info("terrain camera", zap.Bool("pinned", t.pinned))
}

// ToggleWireframe switches patch wireframes on key press.
func (t *Terrain) ToggleWireframe(pressed bool) {
	if !pressed {
		return
	}
	t.wireframe = !t.wireframe
	t.log.Info("terrain wireframe", zap.Bool("enabled", t.wireframe))
}

// SetDetail switches the CPU detail level. GPU detail only changes on
// restart, since it sizes the atlases and tessellation buffers.
func (t *Terrain) SetDetail(name string) error {
	d, err := ParseDetailLevel(name)
	if err != nil {
		return err
	}
	cpu := d.CPU()
	if err := t.tree.Reconfigure(cpu.TreeConfig()); err != nil {
		return err
	}
	t.cpu = cpu
	t.opts.CPU = d
	t.log.Info("terrain detail", zap.Stringer("cpu_detail", d), zap.Int("patches", cpu.Patches))
	return nil
}

// CaptureIndexSnapshot writes every tile set's index as a PNG and returns
// the file names.
func (t *Terrain) CaptureIndexSnapshot() ([]string, error) {
	var paths []string
	for _, s := range t.sets {
		index, err := s.Atlas().ReadIndex()
		if err != nil {
			return paths, fmt.Errorf("reading %s index: %w", s.Name(), err)
		}
		path, err := t.dumper.SaveIndex(s.Name(), index, tile.IndexWidth, tile.IndexHeight)
		if err != nil {
			return paths, err
		}
		t.log.Info("index snapshot", zap.String("tile_set", s.Name()), zap.String("path", path))
		paths = append(paths, path)
	}
	return paths, nil
}

// Heights returns the first height set able to answer CPU height queries.
func (t *Terrain) Heights() deferred.HeightSource {
	for _, s := range t.sets {
		if s.Kind() != formats.KindHeight {
			continue
		}
		if h, ok := s.Atlas().(deferred.HeightSource); ok {
			return h
		}
	}
	return nil
}

// RenderCPU runs the deferred pass and accumulators for the last frame on
// the CPU: geometry into g, then clear, colour sets in order, height sets,
// and the level tint when wireframes are on.
func (t *Terrain) RenderCPU(ctx context.Context, cam deferred.Camera, g *deferred.GBuffer, acc *deferred.Accumulators) (deferred.DrawStats, error) {
	if t.frame.Selection == nil {
		return deferred.DrawStats{}, fmt.Errorf("terrain: render before the first update")
	}
	g.Clear()
	var heights patch.HeightSampler
	if h := t.Heights(); h != nil {
		heights = h
	}
	stats := g.DrawSelection(cam, t.layout, t.frame.Selection, heights)

	if err := acc.Clear(ctx); err != nil {
		return stats, err
	}
	for _, s := range t.sets {
		if s.Kind() != formats.KindColor {
			continue
		}
		src, ok := s.Atlas().(deferred.ColorSource)
		if !ok {
			continue
		}
		if err := acc.AccumulateColors(ctx, g, src); err != nil {
			return stats, fmt.Errorf("accumulating %s: %w", s.Name(), err)
		}
	}
	for _, s := range t.sets {
		if s.Kind() != formats.KindHeight {
			continue
		}
		src, ok := s.Atlas().(deferred.HeightSource)
		if !ok {
			continue
		}
		if err := acc.AccumulateNormals(ctx, g, src); err != nil {
			return stats, fmt.Errorf("accumulating %s: %w", s.Name(), err)
		}
	}
	if t.wireframe {
		if err := acc.AccumulateLevels(ctx, g); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Shutdown drains every tile set's reads. The catalog may be closed after
// it returns.
func (t *Terrain) Shutdown() {
	for _, s := range t.sets {
		s.Shutdown()
	}
}
