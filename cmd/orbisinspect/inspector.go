package main

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/sqweek/dialog"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/orbis/internal/engine/camera"
	"github.com/Faultbox/orbis/internal/engine/debug"
	"github.com/Faultbox/orbis/internal/engine/ui"
	"github.com/Faultbox/orbis/internal/terrain"
	"github.com/Faultbox/orbis/internal/terrain/tile"
	"github.com/Faultbox/orbis/pkg/catalog"
	"github.com/Faultbox/orbis/pkg/formats"
)

const (
	leftPanelWidth = 340
	previewSize    = 512
	maxTileRows    = 512
	streamWidth    = 1280
	streamHeight   = 720
	indexScale     = 0.25
	indexRefresh   = 500 * time.Millisecond
)

// packInfo is one layer pack of the selected tile set.
type packInfo struct {
	name   string
	fid    catalog.FileID
	header formats.LayerPackHeader
}

// Inspector is the catalog browser state. Every field is owned by the
// render loop; the directory dialog hands its result over pendingDir.
type Inspector struct {
	log     *zap.Logger
	backend *ui.Backend

	paths   []string
	catalog *catalog.Catalog
	sets    []formats.TileSetIndex

	selectedSet  int
	packs        []packInfo
	selectedPack int
	pack         *formats.LayerPack
	selectedTile int

	preview     *ui.Texture
	previewNote string
	scale       float32
	status      string

	pendingDir chan string

	// CPU streaming view.
	terrain   *terrain.Terrain
	streaming bool
	lat, lon  float32
	alt       float32
	lastFrame time.Time
	index     *ui.Texture
	indexAt   time.Time
}

// NewInspector creates the window.
func NewInspector(log *zap.Logger) (*Inspector, error) {
	b, err := ui.NewBackend("Orbis Inspector", 1440, 900)
	if err != nil {
		return nil, err
	}
	return &Inspector{
		log:          log,
		backend:      b,
		selectedSet:  -1,
		selectedPack: -1,
		selectedTile: -1,
		scale:        1,
		lat:          27.98,
		lon:          86.92,
		alt:          50,
		pendingDir:   make(chan string, 1),
	}, nil
}

// Open replaces the catalog with one made of paths.
func (in *Inspector) Open(paths ...string) error {
	cat, err := catalog.Open(in.log.Named("catalog"), paths...)
	if err != nil {
		return err
	}
	sets, err := terrain.Discover(in.log, cat, "")
	if err != nil {
		cat.Close()
		return err
	}
	in.closeCatalog()
	in.catalog, in.sets, in.paths = cat, sets, paths
	in.status = fmt.Sprintf("%d files, %d tile sets", cat.Len(), len(sets))
	in.backend.SetWindowTitle("Orbis Inspector - " + strings.Join(paths, ", "))
	in.log.Info("catalog opened", zap.Strings("paths", paths), zap.Int("tile_sets", len(sets)))
	return nil
}

func (in *Inspector) closeCatalog() {
	in.stopStreaming()
	in.releasePreview()
	in.selectedSet, in.selectedPack, in.selectedTile = -1, -1, -1
	in.packs, in.pack, in.sets = nil, nil, nil
	if in.catalog != nil {
		if err := in.catalog.Close(); err != nil {
			in.log.Warn("catalog close", zap.Error(err))
		}
		in.catalog = nil
	}
}

// Close releases the catalog and textures.
func (in *Inspector) Close() {
	in.closeCatalog()
}

// Run starts the render loop.
func (in *Inspector) Run() {
	in.backend.Run(in.render)
}

func (in *Inspector) browse() {
	// The native dialog blocks; the result is picked up on the render thread.
	go func() {
		dir, err := dialog.Directory().Title("Open terrain catalog").Browse()
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				in.log.Warn("directory dialog", zap.Error(err))
			}
			return
		}
		select {
		case in.pendingDir <- dir:
		default:
		}
	}()
}

func (in *Inspector) render() {
	select {
	case dir := <-in.pendingDir:
		if err := in.Open(dir); err != nil {
			in.status = err.Error()
		}
	default:
	}

	_, _, w, h := in.backend.GetViewport()
	vp := imgui.MainViewport()
	pos := vp.WorkPos()
	flags := imgui.WindowFlagsNoMove | imgui.WindowFlagsNoResize | imgui.WindowFlagsNoCollapse

	imgui.SetNextWindowPos(pos)
	imgui.SetNextWindowSize(imgui.NewVec2(leftPanelWidth, h))
	if imgui.BeginV("Catalog", nil, flags) {
		in.renderCatalog()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(pos.X+leftPanelWidth, pos.Y))
	imgui.SetNextWindowSize(imgui.NewVec2(w-leftPanelWidth, h))
	if imgui.BeginV("Preview", nil, flags) {
		in.renderPreview()
	}
	imgui.End()

	if in.streaming {
		in.stream()
	}
}

func (in *Inspector) renderCatalog() {
	if imgui.Button("Open catalog...") {
		in.browse()
	}
	imgui.SameLine()
	if imgui.Button("Reload") && len(in.paths) > 0 {
		if err := in.Open(in.paths...); err != nil {
			in.status = err.Error()
		}
	}
	imgui.TextWrapped(in.status)
	imgui.Separator()

	if in.catalog == nil {
		imgui.TextDisabled("No catalog loaded")
		return
	}

	imgui.Text("Tile sets")
	for i, s := range in.sets {
		label := fmt.Sprintf("%s (%s, %s)##set%d", s.Prefix, s.Kind, s.Coordinates, i)
		if imgui.SelectableBoolV(label, i == in.selectedSet, 0, imgui.NewVec2(0, 0)) {
			in.selectSet(i)
		}
	}

	if len(in.packs) > 0 {
		imgui.Separator()
		imgui.Text("Layer packs")
		for i, p := range in.packs {
			label := fmt.Sprintf("L%02d  %6d tiles  %s##pack%d", p.header.Level, p.header.TileCount, p.header.Compression, i)
			if imgui.SelectableBoolV(label, i == in.selectedPack, 0, imgui.NewVec2(0, 0)) {
				in.selectPack(i)
			}
		}
	}

	if in.pack != nil {
		imgui.Separator()
		imgui.Text("Tiles")
		if imgui.BeginChildStrV("Tiles", imgui.NewVec2(0, 0), imgui.ChildFlagsBorders, 0) {
			for i, e := range in.pack.Entries {
				if i == maxTileRows {
					imgui.TextDisabled(fmt.Sprintf("... %d more", len(in.pack.Entries)-i))
					break
				}
				label := fmt.Sprintf("%4d  %s  %.4f, %.4f##tile%d", i, e.IndexInParent,
					float64(e.BaseLatAS)/3600, float64(e.BaseLonAS)/3600, i)
				if imgui.SelectableBoolV(label, i == in.selectedTile, 0, imgui.NewVec2(0, 0)) {
					in.selectTile(i)
				}
			}
		}
		imgui.EndChild()
	}
}

func (in *Inspector) selectSet(i int) {
	in.selectedSet, in.selectedPack, in.selectedTile = i, -1, -1
	in.pack = nil
	in.packs = in.packs[:0]
	in.releasePreview()

	idx := in.sets[i]
	ids, err := in.catalog.FindMatching(idx.LayerPackGlob())
	if err != nil {
		in.status = err.Error()
		return
	}
	for _, id := range ids {
		info, err := in.catalog.Stat(id)
		if err != nil {
			continue
		}
		data, err := in.catalog.ReadMapped(id, nil)
		if err != nil {
			in.log.Warn("reading layer pack", zap.String("file", info.Name), zap.Error(err))
			continue
		}
		h, err := formats.ParseLayerPackHeader(data)
		if err != nil {
			in.log.Warn("bad layer pack", zap.String("file", info.Name), zap.Error(err))
			continue
		}
		in.packs = append(in.packs, packInfo{name: info.Name, fid: id, header: h})
	}
	in.status = fmt.Sprintf("%s: %d layer packs", idx.Prefix, len(in.packs))
}

func (in *Inspector) selectPack(i int) {
	in.selectedPack, in.selectedTile = i, -1
	in.releasePreview()
	data, err := in.catalog.ReadMapped(in.packs[i].fid, nil)
	if err != nil {
		in.status = err.Error()
		return
	}
	if in.pack, err = formats.ParseLayerPack(data); err != nil {
		in.status = fmt.Sprintf("%s: %v", in.packs[i].name, err)
		in.pack = nil
	}
}

func (in *Inspector) selectTile(i int) {
	in.selectedTile = i
	in.refreshPreview()
}

func (in *Inspector) refreshPreview() {
	in.releasePreview()
	if in.pack == nil || in.selectedTile < 0 {
		return
	}
	kind := in.sets[in.selectedSet].Kind
	start := time.Now()
	decoded, err := formats.DecodeTile(kind, in.pack.Header.Compression, in.pack.TileData(in.selectedTile))
	if err != nil {
		in.previewNote = err.Error()
		return
	}
	img, err := debug.TileImage(kind, decoded)
	if err != nil {
		in.previewNote = err.Error()
		return
	}
	factor := float64(in.scale) * previewSize / formats.TilePhysicalSize
	in.preview = ui.NewTexture(toRGBA(debug.Scale(img, factor, true)))
	in.previewNote = fmt.Sprintf("%s tile %d of %s, decoded in %s",
		kind, in.selectedTile, in.packs[in.selectedPack].name, time.Since(start).Round(time.Microsecond))
	if kind == formats.KindHeight {
		h, err := formats.ParseHeightTile(decoded)
		if err == nil {
			lo, hi := h.Range()
			in.previewNote += fmt.Sprintf(", heights %d..%d m", lo, hi)
		}
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func (in *Inspector) releasePreview() {
	in.preview.Release()
	in.preview = nil
	in.previewNote = ""
}

func (in *Inspector) renderPreview() {
	if imgui.TreeNodeExStrV("Tile", imgui.TreeNodeFlagsDefaultOpen) {
		if imgui.SliderFloatV("Zoom", &in.scale, 0.25, 2, "%.2fx", imgui.SliderFlagsNone) && in.preview != nil {
			in.refreshPreview()
		}
		if in.preview != nil {
			in.preview.Image(float32(in.preview.Width), float32(in.preview.Height))
		} else if in.previewNote == "" {
			imgui.TextDisabled("Select a tile to preview")
		}
		if in.previewNote != "" {
			imgui.TextWrapped(in.previewNote)
		}
		imgui.TreePop()
	}

	if in.catalog == nil {
		return
	}
	imgui.Separator()
	if imgui.TreeNodeExStrV("Streaming", imgui.TreeNodeFlagsDefaultOpen) {
		imgui.SliderFloatV("Latitude", &in.lat, -89, 89, "%.3f", imgui.SliderFlagsNone)
		imgui.SliderFloatV("Longitude", &in.lon, -180, 180, "%.3f", imgui.SliderFlagsNone)
		imgui.SliderFloatV("Altitude km", &in.alt, 0.1, 20000, "%.1f", imgui.SliderFlagsLogarithmic)
		if !in.streaming {
			if imgui.Button("Start streaming") {
				in.startStreaming()
			}
		} else {
			if imgui.Button("Stop") {
				in.stopStreaming()
			}
			imgui.SameLine()
			if imgui.Button("Snapshot indices") {
				in.snapshot()
			}
		}
		if in.index != nil {
			imgui.Text("Index of the selected tile set")
			in.index.Image(float32(in.index.Width), float32(in.index.Height))
		}
		imgui.TreePop()
	}
}

func (in *Inspector) startStreaming() {
	t, err := terrain.New(in.log.Named("terrain"), in.catalog, terrain.Options{
		CPU: terrain.DetailMedium,
		GPU: terrain.DetailLow,
	}, terrain.MemoryAtlases)
	if err != nil {
		in.status = err.Error()
		return
	}
	in.terrain = t
	in.streaming = true
	in.lastFrame = time.Now()
}

func (in *Inspector) stopStreaming() {
	in.streaming = false
	if in.terrain != nil {
		in.terrain.Shutdown()
		in.terrain = nil
	}
	in.index.Release()
	in.index = nil
}

// stream runs one terrain update for the slider camera and shows the
// streaming panel.
func (in *Inspector) stream() {
	now := time.Now()
	dt := now.Sub(in.lastFrame)
	in.lastFrame = now

	c, err := camera.NewPlanetCamera(float64(in.lat), float64(in.lon), float64(in.alt), 0, 60)
	if err != nil {
		in.status = err.Error()
		return
	}
	in.terrain.Update(c.View(streamWidth, streamHeight))
	ui.TerrainPanel(ui.TerrainStats(in.terrain, dt, 0))

	if in.selectedSet >= 0 && now.Sub(in.indexAt) >= indexRefresh {
		in.indexAt = now
		in.refreshIndex(in.sets[in.selectedSet].Prefix)
	}
}

func (in *Inspector) refreshIndex(prefix string) {
	for _, s := range in.terrain.Sets() {
		if s.Name() != prefix {
			continue
		}
		texels, err := s.Atlas().ReadIndex()
		if err != nil {
			return
		}
		img, err := debug.IndexImage(texels, tile.IndexWidth, tile.IndexHeight)
		if err != nil {
			return
		}
		in.index.Release()
		in.index = ui.NewTexture(toRGBA(debug.Scale(img, indexScale, false)))
		return
	}
}

func (in *Inspector) snapshot() {
	paths, err := in.terrain.CaptureIndexSnapshot()
	if err != nil {
		in.status = err.Error()
		return
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	in.status = "wrote " + strings.Join(names, ", ")
}
