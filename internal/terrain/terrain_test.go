package terrain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/internal/terrain/tile"
	"github.com/Faultbox/orbis/internal/terrain/tile/tiletest"
	"github.com/Faultbox/orbis/pkg/formats"
	"github.com/Faultbox/orbis/pkg/geodesy"
)

var testColor = [4]uint8{10, 200, 30, 255}

// writeTestCatalog writes a colour set, a height set at a constant 100 m,
// and sidecars that discovery has to skip.
func writeTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tiletest.WriteTileSet(t, dir, formats.TileSetIndex{Prefix: "color", Kind: formats.KindColor}, 3,
		func(int, int32, int32) []byte {
			raw := make([]byte, formats.KindColor.RawTileSize())
			for i := 0; i < len(raw); i += 3 {
				copy(raw[i:], testColor[:3])
			}
			return raw
		})
	tiletest.WriteTileSet(t, dir, formats.TileSetIndex{Prefix: "height", Kind: formats.KindHeight}, 3,
		func(int, int32, int32) []byte {
			h := make(formats.HeightTile, formats.TilePhysicalSize*formats.TilePhysicalSize)
			for i := range h {
				h[i] = 100
			}
			return h.Bytes()
		})
	tiletest.WriteSidecar(t, dir, formats.TileSetIndex{Prefix: "ice", Kind: formats.KindHeight, Coordinates: formats.CoordinatesCartesianPolar})
	tiletest.WriteSidecar(t, dir, formats.TileSetIndex{Prefix: "shade", Kind: formats.KindNormal})
	if err := os.WriteFile(filepath.Join(dir, "broken-index.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func nadirView(t *testing.T, latDeg, lonDeg, altKm float64) patch.View {
	t.Helper()
	g, err := geodesy.Surface(latDeg, lonDeg, altKm)
	if err != nil {
		t.Fatal(err)
	}
	return patch.View{
		Position:       g.Cartesian(),
		Forward:        r3.Scale(-1, g.Up()),
		Up:             g.North(),
		FovY:           geodesy.Radians(60),
		Aspect:         1,
		Near:           0.001,
		ViewportHeight: 32,
	}
}

func newTestTerrain(t *testing.T, opts Options) *Terrain {
	t.Helper()
	cat := tiletest.OpenCatalog(t, writeTestCatalog(t))
	if opts.TileCacheOverride == 0 {
		opts.TileCacheOverride = 16
	}
	tr, err := New(zaptest.NewLogger(t), cat, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(tr.Shutdown)
	return tr
}

// streamUntilResident updates until every set's index covers the point.
func streamUntilResident(t *testing.T, tr *Terrain, view patch.View, latDeg, lonDeg float64) {
	t.Helper()
	lat, lon := latDeg*3600, lonDeg*3600
	for i := 0; i < 500; i++ {
		tr.Update(view)
		resident := true
		for _, s := range tr.Sets() {
			slot, _ := s.Atlas().(*tile.MemoryAtlas).Lookup(lat, lon)
			if slot == tile.IndexEmpty {
				resident = false
			}
		}
		if resident {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("tiles never became resident")
}

func TestDetailTables(t *testing.T) {
	tests := []struct {
		name string
		cpu  CPUDetail
		gpu  GPUDetail
	}{
		{"low", CPUDetail{11, 150, 200}, GPUDetail{4, 32}},
		{"Medium", CPUDetail{15, 150, 300}, GPUDetail{5, 64}},
		{"high", CPUDetail{16, 150, 400}, GPUDetail{6, 128}},
		{"ULTRA", CPUDetail{17, 150, 500}, GPUDetail{7, 256}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDetailLevel(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if d.CPU() != tt.cpu || d.GPU() != tt.gpu {
				t.Errorf("%s = %+v %+v", d, d.CPU(), d.GPU())
			}
		})
	}
	if _, err := ParseDetailLevel("extreme"); err == nil {
		t.Error("unknown detail level accepted")
	}
}

func TestDiscoverSkipsUnusableSidecars(t *testing.T) {
	cat := tiletest.OpenCatalog(t, writeTestCatalog(t))
	got, err := Discover(zaptest.NewLogger(t), cat, "")
	if err != nil {
		t.Fatal(err)
	}
	var prefixes []string
	for _, idx := range got {
		prefixes = append(prefixes, idx.Prefix)
	}
	want := []string{"color", "height", "shade"}
	if len(prefixes) != len(want) {
		t.Fatalf("discovered %v, want %v", prefixes, want)
	}
	for i := range want {
		if prefixes[i] != want[i] {
			t.Fatalf("discovered %v, want %v", prefixes, want)
		}
	}
}

func TestUpdateStreamsTiles(t *testing.T) {
	tr := newTestTerrain(t, Options{CPU: DetailLow, GPU: DetailLow})
	if len(tr.Sets()) != 2 {
		t.Fatalf("%d tile sets, want colour and height", len(tr.Sets()))
	}
	view := nadirView(t, 10, 20, 400)
	streamUntilResident(t, tr, view, 10, 20)

	f := tr.Frame()
	patches := tr.CPUDetail().Patches
	if len(f.Seeds) != 3*patches {
		t.Errorf("%d seeds, want %d", len(f.Seeds), 3*patches)
	}
	draws := 0
	for _, d := range f.Draws {
		draws += len(d)
	}
	if draws != patches {
		t.Errorf("%d draws, want %d", draws, patches)
	}
	if f.Regions < len(f.Selection.Leaves) {
		t.Errorf("%d regions for %d leaves", f.Regions, len(f.Selection.Leaves))
	}
	for _, s := range tr.Sets() {
		if s.SlotsInUse()+s.FreeSlots() != s.Capacity() {
			t.Errorf("%s: %d used + %d free != %d", s.Name(), s.SlotsInUse(), s.FreeSlots(), s.Capacity())
		}
	}
}

func TestRenderCPU(t *testing.T) {
	tr := newTestTerrain(t, Options{CPU: DetailLow, GPU: DetailLow})
	view := nadirView(t, 10, 20, 400)
	streamUntilResident(t, tr, view, 10, 20)

	cam, err := deferred.NewCamera(view.Position, view.Forward, view.Up, view.FovY, view.Aspect, view.Near)
	if err != nil {
		t.Fatal(err)
	}
	g, err := deferred.NewGBuffer(32, 32)
	if err != nil {
		t.Fatal(err)
	}
	acc, err := deferred.NewAccumulators(32, 32)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := tr.RenderCPU(context.Background(), cam, g, acc)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Patches != len(tr.Frame().Selection.Leaves) {
		t.Errorf("drew %d patches", stats.Patches)
	}
	if c := acc.Color(16, 16); c != testColor {
		t.Errorf("centre colour = %v, want %v", c, testColor)
	}
	if n := acc.Normal(16, 16); n != [2]int16{} {
		t.Errorf("centre normal = %v, want flat", n)
	}

	tr.ToggleWireframe(true)
	tr.Update(view)
	if _, err := tr.RenderCPU(context.Background(), cam, g, acc); err != nil {
		t.Fatal(err)
	}
	lvl := deferred.LevelColor(int(g.At(16, 16).Flags))
	if c := acc.Color(16, 16); c != [4]uint8{lvl.R, lvl.G, lvl.B, lvl.A} {
		t.Errorf("wireframe centre colour = %v, want level tint", c)
	}
}

func TestRenderBeforeUpdate(t *testing.T) {
	tr := newTestTerrain(t, Options{})
	g, _ := deferred.NewGBuffer(4, 4)
	acc, _ := deferred.NewAccumulators(4, 4)
	if _, err := tr.RenderCPU(context.Background(), deferred.Camera{}, g, acc); err == nil {
		t.Error("render before update succeeded")
	}
}

func TestPinCamera(t *testing.T) {
	tr := newTestTerrain(t, Options{})
	first := nadirView(t, 10, 20, 400)
	tr.Update(first)

	tr.TogglePinCamera(true)
	tr.TogglePinCamera(false) // release of the key
	if !tr.Pinned() {
		t.Fatal("camera not pinned")
	}
	f := tr.Update(nadirView(t, -40, 100, 400))
	if !f.Pinned || tr.OptimiseView().Position != first.Position {
		t.Error("pinned camera followed the view")
	}

	tr.TogglePinCamera(true)
	second := nadirView(t, -40, 100, 400)
	tr.Update(second)
	if tr.OptimiseView().Position != second.Position {
		t.Error("released camera did not follow the view")
	}
}

func TestSetDetail(t *testing.T) {
	tr := newTestTerrain(t, Options{})
	if err := tr.SetDetail("ultra"); err != nil {
		t.Fatal(err)
	}
	if got := tr.Tree().Config().Patches; got != 500 {
		t.Errorf("patches = %d after set_detail ultra", got)
	}
	f := tr.Update(nadirView(t, 0, 0, 1000))
	if f.Selection.Patches != 500 {
		t.Errorf("selection padded to %d", f.Selection.Patches)
	}
	if err := tr.SetDetail("insane"); err == nil {
		t.Error("unknown detail accepted")
	}
	if tr.CPUDetail().Patches != 500 {
		t.Error("failed set_detail changed the detail")
	}
}

func TestCaptureIndexSnapshot(t *testing.T) {
	dump := t.TempDir()
	tr := newTestTerrain(t, Options{DumpDir: dump})
	tr.Update(nadirView(t, 10, 20, 400))
	paths, err := tr.CaptureIndexSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("wrote %v", paths)
	}
	for _, name := range []string{"terrain_index_color.png", "terrain_index_height.png"} {
		if _, err := os.Stat(filepath.Join(dump, name)); err != nil {
			t.Error(err)
		}
	}
}

func TestAppendRegionsAcrossAntimeridian(t *testing.T) {
	corner := func(lat, lon float64) r3.Vec {
		g, err := geodesy.Surface(lat, lon, 0)
		if err != nil {
			t.Fatal(err)
		}
		return g.Cartesian()
	}
	seam := patch.Leaf{Corners: [3]r3.Vec{corner(10, 179), corner(10, -179), corner(11, 179.5)}}
	got := appendRegions(nil, seam, 1000)
	if len(got) != 2 {
		t.Fatalf("%d regions, want one per side", len(got))
	}
	east, west := got[0], got[1]
	if east.LonMinAS != 179*3600 || east.LonMaxAS != 180*3600 {
		t.Errorf("east = [%d, %d]", east.LonMinAS, east.LonMaxAS)
	}
	if west.LonMinAS != -180*3600 || west.LonMaxAS != -179*3600 {
		t.Errorf("west = [%d, %d]", west.LonMinAS, west.LonMaxAS)
	}
	if east.LatMinAS != 10*3600 || west.LatMaxAS != 11*3600 {
		t.Errorf("latitudes = %+v %+v", east, west)
	}

	plain := patch.Leaf{Corners: [3]r3.Vec{corner(10, 10), corner(10, 11), corner(11, 10.5)}}
	if got := appendRegions(nil, plain, 1000); len(got) != 1 || got[0].LonMinAS != 10*3600 {
		t.Errorf("plain leaf regions = %+v", got)
	}
}
