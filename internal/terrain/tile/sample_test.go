package tile

import (
	"math"
	"testing"

	"github.com/Faultbox/orbis/pkg/formats"
)

func gradientHeights() []byte {
	h := make(formats.HeightTile, formats.TilePhysicalSize*formats.TilePhysicalSize)
	for r := 0; r < formats.TilePhysicalSize; r++ {
		for c := 0; c < formats.TilePhysicalSize; c++ {
			h[r*formats.TilePhysicalSize+c] = int16(r*10 + c)
		}
	}
	return h.Bytes()
}

func TestMemoryAtlasHeightAt(t *testing.T) {
	info := NodeInfo{BaseLatAS: 0, BaseLonAS: 0, ExtentAS: formats.LevelExtentArcSeconds(5), Level: 5}
	a := NewMemoryAtlas(formats.KindHeight, 2)
	a.UploadTile(1, gradientHeights())
	a.WriteTileInfo(1, TileInfo{ExtentAS: float32(info.ExtentAS), Slot: 1})
	a.PaintIndex(paintQuad(nil, info, 1))

	ext := float64(info.ExtentAS)
	tests := []struct {
		name     string
		row, col float64
		want     float64
	}{
		{"sample", 100, 200, 1000 + 200 + 10 + 1},
		{"just east of a sample", 100, 200.3, 1211},
		{"nearer the next column", 100, 200.7, 1212},
		{"nearer the next row", 100.7, 200, 1221},
		{"near south west border", 0.2, 0.2, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat := ext * tt.row / formats.TileExtent
			lon := ext * tt.col / formats.TileExtent
			got, ok := a.HeightAt(lat, lon)
			if !ok {
				t.Fatal("no height")
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("HeightAt = %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := a.HeightAt(-1000, -1000); ok {
		t.Error("height outside every tile")
	}
	if s, ok := a.SpacingAt(10, 10); !ok || s != 128 {
		t.Errorf("SpacingAt = %v, %v; want 128", s, ok)
	}
	if _, ok := a.ColorAt(10, 10); ok {
		t.Error("colour from a height atlas")
	}
}

func TestMemoryAtlasColorAt(t *testing.T) {
	info := NodeInfo{BaseLatAS: -100000, BaseLonAS: -100000, ExtentAS: formats.LevelExtentArcSeconds(3), Level: 3}
	rgb := make([]byte, formats.KindColor.RawTileSize())
	for i := 0; i < len(rgb); i += 3 {
		rgb[i], rgb[i+1], rgb[i+2] = 10, 20, 30
	}
	a := NewMemoryAtlas(formats.KindColor, 1)
	a.UploadTile(0, formats.ExpandRGB(rgb))
	a.WriteTileInfo(0, TileInfo{
		BaseLatAS: float32(info.BaseLatAS), BaseLonAS: float32(info.BaseLonAS),
		ExtentAS: float32(info.ExtentAS),
	})
	a.PaintIndex(paintQuad(nil, info, 0))

	got, ok := a.ColorAt(0, 0)
	if !ok {
		t.Fatal("no colour")
	}
	if got != [4]uint8{10, 20, 30, 255} {
		t.Errorf("ColorAt = %v", got)
	}
}
