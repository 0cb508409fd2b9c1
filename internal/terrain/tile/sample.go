package tile

import (
	"encoding/binary"
	"math"

	"github.com/Faultbox/orbis/pkg/formats"
)

// SamplePosition returns where a point falls inside a tile's physical
// samples: row counts south to north, col west to east, both starting at the
// one-sample border.
func SamplePosition(info TileInfo, latAS, lonAS float64) (row, col float64) {
	scale := formats.TileExtent / float64(info.ExtentAS)
	row = 1 + (latAS-float64(info.BaseLatAS))*scale
	col = 1 + (lonAS-float64(info.BaseLonAS))*scale
	return row, col
}

// locate finds the resident tile covering a point.
func (a *MemoryAtlas) locate(latAS, lonAS float64) (TileInfo, []byte, bool) {
	x, y, ok := IndexCell(latAS, lonAS)
	if !ok {
		return TileInfo{}, nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	slot := a.index[y*IndexWidth+x]
	if slot == IndexEmpty || int(slot) >= len(a.layers) || a.layers[slot] == nil {
		return TileInfo{}, nil, false
	}
	return a.infos[slot], a.layers[slot], true
}

// bilinear blends the four samples around (row, col) read by at.
func bilinear(row, col float64, at func(r, c int) float64) float64 {
	last := float64(formats.TilePhysicalSize - 1)
	row = math.Max(0, math.Min(last, row))
	col = math.Max(0, math.Min(last, col))
	r0, c0 := int(row), int(col)
	r1, c1 := min(r0+1, formats.TilePhysicalSize-1), min(c0+1, formats.TilePhysicalSize-1)
	fr, fc := row-float64(r0), col-float64(c0)
	top := at(r0, c0)*(1-fc) + at(r0, c1)*fc
	bottom := at(r1, c0)*(1-fc) + at(r1, c1)*fc
	return top*(1-fr) + bottom*fr
}

// nearest reads the sample closest to (row, col).
func nearest(row, col float64, at func(r, c int) float64) float64 {
	last := float64(formats.TilePhysicalSize - 1)
	r := math.Round(math.Max(0, math.Min(last, row)))
	c := math.Round(math.Max(0, math.Min(last, col)))
	return at(int(r), int(c))
}

// HeightAt samples a height atlas, in metres. Heights are never blended, so
// a border or sentinel sample cannot leak into its neighbours.
func (a *MemoryAtlas) HeightAt(latAS, lonAS float64) (float64, bool) {
	if a.kind != formats.KindHeight {
		return 0, false
	}
	info, layer, ok := a.locate(latAS, lonAS)
	if !ok {
		return 0, false
	}
	row, col := SamplePosition(info, latAS, lonAS)
	h := nearest(row, col, func(r, c int) float64 {
		i := (r*formats.TilePhysicalSize + c) * 2
		return float64(int16(binary.LittleEndian.Uint16(layer[i:])))
	})
	return h, true
}

// SpacingAt returns the sample spacing, in arcseconds, of the tile covering
// a point.
func (a *MemoryAtlas) SpacingAt(latAS, lonAS float64) (float64, bool) {
	info, _, ok := a.locate(latAS, lonAS)
	if !ok {
		return 0, false
	}
	return float64(info.ExtentAS) / formats.TileExtent, true
}

// ColorAt samples a colour atlas.
func (a *MemoryAtlas) ColorAt(latAS, lonAS float64) ([4]uint8, bool) {
	if a.kind != formats.KindColor {
		return [4]uint8{}, false
	}
	info, layer, ok := a.locate(latAS, lonAS)
	if !ok {
		return [4]uint8{}, false
	}
	row, col := SamplePosition(info, latAS, lonAS)
	var out [4]uint8
	for ch := 0; ch < 4; ch++ {
		v := bilinear(row, col, func(r, c int) float64 {
			return float64(layer[(r*formats.TilePhysicalSize+c)*4+ch])
		})
		out[ch] = uint8(math.Round(v))
	}
	return out, true
}
