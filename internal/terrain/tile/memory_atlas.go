package tile

import (
	"fmt"
	"math"
	"sync"

	"github.com/Faultbox/orbis/pkg/formats"
)

// MemoryAtlas is an Atlas kept in CPU memory. It rasterises the index the
// same way the GPU does: pixel centres, later triangles on top.
type MemoryAtlas struct {
	mu     sync.Mutex
	kind   formats.DataKind
	layers [][]byte
	infos  []TileInfo
	index  []uint16
}

// NewMemoryAtlas allocates an atlas with capacity slots.
func NewMemoryAtlas(kind formats.DataKind, capacity int) *MemoryAtlas {
	a := &MemoryAtlas{
		kind:   kind,
		layers: make([][]byte, capacity),
		infos:  make([]TileInfo, capacity),
		index:  make([]uint16, IndexWidth*IndexHeight),
	}
	for i := range a.index {
		a.index[i] = IndexEmpty
	}
	return a
}

// UploadTile stores a decoded tile in layer slot.
func (a *MemoryAtlas) UploadTile(slot int, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	want := formats.TilePhysicalSize * formats.TilePhysicalSize * a.kind.AtlasBytesPerSample()
	if len(data) != want {
		panic(fmt.Sprintf("atlas upload: slot %d got %d bytes, want %d", slot, len(data), want))
	}
	a.layers[slot] = data
}

// WriteTileInfo stores the tile info of slot.
func (a *MemoryAtlas) WriteTileInfo(slot int, info TileInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.infos[slot] = info
}

// Layer returns the tile data in slot, nil if never uploaded.
func (a *MemoryAtlas) Layer(slot int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.layers[slot]
}

// TileInfo returns the info entry of slot.
func (a *MemoryAtlas) TileInfo(slot int) TileInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.infos[slot]
}

// PaintIndex clears the index and rasterises the triangles.
func (a *MemoryAtlas) PaintIndex(vertices []IndexPaintVertex) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.index {
		a.index[i] = IndexEmpty
	}
	for i := 0; i+2 < len(vertices); i += 3 {
		a.fillTriangle(vertices[i], vertices[i+1], vertices[i+2])
	}
}

// ReadIndex returns a copy of the index texels.
func (a *MemoryAtlas) ReadIndex() ([]uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uint16, len(a.index))
	copy(out, a.index)
	return out, nil
}

// Lookup returns the slot the index holds for a point in arcseconds.
func (a *MemoryAtlas) Lookup(latAS, lonAS float64) (uint16, bool) {
	x, y, ok := IndexCell(latAS, lonAS)
	if !ok {
		return IndexEmpty, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index[y*IndexWidth+x], true
}

func (a *MemoryAtlas) fillTriangle(v0, v1, v2 IndexPaintVertex) {
	// Clip space to texel space.
	px := func(v IndexPaintVertex) (float64, float64) {
		return (float64(v.Position[0])*0.5 + 0.5) * IndexWidth,
			(float64(v.Position[1])*0.5 + 0.5) * IndexHeight
	}
	x0, y0 := px(v0)
	x1, y1 := px(v1)
	x2, y2 := px(v2)

	area := edge(x0, y0, x1, y1, x2, y2)
	if area == 0 {
		return
	}

	minX := clampInt(int(math.Floor(math.Min(x0, math.Min(x1, x2)))), 0, IndexWidth-1)
	maxX := clampInt(int(math.Ceil(math.Max(x0, math.Max(x1, x2)))), 0, IndexWidth-1)
	minY := clampInt(int(math.Floor(math.Min(y0, math.Min(y1, y2)))), 0, IndexHeight-1)
	maxY := clampInt(int(math.Ceil(math.Max(y0, math.Max(y1, y2)))), 0, IndexHeight-1)

	slot := uint16(v0.Slot)
	for y := minY; y <= maxY; y++ {
		cy := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			cx := float64(x) + 0.5
			w0 := edge(x1, y1, x2, y2, cx, cy)
			w1 := edge(x2, y2, x0, y0, cx, cy)
			w2 := edge(x0, y0, x1, y1, cx, cy)
			if area < 0 {
				w0, w1, w2 = -w0, -w1, -w2
			}
			if w0 >= 0 && w1 >= 0 && w2 >= 0 {
				a.index[y*IndexWidth+x] = slot
			}
		}
	}
}

func edge(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
