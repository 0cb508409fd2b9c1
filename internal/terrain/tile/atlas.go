// Package tile streams terrain tiles from the catalog into a fixed-size
// atlas and keeps an index texture that maps (lat, lon) to atlas slots.
//
// Each tile set owns a QuadTree of every tile it could load, a Set that
// decides which of them occupy the atlas, and an Atlas that holds the
// uploaded samples. The GPU atlas lives in the engine; MemoryAtlas is the
// CPU implementation used by tools and tests.
package tile

import (
	"github.com/Faultbox/orbis/pkg/formats"
)

// Index texture geometry. One index cell spans exactly one TileExtent of
// arcseconds, the width of a full resolution tile.
const (
	IndexWidth  = 2560
	IndexHeight = 1280

	// IndexExtentLonAS and IndexExtentLatAS are the angular sizes covered.
	IndexExtentLonAS = IndexWidth * formats.TileExtent
	IndexExtentLatAS = IndexHeight * formats.TileExtent

	// IndexEmpty is the index value of cells no active tile covers.
	IndexEmpty = 0xFFFF
)

// TileInfo is one entry of the per-slot tile info buffer (std430, 16 bytes).
type TileInfo struct {
	BaseLatAS float32
	BaseLonAS float32
	ExtentAS  float32
	Slot      uint32
}

// IndexPaintVertex is one vertex of the index repaint draw (12 bytes).
type IndexPaintVertex struct {
	Position [2]float32
	Slot     uint32
}

// Atlas is the storage side of a tile set: slot-addressed tile layers, the
// tile info buffer and the index texture.
type Atlas interface {
	// UploadTile copies a decoded tile into layer slot.
	UploadTile(slot int, data []byte)
	// WriteTileInfo updates the tile info entry of slot.
	WriteTileInfo(slot int, info TileInfo)
	// PaintIndex clears the index and draws the vertices (triangles) into it
	// in order, later triangles replacing earlier ones.
	PaintIndex(vertices []IndexPaintVertex)
	// ReadIndex returns the index texels, row 0 at the north edge.
	ReadIndex() ([]uint16, error)
}

// IndexCell returns the index texel covering a point in arcseconds, and
// false if the point is outside the index.
func IndexCell(latAS, lonAS float64) (x, y int, ok bool) {
	s := lonAS/(IndexExtentLonAS/2)*0.5 + 0.5
	t := -latAS/(IndexExtentLatAS/2)*0.5 + 0.5
	if s < 0 || s >= 1 || t < 0 || t >= 1 {
		return 0, 0, false
	}
	return int(s * IndexWidth), int(t * IndexHeight), true
}

// paintQuad appends the two triangles covering a tile's footprint in index
// clip space.
func paintQuad(out []IndexPaintVertex, info NodeInfo, slot int) []IndexPaintVertex {
	lat0 := -float64(info.BaseLatAS)
	lon0 := float64(info.BaseLonAS)
	lat1 := -(float64(info.BaseLatAS) + float64(info.ExtentAS))
	lon1 := float64(info.BaseLonAS) + float64(info.ExtentAS)

	t0 := float32(lat0 / (IndexExtentLatAS / 2))
	s0 := float32(lon0 / (IndexExtentLonAS / 2))
	t1 := float32(lat1 / (IndexExtentLatAS / 2))
	s1 := float32(lon1 / (IndexExtentLonAS / 2))

	u := uint32(slot)
	return append(out,
		IndexPaintVertex{Position: [2]float32{s0, t0}, Slot: u},
		IndexPaintVertex{Position: [2]float32{s0, t1}, Slot: u},
		IndexPaintVertex{Position: [2]float32{s1, t0}, Slot: u},
		IndexPaintVertex{Position: [2]float32{s1, t0}, Slot: u},
		IndexPaintVertex{Position: [2]float32{s0, t1}, Slot: u},
		IndexPaintVertex{Position: [2]float32{s1, t1}, Slot: u},
	)
}
