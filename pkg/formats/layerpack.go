package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Layer pack format errors.
var (
	ErrInvalidLayerPackMagic       = errors.New("invalid layer pack magic: expected 'LPK'")
	ErrUnsupportedLayerPackVersion = errors.New("unsupported layer pack version")
	ErrTruncatedLayerPack          = errors.New("truncated layer pack")
)

const (
	layerPackMagic       = "LPK"
	layerPackVersion     = 1
	layerPackHeaderSize  = 36
	layerPackEntrySize   = 28
	layerPackNameFormat  = "%s-L%02d.mip"
	maxLayerPackLevel    = 20
	maxLayerPackTileSize = 64 << 20
)

// LayerPackName returns the catalog name of the pack holding level of prefix.
func LayerPackName(prefix string, level int) string {
	return fmt.Sprintf(layerPackNameFormat, prefix, level)
}

// LayerPackHeader is the fixed header at the start of a layer pack.
type LayerPackHeader struct {
	Magic           [3]byte
	Version         uint8
	Level           uint32
	Compression     Compression
	Reserved        uint16
	AngularExtentAS int32
	TileCount       uint32
	IndexStart      uint64
	TileStart       uint64
}

// ChildIndex is a tile's quadrant within its parent.
type ChildIndex uint32

// Quadrants, numbered south to north, west to east.
const (
	ChildSW ChildIndex = iota
	ChildSE
	ChildNW
	ChildNE
)

// String returns the compass name of the quadrant.
func (c ChildIndex) String() string {
	switch c {
	case ChildSW:
		return "SW"
	case ChildSE:
		return "SE"
	case ChildNW:
		return "NW"
	case ChildNE:
		return "NE"
	default:
		return fmt.Sprintf("ChildIndex(%d)", c)
	}
}

// ParentBase returns the south-west corner of the parent tile given a child's
// south-west corner and the child's extent, all in arcseconds.
func (c ChildIndex) ParentBase(lat, lon, extent int32) (int32, int32) {
	switch c {
	case ChildSE:
		return lat, lon - extent
	case ChildNW:
		return lat - extent, lon
	case ChildNE:
		return lat - extent, lon - extent
	default:
		return lat, lon
	}
}

// LayerPackEntry indexes one tile in a pack.
type LayerPackEntry struct {
	BaseLatAS     int32
	BaseLonAS     int32
	IndexInParent ChildIndex
	// TileStart and TileEnd are relative to the header's TileStart.
	TileStart uint64
	TileEnd   uint64
}

// LayerPack is a parsed view over the bytes of a layer pack. Tile payloads
// are sub-slices of the original buffer.
type LayerPack struct {
	Header  LayerPackHeader
	Entries []LayerPackEntry
	data    []byte
}

// ParseLayerPackHeader decodes only the header, validating magic and version.
func ParseLayerPackHeader(data []byte) (LayerPackHeader, error) {
	var h LayerPackHeader
	if len(data) < layerPackHeaderSize {
		return h, fmt.Errorf("%w: %d byte header", ErrTruncatedLayerPack, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:layerPackHeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrTruncatedLayerPack, err)
	}
	if string(h.Magic[:]) != layerPackMagic {
		return h, ErrInvalidLayerPackMagic
	}
	if h.Version != layerPackVersion {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedLayerPackVersion, h.Version)
	}
	if h.Level > maxLayerPackLevel {
		return h, fmt.Errorf("layer pack level %d exceeds %d", h.Level, maxLayerPackLevel)
	}
	switch h.Compression {
	case CompressionNone, CompressionBz2, CompressionZstd:
	default:
		return h, fmt.Errorf("layer pack: unknown %s", h.Compression)
	}
	return h, nil
}

// ParseLayerPack parses a layer pack from raw bytes. The returned pack keeps
// a reference to data.
func ParseLayerPack(data []byte) (*LayerPack, error) {
	h, err := ParseLayerPackHeader(data)
	if err != nil {
		return nil, err
	}

	indexEnd := h.IndexStart + uint64(h.TileCount)*layerPackEntrySize
	if h.IndexStart < layerPackHeaderSize || indexEnd > uint64(len(data)) {
		return nil, fmt.Errorf("%w: index [%d, %d) of %d bytes", ErrTruncatedLayerPack, h.IndexStart, indexEnd, len(data))
	}
	if h.TileStart > uint64(len(data)) {
		return nil, fmt.Errorf("%w: tile start %d", ErrTruncatedLayerPack, h.TileStart)
	}

	p := &LayerPack{
		Header:  h,
		Entries: make([]LayerPackEntry, h.TileCount),
		data:    data,
	}
	tileBytes := uint64(len(data)) - h.TileStart
	for i := range p.Entries {
		off := h.IndexStart + uint64(i)*layerPackEntrySize
		e := parseLayerPackEntry(data[off : off+layerPackEntrySize])
		if e.TileEnd < e.TileStart || e.TileEnd > tileBytes || e.TileEnd-e.TileStart > maxLayerPackTileSize {
			return nil, fmt.Errorf("%w: tile %d spans [%d, %d)", ErrTruncatedLayerPack, i, e.TileStart, e.TileEnd)
		}
		if e.IndexInParent > ChildNE {
			return nil, fmt.Errorf("layer pack tile %d: invalid %s", i, e.IndexInParent)
		}
		p.Entries[i] = e
	}
	return p, nil
}

func parseLayerPackEntry(b []byte) LayerPackEntry {
	return LayerPackEntry{
		BaseLatAS:     int32(binary.LittleEndian.Uint32(b[0:])),
		BaseLonAS:     int32(binary.LittleEndian.Uint32(b[4:])),
		IndexInParent: ChildIndex(binary.LittleEndian.Uint32(b[8:])),
		TileStart:     binary.LittleEndian.Uint64(b[12:]),
		TileEnd:       binary.LittleEndian.Uint64(b[20:]),
	}
}

// Level returns the pack's tile level.
func (p *LayerPack) Level() int { return int(p.Header.Level) }

// FileExtent returns the absolute byte range of tile i within the pack.
func (p *LayerPack) FileExtent(i int) (offset, length uint64) {
	e := p.Entries[i]
	return p.Header.TileStart + e.TileStart, e.TileEnd - e.TileStart
}

// TileData returns the stored (possibly compressed) bytes of tile i.
func (p *LayerPack) TileData(i int) []byte {
	off, n := p.FileExtent(i)
	return p.data[off : off+n]
}

// LayerPackTile is one tile handed to a LayerPackBuilder.
type LayerPackTile struct {
	BaseLatAS     int32
	BaseLonAS     int32
	IndexInParent ChildIndex
	// Payload is already framed with the pack's compression.
	Payload []byte
}

// WriteLayerPack writes a complete layer pack. Tiles are stored in the
// order given, which must be the order the quadtree builder expects (level
// traversal order of the parents).
func WriteLayerPack(w io.Writer, level int, compression Compression, tiles []LayerPackTile) error {
	if level < 0 || level > maxLayerPackLevel {
		return fmt.Errorf("layer pack level %d out of range", level)
	}
	h := LayerPackHeader{
		Version:         layerPackVersion,
		Level:           uint32(level),
		Compression:     compression,
		AngularExtentAS: LevelExtentArcSeconds(level),
		TileCount:       uint32(len(tiles)),
		IndexStart:      layerPackHeaderSize,
	}
	copy(h.Magic[:], layerPackMagic)
	h.TileStart = h.IndexStart + uint64(len(tiles))*layerPackEntrySize

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	var entry [layerPackEntrySize]byte
	var cursor uint64
	for _, t := range tiles {
		binary.LittleEndian.PutUint32(entry[0:], uint32(t.BaseLatAS))
		binary.LittleEndian.PutUint32(entry[4:], uint32(t.BaseLonAS))
		binary.LittleEndian.PutUint32(entry[8:], uint32(t.IndexInParent))
		binary.LittleEndian.PutUint64(entry[12:], cursor)
		cursor += uint64(len(t.Payload))
		binary.LittleEndian.PutUint64(entry[20:], cursor)
		if _, err := w.Write(entry[:]); err != nil {
			return fmt.Errorf("writing index: %w", err)
		}
	}
	for i, t := range tiles {
		if _, err := w.Write(t.Payload); err != nil {
			return fmt.Errorf("writing tile %d: %w", i, err)
		}
	}
	return nil
}

// ChildIndexOf returns the quadrant a tile with the given south-west corner
// occupies in its parent. The corner must lie on the level's tile grid.
func ChildIndexOf(level int, latAS, lonAS int32) (ChildIndex, error) {
	if level < 0 || level > maxLayerPackLevel {
		return 0, fmt.Errorf("layer pack level %d out of range", level)
	}
	ext := LevelExtentArcSeconds(level)
	origin := -LevelExtentArcSeconds(0) / 2
	dlat, dlon := latAS-origin, lonAS-origin
	if dlat < 0 || dlon < 0 || dlat%ext != 0 || dlon%ext != 0 {
		return 0, fmt.Errorf("tile (%d, %d) is not on the level %d grid", latAS, lonAS, level)
	}
	if level == 0 {
		return ChildSW, nil
	}
	return ChildIndex((dlat/ext%2)*2 + dlon/ext%2), nil
}
