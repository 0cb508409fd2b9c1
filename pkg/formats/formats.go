// Package formats reads and writes the terrain content formats: layer packs
// of tiles, tile-set index sidecars and the tile payloads themselves.
package formats

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tile geometry shared by every data set.
const (
	// TilePhysicalSize is the stored width and height of a tile in samples.
	TilePhysicalSize = 512
	// TileSamples is the payload width; the rest is padding.
	TileSamples = 510
	// TileExtent is the number of sample intervals covered by one tile; the
	// extra sample is shared with the neighbour for seamless filtering.
	TileExtent = TileSamples - 1
	// FullResolutionLevel is the level at which one sample spans one arcsecond.
	FullResolutionLevel = 12
)

// LevelScaleArcSeconds returns the arcseconds per sample at level.
func LevelScaleArcSeconds(level int) int32 {
	return 1 << (FullResolutionLevel - level)
}

// LevelExtentArcSeconds returns the angular width of one tile at level.
func LevelExtentArcSeconds(level int) int32 {
	return LevelScaleArcSeconds(level) * TileExtent
}

// DataKind identifies what a tile set's samples mean.
type DataKind uint8

// Data kinds.
const (
	KindColor DataKind = iota
	KindNormal
	KindHeight
)

var dataKindNames = [...]string{"color", "normal", "height"}

// String returns the lower-case name used in sidecars.
func (k DataKind) String() string {
	if int(k) < len(dataKindNames) {
		return dataKindNames[k]
	}
	return fmt.Sprintf("DataKind(%d)", k)
}

// ParseDataKind parses a sidecar kind name.
func ParseDataKind(s string) (DataKind, error) {
	for i, name := range dataKindNames {
		if strings.EqualFold(s, name) {
			return DataKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown data kind %q", s)
}

// MarshalJSON encodes the kind by name.
func (k DataKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the kind from its name.
func (k *DataKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseDataKind(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// BytesPerSample returns the stored size of one sample.
func (k DataKind) BytesPerSample() int {
	switch k {
	case KindColor:
		return 3
	case KindNormal:
		return 4
	default:
		return 2
	}
}

// AtlasBytesPerSample returns the size of one sample once uploaded; colour is
// widened to RGBA.
func (k DataKind) AtlasBytesPerSample() int {
	if k == KindColor {
		return 4
	}
	return k.BytesPerSample()
}

// RawTileSize returns the decompressed size of a stored tile.
func (k DataKind) RawTileSize() int {
	return TilePhysicalSize * TilePhysicalSize * k.BytesPerSample()
}

// Coordinates identifies how a tile set is projected.
type Coordinates uint8

// Coordinate systems.
const (
	CoordinatesSpherical Coordinates = iota
	CoordinatesCartesianPolar
)

// String returns the sidecar name.
func (c Coordinates) String() string {
	switch c {
	case CoordinatesSpherical:
		return "spherical"
	case CoordinatesCartesianPolar:
		return "cartesian_polar"
	default:
		return fmt.Sprintf("Coordinates(%d)", c)
	}
}

// MarshalJSON encodes the coordinates by name.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes the coordinates from their name.
func (c *Coordinates) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "spherical":
		*c = CoordinatesSpherical
	case "cartesian_polar":
		*c = CoordinatesCartesianPolar
	default:
		return fmt.Errorf("unknown coordinates %q", s)
	}
	return nil
}

// Compression is the framing of a stored tile.
type Compression uint16

// Compression kinds.
const (
	CompressionNone Compression = 0
	CompressionBz2  Compression = 1
	CompressionZstd Compression = 2
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionBz2:
		return "bz2"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", c)
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, error) {
	for _, c := range []Compression{CompressionNone, CompressionBz2, CompressionZstd} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}
