package formats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TileSetIndexGlob matches the sidecars that announce tile sets in a catalog.
const TileSetIndexGlob = "*-index.json"

// ErrPolarTiles is returned for tile sets in polar projection, which the
// terrain does not render yet.
var ErrPolarTiles = errors.New("unimplemented polar tiles")

// TileSetIndex is the JSON sidecar describing a tile set.
type TileSetIndex struct {
	Prefix      string      `json:"prefix"`
	Kind        DataKind    `json:"kind"`
	Coordinates Coordinates `json:"coordinates"`
}

// ParseTileSetIndex decodes and validates a sidecar.
func ParseTileSetIndex(data []byte) (*TileSetIndex, error) {
	var idx TileSetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("tile set index: %w", err)
	}
	if idx.Prefix == "" {
		return nil, errors.New("tile set index: missing prefix")
	}
	if strings.ContainsAny(idx.Prefix, "/\\*?[") {
		return nil, fmt.Errorf("tile set index: invalid prefix %q", idx.Prefix)
	}
	if idx.Coordinates == CoordinatesCartesianPolar {
		return &idx, fmt.Errorf("tile set %s: %w", idx.Prefix, ErrPolarTiles)
	}
	return &idx, nil
}

// LayerPackGlob matches every layer pack of the tile set.
func (t *TileSetIndex) LayerPackGlob() string {
	return t.Prefix + "-L??.mip"
}

// Marshal encodes the sidecar.
func (t *TileSetIndex) Marshal() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
