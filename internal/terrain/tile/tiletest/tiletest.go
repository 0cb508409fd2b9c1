// Package tiletest writes small tile sets to disk for tests.
package tiletest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/orbis/pkg/catalog"
	"github.com/Faultbox/orbis/pkg/formats"
)

// Fill returns the raw samples of the tile with the given level and base,
// or nil for an all-zero tile.
type Fill func(level int, baseLatAS, baseLonAS int32) []byte

// WriteTileSet writes the sidecar and depth+1 layer packs of a complete
// tile set: every level covers the whole level 0 footprint, children in
// SW, SE, NW, NE order.
func WriteTileSet(tb testing.TB, dir string, idx formats.TileSetIndex, depth int, fill Fill) {
	tb.Helper()
	zero, err := formats.Compress(formats.CompressionZstd, make([]byte, idx.Kind.RawTileSize()))
	if err != nil {
		tb.Fatal(err)
	}
	payload := func(level int, lat, lon int32) []byte {
		if fill == nil {
			return zero
		}
		raw := fill(level, lat, lon)
		if raw == nil {
			return zero
		}
		p, err := formats.Compress(formats.CompressionZstd, raw)
		if err != nil {
			tb.Fatal(err)
		}
		return p
	}

	type base struct{ lat, lon int32 }
	origin := -formats.LevelExtentArcSeconds(0) / 2
	parents := []base{{origin, origin}}
	for level := 0; level <= depth; level++ {
		var tiles []formats.LayerPackTile
		var next []base
		if level == 0 {
			tiles = append(tiles, formats.LayerPackTile{
				BaseLatAS: origin, BaseLonAS: origin, Payload: payload(0, origin, origin),
			})
			next = parents
		} else {
			ext := formats.LevelExtentArcSeconds(level)
			for _, p := range parents {
				for child := formats.ChildSW; child <= formats.ChildNE; child++ {
					b := p
					if child == formats.ChildNW || child == formats.ChildNE {
						b.lat += ext
					}
					if child == formats.ChildSE || child == formats.ChildNE {
						b.lon += ext
					}
					tiles = append(tiles, formats.LayerPackTile{
						BaseLatAS:     b.lat,
						BaseLonAS:     b.lon,
						IndexInParent: child,
						Payload:       payload(level, b.lat, b.lon),
					})
					next = append(next, b)
				}
			}
		}
		var buf bytes.Buffer
		if err := formats.WriteLayerPack(&buf, level, formats.CompressionZstd, tiles); err != nil {
			tb.Fatal(err)
		}
		write(tb, filepath.Join(dir, formats.LayerPackName(idx.Prefix, level)), buf.Bytes())
		parents = next
	}
	WriteSidecar(tb, dir, idx)
}

// WriteSidecar writes <prefix>-index.json.
func WriteSidecar(tb testing.TB, dir string, idx formats.TileSetIndex) {
	tb.Helper()
	data, err := idx.Marshal()
	if err != nil {
		tb.Fatal(err)
	}
	write(tb, filepath.Join(dir, idx.Prefix+"-index.json"), data)
}

// OpenCatalog opens dir as a one-drawer catalog, closed when the test ends.
// Cleanups registered later run first, so tile sets created afterwards are
// shut down before the mappings go away.
func OpenCatalog(tb testing.TB, dir string) *catalog.Catalog {
	tb.Helper()
	d, err := catalog.OpenDirectory(dir, "")
	if err != nil {
		tb.Fatal(err)
	}
	cat := catalog.New(nil)
	if err := cat.AddDrawer(d); err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { cat.Close() })
	return cat
}

func write(tb testing.TB, path string, data []byte) {
	tb.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatal(err)
	}
}
