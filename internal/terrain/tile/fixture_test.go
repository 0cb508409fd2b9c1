package tile

import (
	"testing"

	"github.com/Faultbox/orbis/internal/terrain/tile/tiletest"
	"github.com/Faultbox/orbis/pkg/catalog"
	"github.com/Faultbox/orbis/pkg/formats"
)

// writeTestTileSet writes a complete zero-filled tile set of the given
// depth.
func writeTestTileSet(t *testing.T, dir, prefix string, kind formats.DataKind, depth int) {
	t.Helper()
	tiletest.WriteTileSet(t, dir, formats.TileSetIndex{Prefix: prefix, Kind: kind}, depth, nil)
}

func openTestCatalog(t *testing.T, dir string) *catalog.Catalog {
	t.Helper()
	d, err := catalog.OpenDirectory(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(nil)
	if err := cat.AddDrawer(d); err != nil {
		t.Fatal(err)
	}
	return cat
}

func loadTestTree(t *testing.T, depth int) (*catalog.Catalog, *QuadTree) {
	t.Helper()
	dir := t.TempDir()
	writeTestTileSet(t, dir, "test", formats.KindHeight, depth)
	cat := openTestCatalog(t, dir)
	tree, err := LoadQuadTree(cat, "test")
	if err != nil {
		t.Fatalf("LoadQuadTree: %v", err)
	}
	return cat, tree
}

// regionAt returns a tiny region around the centre of a tile that asks for
// full resolution, so it votes all the way down that tile's branch.
func regionAt(info NodeInfo) Region {
	clat := info.BaseLatAS + info.ExtentAS/2
	clon := info.BaseLonAS + info.ExtentAS/2
	return Region{
		LatMinAS: clat - 1, LatMaxAS: clat + 1,
		LonMinAS: clon - 1, LonMaxAS: clon + 1,
		ResolutionAS: 1,
	}
}
