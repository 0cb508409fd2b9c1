package tile

import (
	"testing"

	"github.com/Faultbox/orbis/pkg/formats"
	"github.com/Faultbox/orbis/pkg/geodesy"
)

func TestQuadTreeStructure(t *testing.T) {
	cat, tree := loadTestTree(t, 2)
	defer cat.Close()

	if tree.Len() != 1+4+16 {
		t.Fatalf("Len() = %d, want 21", tree.Len())
	}
	if tree.MaxLevel() != 2 {
		t.Errorf("MaxLevel() = %d, want 2", tree.MaxLevel())
	}

	// Ids are breadth first: every child has a larger id than its parent and
	// sits inside it at the quadrant it claims.
	for id := QTID(0); int(id) < tree.Len(); id++ {
		parent := tree.Info(id)
		for q, c := range tree.Children(id) {
			if c == NoTile {
				if int(parent.Level) < 2 {
					t.Errorf("tile %d missing child %d", id, q)
				}
				continue
			}
			child := tree.Info(c)
			if c <= id {
				t.Errorf("child %d of %d is not later in breadth-first order", c, id)
			}
			if child.Level != parent.Level+1 || child.ExtentAS*2 != parent.ExtentAS {
				t.Errorf("child %d: level %d extent %d under parent level %d extent %d",
					c, child.Level, child.ExtentAS, parent.Level, parent.ExtentAS)
			}
			plat, plon := formats.ChildIndex(q).ParentBase(child.BaseLatAS, child.BaseLonAS, child.ExtentAS)
			if plat != parent.BaseLatAS || plon != parent.BaseLonAS {
				t.Errorf("child %d (%s) does not map back to parent base", c, formats.ChildIndex(q))
			}
		}
	}
}

func TestQuadTreeFind(t *testing.T) {
	cat, tree := loadTestTree(t, 2)
	defer cat.Close()

	id, ok := tree.Find(10, 10)
	if !ok {
		t.Fatal("Find(10, 10) found nothing")
	}
	info := tree.Info(id)
	if info.Level != 2 || !info.Contains(10, 10) {
		t.Errorf("Find returned level %d tile %+v", info.Level, info)
	}
	if _, ok := tree.Find(1e9, 0); ok {
		t.Error("Find outside the root should fail")
	}
}

func TestVotesStopAtResolution(t *testing.T) {
	cat, tree := loadTestTree(t, 2)
	defer cat.Close()

	// Level 0 samples are 4096 as apart; asking for 8192 as is satisfied by
	// the root alone.
	tree.BeginUpdate()
	tree.NoteRequired(Region{LatMinAS: 0, LatMaxAS: 10, LonMinAS: 0, LonMaxAS: 10, ResolutionAS: 8193})
	u := tree.FinishUpdate()
	if len(u.Added) != 1 || u.Added[0].ID != tree.Root() {
		t.Errorf("coarse request added %v, want only the root", u.Added)
	}

	// Full resolution goes down to the deepest level: one tile per level.
	tree.BeginUpdate()
	tree.NoteRequired(Region{LatMinAS: 100, LatMaxAS: 110, LonMinAS: 100, LonMaxAS: 110, ResolutionAS: 1})
	u = tree.FinishUpdate()
	if len(u.Current) != 3 {
		t.Errorf("fine request voted %d tiles, want 3", len(u.Current))
	}
	if len(u.Added) != 2 || len(u.Removed) != 0 {
		t.Errorf("added %d removed %d, want 2 and 0", len(u.Added), len(u.Removed))
	}
}

func TestVotesResetEachRound(t *testing.T) {
	cat, tree := loadTestTree(t, 1)
	defer cat.Close()

	r := regionAt(tree.Info(tree.Children(0)[formats.ChildNE]))
	for round := 0; round < 3; round++ {
		tree.BeginUpdate()
		tree.NoteRequired(r)
		tree.NoteRequired(r)
		u := tree.FinishUpdate()
		if u.Current[0].Votes != 2 {
			t.Fatalf("round %d: root has %d votes, want 2", round, u.Current[0].Votes)
		}
	}

	tree.BeginUpdate()
	u := tree.FinishUpdate()
	if len(u.Removed) != 2 || len(u.Current) != 0 {
		t.Errorf("empty round removed %d, kept %d; want 2 and 0", len(u.Removed), len(u.Current))
	}
}

func TestRegionFromGraticules(t *testing.T) {
	g0 := geodesy.Graticule{Lat: 0, Lon: 0}
	g1 := geodesy.Graticule{Lat: geodesy.Radians(1), Lon: 0}
	g2 := geodesy.Graticule{Lat: 0, Lon: geodesy.Radians(-0.5)}
	r := RegionFromGraticules(g0, g1, g2, 300)

	want := Region{LatMinAS: 0, LatMaxAS: 3600, LonMinAS: -1800, LonMaxAS: 0, ResolutionAS: 10}
	if r != want {
		t.Errorf("RegionFromGraticules = %+v, want %+v", r, want)
	}

	inside := NodeInfo{BaseLatAS: 3600, BaseLonAS: -2000, ExtentAS: 1000}
	outside := NodeInfo{BaseLatAS: 3601, BaseLonAS: -2000, ExtentAS: 1000}
	if !r.Overlaps(inside) {
		t.Error("tile touching the north edge should overlap")
	}
	if r.Overlaps(outside) {
		t.Error("tile north of the region should not overlap")
	}
}
