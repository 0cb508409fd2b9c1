package tile

import (
	"fmt"
	"math"
	"sort"

	"github.com/Faultbox/orbis/pkg/catalog"
	"github.com/Faultbox/orbis/pkg/formats"
)

// QTID addresses a node of a tile set's quadtree. Ids are assigned breadth
// first in pack order, so a coarser tile always has a smaller id than its
// descendants.
type QTID uint32

// NoTile marks an empty atlas slot or a missing child.
const NoTile QTID = math.MaxUint32

// NodeInfo is everything needed to locate and place one tile.
type NodeInfo struct {
	BaseLatAS   int32
	BaseLonAS   int32
	ExtentAS    int32
	Level       uint8
	File        catalog.FileID
	Compression formats.Compression
	Extent      catalog.Extent
}

// Contains reports whether the point (arcseconds) lies inside the tile.
func (n NodeInfo) Contains(latAS, lonAS float64) bool {
	return latAS >= float64(n.BaseLatAS) && latAS < float64(n.BaseLatAS)+float64(n.ExtentAS) &&
		lonAS >= float64(n.BaseLonAS) && lonAS < float64(n.BaseLonAS)+float64(n.ExtentAS)
}

type node struct {
	info     NodeInfo
	children [4]QTID
}

type vote struct {
	votes      uint32
	generation uint64
}

// Vote is a tile and the number of visible regions that asked for it.
type Vote struct {
	ID    QTID
	Votes uint32
}

// Update is the difference between two consecutive vote rounds.
type Update struct {
	Added   []Vote
	Removed []QTID
	// Current lists every voted tile, most votes first, ties by id.
	Current []Vote
}

// LevelPack is one parsed layer pack and the catalog file it came from.
type LevelPack struct {
	File catalog.FileID
	Pack *formats.LayerPack
}

// QuadTree indexes every tile of a tile set and tracks which of them the
// current frame needs.
type QuadTree struct {
	nodes      []node
	votes      map[QTID]*vote
	generation uint64
	added      []QTID
}

// NewQuadTree links the tiles of packs into a tree. packs must be ordered by
// level starting at zero.
func NewQuadTree(packs []LevelPack) (*QuadTree, error) {
	if len(packs) == 0 {
		return nil, fmt.Errorf("quadtree: no layer packs")
	}
	t := &QuadTree{votes: make(map[QTID]*vote)}

	type base struct{ lat, lon int32 }
	var prev map[base]QTID
	for level, lp := range packs {
		h := lp.Pack.Header
		if int(h.Level) != level {
			return nil, fmt.Errorf("quadtree: pack %d holds level %d", level, h.Level)
		}
		if level == 0 && len(lp.Pack.Entries) != 1 {
			return nil, fmt.Errorf("quadtree: level 0 has %d tiles, want 1", len(lp.Pack.Entries))
		}
		cur := make(map[base]QTID, len(lp.Pack.Entries))
		for i, e := range lp.Pack.Entries {
			id := QTID(len(t.nodes))
			off, n := lp.Pack.FileExtent(i)
			t.nodes = append(t.nodes, node{
				info: NodeInfo{
					BaseLatAS:   e.BaseLatAS,
					BaseLonAS:   e.BaseLonAS,
					ExtentAS:    h.AngularExtentAS,
					Level:       uint8(level),
					File:        lp.File,
					Compression: h.Compression,
					Extent:      catalog.Extent{Offset: off, Length: n},
				},
				children: [4]QTID{NoTile, NoTile, NoTile, NoTile},
			})
			cur[base{e.BaseLatAS, e.BaseLonAS}] = id

			if level == 0 {
				continue
			}
			plat, plon := e.IndexInParent.ParentBase(e.BaseLatAS, e.BaseLonAS, h.AngularExtentAS)
			parent, ok := prev[base{plat, plon}]
			if !ok {
				return nil, fmt.Errorf("quadtree: level %d tile at (%d, %d) has no parent at (%d, %d)",
					level, e.BaseLatAS, e.BaseLonAS, plat, plon)
			}
			t.nodes[parent].children[e.IndexInParent] = id
		}
		prev = cur
	}
	return t, nil
}

// Len returns the number of tiles.
func (t *QuadTree) Len() int { return len(t.nodes) }

// Root returns the level 0 tile.
func (t *QuadTree) Root() QTID { return 0 }

// Info describes a tile.
func (t *QuadTree) Info(id QTID) NodeInfo { return t.nodes[id].info }

// Children returns the child ids of a tile, NoTile where absent.
func (t *QuadTree) Children(id QTID) [4]QTID { return t.nodes[id].children }

// MaxLevel returns the deepest level present.
func (t *QuadTree) MaxLevel() int {
	return int(t.nodes[len(t.nodes)-1].info.Level)
}

// Find returns the deepest tile containing the point, in arcseconds.
func (t *QuadTree) Find(latAS, lonAS float64) (QTID, bool) {
	if !t.nodes[0].info.Contains(latAS, lonAS) {
		return NoTile, false
	}
	id := t.Root()
	for {
		next := NoTile
		for _, c := range t.nodes[id].children {
			if c != NoTile && t.nodes[c].info.Contains(latAS, lonAS) {
				next = c
				break
			}
		}
		if next == NoTile {
			return id, true
		}
		id = next
	}
}

// BeginUpdate starts a new vote round.
func (t *QuadTree) BeginUpdate() {
	t.generation++
	t.added = t.added[:0]
}

// NoteRequired votes for every tile overlapping r that is not yet finer than
// the region's required resolution.
func (t *QuadTree) NoteRequired(r Region) {
	t.noteRequired(t.Root(), r)
}

func (t *QuadTree) noteRequired(id QTID, r Region) {
	v, ok := t.votes[id]
	if !ok {
		v = &vote{}
		t.votes[id] = v
		t.added = append(t.added, id)
	}
	if v.generation != t.generation {
		// Left over from a previous round; restart the count.
		v.generation = t.generation
		v.votes = 0
	}
	v.votes++

	info := t.nodes[id].info
	if float64(info.ExtentAS)/formats.TileExtent < r.ResolutionAS/2 {
		return
	}
	for _, c := range t.nodes[id].children {
		if c != NoTile && r.Overlaps(t.nodes[c].info) {
			t.noteRequired(c, r)
		}
	}
}

// FinishUpdate closes the round and reports what changed since the last one.
func (t *QuadTree) FinishUpdate() Update {
	var u Update
	for _, id := range t.added {
		u.Added = append(u.Added, Vote{ID: id, Votes: t.votes[id].votes})
	}
	for id, v := range t.votes {
		if v.generation != t.generation {
			u.Removed = append(u.Removed, id)
			delete(t.votes, id)
			continue
		}
		u.Current = append(u.Current, Vote{ID: id, Votes: v.votes})
	}
	sort.Slice(u.Removed, func(i, j int) bool { return u.Removed[i] < u.Removed[j] })
	sort.Slice(u.Current, func(i, j int) bool {
		a, b := u.Current[i], u.Current[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		return a.ID < b.ID
	})
	return u
}

// LoadQuadTree reads every layer pack of prefix from the catalog. The packs
// stay mapped; the tree only records where each tile lives.
func LoadQuadTree(cat *catalog.Catalog, prefix string) (*QuadTree, error) {
	fids, err := cat.FindMatching(prefix + "-L??.mip")
	if err != nil {
		return nil, err
	}
	packs := make([]LevelPack, 0, len(fids))
	for _, fid := range fids {
		data, err := cat.ReadMapped(fid, nil)
		if err != nil {
			return nil, err
		}
		pack, err := formats.ParseLayerPack(data)
		if err != nil {
			st, _ := cat.Stat(fid)
			return nil, fmt.Errorf("layer pack %s: %w", st.Name, err)
		}
		packs = append(packs, LevelPack{File: fid, Pack: pack})
	}
	return NewQuadTree(packs)
}
