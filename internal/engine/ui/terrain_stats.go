package ui

import (
	"time"

	"github.com/Faultbox/orbis/internal/terrain"
)

// TerrainStats collects the overlay figures from the last terrain update.
func TerrainStats(t *terrain.Terrain, frameTime time.Duration, triangles int) FrameStats {
	f := t.Frame()
	tree := t.Tree().Stats()
	s := FrameStats{
		Frame:       f.Number,
		FrameTime:   frameTime,
		PatchBudget: t.CPUDetail().Patches,
		Deepest:     tree.Deepest,
		Regions:     f.Regions,
		Triangles:   triangles,
		Pinned:      f.Pinned,
		Wireframe:   f.Wireframe,
	}
	if f.Selection != nil {
		s.Patches = len(f.Selection.Leaves)
	}
	for _, set := range t.Sets() {
		st := set.Stats()
		row := SetStats{
			Name:             set.Name(),
			Kind:             set.Kind().String(),
			Capacity:         set.Capacity(),
			Active:           st.Active,
			Added:            st.Added,
			Removed:          st.Removed,
			ReadsOutstanding: st.ReadsOutstanding,
			MaxLevel:         st.MaxLevel,
		}
		if r := set.Ranking(); len(r) > 0 {
			row.TopVotes = int(r[0].Votes)
		}
		s.Sets = append(s.Sets, row)
	}
	return s
}
