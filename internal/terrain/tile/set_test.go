package tile

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/orbis/pkg/formats"
)

func newTestSet(t *testing.T, depth, capacity int) (*Set, *MemoryAtlas) {
	t.Helper()
	cat, tree := loadTestTree(t, depth)
	t.Cleanup(func() { cat.Close() })

	atlas := NewMemoryAtlas(formats.KindHeight, capacity)
	set, err := NewSet(zaptest.NewLogger(t), SetConfig{
		Name:        "test",
		Kind:        formats.KindHeight,
		Capacity:    capacity,
		CacheTiles:  8,
		TraceStates: true,
	}, tree, atlas, NewReader(cat, DefaultMaxConcurrentReads))
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	t.Cleanup(set.Shutdown)
	return set, atlas
}

func pointRegion(latAS, lonAS int32) Region {
	return Region{
		LatMinAS: latAS - 1, LatMaxAS: latAS + 1,
		LonMinAS: lonAS - 1, LonMaxAS: lonAS + 1,
		ResolutionAS: 1,
	}
}

// frame runs one update and waits for the reads it started, so their
// results are received on the next frame.
func frame(s *Set, regions []Region) {
	s.BeginUpdate()
	for _, r := range regions {
		s.NoteRequired(r)
	}
	s.FinishUpdate()
	s.workers.Wait()
}

func randomRegions(rng *rand.Rand, n int) []Region {
	out := make([]Region, n)
	for i := range out {
		lat := int32(rng.IntN(1_800_000)) - 900_000
		lon := int32(rng.IntN(1_800_000)) - 900_000
		out[i] = pointRegion(lat, lon)
	}
	return out
}

func checkStateMachine(t *testing.T, s *Set) {
	t.Helper()
	owners := make(map[int]QTID)
	withSlot := 0
	for id, st := range s.states {
		if st.Kind == Active && !st.HasSlot() {
			t.Errorf("tile %d is active without a slot", id)
		}
		if !st.HasSlot() {
			continue
		}
		withSlot++
		if other, dup := owners[st.Slot]; dup {
			t.Errorf("slot %d owned by tiles %d and %d", st.Slot, other, id)
		}
		owners[st.Slot] = id
		if s.slots[st.Slot] != id {
			t.Errorf("slot %d records tile %d, state says %d", st.Slot, s.slots[st.Slot], id)
		}
	}
	if withSlot != s.SlotsInUse() {
		t.Errorf("%d tiles hold a slot, SlotsInUse() = %d", withSlot, s.SlotsInUse())
	}
	if s.FreeSlots()+withSlot != s.Capacity() {
		t.Errorf("free %d + in use %d != capacity %d", s.FreeSlots(), withSlot, s.Capacity())
	}
	free := make(map[int]bool)
	for _, slot := range s.free {
		if free[slot] {
			t.Errorf("slot %d is on the free list twice", slot)
		}
		free[slot] = true
		if s.slots[slot] != NoTile {
			t.Errorf("free slot %d still records tile %d", slot, s.slots[slot])
		}
	}
}

func TestEvictionKeepsMostVoted(t *testing.T) {
	const capacity = 32
	s, atlas := newTestSet(t, 3, capacity)
	rng := rand.New(rand.NewPCG(1, 2))

	// The view wanders for 40 frames, then settles.
	var regions []Region
	for f := 0; f < 60; f++ {
		if f < 40 {
			regions = randomRegions(rng, 24)
		}
		frame(s, regions)
		checkStateMachine(t, s)
	}

	ranking := s.Ranking()
	if len(ranking) <= capacity {
		t.Fatalf("only %d tiles voted; the view must need more than %d", len(ranking), capacity)
	}
	var want []QTID
	for _, v := range ranking[:capacity] {
		want = append(want, v.ID)
	}
	slices.Sort(want)

	got := s.ActiveTiles()
	if !slices.Equal(got, want) {
		t.Fatalf("resident tiles\n got %v\nwant %v", got, want)
	}
	for _, id := range got {
		st, _ := s.State(id)
		info := s.tree.Info(id)
		ti := atlas.TileInfo(st.Slot)
		if ti.Slot != uint32(st.Slot) || ti.BaseLatAS != float32(info.BaseLatAS) ||
			ti.BaseLonAS != float32(info.BaseLonAS) || ti.ExtentAS != float32(info.ExtentAS) {
			t.Errorf("tile %d: atlas info %+v does not match %+v", id, ti, info)
		}
		if atlas.Layer(st.Slot) == nil {
			t.Errorf("tile %d: slot %d never uploaded", id, st.Slot)
		}
	}
}

func TestIndexMatchesActiveTiles(t *testing.T) {
	const capacity = 16
	s, atlas := newTestSet(t, 3, capacity)

	regions := []Region{
		pointRegion(10_000, 10_000),
		pointRegion(-300_000, 200_000),
		pointRegion(300_000, -500_000),
		pointRegion(600_000, 600_000),
	}
	for f := 0; f < 10; f++ {
		frame(s, regions)
	}
	active := s.ActiveTiles()
	if len(active) == 0 {
		t.Fatal("no tiles became active")
	}
	if n := len(s.PaintVertices()); n != 6*capacity {
		t.Fatalf("paint list has %d vertices, want %d", n, 6*capacity)
	}

	s.PaintIndex()
	index, err := atlas.ReadIndex()
	if err != nil {
		t.Fatal(err)
	}

	for y := 0; y < IndexHeight; y += 5 {
		for x := 0; x < IndexWidth; x += 5 {
			lon := (float64(x) + 0.5 - IndexWidth/2) * formats.TileExtent
			lat := -(float64(y) + 0.5 - IndexHeight/2) * formats.TileExtent

			want := uint16(IndexEmpty)
			level := -1
			for _, id := range active {
				info := s.tree.Info(id)
				if info.Contains(lat, lon) && int(info.Level) > level {
					st, _ := s.State(id)
					want, level = uint16(st.Slot), int(info.Level)
				}
			}
			if got := index[y*IndexWidth+x]; got != want {
				t.Fatalf("index (%d, %d) at lat %.0f lon %.0f = %d, want %d", x, y, lat, lon, got, want)
			}
		}
	}

	slot, ok := atlas.Lookup(10_000, 10_000)
	id, _ := s.tree.Find(10_000, 10_000)
	st, _ := s.State(id)
	if !ok || st.Kind != Active || int(slot) != st.Slot {
		t.Errorf("Lookup at the first region = %d (%v); deepest tile %d is %s", slot, ok, id, st)
	}
}

func TestTileLeavingViewWhileReading(t *testing.T) {
	s, _ := newTestSet(t, 2, 8)

	s.BeginUpdate()
	s.NoteRequired(pointRegion(1000, 1000))
	s.FinishUpdate()

	// The view moves away before the reads are received.
	s.BeginUpdate()
	s.FinishUpdate()
	s.workers.Wait()
	frame(s, nil)

	if n := len(s.ActiveTiles()); n != 0 {
		t.Errorf("%d tiles active after leaving the view", n)
	}
	if s.SlotsInUse() != 0 || s.readCount != 0 {
		t.Errorf("slots in use %d, reads outstanding %d; want 0 and 0", s.SlotsInUse(), s.readCount)
	}
	checkStateMachine(t, s)
}

func TestUndecodableTileIsDropped(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	err := formats.WriteLayerPack(&buf, 0, formats.CompressionZstd, []formats.LayerPackTile{{
		BaseLatAS: -formats.LevelExtentArcSeconds(0) / 2,
		BaseLonAS: -formats.LevelExtentArcSeconds(0) / 2,
		Payload:   []byte("definitely not zstd"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, formats.LayerPackName("bad", 0)), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	cat := openTestCatalog(t, dir)
	defer cat.Close()
	tree, err := LoadQuadTree(cat, "bad")
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSet(zaptest.NewLogger(t), SetConfig{Name: "bad", Kind: formats.KindHeight, Capacity: 2},
		tree, NewMemoryAtlas(formats.KindHeight, 2), NewReader(cat, 1))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()

	region := pointRegion(0, 0)
	frame(s, []Region{region})
	frame(s, []Region{region})
	st, _ := s.State(tree.Root())
	if st.Kind != NoSpace || s.SlotsInUse() != 0 {
		t.Fatalf("broken tile is %s with %d slots in use", st, s.SlotsInUse())
	}

	// It is never retried.
	frame(s, []Region{region})
	if s.Stats().ReadsStarted != 0 {
		t.Errorf("broken tile was read again")
	}
}

func TestShutdownDrainsReads(t *testing.T) {
	s, _ := newTestSet(t, 2, 8)
	s.BeginUpdate()
	s.NoteRequired(pointRegion(-5000, 5000))
	s.FinishUpdate()
	if s.Stats().ReadsStarted == 0 {
		t.Fatal("no reads started")
	}
	s.Shutdown()
	if s.readCount != 0 {
		t.Errorf("%d reads outstanding after Shutdown", s.readCount)
	}
}

func TestStatsCountOutstandingReads(t *testing.T) {
	s, _ := newTestSet(t, 3, 16)
	region := pointRegion(100_000, 300_000)

	s.BeginUpdate()
	s.NoteRequired(region)
	s.FinishUpdate()
	st := s.Stats()
	if st.ReadsStarted == 0 {
		t.Fatal("no reads started")
	}
	// Reads may finish before the same frame receives them.
	if st.ReadsOutstanding != s.readCount || st.ReadsOutstanding+st.ReadsEnded != st.ReadsStarted {
		t.Errorf("ReadsOutstanding = %d, reads in flight %d, started %d, ended %d",
			st.ReadsOutstanding, s.readCount, st.ReadsStarted, st.ReadsEnded)
	}

	// Nothing new is voted; the finished reads are received.
	s.workers.Wait()
	frame(s, []Region{region})
	if got := s.Stats(); got.ReadsOutstanding != 0 || got.ReadsEnded != st.ReadsOutstanding {
		t.Errorf("after receiving: %d outstanding, %d ended; want 0 and %d", got.ReadsOutstanding, got.ReadsEnded, st.ReadsOutstanding)
	}
}

func TestNewSetRejectsCapacity(t *testing.T) {
	cat, tree := loadTestTree(t, 0)
	defer cat.Close()
	for _, c := range []int{0, -1, IndexEmpty + 1} {
		if _, err := NewSet(nil, SetConfig{Name: "x", Capacity: c}, tree, nil, NewReader(nil, 1)); err == nil {
			t.Errorf("capacity %d accepted", c)
		}
	}
}
