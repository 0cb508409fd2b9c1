package tile

import (
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/orbis/pkg/formats"
)

// ErrNoSpace is reported when a tile is required but every slot is taken.
var ErrNoSpace = errors.New("no atlas slot available")

// SetConfig configures a Set.
type SetConfig struct {
	// Name identifies the set in logs, usually the catalog prefix.
	Name string
	Kind formats.DataKind
	// Capacity is the number of atlas slots.
	Capacity int
	// MaxReads bounds the reads this set has in flight.
	MaxReads int
	// CacheTiles is the size of the decoded tile cache; 0 disables it.
	CacheTiles int
	// TraceStates logs every tile state transition at debug level.
	TraceStates bool
}

type readResult struct {
	id   QTID
	data []byte
	err  error
}

// FrameStats summarises one FinishUpdate.
type FrameStats struct {
	Added, Removed           int
	ReadsStarted, ReadsEnded int
	ReadsOutstanding         int
	Active                   int
	MaxLevel                 int
}

// Set keeps the most-voted tiles of one tile set resident in an atlas.
//
// All methods except the read goroutines run on the frame thread. Results
// come back over a channel with room for every read in flight, so workers
// never block and the frame thread never waits on I/O.
type Set struct {
	log    *zap.Logger
	cfg    SetConfig
	tree   *QuadTree
	atlas  Atlas
	reader *Reader

	slots  []QTID
	free   []int
	states map[QTID]State
	queue  loadQueue
	broken map[QTID]bool

	results   chan readResult
	workers   errgroup.Group
	readCount int
	cache     *lru.Cache[QTID, []byte]

	paint []IndexPaintVertex
	stats FrameStats
	// ranking is the last frame's votes, most wanted first.
	ranking []Vote
}

// NewSet creates a tile set over tree, uploading into atlas.
func NewSet(log *zap.Logger, cfg SetConfig, tree *QuadTree, atlas Atlas, reader *Reader) (*Set, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Capacity <= 0 || cfg.Capacity > IndexEmpty {
		return nil, fmt.Errorf("tile set %s: capacity %d out of range", cfg.Name, cfg.Capacity)
	}
	if cfg.MaxReads <= 0 {
		cfg.MaxReads = reader.Limit()
	}

	s := &Set{
		log:     log.With(zap.String("tile_set", cfg.Name), zap.Stringer("kind", cfg.Kind)),
		cfg:     cfg,
		tree:    tree,
		atlas:   atlas,
		reader:  reader,
		slots:   make([]QTID, cfg.Capacity),
		free:    make([]int, 0, cfg.Capacity),
		states:  make(map[QTID]State),
		broken:  make(map[QTID]bool),
		results: make(chan readResult, cfg.MaxReads),
		paint:   make([]IndexPaintVertex, 0, 6*cfg.Capacity),
	}
	for i := range s.slots {
		s.slots[i] = NoTile
	}
	// Pop from the end so slot 0 is handed out first.
	for i := cfg.Capacity - 1; i >= 0; i-- {
		s.free = append(s.free, i)
	}
	if cfg.CacheTiles > 0 {
		cache, err := lru.New[QTID, []byte](cfg.CacheTiles)
		if err != nil {
			return nil, fmt.Errorf("tile set %s: %w", cfg.Name, err)
		}
		s.cache = cache
	}
	return s, nil
}

// Name returns the configured name.
func (s *Set) Name() string { return s.cfg.Name }

// Kind returns the data kind.
func (s *Set) Kind() formats.DataKind { return s.cfg.Kind }

// Capacity returns the number of atlas slots.
func (s *Set) Capacity() int { return s.cfg.Capacity }

// Tree returns the set's quadtree.
func (s *Set) Tree() *QuadTree { return s.tree }

// Atlas returns the set's atlas.
func (s *Set) Atlas() Atlas { return s.atlas }

// Stats returns the summary of the last FinishUpdate.
func (s *Set) Stats() FrameStats { return s.stats }

// State returns the state of a tile and whether it is tracked at all.
func (s *Set) State(id QTID) (State, bool) {
	st, ok := s.states[id]
	return st, ok
}

// SlotsInUse returns the number of slots owned by a tile.
func (s *Set) SlotsInUse() int { return s.cfg.Capacity - len(s.free) }

// FreeSlots returns the length of the free list.
func (s *Set) FreeSlots() int { return len(s.free) }

// Ranking returns the last frame's votes, most wanted first.
func (s *Set) Ranking() []Vote { return s.ranking }

// ActiveTiles returns the resident tiles in QTID order.
func (s *Set) ActiveTiles() []QTID {
	var out []QTID
	for id, st := range s.states {
		if st.Kind == Active {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// BeginUpdate starts a frame's vote round.
func (s *Set) BeginUpdate() { s.tree.BeginUpdate() }

// NoteRequired votes for the tiles a visible region needs.
func (s *Set) NoteRequired(r Region) { s.tree.NoteRequired(r) }

// FinishUpdate applies the frame's votes: evicts and allocates slots, starts
// reads for the most-voted pending tiles, uploads finished reads and rebuilds
// the index paint list.
func (s *Set) FinishUpdate() {
	u := s.tree.FinishUpdate()
	s.stats = FrameStats{Added: len(u.Added), Removed: len(u.Removed)}
	s.ranking = u.Current

	for _, id := range u.Removed {
		s.deallocate(id)
	}
	for _, v := range u.Added {
		if _, ok := s.states[v.ID]; !ok {
			s.setState(v.ID, State{Kind: NoSpace})
		}
	}
	s.rebalance(u.Current)
	s.startReads()
	s.receive()
	s.stats.ReadsOutstanding = s.readCount
	s.buildPaintList()

	if s.stats.Added+s.stats.Removed+s.stats.ReadsStarted+s.stats.ReadsEnded > 0 {
		s.log.Debug("tile set update",
			zap.Int("added", s.stats.Added),
			zap.Int("removed", s.stats.Removed),
			zap.Int("reads_started", s.stats.ReadsStarted),
			zap.Int("reads_ended", s.stats.ReadsEnded),
			zap.Int("reads_outstanding", s.stats.ReadsOutstanding),
			zap.Int("active", s.stats.Active),
			zap.Int("max_level", s.stats.MaxLevel))
	}
}

// rebalance gives slots to the capacity most-voted tiles and takes them
// from everything else.
func (s *Set) rebalance(ranking []Vote) {
	wanted := make(map[QTID]uint32, s.cfg.Capacity)
	for _, v := range ranking {
		if len(wanted) == s.cfg.Capacity {
			break
		}
		if s.broken[v.ID] {
			continue
		}
		wanted[v.ID] = v.Votes
	}

	for id, st := range s.states {
		if _, ok := wanted[id]; !ok && st.HasSlot() {
			s.releaseSlot(st.Slot)
			s.setState(id, State{Kind: NoSpace})
		}
	}
	// Allocate in ranking order so the heap sees the same priorities.
	for _, v := range ranking {
		if _, ok := wanted[v.ID]; !ok {
			continue
		}
		if st := s.states[v.ID]; st.Kind == NoSpace {
			if err := s.allocate(v); err != nil {
				s.log.Warn("tile allocation failed", zap.Uint32("qtid", uint32(v.ID)), zap.Error(err))
			}
		}
	}
}

// setState moves a tile to its next stage. Anything other than a step along
// NoSpace → Pending → Reading → Active, or a fall back to NoSpace, is a bug.
func (s *Set) setState(id QTID, to State) {
	from, tracked := s.states[id]
	if tracked && !legalTransition(from.Kind, to.Kind) {
		panic(fmt.Sprintf("tile set %s: tile %d moved %s → %s", s.cfg.Name, id, from, to))
	}
	if !tracked && to.Kind != NoSpace {
		panic(fmt.Sprintf("tile set %s: untracked tile %d entered %s", s.cfg.Name, id, to))
	}
	s.states[id] = to
	if s.cfg.TraceStates {
		s.log.Debug("tile state",
			zap.Uint32("qtid", uint32(id)),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}
}

func legalTransition(from, to StateKind) bool {
	switch to {
	case NoSpace:
		return true
	case Pending:
		return from == NoSpace
	case Reading:
		return from == Pending
	case Active:
		return from == Reading
	}
	return false
}

func (s *Set) allocate(v Vote) error {
	if len(s.free) == 0 {
		return ErrNoSpace
	}
	slot := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.slots[slot] = v.ID
	s.setState(v.ID, State{Kind: Pending, Slot: slot})
	s.queue.push(v)
	return nil
}

func (s *Set) deallocate(id QTID) {
	st, ok := s.states[id]
	if !ok {
		return
	}
	delete(s.states, id)
	if st.HasSlot() {
		s.releaseSlot(st.Slot)
	}
}

func (s *Set) releaseSlot(slot int) {
	s.slots[slot] = NoTile
	s.free = append(s.free, slot)
}

func (s *Set) startReads() {
	for s.queue.Len() > 0 && s.readCount < s.cfg.MaxReads {
		v := s.queue.pop()
		st, ok := s.states[v.ID]
		if !ok || st.Kind != Pending {
			continue
		}
		if !s.reader.tryAcquire() {
			// Other sets hold every permit; try again next frame.
			s.queue.push(v)
			break
		}
		s.setState(v.ID, State{Kind: Reading, Slot: st.Slot})
		s.readCount++
		s.stats.ReadsStarted++

		id, info := v.ID, s.tree.Info(v.ID)
		s.workers.Go(func() error {
			defer s.reader.release()
			data, err := s.load(id, info)
			s.results <- readResult{id: id, data: data, err: err}
			return nil
		})
	}
	// Drop stale heap entries so the queue does not grow without bound.
	if s.queue.Len() > 4*s.cfg.Capacity {
		live := s.queue[:0]
		for _, v := range s.queue {
			if st, ok := s.states[v.ID]; ok && st.Kind == Pending {
				live = append(live, v)
			}
		}
		s.queue = live
		heapInit(&s.queue)
	}
}

// readError wraps catalog failures, which are fatal once a read has begun.
type readError struct{ err error }

func (e readError) Error() string { return e.err.Error() }
func (e readError) Unwrap() error { return e.err }

// load runs on a worker goroutine.
func (s *Set) load(id QTID, info NodeInfo) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(id); ok {
			return data, nil
		}
	}
	stored, err := s.reader.read(info)
	if err != nil {
		return nil, readError{err}
	}
	data, err := formats.DecodeTile(s.cfg.Kind, info.Compression, stored)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(id, data)
	}
	return data, nil
}

func (s *Set) receive() {
	for {
		var r readResult
		select {
		case r = <-s.results:
		default:
			return
		}
		s.readCount--
		s.stats.ReadsEnded++

		var re readError
		if errors.As(r.err, &re) {
			panic(fmt.Errorf("tile set %s: reading tile %d: %w", s.cfg.Name, r.id, r.err))
		}

		st, ok := s.states[r.id]
		if !ok || st.Kind != Reading {
			// The tile left the visible set or lost its slot while in flight.
			continue
		}
		if r.err != nil {
			s.log.Warn("dropping undecodable tile", zap.Uint32("qtid", uint32(r.id)), zap.Error(r.err))
			s.broken[r.id] = true
			s.releaseSlot(st.Slot)
			s.setState(r.id, State{Kind: NoSpace})
			continue
		}

		s.setState(r.id, State{Kind: Active, Slot: st.Slot})
		info := s.tree.Info(r.id)
		s.atlas.UploadTile(st.Slot, r.data)
		s.atlas.WriteTileInfo(st.Slot, TileInfo{
			BaseLatAS: float32(info.BaseLatAS),
			BaseLonAS: float32(info.BaseLonAS),
			ExtentAS:  float32(info.ExtentAS),
			Slot:      uint32(st.Slot),
		})
	}
}

func (s *Set) buildPaintList() {
	s.paint = s.paint[:0]
	for _, id := range s.ActiveTiles() {
		info := s.tree.Info(id)
		s.paint = paintQuad(s.paint, info, s.states[id].Slot)
		s.stats.Active++
		s.stats.MaxLevel = max(s.stats.MaxLevel, int(info.Level))
	}
	for len(s.paint) < 6*s.cfg.Capacity {
		s.paint = append(s.paint, IndexPaintVertex{})
	}
}

// PaintVertices returns the index paint list built by the last FinishUpdate,
// padded with zero vertices to 6 per slot.
func (s *Set) PaintVertices() []IndexPaintVertex { return s.paint }

// PaintIndex redraws the atlas index from the current paint list.
func (s *Set) PaintIndex() { s.atlas.PaintIndex(s.paint) }

// Shutdown waits for every read in flight and discards the results. It must
// run before the catalog is closed, since reads alias its mappings.
func (s *Set) Shutdown() {
	s.workers.Wait()
	for {
		select {
		case <-s.results:
			s.readCount--
		default:
			s.log.Debug("tile set drained", zap.Int("reads_outstanding", s.readCount))
			return
		}
	}
}
