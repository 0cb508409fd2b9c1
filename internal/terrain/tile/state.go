package tile

import (
	"container/heap"
	"fmt"
)

// StateKind is the lifecycle stage of a required tile.
type StateKind uint8

// Tile lifecycle. A tile only moves Pending → Reading → Active, and any
// stage can fall back to NoSpace (or be dropped) when it loses its slot.
const (
	// NoSpace: required, but no atlas slot is available.
	NoSpace StateKind = iota
	// Pending: slot reserved, queued for reading.
	Pending
	// Reading: a background read is in flight.
	Reading
	// Active: decoded and resident in its slot.
	Active
)

func (k StateKind) String() string {
	switch k {
	case NoSpace:
		return "NoSpace"
	case Pending:
		return "Pending"
	case Reading:
		return "Reading"
	case Active:
		return "Active"
	default:
		return fmt.Sprintf("StateKind(%d)", k)
	}
}

// State is a tile's stage and, unless NoSpace, the slot it owns.
type State struct {
	Kind StateKind
	Slot int
}

// HasSlot reports whether the state owns an atlas slot.
func (s State) HasSlot() bool { return s.Kind != NoSpace }

func (s State) String() string {
	if !s.HasSlot() {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%d)", s.Kind, s.Slot)
}

// loadQueue is a max-heap of pending reads ordered by votes, then by
// coarser tile first.
type loadQueue []Vote

func (q loadQueue) Len() int { return len(q) }

func (q loadQueue) Less(i, j int) bool {
	if q[i].Votes != q[j].Votes {
		return q[i].Votes > q[j].Votes
	}
	return q[i].ID < q[j].ID
}

func (q loadQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *loadQueue) Push(x any) { *q = append(*q, x.(Vote)) }

func (q *loadQueue) Pop() any {
	old := *q
	v := old[len(old)-1]
	*q = old[:len(old)-1]
	return v
}

func (q *loadQueue) push(v Vote) { heap.Push(q, v) }

func (q *loadQueue) pop() Vote { return heap.Pop(q).(Vote) }

func heapInit(q *loadQueue) { heap.Init(q) }
