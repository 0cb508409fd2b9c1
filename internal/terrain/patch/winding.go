package patch

import "fmt"

// Winding selects the index buffer a patch is drawn with. Each canonical
// winding stitches a fixed set of edges to a neighbour one level coarser;
// other combinations are reached by rotating the patch corners.
type Winding uint8

// Canonical windings. Edge k runs from corner k to corner k+1.
const (
	Full Winding = iota
	Edge0
	Edges01
	Edges012
	NumWindings
)

var windingMasks = [NumWindings]uint8{0b000, 0b001, 0b011, 0b111}

// Mask returns the coarse-edge bits of w, bit k for edge k.
func (w Winding) Mask() uint8 { return windingMasks[w] }

func (w Winding) String() string {
	switch w {
	case Full:
		return "Full"
	case Edge0:
		return "Edge0"
	case Edges01:
		return "Edges01"
	case Edges012:
		return "Edges012"
	default:
		return fmt.Sprintf("Winding(%d)", w)
	}
}

// rotateMask returns the mask seen from corners rotated by r, so that new
// edge k is old edge k+r.
func rotateMask(mask uint8, r int) uint8 {
	var out uint8
	for k := 0; k < 3; k++ {
		if mask&(1<<((k+r)%3)) != 0 {
			out |= 1 << k
		}
	}
	return out
}

// Classify maps a coarse-edge mask to a canonical winding and the rotation
// to apply to the corners: seed corner k is patch corner (k+r)%3.
func Classify(mask uint8) (Winding, int) {
	mask &= 0b111
	for r := 0; r < 3; r++ {
		m := rotateMask(mask, r)
		for w := Full; w < NumWindings; w++ {
			if windingMasks[w] == m {
				return w, r
			}
		}
	}
	// Unreachable: every 3-bit mask rotates onto one of the four.
	panic(fmt.Sprintf("patch: unclassifiable mask %03b", mask))
}

// Rotate permutes corners by r as returned by Classify.
func Rotate[T any](c [3]T, r int) [3]T {
	return [3]T{c[r%3], c[(r+1)%3], c[(r+2)%3]}
}
