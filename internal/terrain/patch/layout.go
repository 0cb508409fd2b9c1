package patch

import "fmt"

// Subdivision limits accepted by NewLayout.
const (
	MinSubdivisions = 1
	MaxSubdivisions = 8
)

// PrimitiveRestart separates the row strips of an index buffer.
const PrimitiveRestart = 0xFFFFFFFF

// VerticesPerSubdivision returns the vertex count of a patch subdivided k
// times: (2^k+1)(2^k+2)/2.
func VerticesPerSubdivision(k int) int {
	n := 1 << k
	return (n + 1) * (n + 2) / 2
}

// Layout is the vertex numbering and index buffers shared by every patch
// tessellated with the same number of subdivisions.
//
// Vertices live on a triangular lattice (i, j), i+j <= 2^k, with corner 0 at
// (0, 0), corner 1 at (2^k, 0) and corner 2 at (0, 2^k). Each subdivision
// level appends its new midpoints after all coarser vertices, first those on
// edges parallel to corners 0→1, then 1→2, then 2→0, each group in row order.
type Layout struct {
	subdivisions int
	n            int
	lattice      []uint32    // (j*(n+1)+i) → vertex
	coords       [][2]int    // vertex → (i, j)
	parents      [][2]uint32 // vertex → the two vertices it is the midpoint of
	levelEnd     []int       // levelEnd[L] = vertex count after level L
	strips       [NumWindings][]uint32
	lines        [NumWindings][]uint32
}

// NewLayout builds the layout for k subdivisions.
func NewLayout(k int) (*Layout, error) {
	if k < MinSubdivisions || k > MaxSubdivisions {
		return nil, fmt.Errorf("patch: %d subdivisions out of range [%d, %d]", k, MinSubdivisions, MaxSubdivisions)
	}
	n := 1 << k
	l := &Layout{
		subdivisions: k,
		n:            n,
		lattice:      make([]uint32, (n+1)*(n+1)),
		coords:       make([][2]int, 0, VerticesPerSubdivision(k)),
		parents:      make([][2]uint32, 0, VerticesPerSubdivision(k)),
		levelEnd:     make([]int, 0, k+1),
	}
	add := func(i, j int, p [2]uint32) {
		l.lattice[j*(n+1)+i] = uint32(len(l.coords))
		l.coords = append(l.coords, [2]int{i, j})
		l.parents = append(l.parents, p)
	}
	add(0, 0, [2]uint32{0, 0})
	add(n, 0, [2]uint32{1, 1})
	add(0, n, [2]uint32{2, 2})
	l.levelEnd = append(l.levelEnd, 3)

	for level := 1; level <= k; level++ {
		s := n >> level // lattice step at this level
		m := 1 << level // level-local side length
		at := func(a, b int) uint32 { return l.lattice[b*s*(n+1)+a*s] }
		for class := 0; class < 3; class++ {
			for b := 0; b <= m; b++ {
				for a := 0; a+b <= m; a++ {
					var p [2]uint32
					switch {
					case class == 0 && a%2 == 1 && b%2 == 0:
						p = [2]uint32{at(a-1, b), at(a+1, b)}
					case class == 1 && a%2 == 1 && b%2 == 1:
						p = [2]uint32{at(a+1, b-1), at(a-1, b+1)}
					case class == 2 && a%2 == 0 && b%2 == 1:
						p = [2]uint32{at(a, b+1), at(a, b-1)}
					default:
						continue
					}
					add(a*s, b*s, p)
				}
			}
		}
		l.levelEnd = append(l.levelEnd, len(l.coords))
	}

	for w := Full; w < NumWindings; w++ {
		l.strips[w] = l.buildStrips(w.Mask())
		l.lines[w] = l.buildLines(w)
	}
	return l, nil
}

// Subdivisions returns k.
func (l *Layout) Subdivisions() int { return l.subdivisions }

// Stride returns the number of vertices per patch.
func (l *Layout) Stride() int { return len(l.coords) }

// VerticesAtLevel returns the vertex count once level subdivisions are done.
func (l *Layout) VerticesAtLevel(level int) int { return l.levelEnd[level] }

// Parents returns the dependency table: entry v holds the two vertices whose
// midpoint is v. Entries 0..2 are the corners themselves.
func (l *Layout) Parents() [][2]uint32 { return l.parents }

// Vertex returns the vertex at lattice point (i, j).
func (l *Layout) Vertex(i, j int) uint32 { return l.lattice[j*(l.n+1)+i] }

// Coords returns the lattice point of vertex v.
func (l *Layout) Coords(v uint32) (i, j int) {
	c := l.coords[v]
	return c[0], c[1]
}

// Strips returns the triangle strip index buffer of w, rows separated by
// PrimitiveRestart.
func (l *Layout) Strips(w Winding) []uint32 { return l.strips[w] }

// Lines returns the wireframe line list of w.
func (l *Layout) Lines(w Winding) []uint32 { return l.lines[w] }

// snap moves odd vertices of coarse edges onto their even predecessor along
// the edge, so the edge only uses vertices the coarser neighbour also has.
func (l *Layout) snap(i, j int, mask uint8) (int, int) {
	n := l.n
	switch {
	case mask&1 != 0 && j == 0 && i%2 == 1:
		return i - 1, 0
	case mask&2 != 0 && i+j == n && j%2 == 1:
		return i + 1, j - 1
	case mask&4 != 0 && i == 0 && j%2 == 1:
		return 0, j + 1
	}
	return i, j
}

func (l *Layout) snapped(i, j int, mask uint8) uint32 {
	i, j = l.snap(i, j, mask)
	return l.Vertex(i, j)
}

// buildStrips emits one strip per lattice row, walking from the diagonal
// edge back to edge 2 so the first triangle of each row is counter-clockwise.
func (l *Layout) buildStrips(mask uint8) []uint32 {
	var out []uint32
	for j := 0; j < l.n; j++ {
		if j > 0 {
			out = append(out, PrimitiveRestart)
		}
		for i := l.n - j; i >= 1; i-- {
			out = append(out, l.snapped(i, j, mask), l.snapped(i-1, j+1, mask))
		}
		out = append(out, l.snapped(0, j, mask))
	}
	return out
}

// Triangles expands the strips of w into a triangle list with every
// triangle counter-clockwise, dropping degenerate ones.
func (l *Layout) Triangles(w Winding) [][3]uint32 {
	var out [][3]uint32
	var strip []uint32
	flush := func() {
		for k := 0; k+2 < len(strip); k++ {
			t := [3]uint32{strip[k], strip[k+1], strip[k+2]}
			if k%2 == 1 {
				t[0], t[1] = t[1], t[0]
			}
			if t[0] != t[1] && t[1] != t[2] && t[0] != t[2] {
				out = append(out, t)
			}
		}
		strip = strip[:0]
	}
	for _, idx := range l.strips[w] {
		if idx == PrimitiveRestart {
			flush()
			continue
		}
		strip = append(strip, idx)
	}
	flush()
	return out
}

// buildLines lists every distinct triangle edge of w's strips once. It runs
// after the strips of w are built.
func (l *Layout) buildLines(w Winding) []uint32 {
	type edge [2]uint32
	seen := make(map[edge]bool)
	var out []uint32
	for _, t := range l.Triangles(w) {
		for k := 0; k < 3; k++ {
			a, b := t[k], t[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			if !seen[edge{a, b}] {
				seen[edge{a, b}] = true
				out = append(out, a, b)
			}
		}
	}
	return out
}
