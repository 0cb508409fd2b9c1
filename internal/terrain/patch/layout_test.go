package patch

import "testing"

func TestVerticesPerSubdivision(t *testing.T) {
	want := []int{3, 6, 15, 45, 153, 561, 2145, 8385}
	for k, w := range want {
		if got := VerticesPerSubdivision(k); got != w {
			t.Errorf("VerticesPerSubdivision(%d) = %d, want %d", k, got, w)
		}
	}
}

func TestNewLayoutRange(t *testing.T) {
	for _, k := range []int{MinSubdivisions - 1, MaxSubdivisions + 1} {
		if _, err := NewLayout(k); err == nil {
			t.Errorf("NewLayout(%d) accepted", k)
		}
	}
}

func TestFirstLevelDependencies(t *testing.T) {
	l, err := NewLayout(1)
	if err != nil {
		t.Fatal(err)
	}
	want := map[uint32][2]uint32{3: {0, 1}, 4: {1, 2}, 5: {2, 0}}
	for v, p := range want {
		if got := l.Parents()[v]; got != p {
			t.Errorf("parents of %d = %v, want %v", v, got, p)
		}
	}
}

func TestDependenciesAreMidpoints(t *testing.T) {
	for k := MinSubdivisions; k <= 6; k++ {
		l, err := NewLayout(k)
		if err != nil {
			t.Fatal(err)
		}
		if l.Stride() != VerticesPerSubdivision(k) {
			t.Fatalf("k=%d: stride %d", k, l.Stride())
		}
		for level := 1; level <= k; level++ {
			if got := l.VerticesAtLevel(level); got != VerticesPerSubdivision(level) {
				t.Errorf("k=%d: %d vertices after level %d, want %d", k, got, level, VerticesPerSubdivision(level))
			}
			for v := l.VerticesAtLevel(level - 1); v < l.VerticesAtLevel(level); v++ {
				p := l.Parents()[v]
				// Parents come from coarser levels, so one pass per level
				// can compute them in any order.
				if int(p[0]) >= l.VerticesAtLevel(level-1) || int(p[1]) >= l.VerticesAtLevel(level-1) {
					t.Errorf("k=%d: vertex %d depends on %v from its own level", k, v, p)
				}
				i, j := l.Coords(uint32(v))
				ai, aj := l.Coords(p[0])
				bi, bj := l.Coords(p[1])
				if ai+bi != 2*i || aj+bj != 2*j {
					t.Errorf("k=%d: vertex %d at (%d,%d) is not the midpoint of (%d,%d) and (%d,%d)",
						k, v, i, j, ai, aj, bi, bj)
				}
			}
		}
	}
}

// signedArea is twice the lattice area of a triangle, positive when
// counter-clockwise.
func signedArea(l *Layout, t [3]uint32) int {
	ai, aj := l.Coords(t[0])
	bi, bj := l.Coords(t[1])
	ci, cj := l.Coords(t[2])
	return (bi-ai)*(cj-aj) - (bj-aj)*(ci-ai)
}

func TestStripsCoverPatch(t *testing.T) {
	for k := MinSubdivisions; k <= 5; k++ {
		l, err := NewLayout(k)
		if err != nil {
			t.Fatal(err)
		}
		n := 1 << k
		for w := Full; w < NumWindings; w++ {
			tris := l.Triangles(w)
			area := 0
			for _, tri := range tris {
				a := signedArea(l, tri)
				if a <= 0 {
					t.Fatalf("k=%d %s: triangle %v is not counter-clockwise", k, w, tri)
				}
				area += a
			}
			if area != n*n {
				t.Errorf("k=%d %s: triangles cover %d, want %d", k, w, area, n*n)
			}
			if w == Full && len(tris) != n*n {
				t.Errorf("k=%d: %d full triangles, want %d", k, len(tris), n*n)
			}
		}
		if got, want := len(l.Lines(Full))/2, 3*n*(n+1)/2; got != want {
			t.Errorf("k=%d: %d wireframe edges, want %d", k, got, want)
		}
	}
}

func TestCoarseEdgesUseEvenVertices(t *testing.T) {
	l, err := NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	n := 16
	onEdge := func(e, i, j int) (int, bool) {
		switch e {
		case 0:
			return i, j == 0
		case 1:
			return j, i+j == n
		default:
			return n - j, i == 0
		}
	}
	for w := Full; w < NumWindings; w++ {
		used := make(map[uint32]bool)
		for _, idx := range l.Strips(w) {
			if idx != PrimitiveRestart {
				used[idx] = true
			}
		}
		for e := 0; e < 3; e++ {
			coarse := w.Mask()&(1<<e) != 0
			for v := range used {
				i, j := l.Coords(v)
				pos, ok := onEdge(e, i, j)
				if ok && coarse && pos%2 == 1 {
					t.Errorf("%s: odd vertex (%d,%d) used on coarse edge %d", w, i, j, e)
				}
			}
			// Every even edge vertex is still there.
			for pos := 0; pos <= n; pos += 2 {
				var v uint32
				switch e {
				case 0:
					v = l.Vertex(pos, 0)
				case 1:
					v = l.Vertex(n-pos, pos)
				default:
					v = l.Vertex(0, n-pos)
				}
				if !used[v] {
					t.Errorf("%s: even vertex %d of edge %d unused", w, pos, e)
				}
			}
		}
	}
}

func TestClassifyRotations(t *testing.T) {
	for mask := uint8(0); mask < 8; mask++ {
		w, r := Classify(mask)
		if got := rotateMask(mask, r); got != w.Mask() {
			t.Errorf("mask %03b: rotation %d gives %03b, not %s", mask, r, got, w)
		}
	}
	if w, r := Classify(0b100); w != Edge0 || r != 2 {
		t.Errorf("Classify(100) = %s, %d; want Edge0, 2", w, r)
	}
	if w, r := Classify(0b101); w != Edges01 || r != 2 {
		t.Errorf("Classify(101) = %s, %d; want Edges01, 2", w, r)
	}
	if got := Rotate([3]int{10, 11, 12}, 2); got != [3]int{12, 10, 11} {
		t.Errorf("Rotate = %v", got)
	}
}
