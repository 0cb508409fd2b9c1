package deferred

import (
	gomath "math"

	"github.com/Faultbox/orbis/internal/terrain/patch"
)

// DrawStats counts what one geometry pass did.
type DrawStats struct {
	Patches   int
	Triangles int
	// BackFacing triangles were culled; Clipped ones reached behind the near
	// plane and were dropped whole.
	BackFacing int
	Clipped    int
}

// DrawSelection tessellates every leaf of sel, displaces it by heights when
// non-nil, and draws it with the triangle list of its winding.
func (g *GBuffer) DrawSelection(cam Camera, layout *patch.Layout, sel *patch.Selection, heights patch.HeightSampler) DrawStats {
	var stats DrawStats
	var tris [patch.NumWindings][][3]uint32
	var verts []patch.Vertex
	for _, leaf := range sel.Leaves {
		if tris[leaf.Winding] == nil {
			tris[leaf.Winding] = layout.Triangles(leaf.Winding)
		}
		verts = layout.Tessellate(leaf.Corners, verts)
		if heights != nil {
			patch.Displace(verts, heights)
		}
		s := g.DrawTriangles(cam, verts, tris[leaf.Winding], leaf.Level)
		stats.Patches++
		stats.Triangles += s.Triangles
		stats.BackFacing += s.BackFacing
		stats.Clipped += s.Clipped
	}
	return stats
}

// DrawTriangles rasterises counter-clockwise triangles. Every covered pixel
// gets the perspective-correct graticule, weight 1 and the patch level as
// flags.
func (g *GBuffer) DrawTriangles(cam Camera, verts []patch.Vertex, tris [][3]uint32, level int) DrawStats {
	var stats DrawStats
	projected := make([]clipPoint, len(verts))
	inFront := make([]bool, len(verts))
	for i, v := range verts {
		projected[i], inFront[i] = cam.project(v.Position)
	}

	for _, t := range tris {
		if !inFront[t[0]] || !inFront[t[1]] || !inFront[t[2]] {
			stats.Clipped++
			continue
		}
		if !g.fill(
			[3]clipPoint{projected[t[0]], projected[t[1]], projected[t[2]]},
			[3]*patch.Vertex{&verts[t[0]], &verts[t[1]], &verts[t[2]]},
			float32(level),
		) {
			stats.BackFacing++
			continue
		}
		stats.Triangles++
	}
	return stats
}

// fill draws one triangle, testing pixel centres. It returns false for
// back-facing or degenerate triangles.
func (g *GBuffer) fill(p [3]clipPoint, v [3]*patch.Vertex, flags float32) bool {
	var sx, sy [3]float64
	for k := range p {
		sx[k] = (p[k].x*0.5 + 0.5) * float64(g.width)
		sy[k] = (p[k].y*0.5 + 0.5) * float64(g.height)
	}
	area := edge(sx[0], sy[0], sx[1], sy[1], sx[2], sy[2])
	if area <= 0 {
		return false
	}

	minX := max(0, int(gomath.Floor(min(sx[0], sx[1], sx[2]))))
	maxX := min(g.width-1, int(gomath.Ceil(max(sx[0], sx[1], sx[2]))))
	minY := max(0, int(gomath.Floor(min(sy[0], sy[1], sy[2]))))
	maxY := min(g.height-1, int(gomath.Ceil(max(sy[0], sy[1], sy[2]))))

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			b0 := edge(sx[1], sy[1], sx[2], sy[2], px, py) / area
			b1 := edge(sx[2], sy[2], sx[0], sy[0], px, py) / area
			b2 := edge(sx[0], sy[0], sx[1], sy[1], px, py) / area
			if b0 < 0 || b1 < 0 || b2 < 0 {
				continue
			}
			i := y*g.width + x
			depth := b0*p[0].depth + b1*p[1].depth + b2*p[2].depth
			if float32(depth) <= g.depth[i] {
				continue
			}

			// Attributes interpolate linearly in view space, so weight by 1/w.
			q0, q1, q2 := b0/p[0].w, b1/p[1].w, b2/p[2].w
			sum := q0 + q1 + q2
			lat := (q0*v[0].Lat + q1*v[1].Lat + q2*v[2].Lat) / sum
			lon := (q0*v[0].Lon + q1*v[1].Lon + q2*v[2].Lon) / sum

			g.depth[i] = float32(depth)
			g.texels[i] = Texel{Lat: float32(lat), Lon: float32(lon), Weight: 1, Flags: flags}
		}
	}
	return true
}

func edge(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}
