package debug

import (
	gomath "math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/internal/terrain/patch"
)

// LineVertex is one endpoint of a debug line (std430 friendly, 32 bytes).
type LineVertex struct {
	Position [4]float32
	Color    [4]float32
}

// BoxEdges returns the 12 edges of a hexahedron as 24 endpoints. Corners
// 0-3 are one face and 4-7 the opposite face, in the same winding.
func BoxEdges(c [8]r3.Vec) []r3.Vec {
	return []r3.Vec{
		// Near face
		c[0], c[1], c[1], c[2], c[2], c[3], c[3], c[0],
		// Far face
		c[4], c[5], c[5], c[6], c[6], c[7], c[7], c[4],
		// Connecting edges
		c[0], c[4], c[1], c[5], c[2], c[6], c[3], c[7],
	}
}

// FrustumCorners returns the near and far rectangles of a view, cut off at
// far kilometres.
func FrustumCorners(v patch.View, far float64) [8]r3.Vec {
	f := r3.Unit(v.Forward)
	right := r3.Unit(r3.Cross(f, v.Up))
	up := r3.Cross(right, f)
	tanY := gomath.Tan(v.FovY / 2)
	tanX := tanY * v.Aspect

	rect := func(d float64) [4]r3.Vec {
		centre := r3.Add(v.Position, r3.Scale(d, f))
		x := r3.Scale(d*tanX, right)
		y := r3.Scale(d*tanY, up)
		return [4]r3.Vec{
			r3.Sub(r3.Sub(centre, x), y),
			r3.Sub(r3.Add(centre, x), y),
			r3.Add(r3.Add(centre, x), y),
			r3.Add(r3.Sub(centre, x), y),
		}
	}
	n, fr := rect(v.Near), rect(far)
	return [8]r3.Vec{n[0], n[1], n[2], n[3], fr[0], fr[1], fr[2], fr[3]}
}

// FrustumLines returns the pinned frustum as line endpoints in one colour.
// The far plane sits at the horizon distance of the view, so the box shows
// what the patch tree can select.
func FrustumLines(v patch.View, color [4]float32) []LineVertex {
	r := r3.Norm(v.Position)
	far := gomath.Sqrt(gomath.Max(r*r-patch.Radius*patch.Radius, 0))
	far = gomath.Max(far, 10*v.Near)
	edges := BoxEdges(FrustumCorners(v, far))
	out := make([]LineVertex, len(edges))
	for i, p := range edges {
		out[i] = LineVertex{Position: [4]float32{float32(p.X), float32(p.Y), float32(p.Z), 1}, Color: color}
	}
	return out
}
