// Package patch selects and tessellates the terrain surface.
//
// The planet starts as an icosahedron of 20 triangular patches. Tree refines
// the patches facing the camera by centre-splitting them into four, keeping
// neighbours within one level of each other, and emits a fixed number of
// seeds per frame. Layout describes how a seed expands into a regular mesh
// on the GPU: the vertex order, the midpoint dependencies, and the strip
// index buffers that stitch each patch to coarser neighbours.
package patch

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

// Radius is the sphere the patches are built on, in kilometres.
const Radius = geodesy.EarthRadiusKm

// TerrainMarginKm inflates patch bounds to cover displaced terrain.
const TerrainMarginKm = 9.0

// Midpoint returns the point halfway along the great circle between p and q,
// at the sphere's radius. Both the tree and the tessellator go through this
// so shared edges produce identical vertices.
func Midpoint(p, q r3.Vec) r3.Vec {
	return r3.Scale(Radius, r3.Unit(r3.Add(p, q)))
}

// Icosahedron returns the 12 vertices and 20 faces of the root mesh. Faces
// wind counter-clockwise seen from outside.
func Icosahedron() ([]r3.Vec, [][3]int) {
	phi := (1 + math.Sqrt(5)) / 2
	raw := []r3.Vec{
		{X: -1, Y: phi}, {X: 1, Y: phi}, {X: -1, Y: -phi}, {X: 1, Y: -phi},
		{Y: -1, Z: phi}, {Y: 1, Z: phi}, {Y: -1, Z: -phi}, {Y: 1, Z: -phi},
		{X: phi, Z: -1}, {X: phi, Z: 1}, {X: -phi, Z: -1}, {X: -phi, Z: 1},
	}
	verts := make([]r3.Vec, len(raw))
	for i, v := range raw {
		verts[i] = r3.Scale(Radius, r3.Unit(v))
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	for i, f := range faces {
		a, b, c := verts[f[0]], verts[f[1]], verts[f[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if r3.Dot(n, r3.Add(a, r3.Add(b, c))) < 0 {
			faces[i] = [3]int{f[0], f[2], f[1]}
		}
	}
	return verts, faces
}

// Contains reports whether direction d (any length) falls inside the
// spherical triangle (a, b, c), edges included.
func Contains(a, b, c, d r3.Vec) bool {
	const eps = -1e-12
	return r3.Dot(r3.Cross(a, b), d) >= eps*r3.Norm(d) &&
		r3.Dot(r3.Cross(b, c), d) >= eps*r3.Norm(d) &&
		r3.Dot(r3.Cross(c, a), d) >= eps*r3.Norm(d)
}

// Bounds is a patch's bounding sphere and the spherical cap it covers.
type Bounds struct {
	Center r3.Vec
	Radius float64
	// Normal is the outward unit direction through the cap centre.
	Normal r3.Vec
	// CapAngle is the angular radius of the cap in radians.
	CapAngle float64
}

// BoundsOf returns the bounds of the spherical triangle with the given
// corners, inflated by TerrainMarginKm.
func BoundsOf(corners [3]r3.Vec) Bounds {
	n := r3.Unit(r3.Add(corners[0], r3.Add(corners[1], corners[2])))
	center := r3.Scale(Radius, n)
	var rad, cosMin float64 = 0, 1
	for _, c := range corners {
		rad = math.Max(rad, r3.Norm(r3.Sub(c, center)))
		cosMin = math.Min(cosMin, r3.Dot(n, r3.Unit(c)))
	}
	return Bounds{
		Center:   center,
		Radius:   rad + TerrainMarginKm,
		Normal:   n,
		CapAngle: math.Acos(math.Max(-1, math.Min(1, cosMin))),
	}
}

// FlatArea returns the area of the planar triangle through the corners.
func FlatArea(corners [3]r3.Vec) float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(corners[1], corners[0]), r3.Sub(corners[2], corners[0])))
}

// EdgeLength returns the longest chord between corners, in kilometres.
func EdgeLength(corners [3]r3.Vec) float64 {
	return math.Max(r3.Norm(r3.Sub(corners[1], corners[0])),
		math.Max(r3.Norm(r3.Sub(corners[2], corners[1])), r3.Norm(r3.Sub(corners[0], corners[2]))))
}

// polarCos is the cosine of the colatitude below which a corner counts as
// sitting on a pole, where longitude is meaningless.
const polarCos = 1 - 1e-12

// UnwrapLongitudes returns the corner graticules with longitudes made
// continuous across the ±π seam. When the corners straddle the seam the
// negative longitudes move up by 2π. A corner on a pole takes the mean
// longitude of the others.
func UnwrapLongitudes(g [3]geodesy.Graticule) [3]geodesy.Graticule {
	var polar [3]bool
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range g {
		if math.Abs(math.Sin(g[i].Lat)) >= polarCos {
			polar[i] = true
			continue
		}
		lo = math.Min(lo, g[i].Lon)
		hi = math.Max(hi, g[i].Lon)
	}
	if hi-lo > math.Pi {
		for i := range g {
			if !polar[i] && g[i].Lon < 0 {
				g[i].Lon += 2 * math.Pi
			}
		}
	}
	var sum float64
	var n int
	for i := range g {
		if !polar[i] {
			sum += g[i].Lon
			n++
		}
	}
	for i := range g {
		if polar[i] && n > 0 {
			g[i].Lon = sum / float64(n)
		}
	}
	return g
}

// SpansSeam reports whether the unwrapped corners needed shifting.
func SpansSeam(g [3]geodesy.Graticule) bool {
	u := UnwrapLongitudes(g)
	for i := range g {
		if u[i].Lon > math.Pi {
			return true
		}
	}
	return false
}
