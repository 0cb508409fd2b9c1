package patch

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

// Vertex is one tessellated surface point.
type Vertex struct {
	Position r3.Vec
	Normal   r3.Vec
	// Lat and Lon are radians; Lon is unwrapped across the seam for patches
	// that straddle it.
	Lat, Lon float64
}

// Tessellate expands seed corners into Stride vertices in layout order. It
// performs the prepare and expand passes on the CPU: corners first, then each
// vertex as the midpoint of its two parents.
func (l *Layout) Tessellate(seed [3]r3.Vec, dst []Vertex) []Vertex {
	stride := l.Stride()
	if cap(dst) < stride {
		dst = make([]Vertex, stride)
	}
	dst = dst[:stride]

	for v := 0; v < 3; v++ {
		dst[v].Position = seed[v]
	}
	for v := 3; v < stride; v++ {
		p := l.parents[v]
		dst[v].Position = Midpoint(dst[p[0]].Position, dst[p[1]].Position)
	}

	var corners [3]geodesy.Graticule
	for v := 0; v < 3; v++ {
		corners[v] = geodesy.FromCartesian(seed[v])
	}
	seam := SpansSeam(corners)
	for v := range dst {
		g := geodesy.FromCartesian(dst[v].Position)
		if seam && g.Lon < 0 {
			g.Lon += 2 * math.Pi
		}
		dst[v].Normal = r3.Unit(dst[v].Position)
		dst[v].Lat, dst[v].Lon = g.Lat, g.Lon
	}
	return dst
}

// HeightSampler resolves terrain height, in metres above the sphere, at a
// point given in arcseconds.
type HeightSampler interface {
	HeightAt(latAS, lonAS float64) (float64, bool)
}

// Displace moves every vertex radially by the sampled height. Vertices with
// no height data keep their position.
func Displace(verts []Vertex, heights HeightSampler) {
	for i := range verts {
		v := &verts[i]
		lat := geodesy.ArcSeconds(v.Lat)
		lon := geodesy.ArcSeconds(geodesy.WrapLongitude(v.Lon))
		h, ok := heights.HeightAt(lat, lon)
		if !ok {
			continue
		}
		v.Position = r3.Scale(Radius+h/1000, v.Normal)
	}
}
