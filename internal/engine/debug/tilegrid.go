package debug

import (
	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/internal/terrain/tile"
	"github.com/Faultbox/orbis/pkg/geodesy"
)

// footprintSegments is the number of segments each tile edge is split into
// so that long edges follow the sphere.
const footprintSegments = 8

// footprintLiftKm keeps outlines above the reference sphere.
const footprintLiftKm = 0.05

// TileFootprints returns outline line endpoints for every resident tile of
// a set, coloured by tile level.
func TileFootprints(set *tile.Set) []LineVertex {
	tree := set.Tree()
	var out []LineVertex
	for _, id := range set.ActiveTiles() {
		out = AppendFootprint(out, tree.Info(id))
	}
	return out
}

// AppendFootprint appends the outline of one tile.
func AppendFootprint(dst []LineVertex, info tile.NodeInfo) []LineVertex {
	c := deferred.LevelColor(int(info.Level))
	color := [4]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, 1}

	lat0, lon0 := float64(info.BaseLatAS), float64(info.BaseLonAS)
	lat1, lon1 := lat0+float64(info.ExtentAS), lon0+float64(info.ExtentAS)
	corners := [5][2]float64{{lat0, lon0}, {lat0, lon1}, {lat1, lon1}, {lat1, lon0}, {lat0, lon0}}

	point := func(latAS, lonAS float64) LineVertex {
		g := geodesy.Graticule{
			Lat:      geodesy.FromArcSeconds(latAS),
			Lon:      geodesy.FromArcSeconds(lonAS),
			Distance: geodesy.EarthRadiusKm + footprintLiftKm,
		}
		p := g.Cartesian()
		return LineVertex{Position: [4]float32{float32(p.X), float32(p.Y), float32(p.Z), 1}, Color: color}
	}
	for e := 0; e < 4; e++ {
		a, b := corners[e], corners[e+1]
		for s := 0; s < footprintSegments; s++ {
			t0 := float64(s) / footprintSegments
			t1 := float64(s+1) / footprintSegments
			dst = append(dst,
				point(a[0]+(b[0]-a[0])*t0, a[1]+(b[1]-a[1])*t0),
				point(a[0]+(b[0]-a[0])*t1, a[1]+(b[1]-a[1])*t1),
			)
		}
	}
	return dst
}
