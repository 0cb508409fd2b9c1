package tile

import (
	"math"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

// metresPerArcSecond approximates the ground distance of one arcsecond of
// latitude, used to turn patch edge lengths into a tile resolution.
const metresPerArcSecond = 30.0

// Region is the angular footprint of one visible patch and the sample
// spacing it needs, all in arcseconds.
type Region struct {
	LatMinAS, LatMaxAS int32
	LonMinAS, LonMaxAS int32
	ResolutionAS       float64
}

// RegionFromGraticules builds the footprint of a triangle whose corners are
// g0, g1, g2 (radians) and whose tessellated edges are edgeLengthM metres.
func RegionFromGraticules(g0, g1, g2 geodesy.Graticule, edgeLengthM float64) Region {
	latMin := math.Min(g0.Lat, math.Min(g1.Lat, g2.Lat))
	latMax := math.Max(g0.Lat, math.Max(g1.Lat, g2.Lat))
	lonMin := math.Min(g0.Lon, math.Min(g1.Lon, g2.Lon))
	lonMax := math.Max(g0.Lon, math.Max(g1.Lon, g2.Lon))
	return Region{
		LatMinAS:     int32(math.Round(geodesy.ArcSeconds(latMin))),
		LatMaxAS:     int32(math.Round(geodesy.ArcSeconds(latMax))),
		LonMinAS:     int32(math.Round(geodesy.ArcSeconds(lonMin))),
		LonMaxAS:     int32(math.Round(geodesy.ArcSeconds(lonMax))),
		ResolutionAS: edgeLengthM / metresPerArcSecond,
	}
}

// Overlaps reports whether the tile's footprint touches the region.
func (r Region) Overlaps(n NodeInfo) bool {
	return n.BaseLatAS <= r.LatMaxAS && n.BaseLatAS+n.ExtentAS >= r.LatMinAS &&
		n.BaseLonAS <= r.LonMaxAS && n.BaseLonAS+n.ExtentAS >= r.LonMinAS
}
