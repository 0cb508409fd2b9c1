// Package geodesy converts between graticules (latitude, longitude, distance)
// and geocentric Cartesian coordinates.
//
// The Cartesian frame is right-handed with +Z through the north pole and +X
// through latitude 0, longitude 0. Lengths are kilometres unless a name says
// otherwise.
package geodesy

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// EarthRadiusKm is the mean radius of the reference sphere.
const EarthRadiusKm = 6371.0

// Largest latitude representable without hitting the pole singularity.
const maxLatitude = math.Pi/2 - 1e-12

// ErrOutOfRange is returned for user-supplied angles outside the valid range.
var ErrOutOfRange = errors.New("graticule out of range")

// Graticule is a position in spherical coordinates around some origin.
// Lat and Lon are radians; Distance is kilometres from the origin.
type Graticule struct {
	Lat      float64
	Lon      float64
	Distance float64
}

// New builds a graticule from degrees and kilometres, rejecting values a user
// could not have meant.
func New(latDeg, lonDeg, distanceKm float64) (Graticule, error) {
	switch {
	case math.IsNaN(latDeg) || latDeg < -90 || latDeg > 90:
		return Graticule{}, fmt.Errorf("%w: latitude %g not in [-90, 90]", ErrOutOfRange, latDeg)
	case math.IsNaN(lonDeg) || lonDeg < -180 || lonDeg > 180:
		return Graticule{}, fmt.Errorf("%w: longitude %g not in [-180, 180]", ErrOutOfRange, lonDeg)
	case math.IsNaN(distanceKm) || distanceKm < 0:
		return Graticule{}, fmt.Errorf("%w: distance %g is negative", ErrOutOfRange, distanceKm)
	}
	return Graticule{
		Lat:      Radians(latDeg),
		Lon:      Radians(lonDeg),
		Distance: distanceKm,
	}.Clamped(), nil
}

// Surface returns a graticule on the reference sphere at altitude km above it.
func Surface(latDeg, lonDeg, altitudeKm float64) (Graticule, error) {
	if altitudeKm < -EarthRadiusKm {
		return Graticule{}, fmt.Errorf("%w: altitude %g km is below the planet centre", ErrOutOfRange, altitudeKm)
	}
	return New(latDeg, lonDeg, EarthRadiusKm+altitudeKm)
}

// FromCartesian converts a geocentric point to a graticule.
func FromCartesian(p r3.Vec) Graticule {
	d := r3.Norm(p)
	if d == 0 {
		return Graticule{}
	}
	return Graticule{
		Lat:      math.Asin(clamp(p.Z/d, -1, 1)),
		Lon:      math.Atan2(p.Y, p.X),
		Distance: d,
	}
}

// Cartesian converts the graticule to a geocentric point.
func (g Graticule) Cartesian() r3.Vec {
	cosLat := math.Cos(g.Lat)
	return r3.Vec{
		X: g.Distance * cosLat * math.Cos(g.Lon),
		Y: g.Distance * cosLat * math.Sin(g.Lon),
		Z: g.Distance * math.Sin(g.Lat),
	}
}

// Up returns the outward unit normal of the sphere at g.
func (g Graticule) Up() r3.Vec {
	return Graticule{Lat: g.Lat, Lon: g.Lon, Distance: 1}.Cartesian()
}

// North returns the unit vector pointing north in the tangent plane at g.
func (g Graticule) North() r3.Vec {
	sinLat, cosLat := math.Sincos(g.Lat)
	sinLon, cosLon := math.Sincos(g.Lon)
	return r3.Vec{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat}
}

// East returns the unit vector pointing east in the tangent plane at g.
func (g Graticule) East() r3.Vec {
	sinLon, cosLon := math.Sincos(g.Lon)
	return r3.Vec{X: -sinLon, Y: cosLon}
}

// Clamped keeps the latitude away from the poles, wraps the longitude into
// (-π, π] and makes the distance non-negative.
func (g Graticule) Clamped() Graticule {
	g.Lat = clamp(g.Lat, -maxLatitude, maxLatitude)
	g.Lon = WrapLongitude(g.Lon)
	if g.Distance < 0 {
		g.Distance = 0
	}
	return g
}

// LatDeg returns the latitude in degrees.
func (g Graticule) LatDeg() float64 { return Degrees(g.Lat) }

// LonDeg returns the longitude in degrees.
func (g Graticule) LonDeg() float64 { return Degrees(g.Lon) }

func (g Graticule) String() string {
	return fmt.Sprintf("(%.6f°, %.6f°, %.3f km)", g.LatDeg(), g.LonDeg(), g.Distance)
}

// WrapLongitude maps lon into (-π, π].
func WrapLongitude(lon float64) float64 {
	if lon > -math.Pi && lon <= math.Pi {
		return lon
	}
	lon = math.Mod(lon+math.Pi, 2*math.Pi)
	if lon <= 0 {
		lon += 2 * math.Pi
	}
	return lon - math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
