// Package camera provides the planet camera: a viewpoint above a graticule
// with a heading and a pitch, driven by the camera.* script methods.
package camera

import (
	gomath "math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/internal/engine/picking"
	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/pkg/geodesy"
	"github.com/Faultbox/orbis/pkg/math"
)

// PlanetCamera looks out from a point above the reference sphere.
type PlanetCamera struct {
	// Lat and Lon are radians.
	Lat, Lon float64
	// AltitudeKm is the height above the reference sphere.
	AltitudeKm float64
	// Heading is radians clockwise from north.
	Heading float64
	// Pitch is radians below the horizon; Pi/2 looks straight down.
	Pitch float64

	// FovY is the vertical field of view in radians.
	FovY float64

	// Constraints
	MinAltitudeKm float64
	MaxAltitudeKm float64

	// Sensitivity
	DragSensitivity float64
	ZoomSensitivity float64
	// MoveSensitivity is the ground distance of one move step as a fraction
	// of the altitude.
	MoveSensitivity float64
}

const (
	pitchLimit = gomath.Pi/2 - 1e-3
	latLimit   = gomath.Pi/2 - 1e-6
)

// NewPlanetCamera returns a camera above (latDeg, lonDeg) looking along
// headingDeg, tilted halfway down.
func NewPlanetCamera(latDeg, lonDeg, altitudeKm, headingDeg, fovYDeg float64) (*PlanetCamera, error) {
	g, err := geodesy.Surface(latDeg, lonDeg, altitudeKm)
	if err != nil {
		return nil, err
	}
	c := &PlanetCamera{
		Lat:             g.Lat,
		Lon:             g.Lon,
		AltitudeKm:      altitudeKm,
		Heading:         geodesy.Radians(headingDeg),
		Pitch:           gomath.Pi / 4,
		FovY:            geodesy.Radians(fovYDeg),
		MinAltitudeKm:   0.01,
		MaxAltitudeKm:   100000,
		DragSensitivity: 0.003,
		ZoomSensitivity: 0.1,
		MoveSensitivity: 0.05,
	}
	c.clamp()
	return c, nil
}

// Graticule returns the eye position.
func (c *PlanetCamera) Graticule() geodesy.Graticule {
	return geodesy.Graticule{Lat: c.Lat, Lon: c.Lon, Distance: geodesy.EarthRadiusKm + c.AltitudeKm}
}

// Position returns the eye in geocentric kilometres.
func (c *PlanetCamera) Position() r3.Vec {
	return c.Graticule().Cartesian()
}

// Basis returns the forward, right and up directions of the view.
func (c *PlanetCamera) Basis() (forward, right, up r3.Vec) {
	g := c.Graticule()
	n, e, u := g.North(), g.East(), g.Up()
	sinH, cosH := gomath.Sincos(c.Heading)
	sinP, cosP := gomath.Sincos(c.Pitch)

	level := r3.Add(r3.Scale(cosH, n), r3.Scale(sinH, e))
	right = r3.Sub(r3.Scale(cosH, e), r3.Scale(sinH, n))
	forward = r3.Sub(r3.Scale(cosP, level), r3.Scale(sinP, u))
	up = r3.Cross(right, forward)
	return forward, right, up
}

// Pick returns the surface point under pixel (x, y), origin top-left.
func (c *PlanetCamera) Pick(x, y float64, width, height int) (geodesy.Graticule, bool) {
	forward, right, up := c.Basis()
	return picking.Pick(picking.ScreenToRay(x, y, width, height, picking.Frame{
		Eye:     c.Position(),
		Forward: forward,
		Right:   right,
		Up:      up,
		FovY:    c.FovY,
	}))
}

// Near returns the near plane distance in kilometres.
func (c *PlanetCamera) Near() float64 {
	return gomath.Max(0.001, c.AltitudeKm*0.01)
}

// View returns the patch tree view for a viewport.
func (c *PlanetCamera) View(width, height int) patch.View {
	forward, _, up := c.Basis()
	return patch.View{
		Position:       c.Position(),
		Forward:        forward,
		Up:             up,
		FovY:           c.FovY,
		Aspect:         aspect(width, height),
		Near:           c.Near(),
		ViewportHeight: float64(height),
	}
}

// Deferred returns the projection the G-buffer is rendered with.
func (c *PlanetCamera) Deferred(width, height int) (deferred.Camera, error) {
	forward, _, up := c.Basis()
	return deferred.NewCamera(c.Position(), forward, up, c.FovY, aspect(width, height), c.Near())
}

// ViewRotation returns the eye-relative view matrix: positions are made
// relative to Position in double precision before it is applied.
func (c *PlanetCamera) ViewRotation() math.Mat4 {
	forward, _, up := c.Basis()
	return math.LookAtD(r3.Vec{}, forward, up).Mat4()
}

// Projection returns the infinite reverse-Z projection.
func (c *PlanetCamera) Projection(width, height int) math.Mat4 {
	return math.PerspectiveReverseZ(float32(c.FovY), float32(aspect(width, height)), float32(c.Near()))
}

func aspect(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 1
	}
	return float64(width) / float64(height)
}

// PanView turns the view: dx changes the heading and dy the pitch, both in
// radians.
func (c *PlanetCamera) PanView(dx, dy float64) {
	c.Heading += dx
	c.Pitch += dy
	c.clamp()
}

// MoveView moves the eye over the ground by forward and right steps along
// the current heading. A step scales with the altitude.
func (c *PlanetCamera) MoveView(forward, right float64) {
	step := c.MoveSensitivity * gomath.Max(c.AltitudeKm, c.MinAltitudeKm)
	sinH, cosH := gomath.Sincos(c.Heading)
	north := (forward*cosH - right*sinH) * step
	east := (forward*sinH + right*cosH) * step

	r := geodesy.EarthRadiusKm + c.AltitudeKm
	c.Lat += north / r
	if cosLat := gomath.Cos(c.Lat); cosLat > 1e-6 {
		c.Lon += east / (r * cosLat)
	}
	c.clamp()
}

// HandleMouseMotion pans by a mouse delta in pixels.
func (c *PlanetCamera) HandleMouseMotion(dx, dy float64) {
	c.PanView(dx*c.DragSensitivity, dy*c.DragSensitivity)
}

// HandleMouseWheel zooms: positive dy moves toward the ground.
func (c *PlanetCamera) HandleMouseWheel(dy float64) {
	c.AltitudeKm -= dy * c.AltitudeKm * c.ZoomSensitivity
	c.clamp()
}

func (c *PlanetCamera) clamp() {
	c.Pitch = gomath.Max(-pitchLimit, gomath.Min(pitchLimit, c.Pitch))
	c.Heading = gomath.Mod(c.Heading, 2*gomath.Pi)
	if c.Heading < 0 {
		c.Heading += 2 * gomath.Pi
	}
	c.Lat = gomath.Max(-latLimit, gomath.Min(latLimit, c.Lat))
	c.Lon = geodesy.WrapLongitude(c.Lon)
	c.AltitudeKm = gomath.Max(c.MinAltitudeKm, gomath.Min(c.MaxAltitudeKm, c.AltitudeKm))
}
