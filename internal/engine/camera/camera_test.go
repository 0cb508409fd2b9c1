package camera

import (
	gomath "math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

func newCamera(t *testing.T) *PlanetCamera {
	t.Helper()
	c, err := NewPlanetCamera(10, 20, 100, 0, 60)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBasisIsOrthonormal(t *testing.T) {
	c := newCamera(t)
	for _, pitch := range []float64{0, 0.3, gomath.Pi / 2} {
		c.Pitch = pitch
		c.clamp()
		f, r, u := c.Basis()
		for name, v := range map[string]r3.Vec{"forward": f, "right": r, "up": u} {
			if n := r3.Norm(v); gomath.Abs(n-1) > 1e-9 {
				t.Errorf("pitch %v: |%s| = %v", pitch, name, n)
			}
		}
		if d := r3.Dot(f, r); gomath.Abs(d) > 1e-9 {
			t.Errorf("pitch %v: forward·right = %v", pitch, d)
		}
		if d := r3.Dot(f, u); gomath.Abs(d) > 1e-9 {
			t.Errorf("pitch %v: forward·up = %v", pitch, d)
		}
	}
}

func TestLookingDownSeesTheSubPoint(t *testing.T) {
	c := newCamera(t)
	c.Pitch = gomath.Pi / 2
	c.clamp()
	f, _, _ := c.Basis()
	down := r3.Scale(-1, c.Graticule().Up())
	if d := r3.Dot(f, down); d < 0.999 {
		t.Errorf("forward·down = %v", d)
	}
}

func TestMoveViewFollowsHeading(t *testing.T) {
	tests := []struct {
		name           string
		heading        float64
		forward, right float64
		wantDLat       int
		wantDLon       int
	}{
		{"north", 0, 1, 0, 1, 0},
		{"back", 0, -1, 0, -1, 0},
		{"east", 0, 0, 1, 0, 1},
		{"heading east", gomath.Pi / 2, 1, 0, 0, 1},
		{"heading south", gomath.Pi, 1, 0, -1, 0},
	}
	sign := func(v float64) int {
		switch {
		case v > 1e-9:
			return 1
		case v < -1e-9:
			return -1
		}
		return 0
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCamera(t)
			c.Heading = tt.heading
			lat, lon := c.Lat, c.Lon
			c.MoveView(tt.forward, tt.right)
			if got := sign(c.Lat - lat); got != tt.wantDLat {
				t.Errorf("lat moved %v", c.Lat-lat)
			}
			if got := sign(c.Lon - lon); got != tt.wantDLon {
				t.Errorf("lon moved %v", c.Lon-lon)
			}
		})
	}
}

func TestMoveViewStepScalesWithAltitude(t *testing.T) {
	c := newCamera(t)
	lat := c.Lat
	c.MoveView(1, 0)
	// 5% of 100 km.
	moved := (c.Lat - lat) * (geodesy.EarthRadiusKm + c.AltitudeKm)
	if gomath.Abs(moved-5) > 1e-9 {
		t.Errorf("moved %v km, want 5", moved)
	}
}

func TestMouseWheelClampsAltitude(t *testing.T) {
	c := newCamera(t)
	c.HandleMouseWheel(1)
	if gomath.Abs(c.AltitudeKm-90) > 1e-9 {
		t.Errorf("altitude %v, want 90", c.AltitudeKm)
	}
	for i := 0; i < 1000; i++ {
		c.HandleMouseWheel(5)
	}
	if c.AltitudeKm != c.MinAltitudeKm {
		t.Errorf("altitude %v, want clamp at %v", c.AltitudeKm, c.MinAltitudeKm)
	}
}

func TestPanViewWrapsHeadingAndClampsPitch(t *testing.T) {
	c := newCamera(t)
	c.PanView(-0.5, 10)
	if c.Heading < 0 || c.Heading >= 2*gomath.Pi {
		t.Errorf("heading %v not wrapped", c.Heading)
	}
	if c.Pitch != pitchLimit {
		t.Errorf("pitch %v, want %v", c.Pitch, pitchLimit)
	}
}

func TestViewMatchesDeferredCamera(t *testing.T) {
	c := newCamera(t)
	v := c.View(1280, 720)
	if v.Aspect != 1280.0/720.0 || v.ViewportHeight != 720 {
		t.Errorf("view aspect %v height %v", v.Aspect, v.ViewportHeight)
	}
	cam, err := c.Deferred(1280, 720)
	if err != nil {
		t.Fatal(err)
	}
	if r3.Norm(r3.Sub(cam.Eye(), v.Position)) > 1e-9 {
		t.Errorf("eye %v, view position %v", cam.Eye(), v.Position)
	}
}

func TestNewPlanetCameraRejectsBadLatitude(t *testing.T) {
	if _, err := NewPlanetCamera(91, 0, 10, 0, 60); err == nil {
		t.Fatal("want error for latitude 91")
	}
}

func TestPickCentreLooksAlongForward(t *testing.T) {
	c := newCamera(t)
	g, ok := c.Pick(640, 360, 1281, 721)
	if !ok {
		t.Fatal("centre ray missed the planet")
	}
	f, _, _ := c.Basis()
	dir := r3.Unit(r3.Sub(g.Cartesian(), c.Position()))
	if d := r3.Dot(dir, f); d < 1-1e-9 {
		t.Errorf("picked point off the view axis: forward·dir = %v", d)
	}
}

func TestPickAboveHorizonMisses(t *testing.T) {
	c := newCamera(t)
	c.Pitch = -0.5
	c.clamp()
	if g, ok := c.Pick(640, 0, 1281, 721); ok {
		t.Errorf("sky pixel picked %v", g)
	}
}
