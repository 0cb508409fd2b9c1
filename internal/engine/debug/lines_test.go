package debug

import (
	gomath "math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/internal/terrain/tile"
	"github.com/Faultbox/orbis/pkg/geodesy"
)

func TestFrustumCorners(t *testing.T) {
	v := patch.View{
		Position: r3.Vec{X: 7000},
		Forward:  r3.Vec{X: -1},
		Up:       r3.Vec{Z: 1},
		FovY:     gomath.Pi / 2,
		Aspect:   2,
		Near:     1,
	}
	c := FrustumCorners(v, 100)

	// Near plane: x = 6999, half height 1, half width 2.
	for i := 0; i < 4; i++ {
		if gomath.Abs(c[i].X-6999) > 1e-9 {
			t.Errorf("near corner %d at x=%v", i, c[i].X)
		}
		if gomath.Abs(gomath.Abs(c[i].Z)-1) > 1e-9 || gomath.Abs(gomath.Abs(c[i].Y)-2) > 1e-9 {
			t.Errorf("near corner %d = %v", i, c[i])
		}
	}
	for i := 4; i < 8; i++ {
		if gomath.Abs(c[i].X-6900) > 1e-9 || gomath.Abs(gomath.Abs(c[i].Z)-100) > 1e-9 {
			t.Errorf("far corner %d = %v", i, c[i])
		}
	}
	if got := len(BoxEdges(c)); got != 24 {
		t.Errorf("BoxEdges returned %d endpoints, want 24", got)
	}
}

func TestFrustumLinesColour(t *testing.T) {
	v := patch.View{
		Position: r3.Vec{X: 7000},
		Forward:  r3.Vec{X: -1},
		Up:       r3.Vec{Z: 1},
		FovY:     1,
		Aspect:   1,
		Near:     0.5,
	}
	red := [4]float32{1, 0, 0, 1}
	lines := FrustumLines(v, red)
	if len(lines) != 24 {
		t.Fatalf("%d endpoints", len(lines))
	}
	for _, l := range lines {
		if l.Color != red || l.Position[3] != 1 {
			t.Fatalf("endpoint %+v", l)
		}
	}
}

func TestAppendFootprint(t *testing.T) {
	info := tile.NodeInfo{BaseLatAS: 3600, BaseLonAS: -7200, ExtentAS: 3600, Level: 3}
	out := AppendFootprint(nil, info)
	if len(out) != 4*footprintSegments*2 {
		t.Fatalf("%d endpoints", len(out))
	}
	for i, v := range out {
		p := r3.Vec{X: float64(v.Position[0]), Y: float64(v.Position[1]), Z: float64(v.Position[2])}
		if d := r3.Norm(p) - (geodesy.EarthRadiusKm + footprintLiftKm); gomath.Abs(d) > 1e-3 {
			t.Fatalf("endpoint %d off the sphere by %v km", i, d)
		}
	}
	first := geodesy.FromCartesian(r3.Vec{
		X: float64(out[0].Position[0]), Y: float64(out[0].Position[1]), Z: float64(out[0].Position[2]),
	})
	if gomath.Abs(geodesy.ArcSeconds(first.Lat)-3600) > 1 || gomath.Abs(geodesy.ArcSeconds(first.Lon)+7200) > 1 {
		t.Errorf("first endpoint at %v", first)
	}
	if out[0].Color != out[len(out)-1].Color {
		t.Error("colour varies within one tile")
	}
}
