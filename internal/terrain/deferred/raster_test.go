package deferred

import (
	gomath "math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/pkg/geodesy"
)

func surface(t *testing.T, latDeg, lonDeg, altKm float64) geodesy.Graticule {
	t.Helper()
	g, err := geodesy.Surface(latDeg, lonDeg, altKm)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// nadirCamera looks straight down from altKm above a point, north up.
func nadirCamera(t *testing.T, latDeg, lonDeg, altKm, fovDeg, aspect float64) Camera {
	t.Helper()
	g := surface(t, latDeg, lonDeg, altKm)
	cam, err := NewCamera(g.Cartesian(), r3.Scale(-1, g.Up()), g.North(), geodesy.Radians(fovDeg), aspect, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	return cam
}

func TestCentrePixelHoldsSubPoint(t *testing.T) {
	layout, err := patch.NewLayout(4)
	if err != nil {
		t.Fatal(err)
	}
	// South west, south east, north: counter-clockwise seen from above.
	seed := [3]r3.Vec{
		surface(t, 44.95, -0.05, 0).Cartesian(),
		surface(t, 44.95, 0.05, 0).Cartesian(),
		surface(t, 45.05, 0, 0).Cartesian(),
	}
	verts := layout.Tessellate(seed, nil)

	g, err := NewGBuffer(65, 65)
	if err != nil {
		t.Fatal(err)
	}
	cam := nadirCamera(t, 45, 0, 10, 90, 1)
	stats := g.DrawTriangles(cam, verts, layout.Triangles(patch.Full), 7)
	if stats.Triangles == 0 {
		t.Fatalf("nothing drawn: %+v", stats)
	}
	if stats.BackFacing != 0 || stats.Clipped != 0 {
		t.Errorf("stats = %+v, want every triangle drawn", stats)
	}

	if !g.Covered(32, 32) {
		t.Fatal("centre pixel not covered")
	}
	c := g.At(32, 32)
	if d := gomath.Abs(float64(c.Lat) - geodesy.Radians(45)); d > 1e-6 {
		t.Errorf("centre latitude off by %g rad", d)
	}
	if d := gomath.Abs(float64(c.Lon)); d > 1e-6 {
		t.Errorf("centre longitude off by %g rad", d)
	}
	if c.Weight != 1 || c.Flags != 7 {
		t.Errorf("centre texel = %+v", c)
	}

	// North is up the screen, east to the right.
	if g.Covered(32, 40) && g.At(32, 40).Lat <= c.Lat {
		t.Error("latitude does not grow up the screen")
	}
	if g.Covered(40, 32) && g.At(40, 32).Lon <= c.Lon {
		t.Error("longitude does not grow to the right")
	}
}

func TestBackFacingPatchIsCulled(t *testing.T) {
	layout, err := patch.NewLayout(2)
	if err != nil {
		t.Fatal(err)
	}
	// Clockwise from above.
	seed := [3]r3.Vec{
		surface(t, 44.95, 0.05, 0).Cartesian(),
		surface(t, 44.95, -0.05, 0).Cartesian(),
		surface(t, 45.05, 0, 0).Cartesian(),
	}
	verts := layout.Tessellate(seed, nil)
	g, err := NewGBuffer(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	stats := g.DrawTriangles(nadirCamera(t, 45, 0, 10, 90, 1), verts, layout.Triangles(patch.Full), 0)
	if stats.Triangles != 0 || g.Coverage() != 0 {
		t.Errorf("back facing patch drew %d triangles", stats.Triangles)
	}
}

func TestPatchBehindCameraIsClipped(t *testing.T) {
	layout, err := patch.NewLayout(1)
	if err != nil {
		t.Fatal(err)
	}
	seed := [3]r3.Vec{
		surface(t, 44.95, -0.05, 0).Cartesian(),
		surface(t, 44.95, 0.05, 0).Cartesian(),
		surface(t, 45.05, 0, 0).Cartesian(),
	}
	verts := layout.Tessellate(seed, nil)
	g, err := NewGBuffer(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	// Looking up, away from the ground.
	eye := surface(t, 45, 0, 10)
	cam, err := NewCamera(eye.Cartesian(), eye.Up(), eye.North(), geodesy.Radians(60), 1, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	stats := g.DrawTriangles(cam, verts, layout.Triangles(patch.Full), 0)
	if stats.Clipped != 4 || g.Coverage() != 0 {
		t.Errorf("stats = %+v, coverage %d", stats, g.Coverage())
	}
}

func TestDrawSelectionFromTree(t *testing.T) {
	tree, err := patch.NewTree(patch.Config{MaxLevel: 11, TargetRefinement: 150, Patches: 200})
	if err != nil {
		t.Fatal(err)
	}
	eye := surface(t, 45, 0, 400)
	view := patch.View{
		Position:       eye.Cartesian(),
		Forward:        r3.Scale(-1, eye.Up()),
		Up:             eye.North(),
		FovY:           geodesy.Radians(60),
		Aspect:         1,
		Near:           0.001,
		ViewportHeight: 64,
	}
	sel := tree.Update(view)

	layout, err := patch.NewLayout(3)
	if err != nil {
		t.Fatal(err)
	}
	cam, err := NewCamera(view.Position, view.Forward, view.Up, view.FovY, view.Aspect, view.Near)
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGBuffer(64, 64)
	if err != nil {
		t.Fatal(err)
	}
	stats := g.DrawSelection(cam, layout, sel, nil)
	if stats.Patches != len(sel.Leaves) {
		t.Errorf("drew %d patches, selection has %d", stats.Patches, len(sel.Leaves))
	}
	if cov := g.Coverage(); cov != 64*64 {
		t.Errorf("coverage = %d pixels, want the whole screen", cov)
	}

	levels := map[float32]bool{}
	for _, leaf := range sel.Leaves {
		levels[float32(leaf.Level)] = true
	}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if f := g.At(x, y).Flags; !levels[f] {
				t.Fatalf("pixel (%d, %d) has level %v, not in the selection", x, y, f)
			}
		}
	}

	c := g.At(32, 32)
	if d := gomath.Abs(float64(c.Lat) - geodesy.Radians(45)); d > 1e-3 {
		t.Errorf("centre latitude off by %g rad", d)
	}
}

func TestNewCameraRejects(t *testing.T) {
	tests := []struct {
		name              string
		fov, aspect, near float64
		up                r3.Vec
	}{
		{"zero fov", 0, 1, 1, r3.Vec{Y: 1}},
		{"negative aspect", 1, -1, 1, r3.Vec{Y: 1}},
		{"zero near", 1, 1, 0, r3.Vec{Y: 1}},
		{"up along forward", 1, 1, 1, r3.Vec{Z: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCamera(r3.Vec{}, r3.Vec{Z: -1}, tt.up, tt.fov, tt.aspect, tt.near); err == nil {
				t.Error("NewCamera succeeded")
			}
		})
	}
}
