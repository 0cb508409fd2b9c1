package app

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/orbis/internal/atmosphere"
	"github.com/Faultbox/orbis/internal/config"
	"github.com/Faultbox/orbis/internal/engine/camera"
	"github.com/Faultbox/orbis/internal/script"
	"github.com/Faultbox/orbis/internal/terrain"
	"github.com/Faultbox/orbis/internal/terrain/tile/tiletest"
	"github.com/Faultbox/orbis/pkg/formats"
	"github.com/Faultbox/orbis/pkg/geodesy"
)

type fakeScene struct {
	mode       string
	exposure   float64
	footprints bool
}

func (f *fakeScene) SetModeName(name string) error {
	if name != "shaded" && name != "normal" {
		return errors.New("unknown mode")
	}
	f.mode = name
	return nil
}

func (f *fakeScene) SetExposure(e float64) { f.exposure = e }

func (f *fakeScene) ToggleFootprints(pressed bool) {
	if pressed {
		f.footprints = !f.footprints
	}
}

type fixture struct {
	reg     *script.Registry
	terrain *terrain.Terrain
	camera  *camera.PlanetCamera
	clock   *atmosphere.Clock
	scene   *fakeScene
	dumpDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	tiletest.WriteTileSet(t, dir, formats.TileSetIndex{Prefix: "color", Kind: formats.KindColor}, 1, nil)
	cat := tiletest.OpenCatalog(t, dir)

	f := &fixture{
		reg:     script.NewRegistry(zaptest.NewLogger(t)),
		clock:   atmosphere.NewClock(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)),
		scene:   &fakeScene{},
		dumpDir: t.TempDir(),
	}
	var err error
	f.terrain, err = terrain.New(zaptest.NewLogger(t), cat, terrain.Options{
		TileCacheOverride: 8,
		DumpDir:           f.dumpDir,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.terrain.Shutdown)
	if f.camera, err = camera.NewPlanetCamera(10, 20, 100, 0, 60); err != nil {
		t.Fatal(err)
	}
	Register(f.reg, Targets{
		Terrain:  f.terrain,
		Camera:   f.camera,
		Clock:    f.clock,
		Scene:    f.scene,
		Viewport: func() (int, int) { return 1281, 721 },
	})
	return f
}

func (f *fixture) eval(t *testing.T, line string, env script.Env) script.Value {
	t.Helper()
	v, err := f.reg.Eval(line, env)
	if err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	return v
}

func TestMoveViewIgnoresRelease(t *testing.T) {
	f := newFixture(t)
	lat := f.camera.Lat

	f.eval(t, "camera.move_view(1, 0, pressed)", script.Env{"pressed": script.Bool(false)})
	if f.camera.Lat != lat {
		t.Fatalf("release moved the camera to %v", f.camera.Lat)
	}
	f.eval(t, "camera.move_view(1, 0, pressed)", script.Env{"pressed": script.Bool(true)})
	if f.camera.Lat <= lat {
		t.Fatalf("press did not move north: %v", f.camera.Lat)
	}
	lat = f.camera.Lat
	f.eval(t, "camera.move_view(-1, 0)", nil)
	if f.camera.Lat >= lat {
		t.Fatalf("two-argument call did not move: %v", f.camera.Lat)
	}

	if _, err := f.reg.Eval("camera.move_view(1)", nil); !errors.Is(err, script.ErrBadArguments) {
		t.Errorf("one argument: err = %v", err)
	}
	if _, err := f.reg.Eval(`camera.move_view("north", 0)`, nil); !errors.Is(err, script.ErrBadArguments) {
		t.Errorf("string argument: err = %v", err)
	}
}

func TestCameraPanAndZoom(t *testing.T) {
	f := newFixture(t)
	alt := f.camera.AltitudeKm
	f.eval(t, "camera.handle_mousewheel(1)", nil)
	if f.camera.AltitudeKm >= alt {
		t.Errorf("wheel up did not descend: %v", f.camera.AltitudeKm)
	}
	heading := f.camera.Heading
	f.eval(t, "camera.pan_view(0.5, 0)", nil)
	if f.camera.Heading == heading {
		t.Error("pan_view did not turn")
	}
	f.eval(t, "camera.handle_mousemotion(10, 0)", nil)
	pos, err := f.eval(t, "camera.position()", nil).AsString()
	if err != nil || !strings.HasSuffix(pos, " km") {
		t.Errorf("position = %q, %v", pos, err)
	}
}

func TestPick(t *testing.T) {
	f := newFixture(t)
	pos, err := f.eval(t, "camera.pick(640, 360)", nil).AsString()
	if err != nil || !strings.Contains(pos, ", ") {
		t.Errorf("pick = %q, %v", pos, err)
	}
	f.camera.Pitch = -0.5
	if v := f.eval(t, "camera.pick(640, 0)", nil); !v.IsNil() {
		t.Errorf("sky pick = %v", v)
	}
}

func TestDateTime(t *testing.T) {
	f := newFixture(t)
	v := f.eval(t, "atmosphere.set_date_time(2024, 3, 20, 12, 0, 0)", nil)
	const want = 1710936000000
	if ms, _ := v.AsInt(); ms != want {
		t.Errorf("set_date_time returned %v, want %d", v, want)
	}
	if ms, _ := f.eval(t, "atmosphere.get_unix_ms()", nil).AsInt(); ms != want {
		t.Errorf("get_unix_ms = %d", ms)
	}
	if _, err := f.reg.Eval("atmosphere.set_date_time(2023, 2, 29, 0, 0, 0)", nil); !errors.Is(err, geodesy.ErrOutOfRange) {
		t.Errorf("29 February 2023: err = %v", err)
	}
	if ms, _ := f.eval(t, "atmosphere.get_unix_ms()", nil).AsInt(); ms != want {
		t.Error("a rejected date moved the clock")
	}
}

func TestTerrainToggles(t *testing.T) {
	f := newFixture(t)
	if v := f.eval(t, "terrain.toggle_wireframe(pressed)", script.Env{"pressed": script.Bool(true)}); v != script.Bool(true) {
		t.Errorf("wireframe = %v after press", v)
	}
	if v := f.eval(t, "terrain.toggle_wireframe(pressed)", script.Env{"pressed": script.Bool(false)}); v != script.Bool(true) {
		t.Errorf("release toggled wireframe: %v", v)
	}
	if v := f.eval(t, "terrain.toggle_pin_camera(true)", nil); v != script.Bool(true) {
		t.Errorf("pinned = %v", v)
	}

	f.eval(t, `terrain.set_detail("low")`, nil)
	if got := f.terrain.CPUDetail(); got != terrain.DetailLow.CPU() {
		t.Errorf("cpu detail %+v", got)
	}
	if _, err := f.reg.Eval(`terrain.set_detail("extreme")`, nil); err == nil {
		t.Error("unknown detail accepted")
	}
}

func TestCaptureIndexSnapshot(t *testing.T) {
	f := newFixture(t)
	joined, err := f.eval(t, "terrain.capture_index_snapshot()", nil).AsString()
	if err != nil {
		t.Fatal(err)
	}
	paths := strings.Split(joined, "\n")
	if len(paths) != 1 {
		t.Fatalf("paths %q", joined)
	}
	if _, err := os.Stat(paths[0]); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}

func TestSceneMethods(t *testing.T) {
	f := newFixture(t)
	f.eval(t, `scene.set_mode("normal")`, nil)
	f.eval(t, "scene.set_exposure(0.5)", nil)
	f.eval(t, "scene.toggle_footprints(true)", nil)
	if f.scene.mode != "normal" || f.scene.exposure != 0.5 || !f.scene.footprints {
		t.Errorf("scene state %+v", f.scene)
	}
	if _, err := f.reg.Eval("scene.set_exposure(0)", nil); !errors.Is(err, script.ErrBadArguments) {
		t.Errorf("zero exposure: err = %v", err)
	}
	if _, err := f.reg.Eval(`scene.set_mode("sepia")`, nil); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestDefaultBindingsResolve(t *testing.T) {
	f := newFixture(t)
	registered := make(map[string]bool)
	for _, m := range f.reg.Methods() {
		registered[m.Name] = true
	}
	for event, line := range config.DefaultBindings() {
		c, err := script.Parse(line)
		if err != nil {
			t.Errorf("%s: %v", event, err)
			continue
		}
		if name := c.Object + "." + c.Method; !registered[name] {
			t.Errorf("%s is bound to unregistered %s", event, name)
		}
	}
}

func TestNilTargetsRegisterNothing(t *testing.T) {
	reg := script.NewRegistry(nil)
	Register(reg, Targets{})
	if n := len(reg.Methods()); n != 0 {
		t.Errorf("%d methods registered", n)
	}
}
