package app

import (
	"fmt"
	"strings"

	"github.com/Faultbox/orbis/internal/atmosphere"
	"github.com/Faultbox/orbis/internal/engine/camera"
	"github.com/Faultbox/orbis/internal/script"
	"github.com/Faultbox/orbis/internal/terrain"
)

// SceneControls is the part of the GPU scene scripts can drive.
type SceneControls interface {
	SetModeName(name string) error
	SetExposure(e float64)
	ToggleFootprints(pressed bool)
}

// Targets are the objects the script methods act on. A nil target leaves
// its methods unregistered.
type Targets struct {
	Terrain *terrain.Terrain
	Camera  *camera.PlanetCamera
	Clock   *atmosphere.Clock
	Scene   SceneControls
	// Viewport reports the drawable size camera.pick maps pixels against.
	Viewport func() (width, height int)
}

func floats(args []script.Value) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := a.AsFloat()
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

func ints(args []script.Value) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := a.AsInt()
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = int(n)
	}
	return out, nil
}

// pressedArg returns the optional pressed flag at i, true when absent.
func pressedArg(args []script.Value, i int) (bool, error) {
	if len(args) <= i {
		return true, nil
	}
	return args[i].AsBool()
}

// Register adds the terrain, camera, atmosphere and scene methods for the
// non-nil targets.
func Register(reg *script.Registry, t Targets) {
	if t.Terrain != nil {
		registerTerrain(reg, t.Terrain)
	}
	if t.Camera != nil {
		registerCamera(reg, t.Camera)
		if t.Viewport != nil {
			registerPick(reg, t.Camera, t.Viewport)
		}
	}
	if t.Clock != nil {
		registerClock(reg, t.Clock)
	}
	if t.Scene != nil {
		registerScene(reg, t.Scene)
	}
}

func registerTerrain(reg *script.Registry, tr *terrain.Terrain) {
	reg.MustRegister("terrain", "toggle_pin_camera", 1, "freeze the camera the patch tree refines for",
		func(args []script.Value) (script.Value, error) {
			pressed, err := args[0].AsBool()
			if err != nil {
				return script.Nil, err
			}
			tr.TogglePinCamera(pressed)
			return script.Bool(tr.Pinned()), nil
		})
	reg.MustRegister("terrain", "toggle_wireframe", 1, "draw patch wireframes coloured by level",
		func(args []script.Value) (script.Value, error) {
			pressed, err := args[0].AsBool()
			if err != nil {
				return script.Nil, err
			}
			tr.ToggleWireframe(pressed)
			return script.Bool(tr.Wireframe()), nil
		})
	reg.MustRegister("terrain", "capture_index_snapshot", 0, "write every tile set index as a PNG",
		func([]script.Value) (script.Value, error) {
			paths, err := tr.CaptureIndexSnapshot()
			if err != nil {
				return script.Nil, err
			}
			return script.String(strings.Join(paths, "\n")), nil
		})
	reg.MustRegister("terrain", "set_detail", 1, "set the CPU detail: low, medium, high or ultra",
		func(args []script.Value) (script.Value, error) {
			name, err := args[0].AsString()
			if err != nil {
				return script.Nil, err
			}
			return script.Nil, tr.SetDetail(name)
		})
}

func registerCamera(reg *script.Registry, c *camera.PlanetCamera) {
	reg.MustRegister("camera", "pan_view", 2, "turn by (dheading, dpitch) radians",
		func(args []script.Value) (script.Value, error) {
			v, err := floats(args)
			if err != nil {
				return script.Nil, err
			}
			c.PanView(v[0], v[1])
			return script.Nil, nil
		})
	reg.MustRegister("camera", "move_view", script.Variadic, "move_view(forward, right[, pressed]) steps over the ground",
		func(args []script.Value) (script.Value, error) {
			if len(args) < 2 || len(args) > 3 {
				return script.Nil, fmt.Errorf("%w: want 2 or 3 arguments, got %d", script.ErrBadArguments, len(args))
			}
			pressed, err := pressedArg(args, 2)
			if err != nil {
				return script.Nil, err
			}
			if !pressed {
				return script.Nil, nil
			}
			v, err := floats(args[:2])
			if err != nil {
				return script.Nil, err
			}
			c.MoveView(v[0], v[1])
			return script.Nil, nil
		})
	reg.MustRegister("camera", "handle_mousemotion", 2, "pan by a mouse delta in pixels",
		func(args []script.Value) (script.Value, error) {
			v, err := floats(args)
			if err != nil {
				return script.Nil, err
			}
			c.HandleMouseMotion(v[0], v[1])
			return script.Nil, nil
		})
	reg.MustRegister("camera", "handle_mousewheel", 1, "zoom towards the ground",
		func(args []script.Value) (script.Value, error) {
			v, err := floats(args)
			if err != nil {
				return script.Nil, err
			}
			c.HandleMouseWheel(v[0])
			return script.Nil, nil
		})
	reg.MustRegister("camera", "position", 0, "lat, lon in degrees and altitude in km",
		func([]script.Value) (script.Value, error) {
			g := c.Graticule()
			return script.String(fmt.Sprintf("%.6f, %.6f, %.3f km", g.LatDeg(), g.LonDeg(), c.AltitudeKm)), nil
		})
}

func registerPick(reg *script.Registry, c *camera.PlanetCamera, viewport func() (int, int)) {
	reg.MustRegister("camera", "pick", 2, "lat, lon in degrees under pixel (x, y), nil off the planet",
		func(args []script.Value) (script.Value, error) {
			v, err := floats(args)
			if err != nil {
				return script.Nil, err
			}
			w, h := viewport()
			g, ok := c.Pick(v[0], v[1], w, h)
			if !ok {
				return script.Nil, nil
			}
			return script.String(fmt.Sprintf("%.6f, %.6f", g.LatDeg(), g.LonDeg())), nil
		})
}

func registerClock(reg *script.Registry, clock *atmosphere.Clock) {
	reg.MustRegister("atmosphere", "set_date_time", 6, "set the UTC instant (y, m, d, h, min, s) the sun is placed for",
		func(args []script.Value) (script.Value, error) {
			v, err := ints(args)
			if err != nil {
				return script.Nil, err
			}
			if err := clock.SetDateTime(v[0], v[1], v[2], v[3], v[4], v[5]); err != nil {
				return script.Nil, err
			}
			return script.Int(clock.UnixMs()), nil
		})
	reg.MustRegister("atmosphere", "get_unix_ms", 0, "the current instant in Unix milliseconds",
		func([]script.Value) (script.Value, error) {
			return script.Int(clock.UnixMs()), nil
		})
}

func registerScene(reg *script.Registry, s SceneControls) {
	reg.MustRegister("scene", "set_mode", 1, "shaded, graticule, color or normal",
		func(args []script.Value) (script.Value, error) {
			name, err := args[0].AsString()
			if err != nil {
				return script.Nil, err
			}
			return script.Nil, s.SetModeName(name)
		})
	reg.MustRegister("scene", "set_exposure", 1, "tone mapping exposure",
		func(args []script.Value) (script.Value, error) {
			e, err := args[0].AsFloat()
			if err != nil {
				return script.Nil, err
			}
			if e <= 0 {
				return script.Nil, fmt.Errorf("%w: exposure %g", script.ErrBadArguments, e)
			}
			s.SetExposure(e)
			return script.Nil, nil
		})
	reg.MustRegister("scene", "toggle_footprints", 1, "outline every resident tile",
		func(args []script.Value) (script.Value, error) {
			pressed, err := args[0].AsBool()
			if err != nil {
				return script.Nil, err
			}
			s.ToggleFootprints(pressed)
			return script.Nil, nil
		})
}
