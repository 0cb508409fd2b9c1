package deferred

import (
	"fmt"
	gomath "math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/pkg/math"
)

// Camera projects planet-space kilometres to the screen with an infinite
// reverse-Z perspective. Points are made eye-relative before rotation so
// the projection keeps full precision at planetary distances.
type Camera struct {
	eye      r3.Vec
	rotation math.DMat4
	tanHalf  float64
	aspect   float64
	near     float64
}

// NewCamera returns a camera at eye looking along forward.
func NewCamera(eye, forward, up r3.Vec, fovY, aspect, near float64) (Camera, error) {
	switch {
	case fovY <= 0 || fovY >= gomath.Pi:
		return Camera{}, fmt.Errorf("camera: field of view %v out of range", fovY)
	case aspect <= 0:
		return Camera{}, fmt.Errorf("camera: aspect %v", aspect)
	case near <= 0:
		return Camera{}, fmt.Errorf("camera: near plane %v", near)
	case r3.Norm(r3.Cross(forward, up)) == 0:
		return Camera{}, fmt.Errorf("camera: up is parallel to forward")
	}
	return Camera{
		eye:      eye,
		rotation: math.LookAtD(r3.Vec{}, forward, up),
		tanHalf:  gomath.Tan(fovY / 2),
		aspect:   aspect,
		near:     near,
	}, nil
}

// Eye returns the camera position.
func (c Camera) Eye() r3.Vec { return c.eye }

// clipPoint is a projected vertex: normalised device x and y, reverse-Z
// depth and the view distance w used for perspective correction.
type clipPoint struct {
	x, y  float64
	depth float64
	w     float64
}

// project maps p to normalised device coordinates. ok is false for points
// closer than the near plane.
func (c Camera) project(p r3.Vec) (clipPoint, bool) {
	v := c.rotation.TransformPoint(r3.Sub(p, c.eye))
	w := -v.Z
	if w < c.near {
		return clipPoint{}, false
	}
	return clipPoint{
		x:     v.X / (w * c.tanHalf * c.aspect),
		y:     v.Y / (w * c.tanHalf),
		depth: c.near / w,
		w:     w,
	}, true
}
