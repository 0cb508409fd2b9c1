// Package picking casts view rays at the reference sphere.
package picking

import (
	gomath "math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

// Ray is a half-line in geocentric kilometres.
type Ray struct {
	Origin    r3.Vec
	Direction r3.Vec // unit length
}

// Frame is the pinhole camera rays are cast from.
type Frame struct {
	Eye         r3.Vec
	Forward, Up r3.Vec
	Right       r3.Vec
	// FovY is the vertical field of view in radians.
	FovY float64
}

// ScreenToRay converts pixel coordinates, origin top-left, to a ray
// through the centre of that pixel.
func ScreenToRay(screenX, screenY float64, viewportW, viewportH int, f Frame) Ray {
	w, h := float64(max(1, viewportW)), float64(max(1, viewportH))
	ndcX := 2*(screenX+0.5)/w - 1
	ndcY := 1 - 2*(screenY+0.5)/h

	tanY := gomath.Tan(f.FovY / 2)
	tanX := tanY * w / h
	dir := r3.Add(f.Forward, r3.Add(r3.Scale(ndcX*tanX, f.Right), r3.Scale(ndcY*tanY, f.Up)))
	return Ray{Origin: f.Eye, Direction: r3.Unit(dir)}
}

// At returns the point t kilometres along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Direction))
}

// IntersectSphere returns the distance to the first crossing of a
// centred sphere in front of the origin.
func (r Ray) IntersectSphere(radius float64) (t float64, hit bool) {
	b := r3.Dot(r.Origin, r.Direction)
	c := r3.Dot(r.Origin, r.Origin) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := gomath.Sqrt(disc)
	t = -b - sq
	if t < 0 {
		// Inside the sphere the far root is the exit.
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Pick returns the graticule where the ray meets the reference sphere.
func Pick(r Ray) (geodesy.Graticule, bool) {
	t, ok := r.IntersectSphere(geodesy.EarthRadiusKm)
	if !ok {
		return geodesy.Graticule{}, false
	}
	return geodesy.FromCartesian(r.At(t)), true
}
