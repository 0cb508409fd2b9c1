package atmosphere

import (
	"errors"
	"fmt"
	"math"
)

// Dimensions sets the resolution of every table.
type Dimensions struct {
	TransmittanceWidth  int // μ
	TransmittanceHeight int // r
	IrradianceWidth     int // μ_s
	IrradianceHeight    int // r
	ScatteringR         int
	ScatteringMu        int
	ScatteringMuS       int
	ScatteringNu        int
}

// DefaultDimensions returns the resolution used at runtime.
func DefaultDimensions() Dimensions {
	return Dimensions{
		TransmittanceWidth:  256,
		TransmittanceHeight: 64,
		IrradianceWidth:     64,
		IrradianceHeight:    16,
		ScatteringR:         32,
		ScatteringMu:        128,
		ScatteringMuS:       32,
		ScatteringNu:        8,
	}
}

// ErrBadDimensions is returned for table sizes the layout cannot use.
var ErrBadDimensions = errors.New("atmosphere: bad table dimensions")

// Validate checks that every axis is usable.
func (d Dimensions) Validate() error {
	for _, n := range []int{
		d.TransmittanceWidth, d.TransmittanceHeight,
		d.IrradianceWidth, d.IrradianceHeight,
		d.ScatteringR, d.ScatteringMu, d.ScatteringMuS,
	} {
		if n < 2 {
			return fmt.Errorf("%w: axis of size %d", ErrBadDimensions, n)
		}
	}
	if d.ScatteringMu%2 != 0 {
		return fmt.Errorf("%w: μ size %d is odd", ErrBadDimensions, d.ScatteringMu)
	}
	if d.ScatteringNu < 2 {
		return fmt.Errorf("%w: ν size %d", ErrBadDimensions, d.ScatteringNu)
	}
	return nil
}

// ScatteringSize returns the 3D layout of the scattering tables: ν and μ_s
// share the x axis.
func (d Dimensions) ScatteringSize() (width, height, depth int) {
	return d.ScatteringNu * d.ScatteringMuS, d.ScatteringMu, d.ScatteringR
}

// texture is a float64 RGBA grid sampled with clamped linear filtering,
// mirroring how the tables are read on the GPU.
type texture struct {
	width, height, depth int
	data                 []Spectrum
}

func newTexture(w, h, d int) *texture {
	return &texture{width: w, height: h, depth: d, data: make([]Spectrum, w*h*d)}
}

func (t *texture) index(x, y, z int) int { return (z*t.height+y)*t.width + x }

func (t *texture) at(x, y, z int) Spectrum { return t.data[t.index(x, y, z)] }

func (t *texture) clear() {
	clear(t.data)
}

// axis returns the two texels and blend weight for normalised coordinate u.
func axis(u float64, n int) (int, int, float64) {
	x := u*float64(n) - 0.5
	x0 := math.Floor(x)
	f := x - x0
	i0 := int(x0)
	i1 := i0 + 1
	if i0 < 0 {
		i0 = 0
	}
	if i0 > n-1 {
		i0 = n - 1
	}
	if i1 < 0 {
		i1 = 0
	}
	if i1 > n-1 {
		i1 = n - 1
	}
	return i0, i1, f
}

func (t *texture) sample2D(u, v float64) Spectrum {
	x0, x1, fx := axis(u, t.width)
	y0, y1, fy := axis(v, t.height)
	a := t.at(x0, y0, 0).Lerp(t.at(x1, y0, 0), fx)
	b := t.at(x0, y1, 0).Lerp(t.at(x1, y1, 0), fx)
	return a.Lerp(b, fy)
}

func (t *texture) sample3D(u, v, w float64) Spectrum {
	x0, x1, fx := axis(u, t.width)
	y0, y1, fy := axis(v, t.height)
	z0, z1, fz := axis(w, t.depth)
	plane := func(z int) Spectrum {
		a := t.at(x0, y0, z).Lerp(t.at(x1, y0, z), fx)
		b := t.at(x0, y1, z).Lerp(t.at(x1, y1, z), fx)
		return a.Lerp(b, fy)
	}
	return plane(z0).Lerp(plane(z1), fz)
}

// rgba32f narrows a texture to interleaved float32 RGBA.
func (t *texture) rgba32f() []float32 {
	out := make([]float32, 0, len(t.data)*4)
	for _, s := range t.data {
		out = append(out, float32(s[0]), float32(s[1]), float32(s[2]), float32(s[3]))
	}
	return out
}

// textureFrom widens interleaved float32 RGBA.
func textureFrom(data []float32, w, h, d int) *texture {
	t := newTexture(w, h, d)
	for i := range t.data {
		for c := 0; c < 4; c++ {
			t.data[i][c] = float64(data[i*4+c])
		}
	}
	return t
}

func textureCoordFromUnitRange(x float64, size int) float64 {
	return 0.5/float64(size) + x*(1-1/float64(size))
}

func unitRangeFromTextureCoord(u float64, size int) float64 {
	return (u - 0.5/float64(size)) / (1 - 1/float64(size))
}
