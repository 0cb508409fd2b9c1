package deferred

import (
	"context"
	"fmt"
	"image"
	"image/color"
	gomath "math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

// WorkgroupSize is the edge of the square pixel block one kernel invocation
// group covers.
const WorkgroupSize = 8

// NormalScale maps unit tangent-frame components to the normal accumulator.
const NormalScale = 32767

// planetRadiusM is the radius used to turn angular sample spacing into metres.
const planetRadiusM = geodesy.EarthRadiusKm * 1000

// ColorSource is a colour tile set as the accumulate kernels see it.
type ColorSource interface {
	ColorAt(latAS, lonAS float64) ([4]uint8, bool)
}

// HeightSource is a height tile set: heights in metres and the sample
// spacing of the finest resident tile, both at a point in arcseconds.
type HeightSource interface {
	HeightAt(latAS, lonAS float64) (float64, bool)
	SpacingAt(latAS, lonAS float64) (float64, bool)
}

// Accumulators are the screen-sized colour (RGBA8) and normal (RG16 signed)
// targets, stored bottom row first like the G-buffer.
type Accumulators struct {
	width  int
	height int
	color  [][4]uint8
	normal [][2]int16
}

// NewAccumulators allocates accumulators matching a G-buffer size.
func NewAccumulators(width, height int) (*Accumulators, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("accumulators: invalid size %dx%d", width, height)
	}
	return &Accumulators{
		width:  width,
		height: height,
		color:  make([][4]uint8, width*height),
		normal: make([][2]int16, width*height),
	}, nil
}

// Size returns the target dimensions.
func (a *Accumulators) Size() (width, height int) { return a.width, a.height }

// Color returns the colour at (x, y).
func (a *Accumulators) Color(x, y int) [4]uint8 { return a.color[y*a.width+x] }

// Normal returns the encoded normal at (x, y).
func (a *Accumulators) Normal(x, y int) [2]int16 { return a.normal[y*a.width+x] }

// Groups returns the dispatch size for the accumulators.
func (a *Accumulators) Groups() (x, y int) {
	return (a.width + WorkgroupSize - 1) / WorkgroupSize, (a.height + WorkgroupSize - 1) / WorkgroupSize
}

// Clear writes transparent black and a zero normal everywhere.
func (a *Accumulators) Clear(ctx context.Context) error {
	return a.dispatch(ctx, func(i int) {
		a.color[i] = [4]uint8{}
		a.normal[i] = [2]int16{}
	})
}

// AccumulateColors blends src over the colour accumulator at every covered
// pixel it has data for.
func (a *Accumulators) AccumulateColors(ctx context.Context, g *GBuffer, src ColorSource) error {
	if err := a.checkSize(g); err != nil {
		return err
	}
	return a.dispatch(ctx, func(i int) {
		if g.depth[i] <= 0 {
			return
		}
		lat, lon := texelArcSeconds(g.texels[i])
		c, ok := src.ColorAt(lat, lon)
		if !ok {
			return
		}
		a.color[i] = over(a.color[i], c)
	})
}

// AccumulateNormals derives a tangent-frame normal from four height taps one
// sample spacing around every covered pixel and stores its east and north
// components.
func (a *Accumulators) AccumulateNormals(ctx context.Context, g *GBuffer, src HeightSource) error {
	if err := a.checkSize(g); err != nil {
		return err
	}
	return a.dispatch(ctx, func(i int) {
		if g.depth[i] <= 0 {
			return
		}
		t := g.texels[i]
		if n, ok := surfaceNormal(src, float64(t.Lat), float64(t.Lon)); ok {
			a.normal[i] = EncodeNormal(n)
		}
	})
}

// AccumulateLevels paints every covered pixel with the debug colour of the
// patch level it was drawn from.
func (a *Accumulators) AccumulateLevels(ctx context.Context, g *GBuffer) error {
	if err := a.checkSize(g); err != nil {
		return err
	}
	return a.dispatch(ctx, func(i int) {
		if g.depth[i] <= 0 {
			return
		}
		c := LevelColor(int(g.texels[i].Flags))
		a.color[i] = [4]uint8{c.R, c.G, c.B, c.A}
	})
}

// ColorImage returns the colour accumulator as an image, top row first.
func (a *Accumulators) ColorImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, a.width, a.height))
	for y := 0; y < a.height; y++ {
		row := a.height - 1 - y
		for x := 0; x < a.width; x++ {
			c := a.color[row*a.width+x]
			img.SetNRGBA(x, y, color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]})
		}
	}
	return img
}

func (a *Accumulators) checkSize(g *GBuffer) error {
	if g.width != a.width || g.height != a.height {
		return fmt.Errorf("accumulators are %dx%d, gbuffer is %dx%d", a.width, a.height, g.width, g.height)
	}
	return nil
}

// dispatch runs kernel on every pixel index, one row of workgroups per task.
func (a *Accumulators) dispatch(ctx context.Context, kernel func(i int)) error {
	groupsX, groupsY := a.Groups()
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for gy := 0; gy < groupsY; gy++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for gx := 0; gx < groupsX; gx++ {
				for ly := 0; ly < WorkgroupSize; ly++ {
					y := gy*WorkgroupSize + ly
					if y >= a.height {
						break
					}
					for lx := 0; lx < WorkgroupSize; lx++ {
						x := gx*WorkgroupSize + lx
						if x >= a.width {
							break
						}
						kernel(y*a.width + x)
					}
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

func texelArcSeconds(t Texel) (latAS, lonAS float64) {
	return geodesy.ArcSeconds(float64(t.Lat)), geodesy.ArcSeconds(geodesy.WrapLongitude(float64(t.Lon)))
}

// over composites src onto dst with straight alpha.
func over(dst, src [4]uint8) [4]uint8 {
	sa := uint32(src[3])
	var out [4]uint8
	for c := 0; c < 3; c++ {
		out[c] = uint8((uint32(src[c])*sa + uint32(dst[c])*(255-sa) + 127) / 255)
	}
	out[3] = uint8(sa + (uint32(dst[3])*(255-sa)+127)/255)
	return out
}

// surfaceNormal returns the unit normal (east, north, up) of the height
// field at a point given in radians.
func surfaceNormal(src HeightSource, lat, lon float64) ([3]float64, bool) {
	latAS := geodesy.ArcSeconds(lat)
	lonAS := geodesy.ArcSeconds(geodesy.WrapLongitude(lon))
	d, ok := src.SpacingAt(latAS, lonAS)
	if !ok {
		return [3]float64{}, false
	}
	cosLat := gomath.Cos(lat)
	if cosLat < 1e-9 {
		return [3]float64{}, false
	}

	hN, okN := src.HeightAt(latAS+d, lonAS)
	hS, okS := src.HeightAt(latAS-d, lonAS)
	hE, okE := src.HeightAt(latAS, lonAS+d)
	hW, okW := src.HeightAt(latAS, lonAS-d)
	if !okN || !okS || !okE || !okW {
		return [3]float64{}, false
	}

	metres := 2 * d * planetRadiusM / geodesy.ArcSecondsPerRadian
	n := [3]float64{
		-(hE - hW) / (metres * cosLat),
		-(hN - hS) / metres,
		1,
	}
	l := gomath.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	return [3]float64{n[0] / l, n[1] / l, n[2] / l}, true
}

// EncodeNormal packs the east and north components of a unit normal.
func EncodeNormal(n [3]float64) [2]int16 {
	enc := func(v float64) int16 {
		return int16(gomath.Round(gomath.Max(-1, gomath.Min(1, v)) * NormalScale))
	}
	return [2]int16{enc(n[0]), enc(n[1])}
}

// DecodeNormal unpacks a normal stored by EncodeNormal. Up is always
// non-negative.
func DecodeNormal(e [2]int16) [3]float64 {
	x := float64(e[0]) / NormalScale
	y := float64(e[1]) / NormalScale
	z := gomath.Sqrt(gomath.Max(0, 1-x*x-y*y))
	return [3]float64{x, y, z}
}
