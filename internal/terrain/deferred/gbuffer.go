// Package deferred is the CPU side of the deferred terrain pass: a G-buffer
// of per-pixel graticules rasterised once from the tessellated patches, and
// the screen-space kernels that fill the colour and normal accumulators from
// every tile set.
//
// The GL renderer runs the same steps as shaders; this package is what the
// tools and tests use to check them. Buffers follow GL conventions: row 0 is
// the bottom of the screen and depth is reverse-Z, cleared to 0 and tested
// with GREATER.
package deferred

import "fmt"

// Texel is one G-buffer sample. Lat and Lon are radians; Lon is as
// interpolated across the patch and may lie outside [-pi, pi].
type Texel struct {
	Lat    float32
	Lon    float32
	Weight float32
	Flags  float32
}

// ClearTexel is what uncovered pixels hold.
var ClearTexel = Texel{Lat: 1, Lon: 0, Weight: 0, Flags: 1}

// GBuffer holds the texel and depth targets.
type GBuffer struct {
	width  int
	height int
	texels []Texel
	depth  []float32
}

// NewGBuffer allocates a cleared buffer.
func NewGBuffer(width, height int) (*GBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gbuffer: invalid size %dx%d", width, height)
	}
	g := &GBuffer{
		width:  width,
		height: height,
		texels: make([]Texel, width*height),
		depth:  make([]float32, width*height),
	}
	g.Clear()
	return g, nil
}

// Size returns the buffer dimensions.
func (g *GBuffer) Size() (width, height int) { return g.width, g.height }

// Clear resets every texel and the depth target.
func (g *GBuffer) Clear() {
	for i := range g.texels {
		g.texels[i] = ClearTexel
		g.depth[i] = 0
	}
}

// At returns the texel at (x, y), y counted from the bottom row.
func (g *GBuffer) At(x, y int) Texel { return g.texels[y*g.width+x] }

// Depth returns the reverse-Z depth at (x, y); 0 means nothing was drawn.
func (g *GBuffer) Depth(x, y int) float32 { return g.depth[y*g.width+x] }

// Covered reports whether geometry was drawn at (x, y).
func (g *GBuffer) Covered(x, y int) bool { return g.depth[y*g.width+x] > 0 }

// Coverage counts covered pixels.
func (g *GBuffer) Coverage() int {
	n := 0
	for _, d := range g.depth {
		if d > 0 {
			n++
		}
	}
	return n
}
