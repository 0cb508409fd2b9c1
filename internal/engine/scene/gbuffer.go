package scene

import (
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/orbis/internal/engine/framebuffer"
	"github.com/Faultbox/orbis/internal/engine/scene/shaders"
	"github.com/Faultbox/orbis/internal/engine/shader"
	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/pkg/math"
)

// wireframeDepthBias pulls wireframe lines towards the eye so they win the
// depth test against the surface they outline.
const wireframeDepthBias = 1e-4

// View is the per-frame camera state shared by the geometry passes.
type View struct {
	ViewRotation math.Mat4
	Projection   math.Mat4
	EyeHigh      math.Vec3
	EyeLow       math.Vec3
}

func (v *View) apply(p *shader.Program) {
	p.SetMat4("uViewRotation", (*[16]float32)(&v.ViewRotation))
	p.SetMat4("uProjection", (*[16]float32)(&v.Projection))
	p.SetVec3("uEyeHigh", v.EyeHigh.Array())
	p.SetVec3("uEyeLow", v.EyeLow.Array())
}

type indexBuffer struct {
	ebo   uint32
	count int32
}

func newIndexBuffer(indices []uint32) indexBuffer {
	b := indexBuffer{count: int32(len(indices))}
	gl.GenBuffers(1, &b.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
	return b
}

// GeometryPass rasterises the tessellated patches into the G-buffer: one
// RGBA32F texel of (lat, lon, weight, level) per pixel and a reverse-Z
// depth. Wireframes go to a separate overlay sharing the depth.
type GeometryPass struct {
	gbuffer *framebuffer.Framebuffer
	overlay *framebuffer.Framebuffer

	program   *shader.Program
	wireframe *shader.Program

	// The vertex shader pulls from the vertex buffer; the VAO only carries
	// the element buffer binding.
	vao    uint32
	strips [patch.NumWindings]indexBuffer
	lines  [patch.NumWindings]indexBuffer

	counts   []int32
	offsets  []unsafe.Pointer
	bases    []int32
	lastDraw int
}

// NewGeometryPass builds the targets at width×height and the per-winding
// index buffers of layout.
func NewGeometryPass(layout *patch.Layout, width, height int32) (*GeometryPass, error) {
	g := &GeometryPass{}
	var err error
	if g.program, err = shader.New("gbuffer", shaders.GBufferVertexShader, shaders.GBufferFragmentShader); err != nil {
		return nil, err
	}
	vs, err := shaders.Compose(shaders.GBufferVertexShader, map[string]any{"DEPTH_BIAS": wireframeDepthBias})
	if err != nil {
		g.Destroy()
		return nil, err
	}
	fs, err := shaders.Compose(shaders.WireframeFragmentShader, defines())
	if err != nil {
		g.Destroy()
		return nil, err
	}
	if g.wireframe, err = shader.New("wireframe", vs, fs); err != nil {
		g.Destroy()
		return nil, err
	}

	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)
	for w := patch.Full; w < patch.NumWindings; w++ {
		g.strips[w] = newIndexBuffer(layout.Strips(w))
		g.lines[w] = newIndexBuffer(layout.Lines(w))
	}
	gl.BindVertexArray(0)

	if err := g.createTargets(width, height); err != nil {
		g.Destroy()
		return nil, err
	}
	return g, nil
}

func (g *GeometryPass) createTargets(width, height int32) error {
	gbuffer, err := framebuffer.New(width, height, framebuffer.Config{
		Color: []framebuffer.Format{framebuffer.RGBA32F},
		Depth: true,
	})
	if err != nil {
		return err
	}
	overlay, err := framebuffer.New(width, height, framebuffer.Config{
		Color:       []framebuffer.Format{framebuffer.RGBA8},
		SharedDepth: gbuffer.DepthTexture(),
	})
	if err != nil {
		gbuffer.Destroy()
		return err
	}
	g.gbuffer, g.overlay = gbuffer, overlay
	return nil
}

// Resize recreates the targets.
func (g *GeometryPass) Resize(width, height int32) error {
	if w, h := g.gbuffer.Size(); w == width && h == height {
		return nil
	}
	g.overlay.Destroy()
	g.gbuffer.Destroy()
	return g.createTargets(width, height)
}

// Size returns the target size.
func (g *GeometryPass) Size() (int32, int32) { return g.gbuffer.Size() }

// Texels returns the G-buffer colour texture.
func (g *GeometryPass) Texels() uint32 { return g.gbuffer.ColorTexture(0) }

// Overlay returns the overlay colour texture.
func (g *GeometryPass) Overlay() uint32 { return g.overlay.ColorTexture(0) }

// OverlayTarget returns the overlay framebuffer, for passes that draw
// debug geometry over the terrain.
func (g *GeometryPass) OverlayTarget() *framebuffer.Framebuffer { return g.overlay }

// Draw clears the G-buffer and draws every patch slot of draws from the
// vertex buffer.
func (g *GeometryPass) Draw(view *View, vertices uint32, draws *[patch.NumWindings][]int32) {
	restore := g.gbuffer.BindWithViewport()
	defer restore()

	c := deferred.ClearTexel
	g.gbuffer.ClearColor(0, [4]float32{c.Lat, c.Lon, c.Weight, c.Flags})
	g.gbuffer.ClearDepth(0)

	gl.DepthMask(true)
	g.program.Use()
	view.apply(g.program)
	g.drawPatches(vertices, gl.TRIANGLE_STRIP, &g.strips, draws)
}

// DrawWireframe clears the overlay and draws the patch edges coloured by
// level, depth tested against the G-buffer.
func (g *GeometryPass) DrawWireframe(view *View, vertices uint32, draws *[patch.NumWindings][]int32) {
	restore := g.overlay.BindWithViewport()
	defer restore()

	gl.DepthMask(false)
	defer gl.DepthMask(true)
	g.wireframe.Use()
	view.apply(g.wireframe)
	g.wireframe.SetVec3Array("uPalette", palette())
	g.drawPatches(vertices, gl.LINES, &g.lines, draws)
}

// ClearOverlay makes the overlay transparent.
func (g *GeometryPass) ClearOverlay() {
	restore := g.overlay.BindWithViewport()
	g.overlay.ClearColor(0, [4]float32{})
	restore()
}

func (g *GeometryPass) drawPatches(vertices uint32, mode uint32, buffers *[patch.NumWindings]indexBuffer, draws *[patch.NumWindings][]int32) {
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, verticesBinding, vertices)
	gl.BindVertexArray(g.vao)
	defer gl.BindVertexArray(0)

	g.lastDraw = 0
	for w := patch.Full; w < patch.NumWindings; w++ {
		bases := draws[w]
		if len(bases) == 0 {
			continue
		}
		b := buffers[w]
		g.counts = g.counts[:0]
		g.offsets = g.offsets[:0]
		for range bases {
			g.counts = append(g.counts, b.count)
			g.offsets = append(g.offsets, nil)
		}
		g.bases = append(g.bases[:0], bases...)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
		gl.MultiDrawElementsBaseVertex(mode, &g.counts[0], gl.UNSIGNED_INT, &g.offsets[0], int32(len(bases)), &g.bases[0])
		g.lastDraw += len(bases)
	}
}

// Patches returns the number of patch slots drawn by the last call.
func (g *GeometryPass) Patches() int { return g.lastDraw }

// ReadTexels reads the G-buffer back into a CPU buffer, for tools comparing
// the GPU against the CPU reference.
func (g *GeometryPass) ReadTexels() ([]deferred.Texel, error) {
	w, h := g.gbuffer.Size()
	out := make([]deferred.Texel, int(w)*int(h))
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(out)*int(unsafe.Sizeof(deferred.Texel{})))
	if err := g.gbuffer.ReadColor(0, raw); err != nil {
		return nil, err
	}
	return out, nil
}

// Destroy releases every resource.
func (g *GeometryPass) Destroy() {
	if g.program != nil {
		g.program.Delete()
	}
	if g.wireframe != nil {
		g.wireframe.Delete()
	}
	for w := range g.strips {
		for _, b := range []*indexBuffer{&g.strips[w], &g.lines[w]} {
			if b.ebo != 0 {
				gl.DeleteBuffers(1, &b.ebo)
				b.ebo = 0
			}
		}
	}
	if g.vao != 0 {
		gl.DeleteVertexArrays(1, &g.vao)
		g.vao = 0
	}
	if g.overlay != nil {
		g.overlay.Destroy()
	}
	if g.gbuffer != nil {
		g.gbuffer.Destroy()
	}
}
