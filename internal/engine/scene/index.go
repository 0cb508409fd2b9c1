package scene

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/orbis/internal/engine/framebuffer"
	"github.com/Faultbox/orbis/internal/engine/scene/shaders"
	"github.com/Faultbox/orbis/internal/engine/shader"
	"github.com/Faultbox/orbis/internal/terrain/tile"
)

// IndexPainter rasterises index paint vertices into an atlas index. One
// painter serves every atlas.
type IndexPainter struct {
	program  *shader.Program
	vao      uint32
	vbo      uint32
	capacity int
}

// NewIndexPainter compiles the paint program.
func NewIndexPainter() (*IndexPainter, error) {
	program, err := shader.New("index_paint", shaders.IndexPaintVertexShader, shaders.IndexPaintFragmentShader)
	if err != nil {
		return nil, err
	}
	p := &IndexPainter{program: program}

	gl.GenVertexArrays(1, &p.vao)
	gl.GenBuffers(1, &p.vbo)
	gl.BindVertexArray(p.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, p.vbo)

	stride := int32(unsafe.Sizeof(tile.IndexPaintVertex{}))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribIPointer(1, 1, gl.UNSIGNED_INT, stride, gl.PtrOffset(8))

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return p, nil
}

// Paint clears target to IndexEmpty and draws the triangles in order.
func (p *IndexPainter) Paint(target *framebuffer.Framebuffer, vertices []tile.IndexPaintVertex) {
	restore := target.BindWithViewport()
	defer restore()
	target.ClearColorUint(0, [4]uint32{tile.IndexEmpty})
	if len(vertices) == 0 {
		return
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, p.vbo)
	size := len(vertices) * int(unsafe.Sizeof(tile.IndexPaintVertex{}))
	if len(vertices) > p.capacity {
		gl.BufferData(gl.ARRAY_BUFFER, size, gl.Ptr(vertices), gl.STREAM_DRAW)
		p.capacity = len(vertices)
	} else {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, size, gl.Ptr(vertices))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
	p.program.Use()
	gl.BindVertexArray(p.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, int32(len(vertices)))
	gl.BindVertexArray(0)
	gl.Enable(gl.CULL_FACE)
	gl.Enable(gl.DEPTH_TEST)
}

// Destroy releases the program and buffers.
func (p *IndexPainter) Destroy() {
	p.program.Delete()
	if p.vbo != 0 {
		gl.DeleteBuffers(1, &p.vbo)
		p.vbo = 0
	}
	if p.vao != 0 {
		gl.DeleteVertexArrays(1, &p.vao)
		p.vao = 0
	}
}

// newIndexTarget allocates an R16UI index texture with its framebuffer.
func newIndexTarget() (*framebuffer.Framebuffer, error) {
	fb, err := framebuffer.New(tile.IndexWidth, tile.IndexHeight, framebuffer.Config{
		Color: []framebuffer.Format{framebuffer.R16UI},
	})
	if err != nil {
		return nil, fmt.Errorf("index target: %w", err)
	}
	return fb, nil
}
