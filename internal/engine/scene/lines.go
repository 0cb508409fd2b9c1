package scene

import (
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/orbis/internal/engine/debug"
	"github.com/Faultbox/orbis/internal/engine/scene/shaders"
	"github.com/Faultbox/orbis/internal/engine/shader"
)

// LineRenderer draws debug line lists: frozen frusta and tile footprints.
type LineRenderer struct {
	program  *shader.Program
	vao      uint32
	vbo      uint32
	capacity int
}

// NewLineRenderer compiles the line program.
func NewLineRenderer() (*LineRenderer, error) {
	p, err := shader.New("lines", shaders.LinesVertexShader, shaders.LinesFragmentShader)
	if err != nil {
		return nil, err
	}
	r := &LineRenderer{program: p}

	stride := int32(unsafe.Sizeof(debug.LineVertex{}))
	gl.GenVertexArrays(1, &r.vao)
	gl.GenBuffers(1, &r.vbo)
	gl.BindVertexArray(r.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 4, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 4, gl.FLOAT, false, stride, gl.PtrOffset(16))
	gl.BindVertexArray(0)
	return r, nil
}

// Draw renders vertices as GL_LINES into the bound target, depth tested
// without writing depth.
func (r *LineRenderer) Draw(view *View, vertices []debug.LineVertex) {
	if len(vertices) == 0 {
		return
	}
	size := len(vertices) * int(unsafe.Sizeof(debug.LineVertex{}))
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	if len(vertices) > r.capacity {
		gl.BufferData(gl.ARRAY_BUFFER, size, gl.Ptr(vertices), gl.DYNAMIC_DRAW)
		r.capacity = len(vertices)
	} else {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, size, gl.Ptr(vertices))
	}

	r.program.Use()
	view.apply(r.program)
	gl.DepthMask(false)
	gl.BindVertexArray(r.vao)
	gl.DrawArrays(gl.LINES, 0, int32(len(vertices)))
	gl.BindVertexArray(0)
	gl.DepthMask(true)
}

// Destroy releases the program and buffers.
func (r *LineRenderer) Destroy() {
	if r.program != nil {
		r.program.Delete()
	}
	if r.vbo != 0 {
		gl.DeleteBuffers(1, &r.vbo)
	}
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
}
