package shader

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
)

// Program is a linked program with a uniform location cache. Setters on
// uniforms the linker dropped are no-ops, as in GL.
type Program struct {
	ID       uint32
	name     string
	uniforms map[string]int32
}

// New links a vertex and fragment program.
func New(name, vertexSrc, fragmentSrc string) (*Program, error) {
	id, err := CompileProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, wrap(name, err)
	}
	return &Program{ID: id, name: name, uniforms: make(map[string]int32)}, nil
}

// NewCompute links a compute program.
func NewCompute(name, src string) (*Program, error) {
	id, err := CompileCompute(src)
	if err != nil {
		return nil, wrap(name, err)
	}
	return &Program{ID: id, name: name, uniforms: make(map[string]int32)}, nil
}

// Name returns the name the program was created with.
func (p *Program) Name() string { return p.name }

// Use makes p current.
func (p *Program) Use() { gl.UseProgram(p.ID) }

// Uniform returns the cached location of name.
func (p *Program) Uniform(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := GetUniform(p.ID, name)
	p.uniforms[name] = loc
	return loc
}

func (p *Program) SetInt(name string, v int32)     { gl.Uniform1i(p.Uniform(name), v) }
func (p *Program) SetUint(name string, v uint32)   { gl.Uniform1ui(p.Uniform(name), v) }
func (p *Program) SetFloat(name string, v float32) { gl.Uniform1f(p.Uniform(name), v) }

func (p *Program) SetVec2(name string, x, y float32) { gl.Uniform2f(p.Uniform(name), x, y) }

func (p *Program) SetVec2i(name string, x, y int32) { gl.Uniform2i(p.Uniform(name), x, y) }

func (p *Program) SetVec3(name string, v [3]float32) { gl.Uniform3f(p.Uniform(name), v[0], v[1], v[2]) }

func (p *Program) SetVec4(name string, v [4]float32) {
	gl.Uniform4f(p.Uniform(name), v[0], v[1], v[2], v[3])
}

// SetVec3Array uploads consecutive vec3 values to an array uniform.
func (p *Program) SetVec3Array(name string, v [][3]float32) {
	if len(v) == 0 {
		return
	}
	gl.Uniform3fv(p.Uniform(name), int32(len(v)), &v[0][0])
}

// SetMat4 uploads a column-major matrix.
func (p *Program) SetMat4(name string, m *[16]float32) {
	gl.UniformMatrix4fv(p.Uniform(name), 1, false, &m[0])
}

// Dispatch runs a compute program over groupsX × groupsY × groupsZ
// workgroups. The caller issues the barrier its consumers need.
func (p *Program) Dispatch(groupsX, groupsY, groupsZ int) {
	gl.UseProgram(p.ID)
	gl.DispatchCompute(uint32(groupsX), uint32(groupsY), uint32(groupsZ))
}

// Delete releases the program.
func (p *Program) Delete() {
	if p.ID != 0 {
		gl.DeleteProgram(p.ID)
		p.ID = 0
	}
}

func wrap(name string, err error) error {
	return fmt.Errorf("shader %s: %w", name, err)
}
