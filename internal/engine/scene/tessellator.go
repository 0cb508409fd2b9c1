package scene

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/orbis/internal/engine/scene/shaders"
	"github.com/Faultbox/orbis/internal/engine/shader"
	"github.com/Faultbox/orbis/internal/terrain/patch"
)

const tessellateGroupSize = 64

// Tessellator expands the per-patch seeds into the patch vertex buffer on
// the GPU: prepare copies the corners, one expand pass per subdivision
// level writes midpoints from the parent table, finish derives normals and
// graticules, and displace applies each height set.
type Tessellator struct {
	layout   *patch.Layout
	program  *shader.Program
	displace *shader.Program

	seeds    uint32
	vertices uint32
	parents  uint32
	patches  int
}

// NewTessellator compiles the passes and uploads the parent table of
// layout.
func NewTessellator(layout *patch.Layout) (*Tessellator, error) {
	t := &Tessellator{layout: layout}

	src, err := shaders.Compose(shaders.TessellateComputeShader, defines(), shaders.Common)
	if err != nil {
		return nil, err
	}
	if t.program, err = shader.NewCompute("tessellate", src); err != nil {
		return nil, err
	}
	src, err = shaders.Compose(shaders.TessellateComputeShader, defines("HEIGHT_ATLAS"), shaders.Common)
	if err != nil {
		t.Destroy()
		return nil, err
	}
	if t.displace, err = shader.NewCompute("displace", src); err != nil {
		t.Destroy()
		return nil, err
	}

	parents := layout.Parents()
	gl.GenBuffers(1, &t.parents)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, t.parents)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, len(parents)*8, gl.Ptr(parents), gl.STATIC_DRAW)

	gl.GenBuffers(1, &t.seeds)
	gl.GenBuffers(1, &t.vertices)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	return t, nil
}

// VertexBuffer returns the tessellated vertices, Stride per patch slot.
func (t *Tessellator) VertexBuffer() uint32 { return t.vertices }

// Layout returns the vertex layout.
func (t *Tessellator) Layout() *patch.Layout { return t.layout }

func (t *Tessellator) reserve(patches int) {
	if patches <= t.patches {
		return
	}
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, t.seeds)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, 3*patches*patch.UploadVertexSize, nil, gl.STREAM_DRAW)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, t.vertices)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, t.layout.Stride()*patches*patch.UploadVertexSize, nil, gl.DYNAMIC_COPY)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	t.patches = patches
}

// Run tessellates seeds, three per patch slot, then displaces the vertices
// by every height atlas in order.
func (t *Tessellator) Run(seeds []patch.UploadVertex, heights []*Atlas) error {
	if len(seeds)%3 != 0 {
		return fmt.Errorf("tessellate: %d seeds is not three per patch", len(seeds))
	}
	patches := len(seeds) / 3
	if patches == 0 {
		return nil
	}
	t.reserve(patches)

	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, t.seeds)
	gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, 0, len(seeds)*patch.UploadVertexSize, gl.Ptr(seeds))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)

	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, seedsBinding, t.seeds)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, verticesBinding, t.vertices)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, parentsBinding, t.parents)

	stride := t.layout.Stride()
	p := t.program
	p.Use()
	p.SetUint("uStride", uint32(stride))
	p.SetUint("uPatches", uint32(patches))

	t.dispatch(p, passPrepare, 0, 3, patches)
	for level := 1; level <= t.layout.Subdivisions(); level++ {
		first := t.layout.VerticesAtLevel(level - 1)
		t.dispatch(p, passExpand, first, t.layout.VerticesAtLevel(level)-first, patches)
	}
	t.dispatch(p, passFinish, 0, stride, patches)

	if len(heights) > 0 {
		d := t.displace
		d.Use()
		d.SetUint("uStride", uint32(stride))
		d.SetUint("uPatches", uint32(patches))
		d.SetInt("uIndex", indexUnit)
		d.SetInt("uHeights", atlasUnit)
		for _, a := range heights {
			a.bind()
			t.dispatch(d, passDisplace, 0, stride, patches)
		}
	}
	return nil
}

func (t *Tessellator) dispatch(p *shader.Program, pass uint32, first, count, patches int) {
	p.SetUint("uPass", pass)
	p.SetUint("uFirst", uint32(first))
	p.SetUint("uCount", uint32(count))
	p.Dispatch(groups(count*patches, tessellateGroupSize), 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
}

// Destroy releases the programs and buffers.
func (t *Tessellator) Destroy() {
	if t.program != nil {
		t.program.Delete()
	}
	if t.displace != nil {
		t.displace.Delete()
	}
	for _, b := range []*uint32{&t.seeds, &t.vertices, &t.parents} {
		if *b != 0 {
			gl.DeleteBuffers(1, b)
			*b = 0
		}
	}
}
