package scene

import (
	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/orbis/internal/engine/framebuffer"
	"github.com/Faultbox/orbis/internal/engine/scene/shaders"
	"github.com/Faultbox/orbis/internal/engine/shader"
	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/pkg/formats"
)

// Accumulators holds the screen-sized colour (RGBA8) and normal (RG16I)
// images the compute kernels fill from the G-buffer.
type Accumulators struct {
	target *framebuffer.Framebuffer

	clear   *shader.Program
	colors  *shader.Program
	normals *shader.Program
	levels  *shader.Program
}

func compileKernel(name string, extra ...string) (*shader.Program, error) {
	src, err := shaders.Compose(shaders.AccumulateComputeShader, defines(extra...), shaders.Common)
	if err != nil {
		return nil, err
	}
	return shader.NewCompute(name, src)
}

// NewAccumulators compiles the kernels and allocates the images.
func NewAccumulators(width, height int32) (*Accumulators, error) {
	a := &Accumulators{}
	kernels := []struct {
		dst     **shader.Program
		name    string
		defines []string
	}{
		{&a.clear, "accumulate clear", []string{"CLEAR"}},
		{&a.colors, "accumulate colors", []string{"COLORS", "COLOR_ATLAS"}},
		{&a.normals, "accumulate normals", []string{"NORMALS", "HEIGHT_ATLAS"}},
		{&a.levels, "accumulate levels", []string{"LEVELS"}},
	}
	for _, k := range kernels {
		p, err := compileKernel(k.name, k.defines...)
		if err != nil {
			a.Destroy()
			return nil, err
		}
		*k.dst = p
	}
	var err error
	a.target, err = framebuffer.New(width, height, framebuffer.Config{
		Color: []framebuffer.Format{framebuffer.RGBA8, framebuffer.RG16I},
	})
	if err != nil {
		a.Destroy()
		return nil, err
	}
	return a, nil
}

// Resize reallocates the images.
func (a *Accumulators) Resize(width, height int32) error {
	return a.target.Resize(width, height)
}

// Color returns the colour image texture.
func (a *Accumulators) Color() uint32 { return a.target.ColorTexture(0) }

// Normal returns the normal image texture.
func (a *Accumulators) Normal() uint32 { return a.target.ColorTexture(1) }

// Target returns the framebuffer holding both images.
func (a *Accumulators) Target() *framebuffer.Framebuffer { return a.target }

// Run clears the images and applies every colour atlas in order, then every
// height atlas. With levels set the colour image is overwritten by the
// level palette.
func (a *Accumulators) Run(gbuffer uint32, atlases []*Atlas, levels bool) {
	gl.BindImageTexture(colorImageUnit, a.Color(), 0, false, 0, gl.READ_WRITE, gl.RGBA8)
	gl.BindImageTexture(normalImageUnit, a.Normal(), 0, false, 0, gl.READ_WRITE, gl.RG16I)
	gl.ActiveTexture(gl.TEXTURE0 + gbufferUnit)
	gl.BindTexture(gl.TEXTURE_2D, gbuffer)

	a.dispatch(a.clear, nil)
	for _, atlas := range atlases {
		if atlas.Kind() == formats.KindColor {
			a.dispatch(a.colors, atlas)
		}
	}
	for _, atlas := range atlases {
		if atlas.Kind() == formats.KindHeight {
			a.dispatch(a.normals, atlas)
		}
	}
	if levels {
		a.levels.Use()
		a.levels.SetVec3Array("uPalette", palette())
		a.dispatch(a.levels, nil)
	}
	gl.MemoryBarrier(gl.TEXTURE_FETCH_BARRIER_BIT)
}

func (a *Accumulators) dispatch(p *shader.Program, atlas *Atlas) {
	w, h := a.target.Size()
	p.Use()
	p.SetInt("uGBuffer", gbufferUnit)
	p.SetInt("uIndex", indexUnit)
	p.SetVec2i("uSize", w, h)
	if atlas != nil {
		atlas.bind()
		if atlas.Kind() == formats.KindColor {
			p.SetInt("uColors", atlasUnit)
		} else {
			p.SetInt("uHeights", atlasUnit)
		}
	}
	p.Dispatch(groups(int(w), deferred.WorkgroupSize), groups(int(h), deferred.WorkgroupSize), 1)
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT)
}

// Destroy releases the kernels and images.
func (a *Accumulators) Destroy() {
	for _, p := range []*shader.Program{a.clear, a.colors, a.normals, a.levels} {
		if p != nil {
			p.Delete()
		}
	}
	if a.target != nil {
		a.target.Destroy()
	}
}
