package scene

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/orbis/internal/atmosphere"
)

// Texture units of the atmosphere tables in the composite pass.
const (
	transmittanceUnit = 4
	irradianceUnit    = 5
	scatteringUnit    = 6
	singleMieUnit     = 7
)

// AtmosphereTextures holds the precomputed tables as RGBA32F textures
// sampled with linear filtering.
type AtmosphereTextures struct {
	dims          atmosphere.Dimensions
	transmittance uint32
	irradiance    uint32
	scattering    uint32
	singleMie     uint32
}

func newLUT(target uint32, w, h, d int, data []float32) (uint32, error) {
	if want := w * h * d * 4; len(data) != want {
		return 0, fmt.Errorf("atmosphere table holds %d floats, want %d", len(data), want)
	}
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(target, tex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	if target == gl.TEXTURE_3D {
		gl.TexStorage3D(target, 1, gl.RGBA32F, int32(w), int32(h), int32(d))
		gl.TexSubImage3D(target, 0, 0, 0, 0, int32(w), int32(h), int32(d), gl.RGBA, gl.FLOAT, gl.Ptr(data))
		gl.TexParameteri(target, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	} else {
		gl.TexStorage2D(target, 1, gl.RGBA32F, int32(w), int32(h))
		gl.TexSubImage2D(target, 0, 0, 0, int32(w), int32(h), gl.RGBA, gl.FLOAT, gl.Ptr(data))
	}
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(target, 0)
	return tex, nil
}

// NewAtmosphereTextures uploads t.
func NewAtmosphereTextures(t *atmosphere.Tables) (*AtmosphereTextures, error) {
	d := t.Dimensions
	a := &AtmosphereTextures{dims: d}
	sw, sh, sd := d.ScatteringSize()
	luts := []struct {
		dst     *uint32
		target  uint32
		w, h, n int
		data    []float32
	}{
		{&a.transmittance, gl.TEXTURE_2D, d.TransmittanceWidth, d.TransmittanceHeight, 1, t.Transmittance},
		{&a.irradiance, gl.TEXTURE_2D, d.IrradianceWidth, d.IrradianceHeight, 1, t.Irradiance},
		{&a.scattering, gl.TEXTURE_3D, sw, sh, sd, t.Scattering},
		{&a.singleMie, gl.TEXTURE_3D, sw, sh, sd, t.SingleMieScattering},
	}
	for _, l := range luts {
		tex, err := newLUT(l.target, l.w, l.h, l.n, l.data)
		if err != nil {
			a.Destroy()
			return nil, err
		}
		*l.dst = tex
	}
	return a, nil
}

// Dimensions returns the table sizes.
func (a *AtmosphereTextures) Dimensions() atmosphere.Dimensions { return a.dims }

// Download reads the textures back into a Tables, as the composite pass
// samples them.
func (a *AtmosphereTextures) Download() *atmosphere.Tables {
	d := a.dims
	sw, sh, sd := d.ScatteringSize()
	read := func(target, tex uint32, n int) []float32 {
		out := make([]float32, n*4)
		gl.BindTexture(target, tex)
		gl.PixelStorei(gl.PACK_ALIGNMENT, 4)
		gl.GetTexImage(target, 0, gl.RGBA, gl.FLOAT, gl.Ptr(out))
		gl.BindTexture(target, 0)
		return out
	}
	return &atmosphere.Tables{
		Dimensions:          d,
		Transmittance:       read(gl.TEXTURE_2D, a.transmittance, d.TransmittanceWidth*d.TransmittanceHeight),
		Irradiance:          read(gl.TEXTURE_2D, a.irradiance, d.IrradianceWidth*d.IrradianceHeight),
		Scattering:          read(gl.TEXTURE_3D, a.scattering, sw*sh*sd),
		SingleMieScattering: read(gl.TEXTURE_3D, a.singleMie, sw*sh*sd),
	}
}

func (a *AtmosphereTextures) bind() {
	for _, b := range []struct {
		unit   uint32
		target uint32
		tex    uint32
	}{
		{transmittanceUnit, gl.TEXTURE_2D, a.transmittance},
		{irradianceUnit, gl.TEXTURE_2D, a.irradiance},
		{scatteringUnit, gl.TEXTURE_3D, a.scattering},
		{singleMieUnit, gl.TEXTURE_3D, a.singleMie},
	} {
		gl.ActiveTexture(gl.TEXTURE0 + b.unit)
		gl.BindTexture(b.target, b.tex)
	}
}

// Destroy releases the textures.
func (a *AtmosphereTextures) Destroy() {
	for _, tex := range []*uint32{&a.transmittance, &a.irradiance, &a.scattering, &a.singleMie} {
		if *tex != 0 {
			gl.DeleteTextures(1, tex)
			*tex = 0
		}
	}
}
