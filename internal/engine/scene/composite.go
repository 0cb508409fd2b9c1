package scene

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/internal/atmosphere"
	"github.com/Faultbox/orbis/internal/engine/scene/shaders"
	"github.com/Faultbox/orbis/internal/engine/shader"
	"github.com/Faultbox/orbis/pkg/math"
)

// Mode selects what the composite pass shows.
type Mode int32

// Composite modes, matching the MODE_* constants of the shader.
const (
	ModeShaded Mode = iota
	ModeGraticule
	ModeColor
	ModeNormal
	NumModes
)

func (m Mode) String() string {
	switch m {
	case ModeShaded:
		return "shaded"
	case ModeGraticule:
		return "graticule"
	case ModeColor:
		return "color"
	case ModeNormal:
		return "normal"
	}
	return "unknown"
}

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	for m := ModeShaded; m < NumModes; m++ {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return ModeShaded, fmt.Errorf("unknown scene mode %q", s)
}

// Texture units of the screen inputs in the composite pass.
const (
	compositeGBufferUnit = 0
	compositeColorUnit   = 1
	compositeNormalUnit  = 2
	compositeOverlayUnit = 3
)

// Lighting is the per-frame input of the composite pass.
type Lighting struct {
	// Eye is the camera position in geocentric kilometres.
	Eye r3.Vec
	// Sun is the unit direction towards the sun.
	Sun      r3.Vec
	Exposure float64
	Mode     Mode
}

// Compositor shades the accumulators and the sky into the bound target.
type Compositor struct {
	program     *shader.Program
	vao         uint32
	illuminance [3]float32
}

func compositeDefines(model atmosphere.Model, dims atmosphere.Dimensions) map[string]any {
	p := model.CompositeParameters()
	d := defines()
	d["TRANSMITTANCE_WIDTH"] = dims.TransmittanceWidth
	d["TRANSMITTANCE_HEIGHT"] = dims.TransmittanceHeight
	d["IRRADIANCE_WIDTH"] = dims.IrradianceWidth
	d["IRRADIANCE_HEIGHT"] = dims.IrradianceHeight
	d["SCATTERING_R"] = dims.ScatteringR
	d["SCATTERING_MU"] = dims.ScatteringMu
	d["SCATTERING_MU_S"] = dims.ScatteringMuS
	d["SCATTERING_NU"] = dims.ScatteringNu
	d["BOTTOM_RADIUS"] = p.BottomRadius
	d["TOP_RADIUS"] = p.TopRadius
	d["MU_S_MIN"] = p.MuSMin
	d["MIE_G"] = p.MiePhaseG
	d["SUN_ANGULAR_RADIUS"] = p.SunAngularRadius
	return d
}

// NewCompositor compiles the composite program for tables of dims.
// wavelengths is the spectral sample count the tables were built with.
func NewCompositor(model atmosphere.Model, dims atmosphere.Dimensions, wavelengths int) (*Compositor, error) {
	fs, err := shaders.Compose(shaders.CompositeFragmentShader, compositeDefines(model, dims))
	if err != nil {
		return nil, err
	}
	p, err := shader.New("composite", shaders.CompositeVertexShader, fs)
	if err != nil {
		return nil, err
	}
	c := &Compositor{program: p}
	for i, v := range atmosphere.SunIlluminance(wavelengths) {
		c.illuminance[i] = float32(v)
	}
	gl.GenVertexArrays(1, &c.vao)
	return c, nil
}

// Inputs are the textures the composite pass reads.
type Inputs struct {
	GBuffer uint32
	Color   uint32
	Normal  uint32
	Overlay uint32
}

// Draw runs the pass over the whole bound target.
func (c *Compositor) Draw(in Inputs, luts *AtmosphereTextures, view *View, light Lighting) {
	for _, b := range []struct {
		unit uint32
		tex  uint32
	}{
		{compositeGBufferUnit, in.GBuffer},
		{compositeColorUnit, in.Color},
		{compositeNormalUnit, in.Normal},
		{compositeOverlayUnit, in.Overlay},
	} {
		gl.ActiveTexture(gl.TEXTURE0 + b.unit)
		gl.BindTexture(gl.TEXTURE_2D, b.tex)
	}
	luts.bind()

	viewProjection := view.Projection.Mul(view.ViewRotation)
	inverse := viewProjection.Inverse()

	p := c.program
	p.Use()
	p.SetInt("uGBuffer", compositeGBufferUnit)
	p.SetInt("uColor", compositeColorUnit)
	p.SetInt("uNormal", compositeNormalUnit)
	p.SetInt("uOverlay", compositeOverlayUnit)
	p.SetInt("uTransmittance", transmittanceUnit)
	p.SetInt("uIrradiance", irradianceUnit)
	p.SetInt("uScattering", scatteringUnit)
	p.SetInt("uSingleMie", singleMieUnit)
	p.SetMat4("uInvViewProjection", (*[16]float32)(&inverse))
	p.SetVec3("uEye", math.V3(light.Eye).Array())
	p.SetVec3("uSunDirection", math.V3(light.Sun).Array())
	p.SetVec3("uSunIlluminance", c.illuminance)
	p.SetFloat("uExposure", float32(light.Exposure))
	p.SetInt("uMode", int32(light.Mode))

	gl.Disable(gl.DEPTH_TEST)
	gl.BindVertexArray(c.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
	gl.Enable(gl.DEPTH_TEST)
}

// Destroy releases the program.
func (c *Compositor) Destroy() {
	if c.program != nil {
		c.program.Delete()
	}
	if c.vao != 0 {
		gl.DeleteVertexArrays(1, &c.vao)
	}
}
