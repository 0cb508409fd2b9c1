// Package atmosphere precomputes the transmittance, irradiance and
// scattering lookup tables of a planetary atmosphere and caches them on
// disk.
//
// The model is the precomputed scattering formulation by Bruneton and
// Neyret: spectral quantities are evaluated four wavelengths at a time and
// folded into linear sRGB tables. Lengths are in kilometres.
package atmosphere

import "math"

// DensityLayer is altitude density
// ExpTerm·exp(ExpScale·h) + LinearTerm·h + ConstantTerm, clamped to [0, 1].
type DensityLayer struct {
	Width        float64
	ExpTerm      float64
	ExpScale     float64
	LinearTerm   float64
	ConstantTerm float64
}

func (l DensityLayer) density(altitude float64) float64 {
	d := l.ExpTerm*math.Exp(l.ExpScale*altitude) + l.LinearTerm*altitude + l.ConstantTerm
	return clamp(d, 0, 1)
}

// DensityProfile uses Layers[0] below its width and Layers[1] above it.
type DensityProfile struct {
	Layers [2]DensityLayer
}

// Density returns the profile value at altitude km above the ground.
func (p DensityProfile) Density(altitude float64) float64 {
	if altitude < p.Layers[0].Width {
		return p.Layers[0].density(altitude)
	}
	return p.Layers[1].density(altitude)
}

func exponentialProfile(scaleHeight float64) DensityProfile {
	return DensityProfile{Layers: [2]DensityLayer{
		{},
		{ExpTerm: 1, ExpScale: -1 / scaleHeight},
	}}
}

// Parameters is a Model sampled at four wavelengths. Coefficients are per
// kilometre.
type Parameters struct {
	SolarIrradiance      Spectrum
	SunAngularRadius     float64
	BottomRadius         float64
	TopRadius            float64
	RayleighDensity      DensityProfile
	RayleighScattering   Spectrum
	MieDensity           DensityProfile
	MieScattering        Spectrum
	MieExtinction        Spectrum
	MiePhaseG            float64
	AbsorptionDensity    DensityProfile
	AbsorptionExtinction Spectrum
	GroundAlbedo         Spectrum
	MuSMin               float64
}

// Model describes a planetary atmosphere independently of wavelength.
type Model struct {
	BottomRadius     float64 // km
	TopRadius        float64 // km
	SunAngularRadius float64 // radians

	RayleighScaleHeight float64 // km
	MieScaleHeight      float64 // km

	MieAngstromAlpha          float64
	MieAngstromBeta           float64
	MieSingleScatteringAlbedo float64
	MiePhaseG                 float64

	// Ozone number density is a tent between OzoneCenter±OzoneHalfWidth.
	UseOzone       bool
	OzoneCenter    float64 // km
	OzoneHalfWidth float64 // km

	GroundAlbedo      float64
	MaxSunZenithAngle float64 // radians
}

const (
	rayleighCoefficient = 1.24062e-6 // per metre at 1µm
	dobsonUnit          = 2.687e20   // molecules per square metre
	metresPerKm         = 1000.0
)

// maxOzoneNumberDensity spreads 300 Dobson units over the 15 km
// equivalent thickness of the tent profile.
const maxOzoneNumberDensity = 300 * dobsonUnit / 15000

// Earth returns the default terrestrial atmosphere.
func Earth() Model {
	return Model{
		BottomRadius:              6360,
		TopRadius:                 6420,
		SunAngularRadius:          0.00935 / 2,
		RayleighScaleHeight:       8,
		MieScaleHeight:            1.2,
		MieAngstromAlpha:          0,
		MieAngstromBeta:           5.328e-3,
		MieSingleScatteringAlbedo: 0.9,
		MiePhaseG:                 0.8,
		UseOzone:                  true,
		OzoneCenter:               25,
		OzoneHalfWidth:            15,
		GroundAlbedo:              0.1,
		MaxSunZenithAngle:         102.0 / 180.0 * math.Pi,
	}
}

// RayleighScattering returns the Rayleigh scattering coefficient per km at
// lambda nanometres.
func RayleighScattering(lambda float64) float64 {
	return rayleighCoefficient * math.Pow(lambda*1e-3, -4) * metresPerKm
}

// Sample evaluates the model at four wavelengths in nanometres.
func (m Model) Sample(lambdas [4]float64) Parameters {
	p := Parameters{
		SunAngularRadius: m.SunAngularRadius,
		BottomRadius:     m.BottomRadius,
		TopRadius:        m.TopRadius,
		RayleighDensity:  exponentialProfile(m.RayleighScaleHeight),
		MieDensity:       exponentialProfile(m.MieScaleHeight),
		MiePhaseG:        m.MiePhaseG,
		GroundAlbedo:     Uniform(m.GroundAlbedo),
		MuSMin:           math.Cos(m.MaxSunZenithAngle),
	}
	c, hw := m.OzoneCenter, m.OzoneHalfWidth
	p.AbsorptionDensity = DensityProfile{Layers: [2]DensityLayer{
		{Width: c, LinearTerm: 1 / hw, ConstantTerm: -(c - hw) / hw},
		{LinearTerm: -1 / hw, ConstantTerm: (c + hw) / hw},
	}}
	for i, l := range lambdas {
		p.SolarIrradiance[i] = interpolate(solarIrradiance[:], l)
		p.RayleighScattering[i] = RayleighScattering(l)
		mie := m.MieAngstromBeta / (m.MieScaleHeight * metresPerKm) *
			math.Pow(l*1e-3, -m.MieAngstromAlpha) * metresPerKm
		p.MieExtinction[i] = mie
		p.MieScattering[i] = mie * m.MieSingleScatteringAlbedo
		if m.UseOzone {
			p.AbsorptionExtinction[i] = maxOzoneNumberDensity * interpolate(ozoneCrossSection[:], l) * metresPerKm
		}
	}
	return p
}

// CompositeParameters returns the RGB parameters handed to the composite
// shader alongside the tables.
func (m Model) CompositeParameters() Parameters {
	p := m.Sample(RGBLambdas)
	p.GroundAlbedo = Spectrum{0, 0, 0.04, 0}
	return p
}

// Spectral tables sampled every 10nm from MinLambda to MaxLambda.
var solarIrradiance = [48]float64{
	1.11776, 1.14259, 1.01249, 1.14716, 1.72765, 1.73054, 1.6887, 1.61253,
	1.91198, 2.03474, 2.02042, 2.02212, 1.93377, 1.95809, 1.91686, 1.8298,
	1.8685, 1.8931, 1.85149, 1.8504, 1.8341, 1.8345, 1.8147, 1.78158, 1.7533,
	1.6965, 1.68194, 1.64654, 1.6048, 1.52143, 1.55622, 1.5113, 1.474, 1.4482,
	1.41018, 1.36775, 1.34188, 1.31429, 1.28303, 1.26758, 1.2367, 1.2082,
	1.18737, 1.14683, 1.12362, 1.1058, 1.07124, 1.04992,
}

// ozoneCrossSection is in square metres per molecule.
var ozoneCrossSection = [48]float64{
	1.18e-27, 2.182e-28, 2.818e-28, 6.636e-28, 1.527e-27, 2.763e-27, 5.52e-27,
	8.451e-27, 1.582e-26, 2.316e-26, 3.669e-26, 4.924e-26, 7.752e-26, 9.016e-26,
	1.48e-25, 1.602e-25, 2.139e-25, 2.755e-25, 3.091e-25, 3.5e-25, 4.266e-25,
	4.672e-25, 4.398e-25, 4.701e-25, 5.019e-25, 4.305e-25, 3.74e-25, 3.215e-25,
	2.662e-25, 2.238e-25, 1.852e-25, 1.473e-25, 1.209e-25, 9.423e-26, 7.455e-26,
	6.566e-26, 5.105e-26, 4.15e-26, 4.228e-26, 3.237e-26, 2.451e-26, 2.801e-26,
	2.534e-26, 1.624e-26, 1.465e-26, 2.078e-26, 1.383e-26, 7.105e-28,
}

// interpolate reads a 10nm table linearly, holding the end values outside
// its range.
func interpolate(table []float64, lambda float64) float64 {
	x := (lambda - MinLambda) / 10
	if x <= 0 {
		return table[0]
	}
	i := int(x)
	if i >= len(table)-1 {
		return table[len(table)-1]
	}
	f := x - float64(i)
	return table[i]*(1-f) + table[i+1]*f
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
