package atmosphere

import "math"

// Visible range covered by the precomputed wavelengths, in nanometres.
const (
	MinLambda = 360.0
	MaxLambda = 830.0
)

// MaxLuminousEfficacy converts watts to lumens at the peak of the
// photopic response. It is left out of the precomputed tables and applied
// by the composite.
const MaxLuminousEfficacy = 683.0

// RGBLambdas are the wavelengths, in nanometres, whose values the final
// transmittance table holds. The fourth channel repeats blue.
var RGBLambdas = [4]float64{680, 550, 440, 440}

// xyzToSRGB converts CIE XYZ to linear sRGB, row major.
var xyzToSRGB = [9]float64{
	3.2406, -1.5372, -0.4986,
	-0.9689, 1.8758, 0.0415,
	0.0557, -0.2040, 1.0570,
}

// lobe is an asymmetric Gaussian with different widths either side of mu.
func lobe(lambda, mu, below, above float64) float64 {
	s := above
	if lambda < mu {
		s = below
	}
	t := (lambda - mu) / s
	return math.Exp(-0.5 * t * t)
}

// CIEXYZ returns the CIE 1931 2° colour matching functions at lambda
// (nanometres), using the multi-lobe Gaussian fit of Wyman, Sloan and
// Shirley.
func CIEXYZ(lambda float64) (x, y, z float64) {
	x = 1.056*lobe(lambda, 599.8, 37.9, 31.0) +
		0.362*lobe(lambda, 442.0, 16.0, 26.7) -
		0.065*lobe(lambda, 501.1, 20.4, 26.2)
	y = 0.821*lobe(lambda, 568.8, 46.9, 40.5) +
		0.286*lobe(lambda, 530.9, 16.3, 31.1)
	z = 1.217*lobe(lambda, 437.0, 11.8, 36.0) +
		0.681*lobe(lambda, 459.0, 26.0, 13.8)
	return x, y, z
}

// WavelengthToSRGB returns the linear sRGB contribution of radiance at
// lambda integrated over a band of width scale nanometres, without the
// luminous efficacy factor.
func WavelengthToSRGB(lambda, scale float64) [3]float64 {
	x, y, z := CIEXYZ(lambda)
	var out [3]float64
	for c := 0; c < 3; c++ {
		out[c] = (xyzToSRGB[c*3]*x + xyzToSRGB[c*3+1]*y + xyzToSRGB[c*3+2]*z) * scale
	}
	return out
}

// radianceToLuminance maps the four spectral radiance samples of one pass
// to linear sRGB; the fourth output channel stays zero.
type radianceToLuminance [4][3]float64

func newRadianceToLuminance(lambdas [4]float64, scale float64) radianceToLuminance {
	var m radianceToLuminance
	for k, l := range lambdas {
		m[k] = WavelengthToSRGB(l, scale)
	}
	return m
}

// apply converts a spectral radiance to luminance.
func (m radianceToLuminance) apply(s Spectrum) Spectrum {
	var out Spectrum
	for k := 0; k < 4; k++ {
		for c := 0; c < 3; c++ {
			out[c] += m[k][c] * s[k]
		}
	}
	return out
}

// SunIlluminance returns the solar irradiance at the top of the atmosphere
// in the units of the precomputed tables: linear sRGB summed over the same
// wavelength bins, without the luminous efficacy factor.
func SunIlluminance(wavelengths int) [3]float64 {
	n := (wavelengths + 3) / 4 * 4
	if n < 4 {
		n = 4
	}
	dl := (MaxLambda - MinLambda) / float64(n)
	var out [3]float64
	for i := 0; i < n; i++ {
		l := MinLambda + (float64(i)+0.5)*dl
		c := WavelengthToSRGB(l, dl)
		s := interpolate(solarIrradiance[:], l)
		for k := range out {
			out[k] += c[k] * s
		}
	}
	return out
}
