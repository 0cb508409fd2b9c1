package atmosphere

import "math"

// Spectrum holds one value per wavelength of the quadruplet being
// precomputed, or per RGBA channel once converted.
type Spectrum [4]float64

// Uniform returns a spectrum with every component v.
func Uniform(v float64) Spectrum { return Spectrum{v, v, v, v} }

// Add returns s + o.
func (s Spectrum) Add(o Spectrum) Spectrum {
	return Spectrum{s[0] + o[0], s[1] + o[1], s[2] + o[2], s[3] + o[3]}
}

// Mul returns the component-wise product.
func (s Spectrum) Mul(o Spectrum) Spectrum {
	return Spectrum{s[0] * o[0], s[1] * o[1], s[2] * o[2], s[3] * o[3]}
}

// Div returns the component-wise quotient.
func (s Spectrum) Div(o Spectrum) Spectrum {
	return Spectrum{s[0] / o[0], s[1] / o[1], s[2] / o[2], s[3] / o[3]}
}

// Scale returns s·k.
func (s Spectrum) Scale(k float64) Spectrum {
	return Spectrum{s[0] * k, s[1] * k, s[2] * k, s[3] * k}
}

// Exp returns e raised to each component.
func (s Spectrum) Exp() Spectrum {
	return Spectrum{math.Exp(s[0]), math.Exp(s[1]), math.Exp(s[2]), math.Exp(s[3])}
}

// Min clamps every component to at most v.
func (s Spectrum) Min(v float64) Spectrum {
	return Spectrum{math.Min(s[0], v), math.Min(s[1], v), math.Min(s[2], v), math.Min(s[3], v)}
}

// Lerp returns s·(1-t) + o·t.
func (s Spectrum) Lerp(o Spectrum, t float64) Spectrum {
	return s.Scale(1 - t).Add(o.Scale(t))
}
