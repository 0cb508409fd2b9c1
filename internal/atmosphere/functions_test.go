package atmosphere

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/integrate/quad"
)

func testMedium() *medium {
	return &medium{Parameters: Earth().Sample(RGBLambdas), dims: DefaultDimensions()}
}

func TestTransmittanceParameterisationRoundTrip(t *testing.T) {
	m := testMedium()
	for _, r := range []float64{6360.5, 6380, 6419} {
		for _, mu := range []float64{-0.5, 0, 0.3, 0.9} {
			gr, gmu := m.transmittanceRMu(m.transmittanceUV(r, mu))
			if math.Abs(gr-r) > 1e-8 || math.Abs(gmu-mu) > 1e-8 {
				t.Errorf("(%g, %g) came back as (%g, %g)", r, mu, gr, gmu)
			}
		}
	}
}

func TestScatteringParameterisationRoundTrip(t *testing.T) {
	m := testMedium()
	for _, r := range []float64{6361, 6400} {
		for _, mu := range []float64{-0.9, 0.1, 0.7} {
			for _, muS := range []float64{-0.1, 0.2, 0.8} {
				for _, nu := range []float64{-0.5, 0.5} {
					ground := m.intersectsGround(r, mu)
					gr, gmu, gmuS, gnu, gground := m.scatteringRMuMuSNu(m.scatteringUVWZ(r, mu, muS, nu, ground))
					if gground != ground {
						t.Fatalf("(%g, %g): ground %v came back as %v", r, mu, ground, gground)
					}
					for _, c := range []struct {
						name      string
						got, want float64
					}{
						{"r", gr, r}, {"mu", gmu, mu}, {"mu_s", gmuS, muS}, {"nu", gnu, nu},
					} {
						if math.Abs(c.got-c.want) > 1e-8 {
							t.Errorf("%s = %g, want %g", c.name, c.got, c.want)
						}
					}
				}
			}
		}
	}
}

func TestIrradianceParameterisationRoundTrip(t *testing.T) {
	m := testMedium()
	for _, r := range []float64{6360, 6390, 6420} {
		for _, muS := range []float64{-1, -0.2, 0.5, 1} {
			gr, gmuS := m.irradianceRMuS(m.irradianceUV(r, muS))
			if math.Abs(gr-r) > 1e-8 || math.Abs(gmuS-muS) > 1e-12 {
				t.Errorf("(%g, %g) came back as (%g, %g)", r, muS, gr, gmuS)
			}
		}
	}
}

func TestPhaseFunctionsAreNormalised(t *testing.T) {
	tests := []struct {
		name  string
		phase func(nu float64) float64
	}{
		{"rayleigh", RayleighPhase},
		{"mie", func(nu float64) float64 { return MiePhase(0.8, nu) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := 2 * math.Pi * quad.Fixed(tt.phase, -1, 1, 400, nil, 0)
			if math.Abs(got-1) > 1e-3 {
				t.Errorf("integral over the sphere = %g, want 1", got)
			}
		})
	}
}

func TestDensityProfiles(t *testing.T) {
	p := Earth().Sample(RGBLambdas)
	tests := []struct {
		name     string
		profile  DensityProfile
		altitude float64
		want     float64
	}{
		{"rayleigh at ground", p.RayleighDensity, 0, 1},
		{"rayleigh one scale height", p.RayleighDensity, 8, math.Exp(-1)},
		{"mie one scale height", p.MieDensity, 1.2, math.Exp(-1)},
		{"ozone below layer", p.AbsorptionDensity, 5, 0},
		{"ozone rising", p.AbsorptionDensity, 17.5, 0.5},
		{"ozone peak", p.AbsorptionDensity, 25, 1},
		{"ozone falling", p.AbsorptionDensity, 32.5, 0.5},
		{"ozone above layer", p.AbsorptionDensity, 45, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.Density(tt.altitude); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Density(%g) = %g, want %g", tt.altitude, got, tt.want)
			}
		})
	}
}

func TestComputedTransmittanceMatchesQuadrature(t *testing.T) {
	m := testMedium()
	got := m.computeTransmittanceToTop(m.BottomRadius, 1)

	extinction := func(k int) func(h float64) float64 {
		return func(h float64) float64 {
			return m.RayleighScattering[k]*m.RayleighDensity.Density(h) +
				m.MieExtinction[k]*m.MieDensity.Density(h) +
				m.AbsorptionExtinction[k]*m.AbsorptionDensity.Density(h)
		}
	}
	// Split at the kinks of the ozone profile.
	bounds := []float64{0, 10, 25, 40, 60}
	for k := 0; k < 3; k++ {
		var depth float64
		for i := 0; i+1 < len(bounds); i++ {
			depth += quad.Fixed(extinction(k), bounds[i], bounds[i+1], 64, nil, 0)
		}
		want := math.Exp(-depth)
		if math.Abs(got[k]-want)/want > 1e-4 {
			t.Errorf("channel %d: transmittance %g, quadrature %g", k, got[k], want)
		}
	}
}

func TestCIEFitPeaksNearUnity(t *testing.T) {
	_, y, _ := CIEXYZ(555)
	if math.Abs(y-1) > 0.01 {
		t.Errorf("ȳ(555) = %g, want about 1", y)
	}
	rgb := WavelengthToSRGB(440, 1)
	if !(rgb[2] > rgb[1] && rgb[2] > rgb[0]) {
		t.Errorf("440nm maps to %v, want blue dominant", rgb)
	}
}

func TestSampleInterpolatesTables(t *testing.T) {
	if got := interpolate(solarIrradiance[:], 365); math.Abs(got-(1.11776+1.14259)/2) > 1e-12 {
		t.Errorf("interpolate(365) = %g", got)
	}
	if got := interpolate(solarIrradiance[:], 300); got != solarIrradiance[0] {
		t.Errorf("below range = %g, want first entry", got)
	}
	if got := interpolate(solarIrradiance[:], 900); got != solarIrradiance[47] {
		t.Errorf("above range = %g, want last entry", got)
	}
}

func TestSunIlluminanceIsNearWhite(t *testing.T) {
	a := SunIlluminance(40)
	b := SunIlluminance(48)
	for c := 0; c < 3; c++ {
		if a[c] < 50 {
			t.Errorf("channel %d = %g, want a bright sun", c, a[c])
		}
		if math.Abs(a[c]-b[c]) > 0.05*b[c] {
			t.Errorf("channel %d depends on the bin count: %g vs %g", c, a[c], b[c])
		}
	}
}
