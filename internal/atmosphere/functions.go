package atmosphere

import "math"

// Sample counts of the numerical integrals.
const (
	transmittanceSamples     = 500
	singleScatteringSamples  = 50
	scatteringDensitySamples = 16
	multipleScatteringSteps  = 50
	indirectIrradianceSteps  = 32
)

// medium evaluates the radiative transfer integrals for one set of sampled
// parameters at a given table resolution.
type medium struct {
	Parameters
	dims Dimensions
}

func clampCosine(mu float64) float64 { return clamp(mu, -1, 1) }

func clampDistance(d float64) float64 { return math.Max(d, 0) }

func safeSqrt(a float64) float64 { return math.Sqrt(math.Max(a, 0)) }

func smoothstep(e0, e1, x float64) float64 {
	t := clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

func (m *medium) clampRadius(r float64) float64 {
	return clamp(r, m.BottomRadius, m.TopRadius)
}

// horizon is sqrt(top² - bottom²), the distance to the top of the
// atmosphere along a ground-level horizontal ray.
func (m *medium) horizon() float64 {
	return math.Sqrt(m.TopRadius*m.TopRadius - m.BottomRadius*m.BottomRadius)
}

func (m *medium) distanceToTop(r, mu float64) float64 {
	disc := r*r*(mu*mu-1) + m.TopRadius*m.TopRadius
	return clampDistance(-r*mu + safeSqrt(disc))
}

func (m *medium) distanceToBottom(r, mu float64) float64 {
	disc := r*r*(mu*mu-1) + m.BottomRadius*m.BottomRadius
	return clampDistance(-r*mu - safeSqrt(disc))
}

func (m *medium) intersectsGround(r, mu float64) bool {
	return mu < 0 && r*r*(mu*mu-1)+m.BottomRadius*m.BottomRadius >= 0
}

func (m *medium) distanceToNearestBoundary(r, mu float64, ground bool) float64 {
	if ground {
		return m.distanceToBottom(r, mu)
	}
	return m.distanceToTop(r, mu)
}

// opticalLength integrates a density profile from (r, μ) to the top of the
// atmosphere with the trapezoidal rule.
func (m *medium) opticalLength(profile DensityProfile, r, mu float64) float64 {
	dx := m.distanceToTop(r, mu) / transmittanceSamples
	var sum float64
	for i := 0; i <= transmittanceSamples; i++ {
		d := float64(i) * dx
		ri := math.Sqrt(d*d + 2*r*mu*d + r*r)
		y := profile.Density(ri - m.BottomRadius)
		w := 1.0
		if i == 0 || i == transmittanceSamples {
			w = 0.5
		}
		sum += y * w * dx
	}
	return sum
}

func (m *medium) computeTransmittanceToTop(r, mu float64) Spectrum {
	depth := m.RayleighScattering.Scale(m.opticalLength(m.RayleighDensity, r, mu)).
		Add(m.MieExtinction.Scale(m.opticalLength(m.MieDensity, r, mu))).
		Add(m.AbsorptionExtinction.Scale(m.opticalLength(m.AbsorptionDensity, r, mu)))
	return depth.Scale(-1).Exp()
}

// Transmittance table parameterisation.

func (m *medium) transmittanceUV(r, mu float64) (u, v float64) {
	h := m.horizon()
	rho := safeSqrt(r*r - m.BottomRadius*m.BottomRadius)
	d := m.distanceToTop(r, mu)
	dMin := m.TopRadius - r
	dMax := rho + h
	xMu := (d - dMin) / (dMax - dMin)
	xR := rho / h
	return textureCoordFromUnitRange(xMu, m.dims.TransmittanceWidth),
		textureCoordFromUnitRange(xR, m.dims.TransmittanceHeight)
}

func (m *medium) transmittanceRMu(u, v float64) (r, mu float64) {
	xMu := unitRangeFromTextureCoord(u, m.dims.TransmittanceWidth)
	xR := unitRangeFromTextureCoord(v, m.dims.TransmittanceHeight)
	h := m.horizon()
	rho := h * xR
	r = math.Sqrt(rho*rho + m.BottomRadius*m.BottomRadius)
	dMin := m.TopRadius - r
	dMax := rho + h
	d := dMin + xMu*(dMax-dMin)
	if d == 0 {
		return r, 1
	}
	return r, clampCosine((h*h - rho*rho - d*d) / (2 * r * d))
}

func (m *medium) transmittanceToTop(t *texture, r, mu float64) Spectrum {
	u, v := m.transmittanceUV(r, mu)
	return t.sample2D(u, v)
}

// transmittance returns the transmittance between (r, μ) and the point at
// distance d along the ray.
func (m *medium) transmittance(t *texture, r, mu, d float64, ground bool) Spectrum {
	rd := m.clampRadius(math.Sqrt(d*d + 2*r*mu*d + r*r))
	muD := clampCosine((r*mu + d) / rd)
	if ground {
		return m.transmittanceToTop(t, rd, -muD).Div(m.transmittanceToTop(t, r, -mu)).Min(1)
	}
	return m.transmittanceToTop(t, r, mu).Div(m.transmittanceToTop(t, rd, muD)).Min(1)
}

// transmittanceToSun fades the sun disc out as it sets below the horizon.
func (m *medium) transmittanceToSun(t *texture, r, muS float64) Spectrum {
	sinH := m.BottomRadius / r
	cosH := -math.Sqrt(math.Max(1-sinH*sinH, 0))
	fade := smoothstep(-sinH*m.SunAngularRadius, sinH*m.SunAngularRadius, muS-cosH)
	return m.transmittanceToTop(t, r, muS).Scale(fade)
}

// Single scattering.

func (m *medium) singleScatteringIntegrand(t *texture, r, mu, muS, nu, d float64, ground bool) (Spectrum, Spectrum) {
	rd := m.clampRadius(math.Sqrt(d*d + 2*r*mu*d + r*r))
	muSD := clampCosine((r*muS + d*nu) / rd)
	tr := m.transmittance(t, r, mu, d, ground).Mul(m.transmittanceToSun(t, rd, muSD))
	alt := rd - m.BottomRadius
	return tr.Scale(m.RayleighDensity.Density(alt)), tr.Scale(m.MieDensity.Density(alt))
}

func (m *medium) computeSingleScattering(t *texture, r, mu, muS, nu float64, ground bool) (rayleigh, mie Spectrum) {
	dx := m.distanceToNearestBoundary(r, mu, ground) / singleScatteringSamples
	for i := 0; i <= singleScatteringSamples; i++ {
		ri, mi := m.singleScatteringIntegrand(t, r, mu, muS, nu, float64(i)*dx, ground)
		w := 1.0
		if i == 0 || i == singleScatteringSamples {
			w = 0.5
		}
		rayleigh = rayleigh.Add(ri.Scale(w))
		mie = mie.Add(mi.Scale(w))
	}
	rayleigh = rayleigh.Scale(dx).Mul(m.SolarIrradiance).Mul(m.RayleighScattering)
	mie = mie.Scale(dx).Mul(m.SolarIrradiance).Mul(m.MieScattering)
	return rayleigh, mie
}

// RayleighPhase is the Rayleigh phase function at scattering angle cosine nu.
func RayleighPhase(nu float64) float64 {
	k := 3 / (16 * math.Pi)
	return k * (1 + nu*nu)
}

// MiePhase is the Cornette-Shanks phase function with asymmetry g.
func MiePhase(g, nu float64) float64 {
	k := 3 / (8 * math.Pi) * (1 - g*g) / (2 + g*g)
	return k * (1 + nu*nu) / math.Pow(1+g*g-2*g*nu, 1.5)
}

// Scattering table parameterisation. The four coordinates are returned in
// (ν, μ_s, μ, r) order.

func (m *medium) scatteringUVWZ(r, mu, muS, nu float64, ground bool) [4]float64 {
	h := m.horizon()
	rho := safeSqrt(r*r - m.BottomRadius*m.BottomRadius)
	uR := textureCoordFromUnitRange(rho/h, m.dims.ScatteringR)

	rMu := r * mu
	disc := rMu*rMu - r*r + m.BottomRadius*m.BottomRadius
	half := m.dims.ScatteringMu / 2
	var uMu float64
	if ground {
		d := -rMu - safeSqrt(disc)
		dMin := r - m.BottomRadius
		dMax := rho
		x := 0.0
		if dMax != dMin {
			x = (d - dMin) / (dMax - dMin)
		}
		uMu = 0.5 - 0.5*textureCoordFromUnitRange(x, half)
	} else {
		d := -rMu + safeSqrt(disc+h*h)
		dMin := m.TopRadius - r
		dMax := rho + h
		uMu = 0.5 + 0.5*textureCoordFromUnitRange((d-dMin)/(dMax-dMin), half)
	}

	d := m.distanceToTop(m.BottomRadius, muS)
	dMin := m.TopRadius - m.BottomRadius
	dMax := h
	a := (d - dMin) / (dMax - dMin)
	capD := m.distanceToTop(m.BottomRadius, m.MuSMin)
	capA := (capD - dMin) / (dMax - dMin)
	uMuS := textureCoordFromUnitRange(math.Max(1-a/capA, 0)/(1+a), m.dims.ScatteringMuS)

	return [4]float64{(nu + 1) / 2, uMuS, uMu, uR}
}

func (m *medium) scatteringRMuMuSNu(uvwz [4]float64) (r, mu, muS, nu float64, ground bool) {
	h := m.horizon()
	rho := h * unitRangeFromTextureCoord(uvwz[3], m.dims.ScatteringR)
	r = math.Sqrt(rho*rho + m.BottomRadius*m.BottomRadius)

	half := m.dims.ScatteringMu / 2
	if uvwz[2] < 0.5 {
		dMin := r - m.BottomRadius
		dMax := rho
		d := dMin + (dMax-dMin)*unitRangeFromTextureCoord(1-2*uvwz[2], half)
		mu = -1
		if d != 0 {
			mu = clampCosine(-(rho*rho + d*d) / (2 * r * d))
		}
		ground = true
	} else {
		dMin := m.TopRadius - r
		dMax := rho + h
		d := dMin + (dMax-dMin)*unitRangeFromTextureCoord(2*uvwz[2]-1, half)
		mu = 1
		if d != 0 {
			mu = clampCosine((h*h - rho*rho - d*d) / (2 * r * d))
		}
	}

	xMuS := unitRangeFromTextureCoord(uvwz[1], m.dims.ScatteringMuS)
	dMin := m.TopRadius - m.BottomRadius
	dMax := h
	capD := m.distanceToTop(m.BottomRadius, m.MuSMin)
	capA := (capD - dMin) / (dMax - dMin)
	a := (capA - xMuS*capA) / (1 + xMuS*capA)
	d := dMin + math.Min(a, capA)*(dMax-dMin)
	muS = 1
	if d != 0 {
		muS = clampCosine((h*h - d*d) / (2 * m.BottomRadius * d))
	}
	nu = clampCosine(uvwz[0]*2 - 1)
	return r, mu, muS, nu, ground
}

// scatteringTexel returns the parameters of texel (x, y, z) of a
// scattering table, with ν clamped to the range reachable from μ and μ_s.
func (m *medium) scatteringTexel(x, y, z int) (r, mu, muS, nu float64, ground bool) {
	fx := float64(x) + 0.5
	nuIndex := math.Floor(fx / float64(m.dims.ScatteringMuS))
	muSIndex := math.Mod(fx, float64(m.dims.ScatteringMuS))
	uvwz := [4]float64{
		nuIndex / float64(m.dims.ScatteringNu-1),
		muSIndex / float64(m.dims.ScatteringMuS),
		(float64(y) + 0.5) / float64(m.dims.ScatteringMu),
		(float64(z) + 0.5) / float64(m.dims.ScatteringR),
	}
	r, mu, muS, nu, ground = m.scatteringRMuMuSNu(uvwz)
	s := math.Sqrt((1 - mu*mu) * (1 - muS*muS))
	nu = clamp(nu, mu*muS-s, mu*muS+s)
	return r, mu, muS, nu, ground
}

// lookupScattering reads a scattering table, blending the two ν slices.
func (m *medium) lookupScattering(t *texture, r, mu, muS, nu float64, ground bool) Spectrum {
	uvwz := m.scatteringUVWZ(r, mu, muS, nu, ground)
	n := float64(m.dims.ScatteringNu)
	texX := uvwz[0] * (n - 1)
	fx := math.Floor(texX)
	f := texX - fx
	a := t.sample3D((fx+uvwz[1])/n, uvwz[2], uvwz[3])
	b := t.sample3D((fx+1+uvwz[1])/n, uvwz[2], uvwz[3])
	return a.Lerp(b, f)
}

// scatteringOrders bundles the delta tables of the previous order.
type scatteringOrders struct {
	rayleigh, mie, multiple *texture
}

func (m *medium) scatteringOfOrder(s scatteringOrders, r, mu, muS, nu float64, ground bool, order int) Spectrum {
	if order == 1 {
		rayleigh := m.lookupScattering(s.rayleigh, r, mu, muS, nu, ground)
		mie := m.lookupScattering(s.mie, r, mu, muS, nu, ground)
		return rayleigh.Scale(RayleighPhase(nu)).Add(mie.Scale(MiePhase(m.MiePhaseG, nu)))
	}
	return m.lookupScattering(s.multiple, r, mu, muS, nu, ground)
}

// Irradiance table parameterisation.

func (m *medium) irradianceUV(r, muS float64) (u, v float64) {
	xR := (r - m.BottomRadius) / (m.TopRadius - m.BottomRadius)
	xMuS := muS*0.5 + 0.5
	return textureCoordFromUnitRange(xMuS, m.dims.IrradianceWidth),
		textureCoordFromUnitRange(xR, m.dims.IrradianceHeight)
}

func (m *medium) irradianceRMuS(u, v float64) (r, muS float64) {
	xMuS := unitRangeFromTextureCoord(u, m.dims.IrradianceWidth)
	xR := unitRangeFromTextureCoord(v, m.dims.IrradianceHeight)
	return m.BottomRadius + xR*(m.TopRadius-m.BottomRadius), clampCosine(2*xMuS - 1)
}

func (m *medium) lookupIrradiance(t *texture, r, muS float64) Spectrum {
	u, v := m.irradianceUV(r, muS)
	return t.sample2D(u, v)
}

func (m *medium) computeDirectIrradiance(t *texture, r, muS float64) Spectrum {
	alpha := m.SunAngularRadius
	var cosine float64
	switch {
	case muS < -alpha:
		cosine = 0
	case muS > alpha:
		cosine = muS
	default:
		cosine = (muS + alpha) * (muS + alpha) / (4 * alpha)
	}
	return m.SolarIrradiance.Mul(m.transmittanceToTop(t, r, muS)).Scale(cosine)
}

type vec3 [3]float64

func dot(a, b vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// computeScatteringDensity gathers the light of the previous order
// arriving at a point from every direction and scatters it towards ω.
func (m *medium) computeScatteringDensity(t *texture, s scatteringOrders, irradiance *texture, r, mu, muS, nu float64, order int) Spectrum {
	omega := vec3{math.Sqrt(1 - mu*mu), 0, mu}
	sunX := 0.0
	if omega[0] != 0 {
		sunX = (nu - mu*muS) / omega[0]
	}
	sunY := math.Sqrt(math.Max(1-sunX*sunX-muS*muS, 0))
	omegaS := vec3{sunX, sunY, muS}

	const n = scatteringDensitySamples
	dphi := math.Pi / n
	dtheta := math.Pi / n

	alt := r - m.BottomRadius
	rayleighDensity := m.RayleighScattering.Scale(m.RayleighDensity.Density(alt))
	mieDensity := m.MieScattering.Scale(m.MieDensity.Density(alt))

	var out Spectrum
	for l := 0; l < n; l++ {
		theta := (float64(l) + 0.5) * dtheta
		cosTheta, sinTheta := math.Cos(theta), math.Sin(theta)
		ground := m.intersectsGround(r, cosTheta)

		var distanceToGround float64
		var groundTransmittance, albedo Spectrum
		if ground {
			distanceToGround = m.distanceToBottom(r, cosTheta)
			groundTransmittance = m.transmittance(t, r, cosTheta, distanceToGround, true)
			albedo = m.GroundAlbedo
		}
		for k := 0; k < 2*n; k++ {
			phi := (float64(k) + 0.5) * dphi
			omegaI := vec3{math.Cos(phi) * sinTheta, math.Sin(phi) * sinTheta, cosTheta}
			dOmega := dtheta * dphi * sinTheta

			nu1 := dot(omegaS, omegaI)
			incident := m.scatteringOfOrder(s, r, omegaI[2], muS, nu1, ground, order-1)

			normal := vec3{
				omegaI[0] * distanceToGround,
				omegaI[1] * distanceToGround,
				r + omegaI[2]*distanceToGround,
			}
			nl := math.Sqrt(dot(normal, normal))
			normal = vec3{normal[0] / nl, normal[1] / nl, normal[2] / nl}
			groundIrradiance := m.lookupIrradiance(irradiance, m.BottomRadius, dot(normal, omegaS))
			incident = incident.Add(groundTransmittance.Mul(albedo).Scale(1 / math.Pi).Mul(groundIrradiance))

			nu2 := dot(omega, omegaI)
			phase := rayleighDensity.Scale(RayleighPhase(nu2)).Add(mieDensity.Scale(MiePhase(m.MiePhaseG, nu2)))
			out = out.Add(incident.Mul(phase).Scale(dOmega))
		}
	}
	return out
}

// computeMultipleScattering integrates the scattering density along the
// view ray.
func (m *medium) computeMultipleScattering(t, density *texture, r, mu, muS, nu float64, ground bool) Spectrum {
	dx := m.distanceToNearestBoundary(r, mu, ground) / multipleScatteringSteps
	var sum Spectrum
	for i := 0; i <= multipleScatteringSteps; i++ {
		d := float64(i) * dx
		ri := m.clampRadius(math.Sqrt(d*d + 2*r*mu*d + r*r))
		mui := clampCosine((r*mu + d) / ri)
		musi := clampCosine((r*muS + d*nu) / ri)
		v := m.lookupScattering(density, ri, mui, musi, nu, ground).
			Mul(m.transmittance(t, r, mu, d, ground)).Scale(dx)
		w := 1.0
		if i == 0 || i == multipleScatteringSteps {
			w = 0.5
		}
		sum = sum.Add(v.Scale(w))
	}
	return sum
}

// computeIndirectIrradiance integrates sky radiance of the given order over
// the upper hemisphere.
func (m *medium) computeIndirectIrradiance(s scatteringOrders, r, muS float64, order int) Spectrum {
	const n = indirectIrradianceSteps
	dphi := math.Pi / n
	dtheta := math.Pi / n
	omegaS := vec3{math.Sqrt(1 - muS*muS), 0, muS}

	var out Spectrum
	for j := 0; j < n/2; j++ {
		theta := (float64(j) + 0.5) * dtheta
		for i := 0; i < 2*n; i++ {
			phi := (float64(i) + 0.5) * dphi
			omega := vec3{math.Cos(phi) * math.Sin(theta), math.Sin(phi) * math.Sin(theta), math.Cos(theta)}
			dOmega := dtheta * dphi * math.Sin(theta)
			nu := dot(omega, omegaS)
			v := m.scatteringOfOrder(s, r, omega[2], muS, nu, false, order)
			out = out.Add(v.Scale(omega[2] * dOmega))
		}
	}
	return out
}
