package atmosphere

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options controls a precompute run.
type Options struct {
	Dimensions Dimensions
	// Wavelengths is the number of spectral samples between MinLambda and
	// MaxLambda, rounded up to a multiple of four.
	Wavelengths int
	// ScatteringOrders is the highest scattering order folded into the
	// tables.
	ScatteringOrders int
	// Workers bounds the goroutines evaluating texels. Zero means
	// GOMAXPROCS.
	Workers int
	// Readback, when set, receives freshly built tables before Ensure saves
	// them and returns what is written instead. The viewer uploads the
	// tables and returns the textures read back from the GPU.
	Readback func(*Tables) (*Tables, error)
}

// DefaultOptions returns the runtime configuration.
func DefaultOptions() Options {
	return Options{
		Dimensions:       DefaultDimensions(),
		Wavelengths:      40,
		ScatteringOrders: 4,
	}
}

// Tables holds the four precomputed lookup tables as interleaved RGBA
// float32 texels, ready for upload.
type Tables struct {
	Dimensions          Dimensions
	Transmittance       []float32
	Irradiance          []float32
	Scattering          []float32
	SingleMieScattering []float32
}

// TransmittanceAt samples the transmittance table from a point altitude km
// above the ground towards the top of the atmosphere.
func (t *Tables) TransmittanceAt(model Model, altitude, mu float64) Spectrum {
	m := &medium{Parameters: model.Sample(RGBLambdas), dims: t.Dimensions}
	tex := textureFrom(t.Transmittance, t.Dimensions.TransmittanceWidth, t.Dimensions.TransmittanceHeight, 1)
	return m.transmittanceToTop(tex, model.BottomRadius+altitude, mu)
}

// builder owns the accumulated and intermediate tables of one run.
type builder struct {
	log     *zap.Logger
	dims    Dimensions
	workers int

	scattering *texture
	singleMie  *texture
	irradiance *texture

	transmittance   *texture
	deltaIrradiance *texture
	deltaRayleigh   *texture // also holds multiple scattering of the previous order
	deltaMie        *texture
	deltaDensity    *texture
}

// Precompute builds the tables for model. It is slow at full resolution:
// the scattering density pass alone gathers 512 directions per texel.
func Precompute(ctx context.Context, log *zap.Logger, model Model, opts Options) (*Tables, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dims := opts.Dimensions
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if opts.Wavelengths < 1 {
		return nil, fmt.Errorf("atmosphere: %d wavelengths", opts.Wavelengths)
	}
	if opts.ScatteringOrders < 1 {
		return nil, fmt.Errorf("atmosphere: %d scattering orders", opts.ScatteringOrders)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	sw, sh, sd := dims.ScatteringSize()
	b := &builder{
		log:             log,
		dims:            dims,
		workers:         workers,
		scattering:      newTexture(sw, sh, sd),
		singleMie:       newTexture(sw, sh, sd),
		irradiance:      newTexture(dims.IrradianceWidth, dims.IrradianceHeight, 1),
		transmittance:   newTexture(dims.TransmittanceWidth, dims.TransmittanceHeight, 1),
		deltaIrradiance: newTexture(dims.IrradianceWidth, dims.IrradianceHeight, 1),
		deltaRayleigh:   newTexture(sw, sh, sd),
		deltaMie:        newTexture(sw, sh, sd),
		deltaDensity:    newTexture(sw, sh, sd),
	}

	start := time.Now()
	iterations := (opts.Wavelengths + 3) / 4
	dl := (MaxLambda - MinLambda) / float64(4*iterations)
	for i := 0; i < iterations; i++ {
		var lambdas [4]float64
		for k := range lambdas {
			lambdas[k] = MinLambda + (float64(4*i+k)+0.5)*dl
		}
		m := &medium{Parameters: model.Sample(lambdas), dims: dims}
		lum := newRadianceToLuminance(lambdas, dl)
		log.Debug("atmosphere wavelengths",
			zap.Int("iteration", i),
			zap.Float64s("lambdas", lambdas[:]))
		if err := b.iterate(ctx, m, lum, opts.ScatteringOrders); err != nil {
			return nil, err
		}
	}

	m := &medium{Parameters: model.Sample(RGBLambdas), dims: dims}
	if err := b.computeTransmittance(ctx, m); err != nil {
		return nil, err
	}

	log.Info("atmosphere precomputed",
		zap.Int("wavelengths", 4*iterations),
		zap.Int("orders", opts.ScatteringOrders),
		zap.Int("workers", workers),
		zap.Duration("elapsed", time.Since(start)))

	return &Tables{
		Dimensions:          dims,
		Transmittance:       b.transmittance.rgba32f(),
		Irradiance:          b.irradiance.rgba32f(),
		Scattering:          b.scattering.rgba32f(),
		SingleMieScattering: b.singleMie.rgba32f(),
	}, nil
}

// run evaluates fn for every texel of t, one row per task.
func (b *builder) run(ctx context.Context, pass string, t *texture, fn func(x, y, z int)) error {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for z := 0; z < t.depth; z++ {
		for y := 0; y < t.height; y++ {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				for x := 0; x < t.width; x++ {
					fn(x, y, z)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("atmosphere %s: %w", pass, err)
	}
	b.log.Debug("atmosphere pass",
		zap.String("pass", pass),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func texelUV(x, y int, t *texture) (float64, float64) {
	return (float64(x) + 0.5) / float64(t.width), (float64(y) + 0.5) / float64(t.height)
}

func (b *builder) computeTransmittance(ctx context.Context, m *medium) error {
	t := b.transmittance
	return b.run(ctx, "transmittance", t, func(x, y, _ int) {
		r, mu := m.transmittanceRMu(texelUV(x, y, t))
		t.data[t.index(x, y, 0)] = m.computeTransmittanceToTop(r, mu)
	})
}

// iterate runs every pass for one wavelength quadruplet and folds the
// results into the accumulated tables.
func (b *builder) iterate(ctx context.Context, m *medium, lum radianceToLuminance, orders int) error {
	if err := b.computeTransmittance(ctx, m); err != nil {
		return err
	}

	di := b.deltaIrradiance
	err := b.run(ctx, "direct_irradiance", di, func(x, y, _ int) {
		r, muS := m.irradianceRMuS(texelUV(x, y, di))
		di.data[di.index(x, y, 0)] = m.computeDirectIrradiance(b.transmittance, r, muS)
	})
	if err != nil {
		return err
	}

	err = b.run(ctx, "single_scattering", b.deltaRayleigh, func(x, y, z int) {
		r, mu, muS, nu, ground := m.scatteringTexel(x, y, z)
		rayleigh, mie := m.computeSingleScattering(b.transmittance, r, mu, muS, nu, ground)
		i := b.deltaRayleigh.index(x, y, z)
		b.deltaRayleigh.data[i] = rayleigh
		b.deltaMie.data[i] = mie
		b.scattering.data[i] = b.scattering.data[i].Add(lum.apply(rayleigh))
		b.singleMie.data[i] = b.singleMie.data[i].Add(lum.apply(mie))
	})
	if err != nil {
		return err
	}

	prev := scatteringOrders{rayleigh: b.deltaRayleigh, mie: b.deltaMie, multiple: b.deltaRayleigh}
	for order := 2; order <= orders; order++ {
		dd := b.deltaDensity
		err := b.run(ctx, "scattering_density", dd, func(x, y, z int) {
			r, mu, muS, nu, _ := m.scatteringTexel(x, y, z)
			dd.data[dd.index(x, y, z)] = m.computeScatteringDensity(b.transmittance, prev, di, r, mu, muS, nu, order)
		})
		if err != nil {
			return err
		}

		err = b.run(ctx, "indirect_irradiance", di, func(x, y, _ int) {
			r, muS := m.irradianceRMuS(texelUV(x, y, di))
			i := di.index(x, y, 0)
			di.data[i] = m.computeIndirectIrradiance(prev, r, muS, order-1)
			b.irradiance.data[i] = b.irradiance.data[i].Add(lum.apply(di.data[i]))
		})
		if err != nil {
			return err
		}

		dm := b.deltaRayleigh
		err = b.run(ctx, "multiple_scattering", dm, func(x, y, z int) {
			r, mu, muS, nu, ground := m.scatteringTexel(x, y, z)
			i := dm.index(x, y, z)
			dm.data[i] = m.computeMultipleScattering(b.transmittance, dd, r, mu, muS, nu, ground)
			b.scattering.data[i] = b.scattering.data[i].Add(lum.apply(dm.data[i].Scale(1 / RayleighPhase(nu))))
		})
		if err != nil {
			return err
		}
	}
	return nil
}
