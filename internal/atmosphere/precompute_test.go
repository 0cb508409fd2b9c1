package atmosphere

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap/zaptest"
)

// smallOptions keeps test builds to a few hundred scattering texels.
func smallOptions() Options {
	return Options{
		Dimensions: Dimensions{
			TransmittanceWidth:  16,
			TransmittanceHeight: 4,
			IrradianceWidth:     8,
			IrradianceHeight:    4,
			ScatteringR:         4,
			ScatteringMu:        8,
			ScatteringMuS:       4,
			ScatteringNu:        2,
		},
		Wavelengths:      4,
		ScatteringOrders: 2,
		Workers:          2,
	}
}

func buildSmall(t *testing.T) *Tables {
	t.Helper()
	tables, err := Precompute(context.Background(), zaptest.NewLogger(t), Earth(), smallOptions())
	if err != nil {
		t.Fatalf("Precompute: %v", err)
	}
	return tables
}

func TestSeaLevelZenithTransmittance(t *testing.T) {
	tables := buildSmall(t)
	tr := tables.TransmittanceAt(Earth(), 0, 1)

	// Red passes more light than green, green more than blue.
	if !(tr[0] > tr[1] && tr[1] > tr[2]) {
		t.Fatalf("transmittance %v does not increase with wavelength", tr)
	}

	rayleighOnly := math.Exp(-RayleighScattering(RGBLambdas[2]) * Earth().RayleighScaleHeight)
	if rel := math.Abs(tr[2]-rayleighOnly) / rayleighOnly; rel > 0.01 {
		t.Errorf("blue transmittance %g is %.2f%% from exp(-βR·H) = %g", tr[2], rel*100, rayleighOnly)
	}
}

func TestPrecomputeTableSizes(t *testing.T) {
	tables := buildSmall(t)
	d := tables.Dimensions
	sw, sh, sd := d.ScatteringSize()
	tests := []struct {
		name string
		data []float32
		want int
	}{
		{"transmittance", tables.Transmittance, d.TransmittanceWidth * d.TransmittanceHeight * 4},
		{"irradiance", tables.Irradiance, d.IrradianceWidth * d.IrradianceHeight * 4},
		{"scattering", tables.Scattering, sw * sh * sd * 4},
		{"single mie", tables.SingleMieScattering, sw * sh * sd * 4},
	}
	for _, tt := range tests {
		if len(tt.data) != tt.want {
			t.Errorf("%s has %d floats, want %d", tt.name, len(tt.data), tt.want)
		}
		for i, v := range tt.data {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("%s[%d] = %g", tt.name, i, v)
			}
		}
	}
}

func TestPrecomputeScattersLight(t *testing.T) {
	tables := buildSmall(t)
	var sky, irradiance float64
	for i := 0; i < len(tables.Scattering); i += 4 {
		sky += float64(tables.Scattering[i+2])
	}
	for i := 0; i < len(tables.Irradiance); i += 4 {
		irradiance += float64(tables.Irradiance[i+2])
	}
	if sky <= 0 {
		t.Error("scattering table holds no blue light")
	}
	if irradiance <= 0 {
		t.Error("second order left no indirect irradiance")
	}
}

func TestPrecomputeRejectsBadOptions(t *testing.T) {
	opts := smallOptions()
	opts.Dimensions.ScatteringMu = 7
	_, err := Precompute(context.Background(), nil, Earth(), opts)
	if !errors.Is(err, ErrBadDimensions) {
		t.Errorf("odd μ size: err = %v, want ErrBadDimensions", err)
	}

	opts = smallOptions()
	opts.ScatteringOrders = 0
	if _, err := Precompute(context.Background(), nil, Earth(), opts); err == nil {
		t.Error("zero scattering orders accepted")
	}
}

func TestPrecomputeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Precompute(ctx, nil, Earth(), smallOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
