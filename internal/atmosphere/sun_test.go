package atmosphere

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

func TestSunDirection(t *testing.T) {
	equinoxNoon := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantDot float64 // sign of the dot product with the local up vector
	}{
		{"overhead at the sub-solar point", 0, 0, 1},
		{"below the far side", 0, 180, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := geodesy.Surface(tt.lat, tt.lon, 0)
			if err != nil {
				t.Fatal(err)
			}
			d := SunDirection(equinoxNoon, g)
			if math.Abs(r3.Norm(d)-1) > 1e-9 {
				t.Fatalf("direction %v is not unit length", d)
			}
			if got := r3.Dot(d, g.Up()) * tt.wantDot; got < 0.99 {
				t.Errorf("dot with up = %g, want %g", got*tt.wantDot, tt.wantDot)
			}
		})
	}
}

func TestSunAzimuthIsFromNorth(t *testing.T) {
	// Morning sun at the equator rises in the east.
	g, err := geodesy.Surface(0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	p := SunAt(time.Date(2024, 3, 20, 7, 0, 0, 0, time.UTC), g)
	if math.Abs(p.Azimuth-math.Pi/2) > geodesy.Radians(5) {
		t.Errorf("azimuth = %.1f°, want about 90°", geodesy.Degrees(p.Azimuth))
	}
	if l := p.Local(); l.X <= 0 {
		t.Errorf("local direction %v does not point east", l)
	}
}

func TestClock(t *testing.T) {
	c := NewClock(time.Unix(0, 0))
	if err := c.SetDateTime(2024, 3, 20, 12, 0, 0); err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC).UnixMilli()
	if got := c.UnixMs(); got != want {
		t.Errorf("UnixMs = %d, want %d", got, want)
	}
	c.Advance(time.Second)
	if got := c.UnixMs(); got != want+1000 {
		t.Errorf("after Advance UnixMs = %d", got)
	}
	c.SetUnixMs(42)
	if got := c.Time(); !got.Equal(time.UnixMilli(42)) {
		t.Errorf("Time = %v", got)
	}

	for _, bad := range [][6]int{
		{2024, 13, 1, 0, 0, 0},
		{2024, 2, 30, 0, 0, 0},
		{2024, 1, 1, 24, 0, 0},
	} {
		err := c.SetDateTime(bad[0], bad[1], bad[2], bad[3], bad[4], bad[5])
		if !errors.Is(err, geodesy.ErrOutOfRange) {
			t.Errorf("SetDateTime%v: err = %v, want ErrOutOfRange", bad, err)
		}
	}
}
