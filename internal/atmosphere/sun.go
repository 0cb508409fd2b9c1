package atmosphere

import (
	"fmt"
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

// SunPosition is the sun in the horizontal frame of an observer. Angles
// are radians; azimuth is clockwise from north.
type SunPosition struct {
	Altitude float64
	Azimuth  float64
}

// SunAt returns the sun position seen from g at instant t.
func SunAt(t time.Time, g geodesy.Graticule) SunPosition {
	p := suncalc.GetPosition(t, g.LatDeg(), g.LonDeg())
	// suncalc measures azimuth from south, positive towards west.
	return SunPosition{Altitude: p.Altitude, Azimuth: math.Mod(p.Azimuth+math.Pi, 2*math.Pi)}
}

// Local returns the unit direction to the sun in (east, north, up).
func (p SunPosition) Local() r3.Vec {
	sinAl, cosAl := math.Sincos(p.Altitude)
	sinAz, cosAz := math.Sincos(p.Azimuth)
	return r3.Vec{X: sinAz * cosAl, Y: cosAz * cosAl, Z: sinAl}
}

// SunDirection returns the geocentric unit direction to the sun for an
// observer at g.
func SunDirection(t time.Time, g geodesy.Graticule) r3.Vec {
	l := SunAt(t, g).Local()
	d := r3.Add(r3.Add(r3.Scale(l.X, g.East()), r3.Scale(l.Y, g.North())), r3.Scale(l.Z, g.Up()))
	return r3.Unit(d)
}

// Clock is the simulated instant that drives the sun. It starts at the
// wall clock and only moves when set.
type Clock struct {
	t time.Time
}

// NewClock returns a clock at t in UTC.
func NewClock(t time.Time) *Clock { return &Clock{t: t.UTC()} }

// Time returns the current instant.
func (c *Clock) Time() time.Time { return c.t }

// UnixMs returns the current instant in Unix milliseconds.
func (c *Clock) UnixMs() int64 { return c.t.UnixMilli() }

// SetUnixMs moves the clock to a Unix millisecond timestamp.
func (c *Clock) SetUnixMs(ms int64) { c.t = time.UnixMilli(ms).UTC() }

// SetDateTime moves the clock to a UTC calendar date and time.
func (c *Clock) SetDateTime(year, month, day, hour, minute, second int) error {
	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 60 {
		return fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d:%02d",
			geodesy.ErrOutOfRange, year, month, day, hour, minute, second)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day {
		return fmt.Errorf("%w: %04d-%02d has no day %d", geodesy.ErrOutOfRange, year, month, day)
	}
	c.t = t
	return nil
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) { c.t = c.t.Add(d) }
