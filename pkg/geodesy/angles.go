package geodesy

import "math"

// ArcSecondsPerRadian converts radians to arcseconds.
const ArcSecondsPerRadian = 180 * 3600 / math.Pi

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// ArcSeconds converts radians to arcseconds.
func ArcSeconds(rad float64) float64 { return rad * ArcSecondsPerRadian }

// FromArcSeconds converts arcseconds to radians.
func FromArcSeconds(as float64) float64 { return as / ArcSecondsPerRadian }
