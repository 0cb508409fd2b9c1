package deferred

import "image/color"

// DebugColorsByLevel tints wireframes and the level view by patch level.
var DebugColorsByLevel = [19][3]float32{
	{0.75, 0.25, 0.25},
	{0.25, 0.75, 0.75},
	{0.75, 0.42, 0.25},
	{0.25, 0.58, 0.75},
	{0.75, 0.58, 0.25},
	{0.25, 0.42, 0.75},
	{0.75, 0.75, 0.25},
	{0.25, 0.25, 0.75},
	{0.58, 0.75, 0.25},
	{0.42, 0.25, 0.75},
	{0.58, 0.25, 0.75},
	{0.42, 0.75, 0.25},
	{0.25, 0.75, 0.25},
	{0.75, 0.25, 0.75},
	{0.25, 0.75, 0.42},
	{0.75, 0.25, 0.58},
	{0.25, 0.75, 0.58},
	{0.75, 0.25, 0.42},
	{0.10, 0.75, 0.72},
}

// LevelColor returns the opaque debug colour of a level, cycling past the
// end of the table.
func LevelColor(level int) color.NRGBA {
	n := len(DebugColorsByLevel)
	c := DebugColorsByLevel[((level%n)+n)%n]
	return color.NRGBA{
		R: uint8(c[0]*255 + 0.5),
		G: uint8(c[1]*255 + 0.5),
		B: uint8(c[2]*255 + 0.5),
		A: 255,
	}
}
