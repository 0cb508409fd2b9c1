package terrain

import (
	"fmt"
	"strings"

	"github.com/Faultbox/orbis/internal/terrain/patch"
)

// DetailLevel selects one row of the CPU and GPU detail tables.
type DetailLevel int

// Detail levels.
const (
	DetailLow DetailLevel = iota
	DetailMedium
	DetailHigh
	DetailUltra
)

var detailNames = [...]string{"low", "medium", "high", "ultra"}

// String returns the lower-case name used in config files.
func (d DetailLevel) String() string {
	if d >= 0 && int(d) < len(detailNames) {
		return detailNames[d]
	}
	return fmt.Sprintf("DetailLevel(%d)", int(d))
}

// ParseDetailLevel parses a detail level name.
func ParseDetailLevel(s string) (DetailLevel, error) {
	for i, name := range detailNames {
		if strings.EqualFold(s, name) {
			return DetailLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown detail level %q (want low, medium, high or ultra)", s)
}

// CPUDetail sizes the patch tree.
type CPUDetail struct {
	MaxLevel         int
	TargetRefinement float64
	Patches          int
}

// GPUDetail sizes the tessellation and the tile atlases.
type GPUDetail struct {
	Subdivisions  int
	TileCacheSize int
}

var cpuDetails = [...]CPUDetail{
	DetailLow:    {MaxLevel: 11, TargetRefinement: 150, Patches: 200},
	DetailMedium: {MaxLevel: 15, TargetRefinement: 150, Patches: 300},
	DetailHigh:   {MaxLevel: 16, TargetRefinement: 150, Patches: 400},
	DetailUltra:  {MaxLevel: 17, TargetRefinement: 150, Patches: 500},
}

var gpuDetails = [...]GPUDetail{
	DetailLow:    {Subdivisions: 4, TileCacheSize: 32},
	DetailMedium: {Subdivisions: 5, TileCacheSize: 64},
	DetailHigh:   {Subdivisions: 6, TileCacheSize: 128},
	DetailUltra:  {Subdivisions: 7, TileCacheSize: 256},
}

// CPU returns the patch tree sizing of d.
func (d DetailLevel) CPU() CPUDetail { return cpuDetails[d] }

// TreeConfig returns the patch tree configuration of c.
func (c CPUDetail) TreeConfig() patch.Config {
	return patch.Config{
		MaxLevel:         c.MaxLevel,
		TargetRefinement: c.TargetRefinement,
		Patches:          c.Patches,
	}
}

// GPU returns the tessellation and atlas sizing of d.
func (d DetailLevel) GPU() GPUDetail { return gpuDetails[d] }
