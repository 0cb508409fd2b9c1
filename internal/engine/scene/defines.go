package scene

import (
	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/internal/terrain/tile"
	"github.com/Faultbox/orbis/pkg/formats"
)

// Buffer and texture bindings shared by the shaders.
const (
	seedsBinding    = 0
	verticesBinding = 1
	parentsBinding  = 2
	tileInfoBinding = 3

	colorImageUnit  = 0
	normalImageUnit = 1

	indexUnit   = 0
	atlasUnit   = 1
	gbufferUnit = 2
)

// tessellation passes, matching the PASS_* defines.
const (
	passPrepare uint32 = iota
	passExpand
	passFinish
	passDisplace
)

// defines returns the constants every terrain shader is compiled with, plus
// the given bare names.
func defines(names ...string) map[string]any {
	d := map[string]any{
		"TILE_EXTENT":        formats.TileExtent,
		"TILE_PHYSICAL_SIZE": formats.TilePhysicalSize,
		"INDEX_WIDTH":        tile.IndexWidth,
		"INDEX_HEIGHT":       tile.IndexHeight,
		"INDEX_EMPTY":        tile.IndexEmpty,
		"TILE_INFO_BINDING":  tileInfoBinding,
		"PLANET_RADIUS_KM":   float64(patch.Radius),
		"NORMAL_SCALE":       deferred.NormalScale,
		"WORKGROUP_SIZE":     deferred.WorkgroupSize,
		"PALETTE_SIZE":       len(deferred.DebugColorsByLevel),
		"PASS_PREPARE":       passPrepare,
		"PASS_EXPAND":        passExpand,
		"PASS_FINISH":        passFinish,
		"PASS_DISPLACE":      passDisplace,
	}
	for _, n := range names {
		d[n] = nil
	}
	return d
}

// palette returns the level colours as a uniform array.
func palette() [][3]float32 {
	return deferred.DebugColorsByLevel[:]
}

func groups(n, size int) int {
	return (n + size - 1) / size
}
