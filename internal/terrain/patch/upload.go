package patch

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/pkg/geodesy"
)

// UploadVertex is the GPU layout of a seed and of every tessellated vertex
// (std430, 48 bytes).
type UploadVertex struct {
	// Position is geocentric kilometres; w holds the patch level.
	Position [4]float32
	Normal   [4]float32
	// Graticule is (lat, lon) in radians, lon unwrapped for the patch.
	Graticule [4]float32
}

// UploadVertexSize is the byte size of UploadVertex.
const UploadVertexSize = 48

// AppendSeeds appends three seed vertices per selected leaf to dst, then
// zero vertices up to 3·patches.
func AppendSeeds(dst []UploadVertex, sel *Selection) []UploadVertex {
	for _, leaf := range sel.Leaves {
		g := UnwrapLongitudes([3]geodesy.Graticule{
			geodesy.FromCartesian(leaf.Corners[0]),
			geodesy.FromCartesian(leaf.Corners[1]),
			geodesy.FromCartesian(leaf.Corners[2]),
		})
		for k, c := range leaf.Corners {
			n := r3.Unit(c)
			dst = append(dst, UploadVertex{
				Position:  [4]float32{float32(c.X), float32(c.Y), float32(c.Z), float32(leaf.Level)},
				Normal:    [4]float32{float32(n.X), float32(n.Y), float32(n.Z), 0},
				Graticule: [4]float32{float32(g[k].Lat), float32(g[k].Lon), 0, 0},
			})
		}
	}
	for n := 3 * len(sel.Leaves); n < 3*sel.Patches; n++ {
		dst = append(dst, UploadVertex{})
	}
	return dst
}

// DrawList groups patch slots by winding: entry w lists the base vertex of
// every patch drawn with w. Padding slots are drawn with Full.
func DrawList(sel *Selection, stride int) [NumWindings][]int32 {
	var out [NumWindings][]int32
	for i, leaf := range sel.Leaves {
		out[leaf.Winding] = append(out[leaf.Winding], int32(i*stride))
	}
	for i := len(sel.Leaves); i < sel.Patches; i++ {
		out[Full] = append(out[Full], int32(i*stride))
	}
	return out
}
