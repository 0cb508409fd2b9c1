package scene

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/orbis/internal/engine/framebuffer"
	"github.com/Faultbox/orbis/internal/terrain/tile"
	"github.com/Faultbox/orbis/pkg/formats"
)

type layerFormat struct {
	internal uint32
	format   uint32
	xtype    uint32
}

// Layer texture formats by data kind. Integer samples upload in host byte
// order, which matches the little-endian tile payloads on every supported
// platform.
var layerFormats = [...]layerFormat{
	formats.KindColor:  {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
	formats.KindNormal: {gl.RG16I, gl.RG_INTEGER, gl.SHORT},
	formats.KindHeight: {gl.R16I, gl.RED_INTEGER, gl.SHORT},
}

const tileInfoSize = int(unsafe.Sizeof(tile.TileInfo{}))

// Atlas is the GL storage of one tile set: a 2D array texture with one
// layer per slot, the tile info buffer indexed by slot, and the R16UI
// index texture. It implements tile.Atlas and must only be used on the
// thread that owns the GL context.
type Atlas struct {
	kind     formats.DataKind
	capacity int
	format   layerFormat
	layers   uint32
	infos    uint32
	index    *framebuffer.Framebuffer
	painter  *IndexPainter
}

// NewAtlas allocates an atlas with capacity slots.
func NewAtlas(kind formats.DataKind, capacity int, painter *IndexPainter) (*Atlas, error) {
	if int(kind) >= len(layerFormats) {
		return nil, fmt.Errorf("atlas: unsupported kind %v", kind)
	}
	if capacity <= 0 || capacity >= tile.IndexEmpty {
		return nil, fmt.Errorf("atlas: capacity %d out of range", capacity)
	}
	var maxLayers int32
	gl.GetIntegerv(gl.MAX_ARRAY_TEXTURE_LAYERS, &maxLayers)
	if capacity > int(maxLayers) {
		return nil, fmt.Errorf("atlas: capacity %d exceeds %d array layers", capacity, maxLayers)
	}

	a := &Atlas{
		kind:     kind,
		capacity: capacity,
		format:   layerFormats[kind],
		painter:  painter,
	}

	const size = formats.TilePhysicalSize
	gl.GenTextures(1, &a.layers)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, a.layers)
	gl.TexStorage3D(gl.TEXTURE_2D_ARRAY, 1, a.format.internal, size, size, int32(capacity))
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, 0)

	gl.GenBuffers(1, &a.infos)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, a.infos)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, capacity*tileInfoSize, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)

	index, err := newIndexTarget()
	if err != nil {
		a.Destroy()
		return nil, err
	}
	a.index = index
	a.PaintIndex(nil)
	return a, nil
}

// Kind returns the data kind of the layers.
func (a *Atlas) Kind() formats.DataKind { return a.kind }

// Capacity returns the number of slots.
func (a *Atlas) Capacity() int { return a.capacity }

// UploadTile copies a decoded tile into layer slot.
func (a *Atlas) UploadTile(slot int, data []byte) {
	const size = formats.TilePhysicalSize
	want := size * size * a.kind.AtlasBytesPerSample()
	if len(data) != want {
		panic(fmt.Sprintf("atlas upload: slot %d got %d bytes, want %d", slot, len(data), want))
	}
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, a.layers)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage3D(gl.TEXTURE_2D_ARRAY, 0, 0, 0, int32(slot), size, size, 1,
		a.format.format, a.format.xtype, gl.Ptr(data))
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, 0)
}

// WriteTileInfo updates the info entry of slot.
func (a *Atlas) WriteTileInfo(slot int, info tile.TileInfo) {
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, a.infos)
	gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, slot*tileInfoSize, tileInfoSize, unsafe.Pointer(&info))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
}

// PaintIndex repaints the index from scratch.
func (a *Atlas) PaintIndex(vertices []tile.IndexPaintVertex) {
	a.painter.Paint(a.index, vertices)
}

// ReadIndex reads the index texture back. GL row 0 is the lowest texel row,
// which the paint vertices map to the north edge.
func (a *Atlas) ReadIndex() ([]uint16, error) {
	out := make([]uint16, tile.IndexWidth*tile.IndexHeight)
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(out)*2)
	if err := a.index.ReadColor(0, raw); err != nil {
		return nil, err
	}
	return out, nil
}

// bind makes the atlas visible to the common shader lookups: the index on
// indexUnit, the layers on atlasUnit and the tile infos on tileInfoBinding.
func (a *Atlas) bind() {
	gl.ActiveTexture(gl.TEXTURE0 + indexUnit)
	gl.BindTexture(gl.TEXTURE_2D, a.index.ColorTexture(0))
	gl.ActiveTexture(gl.TEXTURE0 + atlasUnit)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, a.layers)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, tileInfoBinding, a.infos)
}

// Destroy releases the atlas.
func (a *Atlas) Destroy() {
	if a.index != nil {
		a.index.Destroy()
		a.index = nil
	}
	if a.infos != 0 {
		gl.DeleteBuffers(1, &a.infos)
		a.infos = 0
	}
	if a.layers != 0 {
		gl.DeleteTextures(1, &a.layers)
		a.layers = 0
	}
}

var _ tile.Atlas = (*Atlas)(nil)
