package debug

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/pkg/formats"
)

// TileImage renders a decoded tile (as returned by formats.DecodeTile) with
// north up. Heights are stretched over the tile's own range and normals
// are shown as n·0.5+0.5.
func TileImage(kind formats.DataKind, decoded []byte) (image.Image, error) {
	const size = formats.TilePhysicalSize
	want := size * size * kind.AtlasBytesPerSample()
	if len(decoded) != want {
		return nil, fmt.Errorf("tile preview: %d bytes for a %s tile, want %d", len(decoded), kind, want)
	}
	rect := image.Rect(0, 0, size, size)
	// Stored rows run south to north.
	flip := func(row int) int { return size - 1 - row }

	switch kind {
	case formats.KindColor:
		img := image.NewNRGBA(rect)
		for row := 0; row < size; row++ {
			y := flip(row)
			copy(img.Pix[y*img.Stride:y*img.Stride+size*4], decoded[row*size*4:(row+1)*size*4])
		}
		return img, nil

	case formats.KindHeight:
		h, err := formats.ParseHeightTile(decoded)
		if err != nil {
			return nil, err
		}
		lo, hi := h.Range()
		span := float64(hi) - float64(lo)
		img := image.NewGray16(rect)
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				var v float64
				if span > 0 {
					v = (float64(h.At(row, col)) - float64(lo)) / span
				}
				img.SetGray16(col, flip(row), color.Gray16{Y: uint16(v * 0xFFFF)})
			}
		}
		return img, nil

	case formats.KindNormal:
		img := image.NewNRGBA(rect)
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				i := (row*size + col) * 4
				n := deferred.DecodeNormal([2]int16{
					int16(binary.LittleEndian.Uint16(decoded[i:])),
					int16(binary.LittleEndian.Uint16(decoded[i+2:])),
				})
				img.SetNRGBA(col, flip(row), color.NRGBA{
					R: unit8(n[0]), G: unit8(n[1]), B: unit8(n[2]), A: 0xFF,
				})
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("tile preview: unknown kind %s", kind)
}

func unit8(v float64) uint8 {
	return uint8(max(0, min(255, (v*0.5+0.5)*255+0.5)))
}

// Scale resizes img by factor with Catmull-Rom filtering, or
// nearest-neighbour when smooth is false. Factors below 1 shrink.
func Scale(img image.Image, factor float64, smooth bool) image.Image {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor+0.5))
	h := max(1, int(float64(b.Dy())*factor+0.5))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	var s draw.Scaler = draw.NearestNeighbor
	if smooth {
		s = draw.CatmullRom
	}
	s.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// SavePNG writes img as <name>.png in the dump directory.
func (d *Dumper) SavePNG(name string, img image.Image) (string, error) {
	return d.save(name+".png", img)
}
