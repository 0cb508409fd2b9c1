package debug

import (
	"image"
	"image/color"
	"testing"

	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/pkg/formats"
)

const size = formats.TilePhysicalSize

func TestTileImageColorIsNorthUp(t *testing.T) {
	raw := make([]byte, size*size*4)
	// First stored row is the southern edge.
	for col := 0; col < size; col++ {
		copy(raw[col*4:], []byte{255, 0, 0, 255})
	}
	img, err := TileImage(formats.KindColor, raw)
	if err != nil {
		t.Fatal(err)
	}
	if got := color.NRGBAModel.Convert(img.At(3, size-1)).(color.NRGBA); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("bottom row %v, want red", got)
	}
	if got := color.NRGBAModel.Convert(img.At(3, 0)).(color.NRGBA); got.R != 0 {
		t.Errorf("top row %v, want black", got)
	}
}

func TestTileImageHeightStretchesRange(t *testing.T) {
	h := make(formats.HeightTile, size*size)
	for i := range h {
		h[i] = 100
	}
	h[0] = -50
	h[len(h)-1] = 900
	img, err := TileImage(formats.KindHeight, h.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	g := img.(*image.Gray16)
	if v := g.Gray16At(0, size-1).Y; v != 0 {
		t.Errorf("lowest sample %d, want 0", v)
	}
	if v := g.Gray16At(size-1, 0).Y; v != 0xFFFF {
		t.Errorf("highest sample %d, want 65535", v)
	}
}

func TestTileImageNormalUp(t *testing.T) {
	raw := make([]byte, size*size*4)
	e := deferred.EncodeNormal([3]float64{0, 0, 1})
	for i := 0; i < size*size; i++ {
		raw[i*4], raw[i*4+1] = byte(e[0]), byte(uint16(e[0])>>8)
		raw[i*4+2], raw[i*4+3] = byte(e[1]), byte(uint16(e[1])>>8)
	}
	img, err := TileImage(formats.KindNormal, raw)
	if err != nil {
		t.Fatal(err)
	}
	c := img.(*image.NRGBA).NRGBAAt(10, 10)
	if c.R != 128 || c.G != 128 || c.B != 255 {
		t.Errorf("up normal shown as %v", c)
	}
}

func TestTileImageRejectsSize(t *testing.T) {
	if _, err := TileImage(formats.KindColor, make([]byte, 12)); err == nil {
		t.Error("expected an error for a short tile")
	}
}

func TestScale(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 4))
	for _, tt := range []struct {
		factor float64
		smooth bool
		w, h   int
	}{
		{2, true, 16, 8},
		{0.5, false, 4, 2},
		{0.01, true, 1, 1},
	} {
		b := Scale(src, tt.factor, tt.smooth).Bounds()
		if b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("factor %v: %dx%d, want %dx%d", tt.factor, b.Dx(), b.Dy(), tt.w, tt.h)
		}
	}
	if Scale(src, 1, true) != image.Image(src) {
		t.Error("factor 1 should return the source")
	}
}
