package debug

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveIndex(t *testing.T) {
	d := NewDumper(filepath.Join(t.TempDir(), "dump"))
	index := []uint16{0xFFFF, 0x0102, 7, 300, 0, 1}

	path, err := d.SaveIndex("earth-height", index, 3, 2)
	if err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}
	if filepath.Base(path) != "terrain_index_earth-height.png" {
		t.Errorf("dump written to %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{0xFF, 0x02, 7, 44, 0, 1}
	for i, w := range want {
		r, _, _, _ := img.At(i%3, i/3).RGBA()
		if uint8(r>>8) != w {
			t.Errorf("pixel %d = %d, want %d", i, r>>8, w)
		}
	}
}

func TestIndexImageSizeMismatch(t *testing.T) {
	if _, err := IndexImage(make([]uint16, 5), 3, 2); err == nil {
		t.Error("expected an error for 5 texels in a 3x2 image")
	}
}

func TestSaveFrameFlipsRows(t *testing.T) {
	d := NewDumper(t.TempDir())
	d.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	// 1x2 frame: GL bottom row red, top row blue.
	pixels := []byte{255, 0, 0, 255, 0, 0, 255, 255}
	path, err := d.SaveFrame("frame", pixels, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "frame_2024-03-01_12-00-00.png" {
		t.Errorf("frame written to %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, b, _ := img.At(0, 0).RGBA(); b != 0xFFFF {
		t.Error("top row should be blue after the flip")
	}
	if _, err := d.SaveFrame("frame", pixels[:4], 1, 2); err == nil {
		t.Error("short frame accepted")
	}
}
