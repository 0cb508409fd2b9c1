package formats

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

func TestDecodeBz2HeightTile(t *testing.T) {
	stored, err := os.ReadFile("testdata/height_tile.raw.bz2")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	raw, err := DecodeTile(KindHeight, CompressionBz2, stored)
	if err != nil {
		t.Fatalf("DecodeTile: %v", err)
	}
	h, err := ParseHeightTile(raw)
	if err != nil {
		t.Fatal(err)
	}
	for _, rc := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {511, 511}, {200, 17}} {
		want := int16((rc[0]*7+rc[1]*3)%2000 - 1000)
		if got := h.At(rc[0], rc[1]); got != want {
			t.Errorf("At(%d, %d) = %d, want %d", rc[0], rc[1], got, want)
		}
	}
	lo, hi := h.Range()
	if lo != -1000 || hi != 999 {
		t.Errorf("Range() = (%d, %d), want (-1000, 999)", lo, hi)
	}
}

func TestDecodeZstdRoundTrip(t *testing.T) {
	raw := make([]byte, KindHeight.RawTileSize())
	for i := range raw {
		raw[i] = byte(i * 31)
	}
	stored, err := Compress(CompressionZstd, raw)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeTile(KindHeight, CompressionZstd, stored)
	if err != nil {
		t.Fatalf("DecodeTile: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Error("zstd round trip changed the tile")
	}
}

func TestDecodeColorExpandsRGB(t *testing.T) {
	raw := make([]byte, KindColor.RawTileSize())
	raw[0], raw[1], raw[2] = 10, 20, 30
	raw[3], raw[4], raw[5] = 40, 50, 60

	got, err := DecodeTile(KindColor, CompressionNone, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != TilePhysicalSize*TilePhysicalSize*4 {
		t.Fatalf("len = %d, want RGBA size", len(got))
	}
	want := []byte{10, 20, 30, 255, 40, 50, 60, 255}
	if !bytes.Equal(got[:8], want) {
		t.Errorf("first pixels = %v, want %v", got[:8], want)
	}
}

func TestDecodeWrongSize(t *testing.T) {
	if _, err := DecodeTile(KindHeight, CompressionNone, make([]byte, 100)); !errors.Is(err, ErrTileSize) {
		t.Errorf("error = %v, want ErrTileSize", err)
	}
	stored, _ := Compress(CompressionZstd, make([]byte, 100))
	if _, err := DecodeTile(KindHeight, CompressionZstd, stored); !errors.Is(err, ErrTileSize) {
		t.Errorf("zstd error = %v, want ErrTileSize", err)
	}
}

func TestDecodeNoneCopies(t *testing.T) {
	raw := make([]byte, KindHeight.RawTileSize())
	got, err := DecodeTile(KindHeight, CompressionNone, raw)
	if err != nil {
		t.Fatal(err)
	}
	got[0] = 1
	if raw[0] != 0 {
		t.Error("DecodeTile must not alias uncompressed input")
	}
}

func TestCompressBz2Unsupported(t *testing.T) {
	if _, err := Compress(CompressionBz2, []byte{1}); err == nil {
		t.Error("bz2 encoding should be rejected")
	}
}
