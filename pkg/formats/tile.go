package formats

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrTileSize is returned when a decoded tile is not exactly the raw size
// its data kind requires.
var ErrTileSize = errors.New("decoded tile has wrong size")

// A single decoder serves every goroutine; DecodeAll is safe for concurrent use.
var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

var zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
})

// Decompress removes the tile framing and checks the result is exactly
// the raw tile size of kind.
func Decompress(kind DataKind, c Compression, stored []byte) ([]byte, error) {
	want := kind.RawTileSize()
	var raw []byte
	switch c {
	case CompressionNone:
		raw = stored
	case CompressionBz2:
		raw = make([]byte, want)
		r := bzip2.NewReader(bytes.NewReader(stored))
		n, err := io.ReadFull(r, raw)
		if err != nil {
			return nil, fmt.Errorf("bz2 tile: %w (after %d bytes)", err, n)
		}
		var extra [1]byte
		if m, _ := r.Read(extra[:]); m != 0 {
			return nil, fmt.Errorf("%w: bz2 stream longer than %d bytes", ErrTileSize, want)
		}
	case CompressionZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		if raw, err = dec.DecodeAll(stored, make([]byte, 0, want)); err != nil {
			return nil, fmt.Errorf("zstd tile: %w", err)
		}
	default:
		return nil, fmt.Errorf("tile: unknown %s", c)
	}
	if len(raw) != want {
		return nil, fmt.Errorf("%w: %d bytes, want %d for %s", ErrTileSize, len(raw), want, kind)
	}
	return raw, nil
}

// Compress frames a raw tile for storage. Bz2 is read-only.
func Compress(c Compression, raw []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(raw, nil), nil
	default:
		return nil, fmt.Errorf("tile: cannot encode %s", c)
	}
}

// DecodeTile turns a stored tile into the bytes uploaded to the atlas:
// decompressed, size checked, and colour widened from RGB to RGBA.
func DecodeTile(kind DataKind, c Compression, stored []byte) ([]byte, error) {
	raw, err := Decompress(kind, c, stored)
	if err != nil {
		return nil, err
	}
	if kind == KindColor {
		return ExpandRGB(raw), nil
	}
	if c == CompressionNone {
		// Stored bytes may alias a read-only mapping.
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	}
	return raw, nil
}

// ExpandRGB widens packed RGB samples to RGBA with opaque alpha.
func ExpandRGB(rgb []byte) []byte {
	n := len(rgb) / 3
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		out[i*4+0] = rgb[i*3+0]
		out[i*4+1] = rgb[i*3+1]
		out[i*4+2] = rgb[i*3+2]
		out[i*4+3] = 0xFF
	}
	return out
}

// HeightTile is a decoded height tile: signed metres relative to sea level,
// row-major from south to north.
type HeightTile []int16

// ParseHeightTile interprets raw little-endian samples.
func ParseHeightTile(raw []byte) (HeightTile, error) {
	if len(raw) != KindHeight.RawTileSize() {
		return nil, fmt.Errorf("%w: %d bytes", ErrTileSize, len(raw))
	}
	h := make(HeightTile, TilePhysicalSize*TilePhysicalSize)
	for i := range h {
		h[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return h, nil
}

// At returns the sample at row (south to north) and column (west to east).
func (h HeightTile) At(row, col int) int16 {
	return h[row*TilePhysicalSize+col]
}

// Bytes encodes the tile as raw little-endian samples.
func (h HeightTile) Bytes() []byte {
	out := make([]byte, len(h)*2)
	for i, v := range h {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Range returns the lowest and highest samples.
func (h HeightTile) Range() (lo, hi int16) {
	if len(h) == 0 {
		return 0, 0
	}
	lo, hi = h[0], h[0]
	for _, v := range h {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
