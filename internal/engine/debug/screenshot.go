// Package debug holds the viewer's diagnostic outputs: frame and index
// dumps, and line geometry for pinned frusta and tile footprints.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// DefaultDumpDir is where dumps go unless configured otherwise.
const DefaultDumpDir = "__dump__"

// Dumper writes PNG dumps into one directory.
type Dumper struct {
	dir string
	now func() time.Time
}

// NewDumper returns a dumper writing into dir, DefaultDumpDir if empty.
func NewDumper(dir string) *Dumper {
	if dir == "" {
		dir = DefaultDumpDir
	}
	return &Dumper{dir: dir, now: time.Now}
}

// Dir returns the output directory.
func (d *Dumper) Dir() string { return d.dir }

// SaveFrame writes a framebuffer read back from GL (RGBA, bottom row first)
// as <prefix>_<timestamp>.png.
func (d *Dumper) SaveFrame(prefix string, pixels []byte, width, height int) (string, error) {
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("frame dump: %d bytes for %dx%d", len(pixels), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	name := fmt.Sprintf("%s_%s.png", prefix, d.now().Format("2006-01-02_15-04-05"))
	return d.save(name, img)
}

// SaveIndex writes an index texture as terrain_index_<prefix>.png, one gray
// pixel per texel holding the low byte of its slot. Row 0 is north.
func (d *Dumper) SaveIndex(prefix string, index []uint16, width, height int) (string, error) {
	img, err := IndexImage(index, width, height)
	if err != nil {
		return "", err
	}
	return d.save(fmt.Sprintf("terrain_index_%s.png", prefix), img)
}

// IndexImage converts index texels to an 8-bit image of their low bytes.
func IndexImage(index []uint16, width, height int) (*image.Gray, error) {
	if len(index) != width*height {
		return nil, fmt.Errorf("index dump: %d texels for %dx%d", len(index), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = uint8(index[y*width+x])
		}
	}
	return img, nil
}

func (d *Dumper) save(name string, img image.Image) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating dump dir: %w", err)
	}
	path := filepath.Join(d.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating dump: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}
	return path, f.Close()
}
