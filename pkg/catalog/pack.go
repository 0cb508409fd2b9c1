package catalog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Pack file layout:
//
//	header  24 bytes: magic "OCAT", version u16, flags u16, toc offset u64, toc length u64
//	blobs   file contents, each aligned to packAlign
//	toc     msgpack-encoded packTOC, zstd-compressed when packFlagZstd is set
const (
	packMagic      = "OCAT"
	packVersion    = 1
	packHeaderSize = 24
	packAlign      = 16

	packFlagZstd = 1 << 0
)

var (
	// ErrInvalidPack is returned when a pack file's header is malformed.
	ErrInvalidPack = errors.New("catalog: invalid pack file")
	// ErrUnsupportedPackVersion is returned for packs written by a newer tool.
	ErrUnsupportedPackVersion = errors.New("catalog: unsupported pack version")
)

type packHeader struct {
	Magic     [4]byte
	Version   uint16
	Flags     uint16
	TOCOffset uint64
	TOCLength uint64
}

type packEntry struct {
	Name   string `msgpack:"n"`
	Offset uint64 `msgpack:"o"`
	Length uint64 `msgpack:"l"`
}

type packTOC struct {
	Entries []packEntry `msgpack:"entries"`
}

// PackDrawer serves the files stored in a single pack file.
type PackDrawer struct {
	path    string
	m       *mapping
	entries []DrawerEntry
	extents []Extent
}

// OpenPack maps a pack file and reads its table of contents.
func OpenPack(path string) (*PackDrawer, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening pack: %w", err)
	}
	d := &PackDrawer{path: path, m: m}
	if err := d.readTOC(); err != nil {
		m.close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func (d *PackDrawer) readTOC() error {
	data := d.m.data
	if len(data) < packHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidPack, len(data))
	}

	var h packHeader
	if err := binary.Read(bytes.NewReader(data[:packHeaderSize]), binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if string(h.Magic[:]) != packMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidPack, h.Magic[:])
	}
	if h.Version != packVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedPackVersion, h.Version)
	}
	if h.TOCOffset+h.TOCLength > uint64(len(data)) || h.TOCOffset < packHeaderSize {
		return fmt.Errorf("%w: table of contents out of bounds", ErrInvalidPack)
	}

	raw := data[h.TOCOffset : h.TOCOffset+h.TOCLength]
	if h.Flags&packFlagZstd != 0 {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return err
		}
		defer dec.Close()
		if raw, err = dec.DecodeAll(raw, nil); err != nil {
			return fmt.Errorf("decompressing table of contents: %w", err)
		}
	}

	var toc packTOC
	if err := msgpack.Unmarshal(raw, &toc); err != nil {
		return fmt.Errorf("decoding table of contents: %w", err)
	}

	for _, e := range toc.Entries {
		ext := Extent{Offset: e.Offset, Length: e.Length}
		if ext.Offset < packHeaderSize || ext.End() > h.TOCOffset || ext.End() < ext.Offset {
			return fmt.Errorf("%w: entry %q out of bounds", ErrInvalidPack, e.Name)
		}
		d.entries = append(d.entries, DrawerEntry{Name: e.Name, Size: e.Length})
		d.extents = append(d.extents, ext)
	}
	return nil
}

// Name returns the pack path.
func (d *PackDrawer) Name() string { return d.path }

// Entries lists the packed files.
func (d *PackDrawer) Entries() []DrawerEntry { return d.entries }

// Bytes returns entry i as a view into the pack mapping.
func (d *PackDrawer) Bytes(i int) ([]byte, error) {
	if i < 0 || i >= len(d.extents) {
		return nil, ErrNotFound
	}
	if d.m == nil {
		return nil, ErrClosed
	}
	ext := d.extents[i]
	return d.m.data[ext.Offset:ext.End()], nil
}

// Close unmaps the pack.
func (d *PackDrawer) Close() error {
	if d.m == nil {
		return nil
	}
	err := d.m.close()
	d.m = nil
	return err
}

// PackWriter builds a pack file.
type PackWriter struct {
	f     *os.File
	off   uint64
	toc   packTOC
	names map[string]bool
	zstd  bool
}

// CreatePack starts a new pack at path. When compressTOC is set the table of
// contents is zstd-compressed.
func CreatePack(path string, compressTOC bool) (*PackWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating pack: %w", err)
	}
	if _, err := f.Write(make([]byte, packHeaderSize)); err != nil {
		f.Close()
		return nil, err
	}
	return &PackWriter{f: f, off: packHeaderSize, names: make(map[string]bool), zstd: compressTOC}, nil
}

// Add appends a file.
func (w *PackWriter) Add(name string, r io.Reader) error {
	if w.names[name] {
		return fmt.Errorf("pack: duplicate name %q", name)
	}
	if err := w.pad(); err != nil {
		return err
	}
	n, err := io.Copy(w.f, r)
	if err != nil {
		return fmt.Errorf("pack: writing %s: %w", name, err)
	}
	w.toc.Entries = append(w.toc.Entries, packEntry{Name: name, Offset: w.off, Length: uint64(n)})
	w.names[name] = true
	w.off += uint64(n)
	return nil
}

// AddFile appends the file at path under its base name.
func (w *PackWriter) AddFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return w.Add(filepath.Base(path), f)
}

func (w *PackWriter) pad() error {
	rem := w.off % packAlign
	if rem == 0 {
		return nil
	}
	n := packAlign - rem
	if _, err := w.f.Write(make([]byte, n)); err != nil {
		return err
	}
	w.off += n
	return nil
}

// Close writes the table of contents and header and closes the file.
func (w *PackWriter) Close() error {
	defer w.f.Close()

	raw, err := msgpack.Marshal(&w.toc)
	if err != nil {
		return fmt.Errorf("encoding table of contents: %w", err)
	}
	h := packHeader{Version: packVersion, TOCOffset: w.off, TOCLength: uint64(len(raw))}
	copy(h.Magic[:], packMagic)
	if w.zstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		raw = enc.EncodeAll(raw, nil)
		enc.Close()
		h.Flags |= packFlagZstd
		h.TOCLength = uint64(len(raw))
	}
	if _, err := w.f.Write(raw); err != nil {
		return fmt.Errorf("writing table of contents: %w", err)
	}

	var hdr bytes.Buffer
	if err := binary.Write(&hdr, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.f.WriteAt(hdr.Bytes(), 0); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return w.f.Sync()
}
