// Package catalog provides read access to the content files (layer packs,
// tile-set sidecars) the terrain streams from.
//
// A Catalog is assembled from drawers. A drawer is either a directory whose
// files are memory-mapped, or a single pack file with a table of contents.
// Files are addressed by FileID; bytes returned by ReadMapped point into the
// drawer's mapping and stay valid until the catalog is closed.
package catalog

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for unknown file ids and names.
	ErrNotFound = errors.New("catalog: file not found")
	// ErrExtent is returned when a requested extent does not fit in the file.
	ErrExtent = errors.New("catalog: extent out of bounds")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("catalog: closed")
)

// FileID addresses a file in a Catalog.
type FileID uint32

// Extent is a byte range within a file.
type Extent struct {
	Offset uint64
	Length uint64
}

// End returns the offset one past the last byte.
func (e Extent) End() uint64 { return e.Offset + e.Length }

// FileInfo describes a catalog file.
type FileInfo struct {
	ID     FileID
	Name   string
	Size   uint64
	Drawer string
}

// Drawer is a source of files.
type Drawer interface {
	// Name identifies the drawer in logs.
	Name() string
	// Entries lists the drawer's files.
	Entries() []DrawerEntry
	// Bytes returns the full contents of entry i. The slice must stay valid
	// and unmodified until Close.
	Bytes(i int) ([]byte, error)
	// Close releases the drawer's mappings.
	Close() error
}

// DrawerEntry is one file inside a drawer.
type DrawerEntry struct {
	Name string
	Size uint64
}

type fileRef struct {
	drawer int
	entry  int
	name   string
	size   uint64
}

// Catalog is a flat namespace of files gathered from drawers. Drawers added
// later shadow files of the same name from earlier drawers.
type Catalog struct {
	log     *zap.Logger
	drawers []Drawer
	files   []fileRef
	byName  map[string]FileID
	closed  bool
}

// New returns an empty catalog.
func New(log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		log:    log,
		byName: make(map[string]FileID),
	}
}

// AddDrawer registers all files of d. The catalog takes ownership of d.
func (c *Catalog) AddDrawer(d Drawer) error {
	if c.closed {
		return ErrClosed
	}
	idx := len(c.drawers)
	c.drawers = append(c.drawers, d)

	for i, e := range d.Entries() {
		ref := fileRef{drawer: idx, entry: i, name: e.Name, size: e.Size}
		if prev, ok := c.byName[e.Name]; ok {
			c.log.Debug("catalog file shadowed",
				zap.String("name", e.Name),
				zap.String("previous", c.drawers[c.files[prev].drawer].Name()),
				zap.String("drawer", d.Name()))
			c.files[prev] = ref
			continue
		}
		c.byName[e.Name] = FileID(len(c.files))
		c.files = append(c.files, ref)
	}

	c.log.Info("catalog drawer added",
		zap.String("drawer", d.Name()),
		zap.Int("files", len(d.Entries())))
	return nil
}

// Len returns the number of visible files.
func (c *Catalog) Len() int { return len(c.files) }

// Lookup returns the id of the file with the given name.
func (c *Catalog) Lookup(name string) (FileID, error) {
	fid, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fid, nil
}

// FindMatching returns the ids of all files whose name matches the glob
// pattern (path.Match syntax), ordered by name.
func (c *Catalog) FindMatching(glob string) ([]FileID, error) {
	if _, err := path.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("catalog glob %q: %w", glob, err)
	}
	var out []FileID
	for name, fid := range c.byName {
		if ok, _ := path.Match(glob, name); ok {
			out = append(out, fid)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return c.files[out[i]].name < c.files[out[j]].name
	})
	return out, nil
}

// Stat describes a file.
func (c *Catalog) Stat(fid FileID) (FileInfo, error) {
	ref, err := c.ref(fid)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		ID:     fid,
		Name:   ref.name,
		Size:   ref.size,
		Drawer: c.drawers[ref.drawer].Name(),
	}, nil
}

// ReadMapped returns a zero-copy view of the file, or of the given extent
// within it when extent is non-nil. The view must not be used after Close.
func (c *Catalog) ReadMapped(fid FileID, extent *Extent) ([]byte, error) {
	ref, err := c.ref(fid)
	if err != nil {
		return nil, err
	}
	data, err := c.drawers[ref.drawer].Bytes(ref.entry)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref.name, err)
	}
	if extent == nil {
		return data, nil
	}
	if extent.End() > uint64(len(data)) || extent.End() < extent.Offset {
		return nil, fmt.Errorf("%w: %s [%d, %d) of %d bytes",
			ErrExtent, ref.name, extent.Offset, extent.End(), len(data))
	}
	return data[extent.Offset:extent.End()], nil
}

// ReadSync returns a private copy of the whole file.
func (c *Catalog) ReadSync(fid FileID) ([]byte, error) {
	data, err := c.ReadMapped(fid, nil)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Close releases every drawer. Mapped views become invalid.
func (c *Catalog) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, d := range c.drawers {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", d.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) ref(fid FileID) (fileRef, error) {
	if c.closed {
		return fileRef{}, ErrClosed
	}
	if int(fid) >= len(c.files) {
		return fileRef{}, fmt.Errorf("%w: id %d", ErrNotFound, fid)
	}
	return c.files[fid], nil
}
