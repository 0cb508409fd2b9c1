package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DirectoryDrawer exposes the regular files of one directory. Every file is
// mapped when the drawer is opened.
type DirectoryDrawer struct {
	dir     string
	entries []DrawerEntry
	maps    []*mapping
}

// OpenDirectory maps the files in dir whose base name matches glob
// (filepath.Match syntax; empty matches everything). Subdirectories are not
// descended into.
func OpenDirectory(dir, glob string) (*DirectoryDrawer, error) {
	if glob == "" {
		glob = "*"
	}
	if _, err := filepath.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("directory glob %q: %w", glob, err)
	}

	infos, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog directory: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	d := &DirectoryDrawer{dir: dir}
	for _, info := range infos {
		if !info.Type().IsRegular() {
			continue
		}
		if ok, _ := filepath.Match(glob, info.Name()); !ok {
			continue
		}
		m, err := mapFile(filepath.Join(dir, info.Name()))
		if err != nil {
			d.Close()
			return nil, err
		}
		d.entries = append(d.entries, DrawerEntry{Name: info.Name(), Size: uint64(len(m.data))})
		d.maps = append(d.maps, m)
	}
	return d, nil
}

// Name returns the directory path.
func (d *DirectoryDrawer) Name() string { return d.dir }

// Entries lists the mapped files.
func (d *DirectoryDrawer) Entries() []DrawerEntry { return d.entries }

// Bytes returns the mapping of entry i.
func (d *DirectoryDrawer) Bytes(i int) ([]byte, error) {
	if i < 0 || i >= len(d.maps) {
		return nil, ErrNotFound
	}
	if d.maps[i] == nil {
		return nil, ErrClosed
	}
	return d.maps[i].data, nil
}

// Close unmaps every file.
func (d *DirectoryDrawer) Close() error {
	var errs []error
	for i, m := range d.maps {
		if m == nil {
			continue
		}
		if err := m.close(); err != nil {
			errs = append(errs, err)
		}
		d.maps[i] = nil
	}
	return errors.Join(errs...)
}
