package catalog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Open builds a catalog from paths in order: a directory becomes a
// DirectoryDrawer over every file, anything else is opened as a pack. Later
// paths shadow files of the same name in earlier ones.
func Open(log *zap.Logger, paths ...string) (*Catalog, error) {
	c := New(log)
	for _, p := range paths {
		d, err := openDrawer(p)
		if err != nil {
			c.Close()
			return nil, err
		}
		if err := c.AddDrawer(d); err != nil {
			d.Close()
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func openDrawer(path string) (Drawer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog path: %w", err)
	}
	if info.IsDir() {
		return OpenDirectory(path, "")
	}
	return OpenPack(path)
}
