package terrain

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Faultbox/orbis/pkg/catalog"
	"github.com/Faultbox/orbis/pkg/formats"
)

// Discover lists the tile sets announced by sidecars matching glob in cat,
// in catalog name order. An empty glob means formats.TileSetIndexGlob.
// Unreadable, invalid and polar sidecars are skipped with a warning.
func Discover(log *zap.Logger, cat *catalog.Catalog, glob string) ([]formats.TileSetIndex, error) {
	if glob == "" {
		glob = formats.TileSetIndexGlob
	}
	fids, err := cat.FindMatching(glob)
	if err != nil {
		return nil, err
	}
	var out []formats.TileSetIndex
	for _, fid := range fids {
		name := "?"
		if info, err := cat.Stat(fid); err == nil {
			name = info.Name
		}
		data, err := cat.ReadSync(fid)
		if err != nil {
			log.Warn("skipping unreadable tile set index", zap.String("file", name), zap.Error(err))
			continue
		}
		idx, err := formats.ParseTileSetIndex(data)
		switch {
		case errors.Is(err, formats.ErrPolarTiles):
			log.Warn("skipping polar tile set", zap.String("prefix", idx.Prefix))
			continue
		case err != nil:
			log.Warn("skipping invalid tile set index", zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, *idx)
	}
	return out, nil
}
