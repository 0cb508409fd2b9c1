package main

import (
	"bytes"
	"flag"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/orbis/internal/engine/debug"
	"github.com/Faultbox/orbis/pkg/catalog"
	"github.com/Faultbox/orbis/pkg/formats"
)

func openLayerPack(path string) (*catalog.Mapping, *formats.LayerPack) {
	m, err := catalog.MapFile(path)
	if err != nil {
		fatalf("%v", err)
	}
	p, err := formats.ParseLayerPack(m.Bytes())
	if err != nil {
		m.Close()
		fatalf("%s: %v", path, err)
	}
	return m, p
}

func cmdPackInfo(args []string) {
	fs := flag.NewFlagSet("pack info", flag.ExitOnError)
	limit := fs.Int("n", 20, "Show at most N index entries (0 = all)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: orbistool pack info [-n N] <file.mip>")
		os.Exit(1)
	}
	m, p := openLayerPack(fs.Arg(0))
	defer m.Close()

	h := p.Header
	fmt.Printf("Pack:        %s\n", fs.Arg(0))
	fmt.Printf("Version:     %d\n", h.Version)
	fmt.Printf("Level:       %d\n", h.Level)
	fmt.Printf("Compression: %s\n", h.Compression)
	fmt.Printf("Extent:      %d arcsec (%.4f deg)\n", h.AngularExtentAS, float64(h.AngularExtentAS)/3600)
	fmt.Printf("Tiles:       %d\n", h.TileCount)
	fmt.Printf("Index:       %d\n", h.IndexStart)
	fmt.Printf("Data:        %d\n", h.TileStart)
	fmt.Println()

	n := len(p.Entries)
	if *limit > 0 && *limit < n {
		n = *limit
	}
	fmt.Printf("%6s  %10s %10s  %-5s %12s %10s\n", "tile", "lat_as", "lon_as", "child", "offset", "bytes")
	for i := 0; i < n; i++ {
		e := p.Entries[i]
		off, size := p.FileExtent(i)
		fmt.Printf("%6d  %10d %10d  %-5s %12d %10d\n", i, e.BaseLatAS, e.BaseLonAS, e.IndexInParent, off, size)
	}
	if n < len(p.Entries) {
		fmt.Printf("... %d more\n", len(p.Entries)-n)
	}
}

// cmdPackBuild writes one level of a tile set from raw tiles named
// <lat>_<lon>.raw, the south-west corner in arcseconds.
func cmdPackBuild(args []string) {
	fs := flag.NewFlagSet("pack build", flag.ExitOnError)
	prefix := fs.String("prefix", "", "Tile set prefix")
	level := fs.Int("level", 0, "Level of every tile in the directory")
	kindName := fs.String("kind", "color", "color, normal or height")
	compName := fs.String("compression", "zstd", "none or zstd")
	outDir := fs.String("out", ".", "Output directory")
	sidecar := fs.Bool("sidecar", false, "Also write <prefix>-index.json")
	workers := fs.Int("workers", runtime.NumCPU(), "Tiles compressed in parallel")
	fs.Parse(args)

	if fs.NArg() != 1 || *prefix == "" {
		fmt.Fprintln(os.Stderr, "Usage: orbistool pack build -prefix p -level L [-kind k] [-compression c] [-workers n] <dir>")
		os.Exit(1)
	}
	kind, err := formats.ParseDataKind(*kindName)
	if err != nil {
		fatalf("%v", err)
	}
	comp, err := formats.ParseCompression(*compName)
	if err != nil {
		fatalf("%v", err)
	}

	paths, err := filepath.Glob(filepath.Join(fs.Arg(0), "*.raw"))
	if err != nil {
		fatalf("%v", err)
	}
	if len(paths) == 0 {
		fatalf("no .raw tiles in %s", fs.Arg(0))
	}

	tiles := make([]formats.LayerPackTile, len(paths))
	for i, path := range paths {
		name := filepath.Base(path)
		t := &tiles[i]
		if _, err := fmt.Sscanf(strings.TrimSuffix(name, ".raw"), "%d_%d", &t.BaseLatAS, &t.BaseLonAS); err != nil {
			fatalf("%s: want <lat>_<lon>.raw", name)
		}
		if t.IndexInParent, err = formats.ChildIndexOf(*level, t.BaseLatAS, t.BaseLonAS); err != nil {
			fatalf("%s: %v", name, err)
		}
	}

	var g errgroup.Group
	g.SetLimit(max(*workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			name := filepath.Base(path)
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if len(raw) != kind.RawTileSize() {
				return fmt.Errorf("%s: %d bytes, a %s tile holds %d", name, len(raw), kind, kind.RawTileSize())
			}
			if tiles[i].Payload, err = formats.Compress(comp, raw); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("%v", err)
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].BaseLatAS != tiles[j].BaseLatAS {
			return tiles[i].BaseLatAS < tiles[j].BaseLatAS
		}
		return tiles[i].BaseLonAS < tiles[j].BaseLonAS
	})

	var buf bytes.Buffer
	if err := formats.WriteLayerPack(&buf, *level, comp, tiles); err != nil {
		fatalf("%v", err)
	}
	out := filepath.Join(*outDir, formats.LayerPackName(*prefix, *level))
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %d tiles (%d bytes) to %s\n", len(tiles), buf.Len(), out)

	if *sidecar {
		idx := formats.TileSetIndex{Prefix: *prefix, Kind: kind}
		data, err := idx.Marshal()
		if err != nil {
			fatalf("%v", err)
		}
		path := filepath.Join(*outDir, *prefix+"-index.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Wrote %s\n", path)
	}
}

func cmdPackTile(args []string) {
	fs := flag.NewFlagSet("pack tile", flag.ExitOnError)
	kindName := fs.String("kind", "color", "color, normal or height")
	scale := fs.Float64("scale", 1, "Resize factor")
	smooth := fs.Bool("smooth", true, "Catmull-Rom filtering instead of nearest")
	out := fs.String("o", "", "Output PNG (default <pack>_<i>.png)")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: orbistool pack tile [-kind k] [-scale f] [-o out.png] <file.mip> <i>")
		os.Exit(1)
	}
	kind, err := formats.ParseDataKind(*kindName)
	if err != nil {
		fatalf("%v", err)
	}
	i, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		fatalf("tile index: %v", err)
	}

	m, p := openLayerPack(fs.Arg(0))
	defer m.Close()
	if i < 0 || i >= len(p.Entries) {
		fatalf("tile %d out of range [0, %d)", i, len(p.Entries))
	}
	decoded, err := formats.DecodeTile(kind, p.Header.Compression, p.TileData(i))
	if err != nil {
		fatalf("tile %d: %v", i, err)
	}
	img, err := debug.TileImage(kind, decoded)
	if err != nil {
		fatalf("%v", err)
	}
	img = debug.Scale(img, *scale, *smooth)

	path := *out
	if path == "" {
		path = fmt.Sprintf("%s_%d.png", strings.TrimSuffix(filepath.Base(fs.Arg(0)), filepath.Ext(fs.Arg(0))), i)
	}
	f, err := os.Create(path)
	if err != nil {
		fatalf("%v", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		fatalf("encoding %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		fatalf("%v", err)
	}
	b := img.Bounds()
	fmt.Printf("Wrote %s (%dx%d)\n", path, b.Dx(), b.Dy())
}
