// orbistool is a CLI utility for terrain catalogs, layer packs, the
// atmosphere cache and the patch tree.
package main

import (
	"fmt"
	"os"

	"github.com/Faultbox/orbis/internal/logger"
)

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: os.Getenv("ORBIS_LOG"), Console: true}); err != nil {
		fatalf("%v", err)
	}
	defer logger.Sync()

	group, command, args := os.Args[1], os.Args[2], os.Args[3:]
	switch group + " " + command {
	case "catalog ls", "catalog list":
		cmdCatalogList(args)
	case "catalog pack":
		cmdCatalogPack(args)
	case "pack info":
		cmdPackInfo(args)
	case "pack build":
		cmdPackBuild(args)
	case "pack tile":
		cmdPackTile(args)
	case "atmosphere build":
		cmdAtmosphereBuild(args)
	case "atmosphere sample":
		cmdAtmosphereSample(args)
	case "tree stats":
		cmdTreeStats(args)
	case "index snapshot":
		cmdIndexSnapshot(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s %s\n", group, command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`orbistool - terrain content and pipeline utility

Usage:
  orbistool <group> <command> [options]

Commands:
  catalog ls [-glob g] <path>...              List catalog files (directories or .pack files)
  catalog pack -o out.pack <dir>              Bundle a directory into one pack file
  pack info [-n N] <file.mip>                 Show a layer pack header and tile index
  pack build -prefix p -level L <dir>         Build a layer pack from <lat>_<lon>.raw tiles
  pack tile [-kind k] [-scale f] <file.mip> <i>  Write tile i as a PNG preview
  atmosphere build [-cache dir]               Precompute the atmosphere tables into the cache
  atmosphere sample [-cache dir] -alt km -mu x   Print cached transmittance
  tree stats [-lat -lon -alt -detail]         Refine the patch tree for one view
  index snapshot -catalog path [-render]      Stream tiles for one view and dump the indices

Set ORBIS_LOG=debug for verbose logs.

Examples:
  orbistool catalog ls ./data earth.pack
  orbistool pack info -n 10 ./data/earth-color-L03.mip
  orbistool pack build -prefix earth-height -level 1 -kind height -sidecar ./raw/L01
  orbistool pack tile -kind height -scale 0.5 ./data/earth-height-L00.mip 0
  orbistool tree stats -lat 27.98 -lon 86.92 -alt 10 -detail high`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	logger.Sync()
	os.Exit(1)
}
