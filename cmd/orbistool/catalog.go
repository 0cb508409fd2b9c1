package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Faultbox/orbis/internal/logger"
	"github.com/Faultbox/orbis/pkg/catalog"
)

func cmdCatalogList(args []string) {
	fs := flag.NewFlagSet("catalog ls", flag.ExitOnError)
	glob := fs.String("glob", "*", "Only list names matching this pattern")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: orbistool catalog ls [-glob g] <path>...")
		os.Exit(1)
	}

	cat, err := catalog.Open(logger.Get("catalog"), fs.Args()...)
	if err != nil {
		fatalf("%v", err)
	}
	defer cat.Close()

	ids, err := cat.FindMatching(*glob)
	if err != nil {
		fatalf("%v", err)
	}
	var total uint64
	for _, id := range ids {
		info, err := cat.Stat(id)
		if err != nil {
			fatalf("%v", err)
		}
		total += info.Size
		fmt.Printf("%12d  %-40s %s\n", info.Size, info.Name, info.Drawer)
	}
	fmt.Printf("\n%d of %d files, %.2f MB\n", len(ids), cat.Len(), float64(total)/(1024*1024))
}

// cmdCatalogPack writes every file of a directory into one pack file.
func cmdCatalogPack(args []string) {
	fs := flag.NewFlagSet("catalog pack", flag.ExitOnError)
	out := fs.String("o", "", "Output .pack file")
	compress := fs.Bool("z", true, "Compress the table of contents")
	fs.Parse(args)

	if fs.NArg() != 1 || *out == "" {
		fmt.Fprintln(os.Stderr, "Usage: orbistool catalog pack -o out.pack <dir>")
		os.Exit(1)
	}
	entries, err := os.ReadDir(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	w, err := catalog.CreatePack(*out, *compress)
	if err != nil {
		fatalf("%v", err)
	}
	for _, name := range names {
		if err := w.AddFile(filepath.Join(fs.Arg(0), name)); err != nil {
			w.Close()
			fatalf("%v", err)
		}
	}
	if err := w.Close(); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Packed %d files into %s\n", len(names), *out)
}
