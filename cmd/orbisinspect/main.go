// orbisinspect is a graphical browser for terrain catalogs: tile sets,
// their layer packs and decoded tile previews, plus a CPU streaming view.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/Faultbox/orbis/internal/logger"
)

type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	runtime.LockOSThread()

	var paths pathList
	flag.Var(&paths, "catalog", "Catalog directory or .pack file to open (repeatable)")
	level := flag.String("log", "info", "Log level")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: *level, Console: true}); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app, err := NewInspector(logger.Get("inspect"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if len(paths) > 0 {
		if err := app.Open(paths...); err != nil {
			fmt.Fprintf(os.Stderr, "Error opening catalog: %v\n", err)
		}
	}
	app.Run()
}
