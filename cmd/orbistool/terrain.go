package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Faultbox/orbis/internal/config"
	"github.com/Faultbox/orbis/internal/engine/camera"
	"github.com/Faultbox/orbis/internal/engine/debug"
	"github.com/Faultbox/orbis/internal/logger"
	"github.com/Faultbox/orbis/internal/terrain"
	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/pkg/catalog"
)

type viewFlags struct {
	lat, lon, alt, heading *float64
	width, height          *int
	detail                 *string
}

func addViewFlags(fs *flag.FlagSet) viewFlags {
	cfg := config.Default()
	return viewFlags{
		lat:     fs.Float64("lat", cfg.Camera.LatDeg, "Camera latitude in degrees"),
		lon:     fs.Float64("lon", cfg.Camera.LonDeg, "Camera longitude in degrees"),
		alt:     fs.Float64("alt", cfg.Camera.AltitudeKm, "Camera altitude in km"),
		heading: fs.Float64("heading", cfg.Camera.Heading, "Heading in degrees clockwise from north"),
		width:   fs.Int("width", cfg.Graphics.Width, "Viewport width"),
		height:  fs.Int("height", cfg.Graphics.Height, "Viewport height"),
		detail:  fs.String("detail", cfg.Terrain.CPUDetail, "Detail level (low, medium, high, ultra)"),
	}
}

func (v viewFlags) camera() *camera.PlanetCamera {
	c, err := camera.NewPlanetCamera(*v.lat, *v.lon, *v.alt, *v.heading, config.Default().Graphics.FOV)
	if err != nil {
		fatalf("camera: %v", err)
	}
	return c
}

func (v viewFlags) level() terrain.DetailLevel {
	d, err := terrain.ParseDetailLevel(*v.detail)
	if err != nil {
		fatalf("%v", err)
	}
	return d
}

func cmdTreeStats(args []string) {
	fs := flag.NewFlagSet("tree stats", flag.ExitOnError)
	vf := addViewFlags(fs)
	frames := fs.Int("frames", 1, "Updates to run from a fresh tree")
	fs.Parse(args)

	tree, err := patch.NewTree(vf.level().CPU().TreeConfig())
	if err != nil {
		fatalf("%v", err)
	}
	view := vf.camera().View(*vf.width, *vf.height)

	var sel *patch.Selection
	start := time.Now()
	for i := 0; i < max(1, *frames); i++ {
		sel = tree.Update(view)
	}
	elapsed := time.Since(start)

	levels := make(map[int]int)
	for _, l := range sel.Leaves {
		levels[l.Level]++
	}
	st := tree.Stats()
	cfg := tree.Config()
	fmt.Printf("Detail:     %s (max level %d, %d patches, %.0f px)\n", *vf.detail, cfg.MaxLevel, cfg.Patches, cfg.TargetRefinement)
	fmt.Printf("Nodes:      %d\n", st.Nodes)
	fmt.Printf("Vertices:   %d\n", st.Vertices)
	fmt.Printf("Visible:    %d of %d slots\n", st.Visible, sel.Patches)
	fmt.Printf("Deepest:    %d\n", st.Deepest)
	fmt.Printf("Last frame: %d splits, %d merges, %d iterations, %d dropped\n", st.Splits, st.Merges, st.Iterations, st.Dropped)
	fmt.Printf("Time:       %s for %d updates\n", elapsed.Round(time.Microsecond), max(1, *frames))
	fmt.Println("Leaves by level:")
	for level := 0; level <= st.Deepest; level++ {
		if n := levels[level]; n > 0 {
			fmt.Printf("  %2d  %d\n", level, n)
		}
	}
}

// cmdIndexSnapshot streams tiles for one view on the CPU until every read
// has landed, then writes the index snapshots and optionally a CPU render.
func cmdIndexSnapshot(args []string) {
	fs := flag.NewFlagSet("index snapshot", flag.ExitOnError)
	vf := addViewFlags(fs)
	var paths multiFlag
	fs.Var(&paths, "catalog", "Catalog directory or .pack file (repeatable)")
	glob := fs.String("glob", "", "Tile set sidecars to load")
	dumpDir := fs.String("dump", debug.DefaultDumpDir, "Output directory")
	maxFrames := fs.Int("frames", 200, "Give up after this many updates")
	render := fs.Bool("render", false, "Also write the CPU accumulated colour")
	fs.Parse(args)

	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: orbistool index snapshot -catalog path [-lat -lon -alt] [-render]")
		os.Exit(1)
	}
	log := logger.Get()
	cat, err := catalog.Open(log.Named("catalog"), paths...)
	if err != nil {
		fatalf("%v", err)
	}
	defer cat.Close()

	level := vf.level()
	t, err := terrain.New(log.Named("terrain"), cat, terrain.Options{
		CPU:       level,
		GPU:       level,
		DumpDir:   *dumpDir,
		IndexGlob: *glob,
	}, terrain.MemoryAtlases)
	if err != nil {
		fatalf("%v", err)
	}
	defer t.Shutdown()

	cam := vf.camera()
	view := cam.View(*vf.width, *vf.height)
	frames := 0
	for ; frames < *maxFrames; frames++ {
		t.Update(view)
		if settled(t) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("Settled after %d updates\n", frames+1)
	for _, s := range t.Sets() {
		st := s.Stats()
		fmt.Printf("  %-24s %4d/%d active, deepest level %d\n", s.Name(), st.Active, s.Capacity(), st.MaxLevel)
	}

	written, err := t.CaptureIndexSnapshot()
	for _, p := range written {
		fmt.Printf("Wrote %s\n", p)
	}
	if err != nil {
		fatalf("%v", err)
	}

	if *render {
		renderCPU(t, cam, *vf.width, *vf.height, *dumpDir)
	}
}

func settled(t *terrain.Terrain) bool {
	for _, s := range t.Sets() {
		st := s.Stats()
		if st.ReadsOutstanding > 0 || st.Added > 0 || st.ReadsEnded > 0 {
			return false
		}
	}
	return true
}

func renderCPU(t *terrain.Terrain, cam *camera.PlanetCamera, width, height int, dir string) {
	dc, err := cam.Deferred(width, height)
	if err != nil {
		fatalf("%v", err)
	}
	g, err := deferred.NewGBuffer(width, height)
	if err != nil {
		fatalf("%v", err)
	}
	acc, err := deferred.NewAccumulators(width, height)
	if err != nil {
		fatalf("%v", err)
	}
	start := time.Now()
	st, err := t.RenderCPU(context.Background(), dc, g, acc)
	if err != nil {
		fatalf("%v", err)
	}
	path, err := debug.NewDumper(dir).SavePNG("terrain_cpu_color", acc.ColorImage())
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Rendered %d patches, %d triangles, %d covered pixels in %s\n",
		st.Patches, st.Triangles, g.Coverage(), time.Since(start).Round(time.Millisecond))
	fmt.Printf("Wrote %s\n", path)
}

type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint(*m) }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
