// Package scene renders the terrain on the GPU: tessellation of the patch
// selection, the G-buffer of graticules, the accumulators filled from every
// tile set atlas, and the atmosphere composite.
package scene

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/orbis/internal/atmosphere"
	"github.com/Faultbox/orbis/internal/engine/debug"
	"github.com/Faultbox/orbis/internal/engine/framebuffer"
	"github.com/Faultbox/orbis/internal/terrain"
	"github.com/Faultbox/orbis/internal/terrain/deferred"
	"github.com/Faultbox/orbis/internal/terrain/patch"
	"github.com/Faultbox/orbis/internal/terrain/tile"
	"github.com/Faultbox/orbis/pkg/formats"
	"github.com/Faultbox/orbis/pkg/math"
)

// Config contains scene configuration options.
type Config struct {
	Width  int32
	Height int32
	// Exposure scales radiance before tone mapping.
	Exposure float64
	Mode     Mode
	// Footprints draws the outline of every resident tile.
	Footprints bool
	// Wavelengths is the spectral sample count of the atmosphere tables.
	Wavelengths int
}

// DefaultConfig returns a default scene configuration.
func DefaultConfig() Config {
	return Config{
		Width:       1280,
		Height:      720,
		Exposure:    0.2,
		Mode:        ModeShaded,
		Wavelengths: atmosphere.DefaultOptions().Wavelengths,
	}
}

var (
	frustumColor   = [4]float32{1, 0.8, 0.1, 1}
	footprintColor = [4]float32{0.2, 1, 0.4, 1}
)

// Input is what one frame is rendered from.
type Input struct {
	Frame *terrain.Frame
	Sets  []*tile.Set
	// Optimise is the view the patch tree was refined for; it is outlined
	// while pinned.
	Optimise patch.View
	Eye      r3.Vec
	// ViewRotation and Projection come from the camera.
	ViewRotation math.Mat4
	Projection   math.Mat4
	Sun          r3.Vec
}

// Scene owns every GPU pass of the terrain.
type Scene struct {
	log    *zap.Logger
	config Config

	painter     *IndexPainter
	tessellator *Tessellator
	geometry    *GeometryPass
	accum       *Accumulators
	lines       *LineRenderer
	compositor  *Compositor
	luts        *AtmosphereTextures

	output *framebuffer.Framebuffer

	atlases   []*Atlas
	heights   []*Atlas
	lineVerts []debug.LineVertex
}

// New creates the passes that do not depend on the patch layout. The
// atmosphere tables are uploaded with SetAtmosphere and the layout with
// AttachLayout, once the terrain built with NewAtlas exists.
func New(log *zap.Logger, cfg Config, model atmosphere.Model, dims atmosphere.Dimensions) (*Scene, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scene{log: log, config: cfg}

	var err error
	if s.painter, err = NewIndexPainter(); err != nil {
		return nil, fmt.Errorf("creating index painter: %w", err)
	}
	if s.accum, err = NewAccumulators(cfg.Width, cfg.Height); err != nil {
		s.Destroy()
		return nil, fmt.Errorf("creating accumulators: %w", err)
	}
	if s.lines, err = NewLineRenderer(); err != nil {
		s.Destroy()
		return nil, fmt.Errorf("creating line renderer: %w", err)
	}
	if s.compositor, err = NewCompositor(model, dims, cfg.Wavelengths); err != nil {
		s.Destroy()
		return nil, fmt.Errorf("creating compositor: %w", err)
	}
	if s.output, err = framebuffer.NewColor(cfg.Width, cfg.Height); err != nil {
		s.Destroy()
		return nil, fmt.Errorf("creating output: %w", err)
	}
	return s, nil
}

// AttachLayout builds the tessellation and geometry passes for layout.
func (s *Scene) AttachLayout(layout *patch.Layout) error {
	t, err := NewTessellator(layout)
	if err != nil {
		return fmt.Errorf("creating tessellator: %w", err)
	}
	g, err := NewGeometryPass(layout, s.config.Width, s.config.Height)
	if err != nil {
		t.Destroy()
		return fmt.Errorf("creating geometry pass: %w", err)
	}
	if s.tessellator != nil {
		s.tessellator.Destroy()
		s.geometry.Destroy()
	}
	s.tessellator, s.geometry = t, g
	s.log.Info("scene ready",
		zap.Int32("width", s.config.Width),
		zap.Int32("height", s.config.Height),
		zap.Int("patch_vertices", layout.Stride()))
	return nil
}

// NewAtlas is the terrain.AtlasFactory of the GPU pipeline.
func (s *Scene) NewAtlas(ts formats.TileSetIndex, capacity int) (tile.Atlas, error) {
	a, err := NewAtlas(ts.Kind, capacity, s.painter)
	if err != nil {
		return nil, fmt.Errorf("atlas for %s: %w", ts.Prefix, err)
	}
	return a, nil
}

// SetAtmosphere uploads the atmosphere tables, replacing earlier ones.
func (s *Scene) SetAtmosphere(t *atmosphere.Tables) error {
	luts, err := NewAtmosphereTextures(t)
	if err != nil {
		return err
	}
	if s.luts != nil {
		s.luts.Destroy()
	}
	s.luts = luts
	return nil
}

// ReadbackAtmosphere uploads t and returns the tables read back from the
// textures. It is the atmosphere.Options.Readback hook of the viewer.
func (s *Scene) ReadbackAtmosphere(t *atmosphere.Tables) (*atmosphere.Tables, error) {
	if err := s.SetAtmosphere(t); err != nil {
		return nil, err
	}
	return s.luts.Download(), nil
}

// Config returns the current configuration.
func (s *Scene) Config() Config { return s.config }

// SetMode selects the composite output.
func (s *Scene) SetMode(m Mode) {
	if m < 0 || m >= NumModes {
		m = ModeShaded
	}
	s.config.Mode = m
	s.log.Info("scene mode", zap.Stringer("mode", m))
}

// SetModeName selects the composite output by name.
func (s *Scene) SetModeName(name string) error {
	m, err := ParseMode(name)
	if err != nil {
		return err
	}
	s.SetMode(m)
	return nil
}

// SetExposure sets the tone mapping exposure.
func (s *Scene) SetExposure(e float64) { s.config.Exposure = e }

// ToggleFootprints switches tile footprint outlines on key press.
func (s *Scene) ToggleFootprints(pressed bool) {
	if pressed {
		s.config.Footprints = !s.config.Footprints
	}
}

func (s *Scene) collectAtlases(sets []*tile.Set) {
	s.atlases = s.atlases[:0]
	s.heights = s.heights[:0]
	for _, set := range sets {
		a, ok := set.Atlas().(*Atlas)
		if !ok {
			continue
		}
		s.atlases = append(s.atlases, a)
		if a.Kind() == formats.KindHeight {
			s.heights = append(s.heights, a)
		}
	}
}

// Render runs every pass of one frame into the output target and returns
// its colour texture.
func (s *Scene) Render(in Input) (uint32, error) {
	if s.luts == nil {
		return 0, fmt.Errorf("scene: atmosphere tables not uploaded")
	}
	if s.geometry == nil {
		return 0, fmt.Errorf("scene: no patch layout attached")
	}
	f := in.Frame
	s.collectAtlases(in.Sets)

	if err := s.tessellator.Run(f.Seeds, s.heights); err != nil {
		return 0, fmt.Errorf("tessellating: %w", err)
	}
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT | gl.VERTEX_ATTRIB_ARRAY_BARRIER_BIT)

	hi, lo := math.SplitV3(in.Eye)
	view := &View{
		ViewRotation: in.ViewRotation,
		Projection:   in.Projection,
		EyeHigh:      hi,
		EyeLow:       lo,
	}
	s.geometry.Draw(view, s.tessellator.VertexBuffer(), &f.Draws)
	s.accum.Run(s.geometry.Texels(), s.atlases, f.Wireframe)

	s.geometry.ClearOverlay()
	if f.Wireframe {
		s.geometry.DrawWireframe(view, s.tessellator.VertexBuffer(), &f.Draws)
	}
	s.drawLines(view, in)

	restore := s.output.BindWithViewport()
	s.compositor.Draw(Inputs{
		GBuffer: s.geometry.Texels(),
		Color:   s.accum.Color(),
		Normal:  s.accum.Normal(),
		Overlay: s.geometry.Overlay(),
	}, s.luts, view, Lighting{
		Eye:      in.Eye,
		Sun:      in.Sun,
		Exposure: s.config.Exposure,
		Mode:     s.config.Mode,
	})
	restore()
	return s.output.ColorTexture(0), nil
}

func (s *Scene) drawLines(view *View, in Input) {
	s.lineVerts = s.lineVerts[:0]
	if in.Frame.Pinned {
		s.lineVerts = append(s.lineVerts, debug.FrustumLines(in.Optimise, frustumColor)...)
	}
	if s.config.Footprints {
		for _, set := range in.Sets {
			for _, v := range debug.TileFootprints(set) {
				v.Color = footprintColor
				s.lineVerts = append(s.lineVerts, v)
			}
		}
	}
	if len(s.lineVerts) == 0 {
		return
	}
	restore := s.geometry.OverlayTarget().BindWithViewport()
	s.lines.Draw(view, s.lineVerts)
	restore()
}

// Present blits the output into the default framebuffer.
func (s *Scene) Present(width, height int32) {
	w, h := s.output.Size()
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, s.output.FBO())
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BlitFramebuffer(0, 0, w, h, 0, 0, width, height, gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// CaptureImage reads the output back as RGBA8, bottom row first.
func (s *Scene) CaptureImage() ([]byte, int, int) {
	w, h := s.output.Size()
	return s.output.ReadPixels(), int(w), int(h)
}

// ReadGBuffer reads the G-buffer texels back, bottom row first.
func (s *Scene) ReadGBuffer() ([]deferred.Texel, error) {
	if s.geometry == nil {
		return nil, fmt.Errorf("scene: no patch layout attached")
	}
	return s.geometry.ReadTexels()
}

// Patches returns the number of patch slots drawn last frame.
func (s *Scene) Patches() int {
	if s.geometry == nil {
		return 0
	}
	return s.geometry.Patches()
}

// Resize updates the scene dimensions.
func (s *Scene) Resize(width, height int32) error {
	if width == s.config.Width && height == s.config.Height {
		return nil
	}
	s.config.Width = width
	s.config.Height = height
	if s.geometry != nil {
		if err := s.geometry.Resize(width, height); err != nil {
			return err
		}
	}
	if err := s.accum.Resize(width, height); err != nil {
		return err
	}
	return s.output.Resize(width, height)
}

// Destroy releases every pass. Atlases belong to the tile sets and are
// destroyed by DestroyAtlases.
func (s *Scene) Destroy() {
	if s.luts != nil {
		s.luts.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
	if s.compositor != nil {
		s.compositor.Destroy()
	}
	if s.lines != nil {
		s.lines.Destroy()
	}
	if s.accum != nil {
		s.accum.Destroy()
	}
	if s.geometry != nil {
		s.geometry.Destroy()
	}
	if s.tessellator != nil {
		s.tessellator.Destroy()
	}
	if s.painter != nil {
		s.painter.Destroy()
	}
}

// DestroyAtlases releases the GPU atlases of sets.
func DestroyAtlases(sets []*tile.Set) {
	for _, set := range sets {
		if a, ok := set.Atlas().(*Atlas); ok {
			a.Destroy()
		}
	}
}
