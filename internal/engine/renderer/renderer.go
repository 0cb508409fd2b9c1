// Package renderer initialises OpenGL and owns the state shared by every
// pass: reverse-Z depth, primitive restart and the GL debug log.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
	// Debug routes GL debug messages to the log.
	Debug bool
}

// Renderer holds the default framebuffer size.
type Renderer struct {
	log    *zap.Logger
	config Config
}

// New loads the GL entry points. It must be called after the context is
// current.
func New(log *zap.Logger, cfg Config) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{log: log, config: cfg}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	var major, minor int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.String("glsl", gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))))
	if major < 4 || (major == 4 && minor < 3) {
		return nil, fmt.Errorf("OpenGL 4.3 required, have %d.%d", major, minor)
	}

	if cfg.Debug {
		gl.Enable(gl.DEBUG_OUTPUT)
		gl.Enable(gl.DEBUG_OUTPUT_SYNCHRONOUS)
		gl.DebugMessageCallback(r.debugMessage, nil)
	}

	gl.Enable(gl.PRIMITIVE_RESTART_FIXED_INDEX)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)
	ReverseZ()
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))
	return r, nil
}

// ReverseZ sets the depth test used by every depth-writing pass: depth is
// near/w, cleared to 0 and compared with GREATER.
func ReverseZ() {
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.GREATER)
	gl.ClearDepthf(0)
}

func (r *Renderer) debugMessage(source, gltype, id, severity uint32, length int32, message string, _ unsafe.Pointer) {
	fields := []zap.Field{
		zap.Uint32("source", source),
		zap.Uint32("type", gltype),
		zap.Uint32("id", id),
	}
	switch severity {
	case gl.DEBUG_SEVERITY_HIGH:
		r.log.Error("gl: "+message, fields...)
	case gl.DEBUG_SEVERITY_MEDIUM:
		r.log.Warn("gl: "+message, fields...)
	default:
		r.log.Debug("gl: "+message, fields...)
	}
}

// Close releases renderer resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
}

// Size returns the default framebuffer size.
func (r *Renderer) Size() (int, int) {
	return r.config.Width, r.config.Height
}

// Resize handles a drawable size change.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Begin binds and clears the default framebuffer.
func (r *Renderer) Begin() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(r.config.Width), int32(r.config.Height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// End finishes the frame.
func (r *Renderer) End() {
	if err := gl.GetError(); err != gl.NO_ERROR {
		r.log.Warn("gl error at end of frame", zap.Uint32("code", err))
	}
}
