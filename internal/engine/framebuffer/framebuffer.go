// Package framebuffer provides offscreen render targets: multiple texture
// colour attachments and an optional 32-bit float depth texture.
package framebuffer

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
)

// Format describes one texture attachment.
type Format struct {
	Internal int32
	// Format and Type describe client data for reads.
	Format uint32
	Type   uint32
	// BytesPerPixel is the client side size of one pixel.
	BytesPerPixel int
	Filter        int32
}

// Attachment formats used by the terrain targets.
var (
	RGBA8   = Format{Internal: gl.RGBA8, Format: gl.RGBA, Type: gl.UNSIGNED_BYTE, BytesPerPixel: 4, Filter: gl.LINEAR}
	RGBA32F = Format{Internal: gl.RGBA32F, Format: gl.RGBA, Type: gl.FLOAT, BytesPerPixel: 16, Filter: gl.NEAREST}
	RG16I   = Format{Internal: gl.RG16I, Format: gl.RG_INTEGER, Type: gl.SHORT, BytesPerPixel: 4, Filter: gl.NEAREST}
	R16UI   = Format{Internal: gl.R16UI, Format: gl.RED_INTEGER, Type: gl.UNSIGNED_SHORT, BytesPerPixel: 2, Filter: gl.NEAREST}
)

// Config describes a framebuffer.
type Config struct {
	Color []Format
	// Depth adds a DEPTH_COMPONENT32F texture.
	Depth bool
	// SharedDepth attaches a depth texture owned by another framebuffer.
	// It is not released by Destroy.
	SharedDepth uint32
}

// Framebuffer manages an offscreen render target.
type Framebuffer struct {
	cfg    Config
	fbo    uint32
	colors []uint32
	depth  uint32
	width  int32
	height int32
}

// New creates a framebuffer with the specified dimensions.
func New(width, height int32, cfg Config) (*Framebuffer, error) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	fb := &Framebuffer{
		cfg:    cfg,
		width:  width,
		height: height,
	}
	if err := fb.create(); err != nil {
		return nil, fmt.Errorf("creating framebuffer: %w", err)
	}
	return fb, nil
}

// NewColor creates a framebuffer with one RGBA8 attachment.
func NewColor(width, height int32) (*Framebuffer, error) {
	return New(width, height, Config{Color: []Format{RGBA8}})
}

func (fb *Framebuffer) create() error {
	gl.GenFramebuffers(1, &fb.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)

	fb.colors = make([]uint32, len(fb.cfg.Color))
	buffers := make([]uint32, len(fb.cfg.Color))
	for i, f := range fb.cfg.Color {
		gl.GenTextures(1, &fb.colors[i])
		gl.BindTexture(gl.TEXTURE_2D, fb.colors[i])
		gl.TexStorage2D(gl.TEXTURE_2D, 1, uint32(f.Internal), fb.width, fb.height)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, f.Filter)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, f.Filter)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0+uint32(i), gl.TEXTURE_2D, fb.colors[i], 0)
		buffers[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	if len(buffers) > 0 {
		gl.DrawBuffers(int32(len(buffers)), &buffers[0])
	}

	if fb.cfg.Depth {
		gl.GenTextures(1, &fb.depth)
		gl.BindTexture(gl.TEXTURE_2D, fb.depth)
		gl.TexStorage2D(gl.TEXTURE_2D, 1, gl.DEPTH_COMPONENT32F, fb.width, fb.height)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, fb.depth, 0)
	} else if fb.cfg.SharedDepth != 0 {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, fb.cfg.SharedDepth, 0)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		fb.Destroy()
		return fmt.Errorf("framebuffer incomplete: 0x%x", status)
	}
	return nil
}

// Bind makes this framebuffer the current render target.
func (fb *Framebuffer) Bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)
	gl.Viewport(0, 0, fb.width, fb.height)
}

// Unbind restores the default framebuffer.
func (fb *Framebuffer) Unbind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// BindWithViewport binds and sets the viewport, returning a function that
// restores the previous framebuffer and viewport.
func (fb *Framebuffer) BindWithViewport() func() {
	var prevFBO int32
	var prevViewport [4]int32
	gl.GetIntegerv(gl.FRAMEBUFFER_BINDING, &prevFBO)
	gl.GetIntegerv(gl.VIEWPORT, &prevViewport[0])

	fb.Bind()

	return func() {
		gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(prevFBO))
		gl.Viewport(prevViewport[0], prevViewport[1], prevViewport[2], prevViewport[3])
	}
}

// ClearColor clears attachment i to a float colour.
func (fb *Framebuffer) ClearColor(i int, c [4]float32) {
	gl.ClearBufferfv(gl.COLOR, int32(i), &c[0])
}

// ClearColorUint clears an unsigned integer attachment.
func (fb *Framebuffer) ClearColorUint(i int, c [4]uint32) {
	gl.ClearBufferuiv(gl.COLOR, int32(i), &c[0])
}

// ClearDepth clears the depth attachment.
func (fb *Framebuffer) ClearDepth(d float32) {
	gl.ClearBufferfv(gl.DEPTH, 0, &d)
}

// ColorTexture returns attachment i.
func (fb *Framebuffer) ColorTexture(i int) uint32 {
	return fb.colors[i]
}

// DepthTexture returns the depth texture, 0 without one.
func (fb *Framebuffer) DepthTexture() uint32 {
	return fb.depth
}

// FBO returns the underlying framebuffer object ID.
func (fb *Framebuffer) FBO() uint32 {
	return fb.fbo
}

// Size returns the framebuffer dimensions.
func (fb *Framebuffer) Size() (width, height int32) {
	return fb.width, fb.height
}

// Resize recreates the attachments if the size changed. Immutable storage
// cannot be resized in place.
func (fb *Framebuffer) Resize(width, height int32) error {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == fb.width && height == fb.height {
		return nil
	}
	fb.Destroy()
	fb.width = width
	fb.height = height
	return fb.create()
}

// ReadColor reads attachment i into dst, which must hold width·height
// pixels of the attachment's client size. Rows are bottom first.
func (fb *Framebuffer) ReadColor(i int, dst []byte) error {
	f := fb.cfg.Color[i]
	want := int(fb.width) * int(fb.height) * f.BytesPerPixel
	if len(dst) != want {
		return fmt.Errorf("read attachment %d: buffer holds %d bytes, want %d", i, len(dst), want)
	}

	var prevFBO int32
	gl.GetIntegerv(gl.READ_FRAMEBUFFER_BINDING, &prevFBO)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, fb.fbo)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(i))
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, fb.width, fb.height, f.Format, f.Type, gl.Ptr(dst))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(prevFBO))
	return nil
}

// ReadPixels reads the first RGBA8 attachment, bottom row first.
func (fb *Framebuffer) ReadPixels() []byte {
	pixels := make([]byte, int(fb.width)*int(fb.height)*4)
	if err := fb.ReadColor(0, pixels); err != nil {
		return nil
	}
	return pixels
}

// Destroy releases all GL resources.
func (fb *Framebuffer) Destroy() {
	if fb.fbo != 0 {
		gl.DeleteFramebuffers(1, &fb.fbo)
		fb.fbo = 0
	}
	if len(fb.colors) > 0 {
		gl.DeleteTextures(int32(len(fb.colors)), &fb.colors[0])
		fb.colors = nil
	}
	if fb.depth != 0 {
		gl.DeleteTextures(1, &fb.depth)
		fb.depth = 0
	}
}
