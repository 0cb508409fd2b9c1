// Package ui provides the Dear ImGui backend and the terrain debug panels.
package ui

import (
	"fmt"
	"image"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/backend/sdlbackend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/gl/v4.3-core/gl"
)

// Backend wraps the ImGui SDL backend, which owns its own window and GL
// context.
type Backend struct {
	backend backend.Backend[sdlbackend.SDLWindowFlags]
	width   int32
	height  int32
}

// NewBackend creates the ImGui window and loads GL entry points for it.
func NewBackend(title string, width, height int32) (*Backend, error) {
	b := &Backend{
		width:  width,
		height: height,
	}

	var err error
	b.backend, err = backend.CreateBackend(sdlbackend.NewSDLBackend())
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	b.backend.SetBgColor(imgui.NewVec4(0.08, 0.09, 0.11, 1.0))
	b.backend.CreateWindow(title, int(width), int(height))

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init opengl: %w", err)
	}
	return b, nil
}

// Run starts the render loop; renderFunc is called once per frame between
// NewFrame and Render.
func (b *Backend) Run(renderFunc func()) {
	b.backend.Run(renderFunc)
}

// SetWindowTitle updates the window title.
func (b *Backend) SetWindowTitle(title string) {
	b.backend.SetWindowTitle(title)
}

// GetWindowSize returns the size the window was created with.
func (b *Backend) GetWindowSize() (int32, int32) {
	return b.width, b.height
}

// GetViewport returns the main viewport work area.
func (b *Backend) GetViewport() (posX, posY, width, height float32) {
	viewport := imgui.MainViewport()
	workPos := viewport.WorkPos()
	workSize := viewport.WorkSize()
	return workPos.X, workPos.Y, workSize.X, workSize.Y
}

// Texture is an image uploaded for display in ImGui.
type Texture struct {
	tex    *backend.Texture
	Width  int
	Height int
}

// NewTexture uploads img.
func NewTexture(img *image.RGBA) *Texture {
	return &Texture{
		tex:    backend.NewTextureFromRgba(img),
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
	}
}

// Image draws the texture scaled to w × h.
func (t *Texture) Image(w, h float32) {
	imgui.ImageWithBgV(
		t.tex.ID,
		imgui.NewVec2(w, h),
		imgui.NewVec2(0, 0),
		imgui.NewVec2(1, 1),
		imgui.NewVec4(0.2, 0.2, 0.2, 1.0),
		imgui.NewVec4(1, 1, 1, 1),
	)
}

// Release frees the GL texture.
func (t *Texture) Release() {
	if t != nil && t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

// IsKeyPressed checks if a key was pressed this frame.
func IsKeyPressed(key imgui.Key) bool {
	return imgui.IsKeyChordPressed(imgui.KeyChord(key))
}
