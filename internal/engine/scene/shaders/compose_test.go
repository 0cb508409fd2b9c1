package shaders

import (
	"strings"
	"testing"
)

func TestComposeInsertsAfterVersion(t *testing.T) {
	src := "#version 430 core\nvoid main() {}\n"
	got, err := Compose(src, map[string]any{
		"WORKGROUP_SIZE": 8,
		"CLEAR":          nil,
		"RADIUS":         6371.0,
		"SCALE":          float32(2),
	}, "float helper() { return 1.0; }")
	if err != nil {
		t.Fatal(err)
	}
	want := "#version 430 core\n" +
		"#define CLEAR\n" +
		"#define RADIUS 6371.0\n" +
		"#define SCALE 2.0\n" +
		"#define WORKGROUP_SIZE 8\n" +
		"float helper() { return 1.0; }\n" +
		"void main() {}\n"
	if got != want {
		t.Errorf("Compose:\n%s\nwant:\n%s", got, want)
	}
}

func TestComposeKeepsLeadingComments(t *testing.T) {
	src := "// header\n#version 430 core\nvoid main() {}"
	got, err := Compose(src, map[string]any{"A": 1})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "// header\n#version 430 core\n#define A 1\n") {
		t.Errorf("got %q", got)
	}
}

func TestComposeWithoutVersion(t *testing.T) {
	if _, err := Compose("void main() {}", nil); err == nil {
		t.Fatal("want error for a source without #version")
	}
}

func TestGLSLFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{0.5, "0.5"},
		{1e-7, "1e-07"},
		{-3, "-3.0"},
	}
	for _, tt := range tests {
		if got := glslFloat(tt.in); got != tt.want {
			t.Errorf("glslFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbeddedSourcesHaveVersion(t *testing.T) {
	for name, src := range map[string]string{
		"index_paint.vert": IndexPaintVertexShader,
		"index_paint.frag": IndexPaintFragmentShader,
		"tessellate.comp":  TessellateComputeShader,
		"gbuffer.vert":     GBufferVertexShader,
		"gbuffer.frag":     GBufferFragmentShader,
		"wireframe.frag":   WireframeFragmentShader,
		"accumulate.comp":  AccumulateComputeShader,
		"composite.vert":   CompositeVertexShader,
		"composite.frag":   CompositeFragmentShader,
		"lines.vert":       LinesVertexShader,
		"lines.frag":       LinesFragmentShader,
	} {
		if !strings.HasPrefix(src, "#version 430 core") {
			t.Errorf("%s does not start with #version 430 core", name)
		}
	}
	if strings.Contains(Common, "#version") {
		t.Error("common.glsl is an include and must not declare a version")
	}
}
