// Package shaders provides the embedded GLSL sources of the terrain passes.
//
// Constants shared with the Go side (tile geometry, workgroup size, palette
// length) are not written into the sources; the scene injects them with
// Compose as #define lines.
package shaders

import _ "embed"

// Common holds the tile index and atlas lookups shared by the compute
// passes.
//
//go:embed common.glsl
var Common string

// IndexPaintVertexShader places index paint quads in index clip space.
//
//go:embed index_paint.vert
var IndexPaintVertexShader string

// IndexPaintFragmentShader writes the atlas slot into the R16UI index.
//
//go:embed index_paint.frag
var IndexPaintFragmentShader string

// TessellateComputeShader runs the prepare, expand, finish and displace
// passes over the patch vertex buffer.
//
//go:embed tessellate.comp
var TessellateComputeShader string

// GBufferVertexShader pulls tessellated vertices from the vertex buffer.
//
//go:embed gbuffer.vert
var GBufferVertexShader string

// GBufferFragmentShader writes (lat, lon, weight, level) texels.
//
//go:embed gbuffer.frag
var GBufferFragmentShader string

// WireframeFragmentShader colours patch edges by level.
//
//go:embed wireframe.frag
var WireframeFragmentShader string

// AccumulateComputeShader holds the clear, colour, normal and level kernels,
// selected with a define.
//
//go:embed accumulate.comp
var AccumulateComputeShader string

// CompositeVertexShader emits a full-screen triangle.
//
//go:embed composite.vert
var CompositeVertexShader string

// CompositeFragmentShader shades the accumulators and the sky.
//
//go:embed composite.frag
var CompositeFragmentShader string

// LinesVertexShader draws debug lines given in planet kilometres.
//
//go:embed lines.vert
var LinesVertexShader string

// LinesFragmentShader outputs the line colour.
//
//go:embed lines.frag
var LinesFragmentShader string
