// Package geometry generates the static meshes used by the render passes.
package geometry

import "fmt"

// Attribute names a per-vertex stream of a Mesh.
type Attribute int

const (
	// Position is the vec3 vertex position.
	Position Attribute = iota
	// Normal is the vec3 vertex normal.
	Normal
	// Color is the vec4 vertex color.
	Color
	// TexCoord is the vec2 texture coordinate.
	TexCoord
)

// Components returns the number of float32 values one vertex stores for the attribute.
func (a Attribute) Components() int {
	switch a {
	case Position, Normal:
		return 3
	case Color:
		return 4
	case TexCoord:
		return 2
	default:
		return 0
	}
}

func (a Attribute) String() string {
	switch a {
	case Position:
		return "position"
	case Normal:
		return "normal"
	case Color:
		return "color"
	case TexCoord:
		return "uv"
	default:
		return "unknown"
	}
}

// Mesh is an indexed triangle mesh stored as separate attribute streams.
type Mesh struct {
	Positions []float32
	Normals   []float32
	Colors    []float32
	TexCoords []float32
	Indices   []uint16
}

// VertexCount returns the number of vertices in the mesh.
func (m Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

func (m Mesh) stream(a Attribute) []float32 {
	switch a {
	case Position:
		return m.Positions
	case Normal:
		return m.Normals
	case Color:
		return m.Colors
	case TexCoord:
		return m.TexCoords
	default:
		return nil
	}
}

// Plane builds a rectangle centered on the origin in the XY plane, facing +Z.
// Vertices are ordered top-left, top-right, bottom-left, bottom-right, so the first four
// vertices can also be drawn directly as a triangle strip.
//
// Parameters:
//   - width: the extent along X
//   - height: the extent along Y
//   - color: the RGBA color assigned to every vertex
//
// Returns:
//   - Mesh: the plane with indices (0,2,1) and (1,2,3)
func Plane(width, height float32, color [4]float32) Mesh {
	w, h := width/2, height/2

	m := Mesh{
		Positions: []float32{
			-w, h, 0,
			w, h, 0,
			-w, -h, 0,
			w, -h, 0,
		},
		Normals: []float32{
			0, 0, 1,
			0, 0, 1,
			0, 0, 1,
			0, 0, 1,
		},
		TexCoords: []float32{
			0, 0,
			1, 0,
			0, 1,
			1, 1,
		},
		Indices: []uint16{0, 2, 1, 1, 2, 3},
	}
	m.Colors = make([]float32, 0, 16)
	for range 4 {
		m.Colors = append(m.Colors, color[:]...)
	}
	return m
}

// Interleave packs the selected attribute streams into one buffer, vertex by vertex, in the
// order the attributes are given.
//
// Parameters:
//   - attrs: the attributes to pack
//
// Returns:
//   - []float32: the interleaved data
//   - int: the stride of one vertex in bytes
//   - []int: the byte offset of each attribute inside a vertex
//   - error: an error if a stream is missing or has the wrong length
func (m Mesh) Interleave(attrs ...Attribute) ([]float32, int, []int, error) {
	count := m.VertexCount()
	floats := 0
	offsets := make([]int, len(attrs))
	for i, a := range attrs {
		n := a.Components()
		if n == 0 {
			return nil, 0, nil, fmt.Errorf("interleave: unknown attribute %d", a)
		}
		if len(m.stream(a)) != count*n {
			return nil, 0, nil, fmt.Errorf("interleave: %s has %d values, want %d", a, len(m.stream(a)), count*n)
		}
		offsets[i] = floats * 4
		floats += n
	}

	out := make([]float32, 0, count*floats)
	for v := range count {
		for _, a := range attrs {
			n := a.Components()
			out = append(out, m.stream(a)[v*n:(v+1)*n]...)
		}
	}
	return out, floats * 4, offsets, nil
}
