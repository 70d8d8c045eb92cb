package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// typeLayout is the size and alignment of a WGSL type in the uniform address space.
type typeLayout struct {
	size  uint64
	align uint64
}

var scalarSizes = map[string]uint64{"f32": 4, "i32": 4, "u32": 4}

// vertexFormats is indexed by component count minus one.
var vertexFormats = map[string][4]wgpu.VertexFormat{
	"f32": {wgpu.VertexFormatFloat32, wgpu.VertexFormatFloat32x2, wgpu.VertexFormatFloat32x3, wgpu.VertexFormatFloat32x4},
	"i32": {wgpu.VertexFormatSint32, wgpu.VertexFormatSint32x2, wgpu.VertexFormatSint32x3, wgpu.VertexFormatSint32x4},
	"u32": {wgpu.VertexFormatUint32, wgpu.VertexFormatUint32x2, wgpu.VertexFormatUint32x3, wgpu.VertexFormatUint32x4},
}

func alignUp(align, n uint64) uint64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// vectorType splits "vec3f" or "vec3<f32>" into component count and scalar. A bare scalar
// has one component.
func vectorType(typ string) (int, string, bool) {
	if _, ok := scalarSizes[typ]; ok {
		return 1, typ, true
	}
	if len(typ) < 5 || !strings.HasPrefix(typ, "vec") {
		return 0, "", false
	}
	n := int(typ[3] - '0')
	if n < 2 || n > 4 {
		return 0, "", false
	}
	var scalar string
	switch rest := typ[4:]; {
	case len(rest) == 1:
		scalar = rest + "32"
	case rest[0] == '<' && rest[len(rest)-1] == '>':
		scalar = strings.TrimSpace(rest[1 : len(rest)-1])
	}
	if _, ok := scalarSizes[scalar]; !ok {
		return 0, "", false
	}
	return n, scalar, true
}

func vectorLayout(n int) typeLayout {
	l := typeLayout{size: uint64(4 * n), align: 16}
	switch n {
	case 1:
		l.align = 4
	case 2:
		l.align = 8
	}
	return l
}

// vertexFormat maps a vertex input type to its attribute format and byte size.
func vertexFormat(typ string) (wgpu.VertexFormat, uint64, bool) {
	n, scalar, ok := vectorType(typ)
	if !ok {
		return wgpu.VertexFormatUndefined, 0, false
	}
	return vertexFormats[scalar][n-1], uint64(4 * n), true
}

// matrixLayout handles matCxR<f32> and matCxRf, stored as C columns of vecR.
func matrixLayout(typ string) (typeLayout, bool) {
	if len(typ) < 7 || !strings.HasPrefix(typ, "mat") || typ[4] != 'x' {
		return typeLayout{}, false
	}
	if rest := typ[6:]; rest != "f" && strings.ReplaceAll(rest, " ", "") != "<f32>" {
		return typeLayout{}, false
	}
	cols, rows := int(typ[3]-'0'), int(typ[5]-'0')
	if cols < 2 || cols > 4 || rows < 2 || rows > 4 {
		return typeLayout{}, false
	}
	col := vectorLayout(rows)
	return typeLayout{size: uint64(cols) * alignUp(col.align, col.size), align: col.align}, true
}

// layoutOf resolves the uniform layout of typ. Arrays and nested structs are padded to
// 16 bytes as the uniform address space requires. Runtime-sized arrays are rejected.
func (m *module) layoutOf(typ string, visiting map[string]bool) (typeLayout, bool) {
	typ = strings.TrimSpace(typ)
	if n, _, ok := vectorType(typ); ok {
		return vectorLayout(n), true
	}
	if l, ok := matrixLayout(typ); ok {
		return l, true
	}
	if strings.HasPrefix(typ, "array<") && strings.HasSuffix(typ, ">") {
		inner := typ[len("array<") : len(typ)-1]
		i := strings.LastIndexByte(inner, ',')
		if i < 0 {
			return typeLayout{}, false
		}
		count, err := strconv.ParseUint(strings.TrimSpace(inner[i+1:]), 10, 32)
		if err != nil || count == 0 {
			return typeLayout{}, false
		}
		elem, ok := m.layoutOf(inner[:i], visiting)
		if !ok {
			return typeLayout{}, false
		}
		align := alignUp(16, elem.align)
		stride := alignUp(16, alignUp(elem.align, elem.size))
		return typeLayout{size: count * stride, align: align}, true
	}
	s, ok := m.structs[typ]
	if !ok || visiting[typ] {
		return typeLayout{}, false
	}
	_, l, ok := m.structLayout(s, visiting)
	return l, ok
}

// structLayout places each member of s at the next offset its alignment allows.
func (m *module) structLayout(s structDecl, visiting map[string]bool) ([]UniformMember, typeLayout, bool) {
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	visiting[s.name] = true
	defer delete(visiting, s.name)

	members := make([]UniformMember, 0, len(s.members))
	var offset, align uint64
	for _, f := range s.members {
		l, ok := m.layoutOf(f.typ, visiting)
		if !ok {
			return nil, typeLayout{}, false
		}
		if _, nested := m.structs[f.typ]; nested {
			l.align = alignUp(16, l.align)
		}
		offset = alignUp(l.align, offset)
		members = append(members, UniformMember{Name: f.name, Type: f.typ, Offset: offset, Size: l.size})
		offset += l.size
		align = max(align, l.align)
	}
	return members, typeLayout{size: alignUp(align, offset), align: align}, true
}
