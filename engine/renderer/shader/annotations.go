package shader

import (
	"fmt"
	"strconv"
	"strings"
)

const annotationPrefix = "@oxy:"

// AnnotationType is the directive following the @oxy: prefix. Annotations are WGSL line
// comments, so the fullscreen vertex program and both fragment programs share one copy of
// every struct:
//
//	//@oxy:include <struct>
//	//@oxy:group <group> <binding> <address_space> <var> <struct>
type AnnotationType string

const (
	// AnnotationTypeInclude injects a shared struct at the annotation site.
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup declares a @group/@binding variable of a shared struct,
	// injecting the struct first if needed.
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// AnnotationArg names a shared struct or an address space.
type AnnotationArg string

const (
	AnnotationArgVaryings       AnnotationArg = "varyings"
	AnnotationArgVertexInput    AnnotationArg = "vertex_input"
	AnnotationArgCloudUniforms  AnnotationArg = "cloud_uniforms"
	AnnotationArgGlassUniforms  AnnotationArg = "glass_uniforms"
	AnnotationArgClipTransform  AnnotationArg = "clip_transform"
	annotationArgStorageUniform AnnotationArg = "storage_uniform"
)

type sharedStruct struct {
	source   string
	typeName string
}

var sharedStructs = map[AnnotationArg]sharedStruct{
	AnnotationArgVaryings:      {varyingsSource, "Varyings"},
	AnnotationArgVertexInput:   {vertexInputSource, "VertexInput"},
	AnnotationArgCloudUniforms: {cloudUniformsSource, "CloudUniforms"},
	AnnotationArgGlassUniforms: {glassUniformsSource, "GlassUniforms"},
	AnnotationArgClipTransform: {clipTransformSource, "ClipTransform"},
}

var addressSpaces = map[AnnotationArg]string{
	annotationArgStorageUniform: "var<uniform>",
}

// Annotation is one parsed directive.
type Annotation struct {
	Type AnnotationType

	// Line is 1-based.
	Line int

	// Struct is the shared struct both directives refer to.
	Struct AnnotationArg

	// Group annotations only.
	Group        int
	Binding      int
	AddressSpace AnnotationArg
	VarName      string
}

// declaration is the WGSL a group annotation stands for.
func (a Annotation) declaration() string {
	return fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
		a.Group, a.Binding, addressSpaces[a.AddressSpace], a.VarName, sharedStructs[a.Struct].typeName)
}

// parseAnnotation reads one source line. Lines without an annotation return nil, nil.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number used in errors
//
// Returns:
//   - *Annotation: the annotation, or nil
//   - error: an error naming the line if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(line), "//")
	if !ok {
		return nil, nil
	}
	body, ok = strings.CutPrefix(strings.TrimSpace(body), annotationPrefix)
	if !ok {
		return nil, nil
	}
	fail := func(format string, args ...any) (*Annotation, error) {
		return nil, fmt.Errorf("line %d: "+format, append([]any{lineNum}, args...)...)
	}

	fields := strings.Fields(body)
	if len(fields) == 0 {
		return fail("empty @oxy annotation")
	}
	a := &Annotation{Type: AnnotationType(fields[0]), Line: lineNum}
	args := fields[1:]

	switch a.Type {
	case AnnotationTypeInclude:
		if len(args) != 1 {
			return fail("include takes one struct, got %d arguments", len(args))
		}
	case AnnotationTypeBindingGroup:
		if len(args) != 5 {
			return fail("group takes group, binding, address space, name and struct, got %d arguments", len(args))
		}
		var err error
		if a.Group, err = strconv.Atoi(args[0]); err != nil {
			return fail("group %q: %v", args[0], err)
		}
		if a.Binding, err = strconv.Atoi(args[1]); err != nil {
			return fail("binding %q: %v", args[1], err)
		}
		a.AddressSpace, a.VarName = AnnotationArg(args[2]), args[3]
		if _, ok := addressSpaces[a.AddressSpace]; !ok {
			return fail("unknown address space %q", args[2])
		}
	default:
		return fail("unknown @oxy annotation %q", fields[0])
	}

	a.Struct = AnnotationArg(args[len(args)-1])
	if _, ok := sharedStructs[a.Struct]; !ok {
		return fail("unknown struct %q", a.Struct)
	}
	return a, nil
}
