package shader

import "strings"

type preProcessor struct {
	declarations []Annotation
}

// PreProcessor expands @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process replaces every annotation line with its expansion. A struct is injected at
	// most once per source; later annotations naming it expand to the declaration alone.
	//
	// Parameters:
	//   - source: WGSL source that may contain annotations
	//
	// Returns:
	//   - string: the expanded source
	//   - error: an error naming the line of a malformed annotation
	Process(source string) (string, error)

	// Declarations returns the group annotations of the last Process call in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

func NewPreProcessor() PreProcessor {
	return &preProcessor{}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	included := make(map[AnnotationArg]bool)

	var out strings.Builder
	out.Grow(len(source))
	for i, line := range strings.Split(source, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out.WriteString(line)
			continue
		}

		if !included[a.Struct] {
			included[a.Struct] = true
			out.WriteString(strings.TrimRight(sharedStructs[a.Struct].source, "\n"))
			if a.Type == AnnotationTypeBindingGroup {
				out.WriteByte('\n')
			}
		}
		if a.Type == AnnotationTypeBindingGroup {
			out.WriteString(a.declaration())
			p.declarations = append(p.declarations, *a)
		}
	}
	return out.String(), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
