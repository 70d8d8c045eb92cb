// Package params holds the tunable shading parameters of the glass composite pass.
package params

import (
	"fmt"
	"iter"

	"github.com/go-gl/mathgl/mgl32"
)

// Params is the set of values the composite pass uploads every frame. The panel or the config
// loader is the only writer; the render pipeline only reads it.
type Params struct {
	IorR float32 `yaml:"iorR"`
	IorY float32 `yaml:"iorY"`
	IorG float32 `yaml:"iorG"`
	IorC float32 `yaml:"iorC"`
	IorB float32 `yaml:"iorB"`
	IorP float32 `yaml:"iorP"`

	ChromaticAberration float32 `yaml:"chromaticAberration"`
	RefractPower        float32 `yaml:"refractPower"`
	FresnelPower        float32 `yaml:"fresnelPower"`
	Saturation          float32 `yaml:"saturation"`
	Shininess           float32 `yaml:"shininess"`
	Diffuseness         float32 `yaml:"diffuseness"`

	// Light is the light direction used by the specular term. It has no panel binding.
	Light mgl32.Vec3 `yaml:"light"`
}

// Range describes one tunable scalar: its uniform name, bounds, step and default.
type Range struct {
	Name    string
	Min     float32
	Max     float32
	Step    float32
	Default float32

	field func(p *Params) *float32
}

// Ranges lists the tunable scalars in panel order.
var Ranges = []Range{
	{Name: "iorR", Min: 1.0, Max: 2.333, Step: 0.001, Default: 1.15, field: func(p *Params) *float32 { return &p.IorR }},
	{Name: "iorY", Min: 1.0, Max: 2.333, Step: 0.001, Default: 1.16, field: func(p *Params) *float32 { return &p.IorY }},
	{Name: "iorG", Min: 1.0, Max: 2.333, Step: 0.001, Default: 1.18, field: func(p *Params) *float32 { return &p.IorG }},
	{Name: "iorC", Min: 1.0, Max: 2.333, Step: 0.001, Default: 1.22, field: func(p *Params) *float32 { return &p.IorC }},
	{Name: "iorB", Min: 1.0, Max: 2.333, Step: 0.001, Default: 1.22, field: func(p *Params) *float32 { return &p.IorB }},
	{Name: "iorP", Min: 1.0, Max: 2.333, Step: 0.001, Default: 1.22, field: func(p *Params) *float32 { return &p.IorP }},
	{Name: "chromaticAberration", Min: 0.0, Max: 1.5, Step: 0.01, Default: 1.0, field: func(p *Params) *float32 { return &p.ChromaticAberration }},
	{Name: "refractPower", Min: 0.0, Max: 1.0, Step: 0.01, Default: 0.8, field: func(p *Params) *float32 { return &p.RefractPower }},
	{Name: "fresnelPower", Min: 1.0, Max: 20.0, Step: 0.01, Default: 8.0, field: func(p *Params) *float32 { return &p.FresnelPower }},
	{Name: "saturation", Min: 1.0, Max: 1.25, Step: 0.01, Default: 1.04, field: func(p *Params) *float32 { return &p.Saturation }},
	{Name: "shininess", Min: 1.0, Max: 100.0, Step: 0.1, Default: 30.0, field: func(p *Params) *float32 { return &p.Shininess }},
	{Name: "diffuseness", Min: 0.0, Max: 1.0, Step: 0.01, Default: 0.2, field: func(p *Params) *float32 { return &p.Diffuseness }},
}

// DefaultLight is the initial light direction.
var DefaultLight = mgl32.Vec3{6.0, 5.0, -15.0}

// Default returns the parameters at their default values.
//
// Returns:
//   - *Params: a new parameter set
func Default() *Params {
	p := &Params{Light: DefaultLight}
	for _, r := range Ranges {
		*r.field(p) = r.Default
	}
	return p
}

// Clamp limits v to the range.
func (r Range) Clamp(v float32) float32 {
	return mgl32.Clamp(v, r.Min, r.Max)
}

// Get returns the value of the range's field in p.
func (r Range) Get(p *Params) float32 {
	return *r.field(p)
}

// Set stores v, clamped, into the range's field in p.
func (r Range) Set(p *Params, v float32) {
	*r.field(p) = r.Clamp(v)
}

// Values yields the tunable scalars by uniform name, in panel order.
func (p *Params) Values() iter.Seq2[string, float32] {
	return func(yield func(string, float32) bool) {
		for _, r := range Ranges {
			if !yield(r.Name, r.Get(p)) {
				return
			}
		}
	}
}

// Validate clamps every scalar into its range and reports the names that were out of range.
//
// Returns:
//   - error: an error naming the adjusted parameters, or nil
func (p *Params) Validate() error {
	var adjusted []string
	for _, r := range Ranges {
		v := r.Get(p)
		if c := r.Clamp(v); c != v {
			r.Set(p, c)
			adjusted = append(adjusted, fmt.Sprintf("%s=%g->%g", r.Name, v, c))
		}
	}
	if len(adjusted) > 0 {
		return fmt.Errorf("params out of range: %v", adjusted)
	}
	return nil
}
