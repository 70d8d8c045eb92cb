package scene

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-glass/common"
	"github.com/Carmen-Shannon/oxy-glass/engine/geometry"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/shader"
)

// Uniform and attribute names of the two programs.
var (
	CloudUniforms = []string{"time", "resolution", "noiseTex", "blueNoiseTex", "frame"}

	CompositeUniforms = []string{
		"tex", "resolution",
		"iorR", "iorY", "iorG", "iorC", "iorB", "iorP",
		"chromaticAberration", "refractPower", "fresnelPower",
		"saturation", "shininess", "diffuseness", "light",
	}

	QuadAttributes = []string{"position", "uv"}
)

// ProgramSources holds the shader text of both programs. The vertex stage is shared.
type ProgramSources struct {
	Vertex    string
	Cloud     string
	Composite string
}

// DefaultProgramSources loads the embedded programs.
//
// Returns:
//   - ProgramSources: the pre-processed sources
//   - error: an error if an embedded program fails to pre-process
func DefaultProgramSources() (ProgramSources, error) {
	var src ProgramSources
	var err error
	if src.Vertex, err = shader.Load(shader.SourceFullscreenVertex); err != nil {
		return src, err
	}
	if src.Cloud, err = shader.Load(shader.SourceCloudsFragment); err != nil {
		return src, err
	}
	if src.Composite, err = shader.Load(shader.SourceGlassFragment); err != nil {
		return src, err
	}
	return src, nil
}

// Resources is the immutable set of GPU objects shared by every frame. It is built once when
// the load completes and is never rebuilt on resize.
type Resources struct {
	Noise     *resource.Texture
	BlueNoise *resource.Texture

	QuadBuffer *resource.Buffer
	Quad       *resource.VertexArray

	Cloud     *resource.Program
	Composite *resource.Program

	// Diagnostics collects the program build errors. A failed program is left as the unusable
	// sentinel and its pass is skipped.
	Diagnostics []error
}

// quadLayout returns the interleaved quad data and its attribute layout.
func quadLayout() ([]float32, int, []device.VertexAttribute, error) {
	plane := geometry.Plane(2, 2, [4]float32{1, 1, 1, 1})
	data, stride, offsets, err := plane.Interleave(geometry.Position, geometry.TexCoord)
	if err != nil {
		return nil, 0, nil, err
	}
	attrs := []device.VertexAttribute{
		{Location: 0, Components: geometry.Position.Components(), Offset: offsets[0]},
		{Location: 1, Components: geometry.TexCoord.Components(), Offset: offsets[1]},
	}
	return data, stride, attrs, nil
}

// buildResources creates every GPU object from decoded images. Textures and quad state are
// all-or-nothing; program failures are collected instead.
func buildResources(f resource.Factory, noise, blueNoise common.TextureStagingData, src ProgramSources) (*Resources, error) {
	res := &Resources{
		Cloud:     resource.UnusableProgram(),
		Composite: resource.UnusableProgram(),
	}

	var err error
	if res.Noise, err = f.CreateTexture(noise); err != nil {
		return nil, fmt.Errorf("noise texture: %w", err)
	}
	if res.BlueNoise, err = f.CreateTexture(blueNoise); err != nil {
		res.Release(f)
		return nil, fmt.Errorf("blue noise texture: %w", err)
	}

	data, stride, attrs, err := quadLayout()
	if err != nil {
		res.Release(f)
		return nil, err
	}
	if res.QuadBuffer, err = f.CreateVertexBuffer(data, device.StaticDraw); err != nil {
		res.Release(f)
		return nil, err
	}
	if res.Quad, err = f.CreateVertexArray(res.QuadBuffer, stride, attrs); err != nil {
		res.Release(f)
		return nil, err
	}

	if p, err := f.CreateProgram(src.Vertex, src.Cloud, CloudUniforms, QuadAttributes); err != nil {
		log.Printf("[Scene] cloud program unusable: %v", err)
		res.Diagnostics = append(res.Diagnostics, fmt.Errorf("cloud program: %w", err))
	} else {
		res.Cloud = p
	}
	if p, err := f.CreateProgram(src.Vertex, src.Composite, CompositeUniforms, QuadAttributes); err != nil {
		log.Printf("[Scene] composite program unusable: %v", err)
		res.Diagnostics = append(res.Diagnostics, fmt.Errorf("composite program: %w", err))
	} else {
		res.Composite = p
	}

	return res, nil
}

// Release destroys every object the resources own. It is safe to call more than once.
func (r *Resources) Release(f resource.Factory) {
	if r == nil {
		return
	}
	f.DestroyProgram(r.Cloud)
	f.DestroyProgram(r.Composite)
	f.DestroyVertexArray(r.Quad)
	f.DestroyBuffer(r.QuadBuffer)
	f.DestroyTexture(r.Noise)
	f.DestroyTexture(r.BlueNoise)
}
