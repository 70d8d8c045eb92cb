package device

import (
	"errors"
	"fmt"
)

var (
	// ErrCompileFailed is reported when a shader stage does not compile.
	ErrCompileFailed = errors.New("shader compile failed")

	// ErrLinkFailed is reported when two compiled stages do not form a valid program.
	ErrLinkFailed = errors.New("program link failed")

	// ErrIncompleteFramebuffer is reported when a framebuffer's attachments are rejected.
	ErrIncompleteFramebuffer = errors.New("incomplete framebuffer")

	// ErrUnknownObject is reported when a handle does not name a live object.
	ErrUnknownObject = errors.New("unknown device object")

	// ErrNoFrame is reported when the screen is drawn to outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("no surface frame acquired")
)

// ShaderError carries the diagnostic text of a failed compile or link.
type ShaderError struct {
	// Kind is ErrCompileFailed or ErrLinkFailed.
	Kind error

	// Stage is the failing stage. Only meaningful for compile failures.
	Stage ShaderStage

	// Label identifies the shader or program in logs.
	Label string

	// Log is the compiler or linker output.
	Log string
}

func (e *ShaderError) Error() string {
	if errors.Is(e.Kind, ErrCompileFailed) {
		return fmt.Sprintf("%s %s shader %q: %s", e.Kind, e.Stage, e.Label, e.Log)
	}
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Label, e.Log)
}

func (e *ShaderError) Unwrap() error {
	return e.Kind
}
