package params

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-glass/common"
)

// Panel edits a Params value from keyboard input. Up and Down select a parameter, Right and
// Left step it (ten steps while Shift is held), R resets the selected parameter and Backspace
// resets all of them.
type Panel struct {
	params   *Params
	selected int
	shift    bool
	onChange func(name string, value float32)
}

// NewPanel creates a panel writing into p.
//
// Parameters:
//   - p: the parameters to edit
//
// Returns:
//   - *Panel: the panel, with the first parameter selected
func NewPanel(p *Params) *Panel {
	return &Panel{
		params: p,
		onChange: func(name string, value float32) {
			log.Printf("[Params] %s = %.3f", name, value)
		},
	}
}

// SetChangeCallback replaces the function called after a parameter changes.
func (pn *Panel) SetChangeCallback(callback func(name string, value float32)) {
	pn.onChange = callback
}

// Selected returns the range currently edited.
func (pn *Panel) Selected() Range {
	return Ranges[pn.selected]
}

// KeyDown applies a key press. It reports whether the key was consumed.
func (pn *Panel) KeyDown(keyCode uint32) bool {
	switch keyCode {
	case common.KeyLeftShift, common.KeyRightShift:
		pn.shift = true
	case common.KeyDown:
		pn.selected = (pn.selected + 1) % len(Ranges)
		pn.changed(pn.Selected())
	case common.KeyUp:
		pn.selected = (pn.selected + len(Ranges) - 1) % len(Ranges)
		pn.changed(pn.Selected())
	case common.KeyRight:
		pn.step(1)
	case common.KeyLeft:
		pn.step(-1)
	case common.KeyR:
		r := pn.Selected()
		r.Set(pn.params, r.Default)
		pn.changed(r)
	case common.KeyBackspace:
		*pn.params = *Default()
		for _, r := range Ranges {
			pn.changed(r)
		}
	default:
		return false
	}
	return true
}

// KeyUp applies a key release.
func (pn *Panel) KeyUp(keyCode uint32) {
	if keyCode == common.KeyLeftShift || keyCode == common.KeyRightShift {
		pn.shift = false
	}
}

func (pn *Panel) step(dir float32) {
	r := pn.Selected()
	amount := r.Step * dir
	if pn.shift {
		amount *= 10
	}
	r.Set(pn.params, r.Get(pn.params)+amount)
	pn.changed(r)
}

func (pn *Panel) changed(r Range) {
	if pn.onChange != nil {
		pn.onChange(r.Name, r.Get(pn.params))
	}
}

// String renders the selected parameter for the window title.
func (pn *Panel) String() string {
	r := pn.Selected()
	return fmt.Sprintf("%s %.3f [%g..%g]", r.Name, r.Get(pn.params), r.Min, r.Max)
}
