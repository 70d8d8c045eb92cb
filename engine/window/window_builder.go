package window

// WindowBuilderOption configures a window before it is opened.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the title bar text.
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the requested size in screen coordinates. On high-DPI displays the
// framebuffer reported by Width and Height is larger. Non-positive values keep the default.
//
// Parameters:
//   - width: initial width
//   - height: initial height
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		if width > 0 {
			w.width = width
		}
		if height > 0 {
			w.height = height
		}
	}
}

// WithSizeLimits bounds interactive resizing. Zero leaves a bound open.
func WithSizeLimits(minWidth, minHeight, maxWidth, maxHeight int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.minWidth, w.minHeight = minWidth, minHeight
		w.maxWidth, w.maxHeight = maxWidth, maxHeight
	}
}

// sizeLimits returns the limits as glfw.Window.SetSizeLimits takes them: glfw.DontCare (-1)
// for an open bound and a maximum never below its minimum.
func (w *engineWindow) sizeLimits() (minW, minH, maxW, maxH int) {
	bound := func(v int) int {
		if v <= 0 {
			return -1
		}
		return v
	}
	minW, minH, maxW, maxH = bound(w.minWidth), bound(w.minHeight), bound(w.maxWidth), bound(w.maxHeight)
	if maxW != -1 && maxW < minW {
		maxW = minW
	}
	if maxH != -1 && maxH < minH {
		maxH = minH
	}
	return minW, minH, maxW, maxH
}
