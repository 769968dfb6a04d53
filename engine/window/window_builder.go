package window

// WindowBuilderOption is a functional option for configuring a window.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the initial window size. The framebuffer size may differ on high-DPI displays.
//
// Parameters:
//   - width: initial width in screen coordinates
//   - height: initial height in screen coordinates
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.width, w.height = width, height
	}
}

// WithMinSize sets the smallest size the window can be resized to.
func WithMinSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.minWidth, w.minHeight = width, height
	}
}

// WithMaxSize sets the largest size the window can be resized to. When not specified the size is
// unbounded.
func WithMaxSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.maxWidth, w.maxHeight = width, height
	}
}
