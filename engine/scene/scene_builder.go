package scene

// LoaderBuilderOption is a functional option for configuring a Loader.
// Use the With* functions to create options.
type LoaderBuilderOption func(l *loader)

// WithNoisePath sets the path of the general noise image inside the image source.
//
// Parameters:
//   - path: the image path
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithNoisePath(path string) LoaderBuilderOption {
	return func(l *loader) {
		l.noisePath = path
	}
}

// WithBlueNoisePath sets the path of the blue-noise dither image inside the image source.
//
// Parameters:
//   - path: the image path
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithBlueNoisePath(path string) LoaderBuilderOption {
	return func(l *loader) {
		l.blueNoisePath = path
	}
}

// WithWorkers sets the number of decode workers. Defaults to 2, one per image.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = max(1, n)
	}
}

// WithReporter sets a callback invoked exactly once for every image that fails to load.
// It runs on a decode worker.
//
// Parameters:
//   - reporter: the callback receiving the image path and its error
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithReporter(reporter func(path string, err error)) LoaderBuilderOption {
	return func(l *loader) {
		l.reporter = reporter
	}
}

// WithProgress sets a callback invoked after each image decodes. It runs on a decode worker.
//
// Parameters:
//   - progress: the callback receiving the number of decoded images and the total
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithProgress(progress func(done, total int)) LoaderBuilderOption {
	return func(l *loader) {
		l.progress = progress
	}
}

// WithProgramSources replaces the embedded shader programs.
//
// Parameters:
//   - src: the program sources
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithProgramSources(src ProgramSources) LoaderBuilderOption {
	return func(l *loader) {
		l.programs = &src
	}
}
