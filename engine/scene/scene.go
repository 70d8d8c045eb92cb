// Package scene loads the static resources of the demo: the two noise images are decoded in
// parallel on a worker pool, then turned into GPU objects on the device thread.
package scene

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-glass/common"
	"github.com/Carmen-Shannon/oxy-glass/engine/renderer/resource"
)

var (
	// ErrNotDone is returned by Build while the images are still decoding.
	ErrNotDone = errors.New("scene: load still in progress")

	// ErrAlreadyBuilt is returned by a second Build on the same task.
	ErrAlreadyBuilt = errors.New("scene: load task already built")
)

const (
	DefaultNoisePath     = "textures/noise.png"
	DefaultBlueNoisePath = "textures/bluenoise.png"
)

type loader struct {
	source        ImageSource
	noisePath     string
	blueNoisePath string
	programs      *ProgramSources
	reporter      func(path string, err error)
	progress      func(done, total int)

	workers int
	pool    worker.DynamicWorkerPool
}

// Loader starts scene loads. Each Load decodes the noise images concurrently and returns a
// task the frame loop polls.
type Loader interface {
	// Load starts decoding both images and returns immediately.
	//
	// Parameters:
	//   - ctx: cancels the decode; the task also has its own Cancel
	//
	// Returns:
	//   - *LoadTask: the running task
	Load(ctx context.Context) *LoadTask

	// Release stops the worker pool. Tasks still decoding never complete after it.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a Loader reading images from source.
//
// Parameters:
//   - source: where the images are read from
//   - options: functional options to configure paths, workers and reporting
//
// Returns:
//   - Loader: the loader
func NewLoader(source ImageSource, options ...LoaderBuilderOption) Loader {
	l := &loader{
		source:        source,
		noisePath:     DefaultNoisePath,
		blueNoisePath: DefaultBlueNoisePath,
		workers:       2,
	}
	for _, option := range options {
		option(l)
	}
	l.pool = worker.NewDynamicWorkerPool(l.workers, 16, 1*time.Second)
	return l
}

// LoadTask is one in-flight scene load. Done closes once every image has either decoded or
// failed; Build then turns the images into GPU resources.
type LoadTask struct {
	done   chan struct{}
	cancel context.CancelFunc

	images []common.TextureStagingData
	err    error

	programs *ProgramSources
	built    atomic.Bool
}

func (l *loader) Load(ctx context.Context) *LoadTask {
	ctx, cancel := context.WithCancel(ctx)
	paths := []string{l.noisePath, l.blueNoisePath}
	task := &LoadTask{
		done:     make(chan struct{}),
		cancel:   cancel,
		images:   make([]common.TextureStagingData, len(paths)),
		programs: l.programs,
	}

	errs := make([]error, len(paths))
	var finished atomic.Int32
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		l.pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: path,
			Do: func() (any, error) {
				defer wg.Done()

				img, err := l.source.Decode(ctx, path)
				if err != nil {
					errs[i] = fmt.Errorf("%s: %w", path, err)
					if ctx.Err() == nil {
						l.report(path, err)
					}
					return nil, err
				}
				task.images[i] = img
				if l.progress != nil {
					l.progress(int(finished.Add(1)), len(paths))
				}
				return img, nil
			},
		})
	}

	go func() {
		wg.Wait()
		task.err = errors.Join(errs...)
		if task.err == nil && ctx.Err() != nil {
			task.err = ctx.Err()
		}
		cancel()
		close(task.done)
	}()

	return task
}

func (l *loader) report(path string, err error) {
	log.Printf("[Scene] failed to load image %s: %v", path, err)
	if l.reporter != nil {
		l.reporter(path, err)
	}
}

func (l *loader) Release() {
	l.pool.Stop()
}

// Done returns a channel closed when decoding has finished.
func (t *LoadTask) Done() <-chan struct{} {
	return t.done
}

// Finished reports, without blocking, whether decoding has finished.
func (t *LoadTask) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until decoding finishes or ctx ends.
//
// Returns:
//   - error: the joined image errors, or ctx's error if it ended first
func (t *LoadTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts images that have not started decoding. It has no effect once Done is closed.
func (t *LoadTask) Cancel() {
	t.cancel()
}

// Err returns the load error once Done is closed, nil before.
func (t *LoadTask) Err() error {
	if !t.Finished() {
		return nil
	}
	return t.err
}

// Build creates the GPU resources from the decoded images. It must run on the device thread,
// after Done is closed, and at most once.
//
// Parameters:
//   - f: the factory of the device the resources live on
//
// Returns:
//   - *Resources: the resources; programs that failed to build are unusable and listed in Diagnostics
//   - error: the image errors, ErrNotDone, ErrAlreadyBuilt, or a texture or vertex state error
func (t *LoadTask) Build(f resource.Factory) (*Resources, error) {
	if !t.Finished() {
		return nil, ErrNotDone
	}
	if t.err != nil {
		return nil, t.err
	}
	if !t.built.CompareAndSwap(false, true) {
		return nil, ErrAlreadyBuilt
	}

	src := t.programs
	if src == nil {
		defaults, err := DefaultProgramSources()
		if err != nil {
			return nil, err
		}
		src = &defaults
	}
	return buildResources(f, t.images[0], t.images[1], *src)
}
