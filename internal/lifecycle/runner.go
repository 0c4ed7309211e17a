// Package lifecycle coordinates the long-running pieces of the serve
// command: every Go job runs until the context ends or one of them fails,
// then the shutdown hooks run in order.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

type Runner struct {
	mu       sync.Mutex
	jobs     []hook
	shutdown []hook
}

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Go(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.jobs = append(r.jobs, hook{name: name, fn: fn})
	r.mu.Unlock()
}

func (r *Runner) OnShutdown(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.shutdown = append(r.shutdown, hook{name: name, fn: fn})
	r.mu.Unlock()
}

// Wait blocks until the context is done, a job fails, or every job returns.
// A failing job cancels its siblings. Shutdown hooks always run, against a
// fresh context, and their errors are joined with the run error.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	jobs := append([]hook{}, r.jobs...)
	shutdown := append([]hook{}, r.shutdown...)
	r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(jobs))
	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := job.fn(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
				cancel()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		cancel()
	case err := <-errCh:
		runErr = err
	case <-done:
	}
	<-done

	for _, h := range shutdown {
		if err := h.fn(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			runErr = errors.Join(runErr, err)
		}
	}
	return runErr
}
