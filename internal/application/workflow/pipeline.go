package workflow

import (
	"context"
	"sync"
	"time"
)

// PipelineRunner runs one background pipeline goroutine per request.
// It satisfies the worker manager's Worker interface so shutdown cancels
// and drains in-flight pipelines.
type PipelineRunner struct {
	logger Logger

	mu      sync.Mutex
	base    context.Context
	cancel  context.CancelFunc
	running map[string]context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewPipelineRunner creates a runner that accepts pipelines immediately
func NewPipelineRunner(logger Logger) *PipelineRunner {
	if logger == nil {
		logger = nopLogger{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &PipelineRunner{
		logger:  logger,
		base:    base,
		cancel:  cancel,
		running: make(map[string]context.CancelFunc),
	}
}

// Name returns the worker name
func (r *PipelineRunner) Name() string {
	return "pipeline-runner"
}

// Start ties the runner's lifetime to ctx. It does not block. Once ctx is
// done the runner refuses new pipelines, as after Stop.
func (r *PipelineRunner) Start(ctx context.Context) error {
	context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		r.cancel()
	})
	return nil
}

// Stop cancels every in-flight pipeline and waits for them to return
func (r *PipelineRunner) Stop() error {
	r.mu.Lock()
	r.stopped = true
	inFlight := len(r.running)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	r.logger.Info("Pipeline runner stopped", "cancelled", inFlight)
	return nil
}

// Launch starts run for id on its own goroutine. It returns false when the
// runner is stopped, its start context is done, or a pipeline for id is
// already running. A request left behind is picked up by the stale sweeper.
func (r *PipelineRunner) Launch(id string, run func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.base.Err() != nil {
		return false
	}
	if _, exists := r.running[id]; exists {
		return false
	}

	ctx, cancel := context.WithCancel(r.base)
	r.running[id] = cancel
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.running, id)
			r.mu.Unlock()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Pipeline panicked", "request_id", id, "panic", rec)
			}
		}()
		run(ctx)
	}()
	return true
}

// IsRunning reports whether a pipeline for id is in flight
func (r *PipelineRunner) IsRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[id]
	return ok
}

// Count returns the number of in-flight pipelines
func (r *PipelineRunner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// Wait blocks until every launched pipeline has returned
func (r *PipelineRunner) Wait() {
	r.wg.Wait()
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
