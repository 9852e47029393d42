// Package sideeffect runs best-effort work that must not fail or delay the
// operation that triggered it.
package sideeffect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a single side effect.
const DefaultTimeout = 30 * time.Second

// Runner executes side effects in the background and reports failures to the log.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a runner. A nil logger uses slog.Default().
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, timeout: DefaultTimeout}
}

// Go runs fn in a new goroutine. fn receives a context that keeps ctx's values
// but not its cancellation, so a finished request does not abort it.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.run(ctx, fn); err != nil {
			r.logger.Error("side effect failed", "effect", name, "error", err)
		}
	}()
}

func (r *Runner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	return fn(ctx)
}

// Wait blocks until every started side effect has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
