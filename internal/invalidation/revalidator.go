package invalidation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/validate"
	"github.com/maraichr/batislens/internal/workspace"
)

const defaultQueueSize = 256

// Revalidator validates queued mapper files on its own goroutine and keeps
// their diagnostics in a store. A file queued twice before it runs is
// validated once.
type Revalidator struct {
	validator *validate.Validator
	store     *diag.Store
	logger    *slog.Logger
	queue     chan workspace.File

	mu      sync.Mutex
	pending map[workspace.File]bool
}

func NewRevalidator(v *validate.Validator, store *diag.Store, logger *slog.Logger, size int) *Revalidator {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Revalidator{
		validator: v,
		store:     store,
		logger:    logger,
		queue:     make(chan workspace.File, size),
		pending:   make(map[workspace.File]bool),
	}
}

// Schedule queues file without blocking. It returns false when the queue is
// full.
func (r *Revalidator) Schedule(file workspace.File) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[file] {
		return true
	}
	select {
	case r.queue <- file:
		r.pending[file] = true
		return true
	default:
		r.logger.Warn("revalidation queue full", slog.String("file", file.String()))
		return false
	}
}

// Run validates queued files until ctx ends.
func (r *Revalidator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-r.queue:
			r.mu.Lock()
			delete(r.pending, f)
			r.mu.Unlock()
			r.refresh(ctx, f)
		}
	}
}

func (r *Revalidator) refresh(ctx context.Context, f workspace.File) {
	items, err := r.validator.Refresh(ctx, f, r.store)
	switch {
	case errors.Is(err, validate.ErrCancelled):
		return
	case err != nil:
		r.logger.Warn("revalidate", slog.String("file", f.String()), slog.String("error", err.Error()))
		r.store.Forget(f)
	default:
		r.logger.Debug("revalidated", slog.String("file", f.String()), slog.Int("problems", len(items)))
	}
}
