package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/rs/zerolog"
)

// StatusStore persists the pipeline status row.
type StatusStore interface {
	LoadPipelineStatus(ctx context.Context) (domain.PipelineStatus, bool, error)
	SavePipelineStatus(ctx context.Context, s domain.PipelineStatus) error
}

// StatusFlag is the generator's on/off switch. An unset or unreadable flag
// reads as active.
type StatusFlag struct {
	store StatusStore
	now   func() time.Time
	log   zerolog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewStatusFlag creates a StatusFlag backed by store.
func NewStatusFlag(store StatusStore, log zerolog.Logger) *StatusFlag {
	return &StatusFlag{
		store: store,
		now:   time.Now,
		log:   log,
	}
}

// Get reports whether the generator should produce.
func (f *StatusFlag) Get(ctx context.Context) bool {
	status, found := f.Status(ctx)
	if !found {
		return true
	}
	return status.Active
}

// Status returns the stored flag. found is false when the flag was never set
// or could not be read.
func (f *StatusFlag) Status(ctx context.Context) (domain.PipelineStatus, bool) {
	status, found, err := f.store.LoadPipelineStatus(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("Pipeline status unreadable, assuming active")
		return domain.PipelineStatus{}, false
	}
	return status, found
}

// Set overwrites the flag. UpdatedAt never moves backwards, even when the
// wall clock does.
func (f *StatusFlag) Set(ctx context.Context, active bool) (domain.PipelineStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last.IsZero() {
		if prev, found, err := f.store.LoadPipelineStatus(ctx); err == nil && found {
			f.last = prev.UpdatedAt
		}
	}

	ts := f.now()
	if !ts.After(f.last) {
		ts = f.last.Add(time.Microsecond)
	}

	status := domain.PipelineStatus{Active: active, UpdatedAt: ts}
	if err := f.store.SavePipelineStatus(ctx, status); err != nil {
		return domain.PipelineStatus{}, fmt.Errorf("StatusFlag.Set: %w", err)
	}
	f.last = ts

	f.log.Info().Bool("active", active).Msg("Pipeline status updated")
	return status, nil
}
