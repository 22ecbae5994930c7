// Package synthesis dispatches sign-video rendering jobs.
//
// Rendering a generated sign sequence into a playable video is slow and runs
// in an external renderer. The dispatcher's job is to mint a unique video
// reference, record a PENDING job for the renderer to pick up, and hand the
// reference back immediately so callers never wait on rendering.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pinkycollie/pinksync/internal/observe"
	"github.com/pinkycollie/pinksync/pkg/signal"
	"github.com/pinkycollie/pinksync/pkg/store"
)

// Dispatcher records synthesis jobs and mints video references.
//
// A nil store degrades the dispatcher to reference minting only; jobs are
// not recorded and a renderer will never pick them up, which is acceptable
// in store-less deployments.
type Dispatcher struct {
	store   store.RecordStore
	logger  *slog.Logger
	metrics *observe.Metrics

	// now is swapped in tests for deterministic references.
	now func() time.Time
}

// New creates a [Dispatcher]. store may be nil; logger and metrics may be nil
// and are defaulted.
func New(st store.RecordStore, logger *slog.Logger, metrics *observe.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Dispatcher{
		store:   st,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Dispatch mints a unique video reference for seq, records a PENDING
// synthesis job, and returns the reference immediately.
//
// The reference is derived from the caller identity and submission time, with
// a random component guaranteeing uniqueness per call. Job recording is
// best-effort: a store failure is logged and counted but the reference is
// returned regardless, so the translation result can still carry it.
func (d *Dispatcher) Dispatch(ctx context.Context, seq signal.SignSequence, callerID string) string {
	submitted := d.now().UTC()
	ref := fmt.Sprintf("sign-videos/%s-%d-%s.mp4", callerID, submitted.UnixNano(), uuid.NewString())

	d.metrics.SynthesisDispatches.Add(ctx, 1)

	if d.store == nil {
		return ref
	}

	job := store.SynthesisJob{
		Reference: ref,
		CallerID:  callerID,
		Status:    store.JobPending,
		Sequence:  seq,
		CreatedAt: submitted,
	}
	if err := d.store.InsertSynthesisJob(ctx, job); err != nil {
		d.logger.WarnContext(ctx, "failed to record synthesis job, reference returned without a backing job",
			"reference", ref,
			"caller_id", callerID,
			"error", err,
		)
		d.metrics.RecordPersistenceFailure(ctx, "synthesis_job")
	}
	return ref
}
