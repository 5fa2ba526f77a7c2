package worker

import (
	"context"
	"log/slog"
	"time"
)

// PruneStore defines the store operations needed by the audit prune worker.
type PruneStore interface {
	PruneAudit(ctx context.Context, before time.Time) (int64, error)
}

// AuditPruneWorker periodically deletes audit records older than the
// configured retention window.
type AuditPruneWorker struct {
	store     PruneStore
	interval  time.Duration
	retention time.Duration
}

// NewAuditPruneWorker creates a worker with the given store, prune interval,
// and retention window.
func NewAuditPruneWorker(store PruneStore, interval, retention time.Duration) *AuditPruneWorker {
	return &AuditPruneWorker{
		store:     store,
		interval:  interval,
		retention: retention,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// Does NOT run immediately on start (pruning is best done on schedule).
func (w *AuditPruneWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "audit-prune",
		"interval", w.interval.String(),
		"retention", w.retention.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "audit-prune",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.runPrune(ctx)
		}
	}
}

// runPrune executes a single prune cycle.
func (w *AuditPruneWorker) runPrune(ctx context.Context) {
	start := time.Now()
	before := start.Add(-w.retention)

	slog.Debug("prune cycle started",
		"component", "worker",
		"action", "prune_start",
		"before", before.Format(time.RFC3339),
	)

	pruned, err := w.store.PruneAudit(ctx, before)
	if err != nil {
		// Check for graceful shutdown
		if ctx.Err() != nil {
			return
		}
		slog.Error("prune failed",
			"component", "worker",
			"action", "prune_failed",
			"error", err,
		)
		return
	}

	duration := time.Since(start)
	slog.Info("prune cycle completed",
		"component", "worker",
		"action", "prune_complete",
		"pruned", pruned,
		"duration_ms", duration.Milliseconds(),
	)
}
