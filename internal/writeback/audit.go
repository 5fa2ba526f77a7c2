package writeback

import (
	"context"
	"log/slog"

	"github.com/lumohealth/coachd/internal/store"
	"github.com/lumohealth/coachd/internal/types"
)

// maxExcerptRunes caps the message excerpt stored on audit records.
const maxExcerptRunes = 200

// Recorder is the best-effort audit sink. Write failures are logged and
// swallowed; they must never mask or replace the primary result.
type Recorder struct {
	store store.Store
}

// NewRecorder creates an audit recorder over the given store.
func NewRecorder(s store.Store) *Recorder {
	return &Recorder{store: s}
}

// Record appends one audit record, truncating the excerpt.
func (r *Recorder) Record(ctx context.Context, rec types.AuditRecord) {
	rec.Excerpt = truncateExcerpt(rec.Excerpt)

	if err := r.store.AppendAudit(ctx, rec); err != nil {
		slog.Warn("audit write failed",
			"component", "writeback",
			"action", "audit_write_failed",
			"user_id", rec.UserID,
			"source", rec.Source,
			"error", err,
		)
	}
}

func truncateExcerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= maxExcerptRunes {
		return s
	}
	return string(runes[:maxExcerptRunes])
}
