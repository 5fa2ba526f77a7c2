package writeback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumohealth/coachd/internal/store"
	"github.com/lumohealth/coachd/internal/types"
)

// DefaultPendingGrace is how long a pending draft is considered owned by its
// original caller. Past this window it is assumed abandoned and may be taken
// over by exactly one retrying caller.
const DefaultPendingGrace = 15 * time.Second

var (
	// ErrOwnership indicates the draft belongs to a different user.
	ErrOwnership = errors.New("draft owned by a different user")

	// ErrDraftFailed indicates the draft previously failed and is not
	// retryable under the same id; the caller must mint a new draft.
	ErrDraftFailed = errors.New("draft previously failed")
)

// auditSource tags commit-protocol audit records.
const auditSource = "writeback_commit"

// CommitResult is the outcome of one commit attempt.
type CommitResult struct {
	DraftID string
	Status  types.DraftStatus
	// Summary is present iff Status is success. Repeated commits of the same
	// draft return the cached summary verbatim.
	Summary *types.WritebackSummary
	// Err carries the stored error text when Status is failed.
	Err string
}

// Coordinator implements the idempotent commit protocol: for a given draft
// id, at most one application of its payload ever succeeds, under concurrent
// and retried requests.
type Coordinator struct {
	store  store.Store
	engine *Engine
	audit  *Recorder
	grace  time.Duration
}

// NewCoordinator creates a commit coordinator. A zero grace falls back to
// DefaultPendingGrace.
func NewCoordinator(s store.Store, engine *Engine, audit *Recorder, grace time.Duration) *Coordinator {
	if grace <= 0 {
		grace = DefaultPendingGrace
	}
	return &Coordinator{store: s, engine: engine, audit: audit, grace: grace}
}

// Commit drives a draft to a terminal state, or reports it still pending.
//
// payload and contextText are only consulted when the draft does not exist
// yet; on every later attempt the persisted payload is applied, so divergent
// re-supplied payloads cannot change what is written.
func (c *Coordinator) Commit(ctx context.Context, draftID, userID string, payload *types.WritebackPayload, contextText string) (*CommitResult, error) {
	draft, err := c.store.GetDraft(ctx, draftID)
	if errors.Is(err, store.ErrNotFound) {
		// The empty-payload guard runs before any state change: an empty
		// commit must not consume a draft slot.
		if payload == nil || payload.IsEmpty() {
			return nil, ErrEmptyPayload
		}
		if err := ValidatePayload(*payload); err != nil {
			return nil, err
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}

		insertErr := c.store.InsertPendingDraft(ctx, types.WritebackDraft{
			DraftID:     draftID,
			UserID:      userID,
			Payload:     raw,
			ContextText: contextText,
		})
		switch {
		case insertErr == nil:
			// We own the fresh pending row; apply immediately.
			return c.apply(ctx, draftID, userID)
		case errors.Is(insertErr, store.ErrDraftExists):
			// Lost the insert race; re-read and follow the idempotent path.
			draft, err = c.store.GetDraft(ctx, draftID)
			if err != nil {
				return nil, fmt.Errorf("reread draft: %w", err)
			}
		default:
			return nil, fmt.Errorf("insert pending draft: %w", insertErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	if draft.UserID != userID {
		return nil, ErrOwnership
	}

	switch draft.Status {
	case types.DraftSuccess:
		// Idempotent replay: the cached summary, no recomputation.
		return &CommitResult{DraftID: draftID, Status: types.DraftSuccess, Summary: draft.Summary}, nil

	case types.DraftFailed:
		return &CommitResult{DraftID: draftID, Status: types.DraftFailed, Err: draft.Error}, ErrDraftFailed

	case types.DraftPending:
		cutoff := time.Now().UTC().Add(-c.grace)
		if !draft.UpdatedAt.Before(cutoff) {
			// Fresh pending: someone else is (presumably) applying.
			return &CommitResult{DraftID: draftID, Status: types.DraftPending}, nil
		}

		won, err := c.store.TakeoverStaleDraft(ctx, draftID, draft.UpdatedAt, cutoff)
		if err != nil {
			return nil, fmt.Errorf("takeover stale draft: %w", err)
		}
		if !won {
			return &CommitResult{DraftID: draftID, Status: types.DraftPending}, nil
		}

		slog.Info("stale pending draft taken over",
			"component", "writeback",
			"action", "draft_takeover",
			"draft_id", draftID,
			"user_id", userID,
		)
		return c.apply(ctx, draftID, userID)

	default:
		return nil, fmt.Errorf("draft %s in unknown state %q", draftID, draft.Status)
	}
}

// apply runs the reconciliation engine against the draft's persisted payload
// and flips the row to a terminal state. Every terminal transition triggers a
// best-effort audit write, independent of the caller response path.
func (c *Coordinator) apply(ctx context.Context, draftID, userID string) (*CommitResult, error) {
	draft, err := c.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load draft for apply: %w", err)
	}

	var payload types.WritebackPayload
	if err := json.Unmarshal(draft.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal persisted payload: %w", err)
	}

	start := time.Now()
	summary, applyErr := c.engine.Apply(ctx, userID, payload, draft.ContextText, time.Now().UTC())
	if applyErr != nil {
		errText := applyErr.Error()
		if err := c.store.FailDraft(ctx, draftID, errText); err != nil {
			slog.Error("failed to mark draft failed",
				"component", "writeback",
				"action", "draft_fail_write_failed",
				"draft_id", draftID,
				"error", err,
			)
		}
		c.audit.Record(ctx, types.AuditRecord{
			UserID:  userID,
			Source:  auditSource,
			Status:  string(types.DraftFailed),
			Error:   errText,
			Excerpt: draft.ContextText,
		})
		return &CommitResult{DraftID: draftID, Status: types.DraftFailed, Err: errText}, nil
	}

	if err := c.store.CompleteDraft(ctx, draftID, *summary); err != nil {
		return nil, fmt.Errorf("complete draft: %w", err)
	}

	c.audit.Record(ctx, types.AuditRecord{
		UserID:  userID,
		Source:  auditSource,
		Status:  string(types.DraftSuccess),
		Summary: summary,
		Excerpt: draft.ContextText,
	})

	slog.Info("draft applied",
		"component", "writeback",
		"action", "draft_applied",
		"draft_id", draftID,
		"user_id", userID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &CommitResult{DraftID: draftID, Status: types.DraftSuccess, Summary: summary}, nil
}
