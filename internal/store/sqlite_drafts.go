package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumohealth/coachd/internal/types"
)

// GetDraft retrieves a writeback draft by id.
func (s *SQLiteStore) GetDraft(ctx context.Context, draftID string) (*types.WritebackDraft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT draft_id, user_id, payload, context_text, status, summary, error, created_at, updated_at
		FROM writeback_drafts
		WHERE draft_id = ?
	`, draftID)

	var d types.WritebackDraft
	var payload string
	var summary, errText sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&d.DraftID, &d.UserID, &payload, &d.ContextText, &d.Status, &summary, &errText, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan draft: %w", err)
	}

	d.Payload = json.RawMessage(payload)
	if summary.Valid && summary.String != "" {
		var sum types.WritebackSummary
		if err := json.Unmarshal([]byte(summary.String), &sum); err != nil {
			return nil, fmt.Errorf("parse cached summary: %w", err)
		}
		d.Summary = &sum
	}
	if errText.Valid {
		d.Error = errText.String
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)

	return &d, nil
}

// InsertPendingDraft inserts a fresh draft row in pending state. If another
// caller inserted the same draft_id first, ErrDraftExists is returned so the
// caller can re-read and follow the idempotent path.
func (s *SQLiteStore) InsertPendingDraft(ctx context.Context, draft types.WritebackDraft) error {
	now := formatTime(nowUTC())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO writeback_drafts (draft_id, user_id, payload, context_text, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, draft.DraftID, draft.UserID, string(draft.Payload), draft.ContextText, types.DraftPending, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDraftExists
		}
		return fmt.Errorf("insert pending draft: %w", err)
	}

	return nil
}

// TakeoverStaleDraft attempts to reclaim a pending draft the caller observed
// with the given updated_at. The claim is a compare-and-swap: it succeeds only
// if the row still carries exactly that updated_at and the observation is
// older than cutoff. The winner's refresh invalidates the predicate for every
// other claimer sharing the same observation, so at most one wins.
func (s *SQLiteStore) TakeoverStaleDraft(ctx context.Context, draftID string, observed, cutoff time.Time) (bool, error) {
	if !observed.Before(cutoff) {
		return false, nil
	}

	count, err := s.execCount(ctx, `
		UPDATE writeback_drafts
		SET updated_at = ?
		WHERE draft_id = ? AND status = ? AND updated_at = ?
	`, formatTime(nowUTC()), draftID, types.DraftPending, formatTime(observed))
	if err != nil {
		return false, fmt.Errorf("takeover stale draft: %w", err)
	}

	return count > 0, nil
}

// CompleteDraft flips a draft to success, caching the summary verbatim so
// repeated commits can return byte-identical results.
func (s *SQLiteStore) CompleteDraft(ctx context.Context, draftID string, summary types.WritebackSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	count, err := s.execCount(ctx, `
		UPDATE writeback_drafts
		SET status = ?, summary = ?, error = NULL, updated_at = ?
		WHERE draft_id = ?
	`, types.DraftSuccess, string(summaryJSON), formatTime(nowUTC()), draftID)
	if err != nil {
		return fmt.Errorf("complete draft: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}

	return nil
}

// FailDraft flips a draft to failed, preserving the error text verbatim.
func (s *SQLiteStore) FailDraft(ctx context.Context, draftID, errText string) error {
	count, err := s.execCount(ctx, `
		UPDATE writeback_drafts
		SET status = ?, error = ?, updated_at = ?
		WHERE draft_id = ?
	`, types.DraftFailed, errText, formatTime(nowUTC()), draftID)
	if err != nil {
		return fmt.Errorf("fail draft: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}

	return nil
}

// CountDrafts returns the total number of draft rows.
func (s *SQLiteStore) CountDrafts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM writeback_drafts").Scan(&count)
	return count, err
}
