package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumohealth/coachd/internal/types"
	"github.com/oklog/ulid/v2"
)

// AppendAudit stores one audit record. Append-only; the engine never reads
// these back.
func (s *SQLiteStore) AppendAudit(ctx context.Context, rec types.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = nowUTC()
	}

	var summaryJSON sql.NullString
	if rec.Summary != nil {
		data, err := json.Marshal(rec.Summary)
		if err != nil {
			return fmt.Errorf("marshal audit summary: %w", err)
		}
		summaryJSON = sql.NullString{String: string(data), Valid: true}
	}

	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, user_id, source, status, summary, error, excerpt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.Source, rec.Status, summaryJSON, errText, rec.Excerpt,
		formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	return nil
}

// PruneAudit deletes audit records created before the given time, returning
// the number removed.
func (s *SQLiteStore) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	count, err := s.execCount(ctx,
		"DELETE FROM audit_records WHERE created_at < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune audit records: %w", err)
	}
	return count, nil
}

// AppendChatMessage persists one conversation message.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, msg types.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = nowUTC()
	}

	var toolCalls sql.NullString
	if len(msg.ToolCalls) > 0 {
		toolCalls = sql.NullString{String: string(msg.ToolCalls), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, user_id, role, content, tool_calls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, msg.UserID, msg.Role, msg.Content, toolCalls,
		formatTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}

	return nil
}

// ListChatMessages returns the most recent messages for a session in
// chronological order. The ULID id is the tiebreak for messages sharing a
// timestamp, so replay order is deterministic. A non-positive limit means
// unbounded.
func (s *SQLiteStore) ListChatMessages(ctx context.Context, sessionID string, limit int) ([]types.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, role, content, tool_calls, created_at
		FROM (
			SELECT id, session_id, user_id, role, content, tool_calls, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`, sessionID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		var toolCalls sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Content, &toolCalls, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if toolCalls.Valid {
			m.ToolCalls = json.RawMessage(toolCalls.String)
		}
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	return messages, nil
}
