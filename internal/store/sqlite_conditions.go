package store

import (
	"context"
	"fmt"

	"github.com/lumohealth/coachd/internal/types"
	"github.com/oklog/ulid/v2"
)

// ListConditions returns all conditions for a user, oldest first.
func (s *SQLiteStore) ListConditions(ctx context.Context, userID string) ([]types.Condition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, norm_name, severity, status, note, created_at, updated_at
		FROM conditions
		WHERE user_id = ?
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	defer rows.Close()

	var conditions []types.Condition
	for rows.Next() {
		var c types.Condition
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.NormName, &c.Severity, &c.Status, &c.Note, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan condition: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		conditions = append(conditions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conditions: %w", err)
	}

	return conditions, nil
}

// UpsertCondition merges a condition by its normalized name: an existing row
// with the same (user_id, norm_name) is updated in place instead of creating
// a duplicate.
func (s *SQLiteStore) UpsertCondition(ctx context.Context, c types.Condition) error {
	now := formatTime(nowUTC())
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conditions (id, user_id, name, norm_name, severity, status, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, norm_name) DO UPDATE SET
			name       = excluded.name,
			severity   = excluded.severity,
			status     = excluded.status,
			note       = excluded.note,
			updated_at = excluded.updated_at
	`, c.ID, c.UserID, c.Name, c.NormName, c.Severity, c.Status, c.Note, now, now)
	if err != nil {
		return fmt.Errorf("upsert condition: %w", err)
	}

	return nil
}

// DeleteConditions removes conditions by id, returning the number deleted.
func (s *SQLiteStore) DeleteConditions(ctx context.Context, userID string, ids []string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		count, err := s.execCount(ctx,
			"DELETE FROM conditions WHERE id = ? AND user_id = ?", id, userID)
		if err != nil {
			return deleted, fmt.Errorf("delete condition: %w", err)
		}
		deleted += count
	}
	return deleted, nil
}

// DeleteAllConditions removes every condition for a user.
func (s *SQLiteStore) DeleteAllConditions(ctx context.Context, userID string) (int64, error) {
	count, err := s.execCount(ctx, "DELETE FROM conditions WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("delete all conditions: %w", err)
	}
	return count, nil
}

// ListGoals returns all training goals for a user, oldest first.
func (s *SQLiteStore) ListGoals(ctx context.Context, userID string) ([]types.TrainingGoal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, canonical_key, target, status, created_at, updated_at
		FROM training_goals
		WHERE user_id = ?
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []types.TrainingGoal
	for rows.Next() {
		var g types.TrainingGoal
		var createdAt, updatedAt string
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.CanonicalKey, &g.Target, &g.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.CreatedAt = parseTime(createdAt)
		g.UpdatedAt = parseTime(updatedAt)
		goals = append(goals, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}

	return goals, nil
}

// UpsertGoal merges a training goal by its canonical key, so semantically
// equivalent phrasings update one row instead of creating duplicates.
func (s *SQLiteStore) UpsertGoal(ctx context.Context, g types.TrainingGoal) error {
	now := formatTime(nowUTC())
	if g.ID == "" {
		g.ID = ulid.Make().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_goals (id, user_id, name, canonical_key, target, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, canonical_key) DO UPDATE SET
			name       = excluded.name,
			target     = excluded.target,
			status     = excluded.status,
			updated_at = excluded.updated_at
	`, g.ID, g.UserID, g.Name, g.CanonicalKey, g.Target, g.Status, now, now)
	if err != nil {
		return fmt.Errorf("upsert goal: %w", err)
	}

	return nil
}

// DeleteGoals removes goals by id, returning the number deleted.
func (s *SQLiteStore) DeleteGoals(ctx context.Context, userID string, ids []string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		count, err := s.execCount(ctx,
			"DELETE FROM training_goals WHERE id = ? AND user_id = ?", id, userID)
		if err != nil {
			return deleted, fmt.Errorf("delete goal: %w", err)
		}
		deleted += count
	}
	return deleted, nil
}

// DeleteAllGoals removes every training goal for a user.
func (s *SQLiteStore) DeleteAllGoals(ctx context.Context, userID string) (int64, error) {
	count, err := s.execCount(ctx, "DELETE FROM training_goals WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("delete all goals: %w", err)
	}
	return count, nil
}
