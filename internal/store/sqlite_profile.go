package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lumohealth/coachd/internal/types"
	"github.com/oklog/ulid/v2"
)

// GetProfile retrieves the body profile for a user.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, height_cm, weight_kg, birth_year, sex, activity_level, body_fat_pct, created_at, updated_at
		FROM user_profiles
		WHERE user_id = ?
	`, userID)

	var p types.UserProfile
	var heightCm, weightKg, bodyFatPct sql.NullFloat64
	var birthYear sql.NullInt64
	var sex, activityLevel sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&p.UserID, &heightCm, &weightKg, &birthYear, &sex, &activityLevel, &bodyFatPct, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if heightCm.Valid {
		p.HeightCm = &heightCm.Float64
	}
	if weightKg.Valid {
		p.WeightKg = &weightKg.Float64
	}
	if birthYear.Valid {
		year := int(birthYear.Int64)
		p.BirthYear = &year
	}
	if sex.Valid {
		p.Sex = &sex.String
	}
	if activityLevel.Valid {
		p.ActivityLevel = &activityLevel.String
	}
	if bodyFatPct.Valid {
		p.BodyFatPct = &bodyFatPct.Float64
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	return &p, nil
}

// ApplyProfilePatch upserts the profile row, updating only non-nil fields.
func (s *SQLiteStore) ApplyProfilePatch(ctx context.Context, userID string, patch types.ProfilePatch) error {
	now := formatTime(nowUTC())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, height_cm, weight_kg, birth_year, sex, activity_level, body_fat_pct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			height_cm      = COALESCE(excluded.height_cm, user_profiles.height_cm),
			weight_kg      = COALESCE(excluded.weight_kg, user_profiles.weight_kg),
			birth_year     = COALESCE(excluded.birth_year, user_profiles.birth_year),
			sex            = COALESCE(excluded.sex, user_profiles.sex),
			activity_level = COALESCE(excluded.activity_level, user_profiles.activity_level),
			body_fat_pct   = COALESCE(excluded.body_fat_pct, user_profiles.body_fat_pct),
			updated_at     = excluded.updated_at
	`, userID, patch.HeightCm, patch.WeightKg, patch.BirthYear, patch.Sex, patch.ActivityLevel, patch.BodyFatPct, now, now)
	if err != nil {
		return fmt.Errorf("apply profile patch: %w", err)
	}

	return nil
}

// ListMetrics returns metrics for a user, newest first, optionally filtered
// by kind and recorded-at range (RFC 3339 bounds, empty means unbounded).
func (s *SQLiteStore) ListMetrics(ctx context.Context, userID, kind string, from, to string, limit int) ([]types.HealthMetric, error) {
	query := `
		SELECT id, user_id, kind, value, unit, note, recorded_at, created_at, updated_at
		FROM health_metrics
		WHERE user_id = ?
	`
	args := []any{userID}

	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if from != "" {
		query += " AND recorded_at >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND recorded_at <= ?"
		args = append(args, to)
	}
	query += " ORDER BY recorded_at DESC LIMIT ?"
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []types.HealthMetric
	for rows.Next() {
		var m types.HealthMetric
		var recordedAt, createdAt, updatedAt string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Kind, &m.Value, &m.Unit, &m.Note, &recordedAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.RecordedAt = parseTime(recordedAt)
		m.CreatedAt = parseTime(createdAt)
		m.UpdatedAt = parseTime(updatedAt)
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}

	return metrics, nil
}

// InsertMetric stores a new health metric. A zero ID is assigned a fresh ULID.
func (s *SQLiteStore) InsertMetric(ctx context.Context, m types.HealthMetric) error {
	now := nowUTC()
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_metrics (id, user_id, kind, value, unit, note, recorded_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.Kind, m.Value, m.Unit, m.Note,
		formatTime(m.RecordedAt), formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}

	return nil
}

// UpdateMetric patches an existing metric owned by userID. Returns false if
// no matching row exists.
func (s *SQLiteStore) UpdateMetric(ctx context.Context, userID string, u types.MetricUpdate) (bool, error) {
	count, err := s.execCount(ctx, `
		UPDATE health_metrics
		SET value      = COALESCE(?, value),
		    unit       = COALESCE(?, unit),
		    note       = COALESCE(?, note),
		    updated_at = ?
		WHERE id = ? AND user_id = ?
	`, u.Value, u.Unit, u.Note, formatTime(nowUTC()), u.ID, userID)
	if err != nil {
		return false, fmt.Errorf("update metric: %w", err)
	}

	return count > 0, nil
}

// DeleteMetrics removes metrics by id, returning the number deleted.
func (s *SQLiteStore) DeleteMetrics(ctx context.Context, userID string, ids []string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		count, err := s.execCount(ctx,
			"DELETE FROM health_metrics WHERE id = ? AND user_id = ?", id, userID)
		if err != nil {
			return deleted, fmt.Errorf("delete metric: %w", err)
		}
		deleted += count
	}
	return deleted, nil
}
