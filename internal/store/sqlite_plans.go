package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lumohealth/coachd/internal/types"
	"github.com/oklog/ulid/v2"
)

// GetTrainingPlan retrieves the training plan for a user and date.
func (s *SQLiteStore) GetTrainingPlan(ctx context.Context, userID, date string) (*types.TrainingPlan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_date, content, created_at, updated_at
		FROM training_plans
		WHERE user_id = ? AND plan_date = ?
	`, userID, date)

	var p types.TrainingPlan
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.UserID, &p.PlanDate, &p.Content, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan training plan: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	return &p, nil
}

// ListTrainingPlans returns plans in a date range (inclusive, YYYY-MM-DD
// bounds, empty means unbounded), newest first.
func (s *SQLiteStore) ListTrainingPlans(ctx context.Context, userID, from, to string, limit int) ([]types.TrainingPlan, error) {
	query := `
		SELECT id, user_id, plan_date, content, created_at, updated_at
		FROM training_plans
		WHERE user_id = ?
	`
	args := []any{userID}
	if from != "" {
		query += " AND plan_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND plan_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY plan_date DESC LIMIT ?"
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query training plans: %w", err)
	}
	defer rows.Close()

	var plans []types.TrainingPlan
	for rows.Next() {
		var p types.TrainingPlan
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.PlanDate, &p.Content, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan training plan: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		plans = append(plans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training plans: %w", err)
	}

	return plans, nil
}

// PutTrainingPlan stores a plan, silently dropping any prior plan for that
// date first. Delete and insert run in one transaction so the one-per-day
// invariant holds even if the insert fails.
func (s *SQLiteStore) PutTrainingPlan(ctx context.Context, p types.TrainingPlan) error {
	now := formatTime(nowUTC())
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM training_plans WHERE user_id = ? AND plan_date = ?",
		p.UserID, p.PlanDate); err != nil {
		return fmt.Errorf("delete prior training plan: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO training_plans (id, user_id, plan_date, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.PlanDate, p.Content, now, now); err != nil {
		return fmt.Errorf("insert training plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// DeleteTrainingPlan removes the plan for a date, reporting whether a row
// existed.
func (s *SQLiteStore) DeleteTrainingPlan(ctx context.Context, userID, date string) (bool, error) {
	count, err := s.execCount(ctx,
		"DELETE FROM training_plans WHERE user_id = ? AND plan_date = ?", userID, date)
	if err != nil {
		return false, fmt.Errorf("delete training plan: %w", err)
	}
	return count > 0, nil
}

// ListNutritionPlans returns nutrition (or supplement) plans for a user,
// newest first. The tag filter is exact: "" selects nutrition plans and
// types.SupplementTag selects supplement plans.
func (s *SQLiteStore) ListNutritionPlans(ctx context.Context, userID, tag, from, to string, limit int) ([]types.NutritionPlan, error) {
	query := `
		SELECT id, user_id, plan_date, tag, content, created_at, updated_at
		FROM nutrition_plans
		WHERE user_id = ? AND tag = ?
	`
	args := []any{userID, tag}
	if from != "" {
		query += " AND plan_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND plan_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY plan_date DESC LIMIT ?"
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nutrition plans: %w", err)
	}
	defer rows.Close()

	var plans []types.NutritionPlan
	for rows.Next() {
		var p types.NutritionPlan
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.PlanDate, &p.Tag, &p.Content, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan nutrition plan: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		plans = append(plans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nutrition plans: %w", err)
	}

	return plans, nil
}

// PutNutritionPlan stores a nutrition or supplement plan, dropping any prior
// plan for that (date, tag) first.
func (s *SQLiteStore) PutNutritionPlan(ctx context.Context, p types.NutritionPlan) error {
	now := formatTime(nowUTC())
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM nutrition_plans WHERE user_id = ? AND plan_date = ? AND tag = ?",
		p.UserID, p.PlanDate, p.Tag); err != nil {
		return fmt.Errorf("delete prior nutrition plan: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO nutrition_plans (id, user_id, plan_date, tag, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.PlanDate, p.Tag, p.Content, now, now); err != nil {
		return fmt.Errorf("insert nutrition plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// DeleteNutritionPlan removes the plan for a (date, tag) pair.
func (s *SQLiteStore) DeleteNutritionPlan(ctx context.Context, userID, date, tag string) (bool, error) {
	count, err := s.execCount(ctx,
		"DELETE FROM nutrition_plans WHERE user_id = ? AND plan_date = ? AND tag = ?", userID, date, tag)
	if err != nil {
		return false, fmt.Errorf("delete nutrition plan: %w", err)
	}
	return count > 0, nil
}

// ListDietRecords returns diet records in a date range, newest first.
func (s *SQLiteStore) ListDietRecords(ctx context.Context, userID, from, to string, limit int) ([]types.DietRecord, error) {
	query := `
		SELECT id, user_id, meal_type, record_date, content, calories, created_at, updated_at
		FROM diet_records
		WHERE user_id = ?
	`
	args := []any{userID}
	if from != "" {
		query += " AND record_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND record_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY record_date DESC, meal_type ASC LIMIT ?"
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query diet records: %w", err)
	}
	defer rows.Close()

	var records []types.DietRecord
	for rows.Next() {
		var r types.DietRecord
		var calories sql.NullInt64
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.MealType, &r.RecordDate, &r.Content, &calories, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan diet record: %w", err)
		}
		if calories.Valid {
			kcal := int(calories.Int64)
			r.Calories = &kcal
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diet records: %w", err)
	}

	return records, nil
}

// PutDietRecord stores a diet record, replacing any prior record for the
// same (meal type, date) pair.
func (s *SQLiteStore) PutDietRecord(ctx context.Context, r types.DietRecord) error {
	now := formatTime(nowUTC())
	if r.ID == "" {
		r.ID = ulid.Make().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM diet_records WHERE user_id = ? AND meal_type = ? AND record_date = ?",
		r.UserID, r.MealType, r.RecordDate); err != nil {
		return fmt.Errorf("delete prior diet record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO diet_records (id, user_id, meal_type, record_date, content, calories, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.MealType, r.RecordDate, r.Content, r.Calories, now, now); err != nil {
		return fmt.Errorf("insert diet record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// DeleteDietRecordByID removes a diet record by id.
func (s *SQLiteStore) DeleteDietRecordByID(ctx context.Context, userID, id string) (bool, error) {
	count, err := s.execCount(ctx,
		"DELETE FROM diet_records WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("delete diet record: %w", err)
	}
	return count > 0, nil
}

// DeleteDietRecordByKey removes a diet record by its (meal type, date) pair.
func (s *SQLiteStore) DeleteDietRecordByKey(ctx context.Context, userID string, meal types.MealType, date string) (bool, error) {
	count, err := s.execCount(ctx,
		"DELETE FROM diet_records WHERE user_id = ? AND meal_type = ? AND record_date = ?", userID, meal, date)
	if err != nil {
		return false, fmt.Errorf("delete diet record: %w", err)
	}
	return count > 0, nil
}

// GetDailyLog retrieves the daily log for a user and date.
func (s *SQLiteStore) GetDailyLog(ctx context.Context, userID, date string) (*types.DailyLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, log_date, mood, sleep_hours, energy, soreness, note, created_at, updated_at
		FROM daily_logs
		WHERE user_id = ? AND log_date = ?
	`, userID, date)

	log, err := scanDailyLog(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan daily log: %w", err)
	}

	return log, nil
}

// ListDailyLogs returns daily logs in a date range, newest first.
func (s *SQLiteStore) ListDailyLogs(ctx context.Context, userID, from, to string, limit int) ([]types.DailyLog, error) {
	query := `
		SELECT id, user_id, log_date, mood, sleep_hours, energy, soreness, note, created_at, updated_at
		FROM daily_logs
		WHERE user_id = ?
	`
	args := []any{userID}
	if from != "" {
		query += " AND log_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND log_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY log_date DESC LIMIT ?"
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily logs: %w", err)
	}
	defer rows.Close()

	var logs []types.DailyLog
	for rows.Next() {
		log, err := scanDailyLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily log: %w", err)
		}
		logs = append(logs, *log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily logs: %w", err)
	}

	return logs, nil
}

// UpsertDailyLog merges the non-nil fields of section into the (user, date)
// row, preserving previously stored fields for omitted ones.
func (s *SQLiteStore) UpsertDailyLog(ctx context.Context, userID, date string, section types.DailyLogSection) error {
	now := formatTime(nowUTC())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_logs (id, user_id, log_date, mood, sleep_hours, energy, soreness, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, log_date) DO UPDATE SET
			mood        = COALESCE(excluded.mood, daily_logs.mood),
			sleep_hours = COALESCE(excluded.sleep_hours, daily_logs.sleep_hours),
			energy      = COALESCE(excluded.energy, daily_logs.energy),
			soreness    = COALESCE(excluded.soreness, daily_logs.soreness),
			note        = COALESCE(excluded.note, daily_logs.note),
			updated_at  = excluded.updated_at
	`, ulid.Make().String(), userID, date,
		section.Mood, section.SleepHours, section.Energy, section.Soreness, section.Note, now, now)
	if err != nil {
		return fmt.Errorf("upsert daily log: %w", err)
	}

	return nil
}

// scanDailyLog scans a row into a DailyLog, handling the nullable fields.
func scanDailyLog(scanner interface{ Scan(...any) error }) (*types.DailyLog, error) {
	var log types.DailyLog
	var mood, note sql.NullString
	var sleepHours sql.NullFloat64
	var energy, soreness sql.NullInt64
	var createdAt, updatedAt string

	err := scanner.Scan(&log.ID, &log.UserID, &log.LogDate, &mood, &sleepHours, &energy, &soreness, &note, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if mood.Valid {
		log.Mood = &mood.String
	}
	if sleepHours.Valid {
		log.SleepHours = &sleepHours.Float64
	}
	if energy.Valid {
		v := int(energy.Int64)
		log.Energy = &v
	}
	if soreness.Valid {
		v := int(soreness.Int64)
		log.Soreness = &v
	}
	if note.Valid {
		log.Note = &note.String
	}
	log.CreatedAt = parseTime(createdAt)
	log.UpdatedAt = parseTime(updatedAt)

	return &log, nil
}
