package types

import (
	"encoding/json"
	"time"
)

// WriteMode controls how a list-valued payload section is applied.
type WriteMode string

const (
	WriteModeUpsert     WriteMode = "upsert"
	WriteModeReplaceAll WriteMode = "replace_all"
	WriteModeClearAll   WriteMode = "clear_all"
)

// Severity classifies a reported condition.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// EntityStatus is the lifecycle state shared by conditions and goals.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusManaged  EntityStatus = "managed"
	StatusResolved EntityStatus = "resolved"
)

// MealType identifies which meal a diet record belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// UserProfile holds the body profile for one user.
type UserProfile struct {
	UserID        string    `json:"user_id"`
	HeightCm      *float64  `json:"height_cm,omitempty"`
	WeightKg      *float64  `json:"weight_kg,omitempty"`
	BirthYear     *int      `json:"birth_year,omitempty"`
	Sex           *string   `json:"sex,omitempty"`
	ActivityLevel *string   `json:"activity_level,omitempty"`
	BodyFatPct    *float64  `json:"body_fat_pct,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Condition is a health condition or constraint reported by the user.
type Condition struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Name      string       `json:"name"`
	NormName  string       `json:"-"`
	Severity  Severity     `json:"severity"`
	Status    EntityStatus `json:"status"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TrainingGoal is a fitness goal, deduplicated by canonical key.
type TrainingGoal struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Name         string       `json:"name"`
	CanonicalKey string       `json:"-"`
	Target       string       `json:"target,omitempty"`
	Status       EntityStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HealthMetric is a single measurement (weight, blood pressure, heart rate...).
type HealthMetric struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Note       string    `json:"note,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TrainingPlan holds one day's training content. At most one row per
// (user, plan_date).
type TrainingPlan struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PlanDate  string    `json:"plan_date"` // YYYY-MM-DD
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SupplementTag distinguishes supplement plans from nutrition plans inside
// the shared nutrition_plans table.
const SupplementTag = "supplement"

// NutritionPlan holds one day's nutrition (or supplement) content. At most
// one row per (user, plan_date, tag).
type NutritionPlan struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PlanDate  string    `json:"plan_date"` // YYYY-MM-DD
	Tag       string    `json:"tag,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DietRecord is what the user ate for one meal on one day. At most one row
// per (user, meal_type, record_date).
type DietRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MealType   MealType  `json:"meal_type"`
	RecordDate string    `json:"record_date"` // YYYY-MM-DD
	Content    string    `json:"content"`
	Calories   *int      `json:"calories,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DailyLog is the per-day wellbeing log. At most one row per (user, log_date);
// upserts merge only the non-nil fields.
type DailyLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	LogDate    string    `json:"log_date"` // YYYY-MM-DD
	Mood       *string   `json:"mood,omitempty"`
	SleepHours *float64  `json:"sleep_hours,omitempty"`
	Energy     *int      `json:"energy,omitempty"`
	Soreness   *int      `json:"soreness,omitempty"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProfilePatch is a sparse patch of the user profile. Nil fields are left
// untouched; out-of-range fields are skipped rather than rejected.
type ProfilePatch struct {
	HeightCm      *float64 `json:"height_cm,omitempty"`
	WeightKg      *float64 `json:"weight_kg,omitempty"`
	BirthYear     *int     `json:"birth_year,omitempty"`
	Sex           *string  `json:"sex,omitempty"`
	ActivityLevel *string  `json:"activity_level,omitempty"`
	BodyFatPct    *float64 `json:"body_fat_pct,omitempty"`
}

// ConditionInput is one condition as supplied by the sync tool.
type ConditionInput struct {
	Name     string       `json:"name"`
	Severity Severity     `json:"severity,omitempty"`
	Status   EntityStatus `json:"status,omitempty"`
	Note     string       `json:"note,omitempty"`
}

// ConditionSection carries conditions plus their write mode.
type ConditionSection struct {
	Mode      WriteMode        `json:"mode"`
	Items     []ConditionInput `json:"items,omitempty"`
	DeleteIDs []string         `json:"delete_ids,omitempty"`
}

// GoalInput is one training goal as supplied by the sync tool.
type GoalInput struct {
	Name   string       `json:"name"`
	Target string       `json:"target,omitempty"`
	Status EntityStatus `json:"status,omitempty"`
}

// GoalSection carries training goals plus their write mode.
type GoalSection struct {
	Mode      WriteMode   `json:"mode"`
	Items     []GoalInput `json:"items,omitempty"`
	DeleteIDs []string    `json:"delete_ids,omitempty"`
}

// MetricInput creates a new health metric.
type MetricInput struct {
	Kind       string  `json:"kind"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Note       string  `json:"note,omitempty"`
	RecordedAt string  `json:"recorded_at,omitempty"` // RFC 3339, defaults to now
}

// MetricUpdate patches an existing metric by id. Nil fields are untouched.
type MetricUpdate struct {
	ID    string   `json:"id"`
	Value *float64 `json:"value,omitempty"`
	Unit  *string  `json:"unit,omitempty"`
	Note  *string  `json:"note,omitempty"`
}

// MetricSection carries independent create, update, and delete lists.
type MetricSection struct {
	Create    []MetricInput  `json:"create,omitempty"`
	Update    []MetricUpdate `json:"update,omitempty"`
	DeleteIDs []string       `json:"delete_ids,omitempty"`
}

// PlanSection carries a dated plan. Date may be empty, in which case it is
// inferred from the draft's context text.
type PlanSection struct {
	Date       string `json:"date,omitempty"` // YYYY-MM-DD
	Content    string `json:"content,omitempty"`
	DeleteDate string `json:"delete_date,omitempty"`
}

// DietInput is one meal record.
type DietInput struct {
	MealType MealType `json:"meal_type"`
	Date     string   `json:"date,omitempty"` // YYYY-MM-DD, inferred if empty
	Content  string   `json:"content"`
	Calories *int     `json:"calories,omitempty"`
}

// DietDelete removes a diet record by id or by (meal type, date) pair.
type DietDelete struct {
	ID       string   `json:"id,omitempty"`
	MealType MealType `json:"meal_type,omitempty"`
	Date     string   `json:"date,omitempty"`
}

// DietSection carries meal records and deletes.
type DietSection struct {
	Items   []DietInput  `json:"items,omitempty"`
	Deletes []DietDelete `json:"deletes,omitempty"`
}

// DailyLogSection upserts the per-day log, merging non-nil fields.
type DailyLogSection struct {
	Date       string   `json:"date,omitempty"` // YYYY-MM-DD, inferred if empty
	Mood       *string  `json:"mood,omitempty"`
	SleepHours *float64 `json:"sleep_hours,omitempty"`
	Energy     *int     `json:"energy,omitempty"`
	Soreness   *int     `json:"soreness,omitempty"`
	Note       *string  `json:"note,omitempty"`
}

// WritebackPayload is the sparse structure produced by the sync tool. Every
// section is independently optional; a payload with no sections is a no-op
// and is rejected before a draft is created.
type WritebackPayload struct {
	Profile        *ProfilePatch     `json:"profile,omitempty"`
	Conditions     *ConditionSection `json:"conditions,omitempty"`
	Goals          *GoalSection      `json:"goals,omitempty"`
	Metrics        *MetricSection    `json:"metrics,omitempty"`
	TrainingPlan   *PlanSection      `json:"training_plan,omitempty"`
	NutritionPlan  *PlanSection      `json:"nutrition_plan,omitempty"`
	SupplementPlan *PlanSection      `json:"supplement_plan,omitempty"`
	Diet           *DietSection      `json:"diet,omitempty"`
	DailyLog       *DailyLogSection  `json:"daily_log,omitempty"`
}

// IsEmpty reports whether no recognized section is present.
func (p WritebackPayload) IsEmpty() bool {
	return p.Profile == nil &&
		p.Conditions == nil &&
		p.Goals == nil &&
		p.Metrics == nil &&
		p.TrainingPlan == nil &&
		p.NutritionPlan == nil &&
		p.SupplementPlan == nil &&
		p.Diet == nil &&
		p.DailyLog == nil
}

// WritebackSummary reports what a successful apply changed. Every field is
// always populated (zero when nothing happened) so callers never need to
// special-case "no changes."
type WritebackSummary struct {
	ProfileUpdated        bool `json:"profile_updated"`
	ConditionsUpserted    int  `json:"conditions_upserted"`
	ConditionsDeleted     int  `json:"conditions_deleted"`
	GoalsUpserted         int  `json:"goals_upserted"`
	GoalsDeleted          int  `json:"goals_deleted"`
	MetricsCreated        int  `json:"metrics_created"`
	MetricsUpdated        int  `json:"metrics_updated"`
	MetricsDeleted        int  `json:"metrics_deleted"`
	TrainingPlanCreated   bool `json:"training_plan_created"`
	TrainingPlanDeleted   bool `json:"training_plan_deleted"`
	NutritionPlanCreated  bool `json:"nutrition_plan_created"`
	NutritionPlanDeleted  bool `json:"nutrition_plan_deleted"`
	SupplementPlanCreated bool `json:"supplement_plan_created"`
	SupplementPlanDeleted bool `json:"supplement_plan_deleted"`
	DietRecordsUpserted   int  `json:"diet_records_upserted"`
	DietRecordsDeleted    int  `json:"diet_records_deleted"`
	DailyLogUpserted      bool `json:"daily_log_upserted"`
}

// DraftStatus is the lifecycle state of a writeback draft.
type DraftStatus string

const (
	DraftPending DraftStatus = "pending"
	DraftSuccess DraftStatus = "success"
	DraftFailed  DraftStatus = "failed"
)

// WritebackDraft is one writeback identified by an opaque caller-chosen id.
// It transitions pending -> success|failed exactly once, except for the
// stale-pending takeover rule.
type WritebackDraft struct {
	DraftID     string            `json:"draft_id"`
	UserID      string            `json:"user_id"`
	Payload     json.RawMessage   `json:"payload"`
	ContextText string            `json:"context_text,omitempty"`
	Status      DraftStatus       `json:"status"`
	Summary     *WritebackSummary `json:"summary,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// AuditRecord captures one commit attempt for traceability. Append-only,
// never read back by the engine.
type AuditRecord struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Source    string            `json:"source"`
	Status    string            `json:"status"`
	Summary   *WritebackSummary `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
	Excerpt   string            `json:"excerpt,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ChatMessage is one persisted conversation message.
type ChatMessage struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Model      string `json:"model"`
	DraftCount int64  `json:"draft_count"`
}
