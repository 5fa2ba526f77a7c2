package store

import (
	"context"
	"time"

	"github.com/lumohealth/coachd/internal/types"
)

// Store defines the interface contract for all coaching record storage.
// List methods treat a non-positive limit as unbounded.
type Store interface {
	// Profile
	GetProfile(ctx context.Context, userID string) (*types.UserProfile, error)
	ApplyProfilePatch(ctx context.Context, userID string, patch types.ProfilePatch) error

	// Conditions
	ListConditions(ctx context.Context, userID string) ([]types.Condition, error)
	UpsertCondition(ctx context.Context, c types.Condition) error
	DeleteConditions(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteAllConditions(ctx context.Context, userID string) (int64, error)

	// Training goals
	ListGoals(ctx context.Context, userID string) ([]types.TrainingGoal, error)
	UpsertGoal(ctx context.Context, g types.TrainingGoal) error
	DeleteGoals(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteAllGoals(ctx context.Context, userID string) (int64, error)

	// Health metrics
	ListMetrics(ctx context.Context, userID, kind string, from, to string, limit int) ([]types.HealthMetric, error)
	InsertMetric(ctx context.Context, m types.HealthMetric) error
	UpdateMetric(ctx context.Context, userID string, u types.MetricUpdate) (bool, error)
	DeleteMetrics(ctx context.Context, userID string, ids []string) (int64, error)

	// Plans (one per user+date; nutrition/supplement share a table via tag)
	GetTrainingPlan(ctx context.Context, userID, date string) (*types.TrainingPlan, error)
	ListTrainingPlans(ctx context.Context, userID, from, to string, limit int) ([]types.TrainingPlan, error)
	PutTrainingPlan(ctx context.Context, p types.TrainingPlan) error
	DeleteTrainingPlan(ctx context.Context, userID, date string) (bool, error)
	ListNutritionPlans(ctx context.Context, userID, tag, from, to string, limit int) ([]types.NutritionPlan, error)
	PutNutritionPlan(ctx context.Context, p types.NutritionPlan) error
	DeleteNutritionPlan(ctx context.Context, userID, date, tag string) (bool, error)

	// Diet records
	ListDietRecords(ctx context.Context, userID, from, to string, limit int) ([]types.DietRecord, error)
	PutDietRecord(ctx context.Context, r types.DietRecord) error
	DeleteDietRecordByID(ctx context.Context, userID, id string) (bool, error)
	DeleteDietRecordByKey(ctx context.Context, userID string, meal types.MealType, date string) (bool, error)

	// Daily logs
	GetDailyLog(ctx context.Context, userID, date string) (*types.DailyLog, error)
	ListDailyLogs(ctx context.Context, userID, from, to string, limit int) ([]types.DailyLog, error)
	UpsertDailyLog(ctx context.Context, userID, date string, section types.DailyLogSection) error

	// Writeback drafts
	GetDraft(ctx context.Context, draftID string) (*types.WritebackDraft, error)
	InsertPendingDraft(ctx context.Context, draft types.WritebackDraft) error
	TakeoverStaleDraft(ctx context.Context, draftID string, observed, cutoff time.Time) (bool, error)
	CompleteDraft(ctx context.Context, draftID string, summary types.WritebackSummary) error
	FailDraft(ctx context.Context, draftID, errText string) error
	CountDrafts(ctx context.Context) (int64, error)

	// Audit trail (append-only)
	AppendAudit(ctx context.Context, rec types.AuditRecord) error
	PruneAudit(ctx context.Context, before time.Time) (int64, error)

	// Conversation history
	AppendChatMessage(ctx context.Context, msg types.ChatMessage) error
	ListChatMessages(ctx context.Context, sessionID string, limit int) ([]types.ChatMessage, error)

	Close() error
}
