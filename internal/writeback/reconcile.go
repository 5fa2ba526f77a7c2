package writeback

import (
	"context"
	"fmt"
	"time"

	"github.com/lumohealth/coachd/internal/store"
	"github.com/lumohealth/coachd/internal/types"
)

// Engine applies a validated writeback payload to the data store, one entity
// kind at a time. Each section commits independently; a store failure aborts
// the remaining sections without rolling back the ones already applied.
type Engine struct {
	store store.Store
}

// NewEngine creates a reconciliation engine over the given store.
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// Apply reconciles every present payload section and returns a fully
// populated summary of effected changes.
func (e *Engine) Apply(ctx context.Context, userID string, payload types.WritebackPayload, contextText string, now time.Time) (*types.WritebackSummary, error) {
	summary := &types.WritebackSummary{}

	if payload.Profile != nil {
		if err := e.applyProfile(ctx, userID, *payload.Profile, summary); err != nil {
			return nil, err
		}
	}
	if payload.Conditions != nil {
		if err := e.applyConditions(ctx, userID, *payload.Conditions, summary); err != nil {
			return nil, err
		}
	}
	if payload.Goals != nil {
		if err := e.applyGoals(ctx, userID, *payload.Goals, summary); err != nil {
			return nil, err
		}
	}
	if payload.Metrics != nil {
		if err := e.applyMetrics(ctx, userID, *payload.Metrics, summary); err != nil {
			return nil, err
		}
	}
	if payload.TrainingPlan != nil {
		if err := e.applyTrainingPlan(ctx, userID, *payload.TrainingPlan, contextText, now, summary); err != nil {
			return nil, err
		}
	}
	if payload.NutritionPlan != nil {
		created, deleted, err := e.applyNutritionPlan(ctx, userID, *payload.NutritionPlan, "", contextText, now)
		if err != nil {
			return nil, err
		}
		summary.NutritionPlanCreated = created
		summary.NutritionPlanDeleted = deleted
	}
	if payload.SupplementPlan != nil {
		created, deleted, err := e.applyNutritionPlan(ctx, userID, *payload.SupplementPlan, types.SupplementTag, contextText, now)
		if err != nil {
			return nil, err
		}
		summary.SupplementPlanCreated = created
		summary.SupplementPlanDeleted = deleted
	}
	if payload.Diet != nil {
		if err := e.applyDiet(ctx, userID, *payload.Diet, contextText, now, summary); err != nil {
			return nil, err
		}
	}
	if payload.DailyLog != nil {
		if err := e.applyDailyLog(ctx, userID, *payload.DailyLog, contextText, now, summary); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// applyProfile patches the allow-listed profile fields. Out-of-range values
// are dropped, not rejected, so the valid subset of a partially-valid patch
// still applies.
func (e *Engine) applyProfile(ctx context.Context, userID string, patch types.ProfilePatch, summary *types.WritebackSummary) error {
	filtered := filterProfilePatch(patch)
	if filtered == (types.ProfilePatch{}) {
		return nil
	}

	if err := e.store.ApplyProfilePatch(ctx, userID, filtered); err != nil {
		return fmt.Errorf("apply profile patch: %w", err)
	}
	summary.ProfileUpdated = true
	return nil
}

// filterProfilePatch drops fields outside their plausible range.
func filterProfilePatch(patch types.ProfilePatch) types.ProfilePatch {
	var out types.ProfilePatch
	if patch.HeightCm != nil && *patch.HeightCm >= 50 && *patch.HeightCm <= 280 {
		out.HeightCm = patch.HeightCm
	}
	if patch.WeightKg != nil && *patch.WeightKg >= 20 && *patch.WeightKg <= 400 {
		out.WeightKg = patch.WeightKg
	}
	if patch.BirthYear != nil && *patch.BirthYear >= 1900 && *patch.BirthYear <= time.Now().UTC().Year() {
		out.BirthYear = patch.BirthYear
	}
	if patch.Sex != nil {
		switch *patch.Sex {
		case "male", "female", "other":
			out.Sex = patch.Sex
		}
	}
	if patch.ActivityLevel != nil {
		switch *patch.ActivityLevel {
		case "sedentary", "light", "moderate", "active", "very_active":
			out.ActivityLevel = patch.ActivityLevel
		}
	}
	if patch.BodyFatPct != nil && *patch.BodyFatPct >= 1 && *patch.BodyFatPct <= 75 {
		out.BodyFatPct = patch.BodyFatPct
	}
	return out
}

func (e *Engine) applyConditions(ctx context.Context, userID string, section types.ConditionSection, summary *types.WritebackSummary) error {
	switch section.Mode {
	case types.WriteModeClearAll:
		deleted, err := e.store.DeleteAllConditions(ctx, userID)
		if err != nil {
			return fmt.Errorf("clear conditions: %w", err)
		}
		summary.ConditionsDeleted = int(deleted)
		return nil

	case types.WriteModeReplaceAll:
		deleted, err := e.store.DeleteAllConditions(ctx, userID)
		if err != nil {
			return fmt.Errorf("replace conditions: %w", err)
		}
		summary.ConditionsDeleted = int(deleted)
	}

	for _, item := range section.Items {
		norm := NormalizeCondition(item.Name)
		if norm == "" {
			continue
		}
		c := types.Condition{
			UserID:   userID,
			Name:     item.Name,
			NormName: norm,
			Severity: item.Severity,
			Status:   item.Status,
			Note:     item.Note,
		}
		if c.Severity == "" {
			c.Severity = types.SeverityMild
		}
		if c.Status == "" {
			c.Status = types.StatusActive
		}
		if err := e.store.UpsertCondition(ctx, c); err != nil {
			return fmt.Errorf("upsert condition: %w", err)
		}
		summary.ConditionsUpserted++
	}

	if section.Mode == types.WriteModeUpsert && len(section.DeleteIDs) > 0 {
		deleted, err := e.store.DeleteConditions(ctx, userID, section.DeleteIDs)
		if err != nil {
			return fmt.Errorf("delete conditions: %w", err)
		}
		summary.ConditionsDeleted += int(deleted)
	}

	return nil
}

func (e *Engine) applyGoals(ctx context.Context, userID string, section types.GoalSection, summary *types.WritebackSummary) error {
	switch section.Mode {
	case types.WriteModeClearAll:
		deleted, err := e.store.DeleteAllGoals(ctx, userID)
		if err != nil {
			return fmt.Errorf("clear goals: %w", err)
		}
		summary.GoalsDeleted = int(deleted)
		return nil

	case types.WriteModeReplaceAll:
		deleted, err := e.store.DeleteAllGoals(ctx, userID)
		if err != nil {
			return fmt.Errorf("replace goals: %w", err)
		}
		summary.GoalsDeleted = int(deleted)
	}

	for _, item := range section.Items {
		key, ok := ClassifyGoal(item.Name)
		if !ok {
			// Acknowledgement phrases and empty names never become goals.
			continue
		}
		g := types.TrainingGoal{
			UserID:       userID,
			Name:         item.Name,
			CanonicalKey: key,
			Target:       item.Target,
			Status:       item.Status,
		}
		if g.Status == "" {
			g.Status = types.StatusActive
		}
		if err := e.store.UpsertGoal(ctx, g); err != nil {
			return fmt.Errorf("upsert goal: %w", err)
		}
		summary.GoalsUpserted++
	}

	if section.Mode == types.WriteModeUpsert && len(section.DeleteIDs) > 0 {
		deleted, err := e.store.DeleteGoals(ctx, userID, section.DeleteIDs)
		if err != nil {
			return fmt.Errorf("delete goals: %w", err)
		}
		summary.GoalsDeleted += int(deleted)
	}

	return nil
}

// applyMetrics handles the three independent lists: creates, id-keyed
// updates, and id-keyed deletes. They are never merged with each other.
func (e *Engine) applyMetrics(ctx context.Context, userID string, section types.MetricSection, summary *types.WritebackSummary) error {
	for _, m := range section.Create {
		metric := types.HealthMetric{
			UserID: userID,
			Kind:   m.Kind,
			Value:  m.Value,
			Unit:   m.Unit,
			Note:   m.Note,
		}
		if m.RecordedAt != "" {
			t, err := time.Parse(time.RFC3339, m.RecordedAt)
			if err != nil {
				return fmt.Errorf("parse recorded_at: %w", err)
			}
			metric.RecordedAt = t
		}
		if err := e.store.InsertMetric(ctx, metric); err != nil {
			return fmt.Errorf("insert metric: %w", err)
		}
		summary.MetricsCreated++
	}

	for _, u := range section.Update {
		updated, err := e.store.UpdateMetric(ctx, userID, u)
		if err != nil {
			return fmt.Errorf("update metric: %w", err)
		}
		if updated {
			summary.MetricsUpdated++
		}
	}

	if len(section.DeleteIDs) > 0 {
		deleted, err := e.store.DeleteMetrics(ctx, userID, section.DeleteIDs)
		if err != nil {
			return fmt.Errorf("delete metrics: %w", err)
		}
		summary.MetricsDeleted = int(deleted)
	}

	return nil
}

func (e *Engine) applyTrainingPlan(ctx context.Context, userID string, section types.PlanSection, contextText string, now time.Time, summary *types.WritebackSummary) error {
	if section.DeleteDate != "" {
		existed, err := e.store.DeleteTrainingPlan(ctx, userID, section.DeleteDate)
		if err != nil {
			return fmt.Errorf("delete training plan: %w", err)
		}
		summary.TrainingPlanDeleted = existed
	}

	if section.Content != "" {
		date := resolveDate(section.Date, contextText, now)
		if err := e.store.PutTrainingPlan(ctx, types.TrainingPlan{
			UserID:   userID,
			PlanDate: date,
			Content:  section.Content,
		}); err != nil {
			return fmt.Errorf("put training plan: %w", err)
		}
		summary.TrainingPlanCreated = true
	}

	return nil
}

func (e *Engine) applyNutritionPlan(ctx context.Context, userID string, section types.PlanSection, tag, contextText string, now time.Time) (created, deleted bool, err error) {
	if section.DeleteDate != "" {
		existed, err := e.store.DeleteNutritionPlan(ctx, userID, section.DeleteDate, tag)
		if err != nil {
			return false, false, fmt.Errorf("delete nutrition plan: %w", err)
		}
		deleted = existed
	}

	if section.Content != "" {
		date := resolveDate(section.Date, contextText, now)
		if err := e.store.PutNutritionPlan(ctx, types.NutritionPlan{
			UserID:   userID,
			PlanDate: date,
			Tag:      tag,
			Content:  section.Content,
		}); err != nil {
			return false, deleted, fmt.Errorf("put nutrition plan: %w", err)
		}
		created = true
	}

	return created, deleted, nil
}

func (e *Engine) applyDiet(ctx context.Context, userID string, section types.DietSection, contextText string, now time.Time, summary *types.WritebackSummary) error {
	for _, item := range section.Items {
		date := resolveDate(item.Date, contextText, now)
		if err := e.store.PutDietRecord(ctx, types.DietRecord{
			UserID:     userID,
			MealType:   item.MealType,
			RecordDate: date,
			Content:    item.Content,
			Calories:   item.Calories,
		}); err != nil {
			return fmt.Errorf("put diet record: %w", err)
		}
		summary.DietRecordsUpserted++
	}

	for _, del := range section.Deletes {
		var existed bool
		var err error
		if del.ID != "" {
			existed, err = e.store.DeleteDietRecordByID(ctx, userID, del.ID)
		} else {
			date := resolveDate(del.Date, contextText, now)
			existed, err = e.store.DeleteDietRecordByKey(ctx, userID, del.MealType, date)
		}
		if err != nil {
			return fmt.Errorf("delete diet record: %w", err)
		}
		if existed {
			summary.DietRecordsDeleted++
		}
	}

	return nil
}

func (e *Engine) applyDailyLog(ctx context.Context, userID string, section types.DailyLogSection, contextText string, now time.Time, summary *types.WritebackSummary) error {
	date := resolveDate(section.Date, contextText, now)
	if err := e.store.UpsertDailyLog(ctx, userID, date, section); err != nil {
		return fmt.Errorf("upsert daily log: %w", err)
	}
	summary.DailyLogUpserted = true
	return nil
}
