package store

import (
	"context"
	"testing"

	"github.com/lumohealth/coachd/internal/types"
)

func TestStore_NewSQLiteStore(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
}

func TestStore_ApplyProfilePatch_MergesNonNilFields(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	height := 178.0
	weight := 75.5
	if err := db.ApplyProfilePatch(ctx, "u1", types.ProfilePatch{HeightCm: &height, WeightKg: &weight}); err != nil {
		t.Fatal(err)
	}

	// Second patch supplies only weight; height must survive.
	newWeight := 74.0
	if err := db.ApplyProfilePatch(ctx, "u1", types.ProfilePatch{WeightKg: &newWeight}); err != nil {
		t.Fatal(err)
	}

	profile, err := db.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if profile.HeightCm == nil || *profile.HeightCm != 178.0 {
		t.Errorf("expected height 178.0 preserved, got %v", profile.HeightCm)
	}
	if profile.WeightKg == nil || *profile.WeightKg != 74.0 {
		t.Errorf("expected weight 74.0, got %v", profile.WeightKg)
	}
}

func TestStore_GetProfile_NotFound(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.GetProfile(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpsertCondition_MergesByNormName(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	first := types.Condition{
		UserID:   "u1",
		Name:     "Knee Pain",
		NormName: "knee pain",
		Severity: types.SeverityMild,
		Status:   types.StatusActive,
	}
	if err := db.UpsertCondition(ctx, first); err != nil {
		t.Fatal(err)
	}

	// Same normalized name with different casing must update, not duplicate.
	second := types.Condition{
		UserID:   "u1",
		Name:     "KNEE PAIN",
		NormName: "knee pain",
		Severity: types.SeverityModerate,
		Status:   types.StatusActive,
	}
	if err := db.UpsertCondition(ctx, second); err != nil {
		t.Fatal(err)
	}

	conditions, err := db.ListConditions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(conditions))
	}
	if conditions[0].Severity != types.SeverityModerate {
		t.Errorf("expected updated severity, got %q", conditions[0].Severity)
	}
}

func TestStore_DeleteAllConditions(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if err := db.UpsertCondition(ctx, types.Condition{
			UserID: "u1", Name: name, NormName: name,
			Severity: types.SeverityMild, Status: types.StatusActive,
		}); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := db.DeleteAllConditions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
}

func TestStore_UpsertGoal_MergesByCanonicalKey(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.UpsertGoal(ctx, types.TrainingGoal{
		UserID: "u1", Name: "增肌", CanonicalKey: "goal:muscle_gain", Status: types.StatusActive,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertGoal(ctx, types.TrainingGoal{
		UserID: "u1", Name: "想要长肌肉", CanonicalKey: "goal:muscle_gain", Status: types.StatusActive,
	}); err != nil {
		t.Fatal(err)
	}

	goals, err := db.ListGoals(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(goals) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(goals))
	}
	if goals[0].Name != "想要长肌肉" {
		t.Errorf("expected latest name kept, got %q", goals[0].Name)
	}
}

func TestStore_Metrics_CreateUpdateDelete(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	m := types.HealthMetric{ID: "m1", UserID: "u1", Kind: "weight", Value: 75.0, Unit: "kg"}
	if err := db.InsertMetric(ctx, m); err != nil {
		t.Fatal(err)
	}

	newValue := 74.2
	updated, err := db.UpdateMetric(ctx, "u1", types.MetricUpdate{ID: "m1", Value: &newValue})
	if err != nil {
		t.Fatal(err)
	}
	if !updated {
		t.Fatal("expected update to hit the row")
	}

	metrics, err := db.ListMetrics(ctx, "u1", "weight", "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(metrics) != 1 || metrics[0].Value != 74.2 {
		t.Fatalf("unexpected metrics after update: %+v", metrics)
	}
	if metrics[0].Unit != "kg" {
		t.Errorf("unit should be preserved on partial patch, got %q", metrics[0].Unit)
	}

	deleted, err := db.DeleteMetrics(ctx, "u1", []string{"m1", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestStore_UpdateMetric_WrongUser(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.InsertMetric(ctx, types.HealthMetric{ID: "m1", UserID: "u1", Kind: "weight", Value: 75}); err != nil {
		t.Fatal(err)
	}

	v := 60.0
	updated, err := db.UpdateMetric(ctx, "u2", types.MetricUpdate{ID: "m1", Value: &v})
	if err != nil {
		t.Fatal(err)
	}
	if updated {
		t.Error("update must not cross user boundaries")
	}
}

func TestStore_PutTrainingPlan_OnePerDay(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.PutTrainingPlan(ctx, types.TrainingPlan{UserID: "u1", PlanDate: "2026-08-30", Content: "legs"}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutTrainingPlan(ctx, types.TrainingPlan{UserID: "u1", PlanDate: "2026-08-30", Content: "push"}); err != nil {
		t.Fatal(err)
	}

	plans, err := db.ListTrainingPlans(ctx, "u1", "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected exactly 1 plan for the date, got %d", len(plans))
	}
	if plans[0].Content != "push" {
		t.Errorf("expected second plan's content, got %q", plans[0].Content)
	}
}

func TestStore_NutritionPlans_TagSeparation(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.PutNutritionPlan(ctx, types.NutritionPlan{UserID: "u1", PlanDate: "2026-08-30", Content: "high protein"}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutNutritionPlan(ctx, types.NutritionPlan{UserID: "u1", PlanDate: "2026-08-30", Tag: types.SupplementTag, Content: "creatine 5g"}); err != nil {
		t.Fatal(err)
	}

	// Nutrition and supplement plans for the same date must coexist.
	nutrition, err := db.ListNutritionPlans(ctx, "u1", "", "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	supplements, err := db.ListNutritionPlans(ctx, "u1", types.SupplementTag, "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(nutrition) != 1 || len(supplements) != 1 {
		t.Fatalf("expected 1 plan per tag, got %d nutrition, %d supplement", len(nutrition), len(supplements))
	}

	existed, err := db.DeleteNutritionPlan(ctx, "u1", "2026-08-30", types.SupplementTag)
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Error("expected supplement plan delete to hit a row")
	}
}

func TestStore_PutDietRecord_ReplacesByMealAndDate(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.PutDietRecord(ctx, types.DietRecord{UserID: "u1", MealType: types.MealLunch, RecordDate: "2026-08-30", Content: "chicken rice"}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutDietRecord(ctx, types.DietRecord{UserID: "u1", MealType: types.MealLunch, RecordDate: "2026-08-30", Content: "salmon salad"}); err != nil {
		t.Fatal(err)
	}

	records, err := db.ListDietRecords(ctx, "u1", "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record for the meal+date, got %d", len(records))
	}
	if records[0].Content != "salmon salad" {
		t.Errorf("expected replacement content, got %q", records[0].Content)
	}

	existed, err := db.DeleteDietRecordByKey(ctx, "u1", types.MealLunch, "2026-08-30")
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Error("expected delete by key to hit a row")
	}
}

func TestStore_UpsertDailyLog_MergesNonNilFields(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	mood := "good"
	sleep := 7.5
	if err := db.UpsertDailyLog(ctx, "u1", "2026-08-30", types.DailyLogSection{Mood: &mood, SleepHours: &sleep}); err != nil {
		t.Fatal(err)
	}

	energy := 4
	if err := db.UpsertDailyLog(ctx, "u1", "2026-08-30", types.DailyLogSection{Energy: &energy}); err != nil {
		t.Fatal(err)
	}

	log, err := db.GetDailyLog(ctx, "u1", "2026-08-30")
	if err != nil {
		t.Fatal(err)
	}
	if log.Mood == nil || *log.Mood != "good" {
		t.Errorf("mood should be preserved, got %v", log.Mood)
	}
	if log.SleepHours == nil || *log.SleepHours != 7.5 {
		t.Errorf("sleep hours should be preserved, got %v", log.SleepHours)
	}
	if log.Energy == nil || *log.Energy != 4 {
		t.Errorf("energy should be merged in, got %v", log.Energy)
	}

	logs, err := db.ListDailyLogs(ctx, "u1", "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one row per (user, date), got %d", len(logs))
	}
}

func TestStore_List_NonPositiveLimitIsUnbounded(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	for _, date := range []string{"2026-08-28", "2026-08-29", "2026-08-30"} {
		if err := db.PutTrainingPlan(ctx, types.TrainingPlan{UserID: "u1", PlanDate: date, Content: "plan " + date}); err != nil {
			t.Fatal(err)
		}
		if err := db.InsertMetric(ctx, types.HealthMetric{UserID: "u1", Kind: "weight", Value: 75}); err != nil {
			t.Fatal(err)
		}
	}

	plans, err := db.ListTrainingPlans(ctx, "u1", "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 3 {
		t.Errorf("limit 0 must return all plans, got %d", len(plans))
	}

	metrics, err := db.ListMetrics(ctx, "u1", "", "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(metrics) != 3 {
		t.Errorf("limit 0 must return all metrics, got %d", len(metrics))
	}
}
