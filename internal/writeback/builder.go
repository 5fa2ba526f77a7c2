package writeback

import (
	"errors"
	"fmt"

	"github.com/lumohealth/coachd/internal/types"
	"github.com/lumohealth/coachd/internal/validation"
	"github.com/oklog/ulid/v2"
)

// ErrEmptyPayload indicates a payload with no recognized section. It is
// rejected before any draft row is created.
var ErrEmptyPayload = errors.New("payload contains no recognized section")

// Draft is the tuple handed back to the caller of the sync tool. The caller
// is responsible for committing it; building performs zero writes.
type Draft struct {
	DraftID     string                 `json:"draft_id"`
	Payload     types.WritebackPayload `json:"payload"`
	ContextText string                 `json:"context_text,omitempty"`
}

// BuildDraft validates a candidate payload and mints a fresh opaque draft id.
// No retries, no side effects; failures are pure validation errors.
func BuildDraft(payload types.WritebackPayload, contextText string) (*Draft, error) {
	if payload.IsEmpty() {
		return nil, ErrEmptyPayload
	}

	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	return &Draft{
		DraftID:     ulid.Make().String(),
		Payload:     payload,
		ContextText: contextText,
	}, nil
}

var (
	writeModes = []string{
		string(types.WriteModeUpsert),
		string(types.WriteModeReplaceAll),
		string(types.WriteModeClearAll),
	}
	severities = []string{
		string(types.SeverityMild),
		string(types.SeverityModerate),
		string(types.SeveritySevere),
	}
	entityStatuses = []string{
		string(types.StatusActive),
		string(types.StatusManaged),
		string(types.StatusResolved),
	}
	mealTypes = []string{
		string(types.MealBreakfast),
		string(types.MealLunch),
		string(types.MealDinner),
		string(types.MealSnack),
	}
)

const (
	maxNameLength    = 120
	maxContentLength = 8000
)

// ValidatePayload checks every present section against its shape: enum
// membership, numeric bounds, and date-only strings. Profile fields are not
// rejected here; out-of-range profile values are silently skipped at apply
// time so the valid subset still lands.
func ValidatePayload(payload types.WritebackPayload) error {
	var c validation.Collector

	if s := payload.Conditions; s != nil {
		c.Add(validation.ValidateEnum("conditions.mode", string(s.Mode), writeModes))
		for i, item := range s.Items {
			field := fmt.Sprintf("conditions.items[%d]", i)
			c.Add(validation.ValidateRequired(field+".name", item.Name))
			c.Add(validation.ValidateMaxLength(field+".name", item.Name, maxNameLength))
			if item.Severity != "" {
				c.Add(validation.ValidateEnum(field+".severity", string(item.Severity), severities))
			}
			if item.Status != "" {
				c.Add(validation.ValidateEnum(field+".status", string(item.Status), entityStatuses))
			}
		}
	}

	if s := payload.Goals; s != nil {
		c.Add(validation.ValidateEnum("goals.mode", string(s.Mode), writeModes))
		for i, item := range s.Items {
			field := fmt.Sprintf("goals.items[%d]", i)
			c.Add(validation.ValidateRequired(field+".name", item.Name))
			c.Add(validation.ValidateMaxLength(field+".name", item.Name, maxNameLength))
			if item.Status != "" {
				c.Add(validation.ValidateEnum(field+".status", string(item.Status), entityStatuses))
			}
		}
	}

	if s := payload.Metrics; s != nil {
		for i, m := range s.Create {
			field := fmt.Sprintf("metrics.create[%d]", i)
			c.Add(validation.ValidateRequired(field+".kind", m.Kind))
			if m.RecordedAt != "" {
				c.Add(validation.ValidateTimestamp(field+".recorded_at", m.RecordedAt))
			}
		}
		for i, u := range s.Update {
			c.Add(validation.ValidateRequired(fmt.Sprintf("metrics.update[%d].id", i), u.ID))
		}
	}

	validatePlanSection(&c, "training_plan", payload.TrainingPlan)
	validatePlanSection(&c, "nutrition_plan", payload.NutritionPlan)
	validatePlanSection(&c, "supplement_plan", payload.SupplementPlan)

	if s := payload.Diet; s != nil {
		for i, item := range s.Items {
			field := fmt.Sprintf("diet.items[%d]", i)
			c.Add(validation.ValidateEnum(field+".meal_type", string(item.MealType), mealTypes))
			c.Add(validation.ValidateRequired(field+".content", item.Content))
			c.Add(validation.ValidateMaxLength(field+".content", item.Content, maxContentLength))
			if item.Date != "" {
				c.Add(validation.ValidateDateOnly(field+".date", item.Date))
			}
			if item.Calories != nil {
				c.Add(validation.ValidateIntRange(field+".calories", *item.Calories, 0, 20000))
			}
		}
		for i, del := range s.Deletes {
			field := fmt.Sprintf("diet.deletes[%d]", i)
			if del.ID == "" {
				// Keyed delete needs at least the meal type; the date may be
				// inferred from context text.
				c.Add(validation.ValidateEnum(field+".meal_type", string(del.MealType), mealTypes))
				if del.Date != "" {
					c.Add(validation.ValidateDateOnly(field+".date", del.Date))
				}
			}
		}
	}

	if s := payload.DailyLog; s != nil {
		if s.Date != "" {
			c.Add(validation.ValidateDateOnly("daily_log.date", s.Date))
		}
		if s.SleepHours != nil {
			c.Add(validation.ValidateRange("daily_log.sleep_hours", *s.SleepHours, 0, 24))
		}
		if s.Energy != nil {
			c.Add(validation.ValidateIntRange("daily_log.energy", *s.Energy, 1, 5))
		}
		if s.Soreness != nil {
			c.Add(validation.ValidateIntRange("daily_log.soreness", *s.Soreness, 1, 5))
		}
		if s.Mood != nil {
			c.Add(validation.ValidateMaxLength("daily_log.mood", *s.Mood, maxNameLength))
		}
	}

	if c.HasErrors() {
		return &c
	}
	return nil
}

func validatePlanSection(c *validation.Collector, name string, s *types.PlanSection) {
	if s == nil {
		return
	}
	if s.Date != "" {
		c.Add(validation.ValidateDateOnly(name+".date", s.Date))
	}
	if s.DeleteDate != "" {
		c.Add(validation.ValidateDateOnly(name+".delete_date", s.DeleteDate))
	}
	if s.Content == "" && s.DeleteDate == "" {
		c.Add(&validation.ValidationError{
			Field:   name,
			Message: "requires content or delete_date",
		})
	}
	c.Add(validation.ValidateMaxLength(name+".content", s.Content, maxContentLength))
}
