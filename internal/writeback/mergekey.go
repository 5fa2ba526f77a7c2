package writeback

import (
	"strings"
)

// goalKeyRule maps name fragments to a canonical goal bucket. Rules are
// checked in order; the first matching fragment wins.
type goalKeyRule struct {
	fragments []string
	key       string
}

// goalKeyRules is the heuristic classifier that folds semantically
// equivalent goal phrasings into one canonical key, so "增肌" and
// "想要长肌肉" update a single row. It may misclassify novel phrasings;
// unmatched names fall back to a normalized-name key.
var goalKeyRules = []goalKeyRule{
	{[]string{"增肌", "长肌肉", "增加肌肉", "muscle", "hypertrophy", "bulk"}, "goal:muscle_gain"},
	{[]string{"减脂", "减肥", "瘦身", "瘦", "fat loss", "lose weight", "weight loss", "cut", "slim"}, "goal:fat_loss"},
	{[]string{"耐力", "马拉松", "跑步", "endurance", "stamina", "cardio", "marathon", "running"}, "goal:endurance"},
	{[]string{"力量", "强壮", "strength", "stronger", "powerlifting"}, "goal:strength"},
	{[]string{"柔韧", "拉伸", "灵活", "flexibility", "mobility", "stretching"}, "goal:flexibility"},
	{[]string{"塑形", "体态", "姿态", "posture", "toning", "body shape"}, "goal:body_shape"},
}

// acknowledgements are low-information strings that show up when assistant
// confirmations leak into the payload. They must never become goals.
var acknowledgements = map[string]struct{}{
	"好":           {},
	"好的":          {},
	"好啊":          {},
	"嗯":           {},
	"嗯嗯":          {},
	"行":           {},
	"可以":          {},
	"收到":          {},
	"明白":          {},
	"明白了":         {},
	"了解":          {},
	"谢谢":          {},
	"谢了":          {},
	"ok":          {},
	"okay":        {},
	"yes":         {},
	"yep":         {},
	"no":          {},
	"sure":        {},
	"thanks":      {},
	"thank you":   {},
	"got it":      {},
	"sounds good": {},
}

// normalizeName lowercases and collapses internal whitespace.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// ClassifyGoal maps a goal name to its canonical key. It returns false for
// empty or low-information names that should not be written back.
func ClassifyGoal(name string) (string, bool) {
	norm := normalizeName(name)
	if norm == "" {
		return "", false
	}

	trimmed := strings.Trim(norm, "。.!！?？,，~ ")
	if _, ack := acknowledgements[trimmed]; ack {
		return "", false
	}

	for _, rule := range goalKeyRules {
		for _, fragment := range rule.fragments {
			if strings.Contains(norm, fragment) {
				return rule.key, true
			}
		}
	}

	return "goal:" + strings.ReplaceAll(norm, " ", "_"), true
}

// NormalizeCondition returns the case-insensitive merge key for a condition
// name. An empty result means the name carries no information.
func NormalizeCondition(name string) string {
	return normalizeName(name)
}
