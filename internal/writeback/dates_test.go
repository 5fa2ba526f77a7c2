package writeback

import (
	"testing"
	"time"
)

var baseDay = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestInferDate_ExplicitToken(t *testing.T) {
	got := InferDate("我们从2026-09-05开始新计划", baseDay)
	if got != "2026-09-05" {
		t.Errorf("expected explicit date to win, got %q", got)
	}
}

func TestInferDate_KeywordTable(t *testing.T) {
	tests := []struct {
		context string
		want    string
	}{
		{"明天练腿", "2026-08-31"},
		{"tomorrow is leg day", "2026-08-31"},
		{"后天开始减脂餐", "2026-09-01"},
		{"the day after tomorrow we deload", "2026-09-01"},
		{"今天感觉不错", "2026-08-30"},
		{"today went well", "2026-08-30"},
		{"本周多休息", "2026-08-30"},
		{"this week focus on recovery", "2026-08-30"},
	}

	for _, tt := range tests {
		if got := InferDate(tt.context, baseDay); got != tt.want {
			t.Errorf("InferDate(%q) = %q, want %q", tt.context, got, tt.want)
		}
	}
}

func TestInferDate_DayAfterTomorrowBeatsTomorrow(t *testing.T) {
	// "day after tomorrow" contains "tomorrow": rule order must resolve to +2.
	if got := InferDate("plan for day after tomorrow", baseDay); got != "2026-09-01" {
		t.Errorf("expected +2 days, got %q", got)
	}
}

func TestInferDate_DefaultsToToday(t *testing.T) {
	for _, context := range []string{"", "多喝水", "就这样吧"} {
		if got := InferDate(context, baseDay); got != "2026-08-30" {
			t.Errorf("InferDate(%q) = %q, want today", context, got)
		}
	}
}

func TestResolveDate_ExplicitWins(t *testing.T) {
	got := resolveDate("2026-12-01", "明天", baseDay)
	if got != "2026-12-01" {
		t.Errorf("explicit date must win over context, got %q", got)
	}
}
