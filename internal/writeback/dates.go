package writeback

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// explicitDateRE matches a YYYY-MM-DD token anywhere in free text.
var explicitDateRE = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// relativeDateRule maps a keyword to a day offset from today. Rules are
// checked in order: longer phrases first, so "后天" and "day after tomorrow"
// win over their substrings.
type relativeDateRule struct {
	keyword    string
	offsetDays int
}

// relativeDateRules is the heuristic keyword table. It resolves common
// Chinese and English relative-time phrasings; novel phrasings fall through
// to the natural-language parser and finally to today.
var relativeDateRules = []relativeDateRule{
	{"后天", 2},
	{"day after tomorrow", 2},
	{"明天", 1},
	{"tomorrow", 1},
	{"今天", 0},
	{"today", 0},
	{"本周", 0},
	{"this week", 0},
}

// nlParser handles English free text that the keyword table misses
// ("next friday", "in 3 days"). Read-only after init, safe for concurrent use.
var nlParser = newNLParser()

func newNLParser() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}

// InferDate resolves the calendar date a payload refers to when no explicit
// date was supplied. Resolution order: explicit YYYY-MM-DD token in the
// context text, keyword table, natural-language parse, today. All dates are
// UTC.
func InferDate(contextText string, now time.Time) string {
	now = now.UTC()

	if m := explicitDateRE.FindString(contextText); m != "" {
		if _, err := time.Parse(time.DateOnly, m); err == nil {
			return m
		}
	}

	lower := strings.ToLower(contextText)
	for _, rule := range relativeDateRules {
		if strings.Contains(lower, rule.keyword) {
			return now.AddDate(0, 0, rule.offsetDays).Format(time.DateOnly)
		}
	}

	if contextText != "" {
		if r, err := nlParser.Parse(contextText, now); err == nil && r != nil {
			return r.Time.UTC().Format(time.DateOnly)
		}
	}

	return now.Format(time.DateOnly)
}

// resolveDate returns the explicit date when present, otherwise infers one
// from the context text.
func resolveDate(explicit, contextText string, now time.Time) string {
	if explicit != "" {
		return explicit
	}
	return InferDate(contextText, now)
}
