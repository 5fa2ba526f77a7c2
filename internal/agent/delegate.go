package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lumohealth/coachd/internal/llm"
	"github.com/lumohealth/coachd/internal/writeback"
)

// Flush thresholds for streamed sub-generation. Increments are buffered and
// emitted once the buffer reaches flushChars or flushInterval has elapsed
// since the last emit, bounding chattiness without unbounded staleness.
const (
	flushChars    = 120
	flushInterval = 220 * time.Millisecond
)

// Increment is one preliminary fragment of a sub-generation. Preliminary
// items are merged into the live view only; the final result alone is
// authoritative.
type Increment struct {
	Kind  string `json:"kind"`
	Delta string `json:"delta"`
}

// DelegateResult is the single authoritative terminal item of a
// sub-generation.
type DelegateResult struct {
	Success  bool   `json:"success"`
	Kind     string `json:"kind"`
	Role     string `json:"role"`
	PlanDate string `json:"plan_date,omitempty"`
	Content  string `json:"content"`
}

type delegateArgs struct {
	Kind     string `json:"kind"`
	Prompt   string `json:"prompt"`
	PlanDate string `json:"plan_date,omitempty"`
}

// Delegate produces long-form content as a lazy finite sequence: zero or
// more preliminary increments followed by exactly one final result.
type Delegate struct {
	gen llm.Generator

	// now is swappable for tests.
	now func() time.Time
}

// NewDelegate creates a streaming sub-generator over the given model.
func NewDelegate(gen llm.Generator) *Delegate {
	return &Delegate{gen: gen, now: time.Now}
}

var delegatePrompts = map[string]string{
	"training_plan":  "You are a fitness coach. Write the requested training plan as plain text, concrete sets and reps.",
	"nutrition_plan": "You are a fitness coach. Write the requested nutrition plan as plain text with meals and portions.",
	"analysis":       "You are a fitness coach. Analyze the requested records and summarize trends and recommendations.",
}

// Generate streams the sub-generation, calling emit for each buffered
// preliminary increment. Cancellation stops production; text already emitted
// is preserved and returned on the final result.
func (d *Delegate) Generate(ctx context.Context, args delegateArgs, emit func(Increment)) (*DelegateResult, error) {
	system, ok := delegatePrompts[args.Kind]
	if !ok {
		system = delegatePrompts["analysis"]
	}

	planDate := args.PlanDate
	if planDate == "" && (args.Kind == "training_plan" || args.Kind == "nutrition_plan") {
		planDate = writeback.InferDate(args.Prompt, d.now().UTC())
	}

	var full strings.Builder
	var buf strings.Builder
	lastFlush := d.now()

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		if emit != nil {
			emit(Increment{Kind: args.Kind, Delta: buf.String()})
		}
		buf.Reset()
		lastFlush = d.now()
	}

	resp, err := d.gen.StreamChat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: args.Prompt},
	}, nil, func(delta string) {
		full.WriteString(delta)
		buf.WriteString(delta)
		if buf.Len() >= flushChars || d.now().Sub(lastFlush) >= flushInterval {
			flush()
		}
	})

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Keep what was produced up to the cancellation point.
			flush()
			return &DelegateResult{
				Success:  full.Len() > 0,
				Kind:     args.Kind,
				Role:     "assistant",
				PlanDate: planDate,
				Content:  full.String(),
			}, nil
		}
		return nil, err
	}

	flush()
	content := full.String()
	if content == "" && resp != nil {
		content = resp.Content
	}
	return &DelegateResult{
		Success:  true,
		Kind:     args.Kind,
		Role:     "assistant",
		PlanDate: planDate,
		Content:  content,
	}, nil
}
