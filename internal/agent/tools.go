package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lumohealth/coachd/internal/llm"
	"github.com/lumohealth/coachd/internal/store"
	"github.com/lumohealth/coachd/internal/types"
	"github.com/lumohealth/coachd/internal/writeback"
)

// Tool names advertised to the model.
const (
	ToolQuery    = "query_records"
	ToolSync     = "sync_records"
	ToolDelegate = "generate_content"
)

// Per-resource caps for the query tool.
const (
	maxListLimit    = 50
	defaultListRows = 20
)

// Dispatcher executes tool calls issued by the model. query reads through
// the store, sync produces a draft without writing, and delegate streams a
// sub-generation.
type Dispatcher struct {
	store    store.Store
	delegate *Delegate
}

// NewDispatcher creates a tool dispatcher over the given store and delegate
// generator.
func NewDispatcher(s store.Store, delegate *Delegate) *Dispatcher {
	return &Dispatcher{store: s, delegate: delegate}
}

// ToolDefs returns the tool definitions advertised to the model.
func ToolDefs() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        ToolQuery,
			Description: "Query the user's coaching records: profile, conditions, goals, metrics, plans, diet, logs.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"resource": {"type": "string", "enum": ["profile", "conditions", "goals", "metrics", "plans", "diet", "logs"]},
					"kind": {"type": "string", "description": "metric kind or plan type (training|nutrition|supplement)"},
					"from": {"type": "string", "description": "start date YYYY-MM-DD"},
					"to": {"type": "string", "description": "end date YYYY-MM-DD"},
					"limit": {"type": "integer"}
				},
				"required": ["resource"]
			}`),
		},
		{
			Name:        ToolSync,
			Description: "Produce a writeback draft from structured facts extracted from the conversation. Performs no writes; the draft is committed separately.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"payload": {"type": "object", "description": "sparse writeback payload with optional sections"},
					"context_text": {"type": "string", "description": "free text used for date and meal inference"}
				},
				"required": ["payload"]
			}`),
		},
		{
			Name:        ToolDelegate,
			Description: "Generate long-form coaching content (training plan, nutrition plan, analysis) as a streamed sub-generation.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"kind": {"type": "string", "enum": ["training_plan", "nutrition_plan", "analysis"]},
					"prompt": {"type": "string"},
					"plan_date": {"type": "string", "description": "target date YYYY-MM-DD, optional"}
				},
				"required": ["kind", "prompt"]
			}`),
		},
	}
}

type queryArgs struct {
	Resource string `json:"resource"`
	Kind     string `json:"kind,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type syncArgs struct {
	Payload     types.WritebackPayload `json:"payload"`
	ContextText string                 `json:"context_text,omitempty"`
}

type toolEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Dispatch runs one tool call and returns its JSON-encoded result. Tool
// failures are returned as error envelopes, not Go errors, so the model can
// recover; only marshalling faults propagate.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, call llm.ToolCall, emit func(Increment)) (string, error) {
	switch call.Name {
	case ToolQuery:
		var args queryArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return marshalEnvelope(toolEnvelope{Error: fmt.Sprintf("invalid arguments: %v", err)})
		}
		data, err := d.query(ctx, userID, args)
		if err != nil {
			return marshalEnvelope(toolEnvelope{Error: err.Error()})
		}
		return marshalEnvelope(toolEnvelope{Success: true, Data: data})

	case ToolSync:
		var args syncArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return marshalEnvelope(toolEnvelope{Error: fmt.Sprintf("invalid arguments: %v", err)})
		}
		draft, err := writeback.BuildDraft(args.Payload, args.ContextText)
		if err != nil {
			return marshalEnvelope(toolEnvelope{Error: err.Error()})
		}
		return marshalEnvelope(toolEnvelope{Success: true, Data: draft})

	case ToolDelegate:
		var args delegateArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return marshalEnvelope(toolEnvelope{Error: fmt.Sprintf("invalid arguments: %v", err)})
		}
		final, err := d.delegate.Generate(ctx, args, emit)
		if err != nil {
			return marshalEnvelope(toolEnvelope{Error: err.Error()})
		}
		out, err := json.Marshal(final)
		if err != nil {
			return "", err
		}
		return string(out), nil

	default:
		return marshalEnvelope(toolEnvelope{Error: fmt.Sprintf("unknown tool %q", call.Name)})
	}
}

func (d *Dispatcher) query(ctx context.Context, userID string, args queryArgs) (interface{}, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultListRows
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	switch args.Resource {
	case "profile":
		profile, err := d.store.GetProfile(ctx, userID)
		if err == store.ErrNotFound {
			return nil, nil
		}
		return profile, err

	case "conditions":
		return d.store.ListConditions(ctx, userID)

	case "goals":
		return d.store.ListGoals(ctx, userID)

	case "metrics":
		return d.store.ListMetrics(ctx, userID, args.Kind, args.From, args.To, limit)

	case "plans":
		switch args.Kind {
		case "nutrition":
			return d.store.ListNutritionPlans(ctx, userID, "", args.From, args.To, limit)
		case "supplement":
			return d.store.ListNutritionPlans(ctx, userID, types.SupplementTag, args.From, args.To, limit)
		default:
			return d.store.ListTrainingPlans(ctx, userID, args.From, args.To, limit)
		}

	case "diet":
		return d.store.ListDietRecords(ctx, userID, args.From, args.To, limit)

	case "logs":
		return d.store.ListDailyLogs(ctx, userID, args.From, args.To, limit)

	default:
		return nil, fmt.Errorf("unknown resource %q", args.Resource)
	}
}

func marshalEnvelope(env toolEnvelope) (string, error) {
	out, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
