package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lumohealth/coachd/internal/llm"
	"github.com/lumohealth/coachd/internal/store"
	"github.com/lumohealth/coachd/internal/types"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, store.Store) {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDispatcher(db, NewDelegate(&fakeGenerator{})), db
}

func TestDispatch_QueryGoals(t *testing.T) {
	d, db := newTestDispatcher(t)
	ctx := context.Background()

	if err := db.UpsertGoal(ctx, types.TrainingGoal{
		UserID:       "u1",
		Name:         "增肌",
		CanonicalKey: "goal:muscle_gain",
		Status:       types.StatusActive,
	}); err != nil {
		t.Fatal(err)
	}

	out, err := d.Dispatch(ctx, "u1", llm.ToolCall{
		ID:        "call_1",
		Name:      ToolQuery,
		Arguments: `{"resource":"goals"}`,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var env struct {
		Success bool                 `json:"success"`
		Data    []types.TrainingGoal `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatal(err)
	}
	if !env.Success || len(env.Data) != 1 || env.Data[0].Name != "增肌" {
		t.Errorf("unexpected result: %s", out)
	}
}

func TestDispatch_QueryMissingProfile(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out, err := d.Dispatch(context.Background(), "u1", llm.ToolCall{
		Name:      ToolQuery,
		Arguments: `{"resource":"profile"}`,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"success":true`) {
		t.Errorf("missing profile is not an error: %s", out)
	}
}

func TestDispatch_QueryUnknownResource(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out, err := d.Dispatch(context.Background(), "u1", llm.ToolCall{
		Name:      ToolQuery,
		Arguments: `{"resource":"secrets"}`,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "unknown resource") {
		t.Errorf("expected error envelope, got %s", out)
	}
}

func TestDispatch_SyncProducesDraftWithoutWrites(t *testing.T) {
	d, db := newTestDispatcher(t)
	ctx := context.Background()

	out, err := d.Dispatch(ctx, "u1", llm.ToolCall{
		Name:      ToolSync,
		Arguments: `{"payload":{"goals":{"mode":"upsert","items":[{"name":"增肌"}]}},"context_text":"我想增肌"}`,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	draft := parseDraft(out)
	if draft == nil {
		t.Fatalf("expected a draft tuple, got %s", out)
	}
	if draft.DraftID == "" {
		t.Error("draft id must be minted")
	}
	if draft.ContextText != "我想增肌" {
		t.Errorf("context text lost: %q", draft.ContextText)
	}

	count, _ := db.CountDrafts(ctx)
	if count != 0 {
		t.Errorf("sync must perform zero writes, found %d draft rows", count)
	}
	goals, _ := db.ListGoals(ctx, "u1")
	if len(goals) != 0 {
		t.Errorf("sync must not write entities: %+v", goals)
	}
}

func TestDispatch_SyncEmptyPayload(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out, err := d.Dispatch(context.Background(), "u1", llm.ToolCall{
		Name:      ToolSync,
		Arguments: `{"payload":{}}`,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no recognized section") {
		t.Errorf("expected empty-payload rejection, got %s", out)
	}
	if parseDraft(out) != nil {
		t.Error("no draft should be produced")
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out, err := d.Dispatch(context.Background(), "u1", llm.ToolCall{
		Name:      "drop_tables",
		Arguments: `{}`,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "unknown tool") {
		t.Errorf("expected error envelope, got %s", out)
	}
}

func TestToolDefs_SchemasAreValidJSON(t *testing.T) {
	for _, def := range ToolDefs() {
		if def.Name == "" || def.Description == "" {
			t.Errorf("tool def missing name or description: %+v", def)
		}
		var schema map[string]interface{}
		if err := json.Unmarshal(def.Parameters, &schema); err != nil {
			t.Errorf("tool %s: invalid schema: %v", def.Name, err)
		}
	}
}
