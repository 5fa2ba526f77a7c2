package agent

import (
	"testing"

	"github.com/lumohealth/coachd/internal/llm"
)

func TestSanitizeHistory_DropsOrphanOnlyAssistantMessage(t *testing.T) {
	out := SanitizeHistory([]llm.Message{
		{Role: "user", Content: "记录一下我的目标"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "call_1", Name: ToolSync, Arguments: "{}"}}},
		{Role: "user", Content: "在吗?"},
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d: %+v", len(out), out)
	}
	for _, m := range out {
		if m.Role == "assistant" {
			t.Errorf("orphan-only assistant message should be dropped: %+v", m)
		}
	}
}

func TestSanitizeHistory_KeepsTextStripsOrphanCall(t *testing.T) {
	out := SanitizeHistory([]llm.Message{
		{Role: "assistant", Content: "我来查一下", ToolCalls: []llm.ToolCall{{ID: "call_1", Name: ToolQuery}}},
	})

	if len(out) != 1 {
		t.Fatalf("text-bearing message must survive, got %d", len(out))
	}
	if out[0].Content != "我来查一下" {
		t.Errorf("text lost: %+v", out[0])
	}
	if len(out[0].ToolCalls) != 0 {
		t.Errorf("orphaned call must be stripped: %+v", out[0].ToolCalls)
	}
}

func TestSanitizeHistory_KeepsResolvedCalls(t *testing.T) {
	out := SanitizeHistory([]llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: ToolQuery},
			{ID: "call_2", Name: ToolQuery},
		}},
		{Role: "tool", ToolCallID: "call_1", Content: `{"success":true}`},
	})

	if len(out) != 2 {
		t.Fatalf("expected assistant + tool message, got %d: %+v", len(out), out)
	}
	if len(out[0].ToolCalls) != 1 || out[0].ToolCalls[0].ID != "call_1" {
		t.Errorf("only the resolved call should remain: %+v", out[0].ToolCalls)
	}
	if out[1].Role != "tool" || out[1].ToolCallID != "call_1" {
		t.Errorf("tool result for resolved call must be kept: %+v", out[1])
	}
}

func TestSanitizeHistory_DropsUnownedToolMessage(t *testing.T) {
	out := SanitizeHistory([]llm.Message{
		{Role: "tool", ToolCallID: "call_9", Content: `{"success":true}`},
		{Role: "user", Content: "hello"},
	})

	if len(out) != 1 || out[0].Role != "user" {
		t.Errorf("tool message without an owning assistant must be dropped: %+v", out)
	}
}

func TestSanitizeHistory_PlainConversationUntouched(t *testing.T) {
	in := []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "how are you"},
	}
	out := SanitizeHistory(in)
	if len(out) != len(in) {
		t.Fatalf("plain history must pass through, got %d of %d", len(out), len(in))
	}
}
