package agent

import "github.com/lumohealth/coachd/internal/llm"

// SanitizeHistory removes orphaned tool-call artifacts so the history handed
// to the model never references a tool call without a result.
//
// A tool call is orphaned when no tool message answers its id. Assistant
// messages keep their resolved calls and their own text; an assistant message
// left with neither is dropped entirely. Tool messages whose call id no
// longer has an owning assistant message are dropped too.
func SanitizeHistory(messages []llm.Message) []llm.Message {
	resolved := make(map[string]bool)
	for _, m := range messages {
		if m.Role == "tool" && m.ToolCallID != "" {
			resolved[m.ToolCallID] = true
		}
	}

	kept := make(map[string]bool)
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "assistant":
			if len(m.ToolCalls) == 0 {
				out = append(out, m)
				continue
			}
			var calls []llm.ToolCall
			for _, tc := range m.ToolCalls {
				if resolved[tc.ID] {
					calls = append(calls, tc)
					kept[tc.ID] = true
				}
			}
			if len(calls) == 0 && m.Content == "" {
				continue
			}
			m.ToolCalls = calls
			out = append(out, m)

		case "tool":
			if !kept[m.ToolCallID] {
				continue
			}
			out = append(out, m)

		default:
			out = append(out, m)
		}
	}
	return out
}
