package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// Compile-time interface check
var _ Generator = (*OpenAI)(nil)

// ChatService defines the interface for making streamed chat completion
// calls. This abstraction enables testing without calling the real OpenAI
// API.
type ChatService interface {
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// OpenAI implements the chat generation service using OpenAI's API
type OpenAI struct {
	completions ChatService
	model       openai.ChatModel
}

// NewOpenAI creates a new OpenAI chat generation service
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		completions: client.Chat.Completions,
		model:       openai.ChatModel(model),
	}
}

// StreamChat sends the conversation and drains the response stream, calling
// onDelta for each text fragment. The returned response carries the full
// text and any tool calls the model requested.
func (o *OpenAI) StreamChat(ctx context.Context, messages []Message, tools []ToolDef, onDelta func(string)) (*ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.F(o.model),
		Messages: openai.F(toMessageParams(messages)),
	}
	if len(tools) > 0 {
		toolParams, err := toToolParams(tools)
		if err != nil {
			return nil, err
		}
		params.Tools = openai.F(toolParams)
	}

	stream := o.completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if onDelta != nil && len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				onDelta(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("chat generation failed: %w", err)
	}

	if len(acc.Choices) == 0 {
		return nil, fmt.Errorf("chat generation failed: no choices returned")
	}

	choice := acc.Choices[0]
	resp := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return resp, nil
}

// ModelName returns the chat model name
func (o *OpenAI) ModelName() string {
	return string(o.model)
}

func toMessageParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   openai.F(tc.ID),
					Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
					Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      openai.F(tc.Name),
						Arguments: openai.F(tc.Arguments),
					}),
				}
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				Role:      openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
				ToolCalls: openai.F(calls),
			}
			if m.Content != "" {
				assistant.Content = openai.F([]openai.ChatCompletionAssistantMessageParamContentUnion{
					openai.TextPart(m.Content),
				})
			}
			out = append(out, assistant)
		case "tool":
			out = append(out, openai.ToolMessage(m.ToolCallID, m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toToolParams(tools []ToolDef) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		var schema map[string]interface{}
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("tool %s: invalid parameter schema: %w", t.Name, err)
			}
		}
		out[i] = openai.ChatCompletionToolParam{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.F(t.Name),
				Description: openai.F(t.Description),
				Parameters:  openai.F(openai.FunctionParameters(schema)),
			}),
		}
	}
	return out, nil
}
