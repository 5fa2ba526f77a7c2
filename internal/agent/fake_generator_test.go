package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lumohealth/coachd/internal/llm"
)

// fakeGenerator replays scripted responses, streaming each response's deltas
// through onDelta first.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	deltas []string
	resp   llm.ChatResponse
	err    error
}

func (f *fakeGenerator) StreamChat(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, onDelta func(string)) (*llm.ChatResponse, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	if idx >= len(f.responses) {
		return &llm.ChatResponse{Content: "", FinishReason: "stop"}, nil
	}
	r := f.responses[idx]
	for _, d := range r.deltas {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if onDelta != nil {
			onDelta(d)
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	resp := r.resp
	if resp.Content == "" && len(resp.ToolCalls) == 0 {
		resp.Content = strings.Join(r.deltas, "")
	}
	return &resp, nil
}

func (f *fakeGenerator) ModelName() string { return "fake-model" }

// slowGenerator blocks until the context expires.
type slowGenerator struct {
	delay time.Duration
}

func (g *slowGenerator) StreamChat(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, onDelta func(string)) (*llm.ChatResponse, error) {
	select {
	case <-time.After(g.delay):
		return &llm.ChatResponse{Content: "late", FinishReason: "stop"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *slowGenerator) ModelName() string { return "fake-model" }

// cancellingGenerator streams its deltas, then cancels the surrounding
// context and reports the cancellation.
type cancellingGenerator struct {
	cancel context.CancelFunc
	deltas []string
}

func (g *cancellingGenerator) StreamChat(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, onDelta func(string)) (*llm.ChatResponse, error) {
	for _, d := range g.deltas {
		if onDelta != nil {
			onDelta(d)
		}
	}
	g.cancel()
	return nil, ctx.Err()
}

func (g *cancellingGenerator) ModelName() string { return "fake-model" }

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
