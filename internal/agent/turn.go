package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lumohealth/coachd/internal/llm"
	"github.com/lumohealth/coachd/internal/store"
	"github.com/lumohealth/coachd/internal/types"
	"github.com/lumohealth/coachd/internal/writeback"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultMaxToolRounds bounds tool-call rounds per turn; exceeding it
	// truncates the turn with whatever text the model produced last.
	DefaultMaxToolRounds = 4

	// DefaultTurnTimeout is the hard per-turn deadline.
	DefaultTurnTimeout = 60 * time.Second

	historyLimit = 50

	systemPrompt = "You are a personal fitness and health coach. Answer in the user's language. " +
		"Use query_records to read the user's records, sync_records to persist structured facts " +
		"the user states about themselves, and generate_content for long-form plans and analyses."
)

// Controller drives one conversational turn per session: sanitize history,
// stream generation, dispatch tool calls, and await spawned commits before
// finishing.
type Controller struct {
	store      store.Store
	gen        llm.Generator
	dispatcher *Dispatcher
	commits    *writeback.Coordinator
	sessions   *Sessions

	maxRounds int
	timeout   time.Duration
}

// NewController wires a turn controller. Zero maxRounds or timeout fall back
// to the defaults.
func NewController(s store.Store, gen llm.Generator, dispatcher *Dispatcher, commits *writeback.Coordinator, maxRounds int, timeout time.Duration) *Controller {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	if timeout <= 0 {
		timeout = DefaultTurnTimeout
	}
	return &Controller{
		store:      s,
		gen:        gen,
		dispatcher: dispatcher,
		commits:    commits,
		sessions:   NewSessions(),
		maxRounds:  maxRounds,
		timeout:    timeout,
	}
}

// Sessions exposes the session registry, for termination by the transport
// layer.
func (c *Controller) Sessions() *Sessions { return c.sessions }

// TurnResult is the aggregate outcome of one finished turn.
type TurnResult struct {
	Text    string                    `json:"text"`
	Commits []*writeback.CommitResult `json:"commits,omitempty"`
}

// RunTurn processes one user message. onDelta (optional) receives streamed
// assistant text; emit (optional) receives preliminary sub-generation
// increments. The turn is finished only after every commit spawned by tool
// results has resolved.
func (c *Controller) RunTurn(ctx context.Context, sessionID, userID, text string, onDelta func(string), emit func(Increment)) (*TurnResult, error) {
	session := c.sessions.GetOrCreate(sessionID, userID)
	if err := session.BeginTurn(); err != nil {
		return nil, err
	}
	defer session.EndTurn()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	session.armCancel(cancel)

	messages, err := c.loadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Best-effort persistence before generation: a mid-stream crash still
	// leaves a trace of the user message.
	c.persist(ctx, sessionID, userID, llm.Message{Role: "user", Content: text})
	messages = append([]llm.Message{{Role: "system", Content: systemPrompt}}, SanitizeHistory(messages)...)
	messages = append(messages, llm.Message{Role: "user", Content: text})

	var commitMu sync.Mutex
	var commitResults []*writeback.CommitResult

	var finalText string
	for round := 0; round <= c.maxRounds; round++ {
		resp, err := c.generate(ctx, messages, onDelta)
		if err != nil {
			if session.isTerminated() {
				return nil, ErrSessionTerminated
			}
			return nil, err
		}
		finalText = resp.Content

		if len(resp.ToolCalls) == 0 || round == c.maxRounds {
			break
		}

		assistant := llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistant)
		c.persist(ctx, sessionID, userID, assistant)

		for _, call := range resp.ToolCalls {
			session.RecordToolCall(call.ID, call.Name)
			result, err := c.dispatcher.Dispatch(ctx, userID, call, emit)
			if err != nil {
				return nil, err
			}

			if call.Name == ToolSync {
				if draft := parseDraft(result); draft != nil {
					session.commits.Add(1)
					go func(d *writeback.Draft) {
						defer session.commits.Done()
						res, err := c.commits.Commit(context.WithoutCancel(ctx), d.DraftID, userID, &d.Payload, d.ContextText)
						if err != nil {
							slog.Warn("spawned commit failed",
								"component", "agent",
								"action", "commit_spawn_failed",
								"draft_id", d.DraftID,
								"error", err,
							)
							return
						}
						commitMu.Lock()
						commitResults = append(commitResults, res)
						commitMu.Unlock()
					}(draft)
				}
			}

			toolMsg := llm.Message{Role: "tool", ToolCallID: call.ID, Content: result}
			messages = append(messages, toolMsg)
			c.persist(ctx, sessionID, userID, toolMsg)
		}
	}

	// The turn is not done until spawned commits resolve.
	session.commits.Wait()

	c.persist(ctx, sessionID, userID, llm.Message{Role: "assistant", Content: finalText})

	commitMu.Lock()
	defer commitMu.Unlock()
	return &TurnResult{Text: finalText, Commits: commitResults}, nil
}

// generate calls the model, retrying transient failures with exponential
// backoff.
func (c *Controller) generate(ctx context.Context, messages []llm.Message, onDelta func(string)) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := c.gen.StreamChat(ctx, messages, ToolDefs(), onDelta)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func parseDraft(toolResult string) *writeback.Draft {
	var env struct {
		Success bool             `json:"success"`
		Data    *writeback.Draft `json:"data"`
	}
	if err := json.Unmarshal([]byte(toolResult), &env); err != nil || !env.Success || env.Data == nil {
		return nil
	}
	return env.Data
}

// storedToolMeta is the persisted encoding of tool-call metadata on a chat
// message row.
type storedToolMeta struct {
	Calls  []llm.ToolCall `json:"calls,omitempty"`
	CallID string         `json:"call_id,omitempty"`
}

func (c *Controller) persist(ctx context.Context, sessionID, userID string, m llm.Message) {
	msg := types.ChatMessage{
		SessionID: sessionID,
		UserID:    userID,
		Role:      m.Role,
		Content:   m.Content,
	}
	if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
		raw, err := json.Marshal(storedToolMeta{Calls: m.ToolCalls, CallID: m.ToolCallID})
		if err == nil {
			msg.ToolCalls = raw
		}
	}
	if err := c.store.AppendChatMessage(ctx, msg); err != nil {
		slog.Warn("chat message persistence failed",
			"component", "agent",
			"action", "persist_message_failed",
			"session_id", sessionID,
			"role", m.Role,
			"error", err,
		)
	}
}

func (c *Controller) loadHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	stored, err := c.store.ListChatMessages(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(stored))
	for _, s := range stored {
		m := llm.Message{Role: s.Role, Content: s.Content}
		if len(s.ToolCalls) > 0 {
			var meta storedToolMeta
			if err := json.Unmarshal(s.ToolCalls, &meta); err == nil {
				m.ToolCalls = meta.Calls
				m.ToolCallID = meta.CallID
			}
		}
		out = append(out, m)
	}
	return out, nil
}
