package agent

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrTurnInProgress indicates the session already has an active turn.
	ErrTurnInProgress = errors.New("turn already in progress")

	// ErrSessionTerminated indicates the session was closed and accepts no
	// further turns.
	ErrSessionTerminated = errors.New("session terminated")
)

// Session holds the per-session state of the conversation loop. All mutable
// turn tracking lives here rather than in package-level storage, so two
// sessions never interfere.
type Session struct {
	ID     string
	UserID string

	mu         sync.Mutex
	turnActive bool
	terminated bool
	cancelTurn context.CancelFunc
	toolNames  map[string]string // toolCallID -> tool name

	// commits tracks writeback commits spawned by tool results during the
	// active turn. The turn is not finished until they all resolve.
	commits sync.WaitGroup
}

// BeginTurn claims the session for one turn. At most one turn may be active.
func (s *Session) BeginTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrSessionTerminated
	}
	if s.turnActive {
		return ErrTurnInProgress
	}
	s.turnActive = true
	return nil
}

// armCancel registers the active turn's cancel func so Terminate can abort
// an in-flight turn instead of waiting out its timeout.
func (s *Session) armCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancelTurn = cancel
	s.mu.Unlock()
}

// EndTurn releases the session after the turn has fully resolved.
func (s *Session) EndTurn() {
	s.mu.Lock()
	s.turnActive = false
	s.cancelTurn = nil
	s.mu.Unlock()
}

// Terminate closes the session. Any subsequent BeginTurn is rejected, and an
// in-flight turn is cancelled immediately.
func (s *Session) Terminate() {
	s.mu.Lock()
	s.terminated = true
	cancel := s.cancelTurn
	s.cancelTurn = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) isTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// RecordToolCall remembers the tool name behind a call id for later
// attribution of results.
func (s *Session) RecordToolCall(callID, name string) {
	s.mu.Lock()
	if s.toolNames == nil {
		s.toolNames = make(map[string]string)
	}
	s.toolNames[callID] = name
	s.mu.Unlock()
}

// ToolName resolves a previously recorded call id.
func (s *Session) ToolName(callID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.toolNames[callID]
	return name, ok
}

// Sessions is a concurrency-safe registry of live sessions.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for the given id, creating it on first use.
func (r *Sessions) GetOrCreate(sessionID, userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s
	}
	s := &Session{ID: sessionID, UserID: userID}
	r.sessions[sessionID] = s
	return s
}

// Terminate closes and removes a session if it exists.
func (r *Sessions) Terminate(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if ok {
		s.Terminate()
	}
}
