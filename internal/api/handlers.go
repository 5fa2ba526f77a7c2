package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lumohealth/coachd/internal/agent"
	"github.com/lumohealth/coachd/internal/llm"
	"github.com/lumohealth/coachd/internal/store"
	"github.com/lumohealth/coachd/internal/types"
	"github.com/lumohealth/coachd/internal/validation"
	"github.com/lumohealth/coachd/internal/writeback"
)

// Handler implements the API handlers
type Handler struct {
	store   store.Store
	commits *writeback.Coordinator
	turns   *agent.Controller
	gen     llm.Generator
	apiKey  string
	version string
}

// NewHandler creates a new Handler over the commit coordinator and turn
// controller.
func NewHandler(s store.Store, commits *writeback.Coordinator, turns *agent.Controller, gen llm.Generator, apiKey, version string) *Handler {
	return &Handler{
		store:   s,
		commits: commits,
		turns:   turns,
		gen:     gen,
		apiKey:  apiKey,
		version: version,
	}
}

// envelope is the success wrapper shared by commit and chat responses.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountDrafts(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:     "healthy",
		Version:    h.version,
		Model:      h.gen.ModelName(),
		DraftCount: count,
	})
}

type commitRequest struct {
	DraftID     string                  `json:"draft_id"`
	Payload     *types.WritebackPayload `json:"payload,omitempty"`
	ContextText string                  `json:"context_text,omitempty"`
}

type commitData struct {
	DraftID string                  `json:"draft_id"`
	Status  types.DraftStatus       `json:"status"`
	Summary *types.WritebackSummary `json:"summary,omitempty"`
}

// Commit handles POST /api/v1/writeback/commit
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	userID := MustUserIDFromContext(r.Context())

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if req.DraftID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "draft_id is required")
		return
	}

	result, err := h.commits.Commit(r.Context(), req.DraftID, userID, req.Payload, req.ContextText)
	if err != nil {
		var collector *validation.Collector
		switch {
		case errors.Is(err, writeback.ErrEmptyPayload):
			WriteProblem(w, r, http.StatusBadRequest, "Payload contains no recognized section")
		case errors.As(err, &collector):
			WriteProblemWithErrors(w, r, "Payload contains invalid fields", collector.Errors())
		case errors.Is(err, writeback.ErrOwnership):
			WriteProblem(w, r, http.StatusForbidden, "Draft belongs to a different user")
		case errors.Is(err, writeback.ErrDraftFailed):
			WriteProblem(w, r, http.StatusConflict, fmt.Sprintf("Draft previously failed: %s", result.Err))
		default:
			slog.Error("commit failed", "error", err, "draft_id", req.DraftID)
			MapStoreError(w, r, err)
		}
		return
	}

	switch result.Status {
	case types.DraftSuccess:
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: commitData{
			DraftID: result.DraftID,
			Status:  result.Status,
			Summary: result.Summary,
		}})
	case types.DraftPending:
		writeJSON(w, http.StatusAccepted, envelope{Success: true, Data: commitData{
			DraftID: result.DraftID,
			Status:  result.Status,
		}})
	default:
		// Apply hit a store error; the draft is terminally failed.
		WriteProblem(w, r, http.StatusInternalServerError, fmt.Sprintf("Apply failed: %s", result.Err))
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatData struct {
	Text    string                    `json:"text"`
	Commits []*writeback.CommitResult `json:"commits,omitempty"`
}

// Chat handles POST /api/v1/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := MustUserIDFromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if req.SessionID == "" || req.Message == "" {
		WriteProblem(w, r, http.StatusBadRequest, "session_id and message are required")
		return
	}

	result, err := h.turns.RunTurn(r.Context(), req.SessionID, userID, req.Message, nil, nil)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrTurnInProgress):
			WriteProblem(w, r, http.StatusConflict, "Turn already in progress")
		case errors.Is(err, agent.ErrSessionTerminated):
			WriteProblem(w, r, http.StatusConflict, "Session terminated")
		default:
			slog.Error("turn failed", "error", err, "session_id", req.SessionID)
			WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: chatData{
		Text:    result.Text,
		Commits: result.Commits,
	}})
}
