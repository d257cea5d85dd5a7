package handlers

import (
	"context"
	"fmt"
	"net/http"

	"ehr-chatbot/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ChatService is the conversation API used by the chat endpoints
type ChatService interface {
	Conditions(ctx context.Context) map[string]string
	StartSession(ctx context.Context, ownerID int64, req models.StartSessionRequest) (*models.StartSessionResponse, error)
	HandleQuery(ctx context.Context, ownerID int64, sessionID uuid.UUID, query string) (*models.TurnResult, error)
	History(ctx context.Context, ownerID int64, sessionID uuid.UUID) (*models.HistoryResponse, error)
	ListSessions(ctx context.Context, ownerID int64) ([]models.SessionSummary, error)
	UpdateClinicalData(ctx context.Context, ownerID int64, sessionID uuid.UUID, data map[string]string) (models.ClinicalData, error)
	Stats(ctx context.Context, ownerID int64, sessionID uuid.UUID) (models.SessionStats, error)
	DeleteSession(ctx context.Context, ownerID int64, sessionID uuid.UUID) error
	GenerateEducationalNote(ctx context.Context, conditionID string, data map[string]string) (*models.EducationalNote, error)
}

// ChatHandler handles HTTP requests for chat sessions
type ChatHandler struct {
	responder
	service ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service ChatService, logger *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{responder: newResponder(logger), service: service}
}

// ListConditions returns the condition registry
// @Summary List conditions
// @Description Returns every supported condition id with its display name
// @Tags conditions
// @Produce json
// @Success 200 {object} models.ConditionsResponse
// @Router /api/conditions [get]
func (h *ChatHandler) ListConditions(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, models.ConditionsResponse{
		Success:    true,
		Conditions: h.service.Conditions(r.Context()),
	})
}

// StartSession opens a conversation
// @Summary Start a chat session
// @Description Creates a session for a condition. Unregistered conditions always receive an educational note.
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.StartSessionRequest true "Session parameters"
// @Success 200 {object} models.StartSessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/chat/start [post]
func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req models.StartSessionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.StartSession(r.Context(), ownerID, req)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, resp)
}

// Query answers one user message
// @Summary Ask a question
// @Description Runs retrieval, classification and fallback for one user message
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.QueryRequest true "Query"
// @Success 200 {object} models.TurnResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/chat/query [post]
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req models.QueryRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	sessionID, ok := h.parseSessionID(w, req.SessionID)
	if !ok {
		return
	}

	result, err := h.service.HandleQuery(r.Context(), ownerID, sessionID, req.Query)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}

// History returns the transcript of a session
// @Summary Session history
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param session_id path string true "Session ID"
// @Success 200 {object} models.HistoryResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/chat/history/{session_id} [get]
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	ownerID, sessionID, ok := h.ownerAndPathSession(w, r)
	if !ok {
		return
	}

	history, err := h.service.History(r.Context(), ownerID, sessionID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, history)
}

// ListSessions returns the caller's sessions
// @Summary List sessions
// @Description Sessions owned by the caller, most recently updated first
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SessionsResponse
// @Router /api/chat/sessions [get]
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), ownerID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.SessionSummary{}
	}
	h.sendJSON(w, http.StatusOK, models.SessionsResponse{Success: true, Sessions: sessions})
}

// EducationalNote generates a note without creating a session
// @Summary Generate an educational note
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.EducationalNoteRequest true "Condition and clinical data"
// @Success 200 {object} models.EducationalNoteResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/chat/educational-note [post]
func (h *ChatHandler) EducationalNote(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.owner(w, r); !ok {
		return
	}

	var req models.EducationalNoteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	note, err := h.service.GenerateEducationalNote(r.Context(), req.ConditionID, req.ClinicalData)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, models.EducationalNoteResponse{Success: true, Note: *note})
}

// UpdateClinicalData replaces a session's clinical data
// @Summary Update clinical data
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UpdateClinicalDataRequest true "Session and data"
// @Success 200 {object} models.UpdateClinicalDataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/chat/update-clinical-data [post]
func (h *ChatHandler) UpdateClinicalData(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req models.UpdateClinicalDataRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	sessionID, ok := h.parseSessionID(w, req.SessionID)
	if !ok {
		return
	}

	data, err := h.service.UpdateClinicalData(r.Context(), ownerID, sessionID, req.ClinicalData)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, models.UpdateClinicalDataResponse{Success: true, ClinicalData: data})
}

// Stats returns a session's confidence counters
// @Summary Session statistics
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param session_id path string true "Session ID"
// @Success 200 {object} models.StatsResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/stats/{session_id} [get]
func (h *ChatHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ownerID, sessionID, ok := h.ownerAndPathSession(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), ownerID, sessionID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, models.StatsResponse{Success: true, SessionID: sessionID, Stats: stats})
}

// DeleteSession removes a session
// @Summary Delete a session
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param session_id path string true "Session ID"
// @Success 200 {object} models.DeleteSessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/chat/session/{session_id} [delete]
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ownerID, sessionID, ok := h.ownerAndPathSession(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSession(r.Context(), ownerID, sessionID); err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, models.DeleteSessionResponse{Success: true, SessionID: sessionID})
}

// Helper methods

func (h *ChatHandler) owner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "authentication required")
	}
	return ownerID, ok
}

// parseSessionID treats a malformed id as an unknown session
func (h *ChatHandler) parseSessionID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("%v: %q", models.ErrSessionNotFound, raw))
		return uuid.Nil, false
	}
	return id, true
}

func (h *ChatHandler) ownerAndPathSession(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return 0, uuid.Nil, false
	}
	sessionID, ok := h.parseSessionID(w, mux.Vars(r)["session_id"])
	return ownerID, sessionID, ok
}
