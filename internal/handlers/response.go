package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ehr-chatbot/internal/models"

	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// responder holds the shared JSON helpers
type responder struct {
	logger *zap.SugaredLogger
}

func newResponder(logger *zap.SugaredLogger) responder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return responder{logger: logger}
}

func (h responder) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf("failed to encode JSON: %v", err)
	}
}

func (h responder) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}

// sendServiceError maps a service error onto a status; 5xx details are logged, not returned
func (h responder) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		message := "internal error"
		if status == http.StatusBadGateway {
			message = "the generative backend is unavailable"
		}
		h.sendError(w, status, message)
		return
	}
	h.logger.Debugf("%s %s rejected: %v", r.Method, r.URL.Path, err)
	h.sendError(w, status, err.Error())
}

// decodeJSON reads a size-limited JSON body, rejecting unknown fields
func (h responder) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusForError is the single error to HTTP status mapping
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidCondition):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSynthesisUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
