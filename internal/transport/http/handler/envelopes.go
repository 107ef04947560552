package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/promark/verify-api/internal/application/binding"
	"github.com/promark/verify-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthEnvelope wraps the challenge-verification response.
type AuthEnvelope struct {
	Bearer  string           `json:"bearer,omitempty"`
	Session *SessionEnvelope `json:"session,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// SessionEnvelope is the externally visible session snapshot. The binding
// stage is always present, with IDLE standing in for a missing binding.
type SessionEnvelope struct {
	Session      *domain.VerificationSession `json:"session"`
	BindingStage domain.BindingStage         `json:"binding_stage"`
}

// AuditEnvelope wraps an audit run: the ordered trace plus the verdict.
type AuditEnvelope struct {
	Report  *binding.AuditReport `json:"report"`
	Session *SessionEnvelope     `json:"session"`
}

func sessionEnvelope(sess *domain.VerificationSession) *SessionEnvelope {
	return &SessionEnvelope{Session: sess, BindingStage: sess.BindingStage()}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCodeMismatch), errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMissingPrecondition), errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDeliveryFailed), errors.Is(err, domain.ErrOracleUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrOracleMalformed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrAuditRejected):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
