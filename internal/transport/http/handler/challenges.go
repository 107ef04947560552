package handler

import (
	"encoding/json"
	"net/http"

	"github.com/promark/verify-api/internal/application/otp"
	"github.com/promark/verify-api/internal/pkg/validate"
)

// ChallengeHandler handles the OTP challenge endpoints.
type ChallengeHandler struct {
	svc otp.Service
}

func NewChallengeHandler(svc otp.Service) *ChallengeHandler {
	return &ChallengeHandler{svc: svc}
}

func (h *ChallengeHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req otp.IssueChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.IssueChallenge(r.Context(), req); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "passcode sent"})
}

func (h *ChallengeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req otp.VerifyChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bearer, sess, err := h.svc.VerifyChallenge(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Bearer: bearer, Session: sessionEnvelope(sess)})
}

func (h *ChallengeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.ResetChallenge(r.Context(), req.Email); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "challenge discarded"})
}
