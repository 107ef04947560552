package handler

import (
	"encoding/json"
	"net/http"

	"github.com/promark/verify-api/internal/application/binding"
	"github.com/promark/verify-api/internal/pkg/validate"
	"github.com/promark/verify-api/internal/transport/http/middleware"
)

// BindingHandler handles the social-binding endpoints.
type BindingHandler struct {
	svc binding.Service
}

func NewBindingHandler(svc binding.Service) *BindingHandler {
	return &BindingHandler{svc: svc}
}

func (h *BindingHandler) Handshake(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req binding.HandshakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := h.svc.RequestHandshake(r.Context(), claims.SessionID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope(sess))
}

func (h *BindingHandler) Evidence(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(binding.MaxEvidenceBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	f, header, err := r.FormFile("evidence")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing evidence field")
		return
	}
	defer f.Close()

	sess, err := h.svc.SubmitEvidence(r.Context(), claims.SessionID, f, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionEnvelope(sess))
}

func (h *BindingHandler) Audit(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	report, sess, err := h.svc.RunAudit(r.Context(), claims.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if !report.Verdict.Accepted() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, AuditEnvelope{Report: report, Session: sessionEnvelope(sess)})
}

func (h *BindingHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, err := h.svc.Revoke(r.Context(), claims.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope(sess))
}
