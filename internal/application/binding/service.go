package binding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/promark/verify-api/internal/domain"
	"github.com/promark/verify-api/internal/infrastructure/sns"
	"github.com/promark/verify-api/internal/pkg/bindtoken"
)

// MaxEvidenceBytes bounds a single evidence upload.
const MaxEvidenceBytes = 8 << 20

type HandshakeRequest struct {
	Handle        string `json:"handle" validate:"required"`
	WalletAddress string `json:"wallet_address" validate:"required"`
}

// AuditReport carries the ordered trace lines plus the terminal verdict.
// Lines before the oracle call always precede the verdict-derived summary
// lines; nothing is appended after the verdict is surfaced.
type AuditReport struct {
	Lines   []string             `json:"lines"`
	Verdict *domain.AuditVerdict `json:"verdict"`
}

type Service interface {
	// RequestHandshake derives a fresh binding token for handle+wallet. Any
	// prior token, evidence, and verdict for the session are discarded.
	RequestHandshake(ctx context.Context, sessionID string, req HandshakeRequest) (*domain.VerificationSession, error)
	// SubmitEvidence stores the screenshot artifact. No oracle call happens here.
	SubmitEvidence(ctx context.Context, sessionID string, r io.Reader, contentType string, size int64) (*domain.VerificationSession, error)
	// RunAudit forwards the evidence to the classification oracle exactly once
	// and reduces its verdict. Accept moves the binding to BOUND; reject falls
	// back to HANDSHAKE_ISSUED with token and evidence preserved.
	RunAudit(ctx context.Context, sessionID string) (*AuditReport, *domain.VerificationSession, error)
	// Revoke resets a BOUND binding to idle, clearing evidence and verdict.
	Revoke(ctx context.Context, sessionID string) (*domain.VerificationSession, error)
}

// SessionStore persists verification sessions.
type SessionStore interface {
	Put(ctx context.Context, s *domain.VerificationSession) error
	Get(ctx context.Context, sessionID string) (*domain.VerificationSession, error)
}

// EvidenceStore holds uploaded screenshot artifacts.
type EvidenceStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Classifier is the external classification oracle.
type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType, expectedHandle, expectedToken string) (*domain.AuditVerdict, error)
}

type ServiceDeps struct {
	SessionRepo      SessionStore
	Evidence         EvidenceStore
	Oracle           Classifier
	Events           sns.EventPublisher // nil disables publishing
	AuditTimeout     time.Duration
	AuditMaxAttempts int // 0 disables the cap
}

type service struct {
	sessionRepo      SessionStore
	evidence         EvidenceStore
	oracle           Classifier
	events           sns.EventPublisher
	auditTimeout     time.Duration
	auditMaxAttempts int

	// One verification operation per session at a time. The lock is held for
	// the full audit call so duplicate submissions are rejected, not raced.
	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

func NewService(deps ServiceDeps) Service {
	return &service{
		sessionRepo:      deps.SessionRepo,
		evidence:         deps.Evidence,
		oracle:           deps.Oracle,
		events:           deps.Events,
		auditTimeout:     deps.AuditTimeout,
		auditMaxAttempts: deps.AuditMaxAttempts,
		inflight:         make(map[string]*sync.Mutex),
	}
}

// acquire rejects re-entrant calls for the same session instead of queueing
// them. The returned release drops the map entry again so the guard does not
// accumulate a mutex per session ever touched. Lock, unlock, and removal all
// happen under s.mu, so no caller can hold a stale entry pointer.
func (s *service) acquire(sessionID, op string) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.inflight[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.inflight[sessionID] = l
	}
	if !l.TryLock() {
		return nil, fmt.Errorf("%s: another verification operation is in flight for this session: %w", op, domain.ErrIllegalTransition)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		l.Unlock()
		delete(s.inflight, sessionID)
	}, nil
}

func (s *service) RequestHandshake(ctx context.Context, sessionID string, req HandshakeRequest) (*domain.VerificationSession, error) {
	release, err := s.acquire(sessionID, "handshake")
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Stage == domain.StageUnauthenticated {
		return nil, fmt.Errorf("handshake requires a verified email session: %w", domain.ErrIllegalTransition)
	}
	if b := sess.Binding; b != nil {
		switch b.Stage {
		case domain.BindingAuditing:
			return nil, fmt.Errorf("handshake not allowed while an audit is in flight: %w", domain.ErrIllegalTransition)
		case domain.BindingBound:
			return nil, fmt.Errorf("binding already accepted, revoke it first: %w", domain.ErrIllegalTransition)
		}
	}

	handle := strings.TrimSpace(req.Handle)
	wallet := strings.TrimSpace(req.WalletAddress)
	token, err := bindtoken.Derive(handle, wallet)
	if err != nil {
		return nil, err
	}

	// A fresh handshake voids the previous token and discards any evidence
	// or verdict recorded against it.
	if b := sess.Binding; b != nil && b.EvidenceKey != "" {
		if err := s.evidence.Delete(ctx, b.EvidenceKey); err != nil {
			slog.Warn("failed to delete superseded evidence", "session_id", sessionID, "key", b.EvidenceKey, "err", err)
		}
	}
	sess.Binding = &domain.SocialBinding{
		Handle:        handle,
		WalletAddress: wallet,
		Token:         token,
		Stage:         domain.BindingHandshakeIssued,
	}
	sess.Stage = domain.StageSocialPending

	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) SubmitEvidence(ctx context.Context, sessionID string, r io.Reader, contentType string, size int64) (*domain.VerificationSession, error) {
	release, err := s.acquire(sessionID, "evidence")
	if err != nil {
		return nil, err
	}
	defer release()

	if size <= 0 {
		return nil, fmt.Errorf("evidence artifact is empty: %w", domain.ErrMissingPrecondition)
	}
	if size > MaxEvidenceBytes {
		return nil, fmt.Errorf("evidence artifact exceeds %d bytes: %w", int(MaxEvidenceBytes), domain.ErrBadRequest)
	}
	ext, ok := evidenceExt(contentType)
	if !ok {
		return nil, fmt.Errorf("unsupported evidence encoding %q: %w", contentType, domain.ErrBadRequest)
	}

	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	b := sess.Binding
	if b == nil {
		return nil, fmt.Errorf("no handshake token issued: %w", domain.ErrMissingPrecondition)
	}
	switch b.Stage {
	case domain.BindingHandshakeIssued, domain.BindingEvidenceReceived:
		// re-upload replaces the prior artifact
	default:
		return nil, fmt.Errorf("evidence not accepted from stage %s: %w", b.Stage, domain.ErrIllegalTransition)
	}

	key := fmt.Sprintf("evidence/%s%s", sessionID, ext)
	if _, err := s.evidence.Upload(ctx, key, io.LimitReader(r, MaxEvidenceBytes), contentType); err != nil {
		return nil, fmt.Errorf("store evidence: %w", err)
	}

	b.EvidenceKey = key
	b.EvidenceType = contentType
	b.Stage = domain.BindingEvidenceReceived
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) RunAudit(ctx context.Context, sessionID string) (*AuditReport, *domain.VerificationSession, error) {
	release, err := s.acquire(sessionID, "audit")
	if err != nil {
		return nil, nil, err
	}
	defer release()

	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	b := sess.Binding
	if b == nil {
		return nil, nil, fmt.Errorf("no handshake token issued: %w", domain.ErrMissingPrecondition)
	}
	switch b.Stage {
	case domain.BindingAuditing:
		return nil, nil, fmt.Errorf("audit already in flight: %w", domain.ErrIllegalTransition)
	case domain.BindingEvidenceReceived, domain.BindingHandshakeIssued:
		// HANDSHAKE_ISSUED re-enters here after a reject or a transient
		// failure, provided the evidence artifact is still on file.
	default:
		return nil, nil, fmt.Errorf("audit not allowed from stage %s: %w", b.Stage, domain.ErrIllegalTransition)
	}
	if b.EvidenceKey == "" {
		return nil, nil, fmt.Errorf("no evidence submitted for this token: %w", domain.ErrMissingPrecondition)
	}
	if s.auditMaxAttempts > 0 && b.AuditsConsumed >= s.auditMaxAttempts {
		return nil, nil, fmt.Errorf("audit attempt limit reached for this token, request a new handshake: %w", domain.ErrAuditRejected)
	}

	report := &AuditReport{Lines: []string{
		"initializing evidence audit sequence",
		fmt.Sprintf("establishing link with classification oracle for token %s", b.Token),
	}}

	// The session is visibly AUDITING while the oracle call is outstanding so
	// duplicate submissions from other processes are rejected too.
	b.Stage = domain.BindingAuditing
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, nil, err
	}

	verdict, err := s.classify(ctx, b)
	if err != nil {
		s.revert(ctx, sess)
		return nil, nil, err
	}

	b.AuditsConsumed++
	b.Verdict = verdict
	report.Verdict = verdict
	report.Lines = append(report.Lines,
		fmt.Sprintf("handle extracted from evidence: %s", verdict.ExtractedHandle),
		fmt.Sprintf("token cross-reference: %s", passFail(verdict.TokenMatches)),
		fmt.Sprintf("authenticity check: %s", passFail(verdict.IsAuthentic)),
	)

	if verdict.Accepted() {
		report.Lines = append(report.Lines, "verdict: ACCEPTED")
		b.Stage = domain.BindingBound
		sess.Stage = domain.StageSocialVerified
	} else {
		report.Lines = append(report.Lines, fmt.Sprintf("verdict: REJECTED — %s", verdict.Reasoning))
		b.Stage = domain.BindingHandshakeIssued
		sess.Stage = domain.StageSocialPending
	}

	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		// The AUDITING marker persisted above must not outlive a failed result
		// write, or the session wedges with every retry rejected.
		s.revert(ctx, sess)
		return nil, nil, err
	}

	if verdict.Accepted() {
		s.publish(ctx, sns.EventSocialVerified, sess)
	}
	return report, sess, nil
}

// classify performs the single oracle invocation under the audit timeout.
func (s *service) classify(ctx context.Context, b *domain.SocialBinding) (*domain.AuditVerdict, error) {
	if s.auditTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.auditTimeout)
		defer cancel()
	}

	image, err := s.evidence.Download(ctx, b.EvidenceKey)
	if err != nil {
		return nil, fmt.Errorf("load evidence: %v: %w", err, domain.ErrOracleUnavailable)
	}
	verdict, err := s.oracle.Classify(ctx, image, b.EvidenceType, b.Handle, b.Token)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("audit timed out or was abandoned: %w", domain.ErrOracleUnavailable)
		}
		return nil, err
	}
	return verdict, nil
}

// revert takes the binding out of AUDITING after a failed or abandoned call.
// The write uses a detached context so caller cancellation cannot strand the
// persisted session in AUDITING.
func (s *service) revert(ctx context.Context, sess *domain.VerificationSession) {
	sess.Binding.Stage = domain.BindingHandshakeIssued
	sess.Stage = domain.StageSocialPending
	if err := s.sessionRepo.Put(context.WithoutCancel(ctx), sess); err != nil {
		slog.Warn("failed to revert session after audit failure", "session_id", sess.SessionID, "err", err)
	}
}

func (s *service) Revoke(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	release, err := s.acquire(sessionID, "revoke")
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	b := sess.Binding
	if b == nil || b.Stage != domain.BindingBound {
		return nil, fmt.Errorf("revoke only applies to a bound binding: %w", domain.ErrIllegalTransition)
	}

	if b.EvidenceKey != "" {
		if err := s.evidence.Delete(ctx, b.EvidenceKey); err != nil {
			slog.Warn("failed to delete evidence on revoke", "session_id", sessionID, "key", b.EvidenceKey, "err", err)
		}
	}

	revoked := *sess
	sess.Binding = nil
	sess.Stage = domain.StageEmailVerified
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}

	s.publish(ctx, sns.EventBindingRevoked, &revoked)
	return sess, nil
}

// publish is best-effort: lifecycle events never block a transition.
func (s *service) publish(ctx context.Context, eventType string, sess *domain.VerificationSession) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, sess); err != nil {
		slog.Warn("failed to publish lifecycle event", "event", eventType, "session_id", sess.SessionID, "err", err)
	}
}

func passFail(ok bool) string {
	if ok {
		return "PASSED"
	}
	return "FAILED"
}

func evidenceExt(contentType string) (string, bool) {
	switch contentType {
	case "image/png":
		return ".png", true
	case "image/jpeg":
		return ".jpg", true
	case "image/webp":
		return ".webp", true
	}
	return "", false
}
