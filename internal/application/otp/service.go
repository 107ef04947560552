package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/promark/verify-api/internal/domain"
	"github.com/promark/verify-api/internal/pkg/id"
)

type IssueChallengeRequest struct {
	Email string          `json:"email" validate:"required,email"`
	Path  domain.PathKind `json:"path" validate:"required"`
}

type VerifyChallengeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type Service interface {
	// IssueChallenge generates a passcode, delivers it, and records the
	// challenge. A live challenge for the same email is silently superseded.
	IssueChallenge(ctx context.Context, req IssueChallengeRequest) error
	// VerifyChallenge compares the submitted code against the live challenge.
	// On match it clears the challenge, advances the session to EMAIL_VERIFIED,
	// and returns a bearer token plus the session snapshot.
	VerifyChallenge(ctx context.Context, req VerifyChallengeRequest) (string, *domain.VerificationSession, error)
	// ResetChallenge discards the live challenge for an email, returning the
	// flow to its initial state. Safe to call when none is outstanding.
	ResetChallenge(ctx context.Context, email string) error
}

// ChallengeStore is the persistence the engine needs for outstanding codes.
type ChallengeStore interface {
	Put(ctx context.Context, c *domain.OtpChallenge) error
	Get(ctx context.Context, email string) (*domain.OtpChallenge, error)
	Delete(ctx context.Context, email string) error
	IncrementAttempts(ctx context.Context, email string, attempts int) error
}

// SessionStore persists verification sessions across reloads.
type SessionStore interface {
	Put(ctx context.Context, s *domain.VerificationSession) error
	GetByEmail(ctx context.Context, email string) (*domain.VerificationSession, error)
}

// Mailer delivers the passcode to the subject address.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// Signer issues the bearer token for an authenticated session.
type Signer interface {
	Sign(sessionID, email string, path domain.PathKind) (string, error)
}

type ServiceDeps struct {
	ChallengeRepo ChallengeStore
	SessionRepo   SessionStore
	Mailer        Mailer
	JWTProvider   Signer
	ChallengeTTL  time.Duration
	MaxAttempts   int // 0 disables the cap
}

type service struct {
	challengeRepo ChallengeStore
	sessionRepo   SessionStore
	mailer        Mailer
	jwtProvider   Signer
	challengeTTL  time.Duration
	maxAttempts   int
}

func NewService(deps ServiceDeps) Service {
	return &service{
		challengeRepo: deps.ChallengeRepo,
		sessionRepo:   deps.SessionRepo,
		mailer:        deps.Mailer,
		jwtProvider:   deps.JWTProvider,
		challengeTTL:  deps.ChallengeTTL,
		maxAttempts:   deps.MaxAttempts,
	}
}

func (s *service) IssueChallenge(ctx context.Context, req IssueChallengeRequest) error {
	if !domain.ValidPath(req.Path) {
		return fmt.Errorf("unknown path %q: %w", req.Path, domain.ErrBadRequest)
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	// Delivery happens before the challenge is recorded: a failed send leaves
	// any previously issued code live and the caller's state untouched.
	subject := fmt.Sprintf("Your verification code (%s)", req.Path)
	body := fmt.Sprintf("Your one-time passcode is %s. It expires in %d minutes.", code, int(s.challengeTTL.Minutes()))
	if err := s.mailer.SendEmail(req.Email, subject, body); err != nil {
		return fmt.Errorf("could not deliver passcode to %s: %v: %w", req.Email, err, domain.ErrDeliveryFailed)
	}

	c := &domain.OtpChallenge{
		Email:     req.Email,
		Path:      req.Path,
		Code:      code,
		ExpiresAt: time.Now().Add(s.challengeTTL).Unix(),
	}
	return s.challengeRepo.Put(ctx, c)
}

func (s *service) VerifyChallenge(ctx context.Context, req VerifyChallengeRequest) (string, *domain.VerificationSession, error) {
	c, err := s.challengeRepo.Get(ctx, req.Email)
	if err != nil {
		return "", nil, fmt.Errorf("no live challenge for %s: %w", req.Email, domain.ErrNotFound)
	}
	if c.ExpiresAt < time.Now().Unix() {
		return "", nil, fmt.Errorf("challenge expired: %w", domain.ErrNotFound)
	}

	// Full-string comparison; no partial credit.
	if c.Code != req.Code {
		c.AttemptsConsumed++
		if s.maxAttempts > 0 && c.AttemptsConsumed >= s.maxAttempts {
			if err := s.challengeRepo.Delete(ctx, req.Email); err != nil {
				return "", nil, err
			}
			return "", nil, fmt.Errorf("attempt limit reached, request a new code: %w", domain.ErrCodeMismatch)
		}
		if err := s.challengeRepo.IncrementAttempts(ctx, req.Email, c.AttemptsConsumed); err != nil {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("incorrect passcode: %w", domain.ErrCodeMismatch)
	}

	if err := s.challengeRepo.Delete(ctx, req.Email); err != nil {
		return "", nil, err
	}

	sess, err := s.sessionRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		now := time.Now().UTC()
		sess = &domain.VerificationSession{
			SessionID:    id.New(),
			SubjectEmail: req.Email,
			Path:         c.Path,
			Stage:        domain.StageEmailVerified,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	} else {
		// Re-authentication keeps any social progress already made.
		sess.Path = c.Path
		if sess.Stage == domain.StageUnauthenticated {
			sess.Stage = domain.StageEmailVerified
		}
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return "", nil, err
	}

	// Without a signer the session is still advanced, just not authenticatable.
	var bearer string
	if s.jwtProvider != nil {
		bearer, err = s.jwtProvider.Sign(sess.SessionID, sess.SubjectEmail, sess.Path)
		if err != nil {
			return "", nil, err
		}
	}
	return bearer, sess, nil
}

func (s *service) ResetChallenge(ctx context.Context, email string) error {
	return s.challengeRepo.Delete(ctx, email)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
