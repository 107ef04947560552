package session

import (
	"context"
	"fmt"

	"github.com/promark/verify-api/internal/domain"
)

type Service interface {
	// GetCurrent returns the persisted session snapshot for reloads.
	GetCurrent(ctx context.Context, sessionID string) (*domain.VerificationSession, error)
	// Clear removes the persisted session entirely.
	Clear(ctx context.Context, sessionID string) error
}

// SessionStore is the persistence the service needs.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*domain.VerificationSession, error)
	Delete(ctx context.Context, sessionID string) error
}

type service struct {
	sessionRepo SessionStore
}

func NewService(sessionRepo SessionStore) Service {
	return &service{sessionRepo: sessionRepo}
}

func (s *service) GetCurrent(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return sess, nil
}

func (s *service) Clear(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Delete(ctx, sessionID)
}
