package http

import (
	"github.com/promark/verify-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/promark/verify-api/internal/infrastructure/jwt"
	"github.com/promark/verify-api/internal/infrastructure/oracle"
	s3infra "github.com/promark/verify-api/internal/infrastructure/s3"
	"github.com/promark/verify-api/internal/infrastructure/smtp"
	"github.com/promark/verify-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	SessionRepo   *dynamo.SessionRepo
	ChallengeRepo *dynamo.ChallengeRepo
	EvidenceStore *s3infra.Store
	Mailer        smtp.Mailer
	Oracle        oracle.Classifier
	Events        sns.EventPublisher
	JWTProvider   *jwtinfra.Provider
}
