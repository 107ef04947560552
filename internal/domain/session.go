package domain

import "time"

// PathKind is the role a participant declares when requesting a challenge.
// It determines downstream routing, never verification logic.
type PathKind string

const (
	PathSignIn   PathKind = "SIGNIN"
	PathCreator  PathKind = "CREATOR"
	PathMarketer PathKind = "MARKETER"
)

// ValidPath reports whether p is one of the declared path kinds.
func ValidPath(p PathKind) bool {
	switch p {
	case PathSignIn, PathCreator, PathMarketer:
		return true
	}
	return false
}

// SessionStage is the account-level verification stage.
type SessionStage string

const (
	StageUnauthenticated SessionStage = "UNAUTHENTICATED"
	StageEmailVerified   SessionStage = "EMAIL_VERIFIED"
	StageSocialPending   SessionStage = "SOCIAL_PENDING"
	StageSocialVerified  SessionStage = "SOCIAL_VERIFIED"
)

// VerificationSession is the unit of identity state. It owns at most one
// SocialBinding at a time; OTP challenges live in their own table keyed by
// email and never outlive a successful match.
type VerificationSession struct {
	SessionID    string         `json:"id" dynamodbav:"session_id"`
	SubjectEmail string         `json:"subject_email" dynamodbav:"subject_email"`
	Path         PathKind       `json:"path" dynamodbav:"path"`
	Stage        SessionStage   `json:"stage" dynamodbav:"stage"`
	Binding      *SocialBinding `json:"binding,omitempty" dynamodbav:"binding"`
	CreatedAt    time.Time      `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time      `json:"updated" dynamodbav:"updated_at"`
}

// BindingStage reports the social-binding sub-flow stage. A session without a
// binding record is IDLE.
func (s *VerificationSession) BindingStage() BindingStage {
	if s.Binding == nil {
		return BindingIdle
	}
	return s.Binding.Stage
}
