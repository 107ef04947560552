package domain

// OtpChallenge is one outstanding passcode for an email address.
// PK: email — at most one live challenge per email; a reissue overwrites
// (and thereby permanently voids) the previous code.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type OtpChallenge struct {
	Email            string   `json:"email" dynamodbav:"email"`
	Path             PathKind `json:"path" dynamodbav:"path"`
	Code             string   `json:"-" dynamodbav:"code"`
	AttemptsConsumed int      `json:"attempts_consumed" dynamodbav:"attempts_consumed"`
	ExpiresAt        int64    `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
