package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// Verification pipeline errors. All recoverable from the caller's point of
	// view except ErrIllegalTransition, which indicates a caller defect
	// (operation invoked from a stage that does not allow it).
	ErrDeliveryFailed      = errors.New("passcode delivery failed")
	ErrCodeMismatch        = errors.New("passcode mismatch")
	ErrIllegalTransition   = errors.New("illegal state transition")
	ErrOracleUnavailable   = errors.New("classification oracle unavailable")
	ErrOracleMalformed     = errors.New("malformed oracle verdict")
	ErrAuditRejected       = errors.New("evidence audit rejected")
	ErrMissingPrecondition = errors.New("missing precondition")
)
