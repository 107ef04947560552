// Package oracle wraps the external evidence classifier. The pipeline treats
// it as an opaque function from (image, expected handle, expected token) to a
// structured verdict; anything that does not decode as that exact shape is a
// retryable transient failure, never an acceptance.
package oracle

import (
	"context"

	"github.com/promark/verify-api/internal/domain"
)

// Classifier is the classification oracle consumed by the audit coordinator.
type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType, expectedHandle, expectedToken string) (*domain.AuditVerdict, error)
}
