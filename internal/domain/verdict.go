package domain

// AuditVerdict is the reduced output of the evidence audit. Reasoning is the
// oracle's free text and is surfaced to the caller only on rejection.
type AuditVerdict struct {
	HandleMatches   bool   `json:"handle_matches" dynamodbav:"handle_matches"`
	TokenMatches    bool   `json:"token_matches" dynamodbav:"token_matches"`
	IsAuthentic     bool   `json:"is_authentic" dynamodbav:"is_authentic"`
	ExtractedHandle string `json:"extracted_handle" dynamodbav:"extracted_handle"`
	Reasoning       string `json:"reasoning,omitempty" dynamodbav:"reasoning"`
}

// Accepted reports whether the verdict as a whole accepts the submission.
// Any single false rejects it.
func (v AuditVerdict) Accepted() bool {
	return v.HandleMatches && v.TokenMatches && v.IsAuthentic
}
