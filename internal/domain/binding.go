package domain

// BindingStage is the social-binding sub-flow stage. Only the enumerated
// values are legal; operations invoked from any other stage fail with
// ErrIllegalTransition.
type BindingStage string

const (
	BindingIdle             BindingStage = "IDLE"
	BindingHandshakeIssued  BindingStage = "HANDSHAKE_ISSUED"
	BindingEvidenceReceived BindingStage = "EVIDENCE_RECEIVED"
	BindingAuditing         BindingStage = "AUDITING"
	BindingBound            BindingStage = "BOUND"
)

// SocialBinding is the wallet-to-handle proof record. Handle keeps the
// user-visible casing; the upper-cased form appears only inside the token.
type SocialBinding struct {
	Handle         string        `json:"handle" dynamodbav:"handle"`
	WalletAddress  string        `json:"wallet_address" dynamodbav:"wallet_address"`
	Token          string        `json:"token" dynamodbav:"token"`
	Stage          BindingStage  `json:"stage" dynamodbav:"stage"`
	EvidenceKey    string        `json:"evidence_key,omitempty" dynamodbav:"evidence_key"`
	EvidenceType   string        `json:"evidence_type,omitempty" dynamodbav:"evidence_type"`
	AuditsConsumed int           `json:"audits_consumed" dynamodbav:"audits_consumed"`
	Verdict        *AuditVerdict `json:"verdict,omitempty" dynamodbav:"verdict"`
}
