package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/promark/verify-api/internal/config"
	"github.com/promark/verify-api/internal/domain"
	"google.golang.org/genai"
)

const promptTemplate = `You are verifying a social-media post screenshot.
Expected handle: %s
Expected verification token: %s

Determine:
1. Does the visible author handle match the expected handle (ignoring a leading @ and letter case)?
2. Does the post text contain the expected verification token exactly?
3. Is this a real post screenshot rather than an edited or fabricated image?

Respond with ONLY a JSON object, no prose and no markdown fences:
{"handleMatches": bool, "tokenMatches": bool, "isRealPost": bool, "extractedHandle": string, "reasoning": string}`

// GeminiClassifier classifies evidence screenshots with the Gemini API.
type GeminiClassifier struct {
	apiKey string
	model  string
}

func NewGeminiClassifier(cfg *config.Config) (*GeminiClassifier, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not configured")
	}
	return &GeminiClassifier{apiKey: cfg.GeminiAPIKey, model: cfg.GeminiModel}, nil
}

// Classify sends the evidence image and expected values to the model and
// decodes its reply as a strict verdict. Transport failures map to
// ErrOracleUnavailable, undecodable replies to ErrOracleMalformed.
func (c *GeminiClassifier) Classify(ctx context.Context, image []byte, mimeType, expectedHandle, expectedToken string) (*domain.AuditVerdict, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create oracle client: %w", domain.ErrOracleUnavailable)
	}

	prompt := fmt.Sprintf(promptTemplate, expectedHandle, expectedToken)
	resp, err := client.Models.GenerateContent(
		ctx,
		c.model,
		[]*genai.Content{{Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
			{Text: prompt},
		}}},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("oracle call failed: %v: %w", err, domain.ErrOracleUnavailable)
	}

	return ParseVerdict(resp.Text())
}

// wireVerdict is the schema contract at the oracle boundary. Booleans are
// pointers so an absent field is distinguishable from false.
type wireVerdict struct {
	HandleMatches   *bool  `json:"handleMatches"`
	TokenMatches    *bool  `json:"tokenMatches"`
	IsRealPost      *bool  `json:"isRealPost"`
	ExtractedHandle string `json:"extractedHandle"`
	Reasoning       string `json:"reasoning"`
}

// ParseVerdict decodes the oracle's reply into an AuditVerdict. The reply must
// contain exactly one JSON object with all three boolean fields present;
// markdown fences around the object are tolerated, anything else is malformed.
func ParseVerdict(raw string) (*domain.AuditVerdict, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in oracle reply: %w", domain.ErrOracleMalformed)
	}

	var w wireVerdict
	if err := json.Unmarshal([]byte(s[start:end+1]), &w); err != nil {
		return nil, fmt.Errorf("decode oracle reply: %v: %w", err, domain.ErrOracleMalformed)
	}
	if w.HandleMatches == nil || w.TokenMatches == nil || w.IsRealPost == nil {
		return nil, fmt.Errorf("oracle reply missing verdict fields: %w", domain.ErrOracleMalformed)
	}

	return &domain.AuditVerdict{
		HandleMatches:   *w.HandleMatches,
		TokenMatches:    *w.TokenMatches,
		IsAuthentic:     *w.IsRealPost,
		ExtractedHandle: w.ExtractedHandle,
		Reasoning:       w.Reasoning,
	}, nil
}
