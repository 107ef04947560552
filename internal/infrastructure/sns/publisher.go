package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/promark/verify-api/internal/config"
	"github.com/promark/verify-api/internal/domain"
)

// Event types published on verification lifecycle transitions. Downstream
// marketplace services subscribe to grant or revoke write access.
const (
	EventSocialVerified = "social_verified"
	EventBindingRevoked = "binding_revoked"
)

// EventPublisher publishes verification lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, sess *domain.VerificationSession) error
}

type publisher struct {
	client   *sns.Client
	topicARN string
}

func NewPublisher(cfg *config.Config) (EventPublisher, error) {
	if cfg.SNSTopicARN == "" {
		return nil, fmt.Errorf("SNS_TOPIC_ARN not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &publisher{client: sns.NewFromConfig(awsCfg), topicARN: cfg.SNSTopicARN}, nil
}

func (p *publisher) Publish(ctx context.Context, eventType string, sess *domain.VerificationSession) error {
	payload := map[string]string{
		"event":         eventType,
		"session_id":    sess.SessionID,
		"subject_email": sess.SubjectEmail,
		"path":          string(sess.Path),
	}
	if sess.Binding != nil {
		payload["handle"] = sess.Binding.Handle
		payload["wallet_address"] = sess.Binding.WalletAddress
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
	})
	return err
}
