package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
)

// SNSConfig holds event bus configuration
type SNSConfig struct {
	Region   string
	TopicARN string
	Stage    string
}

// SNSEventPublisher publishes pipeline events to an SNS topic. Delivery
// is fire-and-forget; subscribers filter on the event_type attribute.
type SNSEventPublisher struct {
	client   *sns.Client
	topicARN string
	stage    string
	logger   *zap.Logger
}

// NewSNSEventPublisher creates a new SNS-backed event publisher
func NewSNSEventPublisher(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSEventPublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SNSEventPublisher{
		client:   sns.NewFromConfig(awsCfg),
		topicARN: cfg.TopicARN,
		stage:    cfg.Stage,
		logger:   logger,
	}, nil
}

// eventEnvelope wraps every published detail payload with the event type,
// publish timestamp and deployment stage.
type eventEnvelope struct {
	EventType entities.EventType `json:"event_type"`
	Timestamp time.Time          `json:"timestamp"`
	Stage     string             `json:"stage"`
	Detail    interface{}        `json:"detail"`
}

// Publish sends one event to the topic
func (p *SNSEventPublisher) Publish(ctx context.Context, eventType entities.EventType, detail interface{}) error {
	envelope := eventEnvelope{
		EventType: eventType,
		Timestamp: time.Now(),
		Stage:     p.stage,
		Detail:    detail,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(eventType)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SNS publish failed: %w", err)
	}

	p.logger.Debug("Event published", zap.String("event_type", string(eventType)))

	return nil
}
