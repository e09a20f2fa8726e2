package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
)

// SQSConfig holds dispatch queue configuration
type SQSConfig struct {
	Region   string
	QueueURL string
}

// SQSDispatchQueue sends execution tasks to an SQS FIFO queue. The
// message group ID keeps per-user ordering and the deduplication ID
// collapses duplicate dispatches of the same execution.
type SQSDispatchQueue struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewSQSDispatchQueue creates a new SQS-backed dispatch queue
func NewSQSDispatchQueue(ctx context.Context, cfg SQSConfig, logger *zap.Logger) (*SQSDispatchQueue, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SQSDispatchQueue{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// Send enqueues one execution task
func (q *SQSDispatchQueue) Send(ctx context.Context, task *entities.ExecutionTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal execution task: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.queueURL),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String(task.UserID.String()),
		MessageDeduplicationId: aws.String(task.ExecutionID.String()),
	})
	if err != nil {
		return fmt.Errorf("failed to send execution task: %w", err)
	}

	q.logger.Debug("Execution task enqueued",
		zap.String("user_id", task.UserID.String()),
		zap.String("execution_id", task.ExecutionID.String()))

	return nil
}
