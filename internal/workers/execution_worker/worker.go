// Package execution_worker consumes execution tasks from the dispatch queue.
package execution_worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	"github.com/satstack-service/satstack_service/internal/domain/services/executor"
)

// Config holds worker configuration
type Config struct {
	Region            string
	QueueURL          string
	BatchSize         int
	VisibilityTimeout int
}

// Worker long-polls the dispatch queue and drives the executor. Tasks in
// one batch are processed sequentially in delivery order; a task the
// executor fails is left in flight so the queue redelivers it after the
// visibility timeout and dead-letters it past the redrive limit.
type Worker struct {
	sqsClient *sqs.Client
	config    Config
	executor  *executor.Service
	logger    *zap.Logger
	stopCh    chan struct{}
}

// NewWorker creates a new execution worker
func NewWorker(ctx context.Context, cfg Config, executorService *executor.Service, logger *zap.Logger) (*Worker, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.BatchSize <= 0 || cfg.BatchSize > 10 {
		cfg.BatchSize = 10
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 60
	}

	return &Worker{
		sqsClient: sqs.NewFromConfig(awsCfg),
		config:    cfg,
		executor:  executorService,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins processing tasks from the queue
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting execution worker", zap.String("queue", w.config.QueueURL))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Execution worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("Execution worker stopped")
			return
		default:
			w.pollAndProcess(ctx)
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) pollAndProcess(ctx context.Context) {
	result, err := w.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.config.QueueURL),
		MaxNumberOfMessages: int32(w.config.BatchSize),
		WaitTimeSeconds:     20,
		VisibilityTimeout:   int32(w.config.VisibilityTimeout),
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		w.logger.Error("Failed to receive messages", zap.Error(err))
		time.Sleep(5 * time.Second)
		return
	}

	// Sequential processing keeps per-user ordering from the FIFO queue
	// meaningful within the batch.
	for _, msg := range result.Messages {
		if err := w.processMessage(ctx, msg); err != nil {
			w.logger.Error("Task failed, leaving for redelivery", zap.Error(err))
			continue
		}

		_, err := w.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(w.config.QueueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		if err != nil {
			// The task succeeded but the ack failed: the redelivered copy
			// is absorbed by the idempotency guards downstream.
			w.logger.Warn("Failed to delete processed task", zap.Error(err))
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, msg sqstypes.Message) error {
	if msg.Body == nil {
		return fmt.Errorf("empty message body")
	}

	var task entities.ExecutionTask
	if err := json.Unmarshal([]byte(*msg.Body), &task); err != nil {
		return fmt.Errorf("failed to unmarshal execution task: %w", err)
	}

	// The transport's receive count is authoritative for retry bounding:
	// first delivery is count 1, attempt 0.
	if raw, ok := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if receiveCount, err := strconv.Atoi(raw); err == nil && receiveCount > 0 {
			task.AttemptCount = receiveCount - 1
		}
	}

	w.logger.Debug("Processing execution task",
		zap.String("user_id", task.UserID.String()),
		zap.String("plan_id", task.PlanID.String()),
		zap.String("execution_id", task.ExecutionID.String()),
		zap.Int("attempt_count", task.AttemptCount))

	return w.executor.ExecuteTask(ctx, &task)
}
