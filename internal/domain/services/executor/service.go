// Package executor drives one dispatched savings plan through purchase,
// transaction recording and rescheduling.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	domainerrors "github.com/satstack-service/satstack_service/internal/domain/errors"
	"github.com/satstack-service/satstack_service/internal/domain/repositories"
	"github.com/satstack-service/satstack_service/internal/domain/schedule"
	"github.com/satstack-service/satstack_service/pkg/metrics"
)

var tracer = otel.Tracer("plan-executor")

// ExchangeClient executes a bitcoin purchase against the trading venue.
// Implementations fold every failure into the result value; a Purchase
// call never reports transport or business failures as an error.
type ExchangeClient interface {
	Purchase(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, sourceOfFunds string, idempotencyKey uuid.UUID) *entities.PurchaseResult
}

// EventPublisher publishes pipeline events to the event bus
type EventPublisher interface {
	Publish(ctx context.Context, eventType entities.EventType, detail interface{}) error
}

// Config holds executor configuration
type Config struct {
	// MaxRetries bounds purchase attempts per execution; a task delivered
	// with this attempt count is terminated instead of executed
	MaxRetries int
}

// Service executes dispatched savings plan tasks
type Service struct {
	plans        repositories.PlanRepository
	transactions repositories.TransactionRepository
	exchange     ExchangeClient
	events       EventPublisher
	config       Config
	logger       *zap.Logger
}

// NewService creates a new executor service
func NewService(
	plans repositories.PlanRepository,
	transactions repositories.TransactionRepository,
	exchange ExchangeClient,
	events EventPublisher,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	return &Service{
		plans:        plans,
		transactions: transactions,
		exchange:     exchange,
		events:       events,
		config:       config,
		logger:       logger,
	}
}

// ExecuteTask processes one dispatched task. A nil return acknowledges the
// task; an error returns it to the transport for redelivery. Exchange-side
// failures are recorded (FAILED transaction, FAILED plan) before the task
// is failed; store failures propagate uncaught so the whole task retries
// without partial records.
func (s *Service) ExecuteTask(ctx context.Context, task *entities.ExecutionTask) error {
	ctx, span := tracer.Start(ctx, "executor.ExecuteTask",
		trace.WithAttributes(
			attribute.String("user_id", task.UserID.String()),
			attribute.String("plan_id", task.PlanID.String()),
			attribute.String("execution_id", task.ExecutionID.String()),
			attribute.Int("attempt_count", task.AttemptCount),
		))
	defer span.End()

	if task.AttemptCount >= s.config.MaxRetries {
		return s.terminateExhaustedTask(ctx, task)
	}

	plan, err := s.plans.Get(ctx, task.UserID, task.PlanID)
	if err != nil {
		// Includes ErrPlanNotFound: the transport redelivers and eventually
		// dead-letters the task.
		span.RecordError(err)
		return fmt.Errorf("load plan %s: %w", task.PlanID, err)
	}

	if err := s.plans.UpdateStatus(ctx, plan.UserID, plan.ID, entities.PlanStatusExecuting); err != nil {
		span.RecordError(err)
		return fmt.Errorf("mark plan %s executing: %w", plan.ID, err)
	}

	s.publish(ctx, entities.EventExecutionStarted, entities.ExecutionStartedEvent{
		UserID:       plan.UserID,
		PlanID:       plan.ID,
		ExecutionID:  task.ExecutionID,
		Amount:       plan.Amount,
		AttemptCount: task.AttemptCount,
	})

	result := s.exchange.Purchase(ctx, plan.UserID, plan.Amount, plan.SourceOfFunds, task.ExecutionID)

	now := time.Now()
	txn := s.buildTransaction(plan, task, result, now)
	if err := s.recordTransaction(ctx, txn); err != nil {
		span.RecordError(err)
		return err
	}

	if result.Success {
		return s.completeExecution(ctx, plan, task, txn, now)
	}
	return s.failExecution(ctx, plan, task, txn, result)
}

func (s *Service) completeExecution(ctx context.Context, plan *entities.SavingsPlan, task *entities.ExecutionTask, txn *entities.Transaction, now time.Time) error {
	next, err := schedule.NextExecution(plan.Frequency, now)
	if err != nil {
		// Unsupported frequency in a stored plan is a configuration error,
		// not a retryable condition.
		return fmt.Errorf("advance schedule for plan %s: %w", plan.ID, err)
	}

	if err := s.plans.UpdateSchedule(ctx, plan.UserID, plan.ID, entities.PlanStatusActive, next); err != nil {
		return fmt.Errorf("reschedule plan %s: %w", plan.ID, err)
	}

	s.publish(ctx, entities.EventExecutionCompleted, entities.ExecutionCompletedEvent{
		UserID:            plan.UserID,
		PlanID:            plan.ID,
		ExecutionID:       task.ExecutionID,
		TransactionID:     txn.ID,
		Amount:            plan.Amount,
		BitcoinAmount:     txn.BitcoinAmount,
		NextExecutionTime: next.Unix(),
	})

	metrics.Executions.WithLabelValues("completed").Inc()

	s.logger.Info("Savings plan executed",
		zap.String("user_id", plan.UserID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.String("bitcoin_amount", txn.BitcoinAmount.String()),
		zap.Time("next_execution_at", next))

	return nil
}

func (s *Service) failExecution(ctx context.Context, plan *entities.SavingsPlan, task *entities.ExecutionTask, txn *entities.Transaction, result *entities.PurchaseResult) error {
	if err := s.plans.UpdateStatus(ctx, plan.UserID, plan.ID, entities.PlanStatusFailed); err != nil {
		return fmt.Errorf("mark plan %s failed: %w", plan.ID, err)
	}

	s.publish(ctx, entities.EventExecutionFailed, entities.ExecutionFailedEvent{
		UserID:        plan.UserID,
		PlanID:        plan.ID,
		ExecutionID:   task.ExecutionID,
		TransactionID: &txn.ID,
		ErrorMessage:  result.ErrorMessage,
		AttemptCount:  task.AttemptCount,
	})

	metrics.Executions.WithLabelValues("failed").Inc()

	s.logger.Warn("Savings plan execution failed",
		zap.String("user_id", plan.UserID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.String("execution_id", task.ExecutionID.String()),
		zap.Int("attempt_count", task.AttemptCount),
		zap.String("error", result.ErrorMessage))

	// Fail the task so the transport redelivers it with a higher attempt
	// count, up to MaxRetries.
	return fmt.Errorf("%w: %s", domainerrors.ErrPurchaseFailed, result.ErrorMessage)
}

// terminateExhaustedTask stops the redelivery cycle for a task that has
// used up its attempts: the plan is forced to FAILED, a synthetic failed
// transaction is recorded without calling the exchange, and the task is
// acknowledged.
func (s *Service) terminateExhaustedTask(ctx context.Context, task *entities.ExecutionTask) error {
	plan, err := s.plans.Get(ctx, task.UserID, task.PlanID)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			s.logger.Warn("Plan missing during max-retries handling, treating as resolved",
				zap.String("user_id", task.UserID.String()),
				zap.String("plan_id", task.PlanID.String()))
			return nil
		}
		return fmt.Errorf("load plan %s: %w", task.PlanID, err)
	}

	if err := s.plans.UpdateStatus(ctx, plan.UserID, plan.ID, entities.PlanStatusFailed); err != nil {
		return fmt.Errorf("mark plan %s failed: %w", plan.ID, err)
	}

	errMsg := "maximum retries exceeded"
	now := time.Now()
	txn := &entities.Transaction{
		UserID:       plan.UserID,
		ID:           uuid.New(),
		PlanID:       plan.ID,
		ExecutionID:  task.ExecutionID,
		Amount:       plan.Amount,
		Status:       entities.TransactionStatusFailed,
		ErrorMessage: &errMsg,
		AttemptCount: task.AttemptCount,
		ExecutedAt:   now,
		CreatedAt:    now,
	}
	if err := s.recordTransaction(ctx, txn); err != nil {
		return err
	}

	s.publish(ctx, entities.EventExecutionFailed, entities.ExecutionFailedEvent{
		UserID:             plan.UserID,
		PlanID:             plan.ID,
		ExecutionID:        task.ExecutionID,
		TransactionID:      &txn.ID,
		ErrorMessage:       errMsg,
		AttemptCount:       task.AttemptCount,
		MaxRetriesExceeded: true,
	})

	metrics.Executions.WithLabelValues("retries_exhausted").Inc()

	s.logger.Error("Savings plan retries exhausted",
		zap.String("user_id", plan.UserID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.String("execution_id", task.ExecutionID.String()),
		zap.Int("attempt_count", task.AttemptCount))

	return nil
}

func (s *Service) buildTransaction(plan *entities.SavingsPlan, task *entities.ExecutionTask, result *entities.PurchaseResult, now time.Time) *entities.Transaction {
	// One row per attempt: each attempt mints a fresh transaction ID and
	// the guarded insert only dedupes redelivery of this same attempt.
	txn := &entities.Transaction{
		UserID:          plan.UserID,
		ID:              uuid.New(),
		PlanID:          plan.ID,
		ExecutionID:     task.ExecutionID,
		Amount:          plan.Amount,
		BitcoinAmount:   result.BitcoinAmount,
		ExchangeRate:    result.ExchangeRate,
		Fees:            result.Fees,
		ExchangeOrderID: result.ExchangeOrderID,
		AttemptCount:    task.AttemptCount,
		ExecutedAt:      now,
		CreatedAt:       now,
	}
	if result.Success {
		txn.Status = entities.TransactionStatusCompleted
	} else {
		txn.Status = entities.TransactionStatusFailed
		msg := result.ErrorMessage
		txn.ErrorMessage = &msg
	}
	return txn
}

// recordTransaction inserts the attempt record, tolerating a duplicate of
// the same transaction ID from an at-least-once redelivery window.
func (s *Service) recordTransaction(ctx context.Context, txn *entities.Transaction) error {
	if err := s.transactions.InsertIfAbsent(ctx, txn); err != nil {
		if domainerrors.IsAlreadyExists(err) {
			s.logger.Warn("Transaction already recorded, skipping insert",
				zap.String("transaction_id", txn.ID.String()))
			return nil
		}
		return fmt.Errorf("record transaction %s: %w", txn.ID, err)
	}
	return nil
}

// publish is fire-and-forget: a failed event publish never affects the
// primary state transition it announces.
func (s *Service) publish(ctx context.Context, eventType entities.EventType, detail interface{}) {
	if err := s.events.Publish(ctx, eventType, detail); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
