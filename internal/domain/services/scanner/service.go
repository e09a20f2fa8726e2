// Package scanner selects due savings plans and hands each one to the
// dispatch queue exactly once per cycle.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	domainerrors "github.com/satstack-service/satstack_service/internal/domain/errors"
	"github.com/satstack-service/satstack_service/internal/domain/repositories"
	"github.com/satstack-service/satstack_service/pkg/metrics"
)

var tracer = otel.Tracer("plan-scanner")

// DispatchQueue sends execution tasks to the transport. The transport
// deduplicates by execution ID and preserves per-user ordering.
type DispatchQueue interface {
	Send(ctx context.Context, task *entities.ExecutionTask) error
}

// EventPublisher publishes pipeline events to the event bus
type EventPublisher interface {
	Publish(ctx context.Context, eventType entities.EventType, detail interface{}) error
}

// Config holds scanner configuration
type Config struct {
	// BatchSize caps how many due plans one scan picks up
	BatchSize int
}

// Service scans for due plans and dispatches them for execution
type Service struct {
	plans  repositories.PlanRepository
	queue  DispatchQueue
	events EventPublisher
	config Config
	logger *zap.Logger
}

// NewService creates a new scanner service
func NewService(
	plans repositories.PlanRepository,
	queue DispatchQueue,
	events EventPublisher,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.BatchSize <= 0 {
		config.BatchSize = 25
	}
	return &Service{
		plans:  plans,
		queue:  queue,
		events: events,
		config: config,
		logger: logger,
	}
}

// ScanDuePlans queries for ACTIVE plans whose next execution time has
// passed and dispatches each one independently and concurrently. A plan
// that loses the status race is skipped silently; a plan that fails after
// its status transition is reverted best-effort and counted as a run
// failure. The returned error aggregates all per-plan failures so the
// invoking scheduler can apply its own retry policy.
func (s *Service) ScanDuePlans(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scanner.ScanDuePlans")
	defer span.End()

	now := time.Now()

	due, err := s.plans.GetDueForExecution(ctx, entities.PlanStatusActive, now, s.config.BatchSize)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("query due plans: %w", err)
	}

	span.SetAttributes(attribute.Int("due_plans", len(due)))
	metrics.PlansScanned.Add(float64(len(due)))

	if len(due) == 0 {
		return nil
	}

	s.logger.Info("Dispatching due savings plans", zap.Int("count", len(due)))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)

	for _, plan := range due {
		wg.Add(1)
		go func(plan *entities.SavingsPlan) {
			defer wg.Done()
			if err := s.dispatchPlan(ctx, plan, now); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}(plan)
	}
	wg.Wait()

	if err := result.ErrorOrNil(); err != nil {
		metrics.ScanFailures.Inc()
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *Service) dispatchPlan(ctx context.Context, plan *entities.SavingsPlan, now time.Time) error {
	executionID := uuid.New()

	ctx, span := tracer.Start(ctx, "scanner.dispatchPlan",
		trace.WithAttributes(
			attribute.String("user_id", plan.UserID.String()),
			attribute.String("plan_id", plan.ID.String()),
			attribute.String("execution_id", executionID.String()),
		))
	defer span.End()

	err := s.plans.UpdateStatusIf(ctx, plan.UserID, plan.ID,
		entities.PlanStatusActive, entities.PlanStatusPendingExecution)
	if err != nil {
		if domainerrors.IsPreconditionFailed(err) {
			// Another scanner run or an external mutation got here first.
			s.logger.Debug("Plan no longer eligible, skipping",
				zap.String("user_id", plan.UserID.String()),
				zap.String("plan_id", plan.ID.String()))
			metrics.DispatchSkips.Inc()
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("mark plan %s pending: %w", plan.ID, err)
	}

	task := &entities.ExecutionTask{
		UserID:        plan.UserID,
		PlanID:        plan.ID,
		ExecutionID:   executionID,
		ExecutionTime: now.Unix(),
		AttemptCount:  0,
	}

	if err := s.queue.Send(ctx, task); err != nil {
		span.RecordError(err)
		s.revertToActive(ctx, plan.UserID, plan.ID)
		return fmt.Errorf("enqueue task for plan %s: %w", plan.ID, err)
	}

	event := entities.ExecutionScheduledEvent{
		UserID:        plan.UserID,
		PlanID:        plan.ID,
		ExecutionID:   executionID,
		Amount:        plan.Amount,
		Frequency:     plan.Frequency,
		ScheduledTime: now.Unix(),
	}
	if err := s.events.Publish(ctx, entities.EventExecutionScheduled, event); err != nil {
		span.RecordError(err)
		s.revertToActive(ctx, plan.UserID, plan.ID)
		return fmt.Errorf("publish scheduled event for plan %s: %w", plan.ID, err)
	}

	metrics.TasksDispatched.Inc()

	s.logger.Info("Execution task dispatched",
		zap.String("user_id", plan.UserID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.String("execution_id", executionID.String()))

	return nil
}

// revertToActive is the compensating write for a plan whose dispatch
// failed after the status transition. It is best-effort: a plan left in
// PENDING_EXECUTION needs external reconciliation.
func (s *Service) revertToActive(ctx context.Context, userID, planID uuid.UUID) {
	err := s.plans.UpdateStatusIf(ctx, userID, planID,
		entities.PlanStatusPendingExecution, entities.PlanStatusActive)
	if err != nil {
		s.logger.Error("Failed to revert plan to ACTIVE after dispatch failure",
			zap.String("user_id", userID.String()),
			zap.String("plan_id", planID.String()),
			zap.Error(err))
	}
}
