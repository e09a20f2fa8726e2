// Package plans provides the plan lifecycle operations that exist outside
// the execution pipeline: creating a plan with its first schedule, and
// reading the transaction history the pipeline produces.
package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	"github.com/satstack-service/satstack_service/internal/domain/repositories"
	"github.com/satstack-service/satstack_service/internal/domain/schedule"
)

// ErrInvalidPlan indicates a plan request that fails validation
var ErrInvalidPlan = errors.New("invalid savings plan")

const defaultHistoryLimit = 50

// CreatePlanRequest carries the caller-supplied plan attributes
type CreatePlanRequest struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	Frequency     entities.Frequency
	SourceOfFunds string
	StartDate     time.Time
	EndDate       *time.Time
}

// Service manages savings plan lifecycle and history reads
type Service struct {
	plans        repositories.PlanRepository
	transactions repositories.TransactionRepository
	logger       *zap.Logger
}

// NewService creates a new plans service
func NewService(plans repositories.PlanRepository, transactions repositories.TransactionRepository, logger *zap.Logger) *Service {
	return &Service{
		plans:        plans,
		transactions: transactions,
		logger:       logger,
	}
}

// Create validates the request and persists a new ACTIVE plan. The first
// execution time is one full interval after the start date, so a plan
// created today does not execute today.
func (s *Service) Create(ctx context.Context, req CreatePlanRequest) (*entities.SavingsPlan, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	first, err := schedule.NextExecution(req.Frequency, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("compute first execution: %w", err)
	}

	now := time.Now()
	plan := &entities.SavingsPlan{
		UserID:          req.UserID,
		ID:              uuid.New(),
		Amount:          req.Amount,
		Frequency:       req.Frequency,
		SourceOfFunds:   req.SourceOfFunds,
		Status:          entities.PlanStatusActive,
		NextExecutionAt: first,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}

	s.logger.Info("Savings plan created",
		zap.String("user_id", plan.UserID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.String("frequency", string(plan.Frequency)),
		zap.Time("next_execution_at", plan.NextExecutionAt))

	return plan, nil
}

// PlanHistory returns a plan's most recent transactions, newest first
func (s *Service) PlanHistory(ctx context.Context, userID, planID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.transactions.GetByPlan(ctx, userID, planID, limit)
}

// UserHistory returns a user's most recent transactions across all plans,
// newest first
func (s *Service) UserHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.transactions.GetByUser(ctx, userID, limit)
}

func validate(req CreatePlanRequest) error {
	if req.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", ErrInvalidPlan)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPlan)
	}
	if !req.Frequency.Valid() {
		return fmt.Errorf("%w: frequency %q is not supported", ErrInvalidPlan, req.Frequency)
	}
	if req.SourceOfFunds == "" {
		return fmt.Errorf("%w: source of funds is required", ErrInvalidPlan)
	}
	if req.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidPlan)
	}
	if req.EndDate != nil && !req.EndDate.After(req.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidPlan)
	}
	return nil
}
