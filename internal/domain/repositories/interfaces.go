// Package repositories defines the persistence contracts consumed by the
// domain services. Implementations live in internal/infrastructure/repositories.
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
)

// PlanRepository provides durable savings plan records.
//
// The store offers single-row conditional writes but no cross-row
// transactions; the conditional status update is the only concurrency
// gate preventing two scanner runs from double-scheduling a plan.
type PlanRepository interface {
	// Create persists a new plan
	Create(ctx context.Context, plan *entities.SavingsPlan) error

	// Get returns the plan for (userID, planID), or ErrPlanNotFound
	Get(ctx context.Context, userID, planID uuid.UUID) (*entities.SavingsPlan, error)

	// GetDueForExecution returns up to limit plans in the given status whose
	// next execution time is at or before the cutoff. Result order is
	// unspecified.
	GetDueForExecution(ctx context.Context, status entities.PlanStatus, before time.Time, limit int) ([]*entities.SavingsPlan, error)

	// UpdateStatusIf transitions the plan's status only if its current
	// status equals expected, returning ErrPreconditionFailed when the plan
	// is missing or the status changed concurrently.
	UpdateStatusIf(ctx context.Context, userID, planID uuid.UUID, expected, next entities.PlanStatus) error

	// UpdateStatus sets the plan's status unconditionally, returning
	// ErrPlanNotFound if the plan does not exist.
	UpdateStatus(ctx context.Context, userID, planID uuid.UUID, status entities.PlanStatus) error

	// UpdateSchedule sets the plan's status and next execution time in one
	// write, returning ErrPlanNotFound if the plan does not exist.
	UpdateSchedule(ctx context.Context, userID, planID uuid.UUID, status entities.PlanStatus, nextExecutionAt time.Time) error
}

// TransactionRepository provides durable purchase attempt records
type TransactionRepository interface {
	// InsertIfAbsent records a transaction unless a row with the same
	// (userID, id) already exists, in which case it returns ErrAlreadyExists
	// and leaves the existing row untouched.
	InsertIfAbsent(ctx context.Context, txn *entities.Transaction) error

	// GetByPlan returns the most recent transactions for a plan, newest first
	GetByPlan(ctx context.Context, userID, planID uuid.UUID, limit int) ([]*entities.Transaction, error)

	// GetByUser returns the most recent transactions for a user, newest first
	GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error)
}
