package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	domainerrors "github.com/satstack-service/satstack_service/internal/domain/errors"
)

// PlanRepository handles savings plan database operations
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create persists a new savings plan
func (r *PlanRepository) Create(ctx context.Context, plan *entities.SavingsPlan) error {
	query := `
		INSERT INTO savings_plans (
			user_id, id, amount, frequency, source_of_funds, status,
			next_execution_at, start_date, end_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		plan.UserID,
		plan.ID,
		plan.Amount,
		plan.Frequency,
		plan.SourceOfFunds,
		plan.Status,
		plan.NextExecutionAt,
		plan.StartDate,
		plan.EndDate,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create savings plan: %w", err)
	}

	return nil
}

// Get returns the plan for (userID, planID), or ErrPlanNotFound
func (r *PlanRepository) Get(ctx context.Context, userID, planID uuid.UUID) (*entities.SavingsPlan, error) {
	var plan entities.SavingsPlan
	query := `
		SELECT user_id, id, amount, frequency, source_of_funds, status,
		       next_execution_at, start_date, end_date, created_at, updated_at
		FROM savings_plans
		WHERE user_id = $1 AND id = $2
	`

	err := r.db.GetContext(ctx, &plan, query, userID, planID)
	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get savings plan: %w", err)
	}

	return &plan, nil
}

// GetDueForExecution returns up to limit plans in the given status whose
// next execution time is at or before the cutoff. The query is served by
// the (status, next_execution_at) index; result order is unspecified.
func (r *PlanRepository) GetDueForExecution(ctx context.Context, status entities.PlanStatus, before time.Time, limit int) ([]*entities.SavingsPlan, error) {
	query := `
		SELECT user_id, id, amount, frequency, source_of_funds, status,
		       next_execution_at, start_date, end_date, created_at, updated_at
		FROM savings_plans
		WHERE status = $1 AND next_execution_at <= $2
		LIMIT $3
	`

	var plans []*entities.SavingsPlan
	err := r.db.SelectContext(ctx, &plans, query, status, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due plans: %w", err)
	}

	return plans, nil
}

// UpdateStatusIf transitions the plan's status only if its current status
// equals expected. The WHERE clause is the compare-and-swap: zero rows
// affected means the plan vanished or another writer got there first.
func (r *PlanRepository) UpdateStatusIf(ctx context.Context, userID, planID uuid.UUID, expected, next entities.PlanStatus) error {
	query := `
		UPDATE savings_plans
		SET status = $1, updated_at = $2
		WHERE user_id = $3 AND id = $4 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, next, time.Now(), userID, planID, expected)
	if err != nil {
		return fmt.Errorf("failed to update plan status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check plan status update: %w", err)
	}
	if affected == 0 {
		return domainerrors.ErrPreconditionFailed
	}

	return nil
}

// UpdateStatus sets the plan's status unconditionally
func (r *PlanRepository) UpdateStatus(ctx context.Context, userID, planID uuid.UUID, status entities.PlanStatus) error {
	query := `
		UPDATE savings_plans
		SET status = $1, updated_at = $2
		WHERE user_id = $3 AND id = $4
	`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), userID, planID)
	if err != nil {
		return fmt.Errorf("failed to update plan status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check plan status update: %w", err)
	}
	if affected == 0 {
		return domainerrors.ErrPlanNotFound
	}

	return nil
}

// UpdateSchedule sets the plan's status and next execution time in one write
func (r *PlanRepository) UpdateSchedule(ctx context.Context, userID, planID uuid.UUID, status entities.PlanStatus, nextExecutionAt time.Time) error {
	query := `
		UPDATE savings_plans
		SET status = $1, next_execution_at = $2, updated_at = $3
		WHERE user_id = $4 AND id = $5
	`

	result, err := r.db.ExecContext(ctx, query, status, nextExecutionAt, time.Now(), userID, planID)
	if err != nil {
		return fmt.Errorf("failed to update plan schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check plan schedule update: %w", err)
	}
	if affected == 0 {
		return domainerrors.ErrPlanNotFound
	}

	return nil
}
