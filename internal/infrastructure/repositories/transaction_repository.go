package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/satstack-service/satstack_service/internal/domain/entities"
	domainerrors "github.com/satstack-service/satstack_service/internal/domain/errors"
)

// TransactionRepository handles purchase transaction database operations
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// InsertIfAbsent records a transaction unless a row with the same
// (user_id, id) already exists. ON CONFLICT DO NOTHING keeps the insert
// idempotent across at-least-once redeliveries; zero rows affected means
// the attempt was already recorded.
func (r *TransactionRepository) InsertIfAbsent(ctx context.Context, txn *entities.Transaction) error {
	query := `
		INSERT INTO transactions (
			user_id, id, plan_id, execution_id, amount, bitcoin_amount,
			exchange_rate, fees, status, exchange_order_id, error_message,
			attempt_count, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id, id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		txn.UserID,
		txn.ID,
		txn.PlanID,
		txn.ExecutionID,
		txn.Amount,
		txn.BitcoinAmount,
		txn.ExchangeRate,
		txn.Fees,
		txn.Status,
		txn.ExchangeOrderID,
		txn.ErrorMessage,
		txn.AttemptCount,
		txn.ExecutedAt,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transaction insert: %w", err)
	}
	if affected == 0 {
		return domainerrors.ErrAlreadyExists
	}

	return nil
}

// GetByPlan returns the most recent transactions for a plan, newest first
func (r *TransactionRepository) GetByPlan(ctx context.Context, userID, planID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	query := `
		SELECT user_id, id, plan_id, execution_id, amount, bitcoin_amount,
		       exchange_rate, fees, status, exchange_order_id, error_message,
		       attempt_count, executed_at, created_at
		FROM transactions
		WHERE user_id = $1 AND plan_id = $2
		ORDER BY executed_at DESC
		LIMIT $3
	`

	var txns []*entities.Transaction
	err := r.db.SelectContext(ctx, &txns, query, userID, planID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan transactions: %w", err)
	}

	return txns, nil
}

// GetByUser returns the most recent transactions for a user, newest first
func (r *TransactionRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Transaction, error) {
	query := `
		SELECT user_id, id, plan_id, execution_id, amount, bitcoin_amount,
		       exchange_rate, fees, status, exchange_order_id, error_message,
		       attempt_count, executed_at, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`

	var txns []*entities.Transaction
	err := r.db.SelectContext(ctx, &txns, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user transactions: %w", err)
	}

	return txns, nil
}
