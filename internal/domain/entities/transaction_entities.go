package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the outcome of one purchase attempt
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is the durable record of a single purchase attempt.
// The ID is minted fresh for every attempt, so redelivered tasks produce
// one row per attempt rather than overwriting a prior outcome. Rows are
// never mutated after insert.
type Transaction struct {
	UserID          uuid.UUID         `json:"user_id" db:"user_id"`
	ID              uuid.UUID         `json:"id" db:"id"`
	PlanID          uuid.UUID         `json:"plan_id" db:"plan_id"`
	ExecutionID     uuid.UUID         `json:"execution_id" db:"execution_id"`
	Amount          decimal.Decimal   `json:"amount" db:"amount"`
	BitcoinAmount   decimal.Decimal   `json:"bitcoin_amount" db:"bitcoin_amount"`
	ExchangeRate    decimal.Decimal   `json:"exchange_rate" db:"exchange_rate"`
	Fees            decimal.Decimal   `json:"fees" db:"fees"`
	Status          TransactionStatus `json:"status" db:"status"`
	ExchangeOrderID *string           `json:"exchange_order_id,omitempty" db:"exchange_order_id"`
	ErrorMessage    *string           `json:"error_message,omitempty" db:"error_message"`
	AttemptCount    int               `json:"attempt_count" db:"attempt_count"`
	ExecutedAt      time.Time         `json:"executed_at" db:"executed_at"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}
