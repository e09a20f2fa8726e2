package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutionTask is the dispatch message handed from the scanner to the
// executor. It is never persisted; its outcome is persisted as a Transaction.
// ExecutionID deduplicates redeliveries at the transport and doubles as the
// exchange idempotency key. AttemptCount is derived from the transport's
// receive count, so a redelivered task carries a higher value than the one
// the scanner serialized.
type ExecutionTask struct {
	UserID        uuid.UUID `json:"user_id"`
	PlanID        uuid.UUID `json:"plan_id"`
	ExecutionID   uuid.UUID `json:"execution_id"`
	ExecutionTime int64     `json:"execution_time"`
	AttemptCount  int       `json:"attempt_count"`
}

// PurchaseResult is the structured outcome of one exchange purchase call.
// The exchange client folds every failure mode into this value instead of
// returning an error, so the executor always records a transaction before
// deciding whether to fail the task.
type PurchaseResult struct {
	Success         bool                  `json:"success"`
	ExchangeOrderID *string               `json:"exchange_order_id,omitempty"`
	BitcoinAmount   decimal.Decimal       `json:"bitcoin_amount"`
	ExchangeRate    decimal.Decimal       `json:"exchange_rate"`
	Fees            decimal.Decimal       `json:"fees"`
	ErrorMessage    string                `json:"error_message,omitempty"`
	ErrorDetails    *PurchaseErrorDetails `json:"error_details,omitempty"`
}

// PurchaseErrorDetails carries diagnostic context for a failed purchase.
// StatusCode, StatusText and Body are only set when the failure surfaced
// from the HTTP transport.
type PurchaseErrorDetails struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	StatusCode int       `json:"status_code,omitempty"`
	StatusText string    `json:"status_text,omitempty"`
	Body       string    `json:"body,omitempty"`
}
