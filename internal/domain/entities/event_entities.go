package entities

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType identifies a pipeline event published to the event bus
type EventType string

const (
	EventExecutionScheduled EventType = "EXECUTION_SCHEDULED"
	EventExecutionStarted   EventType = "EXECUTION_STARTED"
	EventExecutionCompleted EventType = "EXECUTION_COMPLETED"
	EventExecutionFailed    EventType = "EXECUTION_FAILED"
)

// ExecutionScheduledEvent is published by the scanner after a plan has been
// transitioned to PENDING_EXECUTION and its task enqueued
type ExecutionScheduledEvent struct {
	UserID        uuid.UUID       `json:"user_id"`
	PlanID        uuid.UUID       `json:"plan_id"`
	ExecutionID   uuid.UUID       `json:"execution_id"`
	Amount        decimal.Decimal `json:"amount"`
	Frequency     Frequency       `json:"frequency"`
	ScheduledTime int64           `json:"scheduled_time"`
}

// ExecutionStartedEvent is published by the executor before the purchase call
type ExecutionStartedEvent struct {
	UserID       uuid.UUID       `json:"user_id"`
	PlanID       uuid.UUID       `json:"plan_id"`
	ExecutionID  uuid.UUID       `json:"execution_id"`
	Amount       decimal.Decimal `json:"amount"`
	AttemptCount int             `json:"attempt_count"`
}

// ExecutionCompletedEvent is published after a successful purchase and reschedule
type ExecutionCompletedEvent struct {
	UserID            uuid.UUID       `json:"user_id"`
	PlanID            uuid.UUID       `json:"plan_id"`
	ExecutionID       uuid.UUID       `json:"execution_id"`
	TransactionID     uuid.UUID       `json:"transaction_id"`
	Amount            decimal.Decimal `json:"amount"`
	BitcoinAmount     decimal.Decimal `json:"bitcoin_amount"`
	NextExecutionTime int64           `json:"next_execution_time"`
}

// ExecutionFailedEvent is published when a purchase fails or retries are
// exhausted. TransactionID is nil when no transaction row was recorded.
type ExecutionFailedEvent struct {
	UserID             uuid.UUID  `json:"user_id"`
	PlanID             uuid.UUID  `json:"plan_id"`
	ExecutionID        uuid.UUID  `json:"execution_id"`
	TransactionID      *uuid.UUID `json:"transaction_id,omitempty"`
	ErrorMessage       string     `json:"error_message"`
	AttemptCount       int        `json:"attempt_count"`
	MaxRetriesExceeded bool       `json:"max_retries_exceeded,omitempty"`
}
