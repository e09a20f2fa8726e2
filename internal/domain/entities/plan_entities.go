package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanStatus represents the lifecycle state of a savings plan
type PlanStatus string

const (
	// PlanStatusActive is the steady state; the scanner only selects active plans
	PlanStatusActive PlanStatus = "ACTIVE"
	// PlanStatusPendingExecution is set by the scanner when a plan is handed to the dispatch queue
	PlanStatusPendingExecution PlanStatus = "PENDING_EXECUTION"
	// PlanStatusExecuting is set by the executor while the purchase is in flight
	PlanStatusExecuting PlanStatus = "EXECUTING"
	// PlanStatusFailed is terminal for the execution pipeline; reactivation is a user action
	PlanStatusFailed PlanStatus = "FAILED"
	// PlanStatusPaused and PlanStatusCancelled are driven externally and never
	// entered by the scanner or executor
	PlanStatusPaused    PlanStatus = "PAUSED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// Frequency represents how often a savings plan executes
type Frequency string

const (
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
)

// Valid reports whether f is a supported execution frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// SavingsPlan represents a user's recurring bitcoin purchase configuration.
// A plan is identified by (UserID, ID) and is only mutated by the scanner
// (status to PENDING_EXECUTION) and the executor (status and schedule advance).
type SavingsPlan struct {
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	ID              uuid.UUID       `json:"id" db:"id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Frequency       Frequency       `json:"frequency" db:"frequency"`
	SourceOfFunds   string          `json:"source_of_funds" db:"source_of_funds"`
	Status          PlanStatus      `json:"status" db:"status"`
	NextExecutionAt time.Time       `json:"next_execution_at" db:"next_execution_at"`
	StartDate       time.Time       `json:"start_date" db:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty" db:"end_date"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}
