// Package errors provides the error taxonomy for the execution pipeline.
// Collaborator implementations map their backend failures onto these
// sentinels so the scanner and executor can branch on semantics rather
// than on driver-specific errors.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanNotFound indicates the plan does not exist at the store
	ErrPlanNotFound = errors.New("savings plan not found")

	// ErrPreconditionFailed indicates a conditional status update lost the
	// race: the plan vanished or its status changed concurrently
	ErrPreconditionFailed = errors.New("plan status precondition failed")

	// ErrAlreadyExists indicates an idempotent insert found an existing row
	ErrAlreadyExists = errors.New("transaction already recorded")

	// ErrPurchaseFailed marks a task whose purchase was declined; the
	// executor returns it to trigger transport redelivery
	ErrPurchaseFailed = errors.New("purchase failed")

	// ErrUnsupportedFrequency is raised at the point of use for a frequency
	// outside the supported set
	ErrUnsupportedFrequency = errors.New("unsupported frequency")
)

// IsNotFound reports whether err wraps ErrPlanNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound)
}

// IsPreconditionFailed reports whether err wraps ErrPreconditionFailed
func IsPreconditionFailed(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// IsAlreadyExists reports whether err wraps ErrAlreadyExists
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// ConfigurationError wraps a fatal misconfiguration detected at startup or
// at the point of use. It is never retried.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// NewConfigurationError creates a configuration error for a named setting
func NewConfigurationError(setting, reason string) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Reason: reason}
}
