// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/botgrid/botgrid/pkg/models"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrRuleNameRequired     = errors.New("rule name is required")
	ErrRuleKeywordsRequired = errors.New("rule must have at least one keyword")
	ErrFlowNameRequired     = errors.New("flow name is required")
	ErrCampaignCronInvalid  = errors.New("campaign cron expression is invalid")

	// Invalid State Errors (409 Conflict).
	ErrAgentReplyWithoutHandoff = errors.New("agent reply requires handoff to be enabled")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrRuleNameRequired) ||
		errors.Is(err, ErrRuleKeywordsRequired) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrCampaignCronInvalid) ||
		errors.Is(err, models.ErrDanglingNodeReference) ||
		errors.Is(err, models.ErrUnknownActionKind) ||
		errors.Is(err, models.ErrEmptyActionDescriptor)
}

// IsInvalidState checks if an error is a state conflict that should return HTTP 409.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrAgentReplyWithoutHandoff)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
