package services

import (
	"errors"
	"fmt"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")

	// Scope errors
	ErrInstitutionRequired = errors.New("institution scope is required")
	ErrStudentNotFound     = errors.New("student not found")
	ErrClassNotFound       = errors.New("class not found")

	// Store errors. These never reach a dashboard response; sub-computations
	// degrade to their zero value instead (see degraded loads in each
	// service). They exist for drill-down endpoints that do report failures.
	ErrStoreUnavailable = errors.New("telemetry store unavailable")
)

// ===== CUSTOM ERROR TYPES =====

// ValidationError reports one invalid request field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", ve.Field, ve.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrClassNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreUnavailable checks if error represents a failing or timed-out store
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
