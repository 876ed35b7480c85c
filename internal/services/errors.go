package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/randomized-assessment/internal/errors"
	"github.com/SAP-F-2025/randomized-assessment/internal/mapping"
	"github.com/SAP-F-2025/randomized-assessment/internal/session"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Question set errors
	ErrQuestionSetNotFound = errors.New("question set not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrImportFailed        = errors.New("question set import failed")

	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionAccessDenied = errors.New("access denied to session")
	ErrSessionSubmitted    = errors.New("session already submitted")
	ErrSessionClosed       = errors.New("session is no longer active")
	ErrSessionExpired      = errors.New("session has expired")
	ErrOptionOutOfRange    = errors.New("option position out of range")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func (pe *PermissionError) Unwrap() error {
	return ErrSessionAccessDenied
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrQuestionSetNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrSessionAccessDenied)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrOptionOutOfRange) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSessionSubmitted) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrSessionExpired)
}

// IsConfiguration reports a question set that cannot form a session
func IsConfiguration(err error) bool {
	return errors.Is(err, mapping.ErrLengthMismatch) ||
		errors.Is(err, mapping.ErrNotBijective) ||
		errors.Is(err, mapping.ErrMissingQuestion) ||
		errors.Is(err, mapping.ErrDuplicateQuestion) ||
		errors.Is(err, session.ErrEmptyQuestionSet)
}
