package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/randomized-assessment/internal/services"
)

// handleServiceError maps service errors to HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: services.ValidationErrors{*validationError},
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Code:    businessRuleError.Rule,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	if services.IsConfiguration(err) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Question set cannot form a session",
			Code:    "invalid_question_set",
			Details: err.Error(),
		})
		return
	}

	switch {
	// Session errors
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Session not found"})
	case errors.Is(err, services.ErrSessionSubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Session already submitted", Code: "session_submitted"})
	case errors.Is(err, services.ErrSessionExpired):
		c.JSON(http.StatusGone, ErrorResponse{Message: "Session has expired", Code: "session_expired"})
	case errors.Is(err, services.ErrSessionClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Session is no longer active", Code: "session_closed"})
	case errors.Is(err, services.ErrOptionOutOfRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Option position out of range", Details: err.Error()})
	// Question set errors
	case errors.Is(err, services.ErrQuestionSetNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Question set not found"})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Question not found"})
	// Generic errors
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthorized access"})
	case errors.Is(err, services.ErrSessionAccessDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Resource conflict"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Resource not found"})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
