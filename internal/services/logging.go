package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// ===== OPERATION LOGGING =====

// LogOperation records the outcome of one service call. Expected failures
// (validation, not found, conflicts) are logged below error level.
func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID, resourceID, resourceType string, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		switch {
		case IsValidation(err) || IsBusinessRule(err):
			level = slog.LevelWarn
			status = "validation_error"
		case IsUnauthorized(err):
			level = slog.LevelWarn
			status = "unauthorized"
		case IsNotFound(err):
			level = slog.LevelInfo
			status = "not_found"
		case IsConflict(err):
			level = slog.LevelWarn
			status = "conflict"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.String("resource_id", resourceID),
		slog.String("resource_type", resourceType),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErrs ValidationErrors
		var businessErr *BusinessRuleError
		var permErr *PermissionError
		switch {
		case errors.As(err, &validationErrs):
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErrs)))
		case errors.As(err, &businessErr):
			attrs = append(attrs, slog.String("business_rule", businessErr.Rule))
		case errors.As(err, &permErr):
			attrs = append(attrs, slog.String("permission_action", permErr.Action))
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

func (l *ServiceLogger) LogValidationError(ctx context.Context, operation, userID string, validationErrors ValidationErrors) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Int("error_count", len(validationErrors)),
	}

	for i, err := range validationErrors {
		if i >= 5 {
			break
		}
		attrs = append(attrs, slog.Group(fmt.Sprintf("error_%d", i+1),
			slog.String("field", err.Field),
			slog.String("message", err.Message),
			slog.Any("value", err.Value),
		))
	}

	l.logger.LogAttrs(ctx, slog.LevelWarn, "Validation failed", attrs...)
}

// Debug logs only when the service was configured with EnableDebug
func (l *ServiceLogger) Debug(ctx context.Context, msg string, args ...any) {
	if l.config.EnableDebug {
		l.logger.DebugContext(ctx, msg, args...)
	}
}

func (l *ServiceLogger) Info(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

func (l *ServiceLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

// ===== CONTEXTUAL LOGGING =====

// ContextualLogger wraps one operation with automatic result logging
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	userID    string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, userID string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		userID:    userID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(resourceID, resourceType string, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.userID, resourceID, resourceType, time.Since(cl.startTime), err)

	var validationErrs ValidationErrors
	if errors.As(err, &validationErrs) {
		cl.logger.LogValidationError(cl.ctx, cl.operation, cl.userID, validationErrs)
	}
}

// ===== ERROR FORMATTING HELPERS =====

func FormatError(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	result := map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}

	var validationErrs ValidationErrors
	var businessErr *BusinessRuleError
	var permErr *PermissionError

	switch {
	case errors.As(err, &validationErrs):
		result["type"] = "validation"
		result["count"] = len(validationErrs)

		fields := make([]map[string]interface{}, len(validationErrs))
		for i, e := range validationErrs {
			fields[i] = map[string]interface{}{
				"field":   e.Field,
				"message": e.Message,
				"value":   e.Value,
			}
		}
		result["errors"] = fields

	case errors.As(err, &businessErr):
		result["type"] = "business_rule"
		result["rule"] = businessErr.Rule
		result["context"] = businessErr.Context

	case errors.As(err, &permErr):
		result["type"] = "permission"
		result["resource"] = permErr.Resource
		result["action"] = permErr.Action
		result["reason"] = permErr.Reason

	case IsNotFound(err):
		result["type"] = "not_found"
	case IsUnauthorized(err):
		result["type"] = "unauthorized"
	case IsConflict(err):
		result["type"] = "conflict"
	case IsValidation(err):
		result["type"] = "validation"
	}

	return result
}
