package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/randomized-assessment/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

func (h *BaseHandler) requestFields(c *gin.Context, additionalFields []interface{}) []interface{} {
	fields := []interface{}{
		"request_id", c.GetHeader("X-Request-ID"),
		"user_id", h.extractUserID(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	return append(fields, additionalFields...)
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := h.requestFields(c, additionalFields)
	fields = append(fields, "remote_addr", c.ClientIP())
	utils.GetLoggerFromContext(c, h.logger).Info(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	utils.GetLoggerFromContext(c, h.logger).LogError(err, message, h.requestFields(c, additionalFields)...)
}

// LogDebug logs debug information with context
func (h *BaseHandler) LogDebug(c *gin.Context, message string, additionalFields ...interface{}) {
	utils.GetLoggerFromContext(c, h.logger).Debug(message, h.requestFields(c, additionalFields)...)
}

// LogWarn logs warning messages with context
func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	utils.GetLoggerFromContext(c, h.logger).Warn(message, h.requestFields(c, additionalFields)...)
}

func (h *BaseHandler) extractUserID(c *gin.Context) interface{} {
	if userID, exists := c.Get("user_id"); exists {
		return userID
	}
	return nil
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Message: message,
	}
	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	if err != nil {
		h.LogError(c, err, message, "status_code", statusCode)
	} else {
		h.LogWarn(c, message, "status_code", statusCode)
	}

	c.JSON(statusCode, errorResp)
}

// RespondWithSuccess sends a consistent success response
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	h.LogDebug(c, message, "status_code", statusCode)
	c.JSON(statusCode, SuccessResponse{
		Message: message,
		Data:    data,
	})
}
