package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// RequireUserID returns the authenticated user or answers 401.
func RequireUserID(c *gin.Context) (string, bool) {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok && id != "" {
			return id, true
		}
	}
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Message: "User not authenticated",
	})
	return "", false
}

// RequestLanguage returns the ?lang= override or the Accept-Language header.
func RequestLanguage(c *gin.Context) string {
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return lang
	}
	return c.GetHeader("Accept-Language")
}
