package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/randomized-assessment/internal/services"
	"github.com/SAP-F-2025/randomized-assessment/internal/utils"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
	}
}

// StartSession starts or resumes a session of an assessment
// @Summary Start session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.StartSessionRequest true "Assessment and mode"
// @Success 201 {object} services.SessionResponse
// @Success 200 {object} services.SessionResponse "Resumed"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting session", "assessment_id", req.AssessmentID, "mode", req.Mode)

	session, err := h.sessionService.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if session.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, session)
}

// GetSession returns the displayed questions and current answers
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ToggleAnswer selects or clears one displayed option
// @Summary Toggle answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param answer body services.ToggleAnswerRequest true "Display position to toggle"
// @Success 200 {object} services.AnswersResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers [post]
func (h *SessionHandler) ToggleAnswer(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.ToggleAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	answers, err := h.sessionService.ToggleAnswer(c.Request.Context(), id, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, answers)
}

// GetAnswers returns the canonical answers of the session
// @Router /sessions/{id}/answers [get]
func (h *SessionHandler) GetAnswers(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	answers, err := h.sessionService.Answers(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, answers)
}

// FocusQuestion records the question currently in view
// @Router /sessions/{id}/focus [post]
func (h *SessionHandler) FocusQuestion(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	progress, err := h.sessionService.Focus(c.Request.Context(), id, userID, &req, RequestLanguage(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// NextQuestion moves focus forward in display order
// @Router /sessions/{id}/next [post]
func (h *SessionHandler) NextQuestion(c *gin.Context) {
	h.navigate(c, h.sessionService.Next)
}

// PreviousQuestion moves focus back in display order
// @Router /sessions/{id}/previous [post]
func (h *SessionHandler) PreviousQuestion(c *gin.Context) {
	h.navigate(c, h.sessionService.Previous)
}

// GetProgress returns the progress widget state
// @Router /sessions/{id}/progress [get]
func (h *SessionHandler) GetProgress(c *gin.Context) {
	h.navigate(c, h.sessionService.Progress)
}

type progressFunc func(ctx context.Context, sessionID, userID, lang string) (*services.ProgressResponse, error)

func (h *SessionHandler) navigate(c *gin.Context, fn progressFunc) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	progress, err := fn(c.Request.Context(), id, userID, RequestLanguage(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// SubmitSession finalizes the session and returns the canonical answers
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", id)

	result, err := h.sessionService.Submit(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AbandonSession closes the session without submitting
// @Router /sessions/{id} [delete]
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	if err := h.sessionService.Abandon(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
