package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/randomized-assessment/internal/services"
	"github.com/SAP-F-2025/randomized-assessment/internal/utils"
)

type HandlerManager struct {
	sessionHandler     *SessionHandler
	questionSetHandler *QuestionSetHandler
}

func NewHandlerManager(
	sessionService services.SessionService,
	questionSetService services.QuestionSetService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:     NewSessionHandler(sessionService, logger),
		questionSetHandler: NewQuestionSetHandler(questionSetService, logger),
	}
}

// SetupRoutes sets up all API routes. middleware runs on /api/v1 only.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, middleware ...gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "randomized-assessment",
		})
	})

	v1 := router.Group("/api/v1", middleware...)
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.AbandonSession)

			sessions.POST("/:id/answers", hm.sessionHandler.ToggleAnswer)
			sessions.GET("/:id/answers", hm.sessionHandler.GetAnswers)

			sessions.POST("/:id/focus", hm.sessionHandler.FocusQuestion)
			sessions.POST("/:id/next", hm.sessionHandler.NextQuestion)
			sessions.POST("/:id/previous", hm.sessionHandler.PreviousQuestion)
			sessions.GET("/:id/progress", hm.sessionHandler.GetProgress)

			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
		}

		questionSets := v1.Group("/question-sets")
		{
			questionSets.POST("", hm.questionSetHandler.SaveQuestionSet)
			questionSets.POST("/import", hm.questionSetHandler.ImportQuestionSet)
			questionSets.GET("/:id", hm.questionSetHandler.GetQuestionSet)
			questionSets.GET("/:id/export", hm.questionSetHandler.ExportQuestionSet)
		}
	}
}
