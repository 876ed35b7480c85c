package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/services"
	"github.com/SAP-F-2025/randomized-assessment/internal/utils"
)

const (
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxImportFileSize = 10 << 20
)

type QuestionSetHandler struct {
	BaseHandler
	questionSetService services.QuestionSetService
}

func NewQuestionSetHandler(questionSetService services.QuestionSetService, logger utils.Logger) *QuestionSetHandler {
	return &QuestionSetHandler{
		BaseHandler:        NewBaseHandler(logger),
		questionSetService: questionSetService,
	}
}

// SaveQuestionSet stores a question set in canonical order
// @Summary Save question set
// @Tags question-sets
// @Accept json
// @Produce json
// @Param set body models.QuestionSet true "Question set"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /question-sets [post]
func (h *QuestionSetHandler) SaveQuestionSet(c *gin.Context) {
	var set models.QuestionSet
	if err := c.ShouldBindJSON(&set); err != nil {
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

	h.LogRequest(c, "Saving question set", "assessment_id", set.AssessmentID, "questions", len(set.Questions))

	if err := h.questionSetService.Save(c.Request.Context(), &set, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Question set saved", gin.H{
		"assessment_id": set.AssessmentID,
		"questions":     len(set.Questions),
	})
}

// GetQuestionSet returns a question set including correct answers
// @Router /question-sets/{id} [get]
func (h *QuestionSetHandler) GetQuestionSet(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	set, err := h.questionSetService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

// ImportQuestionSet reads an xlsx upload into a question set
// @Summary Import question set
// @Tags question-sets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx workbook"
// @Param assessment_id formData string true "Assessment ID"
// @Param title formData string false "Title"
// @Success 201 {object} models.ImportResult
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} models.ImportResult
// @Router /question-sets/import [post]
func (h *QuestionSetHandler) ImportQuestionSet(c *gin.Context) {
	userID, ok := RequireUserID(c)
	if !ok {
		return
	}

	assessmentID := strings.TrimSpace(c.PostForm("assessment_id"))
	if assessmentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "assessment_id is required",
		})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "file is required",
			Details: err.Error(),
		})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Only .xlsx files are supported",
		})
		return
	}
	if header.Size > maxImportFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Message: "File too large",
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Failed to read upload", err)
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing question set", "assessment_id", assessmentID, "file", header.Filename)

	result, err := h.questionSetService.Import(c.Request.Context(), file, assessmentID, c.PostForm("title"), userID)
	if errors.Is(err, services.ErrImportFailed) && result != nil {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ExportQuestionSet downloads the set as an xlsx workbook
// @Router /question-sets/{id}/export [get]
func (h *QuestionSetHandler) ExportQuestionSet(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	data, err := h.questionSetService.Export(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+id+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
