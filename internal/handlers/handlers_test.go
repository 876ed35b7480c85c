package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/services"
	"github.com/SAP-F-2025/randomized-assessment/internal/utils"
)

// MockSessionService is a mock implementation of services.SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Start(ctx context.Context, req *services.StartSessionRequest, userID string) (*services.SessionResponse, error) {
	args := m.Called(ctx, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionResponse), args.Error(1)
}

func (m *MockSessionService) Get(ctx context.Context, sessionID, userID string) (*services.SessionResponse, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionResponse), args.Error(1)
}

func (m *MockSessionService) ToggleAnswer(ctx context.Context, sessionID, userID string, req *services.ToggleAnswerRequest) (*services.AnswersResponse, error) {
	args := m.Called(ctx, sessionID, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AnswersResponse), args.Error(1)
}

func (m *MockSessionService) Answers(ctx context.Context, sessionID, userID string) (*services.AnswersResponse, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AnswersResponse), args.Error(1)
}

func (m *MockSessionService) Focus(ctx context.Context, sessionID, userID string, req *services.FocusRequest, lang string) (*services.ProgressResponse, error) {
	args := m.Called(ctx, sessionID, userID, req, lang)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProgressResponse), args.Error(1)
}

func (m *MockSessionService) Next(ctx context.Context, sessionID, userID, lang string) (*services.ProgressResponse, error) {
	return m.progress(m.Called(ctx, sessionID, userID, lang))
}

func (m *MockSessionService) Previous(ctx context.Context, sessionID, userID, lang string) (*services.ProgressResponse, error) {
	return m.progress(m.Called(ctx, sessionID, userID, lang))
}

func (m *MockSessionService) Progress(ctx context.Context, sessionID, userID, lang string) (*services.ProgressResponse, error) {
	return m.progress(m.Called(ctx, sessionID, userID, lang))
}

func (m *MockSessionService) progress(args mock.Arguments) (*services.ProgressResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProgressResponse), args.Error(1)
}

func (m *MockSessionService) Submit(ctx context.Context, sessionID, userID string) (*services.SubmitResponse, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmitResponse), args.Error(1)
}

func (m *MockSessionService) Abandon(ctx context.Context, sessionID, userID string) error {
	return m.Called(ctx, sessionID, userID).Error(0)
}

func (m *MockSessionService) EvictIdle(now time.Time) int {
	return m.Called(now).Int(0)
}

func (m *MockSessionService) StartJanitor(ctx context.Context, interval time.Duration) {
	m.Called(ctx, interval)
}

func (m *MockSessionService) Shutdown() {
	m.Called()
}

// MockQuestionSetService is a mock implementation of services.QuestionSetService
type MockQuestionSetService struct {
	mock.Mock
}

func (m *MockQuestionSetService) Save(ctx context.Context, set *models.QuestionSet, createdBy string) error {
	return m.Called(ctx, set, createdBy).Error(0)
}

func (m *MockQuestionSetService) Get(ctx context.Context, assessmentID string) (*models.QuestionSet, error) {
	args := m.Called(ctx, assessmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuestionSet), args.Error(1)
}

func (m *MockQuestionSetService) Import(ctx context.Context, reader io.Reader, assessmentID, title, createdBy string) (*models.ImportResult, error) {
	args := m.Called(ctx, reader, assessmentID, title, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportResult), args.Error(1)
}

func (m *MockQuestionSetService) Export(ctx context.Context, assessmentID string) ([]byte, error) {
	args := m.Called(ctx, assessmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func setupRouter(sessions *MockSessionService, sets *MockQuestionSetService, middleware ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := utils.NewNopLogger()
	router := gin.New()
	router.Use(utils.ContextLogger(logger))
	if len(middleware) == 0 {
		middleware = []gin.HandlerFunc{AuthMiddleware(nil, logger)}
	}
	NewHandlerManager(sessions, sets, logger).SetupRoutes(router, middleware...)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var student = map[string]string{"X-User-ID": "student-1"}

func TestHealth(t *testing.T) {
	router := setupRouter(&MockSessionService{}, &MockQuestionSetService{})
	w := doJSON(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartSession(t *testing.T) {
	sessions := &MockSessionService{}
	router := setupRouter(sessions, &MockQuestionSetService{})

	sessions.On("Start", mock.Anything, &services.StartSessionRequest{AssessmentID: "quiz-1", Mode: services.ModeExam}, "student-1").
		Return(&services.SessionResponse{SessionID: "s-1", Mode: services.ModeExam}, nil).Once()
	sessions.On("Start", mock.Anything, &services.StartSessionRequest{AssessmentID: "quiz-1", Mode: services.ModePractice}, "student-1").
		Return(&services.SessionResponse{SessionID: "s-2", Resumed: true}, nil).Once()

	w := doJSON(router, http.MethodPost, "/api/v1/sessions", map[string]string{"assessment_id": "quiz-1", "mode": "exam"}, student)
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp services.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s-1", resp.SessionID)

	w = doJSON(router, http.MethodPost, "/api/v1/sessions", map[string]string{"assessment_id": "quiz-1", "mode": "practice"}, student)
	assert.Equal(t, http.StatusOK, w.Code)
	sessions.AssertExpectations(t)
}

func TestStartSession_BadPayload(t *testing.T) {
	router := setupRouter(&MockSessionService{}, &MockQuestionSetService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleAnswer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"out of range", fmt.Errorf("%w: position 9", services.ErrOptionOutOfRange), http.StatusBadRequest},
		{"validation", services.ValidationErrors{{Field: "position", Rule: "required"}}, http.StatusBadRequest},
		{"not found", services.ErrSessionNotFound, http.StatusNotFound},
		{"other user", services.NewPermissionError("student-1", "s-1", "session", "answer", "not yours"), http.StatusForbidden},
		{"submitted", services.ErrSessionSubmitted, http.StatusConflict},
		{"expired", services.ErrSessionExpired, http.StatusGone},
		{"business rule", services.NewBusinessRuleError("question_set_changed", "changed", nil), http.StatusUnprocessableEntity},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &MockSessionService{}
			router := setupRouter(sessions, &MockQuestionSetService{})
			sessions.On("ToggleAnswer", mock.Anything, "s-1", "student-1", mock.Anything).Return(nil, tt.err).Once()

			w := doJSON(router, http.MethodPost, "/api/v1/sessions/s-1/answers",
				map[string]interface{}{"question_id": "q0", "position": 9, "selected": true}, student)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestToggleAnswer_PassesDisplayPosition(t *testing.T) {
	sessions := &MockSessionService{}
	router := setupRouter(sessions, &MockQuestionSetService{})

	sessions.On("ToggleAnswer", mock.Anything, "s-1", "student-1", mock.MatchedBy(func(req *services.ToggleAnswerRequest) bool {
		return req.QuestionID == "q0" && req.Position != nil && *req.Position == 0 && req.Selected
	})).Return(&services.AnswersResponse{Answers: models.FormattedAnswer{"q0": "2"}}, nil).Once()

	w := doJSON(router, http.MethodPost, "/api/v1/sessions/s-1/answers",
		map[string]interface{}{"question_id": "q0", "position": 0, "selected": true}, student)
	require.Equal(t, http.StatusOK, w.Code)

	var resp services.AnswersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2", resp.Answers["q0"])
}

func TestProgressRoutesPassLanguage(t *testing.T) {
	sessions := &MockSessionService{}
	router := setupRouter(sessions, &MockQuestionSetService{})

	sessions.On("Next", mock.Anything, "s-1", "student-1", "en").
		Return(&services.ProgressResponse{FocusedQuestionID: "q1", Moved: true}, nil).Once()
	sessions.On("Previous", mock.Anything, "s-1", "student-1", "vi-VN").
		Return(&services.ProgressResponse{}, nil).Once()
	sessions.On("Progress", mock.Anything, "s-1", "student-1", "").
		Return(&services.ProgressResponse{Label: "Chưa xem câu nào"}, nil).Once()
	sessions.On("Focus", mock.Anything, "s-1", "student-1", &services.FocusRequest{QuestionID: "q2"}, "en").
		Return(&services.ProgressResponse{Ordinal: 3}, nil).Once()

	w := doJSON(router, http.MethodPost, "/api/v1/sessions/s-1/next?lang=en", nil, student)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/sessions/s-1/previous", nil,
		map[string]string{"X-User-ID": "student-1", "Accept-Language": "vi-VN"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/s-1/progress", nil, student)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/sessions/s-1/focus?lang=en", map[string]string{"question_id": "q2"}, student)
	assert.Equal(t, http.StatusOK, w.Code)
	sessions.AssertExpectations(t)
}

func TestSubmitAndAbandon(t *testing.T) {
	sessions := &MockSessionService{}
	router := setupRouter(sessions, &MockQuestionSetService{})

	sessions.On("Submit", mock.Anything, "s-1", "student-1").
		Return(&services.SubmitResponse{SessionID: "s-1", Correct: 2, Gradable: 2}, nil).Once()
	sessions.On("Abandon", mock.Anything, "s-2", "student-1").Return(nil).Once()
	sessions.On("Abandon", mock.Anything, "s-3", "student-1").Return(services.ErrSessionClosed).Once()

	w := doJSON(router, http.MethodPost, "/api/v1/sessions/s-1/submit", nil, student)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/v1/sessions/s-2", nil, student)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/v1/sessions/s-3", nil, student)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	parser := func(token string) (string, error) {
		if token == "good" {
			return "student-9", nil
		}
		return "", errors.New("signature mismatch")
	}

	sessions := &MockSessionService{}
	router := setupRouter(sessions, &MockQuestionSetService{}, AuthMiddleware(parser, utils.NewNopLogger()))
	sessions.On("Answers", mock.Anything, "s-1", "student-9").Return(&services.AnswersResponse{}, nil).Once()

	w := doJSON(router, http.MethodGet, "/api/v1/sessions/s-1/answers", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/s-1/answers", nil, map[string]string{"Authorization": "Bearer bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/s-1/answers", nil, map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)

	// health stays public
	w = doJSON(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	sessions.AssertExpectations(t)
}

func TestAuthMiddleware_AnonymousFallback(t *testing.T) {
	sessions := &MockSessionService{}
	router := setupRouter(sessions, &MockQuestionSetService{})
	sessions.On("Get", mock.Anything, "s-1", anonymousUser).Return(nil, services.ErrSessionNotFound).Once()

	w := doJSON(router, http.MethodGet, "/api/v1/sessions/s-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	sessions.AssertExpectations(t)
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestImportQuestionSet(t *testing.T) {
	data, err := services.WriteQuestionWorkbook(&models.QuestionSet{
		AssessmentID: "quiz-1",
		Questions: []models.Question{
			{ID: "q0", Kind: models.KindSingleChoice, Prompt: "p", Options: []string{"a", "b"}},
		},
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		filename string
		fields   map[string]string
		setup    func(m *MockQuestionSetService)
		status   int
	}{
		{
			name:     "imported",
			filename: "set.xlsx",
			fields:   map[string]string{"assessment_id": "quiz-1", "title": "Quiz"},
			setup: func(m *MockQuestionSetService) {
				m.On("Import", mock.Anything, mock.Anything, "quiz-1", "Quiz", "author-1").
					Return(&models.ImportResult{AssessmentID: "quiz-1", ImportedCount: 1}, nil).Once()
			},
			status: http.StatusCreated,
		},
		{
			name:     "bad rows",
			filename: "set.xlsx",
			fields:   map[string]string{"assessment_id": "quiz-1"},
			setup: func(m *MockQuestionSetService) {
				m.On("Import", mock.Anything, mock.Anything, "quiz-1", "", "author-1").
					Return(&models.ImportResult{ErrorCount: 1}, services.ErrImportFailed).Once()
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:     "wrong extension",
			filename: "set.csv",
			fields:   map[string]string{"assessment_id": "quiz-1"},
			status:   http.StatusBadRequest,
		},
		{
			name:     "missing assessment",
			filename: "set.xlsx",
			status:   http.StatusBadRequest,
		},
		{
			name:   "missing file",
			fields: map[string]string{"assessment_id": "quiz-1"},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets := &MockQuestionSetService{}
			if tt.setup != nil {
				tt.setup(sets)
			}
			router := setupRouter(&MockSessionService{}, sets)

			body, contentType := multipartUpload(t, tt.filename, data, tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/question-sets/import", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("X-User-ID", "author-1")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			sets.AssertExpectations(t)
		})
	}
}

func TestExportQuestionSet(t *testing.T) {
	sets := &MockQuestionSetService{}
	router := setupRouter(&MockSessionService{}, sets)

	sets.On("Export", mock.Anything, "quiz-1").Return([]byte("xlsx-bytes"), nil).Once()
	sets.On("Export", mock.Anything, "missing").Return(nil, services.ErrQuestionSetNotFound).Once()

	w := doJSON(router, http.MethodGet, "/api/v1/question-sets/quiz-1/export", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "quiz-1.xlsx")
	assert.Equal(t, "xlsx-bytes", w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/v1/question-sets/missing/export", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveQuestionSet(t *testing.T) {
	sets := &MockQuestionSetService{}
	router := setupRouter(&MockSessionService{}, sets)

	sets.On("Save", mock.Anything, mock.MatchedBy(func(set *models.QuestionSet) bool {
		return set.AssessmentID == "quiz-1" && len(set.Questions) == 1
	}), "author-1").Return(nil).Once()

	w := doJSON(router, http.MethodPost, "/api/v1/question-sets", models.QuestionSet{
		AssessmentID: "quiz-1",
		Questions:    []models.Question{{ID: "q0", Kind: models.KindMultiChoice, Prompt: "p", Options: []string{"a", "b"}}},
	}, map[string]string{"X-User-ID": "author-1"})
	assert.Equal(t, http.StatusCreated, w.Code)
	sets.AssertExpectations(t)
}
