package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/randomized-assessment/internal/cache"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
	"github.com/SAP-F-2025/randomized-assessment/internal/validator"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestParseQuestionWorkbook(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"ID", "Kind", "Prompt", "Image URL", "Options", "Correct"},
		{"q0", "single_choice", "Capital of France?", "", "Paris | Rome | Oslo", "0"},
		{},
		{"q1", "Multi_Choice", "Nordic countries?", "https://example.com/map.png", "Norway|Spain|Finland", "0, 2"},
	})

	result, err := ParseQuestionWorkbook(buf, "quiz-1", "Geography")
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.ImportedCount)
	assert.Zero(t, result.ErrorCount)
	require.Len(t, result.Set.Questions, 2)

	q1 := result.Set.Questions[1]
	assert.Equal(t, models.KindMultiChoice, q1.Kind)
	assert.Equal(t, []string{"Norway", "Spain", "Finland"}, q1.Options)
	assert.Equal(t, []int{0, 2}, q1.Correct)
	require.NotNil(t, q1.ImageURL)
	assert.Nil(t, result.Set.Questions[0].ImageURL)
}

func TestParseQuestionWorkbook_RowErrors(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"ID", "Kind", "Prompt", "Options", "Correct"},
		{"q0", "essay", "Explain", "a|b", ""},
		{"q1", "single_choice", "", "only", "3"},
		{"q2", "reorder", "Sort", "x|y", ""},
	})

	result, err := ParseQuestionWorkbook(buf, "quiz-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Equal(t, 1, result.ImportedCount)

	columns := map[string]bool{}
	for _, e := range result.Errors {
		columns[e.Column] = true
	}
	assert.True(t, columns["Kind"])
	assert.True(t, columns["Prompt"])
	assert.True(t, columns["Options"])
	assert.True(t, columns["Correct"])
}

func TestParseQuestionWorkbook_BadFile(t *testing.T) {
	_, err := ParseQuestionWorkbook(bytes.NewBufferString("not a workbook"), "quiz-1", "")
	assert.Error(t, err)

	buf := workbook(t, [][]interface{}{{"ID", "Prompt"}, {"q0", "p"}})
	_, err = ParseQuestionWorkbook(buf, "quiz-1", "")
	assert.True(t, IsValidation(err))

	buf = workbook(t, [][]interface{}{{"ID", "Kind", "Prompt", "Options"}})
	_, err = ParseQuestionWorkbook(buf, "quiz-1", "")
	assert.True(t, IsValidation(err))
}

func TestWriteQuestionWorkbook_RoundTrip(t *testing.T) {
	set := sampleQuestionSet()
	image := "https://example.com/eiffel.png"
	set.Questions[0].ImageURL = &image

	data, err := WriteQuestionWorkbook(set)
	require.NoError(t, err)

	result, err := ParseQuestionWorkbook(bytes.NewReader(data), set.AssessmentID, set.Title)
	require.NoError(t, err)
	require.Zero(t, result.ErrorCount)
	assert.Equal(t, set.Questions, result.Set.Questions)
}

func newQuestionSetServiceWithMocks(cacheService cache.CacheService) (QuestionSetService, *MockQuestionSetRepository) {
	sets := &MockQuestionSetRepository{}
	repo := &MockRepository{questionSets: sets}
	return NewQuestionSetService(repo, cacheService, validator.New(), quietLogger()), sets
}

func TestQuestionSetService_Save(t *testing.T) {
	cacheService := &MockCacheService{}
	svc, sets := newQuestionSetServiceWithMocks(cacheService)
	ctx := context.Background()

	sets.On("Upsert", ctx, mock.Anything, mock.MatchedBy(func(r *models.QuestionSetRecord) bool {
		return r.AssessmentID == "quiz-1" && len(r.Questions.Data()) == 3 && r.CreatedBy == "author-1"
	})).Return(nil).Once()
	cacheService.On("Delete", ctx, "question-set:quiz-1").Return(nil).Once()

	require.NoError(t, svc.Save(ctx, sampleQuestionSet(), "author-1"))
	sets.AssertExpectations(t)
	cacheService.AssertExpectations(t)
}

func TestQuestionSetService_SaveRejectsInvalidSet(t *testing.T) {
	svc, sets := newQuestionSetServiceWithMocks(nil)

	set := sampleQuestionSet()
	set.Questions[1].ID = "q0"

	err := svc.Save(context.Background(), set, "author-1")
	assert.True(t, IsValidation(err))
	sets.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuestionSetService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("cache miss falls back to repository", func(t *testing.T) {
		cacheService := &MockCacheService{}
		svc, sets := newQuestionSetServiceWithMocks(cacheService)

		cacheService.On("Get", ctx, "question-set:quiz-1", mock.Anything).Return(cache.ErrCacheMiss).Once()
		sets.On("GetByAssessmentID", ctx, mock.Anything, "quiz-1").
			Return(models.NewQuestionSetRecord(sampleQuestionSet(), "author-1"), nil).Once()
		cacheService.On("Set", ctx, "question-set:quiz-1", mock.Anything, questionSetTTL).Return(nil).Once()

		set, err := svc.Get(ctx, "quiz-1")
		require.NoError(t, err)
		assert.Equal(t, "Geography", set.Title)
		assert.Len(t, set.Questions, 3)
		cacheService.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		svc, sets := newQuestionSetServiceWithMocks(nil)
		sets.On("GetByAssessmentID", ctx, mock.Anything, "missing").Return(nil, repositories.ErrNotFound).Once()

		_, err := svc.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrQuestionSetNotFound)
		assert.True(t, IsNotFound(err))
	})

	t.Run("repository failure is wrapped", func(t *testing.T) {
		svc, sets := newQuestionSetServiceWithMocks(nil)
		boom := errors.New("connection reset")
		sets.On("GetByAssessmentID", ctx, mock.Anything, "quiz-1").Return(nil, boom).Once()

		_, err := svc.Get(ctx, "quiz-1")
		assert.ErrorIs(t, err, boom)
		assert.False(t, IsNotFound(err))
	})
}

func TestQuestionSetService_ImportSavesNothingOnBadRows(t *testing.T) {
	svc, sets := newQuestionSetServiceWithMocks(nil)
	buf := workbook(t, [][]interface{}{
		{"ID", "Kind", "Prompt", "Options"},
		{"q0", "single_choice", "ok", "a|b"},
		{"q1", "single_choice", "bad", "a"},
	})

	result, err := svc.Import(context.Background(), buf, "quiz-1", "Imported", "author-1")
	assert.ErrorIs(t, err, ErrImportFailed)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ErrorCount)
	sets.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuestionSetService_ImportAndExport(t *testing.T) {
	store := newMemoryStore()
	svc := NewQuestionSetService(store, nil, validator.New(), quietLogger())
	ctx := context.Background()

	data, err := WriteQuestionWorkbook(sampleQuestionSet())
	require.NoError(t, err)

	result, err := svc.Import(ctx, bytes.NewReader(data), "quiz-2", "Copy", "author-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ImportedCount)

	exported, err := svc.Export(ctx, "quiz-2")
	require.NoError(t, err)

	again, err := ParseQuestionWorkbook(bytes.NewReader(exported), "quiz-2", "Copy")
	require.NoError(t, err)
	assert.Equal(t, sampleQuestionSet().Questions, again.Set.Questions)
}
