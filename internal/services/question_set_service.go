package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/randomized-assessment/internal/cache"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
	"github.com/SAP-F-2025/randomized-assessment/internal/validator"
)

const (
	questionSheet    = "Questions"
	optionsSeparator = "|"
	questionSetTTL   = 30 * time.Minute
)

var workbookHeaders = []string{"ID", "Kind", "Prompt", "Image URL", "Options", "Correct"}

// QuestionSetService stores the canonical question sets sessions are built from
type QuestionSetService interface {
	Save(ctx context.Context, set *models.QuestionSet, createdBy string) error
	Get(ctx context.Context, assessmentID string) (*models.QuestionSet, error)
	Import(ctx context.Context, reader io.Reader, assessmentID, title, createdBy string) (*models.ImportResult, error)
	Export(ctx context.Context, assessmentID string) ([]byte, error)
}

type questionSetService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	validator *validator.Validator
	logger    *ServiceLogger
}

func NewQuestionSetService(repo repositories.Repository, cacheService cache.CacheService, v *validator.Validator, logger *slog.Logger) QuestionSetService {
	return &questionSetService{
		repo:      repo,
		cache:     cacheService,
		validator: v,
		logger:    NewServiceLogger(logger, LogConfig{Service: "question-set", Component: "service"}),
	}
}

func questionSetKey(assessmentID string) string {
	return "question-set:" + assessmentID
}

func (s *questionSetService) Save(ctx context.Context, set *models.QuestionSet, createdBy string) (err error) {
	op := s.logger.WithOperation(ctx, "save_question_set", createdBy)
	defer func() { op.LogResult(set.AssessmentID, "question_set", err) }()

	if err = s.validator.ValidateQuestionSet(set); err != nil {
		return err
	}

	if err = s.repo.QuestionSets().Upsert(ctx, nil, models.NewQuestionSetRecord(set, createdBy)); err != nil {
		return fmt.Errorf("failed to save question set: %w", err)
	}

	if s.cache != nil {
		if cerr := s.cache.Delete(ctx, questionSetKey(set.AssessmentID)); cerr != nil {
			s.logger.Warn(ctx, "Failed to invalidate question set cache", "assessment_id", set.AssessmentID, "error", cerr)
		}
	}
	return nil
}

func (s *questionSetService) Get(ctx context.Context, assessmentID string) (*models.QuestionSet, error) {
	if s.cache != nil {
		var cached models.QuestionSet
		if err := s.cache.Get(ctx, questionSetKey(assessmentID), &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn(ctx, "Question set cache unavailable", "assessment_id", assessmentID, "error", err)
		}
	}

	record, err := s.repo.QuestionSets().GetByAssessmentID(ctx, nil, assessmentID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrQuestionSetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question set: %w", err)
	}

	set := record.QuestionSet()
	if s.cache != nil {
		if err := s.cache.Set(ctx, questionSetKey(assessmentID), set, questionSetTTL); err != nil {
			s.logger.Warn(ctx, "Failed to cache question set", "assessment_id", assessmentID, "error", err)
		}
	}
	return set, nil
}

// Import parses an xlsx workbook and saves it as the set of assessmentID.
// Nothing is saved when any row is invalid; the result lists every bad row.
func (s *questionSetService) Import(ctx context.Context, reader io.Reader, assessmentID, title, createdBy string) (*models.ImportResult, error) {
	result, err := ParseQuestionWorkbook(reader, assessmentID, title)
	if err != nil {
		return nil, err
	}
	if result.ErrorCount > 0 {
		return result, ErrImportFailed
	}

	if err := s.Save(ctx, result.Set, createdBy); err != nil {
		return result, err
	}

	s.logger.Info(ctx, "Excel import completed",
		"assessment_id", assessmentID,
		"total_rows", result.TotalRows,
		"imported_count", result.ImportedCount)
	return result, nil
}

// Export writes the set in the same layout Import reads.
func (s *questionSetService) Export(ctx context.Context, assessmentID string) ([]byte, error) {
	set, err := s.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return WriteQuestionWorkbook(set)
}

// ParseQuestionWorkbook reads the first sheet of an xlsx workbook. Columns
// are matched by header name; options are separated by "|" and correct
// answers are comma-separated zero-based option indexes.
func ParseQuestionWorkbook(reader io.Reader, assessmentID, title string) (*models.ImportResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, NewValidationError("file", "Excel must have header row and at least one data row", len(rows))
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, required := range []string{"id", "kind", "prompt", "options"} {
		if _, ok := headerMap[required]; !ok {
			return nil, NewValidationError("file", fmt.Sprintf("missing %q column", required), rows[0])
		}
	}

	result := &models.ImportResult{
		AssessmentID: assessmentID,
		TotalRows:    len(rows) - 1,
		Set:          &models.QuestionSet{AssessmentID: assessmentID, Title: title},
	}

	for i, row := range rows[1:] {
		if isBlankRow(row) {
			result.TotalRows--
			continue
		}
		question, rowErrors := parseQuestionRow(row, headerMap, i+2)
		if len(rowErrors) > 0 {
			result.Errors = append(result.Errors, rowErrors...)
			result.ErrorCount++
			continue
		}
		result.Set.Questions = append(result.Set.Questions, question)
		result.ImportedCount++
	}

	return result, nil
}

func parseQuestionRow(row []string, headerMap map[string]int, rowNum int) (models.Question, []models.ImportValidationError) {
	var errs []models.ImportValidationError
	cell := func(name string) string {
		idx, ok := headerMap[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	fail := func(column, message, value string) {
		errs = append(errs, models.ImportValidationError{Row: rowNum, Column: column, Message: message, Value: value})
	}

	q := models.Question{
		ID:     cell("id"),
		Kind:   models.QuestionKind(strings.ToLower(cell("kind"))),
		Prompt: cell("prompt"),
	}
	if q.ID == "" {
		fail("ID", "is required", "")
	}
	if q.Prompt == "" {
		fail("Prompt", "is required", "")
	}
	switch q.Kind {
	case models.KindSingleChoice, models.KindMultiChoice, models.KindReorder:
	default:
		fail("Kind", "must be single_choice, multi_choice or reorder", string(q.Kind))
	}

	if image := cell("image url"); image != "" {
		q.ImageURL = &image
	}

	for _, opt := range strings.Split(cell("options"), optionsSeparator) {
		if opt = strings.TrimSpace(opt); opt != "" {
			q.Options = append(q.Options, opt)
		}
	}
	if len(q.Options) < 2 {
		fail("Options", "must list at least 2 options separated by |", cell("options"))
	}

	if raw := cell("correct"); raw != "" {
		for _, part := range strings.Split(raw, models.OptionDelimiter) {
			idx, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || idx < 0 || idx >= len(q.Options) {
				fail("Correct", "must reference existing options", raw)
				break
			}
			q.Correct = append(q.Correct, idx)
		}
	}

	return q, errs
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteQuestionWorkbook renders a set as an xlsx workbook.
func WriteQuestionWorkbook(set *models.QuestionSet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), questionSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	if err := f.SetSheetRow(questionSheet, "A1", &workbookHeaders); err != nil {
		return nil, fmt.Errorf("failed to write Excel header: %w", err)
	}

	for i, q := range set.Questions {
		image := ""
		if q.ImageURL != nil {
			image = *q.ImageURL
		}
		row := []interface{}{
			q.ID,
			string(q.Kind),
			q.Prompt,
			image,
			strings.Join(q.Options, " "+optionsSeparator+" "),
			models.JoinPositions(q.Correct),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(questionSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write question %s: %w", q.ID, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
