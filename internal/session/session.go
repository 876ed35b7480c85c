// Package session builds the immutable, randomized view of one assessment
// attempt.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/randomized-assessment/internal/mapping"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/shuffle"
)

var (
	ErrEmptyQuestionSet = errors.New("question set is empty")
	ErrUnknownQuestion  = errors.New("question not part of session")
)

// AssessmentSession is created once per attempt and never mutated.
type AssessmentSession struct {
	id           string
	assessmentID string
	isExam       bool
	seed         int64
	createdAt    time.Time

	canonical []models.Question
	display   []models.DisplayQuestion
	byID      map[string]int // question ID -> display index

	questionMapping mapping.QuestionMapping
	optionMappings  map[string]mapping.OptionMapping
}

// New builds a session. In exam mode questions and the options of every
// choice question are shuffled with a source seeded by seed; in practice
// mode the canonical order is kept and both mappings are empty.
func New(set models.QuestionSet, isExam bool, seed int64) (*AssessmentSession, error) {
	if len(set.Questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	canonical := cloneQuestions(set.Questions)
	if err := checkUniqueIDs(canonical); err != nil {
		return nil, err
	}

	s := &AssessmentSession{
		id:              uuid.NewString(),
		assessmentID:    set.AssessmentID,
		isExam:          isExam,
		seed:            seed,
		createdAt:       time.Now(),
		canonical:       canonical,
		questionMapping: mapping.QuestionMapping{},
		optionMappings:  map[string]mapping.OptionMapping{},
	}

	if !isExam {
		s.display = make([]models.DisplayQuestion, len(canonical))
		for i, q := range canonical {
			s.display[i] = models.DisplayQuestion{Question: q, CanonicalIndex: i, DisplayIndex: i}
		}
		s.index()
		return s, nil
	}

	shuffler := shuffle.New(seed)
	shuffled, _ := shuffle.ShuffleWithPermutation(shuffler, canonical)

	qm, err := mapping.BuildQuestionMapping(canonical, shuffled)
	if err != nil {
		return nil, fmt.Errorf("failed to build question mapping: %w", err)
	}
	s.questionMapping = qm

	options := make(map[string]mapping.OptionMapping, len(shuffled))
	for _, q := range shuffled {
		if !q.Kind.IsChoice() || len(q.Options) == 0 {
			continue
		}
		om, err := mapping.BuildOptionMapping(len(q.Options), shuffler.Permutation(len(q.Options)))
		if err != nil {
			return nil, fmt.Errorf("failed to build option mapping for question %q: %w", q.ID, err)
		}
		options[q.ID] = om
	}
	s.optionMappings = options

	if err := s.layout(); err != nil {
		return nil, err
	}
	return s, nil
}

// layout derives the display sequence from the mappings.
func (s *AssessmentSession) layout() error {
	canonicalIdx := make(map[string]int, len(s.canonical))
	for i, q := range s.canonical {
		canonicalIdx[q.ID] = i
	}

	s.display = make([]models.DisplayQuestion, len(s.canonical))
	for i, id := range s.questionMapping.Inverse() {
		ci, ok := canonicalIdx[id]
		if !ok {
			return fmt.Errorf("%w: %q", mapping.ErrMissingQuestion, id)
		}
		q := s.canonical[ci]
		if om, ok := s.optionMappings[q.ID]; ok {
			if err := om.Validate(len(q.Options)); err != nil {
				return fmt.Errorf("option mapping for question %q: %w", q.ID, err)
			}
			q.Options = shuffle.Apply(q.Options, om)
		}
		s.display[i] = models.DisplayQuestion{Question: q, CanonicalIndex: ci, DisplayIndex: i}
	}
	s.index()
	return nil
}

func (s *AssessmentSession) index() {
	s.byID = make(map[string]int, len(s.display))
	for i, q := range s.display {
		s.byID[q.ID] = i
	}
}

func (s *AssessmentSession) ID() string           { return s.id }
func (s *AssessmentSession) AssessmentID() string { return s.assessmentID }
func (s *AssessmentSession) IsExam() bool         { return s.isExam }
func (s *AssessmentSession) Seed() int64          { return s.seed }
func (s *AssessmentSession) CreatedAt() time.Time { return s.createdAt }
func (s *AssessmentSession) Len() int             { return len(s.display) }

// Questions returns the questions in display order.
func (s *AssessmentSession) Questions() []models.DisplayQuestion {
	out := make([]models.DisplayQuestion, len(s.display))
	for i, q := range s.display {
		q.Options = append([]string(nil), q.Options...)
		q.Correct = append([]int(nil), q.Correct...)
		out[i] = q
	}
	return out
}

// Canonical returns the questions in authored order.
func (s *AssessmentSession) Canonical() []models.Question {
	return cloneQuestions(s.canonical)
}

// Question looks up a question by ID.
func (s *AssessmentSession) Question(id string) (models.DisplayQuestion, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return models.DisplayQuestion{}, false
	}
	return s.display[idx], true
}

// DisplayOrder returns question IDs as laid out on screen.
func (s *AssessmentSession) DisplayOrder() []string {
	out := make([]string, len(s.display))
	for i, q := range s.display {
		out[i] = q.ID
	}
	return out
}

// QuestionMapping returns a copy of canonical ID -> display index. Empty in
// practice mode.
func (s *AssessmentSession) QuestionMapping() mapping.QuestionMapping {
	return s.questionMapping.Clone()
}

// OptionMapping returns a copy of a question's option mapping.
func (s *AssessmentSession) OptionMapping(questionID string) (mapping.OptionMapping, bool) {
	om, ok := s.optionMappings[questionID]
	if !ok {
		return nil, false
	}
	return om.Clone(), true
}

// Snapshot returns both mappings as an independent value.
func (s *AssessmentSession) Snapshot() mapping.Snapshot {
	return mapping.Snapshot{Questions: s.questionMapping, Options: s.optionMappings}.Clone()
}

// ToCanonical translates one display option position of a question.
// Questions without an option mapping translate as identity.
func (s *AssessmentSession) ToCanonical(questionID string, display int) (int, error) {
	q, ok := s.Question(questionID)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownQuestion, questionID)
	}
	if display < 0 || display >= len(q.Options) {
		return 0, fmt.Errorf("display position %d out of range for question %q", display, questionID)
	}
	om, ok := s.optionMappings[questionID]
	if !ok {
		return display, nil
	}
	c, _ := om.Canonical(display)
	return c, nil
}

func cloneQuestions(in []models.Question) []models.Question {
	out := make([]models.Question, len(in))
	for i, q := range in {
		q.Options = append([]string(nil), q.Options...)
		q.Correct = append([]int(nil), q.Correct...)
		out[i] = q
	}
	return out
}

func checkUniqueIDs(qs []models.Question) error {
	seen := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %q", mapping.ErrDuplicateQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}
