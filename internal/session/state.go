package session

import (
	"fmt"
	"time"

	"github.com/SAP-F-2025/randomized-assessment/internal/mapping"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

// State is the persisted form of a session. Restoring from it never
// reshuffles.
type State struct {
	SessionID    string           `json:"session_id"`
	AssessmentID string           `json:"assessment_id"`
	IsExam       bool             `json:"is_exam"`
	Seed         int64            `json:"seed"`
	Mappings     mapping.Snapshot `json:"mappings"`
	CreatedAt    time.Time        `json:"created_at"`
}

// State captures the session for storage.
func (s *AssessmentSession) State() State {
	return State{
		SessionID:    s.id,
		AssessmentID: s.assessmentID,
		IsExam:       s.isExam,
		Seed:         s.seed,
		Mappings:     s.Snapshot(),
		CreatedAt:    s.createdAt,
	}
}

// Restore rebuilds a session from its stored state and the canonical
// questions it was created with. The stored mappings must still be
// bijections over the given questions.
func Restore(questions []models.Question, st State) (*AssessmentSession, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}
	canonical := cloneQuestions(questions)
	if err := checkUniqueIDs(canonical); err != nil {
		return nil, err
	}

	s := &AssessmentSession{
		id:              st.SessionID,
		assessmentID:    st.AssessmentID,
		isExam:          st.IsExam,
		seed:            st.Seed,
		createdAt:       st.CreatedAt,
		canonical:       canonical,
		questionMapping: mapping.QuestionMapping{},
		optionMappings:  map[string]mapping.OptionMapping{},
	}

	if !st.IsExam {
		s.display = make([]models.DisplayQuestion, len(canonical))
		for i, q := range canonical {
			s.display[i] = models.DisplayQuestion{Question: q, CanonicalIndex: i, DisplayIndex: i}
		}
		s.index()
		return s, nil
	}

	snap := st.Mappings.Clone()
	if err := snap.Questions.Validate(len(canonical)); err != nil {
		return nil, fmt.Errorf("stored question mapping: %w", err)
	}
	s.questionMapping = snap.Questions
	if snap.Options != nil {
		s.optionMappings = snap.Options
	}

	if err := s.layout(); err != nil {
		return nil, err
	}
	return s, nil
}
