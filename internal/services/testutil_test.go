package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockQuestionSetRepository is a mock implementation of QuestionSetRepository
type MockQuestionSetRepository struct {
	mock.Mock
}

func (m *MockQuestionSetRepository) Upsert(ctx context.Context, tx *gorm.DB, record *models.QuestionSetRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

func (m *MockQuestionSetRepository) GetByAssessmentID(ctx context.Context, tx *gorm.DB, assessmentID string) (*models.QuestionSetRecord, error) {
	args := m.Called(ctx, tx, assessmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuestionSetRecord), args.Error(1)
}

func (m *MockQuestionSetRepository) Delete(ctx context.Context, tx *gorm.DB, assessmentID string) error {
	args := m.Called(ctx, tx, assessmentID)
	return args.Error(0)
}

// MockAnswerDraftRepository is a mock implementation of AnswerDraftRepository
type MockAnswerDraftRepository struct {
	mock.Mock
}

func (m *MockAnswerDraftRepository) Upsert(ctx context.Context, tx *gorm.DB, draft *models.AnswerDraft) error {
	args := m.Called(ctx, tx, draft)
	return args.Error(0)
}

func (m *MockAnswerDraftRepository) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*models.AnswerDraft, error) {
	args := m.Called(ctx, tx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnswerDraft), args.Error(1)
}

// MockRepository groups mock repositories; nil members panic when used.
type MockRepository struct {
	questionSets repositories.QuestionSetRepository
	sessions     repositories.SessionRepository
	drafts       repositories.AnswerDraftRepository
}

func (m *MockRepository) QuestionSets() repositories.QuestionSetRepository { return m.questionSets }
func (m *MockRepository) Sessions() repositories.SessionRepository         { return m.sessions }
func (m *MockRepository) Drafts() repositories.AnswerDraftRepository       { return m.drafts }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// MockCacheService is a mock implementation of cache.CacheService
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) DeletePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

// memoryStore is an in-memory Repository for multi-step session flows.
type memoryStore struct {
	mu       sync.Mutex
	sets     map[string]*models.QuestionSetRecord
	sessions map[string]*models.SessionRecord
	drafts   map[string]*models.AnswerDraft
	failTx   error
	// inTx runs inside WithTransaction before the work, to interleave
	// requests with a commit
	inTx func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sets:     make(map[string]*models.QuestionSetRecord),
		sessions: make(map[string]*models.SessionRecord),
		drafts:   make(map[string]*models.AnswerDraft),
	}
}

func (s *memoryStore) QuestionSets() repositories.QuestionSetRepository { return memorySets{s} }
func (s *memoryStore) Sessions() repositories.SessionRepository         { return memorySessions{s} }
func (s *memoryStore) Drafts() repositories.AnswerDraftRepository       { return memoryDrafts{s} }

func (s *memoryStore) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.failTx != nil {
		return s.failTx
	}
	if s.inTx != nil {
		s.inTx()
	}
	return fn(nil)
}

func (s *memoryStore) session(id string) *models.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sessions[id]
	if !ok {
		return nil
	}
	c := *r
	return &c
}

func (s *memoryStore) draft(id string) models.FormattedAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil
	}
	return d.Answers.Data()
}

type memorySets struct{ s *memoryStore }

func (r memorySets) Upsert(ctx context.Context, tx *gorm.DB, record *models.QuestionSetRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *record
	r.s.sets[record.AssessmentID] = &c
	return nil
}

func (r memorySets) GetByAssessmentID(ctx context.Context, tx *gorm.DB, assessmentID string) (*models.QuestionSetRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.sets[assessmentID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *rec
	return &c, nil
}

func (r memorySets) Delete(ctx context.Context, tx *gorm.DB, assessmentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sets, assessmentID)
	return nil
}

type memorySessions struct{ s *memoryStore }

func (r memorySessions) Create(ctx context.Context, tx *gorm.DB, record *models.SessionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *record
	r.s.sessions[record.ID] = &c
	return nil
}

func (r memorySessions) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.SessionRecord, error) {
	if rec := r.s.session(id); rec != nil {
		return rec, nil
	}
	return nil, repositories.ErrNotFound
}

func (r memorySessions) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID, assessmentID string, now time.Time) (*models.SessionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.sessions {
		if rec.UserID == userID && rec.AssessmentID == assessmentID && rec.IsActive(now) {
			c := *rec
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memorySessions) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.SessionStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.sessions[id]
	if !ok || rec.Status != models.SessionActive {
		return repositories.ErrNotFound
	}
	rec.Status = status
	if status == models.SessionSubmitted {
		rec.SubmittedAt = &at
	}
	return nil
}

type memoryDrafts struct{ s *memoryStore }

func (r memoryDrafts) Upsert(ctx context.Context, tx *gorm.DB, draft *models.AnswerDraft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *draft
	r.s.drafts[draft.SessionID] = &c
	return nil
}

func (r memoryDrafts) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*models.AnswerDraft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drafts[sessionID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *d
	return &c, nil
}

func sampleQuestionSet() *models.QuestionSet {
	return &models.QuestionSet{
		AssessmentID: "quiz-1",
		Title:        "Geography",
		Questions: []models.Question{
			{ID: "q0", Kind: models.KindSingleChoice, Prompt: "Capital of France?", Options: []string{"Paris", "Rome", "Oslo"}, Correct: []int{0}},
			{ID: "q1", Kind: models.KindMultiChoice, Prompt: "Nordic countries?", Options: []string{"Norway", "Spain", "Finland"}, Correct: []int{0, 2}},
			{ID: "q2", Kind: models.KindReorder, Prompt: "Sort by size", Options: []string{"small", "big"}},
		},
	}
}
