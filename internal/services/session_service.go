package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/randomized-assessment/internal/cache"
	"github.com/SAP-F-2025/randomized-assessment/internal/collector"
	"github.com/SAP-F-2025/randomized-assessment/internal/events"
	"github.com/SAP-F-2025/randomized-assessment/internal/i18n"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/progress"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
	"github.com/SAP-F-2025/randomized-assessment/internal/session"
	"github.com/SAP-F-2025/randomized-assessment/internal/validator"
)

// SessionService runs assessment sessions: it owns the shuffled layout, the
// answer collector and the progress tracker of every live session.
type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest, userID string) (*SessionResponse, error)
	Get(ctx context.Context, sessionID, userID string) (*SessionResponse, error)
	ToggleAnswer(ctx context.Context, sessionID, userID string, req *ToggleAnswerRequest) (*AnswersResponse, error)
	Answers(ctx context.Context, sessionID, userID string) (*AnswersResponse, error)
	Focus(ctx context.Context, sessionID, userID string, req *FocusRequest, lang string) (*ProgressResponse, error)
	Next(ctx context.Context, sessionID, userID, lang string) (*ProgressResponse, error)
	Previous(ctx context.Context, sessionID, userID, lang string) (*ProgressResponse, error)
	Progress(ctx context.Context, sessionID, userID, lang string) (*ProgressResponse, error)
	Submit(ctx context.Context, sessionID, userID string) (*SubmitResponse, error)
	Abandon(ctx context.Context, sessionID, userID string) error

	// EvictIdle closes live sessions that expired or sat idle. Their state
	// stays in storage and is restored on the next request.
	EvictIdle(now time.Time) int
	StartJanitor(ctx context.Context, interval time.Duration)
	Shutdown()
}

// DraftSink receives answer changes from every collector.
type DraftSink interface {
	collector.AnswerSink
	Flush(ctx context.Context) error
	Discard(sessionID string)
}

type SessionServiceConfig struct {
	SessionTTL         time.Duration
	IdleTimeout        time.Duration
	StrictSingleSelect bool
}

type sessionRuntime struct {
	userID    string
	title     string
	guardKey  string
	expiresAt time.Time

	session   *session.AssessmentSession
	bus       *events.SessionBus
	collector *collector.Collector
	tracker   *progress.Tracker

	lastUsed atomic.Int64
}

func (rt *sessionRuntime) touch(now time.Time) {
	rt.lastUsed.Store(now.UnixNano())
}

func (rt *sessionRuntime) close() {
	rt.tracker.Close()
	rt.collector.Close()
	_ = rt.bus.Close()
}

type guardEntry struct {
	mu    sync.Mutex
	guard *session.Guard
}

type sessionService struct {
	repo         repositories.Repository
	questionSets QuestionSetService
	cache        cache.CacheService
	drafts       DraftSink
	events       SessionEventService
	translator   *i18n.Translator
	validator    *validator.Validator
	config       SessionServiceConfig
	logger       *ServiceLogger
	slog         *slog.Logger

	now   func() time.Time
	seeds func() int64

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
	guards   map[string]*guardEntry
	// sessions being submitted or abandoned; never restored meanwhile
	finalizing map[string]struct{}
}

func NewSessionService(
	repo repositories.Repository,
	questionSets QuestionSetService,
	cacheService cache.CacheService,
	drafts DraftSink,
	eventService SessionEventService,
	translator *i18n.Translator,
	v *validator.Validator,
	config SessionServiceConfig,
	logger *slog.Logger,
) SessionService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 3 * time.Hour
	}
	return &sessionService{
		repo:         repo,
		questionSets: questionSets,
		cache:        cacheService,
		drafts:       drafts,
		events:       eventService,
		translator:   translator,
		validator:    v,
		config:       config,
		logger:       NewServiceLogger(logger, LogConfig{Service: "session", Component: "service"}),
		slog:         logger,
		now:          time.Now,
		seeds:        func() int64 { return time.Now().UnixNano() },
		runtimes:     make(map[string]*sessionRuntime),
		guards:       make(map[string]*guardEntry),
		finalizing:   make(map[string]struct{}),
	}
}

func guardKey(userID, assessmentID string, isExam bool) string {
	return fmt.Sprintf("%s|%s|%t", userID, assessmentID, isExam)
}

func (s *sessionService) guardFor(key string, isExam bool) *guardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.guards[key]
	if !ok {
		entry = &guardEntry{guard: session.NewGuard(isExam, s.seeds)}
		s.guards[key] = entry
	}
	return entry
}

func (s *sessionService) dropGuard(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guards, key)
}

// ===== LIFECYCLE =====

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest, userID string) (resp *SessionResponse, err error) {
	op := s.logger.WithOperation(ctx, "start_session", userID)
	defer func() {
		id := ""
		if resp != nil {
			id = resp.SessionID
		}
		op.LogResult(id, "session", err)
	}()

	if err = s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	set, err := s.questionSets.Get(ctx, req.AssessmentID)
	if err != nil {
		return nil, err
	}

	key := guardKey(userID, req.AssessmentID, req.IsExam())
	entry := s.guardFor(key, req.IsExam())
	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := s.now()
	existing, err := s.repo.Sessions().GetActiveByUser(ctx, nil, userID, req.AssessmentID, now)
	switch {
	case err == nil:
		if existing.IsExam != req.IsExam() {
			return nil, NewBusinessRuleError("session_mode_mismatch",
				"an active session in another mode exists for this assessment",
				map[string]interface{}{"session_id": existing.ID})
		}
		rt, err := s.runtime(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		rt.touch(now)
		return s.sessionResponse(rt, true), nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}

	sess, built, err := entry.guard.Ensure(*set)
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}
	if !built {
		// the memoized session is gone from storage; start over
		entry.guard.Reset()
		if sess, _, err = entry.guard.Ensure(*set); err != nil {
			return nil, fmt.Errorf("failed to build session: %w", err)
		}
	}

	record, err := s.persist(ctx, sess, userID, now)
	if err != nil {
		entry.guard.Reset()
		return nil, err
	}

	rt := s.newRuntime(sess, record, set.Title, key)
	rt.touch(now)
	s.mu.Lock()
	s.runtimes[sess.ID()] = rt
	s.mu.Unlock()

	return s.sessionResponse(rt, false), nil
}

func (s *sessionService) persist(ctx context.Context, sess *session.AssessmentSession, userID string, now time.Time) (*models.SessionRecord, error) {
	state, err := json.Marshal(sess.State())
	if err != nil {
		return nil, fmt.Errorf("failed to encode session state: %w", err)
	}

	record := &models.SessionRecord{
		ID:           sess.ID(),
		AssessmentID: sess.AssessmentID(),
		UserID:       userID,
		IsExam:       sess.IsExam(),
		Status:       models.SessionActive,
		State:        datatypes.JSON(state),
		ExpiresAt:    now.Add(s.config.SessionTTL),
	}
	if err := s.repo.Sessions().Create(ctx, nil, record); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.SessionKey(record.ID), record, s.config.SessionTTL); err != nil {
			s.logger.Warn(ctx, "Failed to cache session", "session_id", record.ID, "error", err)
		}
	}
	return record, nil
}

func (s *sessionService) newRuntime(sess *session.AssessmentSession, record *models.SessionRecord, title, key string) *sessionRuntime {
	logger := s.slog.With("session_id", sess.ID())
	bus := events.NewSessionBus(sess.ID(), logger)

	opts := collector.Options{
		StrictSingleSelect: s.config.StrictSingleSelect,
		Bus:                bus,
		Logger:             logger,
	}
	if s.drafts != nil {
		opts.Sink = s.drafts
	}
	col := collector.New(sess, opts)

	canonical := sess.Canonical()
	ids := make([]string, len(canonical))
	for i, q := range canonical {
		ids[i] = q.ID
	}
	tr := progress.New(ids, progress.Options{Bus: bus, Translator: s.translator, Logger: logger})
	if err := tr.Start(); err != nil {
		logger.Warn("Progress tracker not subscribed", "error", err)
	}
	// The bus replays the mapping to the tracker; applying it here only
	// covers the delivery lag so the first progress read is already ordered.
	if sess.IsExam() {
		tr.ApplyMapping(sess.QuestionMapping())
	}

	return &sessionRuntime{
		userID:    record.UserID,
		title:     title,
		guardKey:  key,
		expiresAt: record.ExpiresAt,
		session:   sess,
		bus:       bus,
		collector: col,
		tracker:   tr,
	}
}

// runtime returns the live session, restoring it from storage if needed.
func (s *sessionService) runtime(ctx context.Context, sessionID string) (*sessionRuntime, error) {
	s.mu.Lock()
	rt, ok := s.runtimes[sessionID]
	_, closing := s.finalizing[sessionID]
	s.mu.Unlock()
	if closing {
		return nil, ErrSessionClosed
	}
	if ok {
		return rt, nil
	}

	record, err := s.loadRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkActive(record); err != nil {
		return nil, err
	}

	set, err := s.questionSets.Get(ctx, record.AssessmentID)
	if err != nil {
		return nil, err
	}

	var state session.State
	if err := json.Unmarshal(record.State, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	sess, err := session.Restore(set.Questions, state)
	if err != nil {
		return nil, NewBusinessRuleError("question_set_changed",
			"the question set changed since this session started",
			map[string]interface{}{"session_id": sessionID, "cause": err.Error()})
	}

	rt = s.newRuntime(sess, record, set.Title, guardKey(record.UserID, record.AssessmentID, record.IsExam))
	s.restoreDraft(ctx, rt)
	rt.touch(s.now())

	s.mu.Lock()
	if _, closing := s.finalizing[sessionID]; closing {
		s.mu.Unlock()
		rt.close()
		return nil, ErrSessionClosed
	}
	if existing, ok := s.runtimes[sessionID]; ok {
		s.mu.Unlock()
		rt.close()
		return existing, nil
	}
	s.runtimes[sessionID] = rt
	s.mu.Unlock()

	s.logger.Info(ctx, "Session restored", "session_id", sessionID, "assessment_id", record.AssessmentID)
	return rt, nil
}

func (s *sessionService) loadRecord(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	if s.cache != nil {
		var cached models.SessionRecord
		if err := s.cache.Get(ctx, cache.SessionKey(sessionID), &cached); err == nil {
			return &cached, nil
		}
	}

	record, err := s.repo.Sessions().GetByID(ctx, nil, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return record, nil
}

func (s *sessionService) checkActive(record *models.SessionRecord) error {
	switch record.Status {
	case models.SessionSubmitted:
		return ErrSessionSubmitted
	case models.SessionAbandoned:
		return ErrSessionClosed
	}
	if !s.now().Before(record.ExpiresAt) {
		return ErrSessionExpired
	}
	return nil
}

// restoreDraft loads the last saved answers. A draft that no longer fits
// the session is dropped rather than blocking the resume.
func (s *sessionService) restoreDraft(ctx context.Context, rt *sessionRuntime) {
	id := rt.session.ID()

	var answers models.FormattedAnswer
	if s.cache != nil {
		if err := s.cache.Get(ctx, cache.DraftKey(id), &answers); err != nil {
			answers = nil
		}
	}
	if answers == nil {
		draft, err := s.repo.Drafts().GetBySessionID(ctx, nil, id)
		if err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				s.logger.Warn(ctx, "Failed to load answer draft", "session_id", id, "error", err)
			}
			return
		}
		answers = draft.Answers.Data()
	}

	if err := rt.collector.Restore(answers); err != nil {
		s.logger.Warn(ctx, "Discarding answer draft", "session_id", id, "error", err)
		return
	}
	rt.tracker.ObserveAnswers(answers)
}

// acquire returns the caller's live session. A runtime sealed by a
// concurrent submit or abandon counts as closed.
func (s *sessionService) acquire(ctx context.Context, sessionID, userID, action string) (*sessionRuntime, error) {
	rt, err := s.runtime(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rt.userID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", action, "session belongs to another user")
	}
	if rt.collector.Sealed() {
		return nil, ErrSessionClosed
	}
	now := s.now()
	if !now.Before(rt.expiresAt) {
		s.evict(sessionID)
		return nil, ErrSessionExpired
	}
	rt.touch(now)
	return rt, nil
}

// beginFinalize marks the session as closing. Only one submit or abandon
// runs per session at a time.
func (s *sessionService) beginFinalize(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.finalizing[sessionID]; busy {
		return false
	}
	s.finalizing[sessionID] = struct{}{}
	return true
}

func (s *sessionService) endFinalize(sessionID string) {
	s.mu.Lock()
	delete(s.finalizing, sessionID)
	s.mu.Unlock()
}

func (s *sessionService) evict(sessionID string) *sessionRuntime {
	s.mu.Lock()
	rt, ok := s.runtimes[sessionID]
	delete(s.runtimes, sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	rt.close()
	return rt
}

func (s *sessionService) Get(ctx context.Context, sessionID, userID string) (*SessionResponse, error) {
	rt, err := s.acquire(ctx, sessionID, userID, "view")
	if err != nil {
		return nil, err
	}
	return s.sessionResponse(rt, true), nil
}

// ===== ANSWERS =====

func (s *sessionService) ToggleAnswer(ctx context.Context, sessionID, userID string, req *ToggleAnswerRequest) (*AnswersResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	rt, err := s.acquire(ctx, sessionID, userID, "answer")
	if err != nil {
		return nil, err
	}
	if _, ok := rt.session.Question(req.QuestionID); !ok {
		return nil, fmt.Errorf("%w: %q", ErrQuestionNotFound, req.QuestionID)
	}

	changed, err := rt.collector.Toggle(ctx, req.QuestionID, *req.Position, req.Selected)
	switch {
	case errors.Is(err, collector.ErrOptionOutOfRange):
		return nil, fmt.Errorf("%w: %v", ErrOptionOutOfRange, err)
	case errors.Is(err, collector.ErrCollectorClosed):
		return nil, ErrSessionClosed
	case err != nil:
		return nil, err
	}

	s.logger.Debug(ctx, "Answer toggled", "session_id", sessionID, "question_id", req.QuestionID,
		"position", *req.Position, "selected", req.Selected, "changed", changed)
	return s.answersResponse(rt, changed), nil
}

func (s *sessionService) Answers(ctx context.Context, sessionID, userID string) (*AnswersResponse, error) {
	rt, err := s.acquire(ctx, sessionID, userID, "view")
	if err != nil {
		return nil, err
	}
	return s.answersResponse(rt, false), nil
}

// ===== PROGRESS =====

func (s *sessionService) Focus(ctx context.Context, sessionID, userID string, req *FocusRequest, lang string) (*ProgressResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	rt, err := s.acquire(ctx, sessionID, userID, "navigate")
	if err != nil {
		return nil, err
	}
	if !rt.tracker.Focus(req.QuestionID) {
		return nil, ErrQuestionNotFound
	}
	return s.progressResponse(rt, lang, true), nil
}

func (s *sessionService) Next(ctx context.Context, sessionID, userID, lang string) (*ProgressResponse, error) {
	rt, err := s.acquire(ctx, sessionID, userID, "navigate")
	if err != nil {
		return nil, err
	}
	_, moved := rt.tracker.GoToNext()
	return s.progressResponse(rt, lang, moved), nil
}

func (s *sessionService) Previous(ctx context.Context, sessionID, userID, lang string) (*ProgressResponse, error) {
	rt, err := s.acquire(ctx, sessionID, userID, "navigate")
	if err != nil {
		return nil, err
	}
	_, moved := rt.tracker.GoToPrevious()
	return s.progressResponse(rt, lang, moved), nil
}

func (s *sessionService) Progress(ctx context.Context, sessionID, userID, lang string) (*ProgressResponse, error) {
	rt, err := s.acquire(ctx, sessionID, userID, "view")
	if err != nil {
		return nil, err
	}
	return s.progressResponse(rt, lang, false), nil
}

// ===== FINALIZATION =====

func (s *sessionService) Submit(ctx context.Context, sessionID, userID string) (resp *SubmitResponse, err error) {
	op := s.logger.WithOperation(ctx, "submit_session", userID)
	defer func() { op.LogResult(sessionID, "session", err) }()

	rt, err := s.acquire(ctx, sessionID, userID, "submit")
	if err != nil {
		return nil, err
	}
	if !s.beginFinalize(sessionID) {
		return nil, ErrSessionClosed
	}
	defer s.endFinalize(sessionID)

	final, err := rt.collector.Seal()
	if err != nil {
		return nil, ErrSessionClosed
	}
	answers := final.Answers

	s.evict(sessionID)
	if s.drafts != nil {
		s.drafts.Discard(sessionID)
		if ferr := s.drafts.Flush(ctx); ferr != nil {
			s.logger.Warn(ctx, "Autosave flush before submit incomplete", "error", ferr)
		}
	}

	now := s.now()
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Drafts().Upsert(ctx, tx, models.NewAnswerDraft(sessionID, answers)); err != nil {
			return err
		}
		return s.repo.Sessions().UpdateStatus(ctx, tx, sessionID, models.SessionSubmitted, now)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrSessionClosed
		}
		if s.drafts != nil {
			// keep the answers for the next attempt
			_ = s.drafts.SubmitAnswers(ctx, sessionID, answers)
		}
		return nil, fmt.Errorf("failed to submit session: %w", err)
	}

	s.finalize(ctx, sessionID, rt.guardKey)
	if s.events != nil {
		if perr := s.events.Submitted(ctx, sessionID, rt.session.AssessmentID(), answers); perr != nil {
			s.logger.Warn(ctx, "Failed to publish submit event", "session_id", sessionID, "error", perr)
		}
	}

	correct, gradable := score(rt.session.Canonical(), final.Canonical)
	return &SubmitResponse{
		SessionID:   sessionID,
		Answers:     answers,
		Answered:    final.Answered,
		Total:       final.Total,
		Correct:     correct,
		Gradable:    gradable,
		SubmittedAt: now,
	}, nil
}

func (s *sessionService) Abandon(ctx context.Context, sessionID, userID string) (err error) {
	op := s.logger.WithOperation(ctx, "abandon_session", userID)
	defer func() { op.LogResult(sessionID, "session", err) }()

	record, err := s.loadRecord(ctx, sessionID)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		return NewPermissionError(userID, sessionID, "session", "abandon", "session belongs to another user")
	}
	switch record.Status {
	case models.SessionSubmitted:
		return ErrSessionSubmitted
	case models.SessionAbandoned:
		return ErrSessionClosed
	}
	if !s.beginFinalize(sessionID) {
		return ErrSessionClosed
	}
	defer s.endFinalize(sessionID)

	s.mu.Lock()
	rt := s.runtimes[sessionID]
	s.mu.Unlock()
	if rt != nil {
		if _, serr := rt.collector.Seal(); serr != nil {
			return ErrSessionClosed
		}
	}

	s.evict(sessionID)
	if s.drafts != nil {
		s.drafts.Discard(sessionID)
		if ferr := s.drafts.Flush(ctx); ferr != nil {
			s.logger.Warn(ctx, "Autosave flush before abandon incomplete", "error", ferr)
		}
	}

	if err = s.repo.Sessions().UpdateStatus(ctx, nil, sessionID, models.SessionAbandoned, s.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrSessionClosed
		}
		return fmt.Errorf("failed to abandon session: %w", err)
	}

	s.finalize(ctx, sessionID, guardKey(record.UserID, record.AssessmentID, record.IsExam))
	if s.events != nil {
		if perr := s.events.Abandoned(ctx, sessionID, record.AssessmentID); perr != nil {
			s.logger.Warn(ctx, "Failed to publish abandon event", "session_id", sessionID, "error", perr)
		}
	}
	return nil
}

func (s *sessionService) finalize(ctx context.Context, sessionID, key string) {
	s.dropGuard(key)
	if s.cache != nil {
		if err := s.cache.DeletePattern(ctx, cache.SessionKey(sessionID)+"*"); err != nil {
			s.logger.Warn(ctx, "Failed to invalidate session cache", "session_id", sessionID, "error", err)
		}
	}
}

// score counts choice questions whose canonical selection equals the key.
func score(questions []models.Question, selections map[string][]int) (correct, gradable int) {
	for _, q := range questions {
		if !q.Kind.IsChoice() || len(q.Correct) == 0 {
			continue
		}
		gradable++

		key := append([]int(nil), q.Correct...)
		sort.Ints(key)
		got := selections[q.ID]
		if len(got) != len(key) {
			continue
		}
		match := true
		for i := range key {
			if key[i] != got[i] {
				match = false
				break
			}
		}
		if match {
			correct++
		}
	}
	return correct, gradable
}

// ===== HOUSEKEEPING =====

func (s *sessionService) EvictIdle(now time.Time) int {
	var stale []*sessionRuntime

	s.mu.Lock()
	for id, rt := range s.runtimes {
		idle := time.Duration(now.UnixNano() - rt.lastUsed.Load())
		if !now.Before(rt.expiresAt) || (s.config.IdleTimeout > 0 && idle > s.config.IdleTimeout) {
			delete(s.runtimes, id)
			delete(s.guards, rt.guardKey)
			stale = append(stale, rt)
		}
	}
	s.mu.Unlock()

	for _, rt := range stale {
		rt.close()
	}
	if len(stale) > 0 && s.drafts != nil {
		if err := s.drafts.Flush(context.Background()); err != nil {
			s.slog.Warn("Autosave flush after eviction incomplete", "error", err)
		}
	}
	return len(stale)
}

func (s *sessionService) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.EvictIdle(s.now()); n > 0 {
					s.slog.Info("Evicted idle sessions", "count", n)
				}
			}
		}
	}()
}

func (s *sessionService) Shutdown() {
	s.mu.Lock()
	live := s.runtimes
	s.runtimes = make(map[string]*sessionRuntime)
	s.mu.Unlock()

	for _, rt := range live {
		rt.close()
	}
	s.slog.Info("Session service stopped", "closed_sessions", len(live))
}

// ===== RESPONSES =====

func modeOf(isExam bool) SessionMode {
	if isExam {
		return ModeExam
	}
	return ModePractice
}

func selections(state models.AnswerState) map[string][]int {
	out := make(map[string][]int, len(state))
	for id := range state {
		if positions := state.Selected(id); len(positions) > 0 {
			out[id] = positions
		}
	}
	return out
}

func (s *sessionService) sessionResponse(rt *sessionRuntime, resumed bool) *SessionResponse {
	display := rt.session.Questions()
	views := make([]QuestionView, len(display))
	for i, q := range display {
		views[i] = QuestionView{
			ID:           q.ID,
			Kind:         q.Kind,
			Prompt:       q.Prompt,
			ImageURL:     q.ImageURL,
			Options:      q.Options,
			DisplayIndex: q.DisplayIndex,
		}
	}

	return &SessionResponse{
		SessionID:    rt.session.ID(),
		AssessmentID: rt.session.AssessmentID(),
		Title:        rt.title,
		Mode:         modeOf(rt.session.IsExam()),
		Status:       models.SessionActive,
		Resumed:      resumed,
		Questions:    views,
		Answers:      rt.collector.Derive(),
		Selections:   selections(rt.collector.State()),
		CreatedAt:    rt.session.CreatedAt(),
		ExpiresAt:    rt.expiresAt,
	}
}

func (s *sessionService) answersResponse(rt *sessionRuntime, changed bool) *AnswersResponse {
	answered, total := rt.collector.Progress()
	return &AnswersResponse{
		SessionID:  rt.session.ID(),
		Changed:    changed,
		Answers:    rt.collector.Derive(),
		Selections: selections(rt.collector.State()),
		Answered:   answered,
		Total:      total,
	}
}

func (s *sessionService) progressResponse(rt *sessionRuntime, lang string, moved bool) *ProgressResponse {
	// The bus keeps the tracker current. Delivery is asynchronous, so catch up
	// with the latest emission here; stale sequences are ignored.
	if answers, seq := rt.collector.Snapshot(); seq > 0 {
		rt.tracker.ApplyAnswers(seq, answers)
	}

	resp := &ProgressResponse{
		SessionID:       rt.session.ID(),
		Moved:           moved,
		Label:           rt.tracker.Label(lang),
		CompletionLabel: rt.tracker.CompletionLabel(lang),
		Completion:      rt.tracker.Completion(),
		Unanswered:      rt.tracker.Unanswered(),
		Items:           rt.tracker.Summary(),
	}
	resp.Answered, resp.Total = rt.tracker.Counts()
	if id, ok := rt.tracker.Focused(); ok {
		resp.FocusedQuestionID = id
		resp.Ordinal, _ = rt.tracker.CurrentOrdinal()
	}
	return resp
}
