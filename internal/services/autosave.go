package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/randomized-assessment/internal/cache"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories"
)

var ErrAutoSaverClosed = errors.New("autosaver is closed")

// AutoSaver persists answer drafts off the toggle path. SubmitAnswers only
// records the latest answers per session; a background worker writes them
// to the database and cache and announces them. Older pending values of a
// session are overwritten, so only the newest draft is ever written.
type AutoSaver struct {
	repo     repositories.Repository
	cache    cache.CacheService
	events   SessionEventService
	draftTTL time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]models.FormattedAnswer
	closed  bool

	flushMu sync.Mutex
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func NewAutoSaver(repo repositories.Repository, cacheService cache.CacheService, eventService SessionEventService, draftTTL time.Duration, logger *slog.Logger) *AutoSaver {
	a := &AutoSaver{
		repo:     repo,
		cache:    cacheService,
		events:   eventService,
		draftTTL: draftTTL,
		logger:   logger.With("component", "autosaver"),
		pending:  make(map[string]models.FormattedAnswer),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go a.run()
	return a
}

// SubmitAnswers implements collector.AnswerSink. It never blocks on I/O.
func (a *AutoSaver) SubmitAnswers(ctx context.Context, sessionID string, answers models.FormattedAnswer) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAutoSaverClosed
	}
	a.pending[sessionID] = answers.Clone()
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

func (a *AutoSaver) run() {
	defer close(a.stopped)
	for {
		select {
		case <-a.wake:
			if err := a.Flush(context.Background()); err != nil {
				a.logger.Warn("Autosave flush incomplete", "error", err)
			}
		case <-a.done:
			if err := a.Flush(context.Background()); err != nil {
				a.logger.Warn("Final autosave flush incomplete", "error", err)
			}
			return
		}
	}
}

// Flush writes every pending draft now.
func (a *AutoSaver) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	batch := a.pending
	a.pending = make(map[string]models.FormattedAnswer)
	a.mu.Unlock()

	var errs []error
	for sessionID, answers := range batch {
		if err := a.save(ctx, sessionID, answers); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops a pending draft, e.g. when the session was just finalized.
func (a *AutoSaver) Discard(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, sessionID)
}

func (a *AutoSaver) save(ctx context.Context, sessionID string, answers models.FormattedAnswer) error {
	if err := a.repo.Drafts().Upsert(ctx, nil, models.NewAnswerDraft(sessionID, answers)); err != nil {
		return fmt.Errorf("failed to save draft of session %s: %w", sessionID, err)
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, cache.DraftKey(sessionID), answers, a.draftTTL); err != nil {
			a.logger.Warn("Failed to cache draft", "session_id", sessionID, "error", err)
		}
	}
	if a.events != nil {
		if err := a.events.AnswersChanged(ctx, sessionID, answers); err != nil {
			a.logger.Warn("Failed to announce draft", "session_id", sessionID, "error", err)
		}
	}

	a.logger.Debug("Draft saved", "session_id", sessionID, "answered", len(answers))
	return nil
}

// Close stops accepting drafts, writes what is pending and waits for the
// worker to exit.
func (a *AutoSaver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.done)
	<-a.stopped
}
