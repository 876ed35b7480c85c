package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/randomized-assessment/internal/events"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

func TestAutoSaver_LatestDraftWins(t *testing.T) {
	store := newMemoryStore()
	publisher := events.NewMockEventPublisher(quietLogger())
	saver := NewAutoSaver(store, nil, NewSessionEventService(publisher, quietLogger()), time.Hour, quietLogger())

	ctx := context.Background()
	for _, csv := range []string{"0", "0,1", "2"} {
		require.NoError(t, saver.SubmitAnswers(ctx, "s-1", models.FormattedAnswer{"q0": csv}))
	}
	saver.Close()

	assert.Equal(t, models.FormattedAnswer{"q0": "2"}, store.draft("s-1"))

	published := publisher.GetPublishedEvents()
	require.NotEmpty(t, published)
	last := published[len(published)-1].Data.(events.AnswersChangedEvent)
	assert.Equal(t, "2", last.Answers["q0"])
}

func TestAutoSaver_DiscardDropsPending(t *testing.T) {
	drafts := &MockAnswerDraftRepository{}
	saver := NewAutoSaver(&MockRepository{drafts: drafts}, nil, nil, time.Hour, quietLogger())

	// hold the worker so the submit stays pending
	saver.flushMu.Lock()
	require.NoError(t, saver.SubmitAnswers(context.Background(), "s-1", models.FormattedAnswer{"q0": "1"}))
	saver.Discard("s-1")
	saver.flushMu.Unlock()

	saver.Close()
	drafts.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoSaver_FlushReportsFailures(t *testing.T) {
	drafts := &MockAnswerDraftRepository{}
	boom := errors.New("disk full")
	drafts.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(boom)

	saver := NewAutoSaver(&MockRepository{drafts: drafts}, nil, nil, time.Hour, quietLogger())
	defer saver.Close()

	saver.flushMu.Lock()
	require.NoError(t, saver.SubmitAnswers(context.Background(), "s-1", models.FormattedAnswer{"q0": "1"}))
	saver.flushMu.Unlock()

	// whoever takes the draft first holds flushMu while saving it
	err := saver.Flush(context.Background())
	if err != nil {
		assert.ErrorIs(t, err, boom)
	}
	drafts.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestAutoSaver_RejectsAfterClose(t *testing.T) {
	saver := NewAutoSaver(newMemoryStore(), nil, nil, time.Hour, quietLogger())
	saver.Close()
	saver.Close()

	err := saver.SubmitAnswers(context.Background(), "s-1", models.FormattedAnswer{"q0": "1"})
	assert.ErrorIs(t, err, ErrAutoSaverClosed)
}
