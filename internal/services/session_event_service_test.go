package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/randomized-assessment/internal/events"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

func TestSessionEventService_PublishEvents(t *testing.T) {
	logger := quietLogger()
	mockPublisher := events.NewMockEventPublisher(logger)
	service := NewSessionEventService(mockPublisher, logger)
	ctx := context.Background()

	t.Run("AnswersChanged", func(t *testing.T) {
		mockPublisher.ClearEvents()
		require.NoError(t, service.AnswersChanged(ctx, "s-1", models.FormattedAnswer{"q0": "2,1"}))

		published := mockPublisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventAnswersChanged, published[0].Type)
		assert.Equal(t, "s-1", published[0].SessionID)

		data, ok := published[0].Data.(events.AnswersChangedEvent)
		require.True(t, ok)
		assert.Equal(t, 1, data.Answered)
	})

	t.Run("Submitted", func(t *testing.T) {
		mockPublisher.ClearEvents()
		require.NoError(t, service.Submitted(ctx, "s-1", "quiz", models.FormattedAnswer{"q1": "0"}))

		published := mockPublisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventSessionSubmitted, published[0].Type)

		data, ok := published[0].Data.(events.SessionClosedEvent)
		require.True(t, ok)
		assert.Equal(t, "quiz", data.AssessmentID)
		assert.Equal(t, "0", data.Answers["q1"])
	})

	t.Run("Abandoned", func(t *testing.T) {
		mockPublisher.ClearEvents()
		require.NoError(t, service.Abandoned(ctx, "s-2", "quiz"))

		published := mockPublisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventSessionAbandoned, published[0].Type)
		assert.Equal(t, "s-2", published[0].SessionID)
	})
}
