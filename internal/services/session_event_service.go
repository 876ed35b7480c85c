package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/randomized-assessment/internal/events"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

// SessionEventService announces session lifecycle changes to consumers
// outside the process (autosave mirrors, grading pipelines)
type SessionEventService interface {
	AnswersChanged(ctx context.Context, sessionID string, answers models.FormattedAnswer) error
	Submitted(ctx context.Context, sessionID, assessmentID string, answers models.FormattedAnswer) error
	Abandoned(ctx context.Context, sessionID, assessmentID string) error
}

type sessionEventService struct {
	eventPublisher events.EventPublisher
	logger         *slog.Logger
}

func NewSessionEventService(eventPublisher events.EventPublisher, logger *slog.Logger) SessionEventService {
	return &sessionEventService{
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

func (s *sessionEventService) AnswersChanged(ctx context.Context, sessionID string, answers models.FormattedAnswer) error {
	event := events.NewAnswersChangedEvent(events.AnswersChangedEvent{
		SessionID: sessionID,
		Answers:   answers,
		Answered:  len(answers),
	})
	return s.publish(ctx, event)
}

func (s *sessionEventService) Submitted(ctx context.Context, sessionID, assessmentID string, answers models.FormattedAnswer) error {
	s.logger.Info("Publishing session submitted event", "session_id", sessionID, "assessment_id", assessmentID)
	return s.publish(ctx, events.NewSessionSubmittedEvent(sessionID, assessmentID, answers))
}

func (s *sessionEventService) Abandoned(ctx context.Context, sessionID, assessmentID string) error {
	s.logger.Info("Publishing session abandoned event", "session_id", sessionID, "assessment_id", assessmentID)
	return s.publish(ctx, events.NewSessionAbandonedEvent(sessionID, assessmentID))
}

func (s *sessionEventService) publish(ctx context.Context, event *events.SessionEvent) error {
	if err := s.eventPublisher.PublishSessionEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}
