package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	TopicMappings = "mappings"
	TopicAnswers  = "answers"
)

var ErrBusClosed = errors.New("session bus is closed")

// SessionBus is the publish/subscribe channel of a single assessment
// session. Mappings are persistent: subscribers joining late still receive
// the snapshot published before they subscribed. Answers are live only, a
// late subscriber starts from the next change. Delivery is asynchronous and
// unordered; payloads are JSON copies.
type SessionBus struct {
	sessionID string
	mappings  *gochannel.GoChannel
	answers   *gochannel.GoChannel
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSessionBus creates a bus scoped to sessionID.
func NewSessionBus(sessionID string, logger *slog.Logger) *SessionBus {
	wmLogger := watermill.NewSlogLogger(logger)
	return &SessionBus{
		sessionID: sessionID,
		mappings: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
			Persistent:          true,
		}, wmLogger),
		answers: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, wmLogger),
		logger: logger.With("session_id", sessionID),
	}
}

func (b *SessionBus) channel(topic string) *gochannel.GoChannel {
	if topic == TopicMappings {
		return b.mappings
	}
	return b.answers
}

// SessionID returns the session the bus belongs to.
func (b *SessionBus) SessionID() string {
	return b.sessionID
}

// PublishMappings broadcasts the session ordering.
func (b *SessionBus) PublishMappings(ev MappingsEstablishedEvent) error {
	ev.SessionID = b.sessionID
	return b.publish(TopicMappings, EventMappingsEstablished, ev)
}

// PublishAnswers broadcasts canonical answers after a change.
func (b *SessionBus) PublishAnswers(ev AnswersChangedEvent) error {
	ev.SessionID = b.sessionID
	return b.publish(TopicAnswers, EventAnswersChanged, ev)
}

func (b *SessionBus) publish(topic string, t EventType, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("event_type", string(t))
	msg.Metadata.Set("session_id", b.sessionID)

	if err := b.channel(topic).Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", topic, err)
	}
	return nil
}

// SubscribeMappings registers handler for mapping snapshots. The returned
// function unsubscribes and waits for the handler goroutine to finish.
func (b *SessionBus) SubscribeMappings(ctx context.Context, handler func(MappingsEstablishedEvent)) (func(), error) {
	return subscribe(b, ctx, TopicMappings, handler)
}

// SubscribeAnswers registers handler for answer changes published after
// the call.
func (b *SessionBus) SubscribeAnswers(ctx context.Context, handler func(AnswersChangedEvent)) (func(), error) {
	return subscribe(b, ctx, TopicAnswers, handler)
}

func subscribe[T any](b *SessionBus, ctx context.Context, topic string, handler func(T)) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	subCtx, cancel := context.WithCancel(ctx)
	msgs, err := b.channel(topic).Subscribe(subCtx, topic)
	if err != nil {
		b.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	b.wg.Add(1)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer b.wg.Done()
		defer close(done)
		for msg := range msgs {
			var payload T
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				b.logger.Warn("Dropping undecodable bus message", "topic", topic, "error", err)
				msg.Ack()
				continue
			}
			handler(payload)
			msg.Ack()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// Close stops delivery and waits for all handler goroutines to return.
func (b *SessionBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := errors.Join(b.mappings.Close(), b.answers.Close())
	b.wg.Wait()
	return err
}
