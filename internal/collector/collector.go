// Package collector records a test-taker's selections in display
// coordinates and derives the canonical answers handed to the host.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/SAP-F-2025/randomized-assessment/internal/events"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/session"
)

var (
	ErrOptionOutOfRange = errors.New("display option position out of range")
	ErrCollectorClosed  = errors.New("answer collector is closed")
)

// AnswerSink receives canonical answers whenever they change. Calls are
// fire-and-forget: errors are logged and never reach the test-taker.
type AnswerSink interface {
	SubmitAnswers(ctx context.Context, sessionID string, answers models.FormattedAnswer) error
}

// AnswerSinkFunc adapts a function to AnswerSink.
type AnswerSinkFunc func(ctx context.Context, sessionID string, answers models.FormattedAnswer) error

func (f AnswerSinkFunc) SubmitAnswers(ctx context.Context, sessionID string, answers models.FormattedAnswer) error {
	return f(ctx, sessionID, answers)
}

// Broadcaster is the part of the session bus the collector writes to.
type Broadcaster interface {
	PublishMappings(ev events.MappingsEstablishedEvent) error
	PublishAnswers(ev events.AnswersChangedEvent) error
}

type Options struct {
	// StrictSingleSelect gives single_choice questions radio semantics.
	StrictSingleSelect bool
	Sink               AnswerSink
	Bus                Broadcaster
	Logger             *slog.Logger
}

// Collector holds AnswerState for one session. Safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	session *session.AssessmentSession
	opts    Options
	logger  *slog.Logger

	state  models.AnswerState
	last   models.FormattedAnswer
	seq    uint64
	closed bool
}

// New creates a collector for s. In exam mode the session mappings are
// broadcast once here, never again on answer changes.
func New(s *session.AssessmentSession, opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		session: s,
		opts:    opts,
		logger:  logger.With("session_id", s.ID()),
		state:   models.AnswerState{},
		last:    models.FormattedAnswer{},
	}

	if s.IsExam() && opts.Bus != nil {
		if err := opts.Bus.PublishMappings(events.MappingsEstablishedEvent{
			SessionID: s.ID(),
			Mappings:  s.Snapshot(),
		}); err != nil {
			c.logger.Warn("Failed to broadcast session mappings", "error", err)
		}
	}
	return c
}

// Toggle sets the selection state of one display slot. Setting the same
// state twice is a no-op. Unknown question IDs get a selection set lazily.
// changed reports whether the derived answers differ from the last
// emission.
func (c *Collector) Toggle(ctx context.Context, questionID string, displayPos int, selected bool) (changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrCollectorClosed
	}

	q, known := c.session.Question(questionID)
	if displayPos < 0 || (known && displayPos >= q.OptionCount()) {
		return false, fmt.Errorf("%w: question %q position %d", ErrOptionOutOfRange, questionID, displayPos)
	}

	set, ok := c.state[questionID]
	if !ok {
		set = make(map[int]struct{})
		c.state[questionID] = set
	}

	if selected {
		if c.opts.StrictSingleSelect && known && q.Kind == models.KindSingleChoice {
			for pos := range set {
				delete(set, pos)
			}
		}
		set[displayPos] = struct{}{}
	} else {
		delete(set, displayPos)
	}

	return c.emitIfChanged(ctx), nil
}

// Refresh recomputes the derivation without any answer change, as a host
// re-render would. It only emits if the value actually differs.
func (c *Collector) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return c.emitIfChanged(ctx)
}

func (c *Collector) emitIfChanged(ctx context.Context) bool {
	derived := c.derive()
	if derived.Equal(c.last) {
		return false
	}
	c.last = derived
	c.seq++

	if c.opts.Sink != nil {
		if err := c.opts.Sink.SubmitAnswers(ctx, c.session.ID(), derived.Clone()); err != nil {
			c.logger.Warn("Answer sink rejected update", "sequence", c.seq, "error", err)
		}
	}
	if c.opts.Bus != nil {
		if err := c.opts.Bus.PublishAnswers(events.AnswersChangedEvent{
			SessionID: c.session.ID(),
			Sequence:  c.seq,
			Answers:   derived.Clone(),
			Answered:  c.state.AnsweredCount(),
			Total:     c.session.Len(),
		}); err != nil {
			c.logger.Warn("Failed to broadcast answers", "sequence", c.seq, "error", err)
		}
	}
	return true
}

// derive translates every selected display position to its canonical
// position. Positions are visited in ascending display order so equal
// selections always produce identical strings.
func (c *Collector) derive() models.FormattedAnswer {
	out := make(models.FormattedAnswer, len(c.state))
	for id := range c.state {
		display := c.state.Selected(id)
		if len(display) == 0 {
			continue
		}
		om, hasMapping := c.session.OptionMapping(id)
		canonical := make([]int, len(display))
		for i, pos := range display {
			canonical[i] = pos
			if hasMapping {
				if cp, ok := om.Canonical(pos); ok {
					canonical[i] = cp
				}
			}
		}
		out[id] = models.JoinPositions(canonical)
	}
	return out
}

// Restore loads previously saved canonical answers, translating them back
// to display positions. It never emits: the restored value becomes the
// baseline later toggles are compared against.
func (c *Collector) Restore(answers models.FormattedAnswer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCollectorClosed
	}

	state := models.AnswerState{}
	for id := range answers {
		positions, err := answers.Positions(id)
		if err != nil {
			return fmt.Errorf("restore question %q: %w", id, err)
		}
		om, hasMapping := c.session.OptionMapping(id)
		set := make(map[int]struct{}, len(positions))
		for _, canonical := range positions {
			display := canonical
			if hasMapping {
				d, ok := om.Display(canonical)
				if !ok {
					return fmt.Errorf("%w: question %q canonical position %d", ErrOptionOutOfRange, id, canonical)
				}
				display = d
			}
			if q, known := c.session.Question(id); display < 0 || (known && display >= q.OptionCount()) {
				return fmt.Errorf("%w: question %q canonical position %d", ErrOptionOutOfRange, id, canonical)
			}
			set[display] = struct{}{}
		}
		if len(set) > 0 {
			state[id] = set
		}
	}

	c.state = state
	c.last = c.derive()
	return nil
}

// Derive returns the canonical answers for the current state.
func (c *Collector) Derive() models.FormattedAnswer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.derive()
}

// Snapshot returns the last emitted answers with their sequence number.
func (c *Collector) Snapshot() (models.FormattedAnswer, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Clone(), c.seq
}

// State returns a copy of the display-keyed selections.
func (c *Collector) State() models.AnswerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Canonical returns the sorted canonical selections per question, ready to
// compare against Question.Correct.
func (c *Collector) Canonical() map[string][]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedPositions(c.derive())
}

func sortedPositions(answers models.FormattedAnswer) map[string][]int {
	out := make(map[string][]int, len(answers))
	for id := range answers {
		positions, err := answers.Positions(id)
		if err != nil {
			continue
		}
		sort.Ints(positions)
		out[id] = positions
	}
	return out
}

// Final is the outcome of a sealed collector.
type Final struct {
	Answers   models.FormattedAnswer
	Canonical map[string][]int
	Answered  int
	Total     int
}

// Seal closes the collector and returns the answers as of that moment.
// A toggle either lands before Seal and is part of the result, or fails
// with ErrCollectorClosed. Sealing twice fails with ErrCollectorClosed.
func (c *Collector) Seal() (Final, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Final{}, ErrCollectorClosed
	}

	answers := c.derive()
	final := Final{
		Answers:   answers,
		Canonical: sortedPositions(answers),
		Answered:  c.state.AnsweredCount(),
		Total:     c.session.Len(),
	}
	c.closed = true
	c.state = models.AnswerState{}
	return final, nil
}

// Sealed reports whether the collector accepts no more toggles.
func (c *Collector) Sealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Progress returns how many questions have a selection and the total.
func (c *Collector) Progress() (answered, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.AnsweredCount(), c.session.Len()
}

// Session returns the session the collector works on.
func (c *Collector) Session() *session.AssessmentSession {
	return c.session
}

// Close discards the answer state. Later toggles fail with
// ErrCollectorClosed.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.state = models.AnswerState{}
}
