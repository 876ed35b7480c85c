// Package progress implements the navigable progress widget of an
// assessment. It never references the answer collector; everything it
// knows about ordering and answers arrives over the session bus.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/randomized-assessment/internal/events"
	"github.com/SAP-F-2025/randomized-assessment/internal/i18n"
	"github.com/SAP-F-2025/randomized-assessment/internal/mapping"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

// Subscriber is the read side of the session bus.
type Subscriber interface {
	SubscribeMappings(ctx context.Context, handler func(events.MappingsEstablishedEvent)) (func(), error)
	SubscribeAnswers(ctx context.Context, handler func(events.AnswersChangedEvent)) (func(), error)
}

type Options struct {
	Bus        Subscriber
	Translator *i18n.Translator
	Logger     *slog.Logger
}

// Item is one entry of the rendered summary, in display order.
type Item struct {
	QuestionID   string `json:"question_id"`
	DisplayIndex int    `json:"display_index"`
	Ordinal      int    `json:"ordinal"`
	Answered     bool   `json:"answered"`
	Focused      bool   `json:"focused"`
}

// Tracker follows the focal question and the completion ratio.
type Tracker struct {
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	canonical    []string       // question IDs in authored order
	canonicalIdx map[string]int // question ID -> canonical index
	display      []string       // question IDs in display order
	mapping      mapping.QuestionMapping
	focused      int // display index, -1 when nothing is focused
	answered     map[string]struct{}
	answersSeq   uint64
	headerOffset int
	unsubscribe  []func()
	closed       bool
}

// New creates a tracker over the canonical question IDs. Until a mapping
// arrives, display order is assumed to equal canonical order.
func New(canonicalIDs []string, opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	t := &Tracker{
		opts:         opts,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		canonical:    append([]string(nil), canonicalIDs...),
		canonicalIdx: make(map[string]int, len(canonicalIDs)),
		display:      append([]string(nil), canonicalIDs...),
		focused:      -1,
		answered:     make(map[string]struct{}),
	}
	for i, id := range canonicalIDs {
		t.canonicalIdx[id] = i
	}
	return t
}

// Start subscribes to the bus. It is a no-op without a bus.
func (t *Tracker) Start() error {
	if t.opts.Bus == nil {
		return nil
	}

	unsubMappings, err := t.opts.Bus.SubscribeMappings(t.ctx, func(ev events.MappingsEstablishedEvent) {
		t.ApplyMapping(ev.Mappings.Questions)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to mappings: %w", err)
	}

	unsubAnswers, err := t.opts.Bus.SubscribeAnswers(t.ctx, func(ev events.AnswersChangedEvent) {
		t.ApplyAnswers(ev.Sequence, ev.Answers)
	})
	if err != nil {
		unsubMappings()
		return fmt.Errorf("failed to subscribe to answers: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		unsubMappings()
		unsubAnswers()
		return nil
	}
	t.unsubscribe = append(t.unsubscribe, unsubMappings, unsubAnswers)
	return nil
}

// ApplyMapping installs the question ordering. Mappings that are not a
// bijection over the tracked questions are ignored. The focused question
// stays focused.
func (t *Tracker) ApplyMapping(qm mapping.QuestionMapping) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(qm) == 0 || t.closed {
		return
	}
	if err := qm.Validate(len(t.canonical)); err != nil {
		t.logger.Warn("Ignoring question mapping", "error", err)
		return
	}
	display := qm.Inverse()
	for _, id := range display {
		if _, ok := t.canonicalIdx[id]; !ok {
			t.logger.Warn("Ignoring question mapping with unknown question", "question_id", id)
			return
		}
	}

	var focusedID string
	if t.focused >= 0 {
		focusedID = t.display[t.focused]
	}
	t.mapping = qm.Clone()
	t.display = display
	if focusedID != "" {
		t.focused = t.mapping[focusedID]
	}
}

// HasMapping reports whether an exam-mode mapping has been received.
func (t *Tracker) HasMapping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.mapping) > 0
}

// ApplyAnswers installs the answers of emission seq unless a newer emission
// was already applied.
func (t *Tracker) ApplyAnswers(seq uint64, answers models.FormattedAnswer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq <= t.answersSeq {
		return
	}
	t.answersSeq = seq
	t.setAnswered(answers)
}

// ObserveAnswers replaces the answered set directly, for hosts that feed the
// tracker without a bus.
func (t *Tracker) ObserveAnswers(answers models.FormattedAnswer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAnswered(answers)
}

func (t *Tracker) setAnswered(answers models.FormattedAnswer) {
	t.answered = make(map[string]struct{}, len(answers))
	for id, csv := range answers {
		if _, known := t.canonicalIdx[id]; known && csv != "" {
			t.answered[id] = struct{}{}
		}
	}
}

// Focus records the question the visibility observer reports as focal.
func (t *Tracker) Focus(questionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, id := range t.display {
		if id == questionID {
			t.focused = i
			return true
		}
	}
	return false
}

// Focused returns the focal question.
func (t *Tracker) Focused() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.focused < 0 {
		return "", false
	}
	return t.display[t.focused], true
}

// GoToNext moves one step forward in display order and returns the question
// the host should scroll to. With nothing focused it goes to the first
// question.
func (t *Tracker) GoToNext() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.display) == 0 {
		return "", false
	}
	switch {
	case t.focused < 0:
		t.focused = 0
	case t.focused < len(t.display)-1:
		t.focused++
	default:
		return t.display[t.focused], false
	}
	return t.display[t.focused], true
}

// GoToPrevious moves one step back in display order.
func (t *Tracker) GoToPrevious() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.focused <= 0 {
		if t.focused == 0 {
			return t.display[0], false
		}
		return "", false
	}
	t.focused--
	return t.display[t.focused], true
}

// CurrentOrdinal returns the 1-based ordinal shown for the focal question:
// its authored position when a mapping is known, display position + 1
// otherwise.
func (t *Tracker) CurrentOrdinal() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.focused < 0 {
		return 0, false
	}
	return t.ordinalAt(t.focused), true
}

func (t *Tracker) ordinalAt(displayIdx int) int {
	if len(t.mapping) == 0 {
		return displayIdx + 1
	}
	return t.canonicalIdx[t.display[displayIdx]] + 1
}

// Label renders the focus caption, e.g. "Đang xem câu 7".
func (t *Tracker) Label(lang string) string {
	ordinal, ok := t.CurrentOrdinal()
	if t.opts.Translator == nil {
		if !ok {
			return "No question in view"
		}
		return fmt.Sprintf("Viewing question %d", ordinal)
	}
	if !ok {
		return t.opts.Translator.Td(lang, "NoQuestionFocused", nil)
	}
	return t.opts.Translator.Td(lang, "ViewingQuestion", map[string]any{"Ordinal": ordinal})
}

// CompletionLabel renders "answered of total".
func (t *Tracker) CompletionLabel(lang string) string {
	answered, total := t.Counts()
	if t.opts.Translator == nil {
		return fmt.Sprintf("%d of %d questions answered", answered, total)
	}
	return t.opts.Translator.Tp(lang, "QuestionsAnswered", answered,
		map[string]any{"Answered": answered, "Total": total})
}

// Counts returns answered and total question counts.
func (t *Tracker) Counts() (answered, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.answered), len(t.canonical)
}

// Completion returns answered/total in [0, 1].
func (t *Tracker) Completion() float64 {
	answered, total := t.Counts()
	if total == 0 {
		return 0
	}
	ratio := float64(answered) / float64(total)
	if ratio > 1 {
		return 1
	}
	return ratio
}

// Summary lists every question in display order with its shown ordinal.
func (t *Tracker) Summary() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	items := make([]Item, len(t.display))
	for i, id := range t.display {
		_, answered := t.answered[id]
		items[i] = Item{
			QuestionID:   id,
			DisplayIndex: i,
			Ordinal:      t.ordinalAt(i),
			Answered:     answered,
			Focused:      i == t.focused,
		}
	}
	return items
}

// Unanswered returns unanswered question IDs ordered by shown ordinal.
func (t *Tracker) Unanswered() []string {
	items := t.Summary()
	sort.Slice(items, func(i, j int) bool { return items[i].Ordinal < items[j].Ordinal })
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !it.Answered {
			out = append(out, it.QuestionID)
		}
	}
	return out
}

// SetHeaderOffset records the header height reported by the host layout.
func (t *Tracker) SetHeaderOffset(px int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.headerOffset = px
}

func (t *Tracker) HeaderOffset() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.headerOffset
}

// WaitForAnchor polls for the header anchor for hosts that cannot report
// the offset themselves. The poll stops when found, when attempts run out,
// when ctx ends, or when the tracker is closed.
func (t *Tracker) WaitForAnchor(ctx context.Context, lookup AnchorLookup, interval time.Duration, maxAttempts int) error {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.ctx, cancel)
	defer stop()

	offset, err := PollAnchor(pollCtx, lookup, interval, maxAttempts)
	if err != nil {
		return err
	}
	t.SetHeaderOffset(offset)
	return nil
}

// Close releases subscriptions and cancels pending anchor polls.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	t.cancel()
	for _, fn := range unsubscribe {
		fn()
	}
}
