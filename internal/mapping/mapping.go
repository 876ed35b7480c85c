// Package mapping holds the bijections between canonical and display
// positions of questions and options.
package mapping

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

var (
	ErrLengthMismatch    = errors.New("permutation length does not match source length")
	ErrNotBijective      = errors.New("permutation is not a bijection")
	ErrMissingQuestion   = errors.New("question missing from shuffled sequence")
	ErrDuplicateQuestion = errors.New("duplicate question identity")
)

// QuestionMapping maps canonical question ID to display index. An empty
// mapping means display order equals canonical order.
type QuestionMapping map[string]int

// OptionMapping maps display option position to canonical option position.
type OptionMapping []int

// BuildQuestionMapping locates every canonical question in the shuffled
// sequence.
func BuildQuestionMapping(canonical, shuffled []models.Question) (QuestionMapping, error) {
	if len(canonical) != len(shuffled) {
		return nil, fmt.Errorf("%w: canonical=%d shuffled=%d", ErrLengthMismatch, len(canonical), len(shuffled))
	}

	displayByID := make(map[string]int, len(shuffled))
	for i, q := range shuffled {
		if _, dup := displayByID[q.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateQuestion, q.ID)
		}
		displayByID[q.ID] = i
	}

	m := make(QuestionMapping, len(canonical))
	for _, q := range canonical {
		idx, ok := displayByID[q.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingQuestion, q.ID)
		}
		if _, dup := m[q.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateQuestion, q.ID)
		}
		m[q.ID] = idx
	}
	return m, nil
}

// DisplayIndex returns the display index of a question. ok is false when
// the mapping has no entry (including the empty practice-mode mapping).
func (m QuestionMapping) DisplayIndex(questionID string) (int, bool) {
	idx, ok := m[questionID]
	return idx, ok
}

// Inverse returns display index -> question ID.
func (m QuestionMapping) Inverse() []string {
	out := make([]string, len(m))
	for id, idx := range m {
		if idx >= 0 && idx < len(out) {
			out[idx] = id
		}
	}
	return out
}

// Validate checks the mapping is a bijection onto [0, n).
func (m QuestionMapping) Validate(n int) error {
	if len(m) != n {
		return fmt.Errorf("%w: mapping=%d questions=%d", ErrLengthMismatch, len(m), n)
	}
	seen := make([]bool, n)
	for id, idx := range m {
		if idx < 0 || idx >= n || seen[idx] {
			return fmt.Errorf("%w: question %q -> %d", ErrNotBijective, id, idx)
		}
		seen[idx] = true
	}
	return nil
}

// Clone returns an independent copy.
func (m QuestionMapping) Clone() QuestionMapping {
	out := make(QuestionMapping, len(m))
	for id, idx := range m {
		out[id] = idx
	}
	return out
}

// BuildOptionMapping records, for each display position, the canonical
// position that supplied it. perm is the permutation used to shuffle the
// options (display[i] = canonical[perm[i]]).
func BuildOptionMapping(optionCount int, perm []int) (OptionMapping, error) {
	if len(perm) != optionCount {
		return nil, fmt.Errorf("%w: options=%d permutation=%d", ErrLengthMismatch, optionCount, len(perm))
	}
	m := make(OptionMapping, optionCount)
	copy(m, perm)
	if err := m.Validate(optionCount); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the mapping is a bijection over [0, n).
func (m OptionMapping) Validate(n int) error {
	if len(m) != n {
		return fmt.Errorf("%w: options=%d mapping=%d", ErrLengthMismatch, n, len(m))
	}
	seen := make([]bool, n)
	for display, canonical := range m {
		if canonical < 0 || canonical >= n || seen[canonical] {
			return fmt.Errorf("%w: display %d -> canonical %d", ErrNotBijective, display, canonical)
		}
		seen[canonical] = true
	}
	return nil
}

// Canonical translates a display position.
func (m OptionMapping) Canonical(display int) (int, bool) {
	if display < 0 || display >= len(m) {
		return 0, false
	}
	return m[display], true
}

// Display translates a canonical position back to where it is shown.
func (m OptionMapping) Display(canonical int) (int, bool) {
	for display, c := range m {
		if c == canonical {
			return display, true
		}
	}
	return 0, false
}

// Inverse returns canonical -> display.
func (m OptionMapping) Inverse() []int {
	out := make([]int, len(m))
	for display, canonical := range m {
		out[canonical] = display
	}
	return out
}

// Clone returns an independent copy.
func (m OptionMapping) Clone() OptionMapping {
	return append(OptionMapping(nil), m...)
}

// Snapshot is the immutable pair broadcast to consumers of a session's
// ordering.
type Snapshot struct {
	Questions QuestionMapping          `json:"question_mapping"`
	Options   map[string]OptionMapping `json:"option_mapping"`
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	opts := make(map[string]OptionMapping, len(s.Options))
	for id, m := range s.Options {
		opts[id] = m.Clone()
	}
	return Snapshot{Questions: s.Questions.Clone(), Options: opts}
}

// Empty reports whether the snapshot carries no translation.
func (s Snapshot) Empty() bool {
	return len(s.Questions) == 0 && len(s.Options) == 0
}
