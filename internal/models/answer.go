package models

import (
	"sort"
	"strconv"
	"strings"
)

// OptionDelimiter joins canonical option positions in a FormattedAnswer.
const OptionDelimiter = ","

// AnswerState maps question ID to the set of selected display positions.
type AnswerState map[string]map[int]struct{}

// Clone returns a deep copy.
func (s AnswerState) Clone() AnswerState {
	out := make(AnswerState, len(s))
	for id, set := range s {
		cp := make(map[int]struct{}, len(set))
		for pos := range set {
			cp[pos] = struct{}{}
		}
		out[id] = cp
	}
	return out
}

// Selected returns the selected display positions of a question in ascending order.
func (s AnswerState) Selected(questionID string) []int {
	set := s[questionID]
	out := make([]int, 0, len(set))
	for pos := range set {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}

// AnsweredCount counts questions with at least one selection.
func (s AnswerState) AnsweredCount() int {
	n := 0
	for _, set := range s {
		if len(set) > 0 {
			n++
		}
	}
	return n
}

// FormattedAnswer maps question ID to comma-joined canonical option positions.
type FormattedAnswer map[string]string

// Equal compares two answers by value.
func (f FormattedAnswer) Equal(other FormattedAnswer) bool {
	if len(f) != len(other) {
		return false
	}
	for id, v := range f {
		if ov, ok := other[id]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns a copy safe to hand to collaborators.
func (f FormattedAnswer) Clone() FormattedAnswer {
	out := make(FormattedAnswer, len(f))
	for id, v := range f {
		out[id] = v
	}
	return out
}

// Positions parses the canonical positions of one question.
func (f FormattedAnswer) Positions(questionID string) ([]int, error) {
	raw, ok := f[questionID]
	if !ok || raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, OptionDelimiter)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// JoinPositions renders positions in the given order.
func JoinPositions(positions []int) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, OptionDelimiter)
}
