package session

import (
	"sync"
	"time"

	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

// Guard builds a session at most once per question-set identity. Handing it
// an updated or larger set under the same assessment ID returns the
// existing session untouched; a new assessment ID rebuilds from scratch.
type Guard struct {
	mu       sync.Mutex
	isExam   bool
	seeds    func() int64
	identity string
	current  *AssessmentSession
}

// NewGuard creates a guard. seeds may be nil, in which case the clock is used.
func NewGuard(isExam bool, seeds func() int64) *Guard {
	if seeds == nil {
		seeds = func() int64 { return time.Now().UnixNano() }
	}
	return &Guard{isExam: isExam, seeds: seeds}
}

// Ensure returns the session for set, building it on first use. built is
// true when a new session was constructed by this call.
func (g *Guard) Ensure(set models.QuestionSet) (s *AssessmentSession, built bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil && g.identity == set.AssessmentID {
		return g.current, false, nil
	}

	s, err = New(set, g.isExam, g.seeds())
	if err != nil {
		return nil, false, err
	}
	g.identity = set.AssessmentID
	g.current = s
	return s, true, nil
}

// Current returns the last built session, or nil.
func (g *Guard) Current() *AssessmentSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Reset drops the memoized session so the next Ensure rebuilds.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.identity = ""
	g.current = nil
}
