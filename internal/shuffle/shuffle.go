// Package shuffle produces uniform random permutations for question and
// option ordering.
package shuffle

import (
	"math/rand"
	"sync"
	"time"
)

// Shuffler owns a random source. Safe for concurrent use.
type Shuffler struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	seed int64
}

// New creates a shuffler seeded with seed.
func New(seed int64) *Shuffler {
	return &Shuffler{
		rnd:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// NewRandom creates a shuffler seeded from the clock.
func NewRandom() *Shuffler {
	return New(time.Now().UnixNano())
}

// Seed returns the seed the shuffler was created with.
func (s *Shuffler) Seed() int64 {
	return s.seed
}

// Permutation returns a uniform permutation of [0, n) using Fisher-Yates.
func (s *Shuffler) Permutation(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	if n < 2 {
		return perm
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Shuffle returns a permuted copy of items. items is never modified.
func Shuffle[T any](s *Shuffler, items []T) []T {
	out, _ := ShuffleWithPermutation(s, items)
	return out
}

// ShuffleWithPermutation returns the permuted copy together with the
// permutation used: out[i] == items[perm[i]].
func ShuffleWithPermutation[T any](s *Shuffler, items []T) ([]T, []int) {
	perm := s.Permutation(len(items))
	return Apply(items, perm), perm
}

// Apply builds out[i] = items[perm[i]]. perm must be a permutation of
// len(items); callers validate it beforehand.
func Apply[T any](items []T, perm []int) []T {
	out := make([]T, len(perm))
	for i, src := range perm {
		out[i] = items[src]
	}
	return out
}
