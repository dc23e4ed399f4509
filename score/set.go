package score

import (
	"cmp"
	"iter"
	"slices"
)

// Set is an ascending-ordered, unique-by-id collection of scores.
//
// Invariants:
//   - No two members share an id.
//   - Iteration order is ascending id.
//   - On duplicate insertion the previously stored score is retained
//     unchanged; the new one is discarded.
//
// The zero value is an empty set ready for use. A Set is not safe for
// concurrent mutation; callers sharing one instance must serialize access.
type Set struct {
	scores []Score
}

// NewSet creates an empty set with room for n scores.
func NewSet(n int) *Set {
	return &Set{scores: make([]Score, 0, n)}
}

func (s *Set) search(id uint64) (int, bool) {
	return slices.BinarySearchFunc(s.scores, id, func(sc Score, id uint64) int {
		return cmp.Compare(sc.id, id)
	})
}

// Add inserts sc into the set, keeping ascending id order.
//
// If a score with the same id is already present it is retained unchanged
// and Add returns false. Otherwise sc is inserted and Add returns true.
func (s *Set) Add(sc Score) bool {
	i, found := s.search(sc.id)
	if found {
		return false
	}

	s.scores = slices.Insert(s.scores, i, sc)

	return true
}

// Contains reports whether a score with the given id is present.
func (s *Set) Contains(id uint64) bool {
	_, found := s.search(id)
	return found
}

// Delete removes the score with the given id, if present, and reports
// whether a removal happened. The set itself never removes entries; removal
// is always an owning-caller operation.
func (s *Set) Delete(id uint64) bool {
	i, found := s.search(id)
	if !found {
		return false
	}

	s.scores = slices.Delete(s.scores, i, i+1)

	return true
}

// Len returns the number of scores in the set.
func (s *Set) Len() int {
	return len(s.scores)
}

// Oldest returns the score with the smallest id, or false if the set is
// empty.
func (s *Set) Oldest() (Score, bool) {
	if len(s.scores) == 0 {
		return Score{}, false
	}

	return s.scores[0], true
}

// Newest returns the score with the largest id, or false if the set is
// empty.
func (s *Set) Newest() (Score, bool) {
	if len(s.scores) == 0 {
		return Score{}, false
	}

	return s.scores[len(s.scores)-1], true
}

// All returns a sequence over the scores in ascending id order.
func (s *Set) All() iter.Seq[Score] {
	return func(yield func(Score) bool) {
		for _, sc := range s.scores {
			if !yield(sc) {
				return
			}
		}
	}
}

// Since returns a sequence over the scores whose id is strictly greater
// than id, in ascending id order.
func (s *Set) Since(id uint64) iter.Seq[Score] {
	start, found := s.search(id)
	if found {
		start++
	}

	return func(yield func(Score) bool) {
		for _, sc := range s.scores[start:] {
			if !yield(sc) {
				return
			}
		}
	}
}
