// Package history retains recently seen scores so that late or resuming
// subscribers can catch up, and persists the retained window across process
// restarts via compressed snapshots.
package history

import (
	"sync"
	"time"

	"github.com/osukit/scoresws/score"
)

// History is a mutex-guarded window of recently seen scores.
//
// Scores are deduplicated by id: the first occurrence wins and later
// occurrences are rejected, which makes Add double as the "have we already
// forwarded this score" check of the fetch loop. Entries leave the window
// only through Trim or a caller's explicit decision; the scanner and
// fetcher never remove anything.
type History struct {
	mu     sync.Mutex
	scores score.Set
	seen   map[uint64]time.Time
}

// New creates an empty history.
func New() *History {
	return &History{
		seen: make(map[uint64]time.Time),
	}
}

// Add records sc if its id has not been seen yet and reports whether it was
// added. The score's bytes are copied, so the buffer sc was scanned from may
// be recycled afterwards.
func (h *History) Add(sc score.Score) bool {
	return h.addAt(sc, time.Now())
}

func (h *History) addAt(sc score.Score, at time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Check before cloning so duplicates (the common case on overlapping
	// fetch pages) cost no allocation.
	if h.scores.Contains(sc.ID()) {
		return false
	}

	h.scores.Add(sc.Clone())
	h.seen[sc.ID()] = at

	return true
}

// Since returns the retained scores whose id is strictly greater than id,
// in ascending id order. The returned scores own their bytes and stay valid
// after the history is trimmed.
func (h *History) Since(id uint64) []score.Score {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []score.Score
	for sc := range h.scores.Since(id) {
		out = append(out, sc)
	}

	return out
}

// Newest returns the largest retained id, or false if the history is empty.
func (h *History) Newest() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sc, ok := h.scores.Newest()
	if !ok {
		return 0, false
	}

	return sc.ID(), true
}

// Oldest returns the smallest retained id, or false if the history is empty.
func (h *History) Oldest() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sc, ok := h.scores.Oldest()
	if !ok {
		return 0, false
	}

	return sc.ID(), true
}

// Len returns the number of retained scores.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.scores.Len()
}

// Trim drops entries recorded more than maxAge ago and returns how many
// were removed.
func (h *History) Trim(maxAge time.Duration) int {
	return h.trimAt(time.Now().Add(-maxAge))
}

func (h *History) trimAt(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, at := range h.seen {
		if at.Before(cutoff) {
			h.scores.Delete(id)
			delete(h.seen, id)
			removed++
		}
	}

	return removed
}
