// Package scoresws extracts score objects from osu! API response bodies
// and streams them to websocket subscribers.
//
// The core is a zero-copy byte scanner that locates the "scores" array in
// a response body and yields each element verbatim, keyed by its id field.
// Extracted scores are deduplicated into an id-ordered set, retained in a
// rolling history, and fanned out to websocket clients as binary frames.
//
// # Core Features
//
//   - Zero-copy scanning: each extracted score aliases the input buffer
//   - Depth-tracked id capture: the id is taken at element level even when
//     nested objects carry their own id fields
//   - Id-ordered, id-unique score sets with range iteration
//   - Snapshot persistence with optional compression (None, Zstd, S2, LZ4)
//   - Websocket fan-out with replay-from-id resume
//
// # Basic Usage
//
// Extracting scores from a response body:
//
//	import "github.com/osukit/scoresws"
//
//	scores := scoresws.NewSet(64)
//	if err := scoresws.Scan(body, scores); err != nil {
//	    log.Fatal(err)
//	}
//
//	for sc := range scores.All() {
//	    fmt.Printf("id=%d raw=%s\n", sc.ID(), sc.Raw())
//	}
//
// Extracted scores share the body's backing array; call Clone on any score
// that must outlive the body.
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the scan and
// score packages. The service itself (fetching, history, websocket serving)
// lives in the fetch, history and ws packages and is wired by cmd/scoresws.
package scoresws

import (
	"github.com/osukit/scoresws/scan"
	"github.com/osukit/scoresws/score"
)

// Scan extracts every element of the "scores" array in body into dst.
//
// Elements already present in dst (by id) are kept as-is. The extracted
// scores alias body, so body must stay untouched for as long as the scores
// in dst are used, or the scores must be cloned.
//
// Parameters:
//   - body: A response body containing a "scores" JSON array.
//   - dst: The set receiving the extracted scores.
//
// Returns an error if body has no "scores" key or the array is malformed;
// scores extracted before the malformed point remain in dst.
func Scan(body []byte, dst *score.Set) error {
	return scan.New(body).Scan(dst)
}

// NewScanner creates a scanner over body for callers that want to drive
// extraction themselves.
func NewScanner(body []byte) *scan.Scanner {
	return scan.New(body)
}

// NewSet creates an empty score set with capacity for n scores.
func NewSet(n int) *score.Set {
	return score.NewSet(n)
}
