// Package scan extracts scores from the raw byte body of a scores API
// response without building a parsed tree.
//
// The response is expected to be of the following form:
//
//	{
//	    "scores": [{ ... }, ...],
//	    "cursor": {"id": number},
//	    "cursor_string": "..."
//	}
//
// The cursor fields carry the *newest* score id, but pagination wants the
// *oldest* one, so they are ignored entirely: the scanner only locates the
// scores array, slices each element verbatim, and extracts each element's
// own top-level "id". Callers derive the pagination cursor from the oldest
// extracted id.
//
// The scanner walks brace positions only, tracking nesting depth, so an
// "id" field inside a nested sub-object (e.g. the score's user) never
// shadows the element's own id, regardless of field order.
package scan

import (
	"bytes"
	"fmt"

	"github.com/osukit/scoresws/errs"
	"github.com/osukit/scoresws/score"
)

// Byte literals that anchor the scan. The array marker is searched across
// the whole input; the id marker only within depth-1 gaps of an element.
var (
	scoresKey = []byte(`"scores":`)
	idKey     = []byte(`"id":`)
)

// Scanner is a forward-only cursor over one immutable response body.
//
// A Scanner is single-use: create one per buffer and call Scan once. It
// performs no I/O and never mutates the buffer; the scores it produces
// alias the buffer, so the buffer must stay unmodified for their lifetime.
type Scanner struct {
	data []byte
	pos  int
}

// New creates a Scanner over the given response body.
func New(data []byte) *Scanner {
	return &Scanner{data: data}
}

// Scan extracts every element of the scores array into dst.
//
// Each element is inserted as a zero-copy Score; duplicates by id are
// discarded in favor of the score already present. On failure dst keeps any
// scores inserted before the failure point (each insertion is independently
// valid) but the error return is authoritative: a failed scan must not be
// treated as success.
//
// All structural errors are wrapped with the full input buffer for
// diagnosis and match the sentinels in the errs package via errors.Is.
func (s *Scanner) Scan(dst *score.Set) error {
	start := bytes.Index(s.data, scoresKey)
	if start < 0 {
		return fmt.Errorf("%w in body %q", errs.ErrMissingScoresKey, s.data)
	}

	s.pos = start + len(scoresKey)

	if err := s.scanScores(dst); err != nil {
		return fmt.Errorf("scan scores in body %q: %w", s.data, err)
	}

	return nil
}

// scanScores consumes the array: opening bracket, elements, terminator.
func (s *Scanner) scanScores(dst *score.Set) error {
	start, err := skipSpaces(s.data[s.pos:], func(b byte) bool { return b == '[' })
	if err != nil {
		return fmt.Errorf("skip to opening bracket: %w", err)
	}

	s.pos += start + 1
	if s.pos >= len(s.data) {
		return errs.ErrUnexpectedEOF
	}

	switch s.data[s.pos] {
	case '{':
	case ']':
		s.pos++
		return nil
	default:
		return fmt.Errorf("%w, got %q", errs.ErrExpectedBraceOrBracket, s.data[s.pos])
	}

	return s.scanElements(dst)
}

// scanElements walks brace positions from the first element's opening brace
// (already verified at s.pos) until the array's closing bracket.
//
// State per the depth-tracked scan:
//   - depth: nesting level, 1 for the already-consumed first brace
//   - elemStart: offset where the current element began (depth 0 -> 1)
//   - checkpoint: most recent offset at which depth was exactly 1, bounding
//     the id search to the element's own scope
func (s *Scanner) scanElements(dst *score.Set) error {
	buf := s.data[s.pos:]

	var (
		elemStart  int
		checkpoint int
		depth      = 1
		id         uint64
		haveID     bool
	)

	// buf[0] is the first element's opening brace; start after it.
	for i := nextBrace(buf, 1); i >= 0; i = nextBrace(buf, i+1) {
		curr := depth + 1
		if buf[i] == '}' {
			curr = depth - 1
		}

		// The id is only searched in depth-1 gaps: byte ranges between two
		// consecutive checkpoints while the element's own scope is current.
		// Text inside nested sub-objects never falls in such a gap, so a
		// nested "id" cannot be captured.
		if !haveID && depth == 1 {
			gap := buf[checkpoint:i]
			if k := bytes.Index(gap, idKey); k >= 0 {
				n, err := peekUint(gap[k+len(idKey):])
				if err != nil {
					return fmt.Errorf("peek id value: %w", err)
				}

				id = n
				haveID = true
			}
		}

		switch curr {
		case 1:
			if depth == 0 {
				elemStart = i
			}

			checkpoint = i
		case 0:
			raw := buf[elemStart : i+1]
			if !haveID {
				return fmt.Errorf("%w within element %q", errs.ErrMissingID, raw)
			}

			dst.Add(score.New(raw, id))
			haveID = false

			if i+1 >= len(buf) {
				return errs.ErrUnexpectedEOF
			}

			switch buf[i+1] {
			case ',':
			case ']':
				return nil
			default:
				return fmt.Errorf("%w, got %q", errs.ErrExpectedCommaOrBracket, buf[i+1])
			}
		}

		depth = curr
	}

	// Ran out of braces before the array terminator.
	return errs.ErrUnexpectedEOF
}

// nextBrace returns the offset of the first structural brace at or after
// from, or -1 if there is none.
func nextBrace(buf []byte, from int) int {
	if from >= len(buf) {
		return -1
	}

	if i := bytes.IndexAny(buf[from:], "{}"); i >= 0 {
		return from + i
	}

	return -1
}

// skipSpaces advances over consecutive ASCII space bytes and returns the
// offset of the first byte satisfying pred.
//
// A non-space byte failing pred yields ErrUnexpectedCharacter; exhausting
// the input yields ErrSkipFailed.
func skipSpaces(buf []byte, pred func(byte) bool) (int, error) {
	for i, b := range buf {
		switch {
		case b == ' ':
		case pred(b):
			return i, nil
		default:
			return 0, fmt.Errorf("%w %q", errs.ErrUnexpectedCharacter, b)
		}
	}

	return 0, errs.ErrSkipFailed
}

// peekUint skips leading spaces and accumulates a maximal run of ASCII
// decimal digits into a uint64.
//
// There is no overflow detection; score ids fit comfortably in 64 bits.
func peekUint(buf []byte) (uint64, error) {
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }

	start, err := skipSpaces(buf, isDigit)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errs.ErrNoDigit, err)
	}

	var n uint64
	for _, b := range buf[start:] {
		if !isDigit(b) {
			break
		}

		n = n*10 + uint64(b-'0')
	}

	return n, nil
}
