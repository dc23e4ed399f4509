// Package score defines the score entity extracted from an API response and
// the ordered, unique-by-id collection the scanner populates.
//
// A Score pairs the verbatim bytes of one array element with the unsigned
// identifier found in that element's own top-level scope. Identity and
// ordering are defined solely by the identifier; the bytes are payload.
package score

// Score is one extracted array element: the exact byte range of the element
// (opening brace to matching closing brace, inclusive) plus its id.
//
// The raw bytes are a zero-copy sub-slice of the buffer that was scanned.
// The scanner never copies or re-encodes them, so a Score remains valid
// only as long as the original buffer is left unmodified. Treat scanned
// buffers as immutable.
type Score struct {
	raw []byte
	id  uint64
}

// New creates a Score from its verbatim bytes and id.
//
// The raw slice is retained as-is, not copied.
func New(raw []byte, id uint64) Score {
	return Score{raw: raw, id: id}
}

// OnlyID creates a Score that carries an id but no payload bytes.
//
// It is a pure comparison key: use it to probe a Set for the presence of an
// id, or as a pagination boundary, without needing real payload bytes.
func OnlyID(id uint64) Score {
	return Score{id: id}
}

// Clone returns a Score whose bytes are copied into freshly allocated
// memory, detaching it from the scanned buffer.
//
// Use it when a score must outlive the buffer it was scanned from, e.g.
// before a pooled response buffer is recycled.
func (s Score) Clone() Score {
	if s.raw == nil {
		return Score{id: s.id}
	}

	raw := make([]byte, len(s.raw))
	copy(raw, s.raw)

	return Score{raw: raw, id: s.id}
}

// ID returns the score's identifier.
func (s Score) ID() uint64 {
	return s.id
}

// Raw returns the score's verbatim bytes, exactly as they appeared in the
// scanned buffer. The returned slice aliases that buffer.
//
// This is the outbound wire payload: forward it unchanged as a binary frame,
// never re-serialize it.
func (s Score) Raw() []byte {
	return s.raw
}
