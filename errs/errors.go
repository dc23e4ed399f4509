// Package errs defines sentinel errors shared across scoresws packages.
//
// All errors are comparable with errors.Is, even after callers wrap them
// with additional context via fmt.Errorf and the %w verb.
package errs

import "errors"

// Scanner errors, surfaced by the scan package.
var (
	// ErrMissingScoresKey indicates the scores array marker was not found
	// anywhere in the input buffer.
	ErrMissingScoresKey = errors.New("missing scores key")

	// ErrSkipFailed indicates a whitespace skip reached the end of input
	// before finding the expected byte.
	ErrSkipFailed = errors.New("skip condition never met")

	// ErrUnexpectedCharacter indicates a byte violated the expected grammar
	// at a specific position.
	ErrUnexpectedCharacter = errors.New("unexpected character")

	// ErrExpectedBraceOrBracket indicates the byte after the array's opening
	// bracket was neither an element's opening brace nor a closing bracket.
	ErrExpectedBraceOrBracket = errors.New("expected opening brace or closing bracket")

	// ErrMissingID indicates an element closed without an id field in its
	// own top-level scope.
	ErrMissingID = errors.New("missing id")

	// ErrExpectedCommaOrBracket indicates the byte following an element's
	// closing brace was neither a separator nor the array terminator.
	ErrExpectedCommaOrBracket = errors.New("expected comma or closing bracket")

	// ErrNoDigit indicates no decimal digit was found where an id value was
	// expected.
	ErrNoDigit = errors.New("no digit found")

	// ErrUnexpectedEOF indicates the input ended mid-element, with unbalanced
	// braces or with nothing following an element's closing brace.
	ErrUnexpectedEOF = errors.New("unexpected end of input")
)

// Snapshot errors, surfaced by the history package.
var (
	// ErrInvalidMagicNumber indicates the snapshot header does not start with
	// the snapshot magic number.
	ErrInvalidMagicNumber = errors.New("invalid snapshot magic number")

	// ErrInvalidCompressionType indicates the snapshot header carries an
	// unknown compression type.
	ErrInvalidCompressionType = errors.New("invalid compression type")

	// ErrDigestMismatch indicates the snapshot payload digest does not match
	// the digest recorded in the header.
	ErrDigestMismatch = errors.New("snapshot digest mismatch")

	// ErrSnapshotTruncated indicates the snapshot payload ended inside an
	// entry frame.
	ErrSnapshotTruncated = errors.New("snapshot truncated")
)
