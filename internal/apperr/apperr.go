// Package apperr defines the error kinds surfaced by extraction, caching, and navigation.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it.
type Kind string

const (
	KindUnknown               Kind = "unknown"
	KindSourceUnavailable     Kind = "source_unavailable"
	KindNoExtractableText     Kind = "no_extractable_text"
	KindCancelled             Kind = "cancelled"
	KindCacheWriteFailed      Kind = "cache_write_failed"
	KindInvalidPageCoordinate Kind = "invalid_page_coordinate"
)

// Sentinel errors, one per kind.
var (
	// ErrSourceUnavailable is returned when document bytes could not be fetched in time.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoExtractableText is returned when no page of a document yielded text.
	ErrNoExtractableText = errors.New("no extractable text")

	// ErrCancelled is returned when the caller abandoned the request.
	ErrCancelled = errors.New("cancelled")

	// ErrCacheWriteFailed is returned when a cache write failed after purge and retry.
	ErrCacheWriteFailed = errors.New("cache write failed")

	// ErrInvalidPageCoordinate is returned when a page is outside its section or the document.
	ErrInvalidPageCoordinate = errors.New("invalid page coordinate")
)

var sentinels = map[Kind]error{
	KindSourceUnavailable:     ErrSourceUnavailable,
	KindNoExtractableText:     ErrNoExtractableText,
	KindCancelled:             ErrCancelled,
	KindCacheWriteFailed:      ErrCacheWriteFailed,
	KindInvalidPageCoordinate: ErrInvalidPageCoordinate,
}

// Error carries a kind plus the operation and section it happened in.
type Error struct {
	Kind    Kind
	Op      string
	Section string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if s, ok := sentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Section != "" {
		msg = fmt.Sprintf("%s (section %s)", msg, e.Section)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && target == s
}

// New creates an Error of the given kind.
func New(kind Kind, op, section string, err error) *Error {
	return &Error{Kind: kind, Op: op, Section: section, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, s := range sentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return KindUnknown
}

// Retryable reports whether a user may sensibly try the operation again.
func Retryable(kind Kind) bool {
	return kind == KindSourceUnavailable || kind == KindCacheWriteFailed
}

// Silent reports whether failures of this kind are never shown as errors.
func Silent(kind Kind) bool {
	return kind == KindCancelled
}
