// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the machine-readable class of an error.
type Kind string

const (
	IndexUnavailable           Kind = "IndexUnavailable"
	EmbeddingDimensionMismatch Kind = "EmbeddingDimensionMismatch"
	GenerationFailed           Kind = "GenerationFailed"
	InvalidReference           Kind = "InvalidReference"
	UpstreamTimeout            Kind = "UpstreamTimeout"
	UpstreamUnavailable        Kind = "UpstreamUnavailable"
	InvalidInput               Kind = "InvalidInput"
	NotFound                   Kind = "NotFound"
	Internal                   Kind = "Internal"
)

// Error carries a Kind plus a human-readable detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && !strings.Contains(e.Detail, e.Err.Error()) {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and detail to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailOf returns the detail of the outermost *Error, or err.Error().
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return err.Error()
}
