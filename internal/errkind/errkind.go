// SPDX-License-Identifier: MIT

// Package errkind classifies errors into the small set of kinds the
// command surface and the job workers report to clients.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a compact, typed failure signal. Keep these stable: the API
// surface and the progress stream depend on them.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindBusy         Kind = "busy"
	KindFetch        Kind = "fetch_error"
	KindTranscribe   Kind = "transcribe_error"
	KindRender       Kind = "render_error"
	KindParse        Kind = "parse_error"
	KindIO           Kind = "io_error"
	KindInternal     Kind = "internal"
)

// Error pairs a kind with a message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error without a cause.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil cause yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf walks the error chain and returns the outermost kind, or
// KindInternal when the error carries no classification.
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the kind describes a transient stage failure
// rather than a caller mistake.
func (k Kind) Retryable() bool {
	switch k {
	case KindFetch, KindIO:
		return true
	}
	return false
}

// Terminal reports whether the kind aborts a job.
func (k Kind) Terminal() bool {
	switch k {
	case KindFetch, KindTranscribe, KindRender, KindIO, KindInternal:
		return true
	}
	return false
}
