// Package apperr classifies errors returned by the coach service so that
// transports can map them to status codes without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of an application error.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Forbidden
	MalformedResponse
	GenerationTimeout
	GenerationFailure
	Persistence
)

var kindNames = map[Kind]string{
	Internal:          "internal",
	Validation:        "validation",
	NotFound:          "not_found",
	Forbidden:         "forbidden",
	MalformedResponse: "malformed_response",
	GenerationTimeout: "generation_timeout",
	GenerationFailure: "generation_failure",
	Persistence:       "persistence",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the Kind named s. Unknown names are Internal.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return Internal
}

// ExcerptLimit caps the diagnostic excerpt attached to malformed model output.
const ExcerptLimit = 500

// Error is a classified error. Field names the offending input field for
// validation errors; Excerpt holds a truncated copy of bad model output.
type Error struct {
	Kind    Kind
	Field   string
	Msg     string
	Excerpt string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Invalid returns a validation error for field.
func Invalid(field, format string, args ...any) *Error {
	return &Error{Kind: Validation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Missing returns a not-found error.
func Missing(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

// Denied returns a forbidden error.
func Denied(format string, args ...any) *Error {
	return &Error{Kind: Forbidden, Msg: fmt.Sprintf(format, args...)}
}

// Malformed returns a malformed-response error carrying at most
// ExcerptLimit characters of the offending text.
func Malformed(msg, text string, err error) *Error {
	return &Error{Kind: MalformedResponse, Msg: msg, Excerpt: Truncate(text, ExcerptLimit), Err: err}
}

// Wrap classifies err with kind and a short description of the operation.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
