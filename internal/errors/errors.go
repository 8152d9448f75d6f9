// Package errors provides structured domain errors whose identifiers are
// resolved into display names only when they reach the boundary.
package errors

import (
	stderrors "errors"
	"net/http"
	"strings"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadValues
	KindNotFound
	KindNotAllowed
	KindUnauthenticated
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindBadValues:
		return "BadValues"
	case KindNotFound:
		return "NotFound"
	case KindNotAllowed:
		return "NotAllowed"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// HTTPStatus maps the kind onto a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadValues:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotAllowed:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type. Message is a template whose {key}
// placeholders are filled from Metadata, or from resolved names when a
// formatter is registered for Code.
type Error struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface with the raw rendering.
func (e *Error) Error() string {
	msg := e.Render(nil)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Render fills the message template. Values in overrides win over the raw
// metadata; unknown placeholders are left as written.
func (e *Error) Render(overrides map[string]string) string {
	if !strings.Contains(e.Message, "{") {
		return e.Message
	}
	var b strings.Builder
	rest := e.Message
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		key := rest[open+1 : open+end]
		b.WriteString(rest[:open])
		if v, ok := overrides[key]; ok {
			b.WriteString(v)
		} else if v, ok := e.Metadata[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[open : open+end+1])
		}
		rest = rest[open+end+1:]
	}
	return b.String()
}

func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithMetadata creates a domain error carrying raw identifiers for
// deferred formatting.
func WithMetadata(kind Kind, code Code, message string, metadata map[string]string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Metadata: metadata}
}

func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

func BadValues(message string) *Error {
	return New(KindBadValues, CodeBadValues, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, CodeNotFound, message)
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, CodeUnauthenticated, message)
}

// Unavailable marks a failure of the backing store or another dependency.
// It returns nil when cause is nil.
func Unavailable(cause error) error {
	if cause == nil {
		return nil
	}
	var domain *Error
	if stderrors.As(cause, &domain) {
		return cause
	}
	return Wrap(KindUnavailable, CodeUnavailable, "the service could not complete the request", cause)
}

// As extracts the first domain error in err's chain.
func As(err error) (*Error, bool) {
	var domain *Error
	if stderrors.As(err, &domain) {
		return domain, true
	}
	return nil, false
}

// KindOf classifies err. Errors outside the domain are Unavailable.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if domain, ok := As(err); ok {
		return domain.Kind
	}
	return KindUnavailable
}

// HasCode reports whether err carries a domain error with code.
func HasCode(err error, code Code) bool {
	domain, ok := As(err)
	return ok && domain.Code == code
}
