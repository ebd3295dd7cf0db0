package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCredentials is returned by NewPool when no usable credential is
// configured. This is the only fatal error in the package; everything after
// pool construction degrades instead of failing.
var ErrNoCredentials = errors.New("no backend credentials configured")

// Kind classifies a failed backend attempt. The retry orchestrator only needs
// to distinguish these three cases.
type Kind int

const (
	// KindTransport covers network and HTTP-layer failures before a usable
	// response body was obtained.
	KindTransport Kind = iota
	// KindQuota covers rate-limit / quota exhaustion (HTTP 429 or quota
	// keywords in the error message).
	KindQuota
	// KindBackend covers everything else: non-2xx statuses, API-level error
	// payloads, unparseable or empty responses.
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindQuota:
		return "quota"
	default:
		return "backend"
	}
}

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Status  int // HTTP status when known, else 0
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified backend error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithStatus sets the HTTP status code.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// quotaMarkers are the message fragments that mark quota exhaustion when the
// transport layer did not surface an HTTP 429 directly.
var quotaMarkers = []string{"quota", "rate limit", "quotaexceeded", "resource_exhausted", "429"}

// IsQuota reports whether err represents quota/rate-limit exhaustion.
func IsQuota(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		if be.Kind == KindQuota {
			return true
		}
		if be.Status == 429 {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classifyStatus maps an HTTP status plus message into an Error.
func classifyStatus(status int, message string) *Error {
	if status == 429 {
		return NewError(KindQuota, message).WithStatus(status)
	}
	lower := strings.ToLower(message)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return NewError(KindQuota, message).WithStatus(status)
		}
	}
	return NewError(KindBackend, message).WithStatus(status)
}
