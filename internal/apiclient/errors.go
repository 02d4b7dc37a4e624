package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindTransient is a timeout or connection-level failure with no response. It is retried.
	KindTransient Kind = iota + 1

	// KindSemantic is any non-2xx response other than 401. It is never retried.
	KindSemantic

	// KindUnauthorized is a 401 response. It invalidates the session.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindSemantic:
		return "semantic"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by errors.Is against an *Error of the same kind.
var (
	ErrTransient    = errors.New("transient backend failure")
	ErrSemantic     = errors.New("backend rejected request")
	ErrUnauthorized = errors.New("not authenticated")
)

// User-facing messages. These are the only texts a failed call surfaces.
const (
	MsgDuplicate        = "record already exists, please check your input"
	MsgValidationFailed = "request validation failed"
	MsgRequestFailed    = "request failed, please check your input"
	MsgBadRequest       = "invalid request parameters"
	MsgUnauthorized     = "not logged in or session expired"
	MsgForbidden        = "you do not have permission to perform this action"
	MsgNotFound         = "the requested resource does not exist"
	MsgServerError      = "internal server error"
	MsgNetwork          = "network error, please check your connection"
)

// Error is returned for every failed backend call.
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int

	// Message is safe to show to a user.
	Message string

	// Detail is the raw response body, kept for logs only.
	Detail string

	// Retries is the number of retries made before giving up.
	Retries int

	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrSemantic:
		return e.Kind == KindSemantic
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	}
	return false
}

// Message returns the user-facing message of err, falling back to the network message
// for errors that did not come from a backend call.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return MsgNetwork
}

// StatusMessage maps a status code to its user-facing message. For 400 and 403
// a message derived from the response body takes precedence.
func StatusMessage(code int, bodyMessage string) string {
	switch code {
	case http.StatusBadRequest:
		if bodyMessage != "" {
			return bodyMessage
		}
		return MsgBadRequest
	case http.StatusUnauthorized:
		return MsgUnauthorized
	case http.StatusForbidden:
		if bodyMessage != "" {
			return bodyMessage
		}
		return MsgForbidden
	case http.StatusNotFound:
		return MsgNotFound
	case http.StatusInternalServerError:
		return MsgServerError
	default:
		return fmt.Sprintf("request failed: %d", code)
	}
}
