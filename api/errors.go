package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a request failure.
type Kind int

const (
	// KindTransport means no usable response arrived: network failure,
	// timeout, or a client-side limit.
	KindTransport Kind = iota
	// KindServer is any other error response.
	KindServer
	// KindValidation is a 400 or 422 response rejecting the request.
	KindValidation
	// KindUnauthorized is a 401 response.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrUnauthorized matches every *Error of KindUnauthorized.
var ErrUnauthorized = errors.New("api: unauthorized")

// ErrInvalidConfig is returned by New for an unusable Config.
var ErrInvalidConfig = errors.New("api: invalid config")

// Error is a failed API request.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 for transport failures
	Message string // server message when one was sent
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("api: ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnauthorized) hold for 401 errors.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Kind == KindUnauthorized
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidation reports whether err is a rejected request.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindValidation
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Message returns the text to show a user for err: the server's message
// when it sent one, otherwise the error itself.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// errorFromResponse builds the error for a non-2xx response.
func errorFromResponse(status int, body []byte) *Error {
	e := &Error{Kind: KindServer, Status: status}
	switch status {
	case http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	}

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		e.Message = payload.Message
	} else {
		e.Message = http.StatusText(status)
	}
	return e
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}
