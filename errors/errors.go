package errors

import (
	"errors"
	"net/http"
)

// Error defines a standard application error.
type Error struct {
	Kind Kind `json:"kind"`
	// Code is the machine-readable error string sent to clients.
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	// Detail is attached verbatim to the client response (gateway payloads, missing fields).
	Detail     interface{} `json:"detail,omitempty"`
	WrappedErr error       `json:"-"`
}

// Error returns the string representation of the error message.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.WrappedErr != nil {
		msg += ": " + e.WrappedErr.Error()
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.WrappedErr
}

// Kind defines the kind or class of an error.
type Kind uint8

// Transport agnostic error "kinds"
const (
	Other           Kind = iota // Unclassified error
	Internal                    // Unexpected failure
	Conflict                    // State does not allow the operation
	Invalid                     // Invalid input, validation error etc
	NotFound                    // Entity does not exist
	Unauthorized                // Unauthorized access
	Forbidden                   // Forbidden access
	Gateway                     // Upstream payment gateway rejected the call
	Mismatch                    // Signature did not authenticate
	Persistence                 // Local store write failed
	TooManyRequests             // Rate limited
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "unclassified error"
	case Internal:
		return "internal error"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid input"
	case NotFound:
		return "entity not found"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Gateway:
		return "payment gateway error"
	case Mismatch:
		return "signature mismatch"
	case Persistence:
		return "persistence failure"
	case TooManyRequests:
		return "too many requests"
	default:
		return "unknown error kind"
	}
}

// HTTPStatus maps the kind onto a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case Invalid, Gateway, Mismatch:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// E builds an *Error from its arguments: a Kind, an error to wrap, a message
// string, and an optional Detail value.
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case error:
			e.WrappedErr = arg
		case string:
			e.Message = arg
		case Detail:
			e.Detail = arg.Value
		}
	}
	return e
}

// Detail wraps a value to be attached to an error built with E.
type Detail struct{ Value interface{} }

// WithCode returns err with Code set when err is an *Error.
func WithCode(err error, code string) error {
	var e *Error
	if errors.As(err, &e) {
		e.Code = code
	}
	return err
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf returns the wire code of the first *Error in err's chain, or "unexpected".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "unexpected"
}

// DetailOf returns the Detail of the first *Error in err's chain.
func DetailOf(err error) interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return nil
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}

func NewInternalServerError(msg string) error {
	return E(Internal, msg)
}

func NewNotFoundError(msg string) error {
	return E(NotFound, msg)
}

func NewInvalidParamsError(msg string) error {
	return E(Invalid, msg)
}

func NewUnauthorizedError(msg string) error {
	return E(Unauthorized, msg)
}

func NewForbiddenError(msg string) error {
	return E(Forbidden, msg)
}

func NewConflictError(msg string) error {
	return E(Conflict, msg)
}

var (
	As     = errors.As
	Is     = errors.Is
	New    = errors.New
	Unwrap = errors.Unwrap
)
