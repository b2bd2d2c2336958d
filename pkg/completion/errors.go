package completion

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotConfigured is wrapped by configuration errors raised when no API key
// has been supplied.
var ErrNotConfigured = errors.New("api key is not configured")

// Kind classifies a completion failure.
type Kind int

const (
	KindUnknown           Kind = iota // Not a completion failure.
	KindConfiguration                 // The adapter is missing its credential or has an unusable endpoint.
	KindInvalidRequest                // The request failed validation.
	KindRemote                        // The remote endpoint answered with a status other than 200.
	KindTransport                     // The HTTP call itself could not complete.
	KindMalformedResponse             // A 200 response did not have the expected shape.
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindConfiguration:     "configuration_error",
	KindInvalidRequest:    "invalid_request",
	KindRemote:            "remote_error",
	KindTransport:         "transport_error",
	KindMalformedResponse: "malformed_response",
}

// String returns the snake_case name of the kind, as used in API responses
// and metric labels.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the failure value of a completion call.
type Error struct {
	Kind       Kind
	Message    string        // Human readable description.
	StatusCode int           // Remote HTTP status (KindRemote only).
	Body       string        // Raw remote error body (KindRemote only).
	RetryAfter time.Duration // Parsed Retry-After header (KindRemote only).
	Err        error         // Underlying cause, if any.
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindRemote && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.StatusCode, e.Message)
	case e.Kind == KindRemote:
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.StatusCode, e.Body)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NotConfigured returns a configuration error.
func NotConfigured() *Error {
	return &Error{Kind: KindConfiguration, Message: "set ANTHROPIC_API_KEY", Err: ErrNotConfigured}
}

// Misconfigured returns a configuration error for a setting other than the
// credential, such as a base URL that cannot form a request.
func Misconfigured(msg string, err error) *Error {
	return &Error{Kind: KindConfiguration, Message: msg, Err: err}
}

// Invalid returns an invalid request error with the given message.
func Invalid(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg}
}

// Remote returns a remote error for the given status and body.
func Remote(status int, body, msg string) *Error {
	return &Error{Kind: KindRemote, StatusCode: status, Body: body, Message: msg}
}

// Transport wraps a network failure.
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

// Malformed returns a malformed response error.
func Malformed(msg string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// IsKind reports whether err carries a completion failure of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps err to the status code a front end should answer with.
// Client-side problems map to 400 and upstream problems to 502.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConfiguration, KindInvalidRequest:
		return http.StatusBadRequest
	case KindRemote, KindTransport, KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
