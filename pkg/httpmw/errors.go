package httpmw

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/germanamz/claudeproxy/pkg/completion"
)

// ErrorBody is the JSON shape of every error answered by the HTTP front ends.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ErrorResponse maps err to a status code, a JSON body and a Retry-After
// value in whole seconds ("" when the remote sent none).
func ErrorResponse(err error) (int, ErrorBody, string) {
	body := ErrorBody{Error: err.Error()}

	var cerr *completion.Error
	if !errors.As(err, &cerr) {
		return http.StatusInternalServerError, body, ""
	}

	body.Kind = cerr.Kind.String()

	retryAfter := ""
	if cerr.RetryAfter > 0 {
		retryAfter = strconv.Itoa(int(math.Ceil(cerr.RetryAfter.Seconds())))
	}

	return completion.HTTPStatus(err), body, retryAfter
}

// WriteError answers with the response ErrorResponse computes for err.
func WriteError(w http.ResponseWriter, err error) {
	status, body, retryAfter := ErrorResponse(err)
	if retryAfter != "" {
		w.Header().Set("Retry-After", retryAfter)
	}

	WriteJSON(w, status, body)
}
