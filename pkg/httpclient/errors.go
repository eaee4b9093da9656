package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// errorEnvelope is the error body written by the address book API.
type errorEnvelope struct {
	Error *struct {
		Code      string            `json:"code"`
		Message   string            `json:"message"`
		Fields    map[string]string `json:"fields"`
		RequestID string            `json:"request_id"`
	} `json:"error"`
}

var statusKinds = map[int]error{
	http.StatusBadRequest:           apperrors.ErrInvalidInput,
	http.StatusUnsupportedMediaType: apperrors.ErrInvalidInput,
	http.StatusUnprocessableEntity:  apperrors.ErrInvalidInput,
	http.StatusUnauthorized:         apperrors.ErrUnauthorized,
	http.StatusForbidden:            apperrors.ErrForbidden,
	http.StatusNotFound:             apperrors.ErrNotFound,
	http.StatusConflict:             apperrors.ErrConflict,
	http.StatusServiceUnavailable:   apperrors.ErrServiceUnavail,
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// turns it into an error. Envelope bodies become an *apperrors.AppError that
// keeps the server's code and wraps the sentinel matching the status, with
// field errors appended to the message in name order.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s responded %d; reading body: %w", service, resp.StatusCode, err)
	}

	var env errorEnvelope
	if json.Unmarshal(raw, &env) != nil || env.Error == nil {
		return fmt.Errorf("%s responded %d: %s", service, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	msg := service + ": " + env.Error.Message
	if len(env.Error.Fields) > 0 {
		names := make([]string, 0, len(env.Error.Fields))
		for name := range env.Error.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			msg += fmt.Sprintf("; %s: %s", name, env.Error.Fields[name])
		}
	}
	if env.Error.RequestID != "" {
		msg += " (request " + env.Error.RequestID + ")"
	}

	sentinel, known := statusKinds[resp.StatusCode]
	if !known && resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s server error %d (%s): %s", service, resp.StatusCode, env.Error.Code, msg)
	}
	return &apperrors.AppError{
		Code:    env.Error.Code,
		Message: msg,
		Status:  resp.StatusCode,
		Err:     sentinel,
	}
}
