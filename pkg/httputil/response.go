package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/AddressBook/pkg/errors"
	"github.com/utafrali/AddressBook/pkg/logger"
	"github.com/utafrali/AddressBook/pkg/validator"
)

// Response is the JSON envelope of every API response: data on success,
// error otherwise.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the body of the error member.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes v inside the data member.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteErrorCode writes an error body with an explicit status and code,
// stamped with the request's correlation ID.
func WriteErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeErrorBody(w, r, status, ErrorResponse{Code: code, Message: message})
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	body.RequestID = logger.CorrelationIDFromContext(r.Context())
	WriteJSON(w, status, Response{Error: &body})
}

// WriteError maps err to a status and error body via apperrors.Classify.
// Server-side failures are logged with the request-scoped logger, or with
// fallback when the context carries none, and their details are withheld.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	code, status, message := apperrors.Classify(err)

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		)
	}

	writeErrorBody(w, r, status, ErrorResponse{Code: code, Message: message})
}

// WriteValidationError writes a 400. A *validator.ValidationError produces
// VALIDATION_ERROR with per-field messages, anything else INVALID_INPUT.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeErrorBody(w, r, http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		})
		return
	}
	writeErrorBody(w, r, http.StatusBadRequest, ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()})
}

// WriteInvalidParameter writes a 400 INVALID_PARAMETER for a malformed path
// or query parameter.
func WriteInvalidParameter(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorBody(w, r, http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMETER", Message: message})
}

// PaginatedResponse is the envelope of list endpoints.
type PaginatedResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPaginatedResponse fills in the page arithmetic. A nil data slice is
// encoded as [] rather than null.
func NewPaginatedResponse[T any](data []T, totalCount, page, perPage int) PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if perPage > 0 {
		totalPages = (totalCount + perPage - 1) / perPage
	}
	return PaginatedResponse[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
