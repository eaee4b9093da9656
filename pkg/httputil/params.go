package httputil

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// MaxBodyBytes caps request bodies accepted by DecodeJSON.
const MaxBodyBytes = 1 << 20

// ParseID parses a positive integer identifier. On failure it writes a 400
// INVALID_PARAMETER and returns false; the handler should return.
func ParseID(w http.ResponseWriter, r *http.Request, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteInvalidParameter(w, r, fmt.Sprintf("invalid id %q: must be a positive integer", raw))
		return 0, false
	}
	return id, true
}

// QueryFloat parses a required, finite float query parameter. On failure it
// writes a 400 INVALID_PARAMETER and returns false.
func QueryFloat(w http.ResponseWriter, r *http.Request, name string) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		WriteInvalidParameter(w, r, fmt.Sprintf("query parameter %q is required", name))
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		WriteInvalidParameter(w, r, fmt.Sprintf("query parameter %q must be a number", name))
		return 0, false
	}
	return v, true
}

// DecodeJSON decodes a single JSON value from the request body into dst.
// Empty, oversized or malformed bodies yield an INVALID_INPUT error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}
	if dec.More() {
		return apperrors.InvalidInput("invalid request body: trailing data")
	}
	return nil
}
