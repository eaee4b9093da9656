package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: DefaultPerPage,
	}
}

// FromRequest extracts pagination parameters from an HTTP request. Missing
// values take the defaults; values that are present but malformed or out of
// range are rejected.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()

	if page := r.URL.Query().Get("page"); page != "" {
		v, err := strconv.Atoi(page)
		if err != nil || v < 1 {
			return Params{}, fmt.Errorf("page must be a positive integer")
		}
		p.Page = v
	}

	if perPage := r.URL.Query().Get("per_page"); perPage != "" {
		v, err := strconv.Atoi(perPage)
		if err != nil || v < 1 || v > MaxPerPage {
			return Params{}, fmt.Errorf("per_page must be between 1 and %d", MaxPerPage)
		}
		p.PerPage = v
	}

	return p, nil
}
