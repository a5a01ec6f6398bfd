package pagination

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit inside int for every accepted limit.
	MaxPage = math.MaxInt32 / MaxLimit
)

// Params is a page/limit window over an ordered result set. Page is 1-based.
// A zero Limit means the whole result set.
type Params struct {
	Page  int
	Limit int
}

// All is the window covering every row.
var All = Params{Page: 1}

// Parse reads page and limit query parameters, falling back to defaults on missing or bad input.
// Pages past MaxPage are clamped to it and come back empty.
func Parse(r *http.Request) Params {
	p := Params{Page: 1, Limit: DefaultLimit}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	return p
}

// ParseOr is Parse when the request names page or limit, and fallback otherwise.
func ParseOr(r *http.Request, fallback Params) Params {
	q := r.URL.Query()
	if q.Get("page") == "" && q.Get("limit") == "" {
		return fallback
	}
	return Parse(r)
}

// Unbounded reports whether p covers every row.
func (p Params) Unbounded() bool { return p.Limit <= 0 }

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	if p.Page < 1 || p.Unbounded() {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// HasMore reports whether rows remain after this page.
func (p Params) HasMore(total int) bool {
	if p.Unbounded() {
		return false
	}
	return p.Offset()+p.Limit < total
}
