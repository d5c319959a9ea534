package handler

import (
	"net/http"
	"strconv"

	"github.com/supportdesk/support-server-go/internal/config"
)

// pageParams is the limit/offset window of a list request. Out-of-range
// values fall back to defaults instead of failing the request.
type pageParams struct {
	Limit  int
	Offset int
}

func parsePage(r *http.Request) pageParams {
	q := r.URL.Query()
	page := pageParams{Limit: config.DefaultPageSize}

	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= config.MaxPageSize {
		page.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		page.Offset = offset
	}
	return page
}

// listResponse is the envelope of paginated endpoints.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// newListResponse never encodes items as null.
func newListResponse[T any](items []T, total int, page pageParams) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}
}
