package api

import (
	"net/http"
	"strconv"

	"github.com/codephoenix86/fastchat/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Pagination describes the page returned alongside a listing.
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int64 `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

type pageRequest struct {
	page  int
	limit int
	sort  store.Sort
}

// parsePage reads page, limit and sort from the query string. Unparseable or
// out-of-range values fall back to the defaults rather than failing.
func parsePage(r *http.Request, def store.Sort, sortable ...string) pageRequest {
	q := r.URL.Query()

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return pageRequest{
		page:  page,
		limit: limit,
		sort:  store.ParseSort(q.Get("sort"), def, sortable...),
	}
}

func (p pageRequest) store() store.Page {
	return store.Page{
		Skip:  int64(p.page-1) * int64(p.limit),
		Limit: int64(p.limit),
		Sort:  p.sort,
	}
}

func (p pageRequest) result(total int64) Pagination {
	totalPages := (total + int64(p.limit) - 1) / int64(p.limit)
	return Pagination{
		Page:        p.page,
		Limit:       p.limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: int64(p.page) < totalPages,
		HasPrevPage: p.page > 1,
	}
}
