package handler

import (
	"net/http"
	"strconv"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

const maxPageSize = 100

// PageResponse is the envelope of every paginated list.
type PageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// pageRequest is the window selected by the ?page= and ?limit= parameters.
type pageRequest struct {
	Page int
	Size int
}

func (p pageRequest) options() repository.ListOptions {
	return repository.ListOptions{Limit: p.Size, Offset: (p.Page - 1) * p.Size}
}

// parsePage reads ?page= (1-based) and ?limit=. A missing or unusable limit
// falls back to defaultSize; a page that is not a positive integer is
// NotFound.
func parsePage(r *http.Request, defaultSize int) (pageRequest, error) {
	p := pageRequest{Page: 1, Size: defaultSize}

	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, &apperror.AppError{Err: apperror.ErrNotFound, Message: "invalid page"}
		}
		p.Page = n
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.Size = min(n, maxPageSize)
		}
	}
	return p, nil
}

// writePage sends one page with absolute next/previous links. Pages past
// the end are NotFound, except the first page of an empty collection.
func writePage[T any](w http.ResponseWriter, r *http.Request, p pageRequest, page model.Page[T]) {
	if p.Page > 1 && (p.Page-1)*p.Size >= page.Total {
		writeError(w, &apperror.AppError{Err: apperror.ErrNotFound, Message: "invalid page"})
		return
	}

	resp := PageResponse[T]{Count: page.Total, Results: page.Items}
	if resp.Results == nil {
		resp.Results = []T{}
	}
	if p.Page*p.Size < page.Total {
		next := pageURL(r, p.Page+1)
		resp.Next = &next
	}
	if p.Page > 1 {
		prev := pageURL(r, p.Page-1)
		resp.Previous = &prev
	}
	writeJSON(w, http.StatusOK, resp)
}

// pageURL rebuilds the request URL with another page number. The first page
// drops the parameter.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := scheme + "://" + r.Host + r.URL.Path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
