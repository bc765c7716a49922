package api

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/courier/pkg/storage"
)

// Page is the paginated listing envelope. Next and Previous are absolute
// URLs, or null at either end.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// pageRequest is the parsed page and page_size query parameters.
type pageRequest struct {
	number int
	size   int
}

var errInvalidPage = fiber.NewError(fiber.StatusNotFound, detailInvalidPage)

// parsePage reads the 1-based page number and the page size. A missing or
// malformed page_size falls back to the default; a malformed page is an error.
func (s *Server) parsePage(c *fiber.Ctx) (pageRequest, error) {
	req := pageRequest{number: 1, size: s.config.PageSize}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return req, errInvalidPage
		}
		req.number = n
	}

	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			req.size = min(n, s.config.MaxPageSize)
		}
	}

	return req, nil
}

func (p pageRequest) storage() storage.Page {
	return storage.Page{Limit: p.size, Offset: (p.number - 1) * p.size}
}

// lastPage is the number of the final page for count items. An empty listing
// still has a first page.
func (p pageRequest) lastPage(count int) int {
	if count == 0 {
		return 1
	}
	return (count + p.size - 1) / p.size
}

// newPage builds the envelope for one page of results out of count total.
// A page past the end is an error.
func newPage[T any](c *fiber.Ctx, req pageRequest, count int, results []T) (*Page[T], error) {
	last := req.lastPage(count)
	if req.number > last {
		return nil, errInvalidPage
	}
	if results == nil {
		results = []T{}
	}

	p := &Page[T]{Count: count, Results: results}
	if req.number < last {
		p.Next = pageURL(c, req.number+1)
	}
	if req.number > 1 {
		p.Previous = pageURL(c, req.number-1)
	}
	return p, nil
}

// pageURL rebuilds the request URL with page set to number. The first page
// drops the parameter.
func pageURL(c *fiber.Ctx, number int) *string {
	q := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		q.Add(string(k), string(v))
	})

	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}

	u := c.BaseURL() + c.Path()
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return &u
}

// paginate slices an in-memory listing, for results that are ranked rather
// than read page by page from storage.
func paginate[T any](c *fiber.Ctx, req pageRequest, all []T) (*Page[T], error) {
	lo, hi := req.storage().Window(len(all))
	return newPage(c, req, len(all), all[lo:hi])
}
