// Package pagination reads page/limit query parameters and shapes paged replies.
package pagination

import (
	"strconv"

	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds clamped page/limit values. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// Offset is the number of rows to skip for this page
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Result wraps one page of items with the paging metadata
func (p Params) Result(items interface{}, total int64) response.Paged {
	return response.Paged{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
}

// Parse reads page and limit from the query. Unparseable or out-of-range values fall back to defaults;
// limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	return Clamp(atoi(c.Query("page")), atoi(c.Query("limit")))
}

// Clamp normalises raw page/limit values
func Clamp(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
