package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse extracts and validates page/limit from query parameters
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

	if page < 1 {
		page = DefaultPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Window returns [start, end) slice bounds for the given page over an
// in-memory collection of n elements. Pages past the end yield an empty
// window. Used where filtering happens after the rows are fetched, so the
// database offset cannot be applied.
func Window(page, limit, n int) (start, end int) {
	start = (page - 1) * limit
	if start < 0 || start >= n {
		return 0, 0
	}
	end = start + limit
	if end > n {
		end = n
	}
	return start, end
}
