package shared

import (
	"math"
	"net/url"
	"strconv"
)

const (
	// DefaultPageSize is the number of rows listed per page.
	DefaultPageSize = 25
	// MaxPageSize caps client supplied limits.
	MaxPageSize = 200
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Limit      int
	Offset     int
	Total      int
	Page       int
	TotalPages int
}

// NewPagination computes pagination metadata from limit/offset.
func NewPagination(limit, offset, total int) Pagination {
	limit, offset = NormalizePage(limit, offset)
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		Limit:      limit,
		Offset:     offset,
		Total:      total,
		Page:       offset/limit + 1,
		TotalPages: totalPages,
	}
}

// HasPrev reports whether an earlier page exists.
func (p Pagination) HasPrev() bool { return p.Offset > 0 }

// HasNext reports whether a later page exists.
func (p Pagination) HasNext() bool { return p.Offset+p.Limit < p.Total }

// PrevOffset returns the offset of the previous page.
func (p Pagination) PrevOffset() int { return max(p.Offset-p.Limit, 0) }

// NextOffset returns the offset of the next page.
func (p Pagination) NextOffset() int { return p.Offset + p.Limit }

// NormalizePage clamps limit and offset to usable values.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// PageFromQuery reads limit and offset query parameters.
func PageFromQuery(q url.Values) (int, int) {
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return NormalizePage(limit, offset)
}
