package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NormalizePage clamps page/perPage to sane values: page starts at 1, perPage
// defaults to 20 and is capped at 200.
func NormalizePage(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 200 {
		perPage = 200
	}
	if page <= 0 {
		page = 1
	}
	return page, perPage
}

// PageOffset converts a normalized page/perPage pair into a query offset.
func PageOffset(page, perPage int) int {
	return (page - 1) * perPage
}

// NewPagination computes pagination metadata from normalized inputs.
func NewPagination(page, perPage, total int) Pagination {
	page, perPage = NormalizePage(page, perPage)
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
