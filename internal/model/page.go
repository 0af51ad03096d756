// internal/model/page.go
package model

// Page is one offset-paginated slice of a newest-first listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"currentPage"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](items []T, page, limit, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: TotalPages(total, limit),
	}
}

// TotalPages returns ceil(total / limit).
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Offset converts a 1-based page number into a row offset.
func Offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
