package discovery

import "product-discovery-service/internal/domain"

// Paginate builds the metadata for a 1-indexed page over total matches.
// It panics if limit < 1; callers validate limits first.
func Paginate(total int64, page, limit int) domain.Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return domain.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// skip is the number of records before a 1-indexed page.
func skip(page, limit int) int64 {
	return int64(page-1) * int64(limit)
}
