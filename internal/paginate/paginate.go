// Package paginate provides deterministic slicing of ordered sequences into
// fixed-size pages.
package paginate

// DefaultPageSize is the page size shared by all listings unless overridden.
const DefaultPageSize = 10

// Paginate splits items into pages of the given size and returns the
// requested page together with the total page count.
//
// totalPages is always at least 1, even for an empty slice. Out-of-range page
// numbers never fail: they are clamped into [1, totalPages] before slicing.
// The order of items is preserved.
func Paginate[T any](items []T, page, size int) ([]T, int) {
	if size <= 0 {
		size = DefaultPageSize
	}

	totalPages := (len(items) + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}

	page = Clamp(page, totalPages)

	start := (page - 1) * size
	if start >= len(items) {
		return nil, totalPages
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], totalPages
}

// Clamp limits page into the range [1, totalPages].
func Clamp(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
