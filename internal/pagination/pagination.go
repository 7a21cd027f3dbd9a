// -------------------------------------------------------------------------------
// Pagination - One-Indexed Page Slicing
//
// Project: Streamlo
//
// Shared pagination for embedded arrays (comments, followees, liked tracks) and
// top-level query result sets. Pages are one-indexed with a page size between 1
// and 10. An out-of-range page is not an error: it yields an empty slice that the
// caller reports as "no items on this page".
// -------------------------------------------------------------------------------

package pagination

import "fmt"

// -------------------------------------------------------------------------
// LIMITS
// -------------------------------------------------------------------------

const (
	DefaultPage    = 1
	DefaultPerPage = 5
	MaxPerPage     = 10
)

// -------------------------------------------------------------------------
// VALIDATION
// -------------------------------------------------------------------------

// Validate checks a one-indexed page number and per-page size before slicing.
func Validate(page, perPage int) error {
	if page < 1 {
		return fmt.Errorf("invalid page number, page numbers start from 1 (one-indexed)")
	}
	if perPage < 1 {
		return fmt.Errorf("invalid per page number")
	}
	if perPage > MaxPerPage {
		return fmt.Errorf("invalid per page number, maximum number of items per page is %d", MaxPerPage)
	}
	return nil
}

// -------------------------------------------------------------------------
// SLICING
// -------------------------------------------------------------------------

// Slice returns the one-indexed page [ (page-1)*perPage, page*perPage ) of
// items, clamped to the slice bounds. A page past the end returns an empty
// slice. Callers must Validate first; Slice itself never errors.
func Slice[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Meta carries page bookkeeping for list responses.
type Meta struct {
	Total     int `json:"total"`
	Page      int `json:"page"`
	PageCount int `json:"pageCount"`
}

// NewMeta computes page metadata for a result set of total items.
func NewMeta(total, page, perPage int) Meta {
	pageCount := total / perPage
	if total%perPage != 0 {
		pageCount++
	}
	return Meta{Total: total, Page: page, PageCount: pageCount}
}

// Offset converts a one-indexed page to a zero-indexed skip count for store
// queries.
func Offset(page, perPage int) int {
	return (page - 1) * perPage
}
