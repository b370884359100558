package search

import "github.com/alex-user-go/hotelsearch/internal/search/types"

// Paginate returns ranked[cursor:cursor+limit].
//
// cursor is clamped to [0, len(ranked)] and limit to [1, maxPageSize]. The
// returned cursor is the offset of the next page.
func Paginate(ranked []types.Hotel, cursor, limit, maxPageSize int) types.PaginatedResult {
	total := len(ranked)
	maxPageSize = max(maxPageSize, 1)

	cursor = min(max(cursor, 0), total)
	limit = min(max(limit, 1), maxPageSize)
	end := min(cursor+limit, total)

	page := make([]types.Hotel, end-cursor)
	copy(page, ranked[cursor:end])

	return types.PaginatedResult{
		Hotels:  page,
		Cursor:  end,
		HasMore: end < total,
		Total:   total,
	}
}
