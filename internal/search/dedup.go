package search

import (
	"strconv"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

// DedupKey identifies a physical hotel: lower-cased trimmed name plus coordinates at 4 decimals.
//
// Exact name plus ~11 m location favors precision over recall. Hotels whose
// providers spell the name differently are not merged.
func DedupKey(h types.Hotel) string {
	return h.ComparableName() + "|" +
		strconv.FormatFloat(roundCoord(h.Coordinates.Lat), 'f', 4, 64) + "|" +
		strconv.FormatFloat(roundCoord(h.Coordinates.Lng), 'f', 4, 64)
}

// Deduplicate collapses hotels sharing a DedupKey.
//
// The cheaper record wins, then the higher rating (missing counts as 0), then
// the one seen first. Output keeps the position of each key's first occurrence.
func Deduplicate(hotels []types.Hotel) []types.Hotel {
	index := make(map[string]int, len(hotels))
	out := make([]types.Hotel, 0, len(hotels))

	for _, h := range hotels {
		key := DedupKey(h)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, h)
			continue
		}
		if preferred(h, out[i]) {
			out[i] = h
		}
	}
	return out
}

// preferred reports whether candidate should replace current.
func preferred(candidate, current types.Hotel) bool {
	if candidate.Price.Amount != current.Price.Amount {
		return candidate.Price.Amount < current.Price.Amount
	}
	return candidate.RatingOrZero() > current.RatingOrZero()
}
