package search

import (
	"cmp"
	"slices"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

// Rank returns a new slice ordered by price ascending, rating descending
// (missing counts as 0) and name ascending.
//
// Hotels equal on all three keys are further ordered by coordinates,
// provider and id, so distinct deduplicated hotels never compare equal.
func Rank(hotels []types.Hotel) []types.Hotel {
	out := slices.Clone(hotels)
	slices.SortStableFunc(out, CompareHotels)
	return out
}

// CompareHotels is the ranking comparator.
func CompareHotels(a, b types.Hotel) int {
	if c := cmp.Compare(a.Price.Amount, b.Price.Amount); c != 0 {
		return c
	}
	if c := cmp.Compare(b.RatingOrZero(), a.RatingOrZero()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ComparableName(), b.ComparableName()); c != 0 {
		return c
	}
	return cmp.Or(
		cmp.Compare(a.Name, b.Name),
		cmp.Compare(a.Coordinates.Lat, b.Coordinates.Lat),
		cmp.Compare(a.Coordinates.Lng, b.Coordinates.Lng),
		cmp.Compare(a.Provider, b.Provider),
		cmp.Compare(a.ID, b.ID),
	)
}
