package search

import (
	"math"
	"strings"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

const (
	coordScale      = 1e4
	maxRating       = 5.0
	defaultCurrency = "EUR"
)

// Normalize maps one provider's hotels into canonical form.
//
// It overwrites the provider field, clamps price and rating, rounds the
// coordinates to 4 decimal places and trims text fields. The input slice is
// not modified and Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw []types.Hotel, providerName string) []types.Hotel {
	out := make([]types.Hotel, 0, len(raw))
	for _, h := range raw {
		out = append(out, normalizeHotel(h, providerName))
	}
	return out
}

func normalizeHotel(h types.Hotel, providerName string) types.Hotel {
	h.Provider = providerName
	h.ID = strings.TrimSpace(h.ID)
	h.Name = strings.TrimSpace(h.Name)

	h.Coordinates = types.Coordinates{
		Lat: roundCoord(h.Coordinates.Lat),
		Lng: roundCoord(h.Coordinates.Lng),
	}

	amount := h.Price.Amount
	if math.IsNaN(amount) || amount < 0 {
		amount = 0
	}
	currency := strings.ToUpper(strings.TrimSpace(h.Price.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	h.Price = types.Price{Amount: amount, Currency: currency}

	if h.Rating != nil {
		r := clampRating(*h.Rating)
		h.Rating = &r
	}

	h.Address = strings.TrimSpace(h.Address)
	h.City = strings.TrimSpace(h.City)
	h.Country = strings.TrimSpace(h.Country)
	h.URL = strings.TrimSpace(h.URL)
	h.Amenities = cloneStrings(h.Amenities)
	h.Images = cloneStrings(h.Images)
	return h
}

// roundCoord rounds to 4 decimal places, mapping -0 to 0.
func roundCoord(v float64) float64 {
	r := math.Round(v*coordScale) / coordScale
	if r == 0 {
		return 0
	}
	return r
}

func clampRating(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > maxRating:
		return maxRating
	default:
		return r
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
