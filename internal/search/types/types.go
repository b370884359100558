package types

import "strings"

// Coordinates is a geographic point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Price is a nightly offer price.
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Hotel represents a hotel offer in canonical form.
type Hotel struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
	Price       Price       `json:"price"`
	Rating      *float64    `json:"rating,omitempty"`
	Provider    string      `json:"provider"`
	Address     string      `json:"address,omitempty"`
	City        string      `json:"city,omitempty"`
	Country     string      `json:"country,omitempty"`
	Amenities   []string    `json:"amenities,omitempty"`
	Images      []string    `json:"images,omitempty"`
	URL         string      `json:"url,omitempty"`
}

// ComparableName returns the lower-cased, trimmed name used for identity and ordering.
func (h Hotel) ComparableName() string {
	return strings.ToLower(strings.TrimSpace(h.Name))
}

// RatingOrZero returns the rating, treating a missing rating as 0.
func (h Hotel) RatingOrZero() float64 {
	if h.Rating == nil {
		return 0
	}
	return *h.Rating
}

// SearchQuery holds the parameters of one search.
type SearchQuery struct {
	Location string `json:"location"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Guests   int    `json:"guests"`
	Cursor   int    `json:"cursor"`
	Limit    int    `json:"limit"`
}

// PaginatedResult is one page of the merged, ranked result set.
type PaginatedResult struct {
	Hotels  []Hotel `json:"hotels"`
	Cursor  int     `json:"cursor"`
	HasMore bool    `json:"hasMore"`
	Total   int     `json:"total"`

	ProvidersTotal     int `json:"-"`
	ProvidersSucceeded int `json:"-"`
	ProvidersFailed    int `json:"-"`
}
