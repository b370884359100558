package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

//go:generate mockgen -package=search_test -destination=../search/mock_provider_test.go -source=provider.go Provider

// Provider defines the interface for hotel providers.
type Provider interface {
	// Name returns a stable identifier for the provider.
	Name() string
	// Search searches for hotels. It either returns a well-formed list or fails entirely.
	Search(ctx context.Context, query types.SearchQuery) ([]types.Hotel, error)
}

// ErrProviderUnavailable is returned when a provider is unavailable.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrMalformedHotel is returned when a provider produced a record that cannot be used.
var ErrMalformedHotel = errors.New("malformed hotel record")

// ProviderError wraps any failure of a single provider call.
type ProviderError struct {
	Provider string
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError wraps err in a ProviderError unless it already is one.
func NewProviderError(provider string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Cause: err}
}

// Coordinate bounds in degrees.
const (
	maxLat = 90.0
	maxLng = 180.0
)

// ValidateHotels rejects the whole batch if any record is unusable.
func ValidateHotels(hotels []types.Hotel) error {
	for i, h := range hotels {
		if strings.TrimSpace(h.Name) == "" {
			return fmt.Errorf("%w: record %d has no name", ErrMalformedHotel, i)
		}
		if !finite(h.Coordinates.Lat) || !finite(h.Coordinates.Lng) {
			return fmt.Errorf("%w: record %d has invalid coordinates", ErrMalformedHotel, i)
		}
		if math.Abs(h.Coordinates.Lat) > maxLat || math.Abs(h.Coordinates.Lng) > maxLng {
			return fmt.Errorf("%w: record %d has coordinates out of range", ErrMalformedHotel, i)
		}
		if !finite(h.Price.Amount) {
			return fmt.Errorf("%w: record %d has invalid price", ErrMalformedHotel, i)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
