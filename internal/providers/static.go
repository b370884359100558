package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

// StaticProvider serves hotels from an in-memory catalog.
type StaticProvider struct {
	name   string
	hotels []types.Hotel
}

// NewStaticProvider creates a StaticProvider over a fixed set of hotels.
func NewStaticProvider(name string, hotels []types.Hotel) *StaticProvider {
	return &StaticProvider{name: name, hotels: hotels}
}

// Name returns the provider name.
func (p *StaticProvider) Name() string {
	return p.name
}

// Search returns hotels whose city or country matches the query location.
func (p *StaticProvider) Search(ctx context.Context, query types.SearchQuery) ([]types.Hotel, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewProviderError(p.name, err)
	}

	location := strings.TrimSpace(query.Location)
	var out []types.Hotel
	for _, h := range p.hotels {
		if strings.EqualFold(h.City, location) || strings.EqualFold(h.Country, location) {
			out = append(out, h)
		}
	}
	if err := ValidateHotels(out); err != nil {
		return nil, NewProviderError(p.name, err)
	}
	return out, nil
}

// LoadStaticHotels reads a YAML list of wire hotels from path.
func LoadStaticHotels(path, provider string) ([]types.Hotel, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var wire []WireHotel
	if err := yaml.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	hotels := make([]types.Hotel, 0, len(wire))
	for _, w := range wire {
		hotels = append(hotels, w.ToHotel(provider))
	}
	if err := ValidateHotels(hotels); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return hotels, nil
}
