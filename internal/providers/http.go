package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

//go:generate mockgen -package=providers_test -destination=mock_http_client_test.go -source=http.go HTTPClient

// HTTPClient is the subset of *http.Client used by HTTPProvider.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WireHotel is the JSON shape served by upstream HTTP providers and read
// from static fixture files.
type WireHotel struct {
	HotelID   string   `json:"hotel_id" yaml:"hotel_id"`
	Name      string   `json:"name" yaml:"name"`
	Lat       float64  `json:"lat" yaml:"lat"`
	Lng       float64  `json:"lng" yaml:"lng"`
	Price     float64  `json:"price" yaml:"price"`
	Currency  string   `json:"currency" yaml:"currency"`
	Rating    *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
	Address   string   `json:"address,omitempty" yaml:"address,omitempty"`
	City      string   `json:"city,omitempty" yaml:"city,omitempty"`
	Country   string   `json:"country,omitempty" yaml:"country,omitempty"`
	Amenities []string `json:"amenities,omitempty" yaml:"amenities,omitempty"`
	Images    []string `json:"images,omitempty" yaml:"images,omitempty"`
	URL       string   `json:"url,omitempty" yaml:"url,omitempty"`
}

// ToHotel converts the wire record into a Hotel attributed to provider.
func (w WireHotel) ToHotel(provider string) types.Hotel {
	return types.Hotel{
		ID:          w.HotelID,
		Name:        w.Name,
		Coordinates: types.Coordinates{Lat: w.Lat, Lng: w.Lng},
		Price:       types.Price{Amount: w.Price, Currency: w.Currency},
		Rating:      w.Rating,
		Provider:    provider,
		Address:     w.Address,
		City:        w.City,
		Country:     w.Country,
		Amenities:   w.Amenities,
		Images:      w.Images,
		URL:         w.URL,
	}
}

// WireFromHotel is the inverse of ToHotel. The provider name is dropped.
func WireFromHotel(h types.Hotel) WireHotel {
	return WireHotel{
		HotelID:   h.ID,
		Name:      h.Name,
		Lat:       h.Coordinates.Lat,
		Lng:       h.Coordinates.Lng,
		Price:     h.Price.Amount,
		Currency:  h.Price.Currency,
		Rating:    h.Rating,
		Address:   h.Address,
		City:      h.City,
		Country:   h.Country,
		Amenities: h.Amenities,
		Images:    h.Images,
		URL:       h.URL,
	}
}

// HTTPProvider queries a real HTTP endpoint for hotel data.
type HTTPProvider struct {
	name       string
	baseURL    string
	httpClient HTTPClient
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c HTTPClient) HTTPOption {
	return func(p *HTTPProvider) {
		p.httpClient = c
	}
}

// NewHTTPProvider creates a new HTTPProvider.
func NewHTTPProvider(name, baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name.
func (p *HTTPProvider) Name() string {
	return p.name
}

// Search searches for hotels by making an HTTP GET request.
func (p *HTTPProvider) Search(ctx context.Context, query types.SearchQuery) ([]types.Hotel, error) {
	hotels, err := p.search(ctx, query)
	if err != nil {
		return nil, NewProviderError(p.name, err)
	}
	return hotels, nil
}

func (p *HTTPProvider) search(ctx context.Context, query types.SearchQuery) ([]types.Hotel, error) {
	u, err := url.Parse(p.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("location", query.Location)
	q.Set("check_in", query.CheckIn)
	q.Set("check_out", query.CheckOut)
	q.Set("guests", strconv.Itoa(query.Guests))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Explicitly ignore close error
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var wire []WireHotel
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	hotels := make([]types.Hotel, 0, len(wire))
	for _, w := range wire {
		hotels = append(hotels, w.ToHotel(p.name))
	}
	if err := ValidateHotels(hotels); err != nil {
		return nil, err
	}
	return hotels, nil
}
