package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alex-user-go/hotelsearch/internal/providers"
)

var errProviderUnavailable = errors.New("provider unavailable")

var hotelNames = []string{
	"Grand Hotel",
	"City Center Inn",
	"Budget Stay",
	"Luxury Palace",
	"Seaside Resort",
	"Riverside Lodge",
	"Old Town Suites",
	"Station Hotel",
	"Park View",
	"Harbour House",
	"Garden Court",
	"Skyline Tower",
}

// mockConfig controls the behaviour of a mock provider.
type mockConfig struct {
	Name        string
	FailureRate float64
	Latency     time.Duration
	PriceOffset float64 // relative, 0.1 means 10% more expensive
}

// mockProvider serves a deterministic catalog for any location.
//
// Every provider returns the same hotels at coordinates jittered below the
// dedup precision, so running several of them side by side produces
// overlapping results with different prices.
type mockProvider struct {
	cfg    mockConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func newMockProvider(cfg mockConfig, logger *slog.Logger) *mockProvider {
	seed := hash64(cfg.Name)
	return &mockProvider{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, uint64(time.Now().UnixNano()))),
	}
}

func (p *mockProvider) float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// search simulates latency and failures, then returns the catalog for location.
func (p *mockProvider) search(ctx context.Context, location string, guests int) ([]providers.WireHotel, error) {
	if p.cfg.Latency > 0 {
		// Between half and one and a half times the configured latency.
		latency := time.Duration(float64(p.cfg.Latency) * (0.5 + p.float64()))
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}

	if p.float64() < p.cfg.FailureRate {
		return nil, errProviderUnavailable
	}

	return catalog(p.cfg, location, guests), nil
}

// catalog builds the hotels of location as seen by the provider in cfg.
// Identity, names and rounded coordinates depend only on location.
func catalog(cfg mockConfig, location string, guests int) []providers.WireHotel {
	location = strings.TrimSpace(location)
	key := strings.ToLower(location)
	h := hash64(key)

	// City centre on a 0.0001 grid, so jitter below half a cell never moves
	// a hotel to another dedup key.
	baseLat := float64(int64(h%1_400_000)-700_000) / 10_000
	baseLng := float64(int64((h/1_400_000)%3_400_000)-1_700_000) / 10_000

	count := 4 + int(h%5)
	providerJitter := hash64(cfg.Name)
	guests = max(guests, 1)

	out := make([]providers.WireHotel, 0, count)
	for i := 0; i < count; i++ {
		hh := hash64(fmt.Sprintf("%s#%d", key, i))
		name := hotelNames[(int(hh%uint64(len(hotelNames)))+i)%len(hotelNames)]

		lat := baseLat + float64(int(hh%200)-100)/10_000
		lng := baseLng + float64(int((hh/200)%200)-100)/10_000
		lat += jitter(providerJitter, i, 0)
		lng += jitter(providerJitter, i, 1)

		base := 50 + float64(hh%250)
		price := base * (1 + cfg.PriceOffset) * (1 + 0.1*float64(guests-1))
		price = math.Round(price*100) / 100

		rating := float64(20+hh%31) / 10

		out = append(out, providers.WireHotel{
			HotelID:   fmt.Sprintf("%s-%s-%02d", cfg.Name, slug(key), i),
			Name:      name,
			Lat:       lat,
			Lng:       lng,
			Price:     price,
			Currency:  "EUR",
			Rating:    &rating,
			City:      location,
			Amenities: []string{"wifi"},
		})
	}
	return out
}

// jitter returns a provider specific offset in (-0.00004, 0.00004).
func jitter(seed uint64, i, axis int) float64 {
	v := hash64(fmt.Sprintf("%d/%d/%d", seed, i, axis))
	return (float64(v%801) - 400) / 10_000_000
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func slug(s string) string {
	return strings.Join(strings.Fields(s), "-")
}

// ServeHTTP handles /search requests.
func (p *mockProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location := strings.TrimSpace(q.Get("location"))
	if location == "" {
		http.Error(w, "missing location", http.StatusBadRequest)
		return
	}

	guests := 1
	if g := q.Get("guests"); g != "" {
		n, err := strconv.Atoi(g)
		if err != nil || n < 0 {
			http.Error(w, "invalid guests", http.StatusBadRequest)
			return
		}
		guests = n
	}

	hotels, err := p.search(r.Context(), location, guests)
	if err != nil {
		p.logger.Debug("simulated failure", "provider", p.cfg.Name, "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(hotels); err != nil {
		p.logger.Error("failed to encode response", "error", err)
	}
}
