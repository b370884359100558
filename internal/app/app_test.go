package app_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alex-user-go/hotelsearch/internal/app"
	"github.com/alex-user-go/hotelsearch/internal/config"
	"github.com/alex-user-go/hotelsearch/internal/handler"
	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

const fixtureA = `
- hotel_id: a1
  name: Grand Plaza
  lat: 40.7580
  lng: -73.9855
  price: 180
  currency: USD
  rating: 4.0
  city: New York
- hotel_id: a2
  name: Harbor Inn
  lat: 40.7060
  lng: -74.0086
  price: 120
  currency: USD
  city: New York
`

// fixtureB repeats Grand Plaza with a cheaper price and slightly different
// coordinates that round to the same key.
const fixtureB = `
- hotel_id: b7
  name: "  grand plaza "
  lat: 40.75801
  lng: -73.98549
  price: 150
  currency: USD
  rating: 4.0
  city: New York
- hotel_id: b8
  name: Midtown Suites
  lat: 40.7549
  lng: -73.9840
  price: 210
  currency: USD
  city: New York
`

func newTestApp(t *testing.T, opts ...func(*config.Config)) *app.App {
	t.Helper()

	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.yaml")
	pathB := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(pathA, []byte(fixtureA), 0o600))
	require.NoError(t, os.WriteFile(pathB, []byte(fixtureB), 0o600))

	cfg := config.Default()
	cfg.Providers = []config.Provider{
		{Name: "alpha", Kind: config.KindStatic, File: pathA},
		{Name: "beta", Kind: config.KindStatic, File: pathB},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestApp_Search(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/search?location=new%20york&limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "miss", resp.Header.Get(handler.CacheHeader))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var page types.PaginatedResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Equal(t, 3, page.Total)
	require.True(t, page.HasMore)
	require.Equal(t, 2, page.Cursor)
	require.Len(t, page.Hotels, 2)

	require.Equal(t, "Harbor Inn", page.Hotels[0].Name)
	require.Equal(t, "alpha", page.Hotels[0].Provider)
	require.Equal(t, "grand plaza", page.Hotels[1].Name)
	require.Equal(t, "beta", page.Hotels[1].Provider)
	require.InDelta(t, 150, page.Hotels[1].Price.Amount, 1e-9)

	next, err := http.Get(srv.URL + "/search?location=new%20york&limit=2&cursor=2")
	require.NoError(t, err)
	defer next.Body.Close()

	var last types.PaginatedResult
	require.NoError(t, json.NewDecoder(next.Body).Decode(&last))
	require.Len(t, last.Hotels, 1)
	require.Equal(t, "Midtown Suites", last.Hotels[0].Name)
	require.False(t, last.HasMore)
}

func TestApp_Endpoints(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/healthz", wantStatus: http.StatusOK, wantBody: "OK"},
		{path: "/healthz/providers", wantStatus: http.StatusOK, wantBody: `"provider":"alpha"`},
		{path: "/metrics", wantStatus: http.StatusOK, wantBody: "provider_circuit_state"},
		{path: "/search", wantStatus: http.StatusBadRequest, wantBody: "location is required"},
		{path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				require.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestApp_CORS(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_BadProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Providers = []config.Provider{{Name: "broken", Kind: config.KindStatic, File: filepath.Join(t.TempDir(), "missing.yaml")}}

	_, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorContains(t, err, "provider broken")
}

func TestApp_RateLimitKey(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		wantLast   int
	}{
		{name: "forwarding headers ignored by default", trustProxy: false, wantLast: http.StatusTooManyRequests},
		{name: "forwarding headers trusted behind a proxy", trustProxy: true, wantLast: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, func(cfg *config.Config) {
				cfg.RateLimit.Requests = 2
				cfg.Server.TrustProxyHeaders = tt.trustProxy
			})
			srv := httptest.NewServer(a.Handler())
			defer srv.Close()

			var status int
			for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
				req, err := http.NewRequest(http.MethodGet, srv.URL+"/search?location=new%20york", nil)
				require.NoError(t, err)
				req.Header.Set("X-Forwarded-For", ip)

				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				resp.Body.Close()
				status = resp.StatusCode
			}
			require.Equal(t, tt.wantLast, status)
		})
	}
}
