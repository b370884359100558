package obs_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/alex-user-go/hotelsearch/internal/obs"
	"github.com/alex-user-go/hotelsearch/internal/search/breaker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMetrics_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := obs.NewMetrics(reg, discardLogger())

	m.IncRequests()
	m.IncCacheHits()
	m.IncRateLimitDrops()
	m.IncProviderErrors("alpha", "timeout")
	m.IncProviderErrors("alpha", "timeout")
	m.ObserveProviderLatency("alpha", 0.12)
	m.InitBreakerState("alpha", breaker.StateClosed)
	m.BreakerTransition("alpha", breaker.StateClosed, breaker.StateOpen)
	m.ObserveResultSize(14)
	m.ObserveHTTPRequest(http.MethodGet, "/search", "200", 0.05)

	expected := `
# HELP provider_errors_total Failed or rejected provider calls
# TYPE provider_errors_total counter
provider_errors_total{provider="alpha",reason="timeout"} 2
# HELP provider_circuit_state Circuit breaker state per provider (0=closed, 1=open, 2=half-open)
# TYPE provider_circuit_state gauge
provider_circuit_state{provider="alpha"} 1
# HELP provider_circuit_transitions_total Circuit breaker state transitions
# TYPE provider_circuit_transitions_total counter
provider_circuit_transitions_total{provider="alpha",to="OPEN"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"provider_errors_total", "provider_circuit_state", "provider_circuit_transitions_total"))

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "hotel_search_requests_total 1")
	require.Contains(t, body, "hotel_search_cache_hits_total 1")
	require.Contains(t, body, "hotel_search_ratelimit_drops_total 1")
	require.Contains(t, body, `http_requests_total{method="GET",path="/search",status="200"} 1`)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	obs.HealthHandler(discardLogger())(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestProvidersHandler(t *testing.T) {
	settings := breaker.Settings{FailureThreshold: 1, SuccessThreshold: 1, ResetTimeout: time.Minute}

	tests := []struct {
		name       string
		providers  []string
		trip       []string
		wantStatus string
		wantStates map[string]string
	}{
		{
			name:       "all closed",
			providers:  []string{"alpha", "beta"},
			wantStatus: "ok",
			wantStates: map[string]string{"alpha": "CLOSED", "beta": "CLOSED"},
		},
		{
			name:       "one open",
			providers:  []string{"alpha", "beta"},
			trip:       []string{"beta"},
			wantStatus: "degraded",
			wantStates: map[string]string{"alpha": "CLOSED", "beta": "OPEN"},
		},
		{
			name:       "all open",
			providers:  []string{"alpha"},
			trip:       []string{"alpha"},
			wantStatus: "down",
			wantStates: map[string]string{"alpha": "OPEN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := breaker.NewSet(tt.providers, settings)
			for _, name := range tt.trip {
				_, _ = breaker.Execute(context.Background(), set.Get(name), func(context.Context) (int, error) {
					return 0, errors.New("boom")
				}, nil)
			}

			rec := httptest.NewRecorder()
			obs.ProvidersHandler(set, discardLogger())(rec, httptest.NewRequest(http.MethodGet, "/healthz/providers", nil))
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body struct {
				Status    string `json:"status"`
				Providers []struct {
					Provider            string `json:"provider"`
					State               string `json:"state"`
					ConsecutiveFailures int    `json:"consecutive_failures"`
				} `json:"providers"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.wantStatus, body.Status)
			require.Len(t, body.Providers, len(tt.providers))

			for i, p := range body.Providers {
				require.Equal(t, tt.providers[i], p.Provider)
				require.Equal(t, tt.wantStates[p.Provider], p.State)
			}
		})
	}
}
