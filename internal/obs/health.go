package obs

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alex-user-go/hotelsearch/internal/search/breaker"
)

// HealthHandler returns a handler for /healthz requests.
func HealthHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health response", "error", err)
		}
	}
}

// ProvidersHealth is the /healthz/providers response body.
type ProvidersHealth struct {
	Status    string           `json:"status"`
	Providers []breaker.Status `json:"providers"`
}

// ProvidersHandler reports the circuit breaker state of every provider.
// Status is "degraded" while any breaker is not closed, and "down" when none is.
func ProvidersHandler(breakers *breaker.Set, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := breakers.Statuses()

		closed := 0
		for _, s := range statuses {
			if s.State == breaker.StateClosed {
				closed++
			}
		}

		body := ProvidersHealth{Status: "ok", Providers: statuses}
		switch {
		case len(statuses) > 0 && closed == 0:
			body.Status = "down"
		case closed < len(statuses):
			body.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("failed to write providers health response", "error", err)
		}
	}
}
