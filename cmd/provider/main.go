package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	port := getEnv("PORT", "9001")
	cfg := mockConfig{
		Name:        getEnv("PROVIDER_NAME", "provider1"),
		FailureRate: getFloat(logger, "FAILURE_RATE", 0.1),
		Latency:     time.Duration(getFloat(logger, "LATENCY_MS", 100)) * time.Millisecond,
		PriceOffset: getFloat(logger, "PRICE_OFFSET", 0),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Method(http.MethodGet, "/search", newMockProvider(cfg, logger))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write healthz response", "error", err)
		}
	})

	addr := ":" + port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting provider",
			"addr", addr,
			"provider", cfg.Name,
			"failure_rate", cfg.FailureRate,
			"latency", cfg.Latency.String(),
			"price_offset", cfg.PriceOffset,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(logger *slog.Logger, key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Warn("ignoring invalid env value", "key", key, "value", value)
		return defaultValue
	}
	return f
}
