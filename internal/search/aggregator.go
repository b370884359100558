package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alex-user-go/hotelsearch/internal/obs"
	"github.com/alex-user-go/hotelsearch/internal/providers"
	"github.com/alex-user-go/hotelsearch/internal/search/breaker"
	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

// AggregatorConfig holds the tunables of an Aggregator.
type AggregatorConfig struct {
	// ProviderTimeout bounds each provider call. Zero disables it.
	ProviderTimeout time.Duration
	Pages           PageConfig
}

// Aggregator aggregates results from multiple providers.
type Aggregator struct {
	providers []providers.Provider
	breakers  []*breaker.Breaker
	timeout   time.Duration
	pages     PageConfig
	metrics   *obs.Metrics
	logger    *slog.Logger
}

// NewAggregator creates a new Aggregator.
//
// Providers are merged in the given order, which makes deduplication
// tie-breaks deterministic. Each provider is guarded by the breaker of the
// same name in breakers; a provider without one gets a private breaker with
// default settings.
func NewAggregator(
	providerList []providers.Provider,
	breakers *breaker.Set,
	cfg AggregatorConfig,
	metrics *obs.Metrics,
	logger *slog.Logger,
) *Aggregator {
	a := &Aggregator{
		providers: providerList,
		breakers:  make([]*breaker.Breaker, len(providerList)),
		timeout:   cfg.ProviderTimeout,
		pages:     cfg.Pages.withDefaults(),
		metrics:   metrics,
		logger:    logger,
	}
	for i, p := range providerList {
		var b *breaker.Breaker
		if breakers != nil {
			b = breakers.Get(p.Name())
		}
		if b == nil {
			b = breaker.New(p.Name(), breaker.DefaultSettings())
		}
		a.breakers[i] = b
	}
	return a
}

// Prepare validates query and applies the aggregator's paging defaults. The
// result is what Search would run, so it is a stable cache key source.
func (a *Aggregator) Prepare(query types.SearchQuery) (types.SearchQuery, error) {
	return PrepareQuery(query, a.pages)
}

// Search queries all providers concurrently and returns one page of the merged result.
//
// Provider failures never fail the search; they only shrink the result. The
// only errors returned are *ValidationError and the caller's context error.
func (a *Aggregator) Search(ctx context.Context, query types.SearchQuery) (*types.PaginatedResult, error) {
	query, err := PrepareQuery(query, a.pages)
	if err != nil {
		return nil, err
	}

	var (
		wg        sync.WaitGroup
		batches   = make([][]types.Hotel, len(a.providers))
		succeeded = make([]bool, len(a.providers))
	)
	for i, provider := range a.providers {
		wg.Go(func() {
			batches[i], succeeded[i] = a.callProvider(ctx, provider, a.breakers[i], query)
		})
	}

	// Wait for all providers to settle
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}

	var merged []types.Hotel
	failed := 0
	for i, batch := range batches {
		if !succeeded[i] {
			failed++
			continue
		}
		merged = append(merged, Normalize(batch, a.providers[i].Name())...)
	}

	ranked := Rank(Deduplicate(merged))
	result := Paginate(ranked, query.Cursor, query.Limit, a.pages.MaxSize)
	result.ProvidersTotal = len(a.providers)
	result.ProvidersSucceeded = len(a.providers) - failed
	result.ProvidersFailed = failed

	if a.metrics != nil {
		a.metrics.ObserveResultSize(result.Total)
	}
	if failed > 0 {
		a.logger.Warn("search degraded",
			"location", query.Location,
			"providers_failed", failed,
			"providers_total", len(a.providers),
			"total", result.Total,
		)
	}

	return &result, nil
}

// callProvider runs one provider through its breaker. A failed or rejected
// call contributes nothing and reports false.
func (a *Aggregator) callProvider(ctx context.Context, p providers.Provider, b *breaker.Breaker, query types.SearchQuery) ([]types.Hotel, bool) {
	name := p.Name()
	ok := true

	hotels, _ := breaker.Execute(ctx, b, func(ctx context.Context) ([]types.Hotel, error) {
		if a.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}

		start := time.Now()
		hotels, err := invoke(ctx, p, query)
		if a.metrics != nil {
			a.metrics.ObserveProviderLatency(name, time.Since(start).Seconds())
		}
		return hotels, err
	}, func(err error) []types.Hotel {
		ok = false
		a.recordFailure(ctx, name, b, err)
		return nil
	})

	return hotels, ok
}

// invoke calls the provider, abandoning it once ctx is done and turning panics into errors.
func invoke(ctx context.Context, p providers.Provider, query types.SearchQuery) ([]types.Hotel, error) {
	type outcome struct {
		hotels []types.Hotel
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		hotels, err := p.Search(ctx, query)
		done <- outcome{hotels: hotels, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, providers.NewProviderError(p.Name(), o.err)
		}
		if err := providers.ValidateHotels(o.hotels); err != nil {
			return nil, providers.NewProviderError(p.Name(), err)
		}
		return o.hotels, nil
	case <-ctx.Done():
		return nil, providers.NewProviderError(p.Name(), context.Cause(ctx))
	}
}

func (a *Aggregator) recordFailure(ctx context.Context, name string, b *breaker.Breaker, err error) {
	if ctx.Err() != nil {
		a.logger.Debug("provider call abandoned", "provider", name, "error", err)
		return
	}

	reason := "error"
	switch {
	case errors.Is(err, breaker.ErrOpenState):
		reason = "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	}
	if a.metrics != nil {
		a.metrics.IncProviderErrors(name, reason)
	}

	a.logger.Warn("provider search failed",
		"provider", name,
		"reason", reason,
		"error", err,
		"breaker_state", b.State().String(),
	)
}
