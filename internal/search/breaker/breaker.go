// Package breaker implements a per-provider circuit breaker.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrOpenState is returned when a call is rejected because the breaker is open.
var ErrOpenState = errors.New("circuit breaker is open")

// Settings configures a Breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes that closes it.
	SuccessThreshold int
	// ResetTimeout is the minimum time spent open before a probe is allowed.
	ResetTimeout time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
	}
}

// Counts is a snapshot of the breaker counters.
type Counts struct {
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastFailure          time.Time `json:"last_failure,omitzero"`
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithOnStateChange registers a callback invoked after every transition.
// It runs without the breaker lock held.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// Breaker is a mutex-guarded circuit breaker for one provider.
type Breaker struct {
	name          string
	settings      Settings
	now           func() time.Time
	onStateChange func(name string, from, to State)

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
}

// New creates a closed Breaker. Non-positive settings fall back to defaults.
func New(name string, settings Settings, opts ...Option) *Breaker {
	def := DefaultSettings()
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = def.FailureThreshold
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = def.SuccessThreshold
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = def.ResetTimeout
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns a snapshot of the counters.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{
		ConsecutiveFailures:  b.failures,
		ConsecutiveSuccesses: b.successes,
		LastFailure:          b.lastFailure,
	}
}

// Reset forces the breaker back to closed with cleared counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.setState(StateClosed)
	b.lastFailure = time.Time{}
	b.mu.Unlock()

	b.notify(from, StateClosed)
}

// allow reports whether a call may proceed, moving OPEN to HALF_OPEN once the reset timeout elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	from := b.state
	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.settings.ResetTimeout {
			b.mu.Unlock()
			return ErrOpenState
		}
		b.setState(StateHalfOpen)
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.setState(StateClosed)
		}
	case StateOpen:
		// A call admitted before another one tripped the breaker; it does not close it.
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	from := b.state
	b.lastFailure = b.now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	case StateOpen:
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// setState switches state and clears the counters. Callers hold mu.
func (b *Breaker) setState(s State) {
	b.state = s
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// Execute runs fn through the breaker.
//
// On success the result is returned. On failure, or when the breaker rejects
// the call, fallback is invoked with the cause and its value is returned with
// a nil error; without a fallback the cause is returned. A failure observed
// after ctx is done is not counted against the breaker.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error), fallback func(error) T) (T, error) {
	var zero T

	if err := b.allow(); err != nil {
		if fallback != nil {
			return fallback(err), nil
		}
		return zero, err
	}

	v, err := fn(ctx)
	if err == nil {
		b.onSuccess()
		return v, nil
	}

	if ctx.Err() == nil {
		b.onFailure()
	}
	if fallback != nil {
		return fallback(err), nil
	}
	return zero, err
}
