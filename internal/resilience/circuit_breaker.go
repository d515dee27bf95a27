// Package resilience wraps external providers with circuit breakers so a
// failing provider is short-circuited instead of stalling every session.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/example/gmpsched/internal/logging"
	"github.com/example/gmpsched/internal/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Defaults for provider breakers.
const (
	DefaultMaxRequests           uint32  = 1
	DefaultInterval                      = time.Minute
	DefaultTimeout                       = 30 * time.Second
	DefaultFailureThreshold      uint32  = 5
	DefaultFailureRatioThreshold float64 = 0.6
	DefaultMinRequestsToTrip     uint32  = 10
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name                  string
	MaxRequests           uint32        // requests allowed in half-open state
	Interval              time.Duration // closed-state window for clearing counts (0 = never)
	Timeout               time.Duration // open duration before half-open
	FailureThreshold      uint32        // consecutive failures that trip the breaker
	FailureRatioThreshold float64
	MinRequestsToTrip     uint32 // requests before the ratio is considered
}

// DefaultCircuitBreakerConfig returns the defaults for a named breaker.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:                  name,
		MaxRequests:           DefaultMaxRequests,
		Interval:              DefaultInterval,
		Timeout:               DefaultTimeout,
		FailureThreshold:      DefaultFailureThreshold,
		FailureRatioThreshold: DefaultFailureRatioThreshold,
		MinRequestsToTrip:     DefaultMinRequestsToTrip,
	}
}

// CircuitBreaker wraps gobreaker with logging and metrics.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *logging.Logger
}

// NewCircuitBreaker creates a circuit breaker. logger and m may be nil.
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger *logging.Logger, m *metrics.Metrics) *CircuitBreaker {
	if logger == nil {
		logger = logging.Nop()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if counts.Requests >= cfg.MinRequestsToTrip {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= cfg.FailureRatioThreshold
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			m.SetCircuitBreakerState(name, stateValue(to))
		},
	}
	m.SetCircuitBreakerState(cfg.Name, stateValue(gobreaker.StateClosed))

	return &CircuitBreaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		name:   cfg.Name,
		logger: logger,
	}
}

// Execute runs fn through the breaker. Context cancellation by the caller is
// not counted as a provider failure.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	var callerErr error
	result, err := c.cb.Execute(func() (any, error) {
		res, err := fn(ctx)
		if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
			callerErr = err
			return nil, nil
		}
		return res, err
	})
	if callerErr != nil {
		return nil, callerErr
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		c.logger.Warn("circuit breaker is open", "name", c.name)
		return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		c.logger.Warn("circuit breaker: too many requests", "name", c.name)
		return nil, fmt.Errorf("%s: too many requests while half-open: %w", c.name, ErrCircuitOpen)
	}
	return result, err
}

// State returns the current state of the breaker.
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string {
	return c.name
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
