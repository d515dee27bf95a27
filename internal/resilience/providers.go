package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/metrics"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// PerceptionProvider decorates a perception provider with a breaker and
// call metrics. Every failure leaves as PROVIDER_UNAVAILABLE.
type PerceptionProvider struct {
	next    secondary.PerceptionProvider
	breaker *CircuitBreaker
	metrics *metrics.Metrics
}

// NewPerceptionProvider wraps next.
func NewPerceptionProvider(next secondary.PerceptionProvider, breaker *CircuitBreaker, m *metrics.Metrics) *PerceptionProvider {
	return &PerceptionProvider{next: next, breaker: breaker, metrics: m}
}

// Analyze implements secondary.PerceptionProvider.
func (p *PerceptionProvider) Analyze(ctx context.Context, image []byte) (*secondary.Analysis, error) {
	start := time.Now()
	res, err := p.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return p.next.Analyze(ctx, image)
	})
	p.metrics.RecordProviderCall("perception", err, time.Since(start))
	if err != nil {
		return nil, unavailable("perception", err)
	}
	analysis, _ := res.(*secondary.Analysis)
	if analysis == nil {
		return nil, apperr.ProviderUnavailable("perception", errEmptyResult)
	}
	return analysis, nil
}

// PlanGenerator decorates a plan generator with a breaker and call metrics.
type PlanGenerator struct {
	next    secondary.PlanGenerator
	breaker *CircuitBreaker
	metrics *metrics.Metrics
}

// NewPlanGenerator wraps next.
func NewPlanGenerator(next secondary.PlanGenerator, breaker *CircuitBreaker, m *metrics.Metrics) *PlanGenerator {
	return &PlanGenerator{next: next, breaker: breaker, metrics: m}
}

// Propose implements secondary.PlanGenerator.
func (g *PlanGenerator) Propose(ctx context.Context, req secondary.GenerationRequest) ([]secondary.PlanDraft, error) {
	start := time.Now()
	res, err := g.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return g.next.Propose(ctx, req)
	})
	g.metrics.RecordProviderCall("generation", err, time.Since(start))
	if err != nil {
		return nil, unavailable("generation", err)
	}
	drafts, _ := res.([]secondary.PlanDraft)
	return drafts, nil
}

// unavailable keeps an existing PROVIDER_UNAVAILABLE error and wraps
// anything else.
func unavailable(provider string, err error) error {
	if apperr.Is(err, apperr.CodeProviderUnavailable) {
		return err
	}
	return apperr.ProviderUnavailable(provider, err)
}

var errEmptyResult = errors.New("provider returned no result")

var (
	_ secondary.PerceptionProvider = (*PerceptionProvider)(nil)
	_ secondary.PlanGenerator      = (*PlanGenerator)(nil)
)
