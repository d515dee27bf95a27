package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/metrics"
	"github.com/example/gmpsched/internal/ports/secondary"
)

type stubPerception struct {
	calls int
	err   error
}

func (s *stubPerception) Analyze(ctx context.Context, image []byte) (*secondary.Analysis, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &secondary.Analysis{MaterialName: "Ginseng", EstimatedMoisture: 12.5, Verdict: secondary.VerdictPass}, nil
}

type stubGenerator struct {
	drafts []secondary.PlanDraft
	err    error
}

func (s *stubGenerator) Propose(ctx context.Context, req secondary.GenerationRequest) ([]secondary.PlanDraft, error) {
	return s.drafts, s.err
}

func testBreaker(name string, m *metrics.Metrics) *CircuitBreaker {
	cfg := DefaultCircuitBreakerConfig(name)
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	return NewCircuitBreaker(cfg, nil, m)
}

func TestPerceptionProviderPassesThrough(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig())
	p := NewPerceptionProvider(&stubPerception{}, testBreaker("perception", m), m)

	got, err := p.Analyze(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Ginseng", got.MaterialName)
}

func TestPerceptionProviderTripsAfterConsecutiveFailures(t *testing.T) {
	stub := &stubPerception{err: errors.New("connection refused")}
	breaker := testBreaker("perception", nil)
	p := NewPerceptionProvider(stub, breaker, nil)

	for i := 0; i < 2; i++ {
		_, err := p.Analyze(context.Background(), nil)
		assert.True(t, apperr.Is(err, apperr.CodeProviderUnavailable), "attempt %d: %v", i, err)
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	_, err := p.Analyze(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.CodeProviderUnavailable))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, stub.calls, "open breaker must not reach the provider")
}

func TestCallerCancellationDoesNotTrip(t *testing.T) {
	breaker := testBreaker("perception", nil)
	p := NewPerceptionProvider(&stubPerception{err: context.Canceled}, breaker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := p.Analyze(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
}

func TestPlanGeneratorKeepsProviderUnavailable(t *testing.T) {
	original := apperr.ProviderUnavailable("generation", errors.New("bad json"))
	g := NewPlanGenerator(&stubGenerator{err: original}, testBreaker("generation", nil), nil)

	_, err := g.Propose(context.Background(), secondary.GenerationRequest{})
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Same(t, original, appErr, "an existing PROVIDER_UNAVAILABLE must not be wrapped again")
}

func TestPlanGeneratorEmptyResultIsValid(t *testing.T) {
	g := NewPlanGenerator(&stubGenerator{}, testBreaker("generation", nil), nil)

	drafts, err := g.Propose(context.Background(), secondary.GenerationRequest{})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}
