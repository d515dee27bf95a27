// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"

	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/effects"
	"github.com/example/gmpsched/internal/ctxutil"
	"github.com/example/gmpsched/internal/logging"
	"github.com/example/gmpsched/internal/metrics"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor implements EffectExecutor against the booking
// repository and the structured logger.
type DefaultEffectExecutor struct {
	bookings secondary.BookingRepository
	locks    *EquipmentLocks
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewEffectExecutor creates a new DefaultEffectExecutor. logger and m may be nil.
func NewEffectExecutor(bookings secondary.BookingRepository, locks *EquipmentLocks, logger *logging.Logger, m *metrics.Metrics) *DefaultEffectExecutor {
	if logger == nil {
		logger = logging.Nop()
	}
	if locks == nil {
		locks = NewEquipmentLocks()
	}
	return &DefaultEffectExecutor{
		bookings: bookings,
		locks:    locks,
		logger:   logger.WithComponent("effects"),
		metrics:  m,
	}
}

// Execute processes a slice of effects, executing each in sequence.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.ReserveEffect:
		return e.executeReserve(ctx, typed)
	case effects.ReleaseEffect:
		return e.executeRelease(ctx, typed)
	case effects.CompositeEffect:
		return e.Execute(ctx, typed.Effects)
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		e.executeLog(ctx, typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeReserve(ctx context.Context, eff effects.ReserveEffect) error {
	ids := make([]string, 0, len(eff.Windows))
	records := make([]*secondary.BookingRecord, 0, len(eff.Windows))
	for _, w := range eff.Windows {
		ids = append(ids, w.EquipmentID)
		records = append(records, &secondary.BookingRecord{
			SessionID:   eff.SessionID,
			PlanID:      eff.PlanID,
			EquipmentID: w.EquipmentID,
			OrderID:     w.OrderID,
			Start:       w.Start,
			End:         w.End,
		})
	}

	unlock := e.locks.Lock(ids...)
	defer unlock()

	err := e.bookings.Reserve(ctx, eff.SessionID, eff.PlanID, ctxutil.OperatorFromContext(ctx), records)
	if apperr.Is(err, apperr.CodeEquipmentConflict) {
		e.metrics.RecordBookingConflict()
	}
	return err
}

func (e *DefaultEffectExecutor) executeRelease(ctx context.Context, eff effects.ReleaseEffect) error {
	n, err := e.bookings.Release(ctx, eff.SessionID)
	if err != nil {
		return err
	}
	e.logger.Debug("bookings released", "session", eff.SessionID, "windows", n)
	return nil
}

func (e *DefaultEffectExecutor) executeLog(ctx context.Context, eff effects.LogEffect) {
	args := make([]any, 0, 2*len(eff.Fields))
	for k, v := range eff.Fields {
		args = append(args, k, v)
	}
	logger := e.logger.WithContext(ctx)
	switch eff.Level {
	case "debug":
		logger.Debug(eff.Message, args...)
	case "warn":
		logger.Warn(eff.Message, args...)
	case "error":
		logger.Error(eff.Message, args...)
	default:
		logger.Info(eff.Message, args...)
	}
}

var _ EffectExecutor = (*DefaultEffectExecutor)(nil)
