// Package moisture translates detected-vs-standard moisture into drying time.
// It is the single place where perception affects stage durations.
package moisture

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/gmpsched/internal/core/production"
)

var (
	// Threshold is the excess moisture, in percentage points, above which
	// drying is extended. The comparison is strict.
	Threshold = decimal.RequireFromString("2.0")

	// ExtensionFactor is applied to the base drying duration.
	ExtensionFactor = decimal.RequireFromString("1.20")
)

// Excess returns detected minus standard moisture in percentage points.
// A nil detected value counts as equal to the standard.
func Excess(detected *float64, standard float64) decimal.Decimal {
	if detected == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*detected).Sub(decimal.NewFromFloat(standard))
}

// NeedsExtension reports whether the excess moisture exceeds the threshold.
func NeedsExtension(detected *float64, standard float64) bool {
	return Excess(detected, standard).GreaterThan(Threshold)
}

// AdjustDryingDuration returns base x 1.20 when detected exceeds standard by
// more than 2.0 points, otherwise base unchanged.
func AdjustDryingDuration(base time.Duration, detected *float64, standard float64) time.Duration {
	if !NeedsExtension(detected, standard) {
		return base
	}
	ns := decimal.NewFromInt(int64(base)).Mul(ExtensionFactor).Round(0)
	return time.Duration(ns.IntPart())
}

// NeedsExtendedDrying reports whether the order's drying stage is extended.
func NeedsExtendedDrying(o production.Order) bool {
	return NeedsExtension(o.DetectedMoisture, o.Material.StandardMoisture)
}

// StageDuration returns the duration of a stage for an order. Only drying is
// moisture adjusted.
func StageDuration(p production.ProcessType, base time.Duration, o production.Order) time.Duration {
	if p != production.ProcessDrying {
		return base
	}
	return AdjustDryingDuration(base, o.DetectedMoisture, o.Material.StandardMoisture)
}
