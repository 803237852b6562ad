// Package pricing implements the dynamic pricing evaluator: a pure
// function over observable event state. It performs no I/O — the
// Scheduler's PriceTick job gathers Input from the Store and owns the
// >=1% persistence gate described in spec §4.8.
//
// Ported from original_source/services/dynamic_pricing_service.py's
// _calculate_dynamic_price and its four multiplier helpers; weights and
// piecewise thresholds are carried verbatim, expressed with
// shopspring/decimal instead of Python's Decimal so money math never
// touches binary floating point.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config bounds the demand multiplier's interpolation range and the
// overall clamp applied to the combined price. Defaults mirror the
// retrieved original's DynamicPricingRule defaults (0.3/0.8 capacity
// thresholds, +50%/-20% bounds).
type Config struct {
	LowThreshold  float64 // capacity utilization at/below which demand multiplier floors to 1-MaxDecrease
	HighThreshold float64 // capacity utilization at/above which demand multiplier ceils to 1+MaxIncrease
	MaxIncrease   float64 // e.g. 0.5 for +50%
	MaxDecrease   float64 // e.g. 0.2 for -20%
}

func DefaultConfig() Config {
	return Config{LowThreshold: 0.3, HighThreshold: 0.8, MaxIncrease: 0.5, MaxDecrease: 0.2}
}

// Input is the observable state the evaluator needs for one event. All
// counts are as of Now.
type Input struct {
	BasePrice         decimal.Decimal
	TotalCapacity     int
	AvailableCapacity int
	EventDate         time.Time
	Now               time.Time
	RecentBookings    int64 // CONFIRMED|PENDING created in [Now-7d, Now)
	PreviousBookings  int64 // CONFIRMED|PENDING created in [Now-14d, Now-7d)
	WaitlistSize      int64
}

// Evaluate computes the new price. Idempotent in its inputs; the caller
// decides whether the delta from BasePrice clears the persistence gate.
func Evaluate(in Input, cfg Config) decimal.Decimal {
	demand := demandMultiplier(in, cfg)
	timeM := timeMultiplier(in)
	velocity := velocityMultiplier(in)
	waitlist := waitlistMultiplier(in)

	combined := demand*0.4 + timeM*0.25 + velocity*0.25 + waitlist*0.1

	raw := in.BasePrice.Mul(decimal.NewFromFloat(combined))
	maxPrice := in.BasePrice.Mul(decimal.NewFromFloat(1 + cfg.MaxIncrease))
	minPrice := in.BasePrice.Mul(decimal.NewFromFloat(1 - cfg.MaxDecrease))

	clamped := raw
	if clamped.GreaterThan(maxPrice) {
		clamped = maxPrice
	}
	if clamped.LessThan(minPrice) {
		clamped = minPrice
	}
	return clamped.Round(2)
}

// demandMultiplier linearly interpolates capacity utilization, clamped to
// [cfg.LowThreshold, cfg.HighThreshold], onto the multiplier range
// [1-MaxDecrease, 1+MaxIncrease].
func demandMultiplier(in Input, cfg Config) float64 {
	if in.TotalCapacity <= 0 {
		return 1.0
	}
	util := float64(in.TotalCapacity-in.AvailableCapacity) / float64(in.TotalCapacity)
	util = clamp(util, cfg.LowThreshold, cfg.HighThreshold)

	span := cfg.HighThreshold - cfg.LowThreshold
	ratio := 0.5
	if span > 0 {
		ratio = (util - cfg.LowThreshold) / span
	}

	low := 1 - cfg.MaxDecrease
	high := 1 + cfg.MaxIncrease
	return low + ratio*(high-low)
}

// timeMultiplier is a piecewise function of days until the event. Frozen
// constants per the retrieved original and spec §4.8; correctness tests
// assert monotonic direction only (spec §9 open question).
func timeMultiplier(in Input) float64 {
	daysUntil := int(in.EventDate.Sub(in.Now).Hours() / 24)
	switch {
	case daysUntil <= 1:
		return 1.2
	case daysUntil <= 7:
		return 1.1
	case daysUntil <= 30:
		return 1.0
	case daysUntil <= 90:
		return 0.95
	default:
		return 0.9
	}
}

// velocityMultiplier compares recent to previous 7-day booking counts.
// When there is no previous-period baseline, a burst of recent activity
// (>5 bookings) still nudges the price up, matching the original's
// no-baseline special case.
func velocityMultiplier(in Input) float64 {
	if in.PreviousBookings == 0 {
		if in.RecentBookings > 5 {
			return 1.15
		}
		return 1.0
	}
	ratio := float64(in.RecentBookings) / float64(in.PreviousBookings)
	switch {
	case ratio >= 2.0:
		return 1.2
	case ratio >= 1.5:
		return 1.1
	case ratio <= 0.5:
		return 0.9
	default:
		return 1.0
	}
}

// waitlistMultiplier measures waitlist pressure relative to remaining
// capacity, falling back to a baseline of 10 for sold-out events so
// pressure is still measurable when AvailableCapacity is 0.
func waitlistMultiplier(in Input) float64 {
	if in.WaitlistSize == 0 {
		return 1.0
	}
	denom := in.AvailableCapacity
	if denom < 10 {
		denom = 10
	}
	pressure := float64(in.WaitlistSize) / float64(denom)
	switch {
	case pressure >= 2.0:
		return 1.3
	case pressure >= 1.0:
		return 1.15
	case pressure >= 0.5:
		return 1.05
	default:
		return 1.0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PercentDelta returns the absolute percentage change from oldPrice to
// newPrice, used by the Scheduler's >=1% persistence gate.
func PercentDelta(oldPrice, newPrice decimal.Decimal) float64 {
	if oldPrice.IsZero() {
		return 0
	}
	delta := newPrice.Sub(oldPrice).Div(oldPrice).Mul(decimal.NewFromInt(100))
	f, _ := delta.Abs().Float64()
	return f
}
