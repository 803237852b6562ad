package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"evently/internal/pricing"
)

func baseInput() pricing.Input {
	return pricing.Input{
		BasePrice:         decimal.NewFromInt(100),
		TotalCapacity:     100,
		AvailableCapacity: 55, // 45% utilization, inside neutral band
		EventDate:         time.Now().UTC().Add(60 * 24 * time.Hour),
		Now:               time.Now().UTC(),
	}
}

func TestEvaluate_NeutralConditionsStaysWithinBounds(t *testing.T) {
	cfg := pricing.DefaultConfig()
	in := baseInput()
	got := pricing.Evaluate(in, cfg)
	// 45% utilization sits between thresholds; 60 days out -> time=0.95;
	// no booking/waitlist data -> velocity=1.0, waitlist=1.0. Demand
	// interpolates partway between the clamp bounds, so price should move
	// only moderately, never past the configured bounds.
	assert.True(t, got.GreaterThanOrEqual(in.BasePrice.Mul(decimal.NewFromFloat(0.8))))
	assert.True(t, got.LessThanOrEqual(in.BasePrice.Mul(decimal.NewFromFloat(1.5))))
}

func TestEvaluate_HighDemandIncreasesPrice(t *testing.T) {
	cfg := pricing.DefaultConfig()
	low := baseInput()
	low.AvailableCapacity = 90 // 10% utilization -> low demand

	high := baseInput()
	high.AvailableCapacity = 2 // 98% utilization -> high demand

	lowPrice := pricing.Evaluate(low, cfg)
	highPrice := pricing.Evaluate(high, cfg)
	assert.True(t, highPrice.GreaterThan(lowPrice), "higher utilization must never price below lower utilization")
}

func TestEvaluate_LastMinuteCommandsPremiumOverEarlyBird(t *testing.T) {
	cfg := pricing.DefaultConfig()
	lastMinute := baseInput()
	lastMinute.EventDate = lastMinute.Now.Add(12 * time.Hour)

	earlyBird := baseInput()
	earlyBird.EventDate = earlyBird.Now.Add(200 * 24 * time.Hour)

	assert.True(t, pricing.Evaluate(lastMinute, cfg).GreaterThan(pricing.Evaluate(earlyBird, cfg)))
}

func TestEvaluate_VelocitySpikeIncreasesPrice(t *testing.T) {
	cfg := pricing.DefaultConfig()
	flat := baseInput()
	flat.RecentBookings, flat.PreviousBookings = 10, 10

	spiking := baseInput()
	spiking.RecentBookings, spiking.PreviousBookings = 30, 10

	assert.True(t, pricing.Evaluate(spiking, cfg).GreaterThan(pricing.Evaluate(flat, cfg)))
}

func TestEvaluate_WaitlistPressureIncreasesPrice(t *testing.T) {
	cfg := pricing.DefaultConfig()
	none := baseInput()
	none.WaitlistSize = 0

	pressured := baseInput()
	pressured.WaitlistSize = 200 // pressure >= 2.0 relative to AvailableCapacity=55

	assert.True(t, pricing.Evaluate(pressured, cfg).GreaterThan(pricing.Evaluate(none, cfg)))
}

func TestEvaluate_NeverExceedsConfiguredBounds(t *testing.T) {
	cfg := pricing.DefaultConfig()
	extreme := baseInput()
	extreme.AvailableCapacity = 0
	extreme.EventDate = extreme.Now.Add(6 * time.Hour)
	extreme.RecentBookings, extreme.PreviousBookings = 100, 10
	extreme.WaitlistSize = 1000

	got := pricing.Evaluate(extreme, cfg)
	maxPrice := extreme.BasePrice.Mul(decimal.NewFromFloat(1 + cfg.MaxIncrease)).Round(2)
	assert.True(t, got.LessThanOrEqual(maxPrice))
}

func TestEvaluate_RoundsToTwoDecimalPlaces(t *testing.T) {
	cfg := pricing.DefaultConfig()
	in := baseInput()
	in.BasePrice = decimal.NewFromFloat(33.33)
	got := pricing.Evaluate(in, cfg)
	assert.True(t, got.Equal(got.Round(2)))
}

func TestPercentDelta(t *testing.T) {
	assert.InDelta(t, 10.0, pricing.PercentDelta(decimal.NewFromInt(100), decimal.NewFromInt(110)), 0.0001)
	assert.InDelta(t, 0.0, pricing.PercentDelta(decimal.Zero, decimal.NewFromInt(10)), 0.0001)
}
