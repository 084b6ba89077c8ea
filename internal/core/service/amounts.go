package service

import (
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uomi-testnet/uomi-bot/internal/config"
)

// drawAmount picks a uniformly random amount in rng at config.AmountPrecision.
// Both bounds are inclusive.
func drawAmount(r *rand.Rand, rng config.AmountRange) decimal.Decimal {
	lo, hi := rng.Units()
	if hi <= lo {
		return decimal.New(lo, -config.AmountPrecision)
	}
	return decimal.New(lo+r.Int64N(hi-lo+1), -config.AmountPrecision)
}

// drawDelay picks a uniformly random delay in [d.Min, d.Max].
func drawDelay(r *rand.Rand, d config.DelayRange) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(r.Int64N(int64(d.Max-d.Min)+1))
}
