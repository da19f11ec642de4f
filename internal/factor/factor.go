// Package factor provides a narrow set of pure analytics functions over
// reconciled market data: a stand-in for the out-of-scope strategy/factor
// layer, included only to exercise the order book and kline models with a
// realistic downstream consumer.
package factor

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
)

// SimpleMovingAverage returns the arithmetic mean of the close prices of
// the last n klines (or all of them if there are fewer than n). Returns
// false if klines is empty.
func SimpleMovingAverage(klines []models.Kline, n int) (decimal.Decimal, bool) {
	if len(klines) == 0 {
		return decimal.Zero, false
	}
	if n <= 0 || n > len(klines) {
		n = len(klines)
	}
	window := klines[len(klines)-n:]

	sum := decimal.Zero
	for _, k := range window {
		sum = sum.Add(k.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

// RealizedVolatility returns the standard deviation of log returns between
// consecutive kline closes in the window, a common realized-volatility
// estimator. Returns false if fewer than two returns can be formed (fewer
// than three klines, after skipping pairs whose earlier close is not
// positive).
func RealizedVolatility(klines []models.Kline) (float64, bool) {
	if len(klines) < 2 {
		return 0, false
	}

	returns := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		prev, _ := klines[i-1].Close.Float64()
		curr, _ := klines[i].Close.Float64()
		if prev <= 0 {
			continue
		}
		returns = append(returns, math.Log(curr/prev))
	}
	if len(returns) < 2 {
		return 0, false
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance), true
}

// MidPriceSpread returns the absolute spread between a Snapshot's best bid
// and ask, and the spread expressed in basis points of the mid price.
func MidPriceSpread(bid, ask decimal.Decimal) (spread decimal.Decimal, bps decimal.Decimal, ok bool) {
	if bid.IsZero() && ask.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	spread = ask.Sub(bid)
	bps = spread.Div(mid).Mul(decimal.NewFromInt(10_000))
	return spread, bps, true
}
