package enhancement

import (
	talib "github.com/markcheno/go-talib"

	"github.com/aristath/arbitrage-platform/pkg/formulas"
)

// structureScore derives a [0, 1] market-structure confirmation score
// from a close-price series: it blends RSI's distance from neutral,
// the latest close's position relative to its SMA, its position
// within its Bollinger band, and its distance from its EMA, all
// normalized to the same -1..1 momentum scale before folding into 0..1.
// Returns false if the series is too short for RSI or SMA to warm up.
func structureScore(closes []float64, rsiPeriod, smaPeriod int) (float64, bool) {
	longest := rsiPeriod
	if smaPeriod > longest {
		longest = smaPeriod
	}
	if len(closes) <= longest {
		return 0, false
	}

	rsi := talib.Rsi(closes, rsiPeriod)
	sma := talib.Sma(closes, smaPeriod)
	last := len(closes) - 1

	lastRSI := rsi[last]
	lastSMA := sma[last]
	lastClose := closes[last]

	momentum := clampRange((lastRSI-50)/50, -1, 1) // -1..1: RSI distance from neutral

	trend := 0.0
	if lastSMA != 0 {
		trend = clampRange((lastClose-lastSMA)/lastSMA*10, -1, 1) // -1..1: close vs SMA
	}

	band := 0.0
	if pos := formulas.CalculateBollingerPosition(closes, smaPeriod, 2.0); pos != nil {
		band = clampRange(pos.Position*2-1, -1, 1) // 0..1 band position -> -1..1
	}

	emaTrend := 0.0
	if dist := formulas.CalculateDistanceFromEMA(closes, smaPeriod); dist != nil {
		emaTrend = clampRange(*dist*10, -1, 1) // percentage distance from EMA -> -1..1
	}

	structure := (momentum + trend + band + emaTrend) / 4 // -1..1
	return clampRange(structure/2+0.5, 0, 1), true
}

// tailRiskScore reports a [0, 1] score where higher means the recent
// return series has fatter downside tails, from the 95% CVaR of simple
// returns derived from closes. Returns false for a series too short to
// derive at least two returns.
func tailRiskScore(closes []float64) (float64, bool) {
	if len(closes) < 3 {
		return 0, false
	}
	returns := formulas.CalculateReturns(closes)
	if len(returns) < 2 {
		return 0, false
	}

	cvar := formulas.CalculateCVaR(returns, 0.95) // negative for losses
	return clampRange(-cvar*10, 0, 1), true
}

func clampRange(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
