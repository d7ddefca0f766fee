package stream

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// trendFlatSlopeEpsilon is the slope magnitude at or below which a
// regression is reported flat rather than up or down.
const trendFlatSlopeEpsilon = 0.01

// detectTrend fits a simple linear regression of value against sample
// index over points (oldest first) and classifies its direction,
// strength (R^2), and confidence (0.95 for R^2 above 0.8, 0.80 above
// 0.6, else 0.60). A next-value prediction is made only when strength
// exceeds 0.5. Callers gate this on TrendMinPoints.
func detectTrend(points []DataPoint, predict bool) Trend {
	n := len(points)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		xs[i] = float64(i)
		ys[i] = p.Value
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, intercept, slope)
	if math.IsNaN(r2) {
		r2 = 0
	}

	direction := TrendFlat
	switch {
	case slope > trendFlatSlopeEpsilon:
		direction = TrendUp
	case slope < -trendFlatSlopeEpsilon:
		direction = TrendDown
	}

	confidence := 0.60
	switch {
	case r2 > 0.8:
		confidence = 0.95
	case r2 > 0.6:
		confidence = 0.80
	}

	trend := Trend{
		Direction:  direction,
		Strength:   math.Abs(r2),
		Confidence: confidence,
	}

	if predict && n > 0 && trend.Strength > 0.5 {
		next := intercept + slope*float64(n)
		trend.Prediction = &next
	}
	return trend
}
