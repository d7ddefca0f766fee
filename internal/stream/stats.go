package stream

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// aggregate computes min/mean/median/max/stddev and the p50/p95/p99
// percentiles (linear interpolation over a sorted copy) for points in
// [start, end). It never mutates points.
func aggregate(streamID string, size WindowSize, points []DataPoint, start, end time.Time) AggregatedWindow {
	values := valuesInRange(points, start, end)
	window := AggregatedWindow{
		Stream:     streamID,
		Size:       size,
		Start:      start,
		End:        end,
		computedAt: start, // overwritten by caller with the real now
	}
	if len(values) == 0 {
		return window
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	window.Count = len(sorted)
	window.Min = sorted[0]
	window.Max = sorted[len(sorted)-1]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	window.Sum = sum
	window.Mean = sum / float64(len(sorted))
	window.Median = percentile(sorted, 50)
	window.P50 = percentile(sorted, 50)
	window.P95 = percentile(sorted, 95)
	window.P99 = percentile(sorted, 99)

	if len(sorted) > 0 {
		window.StdDev = populationStdDev(sorted, window.Mean)
	}
	return window
}

// populationStdDev computes the population (not sample-corrected)
// standard deviation, matching the definition used for window summaries.
func populationStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// percentile performs linear interpolation between closest ranks (the
// common R-7 / numpy-default method) over a pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	h := (p / 100) * float64(n-1)
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func valuesInRange(points []DataPoint, start, end time.Time) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Timestamp.Before(start) || !p.Timestamp.Before(end) {
			continue
		}
		out = append(out, p.Value)
	}
	return out
}

// analyze extends aggregate with skewness, excess kurtosis, and a full
// percentile table. Callers gate this on StatisticalAnalysisMinPoints
// since these higher moments are unstable on small samples.
func analyze(base AggregatedWindow, points []DataPoint, start, end time.Time) StatisticalAnalysis {
	values := valuesInRange(points, start, end)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	out := StatisticalAnalysis{AggregatedWindow: base, Percentiles: make(map[int]float64)}
	if len(sorted) == 0 {
		return out
	}

	_, std := stat.MeanStdDev(sorted, nil)
	out.Skewness = stat.Skew(sorted, nil)
	if std > 0 {
		out.ExcessKurtosis = stat.ExKurtosis(sorted, nil)
	}

	for _, p := range []int{10, 25, 50, 75, 90, 95, 99} {
		out.Percentiles[p] = percentile(sorted, float64(p))
	}
	return out
}

// zScores returns the z-score for each point relative to the mean and
// stddev of the full set. A zero stddev (constant series) yields all
// zero z-scores, so nothing is ever flagged anomalous.
func zScores(points []DataPoint) []float64 {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	mean, std := stat.MeanStdDev(values, nil)
	scores := make([]float64, len(values))
	if std == 0 || math.IsNaN(std) {
		return scores
	}
	for i, v := range values {
		scores[i] = (v - mean) / std
	}
	return scores
}
