package stream

// detectAnomalies flags points whose z-score magnitude exceeds
// threshold. A zero population stddev (every value identical) produces
// all-zero z-scores, so nothing is ever flagged against a flat series.
func detectAnomalies(points []DataPoint, threshold float64) []Anomaly {
	scores := zScores(points)
	out := make([]Anomaly, 0)
	for i, z := range scores {
		if z == 0 {
			continue
		}
		abs := z
		if abs < 0 {
			abs = -abs
		}
		if abs <= threshold {
			continue
		}
		class := AnomalyHigh
		if z < 0 {
			class = AnomalyLow
		}
		out = append(out, Anomaly{
			Timestamp: points[i].Timestamp,
			Value:     points[i].Value,
			ZScore:    z,
			Class:     class,
		})
	}
	return out
}
