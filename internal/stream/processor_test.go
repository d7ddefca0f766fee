package stream

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestProcessor_WindowScenarioFromSpec(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()

	for i := 1; i <= 10; i++ {
		p.Ingest("pair:BTC/USDT", float64(i), now.Add(-time.Duration(10-i)*time.Second))
	}

	window, err := p.Window("pair:BTC/USDT", Window1Min, now.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, 10, window.Count)
	assert.InDelta(t, 5.5, window.Mean, 1e-9)
	assert.InDelta(t, 5.5, window.P50, 1e-9)
	assert.InDelta(t, 9.55, window.P95, 1e-9)
	assert.InDelta(t, 2.8723, window.StdDev, 1e-3)
	assert.Equal(t, 1.0, window.Min)
	assert.Equal(t, 10.0, window.Max)
}

func TestProcessor_WindowInvariants(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5}
	for i, v := range values {
		p.Ingest("s1", v, now.Add(-time.Duration(len(values)-i)*time.Second))
	}

	window, err := p.Window("s1", Window1Min, now.Add(time.Second))
	require.NoError(t, err)

	assert.LessOrEqual(t, window.Min, window.P50)
	assert.LessOrEqual(t, window.P50, window.Mean+1e-9)
	assert.LessOrEqual(t, window.Mean, window.P99+1e-9)
	assert.LessOrEqual(t, window.P99, window.Max+1e-9)
	assert.InDelta(t, window.Mean*float64(window.Count), window.Sum, 1e-9)
}

func TestProcessor_WindowRejectsUnsupportedSize(t *testing.T) {
	p := newTestProcessor(t)
	_, err := p.Window("s1", WindowSize(42), time.Now())
	assert.Error(t, err)
}

func TestProcessor_BufferEvictsOldestOnOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPointsPerStream = 3
	p, err := NewProcessor(cfg, zerolog.Nop())
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 5; i++ {
		p.Ingest("s1", float64(i), now.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, 3, p.Len("s1"))
	assert.Equal(t, uint64(2), p.Evicted("s1"))
}

func TestProcessor_AnalyzeRequiresMinimumPoints(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		p.Ingest("s1", float64(i), now.Add(time.Duration(i)*time.Second))
	}
	_, ok := p.Analyze("s1", now.Add(10*time.Second))
	assert.False(t, ok)

	for i := 5; i < 10; i++ {
		p.Ingest("s1", float64(i), now.Add(time.Duration(i)*time.Second))
	}
	analysis, ok := p.Analyze("s1", now.Add(10*time.Second))
	require.True(t, ok)
	assert.Contains(t, analysis.Percentiles, 50)
}

func TestProcessor_TrendDetectsUpwardSeries(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()
	for i := 0; i < 25; i++ {
		p.Ingest("s1", float64(i), now.Add(time.Duration(i)*time.Second))
	}

	trend, ok := p.Trend("s1", true)
	require.True(t, ok)
	assert.Equal(t, TrendUp, trend.Direction)
	assert.Greater(t, trend.Strength, 0.9)
	require.NotNil(t, trend.Prediction)
	assert.InDelta(t, 25, *trend.Prediction, 1e-6)
}

func TestProcessor_TrendBelowMinimumPointsIsNotDetected(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		p.Ingest("s1", float64(i), now.Add(time.Duration(i)*time.Second))
	}
	_, ok := p.Trend("s1", false)
	assert.False(t, ok)
}

func TestProcessor_AnomalyDetectionFlagsOutliers(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()
	for i := 0; i < 20; i++ {
		p.Ingest("s1", 100, now.Add(time.Duration(i)*time.Second))
	}
	p.Ingest("s1", 10_000, now.Add(21*time.Second))

	anomalies := p.Anomalies("s1")
	require.NotEmpty(t, anomalies)
	assert.Equal(t, AnomalyHigh, anomalies[len(anomalies)-1].Class)
}

func TestProcessor_AnomalyDetectionNeverFlagsConstantSeries(t *testing.T) {
	p := newTestProcessor(t)
	now := time.Now()
	for i := 0; i < 20; i++ {
		p.Ingest("s1", 42, now.Add(time.Duration(i)*time.Second))
	}

	anomalies := p.Anomalies("s1")
	assert.Empty(t, anomalies)
}

func TestProcessor_CleanupPrunesAgedPoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPointAge = time.Minute
	p, err := NewProcessor(cfg, zerolog.Nop())
	require.NoError(t, err)

	now := time.Now()
	p.Ingest("s1", 1, now.Add(-2*time.Hour))
	p.Ingest("s1", 2, now)

	pruned := p.Cleanup(now)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, p.Len("s1"))
}

func TestProcessor_WindowCachedWithinTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AggregationCacheTTL = time.Hour
	p, err := NewProcessor(cfg, zerolog.Nop())
	require.NoError(t, err)

	now := time.Now()
	p.Ingest("s1", 1, now)
	first, err := p.Window("s1", Window1Min, now.Add(time.Second))
	require.NoError(t, err)

	// A later ingest invalidates the cache eagerly, so a point added
	// after the first read must show up in the very next read.
	p.Ingest("s1", 2, now.Add(time.Second))
	second, err := p.Window("s1", Window1Min, now.Add(2*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Count)
	assert.Equal(t, 2, second.Count)
}
