package di

import (
	"context"

	"github.com/aristath/arbitrage-platform/internal/enhancement"
	"github.com/aristath/arbitrage-platform/internal/stream"
)

// StreamPriceSeries adapts the stream processor (C5) into the
// enhancement package's PriceSeriesProvider, reading a pair's recent
// ingested rate readings as its close-price series.
type StreamPriceSeries struct {
	processor *stream.Processor
}

// NewStreamPriceSeries creates a new price-series adapter.
func NewStreamPriceSeries(processor *stream.Processor) *StreamPriceSeries {
	return &StreamPriceSeries{processor: processor}
}

// GetRecentCloses implements enhancement.PriceSeriesProvider.
func (s *StreamPriceSeries) GetRecentCloses(_ context.Context, pair string, lookback int) ([]float64, error) {
	return s.processor.Recent(pair, lookback), nil
}

// StreamPairReliability adapts the stream processor's anomaly
// detection into the enhancement package's ReliabilityProvider: a
// pair with more recent anomalies scores lower.
type StreamPairReliability struct {
	processor *stream.Processor
}

// NewStreamPairReliability creates a new reliability adapter.
func NewStreamPairReliability(processor *stream.Processor) *StreamPairReliability {
	return &StreamPairReliability{processor: processor}
}

// GetPairReliability implements enhancement.ReliabilityProvider.
func (s *StreamPairReliability) GetPairReliability(_ context.Context, pair string) (float64, error) {
	anomalies := s.processor.Anomalies(pair)
	total := s.processor.Len(pair)
	if total == 0 {
		return 0.75, nil
	}

	score := 1 - float64(len(anomalies))/float64(total)
	if score < 0 {
		score = 0
	}
	return score, nil
}

// StaticAccessResolver grants every user the same AI-enhancement
// access level. Per-user subscription-tier entitlement tables are out
// of scope (modeled as the AccessResolver interface only); this
// adapter lets the enhancer run without one.
type StaticAccessResolver struct {
	level enhancement.AccessLevel
}

// NewStaticAccessResolver creates a new static access resolver.
func NewStaticAccessResolver(level enhancement.AccessLevel) *StaticAccessResolver {
	return &StaticAccessResolver{level: level}
}

// ResolveAccessLevel implements enhancement.AccessResolver.
func (s *StaticAccessResolver) ResolveAccessLevel(_ context.Context, _ string) (enhancement.AccessLevel, error) {
	return s.level, nil
}
