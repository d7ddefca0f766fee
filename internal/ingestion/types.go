// Package ingestion implements the ingestion pipeline manager (C6): it
// groups data-plane events into named streams, batches and partitions
// them into the object store, and falls back to direct writes when a
// configured streaming endpoint is unavailable.
package ingestion

import "time"

// StreamName identifies one of the platform's fixed data-plane streams.
type StreamName string

const (
	StreamMarketData    StreamName = "market_data"
	StreamAnalytics     StreamName = "analytics"
	StreamAudit         StreamName = "audit"
	StreamUserActivity  StreamName = "user_activity"
	StreamSystemMetrics StreamName = "system_metrics"
	StreamTradingSignals StreamName = "trading_signals"
	StreamAIAnalysis    StreamName = "ai_analysis"
	StreamCustom        StreamName = "custom"
)

// StreamPolicy describes how one named stream is written.
type StreamPolicy struct {
	TargetID     string
	KeyPrefix    string
	CompressData bool
}

// defaultPolicies mirrors the spec's per-stream defaults: audit and
// trading-signals are left uncompressed (already small, or needed
// verbatim for audit trails), every other stream is compressed.
func defaultPolicies() map[StreamName]StreamPolicy {
	return map[StreamName]StreamPolicy{
		StreamMarketData:     {TargetID: "market-data-store", KeyPrefix: "market_data", CompressData: true},
		StreamAnalytics:      {TargetID: "analytics-store", KeyPrefix: "analytics", CompressData: true},
		StreamAudit:          {TargetID: "audit-store", KeyPrefix: "audit", CompressData: false},
		StreamUserActivity:   {TargetID: "user-activity-store", KeyPrefix: "user_activity", CompressData: true},
		StreamSystemMetrics:  {TargetID: "system-metrics-store", KeyPrefix: "system_metrics", CompressData: true},
		StreamTradingSignals: {TargetID: "trading-signals-store", KeyPrefix: "trading_signals", CompressData: false},
		StreamAIAnalysis:     {TargetID: "ai-analysis-store", KeyPrefix: "ai_analysis", CompressData: true},
		StreamCustom:         {TargetID: "custom-store", KeyPrefix: "custom", CompressData: true},
	}
}

// Event is one data-plane record submitted for ingestion.
type Event struct {
	ID        string
	Stream    StreamName
	Partition string
	Payload   []byte
	At        time.Time
}

// StreamCounters tracks per-stream outcome counts.
type StreamCounters struct {
	Submitted       uint64
	Flushed         uint64
	Failed          uint64
	FallbackWrites  uint64
	AverageLatency  time.Duration
}

// Metrics is the pipeline's aggregate view across all streams.
type Metrics struct {
	PerStream map[StreamName]StreamCounters
}
