// Package events provides the platform's in-process event bus: typed,
// loggable notifications forwarded from C6-C11 to any subscriber
// (operator tooling, audit stream, tests) without coupling those
// components to each other directly.
package events

// EventType identifies the shape of an event's Data payload.
type EventType string

const (
	OpportunityDetected     EventType = "OPPORTUNITY_DETECTED"
	OpportunityDistributed  EventType = "OPPORTUNITY_DISTRIBUTED"
	OpportunityExpired      EventType = "OPPORTUNITY_EXPIRED"
	StreamAnomalyDetected   EventType = "STREAM_ANOMALY_DETECTED"
	TransactionCommitted    EventType = "TRANSACTION_COMMITTED"
	TransactionRolledBack   EventType = "TRANSACTION_ROLLED_BACK"
	MigrationRolloutStarted EventType = "MIGRATION_ROLLOUT_STARTED"
	MigrationRolledBack     EventType = "MIGRATION_ROLLED_BACK"
	FundSnapshotUpdated     EventType = "FUND_SNAPSHOT_UPDATED"
	ServiceHealthChanged    EventType = "SERVICE_HEALTH_CHANGED"
	IngestionBatchFlushed   EventType = "INGESTION_BATCH_FLUSHED"
	ErrorOccurred           EventType = "ERROR_OCCURRED"
)
