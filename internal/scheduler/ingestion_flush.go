package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/ingestion"
)

// IngestionFlushJob force-flushes every ingestion stream on a fixed
// cadence, bounding how long a low-volume stream's events can sit
// buffered before they reach the object store.
type IngestionFlushJob struct {
	manager *ingestion.Manager
	log     zerolog.Logger
}

// NewIngestionFlushJob creates a new ingestion flush job.
func NewIngestionFlushJob(manager *ingestion.Manager, log zerolog.Logger) *IngestionFlushJob {
	return &IngestionFlushJob{
		manager: manager,
		log:     log.With().Str("job", "ingestion_flush").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *IngestionFlushJob) Name() string {
	return "ingestion_flush"
}

// Run flushes all buffered streams.
func (j *IngestionFlushJob) Run() error {
	return j.manager.FlushAll(context.Background())
}
