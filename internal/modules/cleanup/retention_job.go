// Package cleanup provides scheduled data-retention maintenance over
// the platform's audit trails: the transaction coordinator's log and
// the fund monitor's balance history.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/repository"
)

// RetentionJob prunes rows older than Retention from the transaction
// log and fund snapshot history tables, so both audit trails stay
// bounded without an operator having to intervene.
type RetentionJob struct {
	txLog     *repository.TransactionLogRepository
	snapshots *repository.FundSnapshotRepository
	retention time.Duration
	log       zerolog.Logger
}

// NewRetentionJob creates a new retention job.
func NewRetentionJob(txLog *repository.TransactionLogRepository, snapshots *repository.FundSnapshotRepository, retention time.Duration, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		txLog:     txLog,
		snapshots: snapshots,
		retention: retention,
		log:       log.With().Str("job", "retention").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *RetentionJob) Name() string {
	return "retention"
}

// Run prunes both audit trails. It reports an error only if both
// prunes fail; a single failure is logged and treated as non-fatal so
// the healthier trail still gets trimmed.
func (j *RetentionJob) Run() error {
	cutoff := time.Now().Add(-j.retention)
	ctx := context.Background()

	errs := 0

	if err := j.txLog.Prune(ctx, cutoff); err != nil {
		j.log.Error().Err(err).Msg("failed to prune transaction log")
		errs++
	}

	if err := j.snapshots.Prune(ctx, cutoff); err != nil {
		j.log.Error().Err(err).Msg("failed to prune fund snapshots")
		errs++
	}

	if errs == 2 {
		return fmt.Errorf("retention job failed for both transaction log and fund snapshots")
	}

	j.log.Info().Time("cutoff", cutoff).Msg("retention job completed")
	return nil
}
