package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/migration"
)

// MigrationSafetyPollJob re-evaluates every active rollout's safety
// thresholds on a fixed cadence, so a rollout whose metrics degrade
// between explicit UpdateMetrics calls still gets rolled back.
type MigrationSafetyPollJob struct {
	manager *migration.Manager
	log     zerolog.Logger
}

// NewMigrationSafetyPollJob creates a new migration safety poll job.
func NewMigrationSafetyPollJob(manager *migration.Manager, log zerolog.Logger) *MigrationSafetyPollJob {
	return &MigrationSafetyPollJob{
		manager: manager,
		log:     log.With().Str("job", "migration_safety_poll").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *MigrationSafetyPollJob) Name() string {
	return "migration_safety_poll"
}

// Run progresses every active rollout by one safety check.
// ProgressRollout rolls back or advances the rollout internally based
// on its last reported metrics; a single rollout's failure does not
// stop the others from being polled.
func (j *MigrationSafetyPollJob) Run() error {
	ctx := context.Background()
	ids := j.manager.ActiveRolloutIDs()

	errs := 0
	for _, id := range ids {
		if err := j.manager.ProgressRollout(ctx, id); err != nil {
			j.log.Error().Err(err).Str("rollout_id", id).Msg("failed to progress rollout")
			errs++
		}
	}

	if errs > 0 && errs == len(ids) {
		return fmt.Errorf("migration safety poll failed for all %d active rollouts", errs)
	}
	return nil
}
