package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/migration"
	"github.com/aristath/arbitrage-platform/internal/repository"
)

// RolloutPersistenceJob snapshots every active rollout's state into the
// migration repository, so a restarted process can inspect where a
// rollout stood even though the in-memory manager itself starts empty.
type RolloutPersistenceJob struct {
	manager *migration.Manager
	repo    *repository.MigrationRepository
	log     zerolog.Logger
}

// NewRolloutPersistenceJob creates a new rollout persistence job.
func NewRolloutPersistenceJob(manager *migration.Manager, repo *repository.MigrationRepository, log zerolog.Logger) *RolloutPersistenceJob {
	return &RolloutPersistenceJob{manager: manager, repo: repo, log: log.With().Str("job", "rollout_persistence").Logger()}
}

func (j *RolloutPersistenceJob) Name() string { return "rollout_persistence" }

func (j *RolloutPersistenceJob) Run() error {
	ctx := context.Background()
	ids := j.manager.ActiveRolloutIDs()

	var lastErr error
	for _, id := range ids {
		rollout, ok := j.manager.Rollout(id)
		if !ok {
			continue
		}
		if err := j.repo.Upsert(ctx, rollout); err != nil {
			j.log.Warn().Err(err).Str("rollout_id", id).Msg("failed to persist rollout state")
			lastErr = err
			continue
		}
	}
	if lastErr != nil && len(ids) == 1 {
		return lastErr
	}
	return nil
}
