// Package scheduler drives the platform's periodic maintenance work:
// transaction-log and fund-snapshot pruning, migration safety polling,
// and ingestion stream flushing. Jobs are registered with a cron
// expression and run on their own goroutine via robfig/cron.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is anything the scheduler can run on a cron schedule.
type Job interface {
	Name() string
	Run() error
}

// Scheduler wraps a cron runner and logs every job's outcome.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler using the standard 5-field cron parser.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Register schedules job to run on the given cron spec. It returns an
// error if the spec cannot be parsed.
func (s *Scheduler) Register(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		log := s.log.With().Str("job", job.Name()).Logger()
		log.Debug().Msg("job starting")
		if err := job.Run(); err != nil {
			log.Error().Err(err).Msg("job failed")
			return
		}
		log.Debug().Msg("job completed")
	})
	return err
}

// Start starts the cron runner in the background.
func (s *Scheduler) Start() {
	s.log.Info().Msg("starting scheduler")
	s.cron.Start()
}

// Stop stops the cron runner, waiting for any running job to finish.
func (s *Scheduler) Stop() {
	s.log.Info().Msg("stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}
