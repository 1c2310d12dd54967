// Package schedule runs a job on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"github.com/eykd/dgrun/internal/logging"
)

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a standard five-field cron spec (or a
// descriptor such as @daily). A run still going when the next one is due
// makes that next one skip.
type Scheduler struct {
	spec   string
	sched  cron.Schedule
	logger *log.Logger
}

// New parses spec.
func New(spec string, logger *log.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, sched: sched, logger: logging.OrDiscard(logger)}, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

// Run runs job at every activation until ctx is done, then waits for a
// running job to finish. Job errors are logged and do not stop the
// schedule.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.sched, cron.FuncJob(func() {
		start := time.Now()
		s.logger.Info().Str("schedule", s.spec).Msg("scheduled run starting")
		if err := job(ctx); err != nil {
			s.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("scheduled run failed")
			return
		}
		s.logger.Info().Dur("elapsed", time.Since(start)).Msg("scheduled run finished")
	}))

	c.Start()
	s.logger.Info().Str("schedule", s.spec).Time("next", s.Next(time.Now())).Msg("scheduler started")
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
	return nil
}
