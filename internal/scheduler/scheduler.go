// Package scheduler runs the date-driven booking transitions and database backups on cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"armada/internal/config"
	"armada/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	JobPromote      = "promote"
	JobEnableFinish = "enable-finish"
	JobBackup       = "backup"

	jobTimeout = 5 * time.Minute
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	backup cron.Job
	cfg    config.SchedulerConfig
	logger *zerolog.Logger
}

// New builds a scheduler in the configured time zone. backup may be nil.
func New(cfg config.SchedulerConfig, jobs *Jobs, backup cron.Job, logger *zerolog.Logger) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	l := logger.With().Str("component", "scheduler").Logger()
	cronLogger := zerologCron{logger: &l}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	s := &Scheduler{cron: c, jobs: jobs, backup: backup, cfg: cfg, logger: &l}
	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs() error {
	specs := []struct {
		name string
		spec string
		job  cron.Job
	}{
		{JobPromote, s.cfg.Promote, s.countingJob(JobPromote, s.jobs.PromoteDue)},
		{JobEnableFinish, s.cfg.EnableFinish, s.countingJob(JobEnableFinish, s.jobs.EnableDueFinish)},
	}
	if s.backup != nil && s.cfg.Backup != "" {
		specs = append(specs, struct {
			name string
			spec string
			job  cron.Job
		}{JobBackup, s.cfg.Backup, s.backupJob()})
	}

	for _, j := range specs {
		if j.spec == "" {
			s.logger.Info().Str("job", j.name).Msg("job disabled")
			continue
		}
		if _, err := s.cron.AddJob(j.spec, j.job); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", j.name, err)
		}
		s.logger.Info().Str("job", j.name).Str("schedule", j.spec).Msg("scheduled job")
	}
	return nil
}

// countingJob wraps a transition job with a timeout, logging and metrics.
func (s *Scheduler) countingJob(name string, run func(context.Context) (int, error)) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := run(ctx)
		if err != nil {
			metrics.IncSchedulerRun(name, "error")
			s.logger.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		metrics.IncSchedulerRun(name, "ok")
		s.logger.Info().Str("job", name).Int("affected", n).Dur("took", time.Since(start)).Msg("job finished")
	})
}

func (s *Scheduler) backupJob() cron.Job {
	return cron.FuncJob(func() {
		s.backup.Run()
		metrics.IncSchedulerRun(JobBackup, "ok")
	})
}

// RunNow executes the transition jobs once, in order. Used at startup so a
// restart does not wait for the next tick.
func (s *Scheduler) RunNow() {
	s.countingJob(JobPromote, s.jobs.PromoteDue).Run()
	s.countingJob(JobEnableFinish, s.jobs.EnableDueFinish).Run()
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out")
	}
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// zerologCron adapts zerolog to cron.Logger.
type zerologCron struct {
	logger *zerolog.Logger
}

func (z zerologCron) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (z zerologCron) Error(err error, msg string, keysAndValues ...interface{}) {
	z.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
