// Package scheduler runs periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	applog "bankcal/internal/log"
)

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler runs jobs on standard five-field cron specs or descriptors such
// as "@every 1h". A job still running when its next tick arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	log    *applog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *applog.Logger) *Scheduler {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	log := logger.WithComponent(applog.ComponentScheduler)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs' context and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

// AddJob registers job on schedule, e.g. "0 */6 * * *" or "@hourly".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug("Running job", applog.FieldJob, job.Name())
		if err := job.Run(s.ctx); err != nil {
			s.log.Error("Job failed", applog.FieldJob, job.Name(), applog.FieldError, err)
			return
		}
		s.log.Debug("Job completed", applog.FieldJob, job.Name())
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name(), err)
	}

	s.log.Info("Job registered", "schedule", schedule, applog.FieldJob, job.Name())
	return nil
}

// RunNow executes job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info("Running job immediately", applog.FieldJob, job.Name())
	return job.Run(s.ctx)
}

// cronLogger adapts the application logger to cron's logging interface.
type cronLogger struct {
	log *applog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, applog.FieldError, err)...)
}
