// Package workers runs the periodic jobs of the service on a cron schedule.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job is one run of a periodic task.
type Job func(ctx context.Context) error

// Scheduler wraps a UTC cron. Runs of the same job never overlap and every run is bound
// by the scheduler timeout.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration
}

func NewScheduler(ctx context.Context, timeout time.Duration) *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:     ctx,
		timeout: timeout,
	}
}

// Add registers job under a standard cron spec or a descriptor such as "@hourly".
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.Run(name, job) }); err != nil {
		return fmt.Errorf("failed to schedule %s (%q): %w", name, spec, err)
	}
	log.WithFields(log.Fields{"job": name, "schedule": spec}).Info("Job scheduled")
	return nil
}

// Run executes job once, outside the schedule.
func (s *Scheduler) Run(name string, job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	log.WithField("job", name).Info("[CRON] Job started")
	if err := job(ctx); err != nil {
		log.WithFields(log.Fields{"job": name, "elapsed": time.Since(started)}).WithError(err).Error("[CRON] Job failed")
		return err
	}
	log.WithFields(log.Fields{"job": name, "elapsed": time.Since(started)}).Info("[CRON] Job finished")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("Scheduler started")
}

// Stop prevents new runs and waits for running ones to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("Scheduler stopped")
}
