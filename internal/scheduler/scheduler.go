// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/STTM-NSU/fintrack/internal/logger"
	"github.com/robfig/cron/v3"
)

type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler owns the cron runner. Runs of one job never overlap: a run that
// is due while the previous one is still going is skipped.
type Scheduler struct {
	cron *cron.Cron

	mu  sync.RWMutex
	ctx context.Context

	logger logger.Logger
}

func New(logger logger.Logger) *Scheduler {
	l := logger.With("component", "scheduler")
	cl := cronLogger{l: l}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    context.Background(),
		logger: l,
	}
}

// cronLogger passes cron's own messages on: recovered panics as errors, the
// rest (skipped runs, wakeups) at debug level.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.With(keysAndValues...).Debugf("cron: %s", msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.With(keysAndValues...).Errorf("%s: cron: %s", err, msg)
}

// Every turns an interval into a cron "@every" schedule.
func Every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

// Start runs scheduled jobs until Stop. Jobs get ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Infof("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Infof("scheduler stopped")
}

// AddJob registers a job. Schedule examples:
//   - "@every 20s"
//   - "@hourly"
//   - "0 */5 * * * *" every 5 minutes
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.run(job) }); err != nil {
		return fmt.Errorf("%w: can't schedule %s", err, job.Name())
	}
	s.logger.Infof("job %s registered with schedule %q", job.Name(), schedule)
	return nil
}

// RunNow executes a job immediately, outside of its schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.logger.Infof("running job %s immediately", job.Name())
	return job.Run(ctx)
}

func (s *Scheduler) run(job Job) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.logger.Debugf("running job %s", job.Name())
	if err := job.Run(ctx); err != nil {
		s.logger.Errorf("%s: job %s failed", err, job.Name())
		return
	}
	s.logger.Debugf("job %s completed in %s", job.Name(), time.Since(start))
}
