// Package jobs runs the periodic maintenance tasks: closing expired polls,
// expiring stale visit authorizations and purging old tokens.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/domu-platform/domu/internal/app/metrics"
	"github.com/domu-platform/domu/internal/app/system"
	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/pkg/logger"
)

// Job names.
const (
	JobClosePolls   = "close-polls"
	JobExpireVisits = "expire-visits"
	JobPurgeTokens  = "purge-tokens"
)

const runTimeout = 30 * time.Second

// PollCloser closes polls whose deadline passed.
type PollCloser interface {
	CloseExpired(ctx context.Context) (int, error)
}

// VisitExpirer marks scheduled visits past their window as expired.
type VisitExpirer interface {
	ExpireVisits(ctx context.Context, now time.Time) (int64, error)
}

// TokenPurger deletes used or expired tokens.
type TokenPurger interface {
	PurgeTokens(ctx context.Context, before time.Time) (int64, error)
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
}

var _ system.Service = (*Scheduler)(nil)

// Scheduler runs the jobs on cron schedules.
type Scheduler struct {
	enabled bool
	jobs    []job
	log     *logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	base    context.Context
	cancel  context.CancelFunc
	running bool
}

// New wires the jobs. A job with an empty schedule is not registered.
func New(cfg config.JobsConfig, polls PollCloser, visits VisitExpirer, tokens TokenPurger, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	s := &Scheduler{enabled: cfg.Enabled, log: log, now: time.Now}
	retention := time.Duration(cfg.TokenRetention) * 24 * time.Hour
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	if polls != nil && cfg.ClosePolls != "" {
		s.jobs = append(s.jobs, job{name: JobClosePolls, schedule: cfg.ClosePolls, run: func(ctx context.Context) (int64, error) {
			n, err := polls.CloseExpired(ctx)
			return int64(n), err
		}})
	}
	if visits != nil && cfg.ExpireVisits != "" {
		s.jobs = append(s.jobs, job{name: JobExpireVisits, schedule: cfg.ExpireVisits, run: func(ctx context.Context) (int64, error) {
			return visits.ExpireVisits(ctx, s.now().UTC())
		}})
	}
	if tokens != nil && cfg.PurgeTokens != "" {
		s.jobs = append(s.jobs, job{name: JobPurgeTokens, schedule: cfg.PurgeTokens, run: func(ctx context.Context) (int64, error) {
			return tokens.PurgeTokens(ctx, s.now().UTC().Add(-retention))
		}})
	}
	return s
}

func (s *Scheduler) Name() string { return "jobs-scheduler" }

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	return names
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if !s.enabled {
		s.log.Info("scheduled jobs disabled")
		return nil
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	for _, j := range s.jobs {
		j := j
		if _, err := c.AddFunc(j.schedule, func() { s.execute(j) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, j.schedule, err)
		}
	}

	s.base, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.cron = c
	s.running = true
	c.Start()

	s.log.WithField("jobs", len(s.jobs)).Info("job scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
	cancel()

	s.log.Info("job scheduler stopped")
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (int64, error) {
	for _, j := range s.jobs {
		if j.name == name {
			return s.runJob(ctx, j)
		}
	}
	return 0, fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) execute(j job) {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	_, _ = s.runJob(base, j)
}

func (s *Scheduler) runJob(ctx context.Context, j job) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	started := time.Now()
	n, err := j.run(ctx)
	elapsed := time.Since(started)
	metrics.RecordJobRun(j.name, elapsed, err == nil)

	entry := s.log.WithField("job", j.name).WithField("duration_ms", elapsed.Milliseconds())
	if err != nil {
		entry.WithError(err).Warn("scheduled job failed")
		return 0, err
	}
	if n > 0 {
		entry.WithField("affected", n).Info("scheduled job completed")
	} else {
		entry.Debug("scheduled job completed")
	}
	return n, nil
}
