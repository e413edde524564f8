package crawler

import (
	"context"
	"fmt"
	"time"

	"cognichat/internal/logger"

	"github.com/go-co-op/gocron"
)

// RefreshTag is the job tag used for the periodic index rebuild.
const RefreshTag = "index-refresh"

// Scheduler runs periodic re-crawl jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

// NewScheduler returns a stopped UTC scheduler that never overlaps runs of a job.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any running job's context.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
}

// ScheduleJob schedules job on a cron expression. The job receives a context
// that is cancelled by Stop.
func (s *Scheduler) ScheduleJob(tag string, cronExpr string, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(s.wrap(tag, job))
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", tag, cronExpr, err)
	}
	return nil
}

// ScheduleInterval schedules job to run every d, starting after the first interval.
func (s *Scheduler) ScheduleInterval(tag string, d time.Duration, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Every(d).WaitForSchedule().Tag(tag).Do(s.wrap(tag, job))
	if err != nil {
		return fmt.Errorf("schedule %s every %s: %w", tag, d, err)
	}
	return nil
}

// RemoveJob removes a scheduled job by tag
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// GetJobs returns all scheduled jobs
func (s *Scheduler) GetJobs() []*gocron.Job {
	return s.scheduler.Jobs()
}

func (s *Scheduler) wrap(tag string, job func(ctx context.Context) error) func() {
	return func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			logger.Error("scheduled job failed", "tag", tag, "error", err, "duration", time.Since(start).String())
			return
		}
		logger.Info("scheduled job finished", "tag", tag, "duration", time.Since(start).String())
	}
}

// ScheduleIndexRefresh starts a scheduler that calls rebuild on cronExpr.
func ScheduleIndexRefresh(cronExpr string, rebuild func(ctx context.Context) error) (*Scheduler, error) {
	scheduler := NewScheduler()
	if err := scheduler.ScheduleJob(RefreshTag, cronExpr, rebuild); err != nil {
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}
