package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs a task on a fixed interval and on demand. Overlapping runs are rescheduled
// rather than queued.
type Scheduler struct {
	sched  gocron.Scheduler
	job    gocron.Job
	cancel context.CancelFunc
}

// NewScheduler registers task to run every interval. Call Start to begin.
// The context passed to task is cancelled by Stop.
func NewScheduler(interval time.Duration, task func(ctx context.Context)) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { task(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("tile-analysis"),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return nil, fmt.Errorf("scheduling analysis job: %w", err)
	}

	return &Scheduler{sched: sched, job: job, cancel: cancel}, nil
}

// Start begins periodic execution.
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Trigger requests an immediate run.
func (s *Scheduler) Trigger() error {
	return s.job.RunNow()
}

// Stop cancels the running task's context and waits for the scheduler to shut down.
// No run starts after Stop returns.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.sched.Shutdown()
}
