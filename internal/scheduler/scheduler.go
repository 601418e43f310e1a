package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tokenledger/internal/metrics"
)

// Schedule computes the next fire time after now.
type Schedule interface {
	Next(now time.Time) time.Time
}

type everySchedule struct {
	interval time.Duration
}

func (s everySchedule) Next(now time.Time) time.Time {
	return now.Add(s.interval)
}

// Every fires at a fixed interval.
func Every(interval time.Duration) Schedule {
	if interval <= 0 {
		interval = time.Minute
	}
	return everySchedule{interval: interval}
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// DailyAt fires once a day at the given local time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

type job struct {
	id       string
	schedule Schedule
	fn       func(context.Context) error
	running  atomic.Bool
}

// Scheduler runs registered jobs on their schedules. It is an explicitly
// constructed value with a start/stop lifecycle; there is no process-wide
// instance. Each job id runs at most one instance at a time: a fire that
// finds the previous run still active is skipped, not queued. Different
// jobs may run concurrently.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	jobs    []*job
	started bool
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger.Named("scheduler")}
}

// Add registers a job. Job ids must be unique; registration after Start
// is an error.
func (s *Scheduler) Add(id string, schedule Schedule, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	for _, j := range s.jobs {
		if j.id == id {
			return fmt.Errorf("duplicate job id %q", id)
		}
	}
	s.jobs = append(s.jobs, &job{id: id, schedule: schedule, fn: fn})
	return nil
}

// Run fires jobs until ctx is cancelled, then waits for in-flight runs to
// finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	jobs := s.jobs
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			s.runJob(ctx, j, &wg)
		}(j)
	}

	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, j *job, wg *sync.WaitGroup) {
	timer := time.NewTimer(time.Until(j.schedule.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if j.running.CompareAndSwap(false, true) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer j.running.Store(false)
				s.fire(ctx, j)
			}()
		} else {
			metrics.JobRuns.WithLabelValues(j.id, "skipped").Inc()
			s.logger.Warn("previous run still active, skipping fire", zap.String("job", j.id))
		}

		timer.Reset(time.Until(j.schedule.Next(time.Now())))
	}
}

func (s *Scheduler) fire(ctx context.Context, j *job) {
	started := time.Now()
	s.logger.Info("job start", zap.String("job", j.id))

	if err := j.fn(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(j.id, "error").Inc()
		s.logger.Error("job failed",
			zap.String("job", j.id),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return
	}

	metrics.JobRuns.WithLabelValues(j.id, "ok").Inc()
	s.logger.Info("job complete",
		zap.String("job", j.id),
		zap.Duration("elapsed", time.Since(started)),
	)
}
