// Package scheduler aligns snapshot cycles to a fixed minute grid.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CycleFunc runs one fetch, normalize and write cycle for a slot.
type CycleFunc func(ctx context.Context, slot time.Time) error

// Schedule returns the cron schedule firing every intervalMinutes from the
// top of each UTC hour. intervalMinutes must divide 60.
func Schedule(intervalMinutes int) (cron.Schedule, error) {
	if intervalMinutes < 1 || intervalMinutes > 60 || 60%intervalMinutes != 0 {
		return nil, fmt.Errorf("interval %d minutes does not divide the hour", intervalMinutes)
	}
	return cron.ParseStandard(fmt.Sprintf("CRON_TZ=UTC */%d * * * *", intervalMinutes))
}

// AlignNextSlot returns the first grid boundary strictly after now, in UTC.
func AlignNextSlot(now time.Time, intervalMinutes int) (time.Time, error) {
	sched, err := Schedule(intervalMinutes)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now).UTC(), nil
}

// Scheduler runs a CycleFunc on every slot boundary.
type Scheduler struct {
	schedule cron.Schedule
	cycle    CycleFunc
	logger   *slog.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// New creates a new Scheduler.
func New(intervalMinutes int, cycle CycleFunc, logger *slog.Logger) (*Scheduler, error) {
	sched, err := Schedule(intervalMinutes)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: sched,
		cycle:    cycle,
		logger:   logger,
		now:      time.Now,
		wait:     sleep,
	}, nil
}

// Run waits for each boundary and runs one cycle, until ctx is cancelled.
// A failed cycle is logged and the loop continues with the next boundary.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		slot := s.schedule.Next(s.now()).UTC()
		s.logger.Info("waiting for next slot", "slot", slot)

		if err := s.wait(ctx, slot.Sub(s.now())); err != nil {
			return nil
		}
		s.runCycle(ctx, slot)

		if ctx.Err() != nil {
			return nil
		}
	}
}

// RunOnce runs a single cycle immediately. The slot is the current time
// truncated to the minute.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	slot := s.now().UTC().Truncate(time.Minute)
	return s.runCycle(ctx, slot)
}

func (s *Scheduler) runCycle(ctx context.Context, slot time.Time) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
		if err != nil {
			s.logger.Error("cycle failed", "slot", slot, "err", err, "duration", time.Since(start))
			return
		}
		s.logger.Info("cycle complete", "slot", slot, "duration", time.Since(start))
	}()

	return s.cycle(ctx, slot)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
