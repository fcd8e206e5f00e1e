// Package maintenance runs scheduled upkeep against the store. Today that is
// position compaction, which closes the gaps deletes leave behind.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/switchyard/internal/reorder"
)

// cronParser accepts standard 5-field cron expressions and @-descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Compactor renumbers every container densely.
type Compactor interface {
	CompactAll(ctx context.Context) (reorder.CompactStats, error)
}

// Scheduler runs a Compactor on a cron schedule.
type Scheduler struct {
	schedule  cron.Schedule
	compactor Compactor
	logger    *log.Logger
	now       func() time.Time
}

// NewScheduler parses expr and returns a scheduler for it.
func NewScheduler(expr string, compactor Compactor, logger *log.Logger) (*Scheduler, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("maintenance: parse schedule %q: %w", expr, err)
	}
	return newScheduler(sched, compactor, logger), nil
}

func newScheduler(sched cron.Schedule, compactor Compactor, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Scheduler{schedule: sched, compactor: compactor, logger: logger, now: time.Now}
}

// next returns the duration until the next fire time.
func (s *Scheduler) next() time.Duration {
	now := s.now()
	d := s.schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Run fires the compactor on schedule until ctx is cancelled. A failed run
// is logged and the schedule continues.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(s.next())
		}
	}
}

// RunOnce compacts immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (reorder.CompactStats, error) {
	start := s.now()
	stats, err := s.compactor.CompactAll(ctx)
	entry := s.logger.WithFields(log.Fields{
		"containers":  stats.Containers,
		"renumbered":  stats.Renumbered,
		"duration_ms": s.now().Sub(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("position compaction failed")
		return stats, err
	}
	if stats.Renumbered > 0 {
		entry.Info("position compaction")
	} else {
		entry.Debug("position compaction")
	}
	return stats, nil
}
