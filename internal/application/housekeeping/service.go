package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const runTimeout = time.Minute

// Purger removes stale verification codes and reports how many were deleted.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// Service runs code purges on a cron schedule.
type Service struct {
	purger   Purger
	schedule string
	cron     *cron.Cron
}

// NewService validates schedule ("@every 15m", "0 3 * * *", ...) and
// registers the purge job. Call Start to begin running it.
func NewService(purger Purger, schedule string) (*Service, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	s := &Service{purger: purger, schedule: schedule, cron: c}
	if _, err := c.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule code purge %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Service) Start() {
	s.cron.Start()
	slog.Info("housekeeping started", "schedule", s.schedule)
}

// Stop halts the scheduler and waits for a running purge to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("housekeeping stopped")
}

// RunOnce purges stale codes immediately.
func (s *Service) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	n, err := s.purger.Purge(ctx)
	if err != nil {
		slog.Error("scheduled code purge failed", "err", err)
		return
	}
	slog.Info("stale verification codes purged", "count", n)
}
