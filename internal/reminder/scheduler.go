package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the stale sweep on a cron spec with seconds precision
// (six fields, e.g. "0 0 9 * * *" for 09:00 daily).
type Scheduler struct {
	service *Service
	spec    string
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewScheduler wires the sweep to a cron entry. Start must be called to
// begin scheduling.
func NewScheduler(service *Service, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service: service,
		spec:    spec,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}
}

// Start registers the sweep job and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		now := time.Now().UTC()
		if _, err := s.service.SweepStale(ctx, now); err != nil {
			s.logger.ErrorContext(ctx, "reminder sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.InfoContext(ctx, "reminder scheduler started", "spec", s.spec)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
