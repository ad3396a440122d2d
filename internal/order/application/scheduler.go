package application

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler periodically starts reservation orders whose slot is near.
type Scheduler struct {
	log      *slog.Logger
	svc      *Service
	lead     time.Duration
	interval time.Duration
}

func NewScheduler(log *slog.Logger, svc *Service, lead, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{log: log, svc: svc, lead: lead, interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reservation scheduler stopping")
			return nil
		case <-t.C:
			n, err := s.svc.StartDueReservations(ctx, s.lead)
			if err != nil {
				s.log.Error("start due reservations", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("reservations started", "count", n)
			}
		}
	}
}
