// services/scheduler.go
package services

import (
	"context"
	"time"

	"gacha-card-system/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

const sweepInterval = 10 * time.Minute

// MaintenanceService runs the periodic sweep that deletes expired time
// windows and stale daily mission rows, so yesterday's completed state can
// never bleed into today.
type MaintenanceService struct {
	ledger store.Ledger
	clock  store.Clock
	logger zerolog.Logger
	sched  gocron.Scheduler
}

func NewMaintenanceService(ledger store.Ledger, clock store.Clock, logger zerolog.Logger) *MaintenanceService {
	if clock == nil {
		clock = store.RealClock()
	}
	return &MaintenanceService{ledger: ledger, clock: clock, logger: logger}
}

// StartSweep schedules the maintenance job. Call Stop on shutdown.
func (s *MaintenanceService) StartSweep() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.sched = sched

	_, err = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() { s.Sweep(context.Background()) }),
	)
	if err != nil {
		return err
	}

	sched.Start()
	s.logger.Info().Dur("interval", sweepInterval).Msg("maintenance sweep scheduled")
	return nil
}

// Sweep purges expired windows and stale mission rows once.
func (s *MaintenanceService) Sweep(ctx context.Context) {
	now := s.clock.Now()

	windows, err := s.ledger.PurgeExpiredWindows(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("window purge failed")
	}

	missions, err := s.ledger.PurgeStaleMissions(ctx, dayKey(now))
	if err != nil {
		s.logger.Error().Err(err).Msg("mission purge failed")
	}

	if windows > 0 || missions > 0 {
		s.logger.Info().
			Int64("windows", windows).
			Int64("missions", missions).
			Msg("maintenance sweep purged stale rows")
	}
}

func (s *MaintenanceService) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}
