package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/gladiators/warstats/internal/config"
	"github.com/gladiators/warstats/internal/service"
)

// Scheduler drives the background cadence. Jobs are cron-based so they
// fire on round wall-clock boundaries in the policy timezone: restarts
// and slow cycles don't drift the schedule.
type Scheduler struct {
	s          gocron.Scheduler
	warService *service.WarService
	cfg        config.Refresh
}

func NewScheduler(warService *service.WarService, cfg config.Refresh, location *time.Location) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(location),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		s:          s,
		warService: warService,
		cfg:        cfg,
	}, nil
}

func (s *Scheduler) Start() error {
	var err error

	// Full pipeline refresh on round interval boundaries
	_, err = s.s.NewJob(
		gocron.CronJob(s.cfg.RefreshCron, false),
		gocron.NewTask(s.runRefresh),
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh job: %w", err)
	}

	// Hourly live-race capture to accumulate history locally
	_, err = s.s.NewJob(
		gocron.CronJob(s.cfg.CaptureCron, false),
		gocron.NewTask(s.runCapture),
	)
	if err != nil {
		return fmt.Errorf("failed to create capture job: %w", err)
	}

	// Daily probe for the historical endpoint coming back
	_, err = s.s.NewJob(
		gocron.CronJob(s.cfg.WarLogCheckCron, false),
		gocron.NewTask(s.runWarLogCheck),
	)
	if err != nil {
		return fmt.Errorf("failed to create war log check job: %w", err)
	}

	// Minute-by-minute samples around the week rollover
	_, err = s.s.NewJob(
		gocron.CronJob(s.cfg.RolloverSnapshotCron, false),
		gocron.NewTask(s.runRolloverSnapshot),
	)
	if err != nil {
		return fmt.Errorf("failed to create rollover snapshot job: %w", err)
	}

	s.s.Start()
	return nil
}

func (s *Scheduler) Stop() error {
	return s.s.Shutdown()
}

func (s *Scheduler) runRefresh() {
	if err := s.warService.Refresh(); err != nil {
		slog.Error("Failed to refresh war data", "error", err)
	}
}

func (s *Scheduler) runCapture() {
	if err := s.warService.CaptureCurrentWeek(); err != nil {
		slog.Error("Failed to capture current week", "error", err)
	}
}

func (s *Scheduler) runWarLogCheck() {
	if err := s.warService.CheckWarLogAvailability(); err != nil {
		slog.Error("Failed to check war log availability", "error", err)
	}
}

func (s *Scheduler) runRolloverSnapshot() {
	if err := s.warService.CaptureRolloverSnapshot(); err != nil {
		slog.Error("Failed to capture rollover snapshot", "error", err)
	}
}
