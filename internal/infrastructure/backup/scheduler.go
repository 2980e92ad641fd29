package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"collabstream/pkg/backup"
)

type Config struct {
	Interval time.Duration
	// Keep is the number of newest backups retained after each run.
	Keep int
}

// Scheduler takes periodic session snapshots and prunes old ones.
type Scheduler struct {
	scheduler     gocron.Scheduler
	snapshotter   *SessionSnapshotter
	backupService *backup.BackupService
	cfg           Config
	logger        *zap.SugaredLogger
}

func NewScheduler(snapshotter *SessionSnapshotter, backupService *backup.BackupService, cfg Config, logger *zap.SugaredLogger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("backup interval must be > 0")
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler:     scheduler,
		snapshotter:   snapshotter,
		backupService: backupService,
		cfg:           cfg,
		logger:        logger,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			s.RunOnce(ctx)
		}),
		gocron.WithName("session_backup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register backup job: %w", err)
	}

	s.scheduler.Start()
	s.logger.Infow("backup scheduler started", "interval", s.cfg.Interval, "keep", s.cfg.Keep)
	return nil
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// RunOnce takes one snapshot, then prunes down to Keep backups when Keep is positive.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	name, _, err := s.snapshotter.Snapshot(ctx, "scheduled")
	if err != nil {
		s.logger.Errorw("failed to create backup", "error", err)
		return "", err
	}

	if s.cfg.Keep > 0 {
		removed, err := s.backupService.Prune(ctx, s.cfg.Keep)
		if err != nil {
			s.logger.Warnw("failed to prune old backups", "error", err)
		} else if removed > 0 {
			s.logger.Infow("pruned old backups", "removed", removed)
		}
	}
	return name, nil
}
