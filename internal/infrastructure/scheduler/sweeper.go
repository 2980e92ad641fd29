package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"collabstream/internal/core/ports"
	"collabstream/pkg/distributed"
)

// Locker guards a sweep so that only one instance runs it at a time.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

type Config struct {
	Interval time.Duration
	// Timeout bounds a single sweep. Zero means the interval.
	Timeout time.Duration
}

// Sweeper periodically refreshes every active session so that sessions
// nobody is looking at still progress through their lifecycle.
type Sweeper struct {
	scheduler  gocron.Scheduler
	aggregator ports.SessionAggregator
	lock       Locker
	cfg        Config
	logger     *zap.SugaredLogger
}

// NewSweeper creates a sweeper. lock may be nil for a single instance deployment.
func NewSweeper(aggregator ports.SessionAggregator, lock Locker, cfg Config, logger *zap.SugaredLogger) (*Sweeper, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be > 0")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Sweeper{
		scheduler:  scheduler,
		aggregator: aggregator,
		lock:       lock,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Start registers the sweep job and starts the scheduler. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			s.RunOnce(ctx)
		}),
		gocron.WithName("session_sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	s.scheduler.Start()
	s.logger.Infow("sweeper started", "interval", s.cfg.Interval)
	return nil
}

func (s *Sweeper) Stop() error {
	s.logger.Info("stopping sweeper")
	return s.scheduler.Shutdown()
}

// RunOnce performs one sweep. ran is false when another instance holds the lock.
func (s *Sweeper) RunOnce(ctx context.Context) (result ports.SweepResult, ran bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.lock != nil {
		acquired, err := s.lock.TryLock(ctx)
		if err != nil {
			s.logger.Warnw("failed to acquire sweep lock", "error", err)
			return result, false, err
		}
		if !acquired {
			s.logger.Debugw("sweep lock held elsewhere, skipping")
			return result, false, nil
		}
		defer func() {
			// The sweep context may already be done.
			if err := s.lock.Unlock(context.Background()); err != nil && !errors.Is(err, distributed.ErrNotHeld) {
				s.logger.Warnw("failed to release sweep lock", "error", err)
			}
		}()
	}

	result, err = s.aggregator.Sweep(ctx)
	if err != nil {
		s.logger.Errorw("sweep failed", "error", err)
		return result, true, err
	}
	return result, true, nil
}
