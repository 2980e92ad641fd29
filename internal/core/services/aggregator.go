package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/pkg/tracing"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// EventMaxAge is the cache window for create, match and refresh triggers.
	EventMaxAge time.Duration
	// SweepMaxAge is the cache window for the background sweep.
	SweepMaxAge time.Duration
	// SweepConcurrency bounds how many sessions a sweep refreshes at once.
	SweepConcurrency int
	InstanceID       string
	Now              func() time.Time
}

func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		EventMaxAge:      30 * time.Second,
		SweepMaxAge:      5 * time.Minute,
		SweepConcurrency: 4,
	}
}

// Aggregator resolves every occupied slot of a session, runs the lifecycle
// rules over the results and persists the outcome. It is the single entry
// point for status recomputation regardless of what triggered it.
type Aggregator struct {
	repo      ports.SessionRepository
	resolver  ports.StreamStatusResolver
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger
	cfg       AggregatorConfig
	now       func() time.Time
}

func NewAggregator(
	repo ports.SessionRepository,
	resolver ports.StreamStatusResolver,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	cfg AggregatorConfig,
	logger *zap.SugaredLogger,
) *Aggregator {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       now,
	}
}

// Refresh recomputes the status of one session.
func (a *Aggregator) Refresh(ctx context.Context, id domain.SessionID, trigger domain.Trigger) (*domain.Session, error) {
	ctx, span := tracing.TraceRefresh(ctx, string(id), string(trigger))
	defer span.End()

	session, err := a.repo.GetByID(ctx, id)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	next, err := a.refresh(ctx, session, trigger)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return next, err
}

// Sweep refreshes every non-terminal session with the background cache window.
func (a *Aggregator) Sweep(ctx context.Context) (ports.SweepResult, error) {
	ctx, span := tracing.TraceSweep(ctx)
	defer span.End()

	start := time.Now()
	var result ports.SweepResult

	sessions, err := a.repo.ListByStatus(ctx, domain.ActiveStatuses...)
	if err != nil {
		tracing.RecordError(ctx, err)
		return result, fmt.Errorf("failed to list active sessions: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.SweepConcurrency)

	for _, session := range sessions {
		session := session
		result.Scanned++
		if session.Status.IsTerminal() {
			result.Skipped++
			continue
		}
		g.Go(func() error {
			_, err := a.refresh(gctx, session, domain.TriggerSweep)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				a.logger.Warnw("sweep refresh failed",
					"session_id", session.ID,
					"error", err,
				)
				return nil
			}
			result.Refreshed++
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	tracing.AddSpanAttributes(ctx,
		tracing.ScannedKey.Int(result.Scanned),
		tracing.FailedKey.Int(result.Failed),
	)
	a.metrics.RecordSweep(elapsed, result)
	a.logger.Infow("sweep completed",
		"scanned", result.Scanned,
		"refreshed", result.Refreshed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", elapsed,
	)

	return result, ctx.Err()
}

// refresh evaluates and stores session, reloading and retrying once when a
// concurrent writer bumped the version first.
func (a *Aggregator) refresh(ctx context.Context, session *domain.Session, trigger domain.Trigger) (*domain.Session, error) {
	next, err := a.evaluateAndStore(ctx, session, trigger)
	if !errors.Is(err, domain.ErrVersionConflict) {
		return next, err
	}

	a.logger.Debugw("version conflict, recomputing",
		"session_id", session.ID,
		"trigger", trigger,
	)
	current, err := a.repo.GetByID(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return a.evaluateAndStore(ctx, current, trigger)
}

func (a *Aggregator) evaluateAndStore(ctx context.Context, session *domain.Session, trigger domain.Trigger) (*domain.Session, error) {
	if session.Status.IsTerminal() {
		return session, nil
	}

	observations := a.observe(ctx, session, a.maxAgeFor(trigger))
	next, decision := Evaluate(session, observations, a.now())

	if !decision.Matched && !decision.SlotsUpdated {
		return session, nil
	}

	if err := a.repo.Update(ctx, next); err != nil {
		return nil, err
	}

	if decision.Transitioned() {
		a.metrics.RecordTransition(decision.From, decision.To)
		a.logger.Infow("session status changed",
			"session_id", next.ID,
			"from", decision.From,
			"to", decision.To,
			"rule", decision.Rule,
			"trigger", trigger,
		)
		a.publish(ctx, &domain.SessionEvent{
			Type:       domain.EventSessionStatusChanged,
			InstanceID: a.cfg.InstanceID,
			SessionID:  next.ID,
			From:       decision.From,
			To:         decision.To,
			Trigger:    trigger,
			Timestamp:  a.now(),
		})
	}

	return next, nil
}

// observe resolves every occupied slot concurrently. A slot whose lookup
// failed or whose video does not exist contributes no data.
func (a *Aggregator) observe(ctx context.Context, session *domain.Session, maxAge time.Duration) map[int]domain.StreamStatus {
	var (
		mu           sync.Mutex
		observations = make(map[int]domain.StreamStatus, len(session.Slots))
		g            errgroup.Group
	)

	for i, slot := range session.Slots {
		if !slot.Occupied() || slot.VideoID == "" {
			continue
		}
		i, slot := i, slot
		g.Go(func() error {
			status, err := a.resolver.Resolve(ctx, slot.VideoID, maxAge)
			if err != nil {
				a.logger.Warnw("slot status unavailable",
					"session_id", session.ID,
					"slot", i,
					"video_id", slot.VideoID,
					"error", err,
				)
				return nil
			}
			if status.Reason == domain.ReasonNotFound {
				a.logger.Warnw("slot video not found",
					"session_id", session.ID,
					"slot", i,
					"video_id", slot.VideoID,
				)
				return nil
			}
			mu.Lock()
			observations[i] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return observations
}

func (a *Aggregator) maxAgeFor(trigger domain.Trigger) time.Duration {
	if trigger == domain.TriggerSweep {
		return a.cfg.SweepMaxAge
	}
	return a.cfg.EventMaxAge
}

func (a *Aggregator) publish(ctx context.Context, event *domain.SessionEvent) {
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.logger.Warnw("failed to publish session event",
			"session_id", event.SessionID,
			"type", event.Type,
			"error", err,
		)
	}
}

var _ ports.SessionAggregator = (*Aggregator)(nil)
