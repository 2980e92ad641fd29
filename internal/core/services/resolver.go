package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/pkg/cache"
	"collabstream/pkg/retry"
	"collabstream/pkg/tracing"
)

const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"

	UpstreamSuccess  = "success"
	UpstreamNotFound = "not_found"
	UpstreamError    = "error"
)

// ResolverConfig configures a StatusResolver.
type ResolverConfig struct {
	// DefaultMaxAge is the freshness window used when a caller passes 0.
	DefaultMaxAge time.Duration
	// Retention bounds how long an entry can still be served as a stale fallback.
	Retention  time.Duration
	MaxEntries int
	Retry      retry.Config
	Now        func() time.Time
}

// StatusResolver turns a video ID into a normalized StreamStatus. Lookups are
// served from a per-process cache when fresh enough, otherwise fetched from
// the provider with bounded retries, falling back to the last known entry.
type StatusResolver struct {
	provider      ports.StreamProvider
	cache         *cache.Cache[domain.StreamStatus]
	retry         retry.Config
	defaultMaxAge time.Duration
	metrics       ports.MetricsRecorder
	logger        *zap.SugaredLogger
	now           func() time.Time
}

func NewStatusResolver(
	provider ports.StreamProvider,
	cfg ResolverConfig,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *StatusResolver {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if cfg.DefaultMaxAge <= 0 {
		cfg.DefaultMaxAge = 5 * time.Minute
	}
	if cfg.Retention < cfg.DefaultMaxAge {
		cfg.Retention = cfg.DefaultMaxAge
	}

	retryCfg := cfg.Retry
	retryCfg.NonRetryableErrors = append(retryCfg.NonRetryableErrors, domain.ErrVideoNotFound)
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Debugw("retrying upstream lookup",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}

	return &StatusResolver{
		provider: provider,
		cache: cache.New[domain.StreamStatus](cache.Config{
			TTL:             cfg.Retention,
			MaxEntries:      cfg.MaxEntries,
			CleanupInterval: cfg.Retention / 4,
			Now:             now,
		}),
		retry:         retryCfg,
		defaultMaxAge: cfg.DefaultMaxAge,
		metrics:       metrics,
		logger:        logger,
		now:           now,
	}
}

// Resolve returns the status of videoID no older than maxAge. A maxAge of 0
// selects the default window. The returned error is non-nil only when the
// upstream failed and no entry younger than the cache retention exists for
// videoID; it wraps domain.ErrUpstreamUnavailable.
func (r *StatusResolver) Resolve(ctx context.Context, videoID string, maxAge time.Duration) (domain.StreamStatus, error) {
	ctx, span := tracing.TraceResolve(ctx, videoID)
	defer span.End()

	if maxAge <= 0 {
		maxAge = r.defaultMaxAge
	}

	cached, haveCached := r.cache.Peek(videoID)
	if haveCached && cached.Age(r.now()) <= maxAge {
		r.metrics.RecordCacheLookup(CacheHit)
		tracing.AddSpanAttributes(ctx, tracing.CacheKey.String(CacheHit))
		return cached.Value.Clone(), nil
	}

	meta, err := retry.RetryWithResult(ctx, r.retry, func() (*domain.VideoMetadata, error) {
		return r.fetch(ctx, videoID)
	})

	switch {
	case err == nil:
		status := normalize(videoID, meta, r.now())
		r.cache.Set(videoID, status)
		r.metrics.RecordCacheLookup(CacheMiss)
		tracing.AddSpanAttributes(ctx, tracing.CacheKey.String(CacheMiss))
		return status.Clone(), nil

	case errors.Is(err, domain.ErrVideoNotFound):
		r.metrics.RecordCacheLookup(CacheMiss)
		return domain.StreamStatus{
			VideoID:    videoID,
			Reason:     domain.ReasonNotFound,
			ResolvedAt: r.now(),
		}, nil

	case haveCached:
		r.logger.Warnw("upstream lookup failed, serving stale status",
			"video_id", videoID,
			"age", cached.Age(r.now()),
			"error", err,
		)
		r.metrics.RecordCacheLookup(CacheStale)
		tracing.AddSpanAttributes(ctx, tracing.CacheKey.String(CacheStale))
		status := cached.Value.Clone()
		status.Stale = true
		return status, nil

	default:
		tracing.RecordError(ctx, err)
		r.metrics.RecordCacheLookup(CacheMiss)
		return domain.StreamStatus{
			VideoID:    videoID,
			Reason:     domain.ReasonUpstreamError,
			ResolvedAt: r.now(),
		}, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
}

// StreamInfo is a single uncached upstream read for display purposes.
// Any failure, including not found, yields false.
func (r *StatusResolver) StreamInfo(ctx context.Context, videoID string) (*domain.StreamStatus, bool) {
	meta, err := r.fetch(ctx, videoID)
	if err != nil {
		r.logger.Debugw("stream info lookup failed", "video_id", videoID, "error", err)
		return nil, false
	}
	status := normalize(videoID, meta, r.now())
	r.cache.Set(videoID, status)
	return &status, true
}

// Invalidate drops the cached entry for videoID.
func (r *StatusResolver) Invalidate(videoID string) {
	r.cache.Delete(videoID)
}

// CacheStats exposes cache occupancy for metrics.
func (r *StatusResolver) CacheStats() cache.Stats {
	return r.cache.GetStats()
}

// Stop releases the cache cleanup goroutine.
func (r *StatusResolver) Stop() {
	r.cache.Stop()
}

func (r *StatusResolver) fetch(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	start := time.Now()
	meta, err := r.provider.FetchVideo(ctx, videoID)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		r.metrics.RecordUpstreamCall(UpstreamSuccess, elapsed)
	case errors.Is(err, domain.ErrVideoNotFound):
		r.metrics.RecordUpstreamCall(UpstreamNotFound, elapsed)
	default:
		r.metrics.RecordUpstreamCall(UpstreamError, elapsed)
	}
	if err == nil && meta == nil {
		return nil, domain.ErrVideoNotFound
	}
	return meta, err
}

// normalize maps provider metadata onto a StreamStatus. Videos that are
// neither upcoming nor live are invalid but keep their counters, since a
// finished broadcast reports the same way.
func normalize(videoID string, meta *domain.VideoMetadata, now time.Time) domain.StreamStatus {
	status := domain.StreamStatus{
		VideoID:            videoID,
		Title:              meta.Title,
		Thumbnail:          meta.Thumbnail,
		ViewCount:          meta.ViewCount,
		LikeCount:          meta.LikeCount,
		CommentCount:       meta.CommentCount,
		ScheduledStartTime: meta.ScheduledStartTime,
		ActualStartTime:    meta.ActualStartTime,
		ActualEndTime:      meta.ActualEndTime,
		ResolvedAt:         now,
	}

	switch meta.BroadcastState {
	case domain.BroadcastUpcoming:
		status.Valid = true
		status.WaitingRoom = true
	case domain.BroadcastLive:
		status.Valid = true
		status.Live = true
		status.ConcurrentViewers = meta.ConcurrentViewers
	default:
		status.Reason = domain.ReasonNotLiveStream
	}

	return status.Clone()
}

var _ ports.StreamStatusResolver = (*StatusResolver)(nil)
