// Package youtube implements the stream provider on top of the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/pkg/circuitbreaker"
	"collabstream/pkg/tracing"
)

const videoParts = "snippet,statistics,liveStreamingDetails"

// ErrQuotaExceeded is returned when the API rejects the key for quota or rate reasons.
var ErrQuotaExceeded = errors.New("youtube quota exceeded")

type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	CircuitBreaker    circuitbreaker.Config
}

// Client fetches video metadata. Calls are rate limited locally and pass
// through a circuit breaker so a failing API is not hammered by retries.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger
}

func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	breakerCfg := cfg.CircuitBreaker
	breakerCfg.IsFailure = func(err error) bool {
		return !errors.Is(err, domain.ErrVideoNotFound) && !errors.Is(err, context.Canceled)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:    circuitbreaker.New(breakerCfg),
		logger:     logger,
	}

	c.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("youtube circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return c
}

// FetchVideo returns metadata for videoID, or domain.ErrVideoNotFound when
// the API knows no such video.
func (c *Client) FetchVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	ctx, span := tracing.TraceUpstream(ctx, "videos.list", videoID)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	meta, err := circuitbreaker.ExecuteWithResult(ctx, c.breaker, func() (*domain.VideoMetadata, error) {
		return c.fetch(ctx, videoID)
	})
	if err != nil && !errors.Is(err, domain.ErrVideoNotFound) {
		tracing.RecordError(ctx, err)
	}
	return meta, err
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}

func (c *Client) fetch(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	q := url.Values{}
	q.Set("part", videoParts)
	q.Set("id", videoID)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("videos.list request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, body)
	}

	var list videoListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode videos.list response: %w", err)
	}
	if len(list.Items) == 0 {
		return nil, domain.ErrVideoNotFound
	}

	return list.Items[0].toMetadata(), nil
}

func (c *Client) statusError(status int, body []byte) error {
	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	reason := ""
	if len(apiErr.Error.Errors) > 0 {
		reason = apiErr.Error.Errors[0].Reason
	}

	switch {
	case status == http.StatusNotFound:
		return domain.ErrVideoNotFound
	case status == http.StatusForbidden && (reason == "quotaExceeded" || reason == "rateLimitExceeded"):
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, reason)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: http %d", ErrQuotaExceeded, status)
	default:
		c.logger.Debugw("youtube api error", "status", status, "reason", reason, "message", apiErr.Error.Message)
		return fmt.Errorf("videos.list returned %d: %s", status, apiErr.Error.Message)
	}
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title                string               `json:"title"`
		Thumbnails           map[string]thumbnail `json:"thumbnails"`
		LiveBroadcastContent string               `json:"liveBroadcastContent"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    int64 `json:"viewCount,string"`
		LikeCount    int64 `json:"likeCount,string"`
		CommentCount int64 `json:"commentCount,string"`
	} `json:"statistics"`
	LiveStreamingDetails *struct {
		ScheduledStartTime *time.Time `json:"scheduledStartTime"`
		ActualStartTime    *time.Time `json:"actualStartTime"`
		ActualEndTime      *time.Time `json:"actualEndTime"`
		ConcurrentViewers  int64      `json:"concurrentViewers,string"`
	} `json:"liveStreamingDetails"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// thumbnailPreference lists thumbnail sizes from most to least preferred.
var thumbnailPreference = []string{"maxres", "standard", "high", "medium", "default"}

func (v videoItem) toMetadata() *domain.VideoMetadata {
	meta := &domain.VideoMetadata{
		ID:             v.ID,
		Title:          v.Snippet.Title,
		BroadcastState: broadcastState(v.Snippet.LiveBroadcastContent),
		ViewCount:      v.Statistics.ViewCount,
		LikeCount:      v.Statistics.LikeCount,
		CommentCount:   v.Statistics.CommentCount,
	}
	for _, size := range thumbnailPreference {
		if t, ok := v.Snippet.Thumbnails[size]; ok && t.URL != "" {
			meta.Thumbnail = t.URL
			break
		}
	}
	if d := v.LiveStreamingDetails; d != nil {
		meta.ScheduledStartTime = d.ScheduledStartTime
		meta.ActualStartTime = d.ActualStartTime
		meta.ActualEndTime = d.ActualEndTime
		meta.ConcurrentViewers = d.ConcurrentViewers
	}
	return meta
}

func broadcastState(s string) domain.BroadcastState {
	switch s {
	case "upcoming":
		return domain.BroadcastUpcoming
	case "live":
		return domain.BroadcastLive
	default:
		return domain.BroadcastNone
	}
}

var _ ports.StreamProvider = (*Client)(nil)
