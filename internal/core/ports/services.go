package ports

import (
	"context"
	"time"

	"collabstream/internal/core/domain"
)

// StreamProvider fetches broadcast metadata from the upstream video platform.
// A missing video is reported as domain.ErrVideoNotFound.
type StreamProvider interface {
	FetchVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error)
}

type StreamStatusResolver interface {
	Resolve(ctx context.Context, videoID string, maxAge time.Duration) (domain.StreamStatus, error)
	StreamInfo(ctx context.Context, videoID string) (*domain.StreamStatus, bool)
}

type SessionAggregator interface {
	Refresh(ctx context.Context, id domain.SessionID, trigger domain.Trigger) (*domain.Session, error)
	Sweep(ctx context.Context) (SweepResult, error)
}

type SweepResult struct {
	Scanned   int
	Refreshed int
	Skipped   int
	Failed    int
}

type CreateSessionInput struct {
	Creator     domain.UserID
	StreamURL   string
	Description string
	MaxPartners int
}

type MatchInput struct {
	SessionID   domain.SessionID
	User        domain.UserID
	StreamURL   string
	Description string
}

type CollabService interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (*domain.Session, error)
	MatchSession(ctx context.Context, in MatchInput) (*domain.Session, error)
	RefreshSession(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	ListSessions(ctx context.Context, statuses ...domain.SessionStatus) ([]*domain.Session, error)
	DeleteSession(ctx context.Context, id domain.SessionID, caller domain.UserID) error
	LiveInfo(ctx context.Context, id domain.SessionID) ([]*domain.StreamStatus, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *domain.SessionEvent) error
}

type MetricsRecorder interface {
	RecordCacheLookup(result string)
	RecordUpstreamCall(outcome string, duration time.Duration)
	RecordTransition(from, to domain.SessionStatus)
	RecordSweep(duration time.Duration, result SweepResult)
}
