package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
)

const (
	creatorVideo = "crEAtorVid1"
	partnerVideo = "paRTnerVid1"
	otherVideo   = "otHErVideo1"
)

var testNow = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

func waiting(id string) domain.StreamStatus {
	return domain.StreamStatus{VideoID: id, Valid: true, WaitingRoom: true, ResolvedAt: testNow}
}

func live(id string) domain.StreamStatus {
	return domain.StreamStatus{VideoID: id, Valid: true, Live: true, ViewCount: 10, ResolvedAt: testNow}
}

func ended(id string, views, likes, comments int64) domain.StreamStatus {
	return domain.StreamStatus{
		VideoID:      id,
		Reason:       domain.ReasonNotLiveStream,
		ViewCount:    views,
		LikeCount:    likes,
		CommentCount: comments,
		ResolvedAt:   testNow,
	}
}

// sessionWith builds an open session whose slot i is occupied when videoIDs[i] is non-empty.
func sessionWith(maxPartners int, videoIDs ...string) *domain.Session {
	s := &domain.Session{
		ID:          "session-1",
		Creator:     "creator",
		MaxPartners: maxPartners,
		Slots:       make([]domain.Slot, 1+maxPartners),
		Status:      domain.StatusOpen,
		CreatedAt:   testNow.Add(-time.Hour),
		Version:     1,
	}
	users := []domain.UserID{"creator", "partner-1", "partner-2"}
	for i, id := range videoIDs {
		if id == "" {
			continue
		}
		s.Slots[i] = domain.Slot{Occupant: users[i], VideoID: id, StreamURL: "https://youtu.be/" + id}
	}
	return s
}

// stubResolver serves scripted statuses and records what it was asked.
type stubResolver struct {
	mu       sync.Mutex
	statuses map[string]domain.StreamStatus
	errs     map[string]error
	calls    map[string]int
	maxAges  []time.Duration
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		statuses: make(map[string]domain.StreamStatus),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (r *stubResolver) set(status domain.StreamStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[status.VideoID] = status
	delete(r.errs, status.VideoID)
}

func (r *stubResolver) fail(videoID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[videoID] = err
}

func (r *stubResolver) Resolve(ctx context.Context, videoID string, maxAge time.Duration) (domain.StreamStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[videoID]++
	r.maxAges = append(r.maxAges, maxAge)
	if err, ok := r.errs[videoID]; ok {
		return domain.StreamStatus{VideoID: videoID, Reason: domain.ReasonUpstreamError}, err
	}
	if status, ok := r.statuses[videoID]; ok {
		return status, nil
	}
	return domain.StreamStatus{VideoID: videoID, Reason: domain.ReasonNotFound}, nil
}

func (r *stubResolver) StreamInfo(ctx context.Context, videoID string) (*domain.StreamStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.statuses[videoID]
	if !ok {
		return nil, false
	}
	return &status, true
}

type MockStreamProvider struct {
	mock.Mock
}

func (m *MockStreamProvider) FetchVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoMetadata), args.Error(1)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session).Clone(), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) ListByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]*domain.Session, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) FindActiveByCreator(ctx context.Context, creator domain.UserID) (*domain.Session, error) {
	args := m.Called(ctx, creator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event *domain.SessionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingMetrics counts calls so tests can assert on instrumentation.
type recordingMetrics struct {
	mu          sync.Mutex
	lookups     map[string]int
	upstream    map[string]int
	transitions []string
	sweeps      []ports.SweepResult
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{lookups: map[string]int{}, upstream: map[string]int{}}
}

func (m *recordingMetrics) RecordCacheLookup(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[result]++
}

func (m *recordingMetrics) RecordUpstreamCall(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upstream[outcome]++
}

func (m *recordingMetrics) RecordTransition(from, to domain.SessionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
}

func (m *recordingMetrics) RecordSweep(_ time.Duration, result ports.SweepResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps = append(m.sweeps, result)
}
