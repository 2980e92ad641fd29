package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	apperrors "collabstream/pkg/errors"
	"collabstream/pkg/validation"
	"collabstream/pkg/videoref"
)

type collabService struct {
	repo        ports.SessionRepository
	resolver    ports.StreamStatusResolver
	aggregator  ports.SessionAggregator
	publisher   ports.EventPublisher
	eventMaxAge time.Duration
	instanceID  string
	logger      *zap.SugaredLogger
	now         func() time.Time
}

// CollabServiceConfig carries the knobs the collab service needs from configuration.
type CollabServiceConfig struct {
	EventMaxAge time.Duration
	InstanceID  string
	Now         func() time.Time
}

func NewCollabService(
	repo ports.SessionRepository,
	resolver ports.StreamStatusResolver,
	aggregator ports.SessionAggregator,
	publisher ports.EventPublisher,
	cfg CollabServiceConfig,
	logger *zap.SugaredLogger,
) ports.CollabService {
	if publisher == nil {
		publisher = NoopPublisher()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &collabService{
		repo:        repo,
		resolver:    resolver,
		aggregator:  aggregator,
		publisher:   publisher,
		eventMaxAge: cfg.EventMaxAge,
		instanceID:  cfg.InstanceID,
		logger:      logger,
		now:         now,
	}
}

func (s *collabService) CreateSession(ctx context.Context, in ports.CreateSessionInput) (*domain.Session, error) {
	if err := validation.ValidateUserID(string(in.Creator)); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidateMaxPartners(in.MaxPartners, domain.MinPartners, domain.MaxPartners); err != nil {
		return nil, apperrors.NewInvariantError(apperrors.ReasonInvalidMaxPartners, err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	videoID, ok := videoref.ExtractVideoID(in.StreamURL)
	if !ok {
		return nil, apperrors.NewInvalidLinkError()
	}

	existing, err := s.repo.FindActiveByCreator(ctx, in.Creator)
	switch {
	case err == nil:
		return nil, apperrors.NewInvariantError(apperrors.ReasonActiveSessionExists,
			fmt.Sprintf("creator already has an active session %s", existing.ID)).
			WithContext("session_id", string(existing.ID))
	case !errors.Is(err, domain.ErrSessionNotFound):
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}

	status, err := s.verifyStream(ctx, videoID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		ID:          domain.SessionID(uuid.New().String()),
		Creator:     in.Creator,
		MaxPartners: in.MaxPartners,
		Slots:       make([]domain.Slot, 1+in.MaxPartners),
		Status:      domain.StatusOpen,
		CreatedAt:   now,
	}
	session.Slots[domain.CreatorSlot] = domain.Slot{
		Occupant:    in.Creator,
		StreamURL:   strings.TrimSpace(in.StreamURL),
		VideoID:     videoID,
		Description: in.Description,
		JoinedAt:    timePtr(now),
		LastKnown:   &status,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		if errors.Is(err, domain.ErrActiveSessionExists) {
			return nil, apperrors.NewInvariantError(apperrors.ReasonActiveSessionExists,
				"creator already has an active session")
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Infow("session created",
		"session_id", session.ID,
		"creator", session.Creator,
		"max_partners", session.MaxPartners,
		"video_id", videoID,
	)
	s.publish(ctx, domain.EventSessionCreated, session.ID, domain.TriggerCreate)

	return s.refreshAfter(ctx, session, domain.TriggerCreate), nil
}

func (s *collabService) MatchSession(ctx context.Context, in ports.MatchInput) (*domain.Session, error) {
	if err := validation.ValidateUserID(string(in.User)); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	session, err := s.load(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	if err := CheckCandidate(session, in.User); err != nil {
		return nil, err
	}

	videoID, ok := videoref.ExtractVideoID(in.StreamURL)
	if !ok {
		return nil, apperrors.NewInvalidLinkError()
	}

	idx, err := CheckMatch(session, in.User, videoID)
	if err != nil {
		return nil, err
	}

	status, err := s.verifyStream(ctx, videoID)
	if err != nil {
		return nil, err
	}

	session.Slots[idx] = domain.Slot{
		Occupant:    in.User,
		StreamURL:   strings.TrimSpace(in.StreamURL),
		VideoID:     videoID,
		Description: in.Description,
		JoinedAt:    timePtr(s.now()),
		LastKnown:   &status,
	}

	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, apperrors.NewConflictError("session changed while matching, please retry")
		}
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	s.logger.Infow("partner matched",
		"session_id", session.ID,
		"user", in.User,
		"slot", idx,
		"video_id", videoID,
	)
	s.publish(ctx, domain.EventSessionMatched, session.ID, domain.TriggerMatch)

	return s.refreshAfter(ctx, session, domain.TriggerMatch), nil
}

func (s *collabService) RefreshSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	session, err := s.aggregator.Refresh(ctx, id, domain.TriggerRefresh)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, apperrors.NewNotFoundError("session")
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, apperrors.NewConflictError("session changed during refresh, please retry")
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	return session, nil
}

func (s *collabService) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return s.load(ctx, id)
}

func (s *collabService) ListSessions(ctx context.Context, statuses ...domain.SessionStatus) ([]*domain.Session, error) {
	for _, status := range statuses {
		if !status.IsValid() {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unknown status %q", status))
		}
	}
	if len(statuses) == 0 {
		statuses = domain.ActiveStatuses
	}
	return s.repo.ListByStatus(ctx, statuses...)
}

func (s *collabService) DeleteSession(ctx context.Context, id domain.SessionID, caller domain.UserID) error {
	session, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if session.Creator != caller {
		return apperrors.NewForbiddenError("only the creator may delete a session")
	}
	if session.Status != domain.StatusOpen {
		return apperrors.NewInvariantError(apperrors.ReasonWrongStatus,
			fmt.Sprintf("session is %s, only open sessions can be deleted", session.Status))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.logger.Infow("session deleted", "session_id", id, "creator", caller)
	s.publish(ctx, domain.EventSessionDeleted, id, "")
	return nil
}

// LiveInfo fetches current display data for every occupied slot. Slots whose
// lookup failed are returned as nil.
func (s *collabService) LiveInfo(ctx context.Context, id domain.SessionID) ([]*domain.StreamStatus, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	infos := make([]*domain.StreamStatus, len(session.Slots))
	for i, slot := range session.Slots {
		if !slot.Occupied() || slot.VideoID == "" {
			continue
		}
		if info, ok := s.resolver.StreamInfo(ctx, slot.VideoID); ok {
			infos[i] = info
		}
	}
	return infos, nil
}

// verifyStream resolves videoID with the event window and rejects anything
// that cannot back a slot.
func (s *collabService) verifyStream(ctx context.Context, videoID string) (domain.StreamStatus, error) {
	status, err := s.resolver.Resolve(ctx, videoID, s.eventMaxAge)
	if err != nil {
		return status, apperrors.NewStreamUnverifiableError(err)
	}
	if !status.Broadcastable() {
		reason := string(status.Reason)
		if reason == "" {
			reason = "stream has ended"
		}
		return status, apperrors.NewInvalidStreamError(reason).WithContext("video_id", videoID)
	}
	return status, nil
}

// refreshAfter runs the aggregator after a write. The write already
// succeeded, so a refresh failure is logged and the written session returned.
func (s *collabService) refreshAfter(ctx context.Context, session *domain.Session, trigger domain.Trigger) *domain.Session {
	refreshed, err := s.aggregator.Refresh(ctx, session.ID, trigger)
	if err != nil {
		s.logger.Warnw("post-write refresh failed",
			"session_id", session.ID,
			"trigger", trigger,
			"error", err,
		)
		return session
	}
	return refreshed
}

// load treats a malformed id as unknown without touching storage.
func (s *collabService) load(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	if err := validation.ValidateSessionID(string(id)); err != nil {
		return nil, apperrors.NewNotFoundError("session")
	}
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, apperrors.NewNotFoundError("session")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func (s *collabService) publish(ctx context.Context, eventType domain.EventType, id domain.SessionID, trigger domain.Trigger) {
	event := &domain.SessionEvent{
		Type:       eventType,
		InstanceID: s.instanceID,
		SessionID:  id,
		Trigger:    trigger,
		Timestamp:  s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warnw("failed to publish session event",
			"session_id", id,
			"type", eventType,
			"error", err,
		)
	}
}
