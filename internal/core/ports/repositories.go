package ports

import (
	"context"

	"collabstream/internal/core/domain"
)

type SessionRepository interface {
	// Create rejects a non-terminal session with domain.ErrActiveSessionExists
	// when its creator already owns one. The check and the insert are atomic.
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	// Update persists session only if the stored version equals session.Version,
	// and bumps session.Version on success. A mismatch returns domain.ErrVersionConflict.
	Update(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id domain.SessionID) error
	ListByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]*domain.Session, error)
	// FindActiveByCreator returns domain.ErrSessionNotFound when the creator has no non-terminal session.
	FindActiveByCreator(ctx context.Context, creator domain.UserID) (*domain.Session, error)
}
