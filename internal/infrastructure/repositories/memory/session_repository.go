package memory

import (
	"context"
	"sort"
	"sync"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
)

// MemorySessionRepository keeps sessions in process memory. Stored values are
// copies, so callers can never mutate repository state without Update.
type MemorySessionRepository struct {
	sessions map[domain.SessionID]*domain.Session
	mu       sync.RWMutex
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return domain.ErrSessionExists
	}
	if !session.Status.IsTerminal() {
		for _, other := range r.sessions {
			if other.Creator == session.Creator && !other.Status.IsTerminal() {
				return domain.ErrActiveSessionExists
			}
		}
	}

	session.Version = 1
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	return session.Clone(), nil
}

func (r *MemorySessionRepository) Update(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sessions[session.ID]
	if !exists {
		return domain.ErrSessionNotFound
	}
	if stored.Version != session.Version {
		return domain.ErrVersionConflict
	}

	session.Version++
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return domain.ErrSessionNotFound
	}

	delete(r.sessions, id)
	return nil
}

// ListByStatus returns matching sessions oldest first. No statuses means all sessions.
func (r *MemorySessionRepository) ListByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[domain.SessionStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var result []*domain.Session
	for _, session := range r.sessions {
		if len(wanted) == 0 || wanted[session.Status] {
			result = append(result, session.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemorySessionRepository) FindActiveByCreator(ctx context.Context, creator domain.UserID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.Creator == creator && !session.Status.IsTerminal() {
			return session.Clone(), nil
		}
	}
	return nil, domain.ErrSessionNotFound
}
