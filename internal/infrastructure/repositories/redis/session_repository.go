package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
)

const (
	keyPrefix         = "collabstream:session:"
	maxCreateAttempts = 3
)

// RedisSessionRepository stores each session as a JSON document with set
// indexes by status and by creator. Updates are optimistic: the document is
// WATCHed and only rewritten when its version still matches.
type RedisSessionRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{
		client: client,
		prefix: keyPrefix,
	}
}

func (r *RedisSessionRepository) sessionKey(id domain.SessionID) string {
	return r.prefix + string(id)
}

func (r *RedisSessionRepository) statusKey(status domain.SessionStatus) string {
	return r.prefix + "status:" + string(status)
}

func (r *RedisSessionRepository) creatorKey(creator domain.UserID) string {
	return r.prefix + "creator:" + string(creator)
}

// Create WATCHes the session key and the creator index so a concurrent
// create for the same creator aborts the transaction and is re-checked.
func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	stored := session.Clone()
	stored.Version = 1

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := r.sessionKey(session.ID)
	creatorKey := r.creatorKey(session.Creator)

	create := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return domain.ErrSessionExists
		}

		if !stored.Status.IsTerminal() {
			ids, err := tx.SMembers(ctx, creatorKey).Result()
			if err != nil {
				return err
			}
			owned, err := r.load(ctx, tx, ids)
			if err != nil {
				return err
			}
			for _, s := range owned {
				if s.Creator == session.Creator && !s.Status.IsTerminal() {
					return domain.ErrActiveSessionExists
				}
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, r.statusKey(stored.Status), string(session.ID))
			pipe.SAdd(ctx, creatorKey, string(session.ID))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		err = r.client.Watch(ctx, create, key, creatorKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	switch {
	case err == nil:
		session.Version = stored.Version
		return nil
	case errors.Is(err, domain.ErrSessionExists), errors.Is(err, domain.ErrActiveSessionExists):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrVersionConflict
	default:
		return fmt.Errorf("failed to create session in Redis: %w", err)
	}
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return r.get(ctx, r.client, id)
}

func (r *RedisSessionRepository) get(ctx context.Context, cmd redis.Cmdable, id domain.SessionID) (*domain.Session, error) {
	data, err := cmd.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	key := r.sessionKey(session.ID)

	next := session.Clone()
	next.Version = session.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := r.get(ctx, tx, session.ID)
		if err != nil {
			return err
		}
		if stored.Version != session.Version {
			return domain.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if stored.Status != next.Status {
				pipe.SRem(ctx, r.statusKey(stored.Status), string(session.ID))
				pipe.SAdd(ctx, r.statusKey(next.Status), string(session.ID))
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		session.Version = next.Version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrVersionConflict
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrSessionNotFound):
		return err
	default:
		return fmt.Errorf("failed to update session in Redis: %w", err)
	}
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	key := r.sessionKey(id)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.statusKey(stored.Status), string(id))
			pipe.SRem(ctx, r.creatorKey(stored.Creator), string(id))
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrSessionNotFound):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrVersionConflict
	default:
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
}

// ListByStatus returns matching sessions oldest first. No statuses means all sessions.
func (r *RedisSessionRepository) ListByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]*domain.Session, error) {
	if len(statuses) == 0 {
		statuses = allStatuses
	}

	keys := make([]string, 0, len(statuses))
	for _, status := range statuses {
		keys = append(keys, r.statusKey(status))
	}

	ids, err := r.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read status index: %w", err)
	}

	sessions, err := r.load(ctx, r.client, ids)
	if err != nil {
		return nil, err
	}

	wanted := make(map[domain.SessionStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	result := sessions[:0]
	for _, s := range sessions {
		// The index may briefly disagree with the document.
		if wanted[s.Status] {
			result = append(result, s)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *RedisSessionRepository) FindActiveByCreator(ctx context.Context, creator domain.UserID) (*domain.Session, error) {
	ids, err := r.client.SMembers(ctx, r.creatorKey(creator)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read creator index: %w", err)
	}

	sessions, err := r.load(ctx, r.client, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.Creator == creator && !s.Status.IsTerminal() {
			return s, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

// load fetches documents for ids in one round trip, skipping ids whose document is gone.
func (r *RedisSessionRepository) load(ctx context.Context, cmd redis.Cmdable, ids []string) ([]*domain.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(domain.SessionID(id))
	}

	values, err := cmd.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions from Redis: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var session domain.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

var allStatuses = []domain.SessionStatus{
	domain.StatusOpen,
	domain.StatusSettingUp,
	domain.StatusInProgress,
	domain.StatusEnded,
	domain.StatusCancelled,
}
