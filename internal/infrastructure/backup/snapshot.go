package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/pkg/backup"
)

// SessionSnapshotter writes every stored session into a backup and loads them back.
type SessionSnapshotter struct {
	backupService *backup.BackupService
	repo          ports.SessionRepository
	logger        *zap.SugaredLogger
}

func NewSessionSnapshotter(backupService *backup.BackupService, repo ports.SessionRepository, logger *zap.SugaredLogger) *SessionSnapshotter {
	return &SessionSnapshotter{
		backupService: backupService,
		repo:          repo,
		logger:        logger,
	}
}

// RestoreResult counts what a restore did with each stored session.
type RestoreResult struct {
	Created     int `json:"created"`
	Overwritten int `json:"overwritten"`
	Skipped     int `json:"skipped"`
}

// Snapshot stores all sessions, terminal ones included, and returns the backup name.
func (s *SessionSnapshotter) Snapshot(ctx context.Context, backupType string) (string, int, error) {
	sessions, err := s.repo.ListByStatus(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	data := &backup.BackupData{
		Records:  make(map[string]json.RawMessage, len(sessions)),
		Metadata: map[string]string{"session_count": strconv.Itoa(len(sessions))},
	}
	if backupType != "" {
		data.Metadata["backup_type"] = backupType
	}

	for _, session := range sessions {
		raw, err := json.Marshal(session)
		if err != nil {
			return "", 0, fmt.Errorf("failed to encode session %s: %w", session.ID, err)
		}
		data.Records[string(session.ID)] = raw
	}

	name, err := s.backupService.CreateBackup(ctx, data)
	if err != nil {
		return "", 0, err
	}

	s.logger.Infow("session snapshot created", "backup_name", name, "sessions", len(sessions))
	return name, len(sessions), nil
}

// Restore loads the named backup into the repository. Sessions that already
// exist are left alone unless overwrite is set.
func (s *SessionSnapshotter) Restore(ctx context.Context, name string, overwrite bool) (RestoreResult, error) {
	var result RestoreResult

	data, err := s.backupService.RestoreBackup(ctx, name)
	if err != nil {
		return result, err
	}

	ids := make([]string, 0, len(data.Records))
	for id := range data.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var session domain.Session
		if err := json.Unmarshal(data.Records[id], &session); err != nil {
			return result, fmt.Errorf("failed to decode session %s: %w", id, err)
		}
		if session.ID == "" {
			session.ID = domain.SessionID(id)
		}

		existing, err := s.repo.GetByID(ctx, session.ID)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			err := s.repo.Create(ctx, &session)
			if errors.Is(err, domain.ErrActiveSessionExists) {
				s.logger.Warnw("creator already has an active session, skipping",
					"session_id", session.ID, "creator", session.Creator)
				result.Skipped++
				continue
			}
			if err != nil {
				return result, fmt.Errorf("failed to restore session %s: %w", session.ID, err)
			}
			result.Created++
		case err != nil:
			return result, fmt.Errorf("failed to get session %s: %w", session.ID, err)
		case overwrite:
			session.Version = existing.Version
			if err := s.repo.Update(ctx, &session); err != nil {
				return result, fmt.Errorf("failed to overwrite session %s: %w", session.ID, err)
			}
			result.Overwritten++
		default:
			s.logger.Debugw("session exists, skipping", "session_id", session.ID)
			result.Skipped++
		}
	}

	s.logger.Infow("restore completed",
		"backup_name", name,
		"created", result.Created,
		"overwritten", result.Overwritten,
		"skipped", result.Skipped,
	)
	return result, nil
}
