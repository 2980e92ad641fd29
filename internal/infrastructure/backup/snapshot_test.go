package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/internal/infrastructure/repositories/memory"
	"collabstream/pkg/backup"
)

func newSession(id string, status domain.SessionStatus) *domain.Session {
	return &domain.Session{
		ID:          domain.SessionID(id),
		Creator:     domain.UserID("creator-" + id),
		MaxPartners: 1,
		Slots: []domain.Slot{
			{Occupant: domain.UserID("creator-" + id), VideoID: "dQw4w9WgXcQ"},
			{},
		},
		Status:    status,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func setup(t *testing.T) (*SessionSnapshotter, *backup.BackupService, ports.SessionRepository) {
	t.Helper()
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	service := backup.NewBackupService(storage, "1")
	repo := memory.NewMemorySessionRepository()
	return NewSessionSnapshotter(service, repo, zaptest.NewLogger(t).Sugar()), service, repo
}

func TestSessionSnapshotter_SnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	snapshotter, _, repo := setup(t)

	require.NoError(t, repo.Create(ctx, newSession("a", domain.StatusOpen)))
	require.NoError(t, repo.Create(ctx, newSession("b", domain.StatusEnded)))

	name, count, err := snapshotter.Snapshot(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NotEmpty(t, name)

	require.NoError(t, repo.Delete(ctx, "a"))

	changed, err := repo.GetByID(ctx, "b")
	require.NoError(t, err)
	changed.Status = domain.StatusCancelled
	require.NoError(t, repo.Update(ctx, changed))

	result, err := snapshotter.Restore(ctx, name, false)
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Created: 1, Skipped: 1}, result)

	restored, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, restored.Status)
	assert.Equal(t, "dQw4w9WgXcQ", restored.Slots[0].VideoID)

	kept, err := repo.GetByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, kept.Status)
}

func TestSessionSnapshotter_RestoreOverwrite(t *testing.T) {
	ctx := context.Background()
	snapshotter, _, repo := setup(t)

	require.NoError(t, repo.Create(ctx, newSession("a", domain.StatusOpen)))
	name, _, err := snapshotter.Snapshot(ctx, "")
	require.NoError(t, err)

	current, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	current.Status = domain.StatusSettingUp
	require.NoError(t, repo.Update(ctx, current))

	result, err := snapshotter.Restore(ctx, name, true)
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Overwritten: 1}, result)

	restored, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, restored.Status)
	assert.Equal(t, int64(3), restored.Version)
}

func TestSessionSnapshotter_RestoreSkipsWhenCreatorIsBusy(t *testing.T) {
	ctx := context.Background()
	snapshotter, _, repo := setup(t)

	require.NoError(t, repo.Create(ctx, newSession("a", domain.StatusOpen)))
	name, _, err := snapshotter.Snapshot(ctx, "manual")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "a"))
	replacement := newSession("z", domain.StatusOpen)
	replacement.Creator = "creator-a"
	require.NoError(t, repo.Create(ctx, replacement))

	result, err := snapshotter.Restore(ctx, name, false)
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Skipped: 1}, result)

	_, err = repo.GetByID(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionSnapshotter_RestoreMissingBackup(t *testing.T) {
	snapshotter, _, _ := setup(t)

	_, err := snapshotter.Restore(context.Background(), "backup-missing.json", false)
	assert.Error(t, err)
}

func TestScheduler_RunOncePrunes(t *testing.T) {
	ctx := context.Background()
	snapshotter, service, repo := setup(t)
	require.NoError(t, repo.Create(ctx, newSession("a", domain.StatusOpen)))

	scheduler, err := NewScheduler(snapshotter, service, Config{Interval: time.Hour, Keep: 1}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	first, err := scheduler.RunOnce(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := scheduler.RunOnce(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	names, err := service.ListBackups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second}, names)
}

func TestNewScheduler_RejectsZeroInterval(t *testing.T) {
	snapshotter, service, _ := setup(t)

	_, err := NewScheduler(snapshotter, service, Config{}, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}
