package redis

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabstream/internal/core/domain"
)

// newTestClient connects to the Redis named by COLLAB_TEST_REDIS_ADDRESS and
// flushes a scratch database. The tests are skipped without it.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("COLLAB_TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("COLLAB_TEST_REDIS_ADDRESS not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func testSession(id string, creator domain.UserID, status domain.SessionStatus, createdAt time.Time) *domain.Session {
	return &domain.Session{
		ID:          domain.SessionID(id),
		Creator:     creator,
		MaxPartners: 1,
		Slots: []domain.Slot{
			{Occupant: creator, VideoID: "aaaaaaaaaaa", StreamURL: "https://youtu.be/aaaaaaaaaaa"},
			{},
		},
		Status:    status,
		CreatedAt: createdAt.UTC(),
	}
}

func TestRedisSessionRepository_CRUD(t *testing.T) {
	repo := NewRedisSessionRepository(newTestClient(t))
	ctx := context.Background()

	s := testSession("s1", "alice", domain.StatusOpen, time.Now().Truncate(time.Millisecond))
	require.NoError(t, repo.Create(ctx, s))
	assert.Equal(t, int64(1), s.Version)
	assert.ErrorIs(t, repo.Create(ctx, s), domain.ErrSessionExists)

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s.Creator, got.Creator)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.GetByID(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "s1"), domain.ErrSessionNotFound)
}

func TestRedisSessionRepository_UpdateCompareAndSwap(t *testing.T) {
	repo := NewRedisSessionRepository(newTestClient(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, testSession("s1", "alice", domain.StatusOpen, time.Now())))

	first, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)

	first.Status = domain.StatusSettingUp
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Status = domain.StatusCancelled
	assert.ErrorIs(t, repo.Update(ctx, second), domain.ErrVersionConflict)

	open, err := repo.ListByStatus(ctx, domain.StatusOpen)
	require.NoError(t, err)
	assert.Empty(t, open)

	settingUp, err := repo.ListByStatus(ctx, domain.StatusSettingUp)
	require.NoError(t, err)
	require.Len(t, settingUp, 1)
	assert.Equal(t, int64(2), settingUp[0].Version)
}

func TestRedisSessionRepository_Indexes(t *testing.T) {
	client := newTestClient(t)
	repo := NewRedisSessionRepository(client)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, testSession("s2", "bob", domain.StatusInProgress, base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, testSession("s1", "alice", domain.StatusOpen, base)))
	require.NoError(t, repo.Create(ctx, testSession("s3", "alice", domain.StatusEnded, base.Add(2*time.Minute))))

	active, err := repo.ListByStatus(ctx, domain.ActiveStatuses...)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, domain.SessionID("s1"), active[0].ID)
	assert.Equal(t, domain.SessionID("s2"), active[1].ID)

	found, err := repo.FindActiveByCreator(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), found.ID)

	_, err = repo.FindActiveByCreator(ctx, "carol")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMigrate_BackfillsIndexes(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	repo := NewRedisSessionRepository(client)
	require.NoError(t, repo.Create(ctx, testSession("s1", "alice", domain.StatusOpen, time.Now())))
	require.NoError(t, client.Del(ctx, keyPrefix+"status:open", keyPrefix+"creator:alice").Err())

	require.NoError(t, Migrate(ctx, client, nil))

	version, err := getSchemaVersion(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	found, err := repo.FindActiveByCreator(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), found.ID)

	// Idempotent once the schema is current.
	require.NoError(t, Migrate(ctx, client, nil))
}

func TestRedisSessionRepository_CreateKeepsOneActivePerCreator(t *testing.T) {
	repo := NewRedisSessionRepository(newTestClient(t))
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	require.NoError(t, repo.Create(ctx, testSession("s1", "alice", domain.StatusOpen, base)))
	assert.ErrorIs(t, repo.Create(ctx, testSession("s2", "alice", domain.StatusOpen, base)), domain.ErrActiveSessionExists)

	// Terminal sessions and other creators are unaffected.
	require.NoError(t, repo.Create(ctx, testSession("s3", "alice", domain.StatusEnded, base)))
	require.NoError(t, repo.Create(ctx, testSession("s4", "bob", domain.StatusOpen, base)))

	s1, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	s1.Status = domain.StatusCancelled
	require.NoError(t, repo.Update(ctx, s1))
	assert.NoError(t, repo.Create(ctx, testSession("s5", "alice", domain.StatusOpen, base)))
}

func TestRedisSessionRepository_ConcurrentCreatesForOneCreator(t *testing.T) {
	repo := NewRedisSessionRepository(newTestClient(t))
	ctx := context.Background()

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("race-%d", i)
			errs[i] = repo.Create(ctx, testSession(id, "alice", domain.StatusOpen, time.Now()))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrActiveSessionExists)
	}
	assert.Equal(t, 1, created)

	_, err := repo.FindActiveByCreator(ctx, "alice")
	assert.NoError(t, err)
}
