package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"collabstream/internal/core/domain"
)

const (
	schemaVersionKey     = "collabstream:schema:version"
	currentSchemaVersion = 2
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// Session documents and status indexes.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client) error {
				return reindex(ctx, client, func(pipe redis.Pipeliner, s *domain.Session) {
					pipe.SAdd(ctx, keyPrefix+"status:"+string(s.Status), string(s.ID))
				})
			},
		},
		{
			// Creator index used by the one-active-session-per-creator rule.
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client) error {
				return reindex(ctx, client, func(pipe redis.Pipeliner, s *domain.Session) {
					pipe.SAdd(ctx, keyPrefix+"creator:"+string(s.Creator), string(s.ID))
				})
			},
		},
	}
}

// reindex scans every session document and lets index add its entries.
func reindex(ctx context.Context, client *redis.Client, index func(redis.Pipeliner, *domain.Session)) error {
	iter := client.Scan(ctx, 0, keyPrefix+"*", 200).Iterator()
	pipe := client.Pipeline()
	queued := 0

	for iter.Next(ctx) {
		key := iter.Val()
		rest := strings.TrimPrefix(key, keyPrefix)
		if strings.HasPrefix(rest, "status:") || strings.HasPrefix(rest, "creator:") {
			continue
		}

		data, err := client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}

		var session domain.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("session %s: %w", key, err)
		}
		index(pipe, &session)
		queued++

		if queued >= 200 {
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			queued = 0
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if queued > 0 {
		_, err := pipe.Exec(ctx)
		return err
	}
	return nil
}
