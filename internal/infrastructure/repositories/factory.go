package repositories

import (
	"context"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"collabstream/internal/core/ports"
	"collabstream/internal/infrastructure/repositories/memory"
	mongorepo "collabstream/internal/infrastructure/repositories/mongo"
	redisrepo "collabstream/internal/infrastructure/repositories/redis"
	"collabstream/pkg/config"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	driver      string
	redisClient *redis.Client
	mongoClient *mongodriver.Client
	collection  *mongodriver.Collection
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to the configured storage. A backend that cannot
// be reached degrades to the in-memory store, which only suits a single instance.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		driver: cfg.Storage.Driver,
		logger: logger,
	}

	switch cfg.Storage.Driver {
	case DriverRedis:
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.ClientConfig{
			Address:  cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			PoolSize: cfg.Storage.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.driver = DriverMemory
		} else {
			factory.redisClient = client
		}

	case DriverMongo:
		mongoCfg := cfg.Storage.Mongo
		client, err := mongorepo.NewMongoClient(ctx, mongoCfg.URI, mongoCfg.Timeout, logger)
		if err != nil {
			logger.Warnw("failed to connect to MongoDB, falling back to memory repositories",
				"error", err,
			)
			factory.driver = DriverMemory
			break
		}
		collection := client.Database(mongoCfg.Database).Collection(mongoCfg.Collection)
		if err := mongorepo.EnsureIndexes(ctx, collection); err != nil {
			_ = mongorepo.CloseMongoClient(ctx, client)
			return nil, err
		}
		factory.mongoClient = client
		factory.collection = collection

	default:
		factory.driver = DriverMemory
	}

	logger.Infow("using session repository", "driver", factory.driver)
	return factory, nil
}

// Driver reports the backend actually in use after any fallback.
func (f *RepositoryFactory) Driver() string {
	return f.driver
}

// RedisClient is nil unless sessions are stored in Redis.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) CreateSessionRepository() ports.SessionRepository {
	switch {
	case f.redisClient != nil:
		return redisrepo.NewRedisSessionRepository(f.redisClient)
	case f.collection != nil:
		return mongorepo.NewMongoSessionRepository(f.collection)
	default:
		return memory.NewMemorySessionRepository()
	}
}

// Close releases whichever backend connection is open.
func (f *RepositoryFactory) Close(ctx context.Context) error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	if f.mongoClient != nil {
		return mongorepo.CloseMongoClient(ctx, f.mongoClient)
	}
	return nil
}

// HealthCheck pings the storage backend.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	if f.mongoClient != nil {
		return f.mongoClient.Ping(ctx, nil)
	}
	return nil
}
