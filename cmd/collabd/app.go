package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"collabstream/internal/core/ports"
	"collabstream/internal/core/services"
	infrabackup "collabstream/internal/infrastructure/backup"
	"collabstream/internal/infrastructure/distributed"
	"collabstream/internal/infrastructure/monitoring"
	"collabstream/internal/infrastructure/repositories"
	"collabstream/internal/infrastructure/youtube"
	"collabstream/pkg/backup"
	"collabstream/pkg/circuitbreaker"
	"collabstream/pkg/config"
	"collabstream/pkg/logger"
	"collabstream/pkg/retry"
	"collabstream/pkg/tracing"
)

// app holds the wired core shared by every subcommand.
type app struct {
	cfg        *config.Config
	instanceID string

	zapLogger *zap.Logger
	log       *zap.SugaredLogger

	registry  *prometheus.Registry
	collector *monitoring.PrometheusCollector
	tracer    *tracing.TracerProvider

	factory    *repositories.RepositoryFactory
	repo       ports.SessionRepository
	upstream   *youtube.Client
	resolver   *services.StatusResolver
	aggregator *services.Aggregator
	service    ports.CollabService
	bus        *distributed.EventBus
	auth       services.AuthService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:        cfg,
		instanceID: instanceID(),
	}

	a.zapLogger = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	a.log = a.zapLogger.Sugar().With("instance_id", a.instanceID)

	tp, err := tracing.Init(tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		JaegerURL:      cfg.Tracing.JaegerURL,
		Environment:    cfg.Tracing.Environment,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tp

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.collector = monitoring.NewPrometheusCollector(a.registry)

	a.factory, err = repositories.NewRepositoryFactory(ctx, cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.repo = a.factory.CreateSessionRepository()

	var publisher ports.EventPublisher = services.NoopPublisher()
	if cfg.Events.Enabled {
		if client := a.factory.RedisClient(); client != nil {
			a.bus = distributed.NewEventBus(client, a.instanceID, cfg.Events.Channel, a.log)
			publisher = a.bus
		} else {
			a.log.Warnw("events enabled but Redis storage is unavailable, events disabled")
		}
	}

	a.upstream = youtube.NewClient(youtube.Config{
		APIKey:            cfg.YouTube.APIKey,
		BaseURL:           cfg.YouTube.BaseURL,
		Timeout:           cfg.YouTube.Timeout,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		Burst:             cfg.YouTube.Burst,
		CircuitBreaker: circuitbreaker.Config{
			FailureThreshold:    cfg.YouTube.CircuitBreaker.FailureThreshold,
			SuccessThreshold:    cfg.YouTube.CircuitBreaker.SuccessThreshold,
			Timeout:             cfg.YouTube.CircuitBreaker.Timeout,
			MaxRequestsHalfOpen: 1,
		},
	}, a.log)

	a.resolver = services.NewStatusResolver(a.upstream, services.ResolverConfig{
		DefaultMaxAge: cfg.Resolver.DefaultMaxAge,
		Retention:     cfg.Resolver.CacheRetention,
		MaxEntries:    cfg.Resolver.CacheMaxEntries,
		Retry:         retry.LinearConfig(cfg.Resolver.Retry.MaxAttempts, cfg.Resolver.Retry.BaseDelay),
	}, a.collector, a.log)
	a.collector.ObserveResolverCache(a.resolver.CacheStats)

	a.aggregator = services.NewAggregator(a.repo, a.resolver, publisher, a.collector, services.AggregatorConfig{
		EventMaxAge:      cfg.Resolver.EventMaxAge,
		SweepMaxAge:      cfg.Resolver.DefaultMaxAge,
		SweepConcurrency: cfg.Sweeper.Concurrency,
		InstanceID:       a.instanceID,
	}, a.log)

	a.service = services.NewCollabService(a.repo, a.resolver, a.aggregator, publisher, services.CollabServiceConfig{
		EventMaxAge: cfg.Resolver.EventMaxAge,
		InstanceID:  a.instanceID,
	}, a.log)

	a.auth = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	return a, nil
}

func (a *app) close(ctx context.Context) {
	a.resolver.Stop()
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Warnw("error closing event bus", "error", err)
		}
	}
	if err := a.factory.Close(ctx); err != nil {
		a.log.Errorw("error closing storage", "error", err)
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.log.Warnw("error shutting down tracer", "error", err)
	}
	_ = a.zapLogger.Sync()
}

// backupFormatVersion is stamped on every session snapshot.
const backupFormatVersion = "1"

// backups opens the configured backup directory over the session repository.
func (a *app) backups() (*infrabackup.SessionSnapshotter, *backup.BackupService, error) {
	storage, err := backup.NewFileStorage(a.cfg.Backup.Directory)
	if err != nil {
		return nil, nil, fmt.Errorf("open backup storage: %w", err)
	}
	service := backup.NewBackupService(storage, backupFormatVersion)
	return infrabackup.NewSessionSnapshotter(service, a.repo, a.log), service, nil
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return host + "-" + uuid.NewString()[:8]
}
