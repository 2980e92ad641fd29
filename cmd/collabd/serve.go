package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"collabstream/internal/core/domain"
	httphandlers "collabstream/internal/handlers/http"
	infrabackup "collabstream/internal/infrastructure/backup"
	"collabstream/internal/infrastructure/middleware"
	"collabstream/internal/infrastructure/monitoring"
	"collabstream/internal/infrastructure/scheduler"
	"collabstream/pkg/config"
	"collabstream/pkg/distributed"
	"collabstream/pkg/logger"
)

const sweepLockKey = "collab:sweep"

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	log := a.log

	var sweeper *scheduler.Sweeper
	if cfg.Sweeper.Enabled {
		var lock scheduler.Locker
		if client := a.factory.RedisClient(); client != nil {
			lock = distributed.NewLock(client, sweepLockKey, cfg.Sweeper.LockTTL)
		}
		sweeper, err = scheduler.NewSweeper(a.aggregator, lock, scheduler.Config{
			Interval: cfg.Sweeper.Interval,
			Timeout:  cfg.Sweeper.LockTTL,
		}, log)
		if err != nil {
			return err
		}
		if err := sweeper.Start(ctx); err != nil {
			return err
		}
	}

	var backups *infrabackup.Scheduler
	if cfg.Backup.Enabled {
		snapshotter, service, err := a.backups()
		if err != nil {
			return err
		}
		backups, err = infrabackup.NewScheduler(snapshotter, service, infrabackup.Config{
			Interval: cfg.Backup.Interval,
			Keep:     cfg.Backup.Keep,
		}, log)
		if err != nil {
			return err
		}
		if err := backups.Start(ctx); err != nil {
			return err
		}
	}

	if a.bus != nil {
		go func() {
			err := a.bus.Subscribe(ctx, false, func(e *domain.SessionEvent) error {
				log.Debugw("remote session event",
					"type", e.Type,
					"session_id", e.SessionID,
					"from_instance", e.InstanceID,
				)
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warnw("event subscription ended", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      newRouter(a),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting collabd", "address", cfg.Server.Address, "storage", a.factory.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		log.Errorw("server failed", "error", runErr)
	case <-ctx.Done():
		log.Info("shutting down collabd")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		_ = srv.Close()
	}
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			log.Warnw("error stopping sweeper", "error", err)
		}
	}
	if backups != nil {
		if err := backups.Stop(); err != nil {
			log.Warnw("error stopping backup scheduler", "error", err)
		}
	}
	a.close(shutdownCtx)
	return runErr
}

func newRouter(a *app) *gin.Engine {
	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(a.log),
		middleware.TracingMiddleware(),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(a.zapLogger), a.collector),
		middleware.NewHTTPRateLimitMiddleware(a.cfg),
		middleware.ErrorHandlerMiddleware(a.log),
	)

	checker := monitoring.NewHealthChecker()
	checker.AddStorageCheck(a.factory.HealthCheck, 2*time.Second)
	checker.AddUpstreamCheck(a.upstream.BreakerState)
	httphandlers.NewHealthHandler(checker).SetupRoutes(router)

	httphandlers.NewSessionHandler(a.service).SetupRoutes(router, middleware.AuthMiddleware(a.auth))

	if a.cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}
	return router
}
