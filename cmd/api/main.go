package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/wardenhq/warden/internal/api"
	"github.com/wardenhq/warden/internal/api/middleware"
	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/cache"
	"github.com/wardenhq/warden/internal/command"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/di"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/query"
	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Local env files are optional; production relies on system env vars.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Setup("development", false).Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.App.Env, cfg.App.Debug)
	log.Info("application_startup", "env", cfg.App.Env, "version", cfg.App.Version)

	if cfg.App.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.App.SentryDSN,
			Environment:      cfg.App.Env,
			Release:          cfg.App.Version,
			TracesSampleRate: 0.2,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	}

	ctx := context.Background()

	pools, err := storage.NewPools(ctx, cfg.Database, cfg.Server)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pools.Close()

	redis, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	tokens, err := auth.NewJWTProvider(cfg.Security)
	if err != nil {
		log.Error("token_provider_init_failed", "error", err)
		os.Exit(1)
	}

	hasher := auth.NewArgon2Hasher(auth.RFC9106LowMemory)
	sessions := auth.NewRefreshStore(redis, tokens, cfg.Security.RefreshTokenTTL)
	authenticator := auth.NewAuthenticator()

	// One gateway per request per side: command handlers write through the
	// master, query handlers read the replica.
	masterFactory := storage.NewFactory(pools.Master)
	replicaFactory := storage.NewFactory(pools.Replica)

	container := di.NewContainer()
	di.ProvideScopedNamed[domain.Gateway](container, storage.GatewayMaster,
		func(ctx context.Context) (domain.Gateway, func(), error) {
			gw := masterFactory.Gateway()
			return gw, func() { gw.Release(context.Background()) }, nil
		})
	di.ProvideScopedNamed[domain.Gateway](container, storage.GatewayReplica,
		func(ctx context.Context) (domain.Gateway, func(), error) {
			gw := replicaFactory.Gateway()
			return gw, func() { gw.Release(context.Background()) }, nil
		})

	events := bus.NewEventBus()
	events.Subscribe(domain.PermissionsChanged{}, func(ctx context.Context, _ any) error {
		gw := masterFactory.Gateway()
		defer gw.Release(ctx)
		return gw.RBAC().RefreshUserPermissions(ctx)
	})

	commands := bus.New()
	commands.Use(bus.InvalidateMiddleware(redis))
	command.NewUserHandler(hasher).Register(commands)
	command.NewAuthHandler(hasher, sessions, authenticator).Register(commands)
	command.NewRBACHandler(events).Register(commands)

	queries := bus.New()
	queries.Use(bus.CacheMiddleware(redis, bus.DefaultCacheTTL))
	query.NewUserHandler().Register(queries)
	query.NewRBACHandler().Register(queries)

	authorizer := middleware.NewAuthorizer(tokens, authenticator)
	registry := policy.NewRegistry()
	server := api.NewServer(cfg, container, commands, queries, authorizer, registry)

	// Persist the permission catalog declared by the route table.
	bootGW := masterFactory.Gateway()
	bootErr := policy.NewBootstrapper(redis, registry).Run(ctx, bootGW)
	bootGW.Release(ctx)
	if bootErr != nil {
		log.Error("permission_bootstrap_failed", "error", bootErr)
		os.Exit(1)
	}

	httpServer := server.HTTPServer(cfg.Server.Addr())

	errs := make(chan error, 1)
	go func() {
		log.Info("server_listening", "addr", cfg.Server.Addr())
		errs <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutdown_signal", "signal", sig.String())
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_incomplete", "error", err)
	}
	log.Info("application_stopped")
}
