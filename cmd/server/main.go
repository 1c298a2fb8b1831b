package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campusnotes/notes-admin/internal/authbus"
	"github.com/campusnotes/notes-admin/internal/backend"
	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/config"
	"github.com/campusnotes/notes-admin/internal/credential"
	"github.com/campusnotes/notes-admin/internal/database"
	"github.com/campusnotes/notes-admin/internal/gate"
	"github.com/campusnotes/notes-admin/internal/logger"
	"github.com/campusnotes/notes-admin/internal/metrics"
	"github.com/campusnotes/notes-admin/internal/profile"
	"github.com/campusnotes/notes-admin/internal/resolver"
	"github.com/campusnotes/notes-admin/internal/server"
	"github.com/campusnotes/notes-admin/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting notes admin server...")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	db, err := database.Open(cfg.Database.URL, logger.Component(log, "database"))
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Admin profile lookups go to the hosted Postgres when one is configured
	var profiles profile.Store = profile.NewGormStore(db)
	if cfg.Database.ProfileURL != "" {
		sqlStore, err := profile.NewSQLStore(cfg.Database.ProfileURL)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = sqlStore.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Profile database unreachable at startup, lookups will fail closed")
		}
		profiles = sqlStore
	}

	credentials, closeCredentials, err := openCredentialCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCredentials()

	tokens, err := backend.NewTokenIssuer(cfg.Backend.JWTSecret, cfg.Backend.TokenTTL)
	if err != nil {
		return err
	}
	auth := backend.NewAuth(db, tokens, logger.Component(log, "backend"))
	bus := authbus.New()
	m := metrics.New(prometheus.DefaultRegisterer)

	res := resolver.New(credentials, auth, profiles, cfg.Gate.AdminRole, logger.Component(log, "resolver"), m)
	gates := gate.NewRegistry(gate.Deps{
		Resolver:       res,
		Credentials:    credentials,
		Bus:            bus,
		Auth:           auth,
		ResolveTimeout: cfg.Gate.ResolveTimeout,
		Log:            logger.Component(log, "gate"),
		Metrics:        m,
	})
	defer gates.Close()

	// Background maintenance
	scheduler := workers.NewScheduler(logger.Component(log, "scheduler"))
	if err := scheduler.Add("refresh-sessions", cfg.Backend.RefreshSchedule, time.Minute,
		workers.RefreshSessions(auth, cfg.Backend.RefreshWindow, log)); err != nil {
		return err
	}
	if err := scheduler.Add("sweep-gates", cfg.Gate.SweepSchedule, time.Minute,
		workers.SweepGates(gates, cfg.Gate.IdleTimeout, log)); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	}()

	deps := server.Deps{
		Config:      cfg,
		Logger:      logger.Component(log, "http"),
		Catalog:     catalog.New(db),
		Auth:        auth,
		Profiles:    profiles,
		Credentials: credentials,
		Bus:         bus,
		Gates:       gates,
		Metrics:     m,
		Version:     version,
	}

	if cfg.AuditEnabled {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

		asynqClient := asynq.NewClient(redisOpt)
		defer func() {
			if err := asynqClient.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing Asynq client")
			}
		}()
		deps.Tasks = asynqClient

		monitor := asynqmon.New(asynqmon.Options{
			RootPath:     "/monitoring",
			RedisConnOpt: redisOpt,
		})
		defer monitor.Close()
		deps.Monitor = monitor
	}

	srv, err := server.New(deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}

// openCredentialCache returns the configured legacy credential store and its
// cleanup
func openCredentialCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (credential.Cache, func(), error) {
	if cfg.Gate.CredentialStore != "redis" {
		return credential.NewMemory(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address})
	cache, err := credential.NewRedis(ctx, client, logger.Component(log, "credential"))
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to open redis credential cache: %w", err)
	}
	return cache, func() {
		if err := cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing credential cache")
		}
		_ = client.Close()
	}, nil
}
