package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/tafelzaak/identity/docs"
	"github.com/tafelzaak/identity/internal/api"
	"github.com/tafelzaak/identity/internal/api/handler"
	"github.com/tafelzaak/identity/internal/core/service"
	"github.com/tafelzaak/identity/internal/infrastructure/credentials"
	mongostore "github.com/tafelzaak/identity/internal/infrastructure/db/mongo"
	redisstore "github.com/tafelzaak/identity/internal/infrastructure/db/redis"
	"github.com/tafelzaak/identity/internal/infrastructure/mail"
	"github.com/tafelzaak/identity/internal/infrastructure/queue"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Outbound mail is queued in Redis and delivered by
the worker command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := setup(ctx, "api")
	if err != nil {
		return err
	}

	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Error().Err(err).Msg("connect mongodb")
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongodb disconnect")
		}
	}()
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		log.Error().Err(err).Msg("ensure indexes")
		return err
	}

	redisCfg := redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	rdb, err := redisstore.Connect(ctx, redisCfg)
	if err != nil {
		log.Error().Err(err).Msg("connect redis")
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// --- Infrastructure ---
	auditRepo := mongostore.NewAuditRepository(db)
	sessions := redisstore.NewSessionStore(rdb)
	store := credentials.NewStore(
		mongostore.NewUserRepository(db),
		redisstore.NewLockout(rdb, redisstore.LockoutConfig{
			Threshold: cfg.Lockout.Threshold,
			Window:    cfg.Lockout.Window,
			Duration:  cfg.Lockout.Duration,
		}),
		redisstore.NewResetTokens(rdb, cfg.Reset.TokenTTL),
		log,
	)
	mailer := mail.NewQueueMailer(asynqClient, cfg.Mail.Queue, cfg.Mail.MaxRetry, log)

	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, cfg.Audit.Buffer, auditRepo, log)
	dispatcher.Start()

	// --- Services ---
	audit := service.NewAuditLogger(dispatcher, auditRepo, log)
	roles := service.NewRoleService(store, log)

	e := api.NewRouter(api.Deps{
		Log:       log,
		JWTSecret: cfg.JWTSecret,
		Sessions:  sessions,
		Auth:      service.NewAuthService(store, sessions, audit, log, cfg.JWTSecret, cfg.SessionTTL),
		Reset:     service.NewPasswordResetService(store, mailer, audit, log, cfg.Reset.LinkBaseURL),
		Accounts:  service.NewAccountService(store, sessions, audit, log),
		Users:     service.NewUserAdminService(store, roles, sessions, audit, log),
		Roles:     roles,
		Audit:     audit,
		Readiness: map[string]handler.Pinger{
			"mongodb": func(ctx context.Context) error { return mongostore.Ping(ctx, mongoClient) },
			"redis":   func(ctx context.Context) error { return redisstore.Ping(ctx, rdb, 0) },
		},
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("http server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// The HTTP server goes first so no request appends after the
		// dispatcher has drained.
		httpErr := e.Shutdown(shutdownCtx)
		return errors.Join(httpErr, dispatcher.Stop(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("serve stopped with error")
		return err
	}
	log.Info().Msg("serve stopped")
	return nil
}
