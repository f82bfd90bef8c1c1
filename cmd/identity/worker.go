package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/tafelzaak/identity/internal/infrastructure/mail"
)

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the mail delivery worker",
		Long: `Start the worker that drains the mail queue and relays each message
to the configured SMTP server. Failed deliveries are retried by the queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func runWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := setup(ctx, "mail-worker")
	if err != nil {
		return err
	}

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Addr:     cfg.Mail.SMTPAddr,
		From:     cfg.Mail.SMTPFrom,
		Username: cfg.Mail.SMTPUsername,
		Password: cfg.Mail.SMTPPassword,
	}, log)

	worker := mail.NewWorker(mail.WorkerConfig{
		Redis: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Queue:       cfg.Mail.Queue,
		Concurrency: cfg.Mail.Concurrency,
		Sender:      sender,
		Logger:      log,
	})

	log.Info().Str("queue", cfg.Mail.Queue).Str("smtp", cfg.Mail.SMTPAddr).Msg("mail worker starting")
	if err := worker.Run(ctx); err != nil {
		log.Error().Err(err).Msg("mail worker stopped with error")
		return err
	}
	log.Info().Msg("mail worker stopped")
	return nil
}
