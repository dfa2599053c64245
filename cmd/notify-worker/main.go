package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/jeevancare/appointment-platform/cmd/mainconfig"
	appconfig "github.com/jeevancare/appointment-platform/internal/config"
	"github.com/jeevancare/appointment-platform/internal/events"
	"github.com/jeevancare/appointment-platform/internal/notify"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

// The worker binary runs two loops: the outbox deliverer, which moves
// pending events onto the queue, and the queue consumer, which turns them
// into emails. Running both here keeps the API binary free of queue work.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting notify worker", "env", cfg.Env)

	if cfg.NotifyQueueURL == "" {
		logger.Error("NOTIFY_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	deliverer := events.NewDeliverer(
		events.NewOutboxStore(pool),
		events.NewSQSPublisher(sqsClient, cfg.NotifyQueueURL),
		logger,
	).WithBatchSize(int32(cfg.OutboxBatchSize)).WithInterval(cfg.OutboxPollInterval)

	var sender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}

	svc := notify.NewService(sender, notify.NewPatientContacts(pool), logger).
		WithBaseURL(cfg.PublicBaseURL)
	worker := notify.NewWorker(sqsClient, cfg.NotifyQueueURL, svc, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		deliverer.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down notify worker...")
	wg.Wait()
	logger.Info("notify worker stopped")
}
