package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jeevancare/appointment-platform/internal/api/router"
	"github.com/jeevancare/appointment-platform/internal/appointments"
	appconfig "github.com/jeevancare/appointment-platform/internal/config"
	"github.com/jeevancare/appointment-platform/internal/doctors"
	"github.com/jeevancare/appointment-platform/internal/events"
	"github.com/jeevancare/appointment-platform/internal/observability/metrics"
	"github.com/jeevancare/appointment-platform/internal/payments"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting appointment-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	// Redis is optional; without it the doctor directory reads straight
	// from Postgres.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, doctor cache disabled", "error", err)
			redisClient = nil
		}
	}

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	directory := doctors.NewCachedDirectory(
		doctors.NewRepository(pool), redisClient, cfg.DoctorCacheTTL, logger,
	)

	outbox := events.NewOutboxStore(pool)

	grid := appointments.NewGrid(cfg.SlotGrid)
	ledger := appointments.NewLedger(pool, cfg.SlotCapacity).WithOutbox(outbox)
	apptSvc := appointments.NewService(ledger, directory, grid, bookingMetrics, logger)

	gateway := payments.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger)
	payRepo := payments.NewRepository(pool).WithOutbox(outbox)
	orderSvc := payments.NewOrderService(payRepo, gateway, bookingMetrics, logger)
	verifier := payments.NewVerifier(payRepo, cfg.RazorpayKeySecret, bookingMetrics, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(apptSvc, logger),
		PaymentsHandler:     payments.NewHandler(orderSvc, verifier, cfg.RazorpayKeyID, logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		PatientJWTSecret:    cfg.PatientJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		WriteRateLimit:      5,
		WriteRateBurst:      10,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
