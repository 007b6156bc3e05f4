package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"bastion/internal/audit"
	kafkasink "bastion/internal/audit/sink/kafka"
	pgsink "bastion/internal/audit/sink/postgres"
	"bastion/internal/loginguard"
	"bastion/internal/loginguard/store"
	"bastion/internal/platform/config"
	"bastion/internal/platform/httpserver"
	"bastion/internal/platform/logger"
	"bastion/internal/platform/metrics"
	"bastion/internal/platform/postgres"
	"bastion/internal/platform/redis"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// The resilience components live in internal packages and are consumed by
// request-handling code elsewhere.
func main() {
	cfg := config.FromEnv()

	level := slog.LevelInfo
	if cfg.LogDebug {
		level = slog.LevelDebug
	}
	log := logger.New(level)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()
	m := metrics.New()

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	// Kafka sink when brokers are configured, Postgres otherwise.
	var sink audit.Sink = pgsink.New(db)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.AllowAutoTopicCreation(),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()

		sink, err = kafkasink.New(ctx, kafkaClient, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
	}

	writer, err := audit.New(sink,
		audit.WithLogger(log),
		audit.WithMetrics(m),
		audit.WithConfig(audit.Config{
			FlushInterval: cfg.Audit.FlushInterval,
			BatchSize:     cfg.Audit.BatchSize,
			MaxQueueDepth: cfg.Audit.MaxQueueDepth,
		}),
	)
	if err != nil {
		return err
	}
	writer.Start()

	guard, err := loginguard.New(store.NewRedis(redisClient.Client),
		loginguard.WithLogger(log),
		loginguard.WithMetrics(m),
		loginguard.WithAuditRecorder(writer),
		loginguard.WithConfig(loginguard.Config{
			MaxFailedAttempts: cfg.Lockout.MaxFailedAttempts,
			LockDuration:      cfg.Lockout.LockDuration,
			FailedCountTTL:    cfg.Lockout.FailedCountTTL,
		}),
	)
	if err != nil {
		return err
	}

	router := httpserver.NewOpsRouter(httpserver.OpsDeps{
		Health: map[string]httpserver.HealthChecker{
			"redis": redisClient,
			"postgres": httpserver.HealthCheckerFunc(func(ctx context.Context) error {
				return db.PingContext(ctx)
			}),
		},
		Audit:   writer,
		Lockout: guard,
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting bastion", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	// Drain buffered audit events; the context bounds how long a failing
	// sink can hold up shutdown.
	if err := writer.Shutdown(shutdownCtx); err != nil {
		log.Error("audit drain incomplete", "error", err, "queue_depth", writer.QueueDepth())
	}
	return nil
}
