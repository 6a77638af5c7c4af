package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/crm-campaign-service/internal/config"
	"github.com/unclebandit/crm-campaign-service/internal/db"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/queue"
	"github.com/unclebandit/crm-campaign-service/internal/repository"
	"github.com/unclebandit/crm-campaign-service/internal/service"
)

// The worker drains a shared receipt queue for deployments where the API
// process does not run the reconciler itself.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Reconciler.QueueDriver == "memory" {
		return fmt.Errorf("the memory queue driver is process-local; use redis or amqp for a standalone worker")
	}

	log, err := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer conn.Close()

	var rdb redis.Cmdable
	if cfg.Reconciler.QueueDriver == "redis" {
		client, err := db.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client
	}

	receipts, err := queue.New(cfg, rdb)
	if err != nil {
		return err
	}
	defer receipts.Close()

	tracker := service.NewDeliveryTracker(
		&repository.DeliveryLogRepository{DB: conn},
		&repository.CampaignRepository{DB: conn},
		log,
	)
	reconciler := service.NewReconciler(receipts, tracker, cfg.Reconciler.Interval, cfg.Reconciler.MaxDeferrals, log)

	log.Info("worker running, waiting for receipts", map[string]interface{}{
		"queue_driver": cfg.Reconciler.QueueDriver,
		"interval":     cfg.Reconciler.Interval.String(),
	})
	reconciler.Start(ctx)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return reconciler.Stop(shutdownCtx)
}
