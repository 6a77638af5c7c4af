// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/crm-campaign-service/internal/audience"
	"github.com/unclebandit/crm-campaign-service/internal/config"
	"github.com/unclebandit/crm-campaign-service/internal/controller"
	"github.com/unclebandit/crm-campaign-service/internal/db"
	"github.com/unclebandit/crm-campaign-service/internal/handler"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/middleware"
	"github.com/unclebandit/crm-campaign-service/internal/queue"
	"github.com/unclebandit/crm-campaign-service/internal/repository"
	"github.com/unclebandit/crm-campaign-service/internal/service"
	"github.com/unclebandit/crm-campaign-service/internal/vendor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
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

	if cfg.Server.MigrateOnStart {
		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}
		log.Info("schema migrated", nil)
	}

	var rdb *redis.Client
	if cfg.Database.Redis.Address != "" {
		rdb, err = db.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	var cmdable redis.Cmdable
	if rdb != nil {
		cmdable = rdb
	}
	receipts, err := queue.New(cfg, cmdable)
	if err != nil {
		return err
	}
	defer receipts.Close()

	customerRepo := &repository.CustomerRepository{DB: conn}
	segmentRepo := &repository.SegmentRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	logRepo := &repository.DeliveryLogRepository{DB: conn}

	var previewCache audience.PreviewCache
	if rdb != nil {
		previewCache = audience.NewRedisPreviewCache(rdb, cfg.Audience.PreviewCacheTTL)
	}
	resolver := audience.NewResolver(customerRepo, previewCache, cfg.Audience.PreviewLimit, log)

	gateway, err := vendor.FromConfig(ctx, cfg.Vendor)
	if err != nil {
		return err
	}

	tracker := service.NewDeliveryTracker(logRepo, campaignRepo, log)
	dispatcher := service.NewDispatcher(gateway, tracker, cfg.Dispatch.Workers, cfg.Vendor.Timeout, log)
	reconciler := service.NewReconciler(receipts, tracker, cfg.Reconciler.Interval, cfg.Reconciler.MaxDeferrals, log)

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		SegmentRepo:  segmentRepo,
		CustomerRepo: customerRepo,
		LogRepo:      logRepo,
		Audience:     resolver,
		Dispatcher:   dispatcher,
		Logger:       log,
	}
	segmentService := &service.SegmentService{
		SegmentRepo:  segmentRepo,
		CampaignRepo: campaignRepo,
		Audience:     resolver,
		Logger:       log,
	}

	router := handler.NewRouter(handler.RouterDeps{
		Logger:           log,
		Auth:             middleware.NewTenantAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Campaigns:        controller.NewCampaignController(campaignService, log),
		Segments:         controller.NewSegmentController(segmentService, log),
		Receipts:         handler.NewReceiptHandler(reconciler, log),
		WebhookSecret:    cfg.Vendor.WebhookSecret,
		EnableSimulation: cfg.App.IsDevelopment(),
		Ready:            conn.PingContext,
	})

	if cfg.Reconciler.Embedded {
		reconciler.Start(ctx)
	} else {
		log.Info("reconciler not embedded, receipts are drained by the worker", map[string]interface{}{
			"queue_driver": cfg.Reconciler.QueueDriver,
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", map[string]interface{}{
			"addr": srv.Addr, "environment": cfg.App.Environment, "vendor": cfg.Vendor.Provider,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", map[string]interface{}{"error": err})
	}
	if err := reconciler.Stop(shutdownCtx); err != nil {
		log.Error("reconciler stop failed", map[string]interface{}{"error": err})
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn("dispatcher drain incomplete, some logs stay pending", map[string]interface{}{"error": err})
	}
	return nil
}
