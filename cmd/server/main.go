package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artfolio/artfolio/internal/auth"
	"github.com/artfolio/artfolio/internal/config"
	"github.com/artfolio/artfolio/internal/database"
	"github.com/artfolio/artfolio/internal/logger"
	"github.com/artfolio/artfolio/internal/mailer"
	"github.com/artfolio/artfolio/internal/notifications"
	"github.com/artfolio/artfolio/internal/passwordreset"
	"github.com/artfolio/artfolio/internal/routes"
	"github.com/artfolio/artfolio/internal/storage"
	"github.com/artfolio/artfolio/internal/uploads"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Env)
	logger.Info("configuration loaded",
		"env", cfg.Env,
		"storage_backend", cfg.StorageBackend,
		"max_upload_mb", float64(cfg.MaxUploadSize)/(1024*1024),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	backend, err := storage.NewBackendFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	sessionManager, err := auth.NewSessionManager(db, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	// Mail goes through AMQP when configured; otherwise delivery is
	// logged, which keeps development setups broker-free.
	var mail mailer.Mailer
	if cfg.AMQPURL != "" {
		amqpMailer, err := mailer.NewAMQPMailer(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to connect to AMQP broker: %v", err)
		}
		defer amqpMailer.Close()
		mail = amqpMailer
	} else {
		mail = mailer.NewLogMailer()
	}

	// Upload snapshots persist in Redis when configured so in-flight
	// sessions survive a restart.
	var store uploads.SnapshotStore
	if cfg.RedisAddr != "" {
		redisStore, err := uploads.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		store = uploads.NewMemoryStore()
	}

	feed := uploads.NewFeed()
	tracker := uploads.NewTracker(store, feed, uploads.Options{
		RemoveDelay:    cfg.UploadRemoveDelay,
		SnapshotMaxAge: cfg.UploadSnapshotMaxAge,
	})
	tracker.RestoreSessions(ctx)
	go tracker.Run()
	defer tracker.Close()

	notifService := notifications.NewService(db)
	resetService := passwordreset.NewService(db, mail, notifService, cfg.PublicBaseURL, cfg.BcryptCost)

	// Hourly sweep of read notifications past the retention window
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := notifService.CleanupOld(cfg.NotificationRetentionDays); err != nil {
					logger.Warn("notification cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("notification cleanup", "removed", n)
				}
			}
		}
	}()

	r := chi.NewRouter()
	versionInfo := fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	routes.Setup(r, routes.Deps{
		DB:             db,
		Cfg:            cfg,
		Backend:        backend,
		SessionManager: sessionManager,
		Notifications:  notifService,
		PasswordReset:  resetService,
		Tracker:        tracker,
		Feed:           feed,
		Version:        versionInfo,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("starting artfolio server",
		"address", addr,
		"environment", cfg.Env,
		"version", versionInfo,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
	logger.Info("server stopped")
}
