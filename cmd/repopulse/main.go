package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/repopulse/internal/adapter/driven/github"
	"github.com/ericfisherdev/repopulse/internal/adapter/driven/notify"
	sqliteadapter "github.com/ericfisherdev/repopulse/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/repopulse/internal/adapter/driving/http"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"dispatch_interval", cfg.DispatchInterval,
		"stale_label", cfg.StaleLabel,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	settingsStore := sqliteadapter.NewAlertSettingsRepo(db)
	deliveryStore := sqliteadapter.NewDeliveryRepo(db)

	ghClient := githubadapter.NewClient(cfg.GitHubToken)
	if cfg.HasGitHubToken() {
		slog.Info("github client created")
	} else {
		slog.Warn("no github token configured, running with unauthenticated rate limits")
	}

	registry := notify.NewRegistry(notify.Endpoints{
		WebhookURL:        cfg.WebhookURL,
		SlackWebhookURL:   cfg.SlackWebhookURL,
		DiscordWebhookURL: cfg.DiscordWebhookURL,
	}, nil)
	if !registry.Configured() {
		slog.Warn("no delivery target configured, dispatches will fail until one is set")
	}

	// 6. Create the alert service and start the scheduler.
	alertSvc := application.NewAlertService(ghClient, settingsStore, deliveryStore, registry, cfg.StaleLabel)
	scheduler := application.NewScheduler(alertSvc, cfg.DispatchInterval)
	go scheduler.Start(ctx)

	// 7. Register API routes and the metrics endpoint. /metrics stays outside
	// the request-logging middleware.
	apiHandler := httphandler.NewHandler(settingsStore, alertSvc, scheduler, slog.Default())
	mux := http.NewServeMux()
	mux.Handle("/", httphandler.NewServeMux(apiHandler, slog.Default()))
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("repopulse started",
		"listen_addr", cfg.ListenAddr,
		"dispatch_interval", cfg.DispatchInterval,
	)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
