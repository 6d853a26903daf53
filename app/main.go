package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/podcomb/podcomb/app/api"
	"github.com/podcomb/podcomb/app/cfg"
	"github.com/podcomb/podcomb/app/database"
	"github.com/podcomb/podcomb/app/feed"
	"github.com/podcomb/podcomb/app/fetcher"
	"github.com/podcomb/podcomb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// help was requested
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting podcomb", "version", appCfg.Version, "watch", appCfg.Watch)

	dsn := database.BuildDSN(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)

	version, dirty, err := database.RunMigrations(dsn)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied", "version", version, "dirty", dirty)

	ctx := context.Background()

	db, err := database.NewConnection(ctx, dsn)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Connected to database", "host", appCfg.DBHost, "name", appCfg.DBName)

	podcastRepo := database.NewPodcastRepository(db)
	episodeRepo := database.NewEpisodeRepository(db)
	categoryRepo := database.NewCategoryRepository(db)

	if err := categoryRepo.Seed(ctx); err != nil {
		slog.Error("Failed to seed categories", "error", err)
		os.Exit(1)
	}

	fetchClient := fetcher.New(&http.Client{}, podcastRepo, appCfg.UserAgent)
	parser := feed.NewParser()

	scheduler := tasks.NewScheduler(db, podcastRepo, episodeRepo, categoryRepo,
		fetchClient, parser)
	scheduler.Start()
	defer scheduler.Stop()

	if !appCfg.Watch {
		if _, err := scheduler.RunPass(ctx); err != nil {
			slog.Error("Pass failed", "error", err)
			os.Exit(1)
		}
		return
	}

	apiHandler := api.NewHandler(podcastRepo, scheduler)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(apiHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
