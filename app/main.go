package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/lysyi3m/cine-comb/app/api"
	"github.com/lysyi3m/cine-comb/app/cache"
	"github.com/lysyi3m/cine-comb/app/cfg"
	"github.com/lysyi3m/cine-comb/app/database"
	"github.com/lysyi3m/cine-comb/app/listing"
	"github.com/lysyi3m/cine-comb/app/movie"
	"github.com/lysyi3m/cine-comb/app/notify"
	"github.com/lysyi3m/cine-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if appCfg == nil {
		return
	}

	setupLogging(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Cine Comb failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting Cine Comb", "version", appCfg.Version, "serve", appCfg.Serve, "timezone", appCfg.Timezone)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Debug("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	source, err := listing.LoadSource(appCfg.SourcesFile)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	if appCfg.FetchTimeout > 0 {
		source.Timeout = appCfg.FetchTimeout
	}

	var pageCache listing.PageCache
	var cacheHealth api.HealthChecker
	if appCfg.RedisAddr != "" {
		redisCache, err := cache.NewCache(ctx, appCfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		pageCache, cacheHealth = redisCache, redisCache
	}

	snapshotRepo := database.NewSnapshotRepository(db)
	reportRepo := database.NewReportRepository(db)

	pipeline := tasks.NewPipeline(
		listing.NewFetcher(source, appCfg.UserAgent, pageCache, time.Duration(appCfg.PageCacheTTL)*time.Second),
		listing.NewParser(),
		snapshotRepo,
		reportRepo,
		movie.NewRenderer(),
		buildNotifier(appCfg),
		tasks.PipelineConfig{
			ReferenceDays: appCfg.ReferenceDays,
			Location:      appCfg.Location,
		},
	)

	if !appCfg.Serve {
		result, err := pipeline.Run(ctx)
		if err != nil {
			return err
		}
		slog.Info("Run completed",
			"snapshot", result.SnapshotDate,
			"reference", result.ReferenceDate,
			"added", result.Summary.Added,
			"removed", result.Summary.Removed,
			"retained", result.Summary.Retained)
		return nil
	}

	return serve(ctx, appCfg, pipeline, snapshotRepo, reportRepo, cacheHealth)
}

func buildNotifier(appCfg *cfg.Cfg) notify.Notifier {
	var notifiers notify.Multi

	if appCfg.ReportFile != "" {
		notifiers = append(notifiers, notify.NewFile(appCfg.ReportFile))
	}
	if appCfg.GistID != "" {
		notifiers = append(notifiers, notify.NewGist(appCfg.GistID, appCfg.GitHubToken, appCfg.GistFile))
	}
	if appCfg.NtfyTopic != "" {
		notifiers = append(notifiers, notify.NewNtfy(appCfg.NtfyURL, appCfg.NtfyTopic))
	}
	if appCfg.SMTPServer != "" {
		notifiers = append(notifiers, notify.NewEmail(notify.SMTPConfig{
			Server:   appCfg.SMTPServer,
			Port:     appCfg.SMTPPort,
			Username: appCfg.SMTPUser,
			Password: appCfg.SMTPPassword,
			From:     appCfg.SMTPFrom,
			To:       appCfg.SMTPTo,
		}))
	}
	if appCfg.AMQPURL != "" {
		notifiers = append(notifiers, notify.NewAMQP(appCfg.AMQPURL, appCfg.AMQPQueue))
	}

	names := make([]string, 0, len(notifiers))
	for _, n := range notifiers {
		names = append(names, n.Name())
	}
	slog.Debug("Notifiers configured", "notifiers", names)

	return notifiers
}

func serve(ctx context.Context, appCfg *cfg.Cfg, pipeline *tasks.Pipeline, snapshots *database.SnapshotRepository,
	reports *database.ReportRepository, cacheHealth api.HealthChecker) error {
	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", time.Duration(appCfg.SchedulerInterval)*time.Second)
	scheduler := tasks.NewScheduler(pipeline, time.Duration(appCfg.SchedulerInterval)*time.Second, appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	feed := api.NewReportFeed("Películas Cineco", appCfg.BaseUrl, appCfg.Version)
	handler := api.NewHandler(snapshots, reports, scheduler, cacheHealth, feed)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "base_url", appCfg.BaseUrl)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}
