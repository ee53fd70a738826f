package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"watchkeeper/internal/api"
	"watchkeeper/internal/config"
	"watchkeeper/internal/gitsource"
	"watchkeeper/internal/logging"
	"watchkeeper/internal/models"
	"watchkeeper/internal/notify"
	"watchkeeper/internal/service"
	"watchkeeper/internal/sysinfo"
	"watchkeeper/web"
)

func main() {
	configPath := flag.String("config", "watchkeeper.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional env file loaded before the configuration")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "watchkeeper: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sink, err := logging.NewSink(cfg.Logging.File, cfg.Logging.MaxSizeMB)
	if err != nil {
		return err
	}
	defer sink.Close()

	logger := logging.New(cfg.Logging.Level, os.Stdout, sink)

	hostname, _ := os.Hostname()
	channels := notify.FromConfig(cfg.Notifications.Channels, &http.Client{})
	dispatcher := notify.NewDispatcher(channels, cfg.Notifications.ThrottleWindow(), cfg.Notifications.TimeoutDuration(), logger)

	var workerOut io.Writer = sink
	if cfg.Worker.EchoOutput {
		workerOut = io.MultiWriter(os.Stdout, sink)
	}
	supervisor := service.NewSupervisor(cfg.Worker, service.NewExecLauncher(cfg.Worker), dispatcher, workerOut, logger)

	repo := gitsource.New(cfg.Update)
	updater := service.NewUpdater(repo, supervisor, dispatcher, cfg.Update.Interval(), logger)

	sampler := sysinfo.NewSampler(cfg.Resources.DiskPath)
	monitor := service.NewResourceMonitor(sampler, dispatcher, cfg.Resources.CheckIntervalDuration(),
		cfg.Resources.MemoryWarnPercent, cfg.Resources.DiskWarnPercent, logger)

	dashboard := service.NewDashboard(service.DashboardConfig{
		Worker:           supervisor,
		Resources:        monitor,
		Updates:          updater,
		Version:          repo,
		Logs:             sink,
		Channels:         dispatcher.Channels(),
		MaxLines:         cfg.Logging.MaxLines,
		ScheduledUpdates: *cfg.Update.Enabled,
		Logger:           logger,
	})

	router, err := api.NewRouter(api.Deps{
		Worker:    supervisor,
		Updates:   updater,
		Status:    dashboard,
		Hostname:  hostname,
		Username:  cfg.Server.Username,
		Password:  cfg.Server.Password,
		Logger:    logger,
		Templates: web.Templates(),
		Static:    web.Static(),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting watchkeeper",
		slog.String("address", cfg.Server.Address),
		slog.String("command", cfg.Worker.Command),
		slog.Int("channels", len(channels)),
		slog.Bool("basic_auth", cfg.Server.AuthEnabled()))

	if err := supervisor.Start(models.ReasonInitial, ""); err != nil {
		logger.Error("initial start failed", slog.String("err", err.Error()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var loops sync.WaitGroup
	goLoop := func(name string, fn func(context.Context)) {
		loops.Add(1)
		go func() {
			defer loops.Done()
			fn(ctx)
			logger.Debug("loop stopped", slog.String("loop", name))
		}()
	}

	if *cfg.Update.Enabled {
		goLoop("updater", updater.Run)
	}
	goLoop("resources", monitor.Run)
	if len(cfg.Update.WatchPaths) > 0 {
		watcher := service.NewSourceWatcher(cfg.Update.WatchPaths, supervisor, logger)
		goLoop("watcher", func(ctx context.Context) {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("source watcher stopped", slog.String("err", err.Error()))
			}
		})
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case runErr = <-serveErr:
		logger.Error("http server failed", slog.String("err", runErr.Error()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", slog.String("err", err.Error()))
	}

	cancel()
	loops.Wait()
	updater.Wait()

	if err := supervisor.Close(); err != nil {
		logger.Error("stopping worker", slog.String("err", err.Error()))
	}

	logger.Info("watchkeeper exited")
	return runErr
}
