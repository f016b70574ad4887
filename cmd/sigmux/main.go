package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goclaw/sigmux/config"
	"github.com/goclaw/sigmux/pkg/api"
	"github.com/goclaw/sigmux/pkg/api/events"
	"github.com/goclaw/sigmux/pkg/api/handlers"
	"github.com/goclaw/sigmux/pkg/logger"
	"github.com/goclaw/sigmux/pkg/metrics"
	"github.com/goclaw/sigmux/pkg/signals"
	"github.com/goclaw/sigmux/pkg/telemetry/tracing"
	"github.com/goclaw/sigmux/pkg/version"
)

var (
	flagConfig  = flag.String("config", "", "Configuration file path")
	flagVersion = flag.Bool("version", false, "Print version and exit")
	flagHelp    = flag.Bool("help", false, "Print usage and exit")

	// Per-run overrides layered on top of file and env config.
	flagApp      = flag.String("app-name", "", "Override the application name")
	flagPort     = flag.Int("port", 0, "Override the HTTP API port")
	flagLogLevel = flag.String("log-level", "", "Override the log level")
	flagKinds    = flag.String("watch", "", "Comma separated signal kinds to watch")
	flagDebug    = flag.Bool("debug", false, "Force debug logging")
)

func main() {
	flag.Parse()

	switch {
	case *flagHelp:
		printHelp()
		return
	case *flagVersion:
		printVersion()
		return
	}

	cfg, err := config.Load(*flagConfig, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration invalid:\n%s\n", err)
		os.Exit(1)
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if cfg.App.Debug || *flagDebug {
		level = logger.DebugLevel
	}
	log := logger.New(&logger.Config{Level: level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	logger.SetGlobal(log)

	log.Info("Starting sigmux",
		"version", version.Version,
		"commit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Effective configuration", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := stopTracing(flushCtx); err != nil {
			log.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	// The signal dispatcher reports into the same registry the API
	// exposes, so one manager serves both surfaces.
	metricsMgr := metrics.NewManager(metrics.Config{
		Enabled:             cfg.Metrics.Enabled,
		Port:                cfg.Metrics.Port,
		Path:                cfg.Metrics.Path,
		HTTPDurationBuckets: metrics.DefaultConfig().HTTPDurationBuckets,
	})
	signals.SetMetricsRecorder(metricsMgr)

	if metricsMgr.Enabled() {
		go func() {
			log.Info("Serving metrics", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			err := metricsMgr.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics endpoint failed", "error", err)
			}
		}()
	}

	// Subscribe to shutdown signals through the dispatcher itself.
	interrupt, err := signals.Interrupt()
	if err != nil {
		log.Error("Failed to subscribe to interrupt", "error", err)
		os.Exit(1)
	}
	defer interrupt.Close()

	var terminateCh <-chan struct{}
	if terminate, err := signals.Subscribe(signals.KindTerminate); err != nil {
		log.Warn("Terminate not watchable on this platform", "error", err)
	} else {
		terminateCh = terminate.Ch()
		defer terminate.Close()
	}

	// Wire the occurrence pipeline: watchers publish into the
	// broadcaster, the broadcaster feeds the websocket stream.
	broadcaster := events.NewBroadcaster()
	broadcaster.SetMetrics(metricsMgr)
	defer broadcaster.Close()

	watchMgr := newWatchManager(log, broadcaster)
	if err := watchMgr.Apply(ctx, cfg.Watch.Kinds, cfg.Watch.LogEvery); err != nil {
		log.Error("Failed to watch configured kinds", "error", err)
		os.Exit(1)
	}
	defer watchMgr.Stop()

	wsHandler := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.WebSocket.AllowedOrigins,
		MaxConnections: cfg.Server.WebSocket.MaxConnections,
		PingInterval:   cfg.Server.WebSocket.PingInterval,
		PongTimeout:    cfg.Server.WebSocket.PongTimeout,
	}, metricsMgr)
	defer wsHandler.Close()

	stream := broadcaster.Subscribe(256)
	go func() {
		for event := range stream {
			_ = wsHandler.Broadcast(handlers.EventMessage(event))
		}
	}()

	handlerSet := &api.Handlers{
		Health: handlers.NewHealthHandler(handlers.StatusFuncs{
			HealthyFunc: signals.Healthy,
			StatsFunc:   signals.Stats,
		}, cfg.App.Name),
		Events:         wsHandler,
		Metrics:        metricsMgr,
		MetricsHandler: metricsMgr.Handler(),
	}

	var apiServer *api.HTTPServer
	srvFailed := make(chan error, 1)
	if cfg.Server.Enabled {
		apiServer = api.NewHTTPServer(cfg, log, handlerSet)
		go func() {
			if err := apiServer.Start(); err != nil {
				srvFailed <- err
			}
		}()
	} else {
		log.Info("HTTP API server disabled")
	}

	// Watch the config file for hot-reloadable changes.
	stopConfigWatch := startConfigWatch(ctx, cfg, log, watchMgr, broadcaster)
	defer stopConfigWatch()

	log.Info("sigmux is running",
		"kinds", cfg.Watch.Kinds,
		"metrics_port", cfg.Metrics.Port,
		"http_port", cfg.Server.Port,
	)

	select {
	case <-interrupt.Ch():
		log.Info("Received shutdown signal", "signal", "interrupt")
	case <-terminateCh:
		log.Info("Received shutdown signal", "signal", "terminate")
	case err := <-srvFailed:
		log.Error("HTTP server failed", "error", err)
	case <-ctx.Done():
		log.Info("Root context cancelled")
	}

	drainTimeout := cfg.Server.HTTP.ShutdownTimeout
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer stopCancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(stopCtx); err != nil {
			log.Error("Error shutting down HTTP server", "error", err)
		}
	}

	wsHandler.Close()
	watchMgr.Stop()
	broadcaster.Close()

	log.Info("sigmux stopped gracefully")
}

// startConfigWatch arranges hot reload of the log level and the
// watched kind set. It returns a stop function; when the config path
// is empty or the watcher cannot start, the stop function is a no-op.
func startConfigWatch(ctx context.Context, cfg *config.Config, log logger.Logger, watchMgr *watchManager, broadcaster *events.Broadcaster) func() {
	if *flagConfig == "" {
		return func() {}
	}

	watcher, err := config.NewWatcher(*flagConfig, config.NewLoader())
	if err != nil {
		log.Warn("Config hot reload unavailable", "error", err)
		return func() {}
	}

	var mu sync.Mutex
	hot := cfg.Reloadable()

	watcher.OnChange(func(next *config.Config) {
		mu.Lock()
		defer mu.Unlock()

		nextHot := next.Reloadable()
		if nextHot.Equal(hot) {
			return
		}

		if nextHot.LogLevel != hot.LogLevel {
			log.SetLevel(logger.ParseLevel(nextHot.LogLevel))
			log.Info("Log level updated", "level", nextHot.LogLevel)
		}

		if !slices.Equal(nextHot.WatchKinds, hot.WatchKinds) || nextHot.LogEvery != hot.LogEvery {
			if err := watchMgr.Apply(ctx, nextHot.WatchKinds, nextHot.LogEvery); err != nil {
				log.Error("Failed to apply new watch config", "error", err)
				if err := watchMgr.Apply(ctx, hot.WatchKinds, hot.LogEvery); err != nil {
					log.Error("Failed to restore previous watchers", "error", err)
				}
				return
			}
		}

		hot = nextHot
		broadcaster.BroadcastConfigReloaded(nextHot.WatchKinds, nextHot.LogLevel)
		log.Info("Configuration reloaded", "kinds", nextHot.WatchKinds, "log_level", nextHot.LogLevel)
	})

	go func() {
		if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Config watcher stopped", "error", err)
		}
	}()

	return func() {
		_ = watcher.Stop()
	}
}

func buildOverrides() map[string]interface{} {
	set := map[string]interface{}{}
	if *flagApp != "" {
		set["app.name"] = *flagApp
	}
	if *flagPort != 0 {
		set["server.port"] = *flagPort
	}
	if *flagLogLevel != "" {
		set["log.level"] = *flagLogLevel
	}
	if *flagKinds != "" {
		set["watch.kinds"] = strings.Split(*flagKinds, ",")
	}
	if *flagDebug {
		set["app.debug"] = true
	}
	return set
}

func printVersion() {
	fmt.Printf("sigmux signal multiplexing daemon\n")
	fmt.Printf("Version:    %s\nBuild Time: %s\nGit Commit: %s\nGo Version: %s\n",
		version.Version, version.BuildTime, version.GitCommit, version.GoVersion)
}

func printHelp() {
	fmt.Printf("sigmux - OS signal to channel bridge with an HTTP observation surface\n\n")
	fmt.Printf("Usage: sigmux [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  sigmux                                    # Run with default config\n")
	fmt.Printf("  sigmux -config config.yaml                # Use specific config file\n")
	fmt.Printf("  sigmux -watch interrupt,hangup            # Override watched kinds\n")
	fmt.Printf("  sigmux -port 9090 -log-level debug        # Override specific options\n")
	fmt.Printf("  sigmux -version                           # Print version info\n")
}
