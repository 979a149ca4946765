// Package main implements the avtdl entry point: it loads the actor and
// chain configuration, builds the routing bus, and runs the scheduler and
// the HTTP surface until shutdown. SIGHUP reloads the configuration in
// place.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/15532th/avtdl/bus"
	"github.com/15532th/avtdl/config"
	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/history"
	"github.com/15532th/avtdl/metric"
	"github.com/15532th/avtdl/plugins"
	"github.com/15532th/avtdl/scheduler"
	"github.com/15532th/avtdl/server"
	"github.com/15532th/avtdl/tasks"
)

const (
	Version = "0.1.0"
	appName = "avtdl"

	shutdownTimeout = 30 * time.Second
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := cliCfg.LogLevel
	if logLevel == "" {
		logLevel = cfg.Settings.LogLevel
	}
	logger := setupLogger(logLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("starting", "version", Version, "config_path", cliCfg.ConfigPath)

	// Shared infrastructure survives reloads; only the entity set and the
	// graph are generational.
	metrics := metric.NewRegistry()
	taskRegistry := tasks.NewRegistry()
	historyStore := history.NewStore(cfg.Settings.HistorySize)

	factories := entity.NewRegistry()
	if err := plugins.Register(factories); err != nil {
		return fmt.Errorf("register plugins: %w", err)
	}

	deps := entity.Dependencies{
		Logger:  logger,
		Metrics: metrics,
		Tasks:   taskRegistry,
	}

	rt, err := cfg.Build(factories, deps)
	if err != nil {
		return fmt.Errorf("build configuration: %w", err)
	}
	if cliCfg.Validate {
		logger.Info("configuration is valid",
			"entities", len(rt.Registry.Entities()),
			"chains", len(rt.Graph.Chains))
		return nil
	}

	b := bus.New(rt.Index, rt.Registry,
		bus.WithLogger(logger.With("component", "bus")),
		bus.WithMetrics(metrics),
		bus.WithHistory(historyStore),
		bus.WithTasks(taskRegistry),
	)

	app := &application{
		configPath: cliCfg.ConfigPath,
		logger:     logger,
		bus:        b,
		factories:  factories,
		deps:       deps,
	}
	app.startScheduler(rt)

	srv := server.New(b,
		server.WithLogger(logger.With("component", "server")),
		server.WithReload(app.reload),
	)
	if rt.Settings.Port > 0 {
		if err := srv.Start(rt.Settings.Host, rt.Settings.Port); err != nil {
			app.stopScheduler()
			return fmt.Errorf("start server: %w", err)
		}
	}

	signalCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	logger.Info("started",
		"entities", len(rt.Registry.Entities()),
		"chains", len(rt.Graph.Chains))

	for {
		select {
		case <-hup:
			logger.Info("received SIGHUP, reloading configuration")
			if _, reloadErr := app.reload(signalCtx, nil); reloadErr != nil {
				logger.Error("reload failed, keeping current configuration", "error", reloadErr)
			}
		case <-signalCtx.Done():
			logger.Info("received shutdown signal")
			app.stopScheduler()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		}
	}
}

// application ties the pieces a reload has to coordinate: rebuild from the
// config file, swap the bus generation, restart the scheduler against the
// new monitor set.
type application struct {
	configPath string
	logger     *slog.Logger
	bus        *bus.Bus
	factories  *entity.Registry
	deps       entity.Dependencies

	mu    sync.Mutex
	sched *scheduler.Scheduler
}

// reload rebuilds the configuration and swaps it in. A failed build leaves
// the running generation untouched. A non-empty document overrides the
// config file for this reload (the /api/reload body).
func (a *application) reload(_ context.Context, configYAML []byte) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var cfg *config.File
	var err error
	if len(configYAML) > 0 {
		cfg, err = config.Parse(configYAML)
	} else {
		cfg, err = config.Load(a.configPath)
	}
	if err != nil {
		a.bus.Metrics().Metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("load config: %w", err)
	}
	rt, err := cfg.Build(a.factories, a.deps)
	if err != nil {
		a.bus.Metrics().Metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("build configuration: %w", err)
	}

	if a.sched != nil {
		a.sched.Stop()
	}
	generation := a.bus.Reload(rt.Index, rt.Registry)
	a.startSchedulerLocked(rt)
	return generation, nil
}

func (a *application) startScheduler(rt *config.Runtime) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startSchedulerLocked(rt)
}

// startSchedulerLocked runs the poll loops on a background context; their
// lifetime is managed through Stop, not through a caller's context.
func (a *application) startSchedulerLocked(rt *config.Runtime) {
	a.sched = scheduler.New(a.bus,
		scheduler.WithLogger(a.logger.With("component", "scheduler")))
	if err := a.sched.Start(context.Background(), monitorSpecs(rt)); err != nil {
		a.logger.Error("scheduler start failed", "error", err)
	}
}

func (a *application) stopScheduler() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sched != nil {
		a.sched.Stop()
	}
}

// monitorSpecs resolves the per-monitor poll intervals into scheduler specs.
func monitorSpecs(rt *config.Runtime) []scheduler.Spec {
	specs := make([]scheduler.Spec, 0, len(rt.Intervals))
	for ref, interval := range rt.Intervals {
		actor, name, ok := strings.Cut(ref, "/")
		if !ok {
			continue
		}
		ent, ok := rt.Registry.Lookup(actor, name)
		if !ok {
			continue
		}
		specs = append(specs, scheduler.Spec{Entity: ent, Interval: interval})
	}
	return specs
}
