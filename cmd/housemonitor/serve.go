package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/DonGar/house-monitor/internal/actions"
	"github.com/DonGar/house-monitor/internal/adapters"
	"github.com/DonGar/house-monitor/internal/auditlog"
	"github.com/DonGar/house-monitor/internal/config"
	"github.com/DonGar/house-monitor/internal/httpapi"
	"github.com/DonGar/house-monitor/internal/logging"
	"github.com/DonGar/house-monitor/internal/rules"
	"github.com/DonGar/house-monitor/internal/scheduling"
	"github.com/DonGar/house-monitor/internal/statustree"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller's event loop and HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), configPath)
	},
}

// processRestarter exits the process on Restart, the way the teacher's
// cmd/server relies on a process supervisor (systemd, docker, k8s) to bring
// it back up.
type processRestarter struct {
	shutdown func()
}

func (r *processRestarter) Restart() { r.shutdown() }

func runServe(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("housemonitor: %w", err)
	}

	logTail := httpapi.NewLogTail(1000)
	logger := logging.NewLogger(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, logTail)

	logger.Info("housemonitor starting", "profile", cfg.Profile, "config", cfg.Sanitize())

	tree := statustree.NewTree(logger)
	defer tree.Stop()

	scheduler := scheduling.NewScheduler(nil)

	manager := actions.NewManager(tree, scheduler)
	manager.Logger = logger.With("component", "actions")
	manager.Pinger = actions.NewICMPPinger()
	manager.WOL = actions.NewUDPWOLSender()
	manager.Mailer = &actions.SMTPMailer{Addr: "localhost:25"}
	manager.DownloadsDir = cfg.Server.DownloadsDir

	if manager.Cache, err = buildFetchCache(cfg); err != nil {
		return fmt.Errorf("housemonitor: fetch cache: %w", err)
	}
	if manager.Audit, err = buildAuditLog(ctx, cfg); err != nil {
		return fmt.Errorf("housemonitor: audit log: %w", err)
	}

	registry := adapters.NewWebRegistry()
	liveAdapters, err := startAdapters(cfg, tree, logger, registry)
	if err != nil {
		return fmt.Errorf("housemonitor: adapters: %w", err)
	}
	defer stopAdapters(liveAdapters)

	location, err := ruleLocation()
	if err != nil {
		return fmt.Errorf("housemonitor: %w", err)
	}

	engine := rules.NewEngine(rules.Deps{
		Tree:      tree,
		Scheduler: scheduler,
		Manager:   manager,
		Logger:    logger.With("component", "rules"),
		Location:  location,
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
	})
	if err := engine.Reload(); err != nil {
		return fmt.Errorf("housemonitor: rules: %w", err)
	}
	defer engine.Stop()

	serverCtx, cancel := context.WithCancel(ctx)
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Tree = tree
	httpCfg.Manager = manager
	httpCfg.WebPaths = registry
	httpCfg.LogTail = logTail
	httpCfg.Logger = logger
	httpCfg.Restart = &processRestarter{shutdown: cancel}

	server := httpapi.NewServer(httpCfg)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutdown requested by signal")
	case <-serverCtx.Done():
		logger.Info("shutdown requested by /restart")
	case err := <-serveErr:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	return nil
}

func buildFetchCache(cfg *config.Config) (actions.FetchCache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		return actions.NewRedisFetchCache(client, 10*time.Minute), nil
	default:
		return actions.NewLRUFetchCache(1024, 10*time.Minute)
	}
}

func buildAuditLog(ctx context.Context, cfg *config.Config) (auditlog.AuditLog, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		return auditlog.OpenSQLiteAuditLog(cfg.Audit.Path)
	case "postgres":
		return auditlog.OpenPostgresAuditLog(ctx, cfg.Audit.Path)
	default:
		return auditlog.NopAuditLog{}, nil
	}
}

// startAdapters builds one adapter per cfg.Adapters entry: a File adapter
// when a filename is given, otherwise a Web adapter sharing registry so the
// HTTP surface can recognize its mount as PUT-able.
func startAdapters(cfg *config.Config, tree *statustree.Tree, logger *slog.Logger, registry *adapters.WebRegistry) ([]adapters.Adapter, error) {
	deps := adapters.Deps{Tree: tree, Logger: logger.With("component", "adapters")}

	live := make([]adapters.Adapter, 0, len(cfg.Adapters))
	for name, a := range cfg.Adapters {
		var adapter adapters.Adapter
		if a.Filename != "" {
			adapter = adapters.NewFileAdapter(deps, a.Mount, a.Filename)
		} else {
			adapter = adapters.NewWebAdapter(deps, a.Mount, registry)
		}

		if err := adapter.Start(); err != nil {
			stopAdapters(live)
			return nil, fmt.Errorf("adapter %q: %w", name, err)
		}
		live = append(live, adapter)
	}
	return live, nil
}

func stopAdapters(live []adapters.Adapter) {
	for _, a := range live {
		_ = a.Stop()
	}
}

func ruleLocation() (*time.Location, error) {
	loc, err := time.LoadLocation("Local")
	if err != nil {
		return nil, fmt.Errorf("load local timezone: %w", err)
	}
	return loc, nil
}
