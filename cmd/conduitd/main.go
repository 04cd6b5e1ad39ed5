// Package main is the entrypoint for conduitd, the invitation conduit server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scille-labs/invite-conduit/internal/conduit"
	"github.com/scille-labs/invite-conduit/internal/eventbus"
	"github.com/scille-labs/invite-conduit/internal/identity"
	"github.com/scille-labs/invite-conduit/internal/inviteapi"
	"github.com/scille-labs/invite-conduit/internal/platform/config"
	"github.com/scille-labs/invite-conduit/internal/presence"
	"github.com/scille-labs/invite-conduit/internal/store"

	conduitmem "github.com/scille-labs/invite-conduit/internal/conduit/memory"

	// Register store drivers.
	_ "github.com/scille-labs/invite-conduit/internal/store/memory"
	_ "github.com/scille-labs/invite-conduit/internal/store/sqlite"

	// Register event bus drivers.
	_ "github.com/scille-labs/invite-conduit/internal/eventbus/memory"
	_ "github.com/scille-labs/invite-conduit/internal/eventbus/valkey"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	storeDriver := flag.String("store-driver", "", "Invitation store driver: memory or sqlite (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "Invitation store data directory (overrides config)")
	eventBusDriver := flag.String("event-bus-driver", "", "Event bus driver: memory or valkey (overrides config)")
	eventBusValkeyAddr := flag.String("event-bus-valkey-addr", "", "Valkey address for the event bus driver (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:         listenAddr,
			StoreDriver:        storeDriver,
			StoreDataDir:       storeDataDir,
			EventBusDriver:     eventBusDriver,
			EventBusValkeyAddr: eventBusValkeyAddr,
			LoggingLevel:       loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("effective configuration", "listen_addr", cfg.ListenAddr, "store_driver", cfg.Store.Driver, "event_bus_driver", cfg.EventBus.Driver)

	ctx := context.Background()

	invitations, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open invitation store", "error", err)
		os.Exit(1)
	}

	busCfg := map[string]any{
		"addr":     cfg.EventBus.Valkey.Addr,
		"password": cfg.EventBus.Valkey.Password,
		"db":       cfg.EventBus.Valkey.DB,
	}
	bus, err := eventbus.Open(ctx, cfg.EventBus.Driver, busCfg)
	if err != nil {
		logger.Error("failed to open event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	engine := conduit.NewEngine(invitations, conduitmem.New(), bus, time.Duration(cfg.PeerEventMaxWaitSeconds)*time.Second)

	members := identity.NewMemoryMemberStore()
	auth := identity.NewAuthenticator(0) // 0 -> bcrypt.DefaultCost

	tracker := presence.New()
	trackerCtx, stopTracker := context.WithCancel(ctx)
	defer stopTracker()
	// The presence tracker watches a fixed set of known organizations;
	// production deployments would register one per tenant as they are
	// provisioned. Exercised here for the single-organization deployment.
	go func() {
		if err := tracker.Run(trackerCtx, bus, "default"); err != nil && trackerCtx.Err() == nil {
			logger.Warn("presence tracker stopped", "error", err)
		}
	}()

	apiServer := inviteapi.NewServer(invitations, engine, members, auth, bus, tracker, logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: apiServer.Router(),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server started", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-runCtx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
