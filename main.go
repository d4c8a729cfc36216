package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"twowatch/api"
	"twowatch/config"
	"twowatch/handlers"
	"twowatch/internal/docstore"
	"twowatch/internal/kvstore"
	"twowatch/services/accounts"
	"twowatch/services/metadata"
	"twowatch/services/providers"
	"twowatch/services/sessions"
	"twowatch/services/watchlist"
	"twowatch/utils"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🚀 twowatch backend starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("TWOWATCH_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	setupLogging(settings.Log)

	// Apply port override if specified
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	ctx := context.Background()

	if settings.Storage.Driver == "sqlite" || settings.Storage.Driver == "" {
		if err := os.MkdirAll(filepath.Dir(settings.Storage.DSN), 0755); err != nil {
			log.Fatalf("failed to create database directory: %v", err)
		}
	}
	remote, err := docstore.Open(ctx, settings.Storage.Driver, settings.Storage.DSN)
	if err != nil {
		log.Fatalf("failed to open document store: %v", err)
	}
	defer remote.Close()

	localRoot, err := kvstore.NewOS(filepath.Join(settings.Storage.DataDir, "local"))
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}

	accountsSvc, err := accounts.NewService(settings.Storage.DataDir)
	if err != nil {
		log.Fatalf("failed to initialise accounts service: %v", err)
	}
	sessionsSvc, err := sessions.NewService(settings.Storage.DataDir, settings.Sessions.TTL())
	if err != nil {
		log.Fatalf("failed to initialise sessions service: %v", err)
	}

	backoff := watchlist.ExponentialBackoff(settings.Watchlist.RetryBaseDelay())
	store, err := watchlist.NewStore(
		sessions.ContextIdentity{},
		localRoot.Device(kvstore.DefaultDevice),
		remote,
		watchlist.WithLocalKey(settings.Watchlist.LocalKey),
		watchlist.WithRetryPolicy(watchlist.RetryPolicy{
			MaxAttempts: uint(settings.Watchlist.RetryAttempts),
			Backoff:     backoff,
			Retryable:   watchlist.IsTransient,
		}),
		watchlist.WithLogThrottle(watchlist.NewLogThrottle(settings.Watchlist.LogThrottleWindow())),
	)
	if err != nil {
		log.Fatalf("failed to initialise watchlist store: %v", err)
	}

	registry := providers.NewRegistry()
	resolver := providers.NewResolver(registry, nil, providers.WithFallbackSearchURL(settings.Links.FallbackSearchURL))

	metadataSvc := metadata.NewService(
		settings.Metadata.TMDBAPIKey,
		settings.Metadata.Language,
		settings.Metadata.Region,
		registry,
		&http.Client{Timeout: 15 * time.Second},
	)
	if !metadataSvc.Configured() {
		slog.Warn("metadata service not configured; where-to-watch is disabled", "setting", "metadata.tmdbApiKey")
	}

	scope := handlers.DeviceScope(store, localRoot)
	var titles handlers.TitleLookup
	if metadataSvc.Configured() {
		titles = metadataSvc
	}

	// Construct router
	var r *mux.Router = utils.NewRouter()
	api.Register(r, api.Handlers{
		Auth:      handlers.NewAuthHandler(accountsSvc, sessionsSvc, scope),
		Watchlist: handlers.NewWatchlistHandler(scope, titles),
		Providers: handlers.NewProvidersHandler(resolver),
		Titles:    handlers.NewTitlesHandler(metadataSvc),
	}, sessionsSvc, settings.Server.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// setupLogging sends the standard logger to stdout and, when configured, a rotated log file.
func setupLogging(cfg config.LogConfig) {
	slog.SetLogLoggerLevel(parseLevel(cfg.Level))

	if cfg.File == "" {
		return
	}
	logDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		return
	}
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	// Redirect standard log to both console and file
	log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Logging to file: %s", cfg.File)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
