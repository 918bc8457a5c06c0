package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/co-wx/internal/api"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/internal/storage/sqlite"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/internal/websocket"
	"github.com/yegors/co-wx/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting co-wx server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.Any("stations", cfg.StationCodes()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	// Create SQLite storage
	storage, err := sqlite.NewObservationStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer storage.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	if cfg.Storage.RetentionDays > 0 {
		go runRetention(ctx, storage, time.Duration(cfg.Storage.RetentionDays)*24*time.Hour, log)
	}

	// Create and start WebSocket server
	wsServer := websocket.NewServer(metrics, log)
	go wsServer.Run(ctx)

	// Create weather service
	weatherService := weather.NewService(
		cfg.Weather,
		cfg.Stations,
		weather.NewClient(cfg.Weather, log),
		storage,
		wsServer,
		metrics,
		nil,
		log,
	)
	wsServer.SetMessageHandler(api.NewWebSocketMessageHandler(weatherService, log))

	if err := weatherService.Start(); err != nil {
		log.Error("Failed to start weather service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(weatherService, wsServer.HandleConnection, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("Shutting down server...", logger.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server error", logger.String("addr", addr), logger.Error(err))
	}

	// Stop background services first
	log.Info("Stopping weather service...")
	if err := weatherService.Stop(); err != nil {
		log.Error("Error stopping weather service", logger.Error(err))
	}
	log.Info("Weather service stopped.")

	// Cancel the main context, which also stops the WebSocket hub
	cancel()

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.String("addr", addr), logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete", logger.String("addr", addr))
	}

	log.Info("Server fully stopped")
}

// runRetention prunes old observations once an hour
func runRetention(ctx context.Context, storage *sqlite.ObservationStorage, maxAge time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		removed, err := storage.DeleteBefore(time.Now().Add(-maxAge))
		if err != nil {
			log.Error("Failed to prune observations", logger.Error(err))
		} else if removed > 0 {
			log.Info("Pruned old observations", logger.Int64("removed", removed))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
