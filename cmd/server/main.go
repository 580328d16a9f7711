package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iconidentify/linkgrabba/internal/api"
	"github.com/iconidentify/linkgrabba/internal/api/handler"
	"github.com/iconidentify/linkgrabba/internal/config"
	"github.com/iconidentify/linkgrabba/internal/downloader"
	"github.com/iconidentify/linkgrabba/internal/extractor"
	"github.com/iconidentify/linkgrabba/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("linkgrabba %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration before the logger so LOG_LEVEL applies from the start.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting linkgrabba",
		"version", Version,
		"build_time", BuildTime,
	)

	// Extraction backends
	var general extractor.Extractor = extractor.NewYTDLP(cfg.Extractor, logger)
	if cfg.Extractor.NativeYouTube {
		httpClient := &http.Client{Timeout: cfg.Extractor.Timeout}
		general = extractor.NewChain(extractor.NewYouTube(httpClient, logger), general)
	}
	browser := extractor.NewBrowser(cfg.Browser, cfg.Extractor.CookiesPath, general, logger)
	router := extractor.NewRouter(browser, general, cfg.Extractor.BrowserHosts)

	mediaSvc := service.NewMediaService(router, logger)
	dl := downloader.NewHTTPDownloader(cfg.Download, logger)

	// Initialize handlers
	handlers := api.Handlers{
		Session:  handler.NewSessionHandler(mediaSvc, cfg.Session, logger),
		Download: handler.NewDownloadHandler(dl, cfg.Download.ChunkSize, logger),
		Health:   handler.NewHealthHandler(mediaSvc, logger),
		UI:       handler.NewUIHandler(),
	}

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.NewRouter(handlers, cfg.Server.APIKey, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server",
			"addr", srv.Addr,
			"browser_hosts", cfg.Extractor.BrowserHosts,
			"native_youtube", cfg.Extractor.NativeYouTube,
			"auth", cfg.Server.APIKey != "",
		)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown. Hijacked WebSocket connections are not tracked by
	// Shutdown; they end when the process exits.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
