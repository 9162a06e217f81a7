package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/config"
	"github.com/pep299/econ-news-digest/internal/di"
	"github.com/pep299/econ-news-digest/internal/logging"
	"github.com/pep299/econ-news-digest/internal/scheduler"
)

var (
	Version   string = "dev"
	Commit    string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		fmt.Printf("Economic News Digest Server\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nEnvironment Variables:\n")
		fmt.Printf("  NEWSAPI_KEY           News API key (required)\n")
		fmt.Printf("  GEMINI_API_KEY        Gemini API key (required with LLM_PROVIDER=gemini)\n")
		fmt.Printf("  RESEND_API_KEY        Resend API key (required for email delivery)\n")
		fmt.Printf("  EMAIL_SENDER          Sender address\n")
		fmt.Printf("  EMAIL_RECEIVERS       Comma separated receiver addresses\n")
		fmt.Printf("  DELIVERY_TARGETS      email, gcs or both (default: email)\n")
		fmt.Printf("  SCHEDULE_TIMES        Daily run times HH:MM (default: 01:00,16:00)\n")
		fmt.Printf("  SCHEDULE_TIMEZONE     Time zone of SCHEDULE_TIMES (default: UTC)\n")
		fmt.Printf("  REDIS_ADDR            Share the run lock between replicas\n")
		fmt.Printf("  PORT                  Server port (default: 10000)\n")
		fmt.Printf("  HOST                  Server host (default: 0.0.0.0)\n")
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("Economic News Digest Server\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build dependencies", zap.Error(err))
	}
	defer container.Close()

	location, err := time.LoadLocation(cfg.ScheduleTimezone)
	if err != nil {
		logger.Fatal("Invalid schedule timezone", zap.Error(err))
	}

	sched, err := scheduler.New(cfg.ScheduleTimes, location, func(ctx context.Context) {
		container.Runner.Run(ctx)
	}, logger.Named("scheduler"))
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	router := container.Server(sched, Version).SetupRoutes()

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sched.Start()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server
	go func() {
		logger.Info("Starting server", zap.String("addr", httpServer.Addr), zap.String("version", Version))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop cron scheduler and wait for a scheduled run in progress
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Scheduled run still in progress at shutdown")
	}

	// Shutdown HTTP server

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}
