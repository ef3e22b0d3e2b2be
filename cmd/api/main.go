package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/app"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/config"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/server"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the rewards API server
// It initializes all dependencies and starts the HTTP server with graceful shutdown
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, keeping info")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Connect storage, ledger and reward services
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize services")
	}
	defer a.Close()

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		Users:           a.Identity,
		Sessions:        a.Sessions,
		Ledger:          a.Ledger,
		Flags:           a.Flags,
		Events:          a.Events,
		Feed:            a.Feed,
		Mint:            cfg.TokenMint,
		ContestReceiver: cfg.ContestReceiver,
		ContestFee:      cfg.ContestFee,
		TaskXP:          cfg.TaskXP,
		TaskReward:      cfg.TaskReward,
		AirdropTimeout:  cfg.AirdropTimeout(),
		SubmitTimeout:   cfg.SubmitTimeout(),
		DevMode:         cfg.DevMode,
		Logger:          logger,
	}
	// Optional components stay nil interfaces when unconfigured
	if a.Airdrops != nil {
		h.Airdrops = a.Airdrops
	}
	if a.Quiz != nil {
		h.Quizzes = a.Quiz
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:             cfg.APIAddr,
			DevMode:          cfg.DevMode,
			APIKey:           cfg.APIKey,
			AirdropRateLimit: cfg.AirdropRateLimit,
			// Leave room to write the response after the slowest route.
			WriteTimeout: max(cfg.AirdropTimeout(), cfg.SubmitTimeout()) + 15*time.Second,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Cancel context to stop ongoing operations
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
		a.Sessions.CloseAll()                  // Stop balance refreshers
	}()

	// Start the HTTP server
	logger.WithFields(logrus.Fields{
		"addr":     cfg.APIAddr,
		"mint":     cfg.TokenMint,
		"redis":    a.Redis != nil,
		"airdrops": a.Airdrops != nil,
		"quiz":     a.Quiz != nil,
	}).Info("rewards api starting")
	if err := srv.Start(); err != nil {
		// http.ErrServerClosed is expected during graceful shutdown
		if errors.Is(err, http.ErrServerClosed) {
			_ = srv.WaitClosed(context.Background())
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
