// Package main is the entry point for the Orbis terrain viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/orbis/internal/app"
	"github.com/Faultbox/orbis/internal/config"
	"github.com/Faultbox/orbis/internal/logger"
)

func init() {
	// SDL and GL calls must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	lc := logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: true,
	}
	if cfg.Logging.LogFile != "" {
		lc.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
		if cfg.Logging.MaxSizeMB > 0 {
			lc.File.MaxSizeMB = cfg.Logging.MaxSizeMB
		}
		if cfg.Logging.MaxBackups > 0 {
			lc.File.MaxBackups = cfg.Logging.MaxBackups
		}
		if cfg.Logging.MaxAgeDays > 0 {
			lc.File.MaxAgeDays = cfg.Logging.MaxAgeDays
		}
	}
	if err := logger.Init(lc); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Orbis ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger.Get())
	if err != nil {
		logger.Error("failed to start viewer", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("viewer error", zap.Error(err))
		a.Close()
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}
