package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Yafet01/drug-prescription-app/config"
	"github.com/Yafet01/drug-prescription-app/data"
	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/handlers"
	"github.com/Yafet01/drug-prescription-app/health"
	"github.com/Yafet01/drug-prescription-app/interfaces"
	"github.com/Yafet01/drug-prescription-app/logging"
	"github.com/Yafet01/drug-prescription-app/model"
	"github.com/Yafet01/drug-prescription-app/records"
	"github.com/Yafet01/drug-prescription-app/scheduler"
	"github.com/Yafet01/drug-prescription-app/server"
	"github.com/Yafet01/drug-prescription-app/storage"
	"github.com/Yafet01/drug-prescription-app/validation"
	"github.com/Yafet01/drug-prescription-app/vocabulary"
)

func main() {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions(logging.Options{
		Dir:            cfg.LogDir,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer func() { _ = logging.Close() }()

	if err := vocabulary.Default().Validate(); err != nil {
		logging.Error("Medicine vocabulary is inconsistent", "error", err)
		os.Exit(1)
	}

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"model_source", modelSource(cfg),
		"records", cfg.RecordsPath,
		"reload_interval", cfg.ModelReloadInterval.String(),
		"history", cfg.DatabaseURL != "")

	container := data.NewDataContainer()
	container.SetServerStartTime(time.Now())

	var recordLoader interfaces.RecordLoader
	if cfg.RecordsPath != "" {
		recordLoader = records.NewFileLoader(cfg.RecordsPath)
	}

	sched := scheduler.NewScheduler(
		container,
		container,
		model.NewLoader(cfg.ModelPath, cfg.ModelURL, cfg.ModelTimeout),
		recordLoader,
		cfg.ModelReloadInterval,
	)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	recorder := newRecorder(cfg)
	defer func() {
		if err := recorder.Close(); err != nil {
			logging.Warn("Failed to close forecast recorder", "error", err)
		}
	}()

	handler := handlers.NewHTTPHandler(
		container,
		container,
		forecast.NewForecaster(container, vocabulary.Default(), cfg.ForecastWorkers),
		validation.NewRequestValidator(cfg.MaxMedicinesPerRequest),
		recorder,
		health.NewHealthChecker(container, container, cfg.ModelReloadInterval),
	)
	srv := server.NewServer(cfg, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
	}
	handler.Wait()
}

// loadEnv reads .env from the working directory, then from the executable directory
func loadEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}

	ex, err := os.Executable()
	if err != nil {
		return
	}
	// Missing .env is fine, the environment and defaults apply
	_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
}

func modelSource(cfg *config.Config) string {
	if cfg.ModelURL != "" {
		return cfg.ModelURL
	}
	return cfg.ModelPath
}

// newRecorder connects the forecast history store. Without DATABASE_URL, or when the database
// is unreachable, runs are not recorded.
func newRecorder(cfg *config.Config) interfaces.ForecastRecorder {
	if cfg.DatabaseURL == "" {
		return storage.NopRecorder{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recorder, err := storage.NewPostgresRecorder(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.Error("Forecast history disabled", "error", err)
		return storage.NopRecorder{}
	}
	logging.Info("Forecast history enabled")
	return recorder
}
