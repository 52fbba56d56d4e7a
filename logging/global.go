package logging

import (
	"io"
	"log/slog"
	"os"
)

type LoggingService struct {
	Logger *slog.Logger
	closer io.Closer
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger at info level. An empty logDir logs to console only.
func InitLogger(logDir string) {
	InitLoggerWithOptions(Options{Dir: logDir, Level: "info"})
}

// InitLoggerWithOptions initializes the global logger and makes it the slog default
func InitLoggerWithOptions(opts Options) {
	logger, closer := SetupLogger(opts)
	DefaultLoggingService = &LoggingService{
		Logger: logger,
		closer: closer,
	}
	slog.SetDefault(logger)
}

// Close flushes and closes the log file, if any
func Close() error {
	if DefaultLoggingService == nil || DefaultLoggingService.closer == nil {
		return nil
	}
	return DefaultLoggingService.closer.Close()
}

func logger(level slog.Level) *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger(slog.LevelDebug).Debug(msg, args...)
}
