package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const filePrefix = "forecast-"

// RotatingWriter writes to one log file per ISO week, starting a numbered file once the size
// limit is reached, and prunes files older than the retention period.
type RotatingWriter struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu      sync.Mutex
	file    *os.File
	week    string
	seq     int
	size    int64
	nowFunc func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewRotatingWriter creates the log directory and opens the file for the current week
func NewRotatingWriter(dir string, retentionWeeks int, maxFileSize int64) (*RotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	rw := &RotatingWriter{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		nowFunc:     time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	rw.mu.Lock()
	err := rw.openLocked(weekKey(rw.nowFunc()))
	rw.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go rw.cleanupLoop(24 * time.Hour)

	return rw, nil
}

// weekKey returns the ISO week in YYYY-Www format
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rw *RotatingWriter) fileName(week string, seq int) string {
	if seq == 0 {
		return fmt.Sprintf("%s%s.log", filePrefix, week)
	}
	return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, seq)
}

// openLocked opens the first file of the week that still has room (caller holds mu)
func (rw *RotatingWriter) openLocked(week string) error {
	if rw.file != nil {
		if err := rw.file.Close(); err != nil {
			slog.Warn("Failed to close log file during rotation", "error", err)
		}
		rw.file = nil
	}

	seq := 0
	if rw.week == week {
		seq = rw.seq
	}

	for {
		path := filepath.Join(rw.dir, rw.fileName(week, seq))
		info, err := os.Stat(path)
		if err != nil || rw.maxFileSize <= 0 || info.Size() < rw.maxFileSize {
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", path, err)
			}
			rw.file = file
			rw.week = week
			rw.seq = seq
			rw.size = 0
			if info != nil {
				rw.size = info.Size()
			}
			return nil
		}
		seq++
	}
}

// Write implements io.Writer
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	week := weekKey(rw.nowFunc())
	switch {
	case week != rw.week:
		rw.seq = 0
		if err := rw.openLocked(week); err != nil {
			return 0, err
		}
	case rw.maxFileSize > 0 && rw.size+int64(len(p)) > rw.maxFileSize && rw.size > 0:
		rw.seq++
		if err := rw.openLocked(week); err != nil {
			return 0, err
		}
	}

	if rw.file == nil {
		return 0, fmt.Errorf("no log file available")
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *RotatingWriter) cleanupLoop(every time.Duration) {
	defer close(rw.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rw.stop:
			return
		case <-ticker.C:
			if _, err := rw.Cleanup(); err != nil {
				slog.Warn("Failed to cleanup old logs", "error", err)
			}
		}
	}
}

// Cleanup removes log files last modified before the retention cutoff and returns how many
func (rw *RotatingWriter) Cleanup() (int, error) {
	entries, err := os.ReadDir(rw.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := rw.nowFunc().Add(-rw.retention)
	deleted := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rw.dir, name)); err == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}

// Close stops the cleanup goroutine and closes the current file
func (rw *RotatingWriter) Close() error {
	select {
	case <-rw.stop:
	default:
		close(rw.stop)
	}
	<-rw.done

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file != nil {
		err := rw.file.Close()
		rw.file = nil
		return err
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Options configures SetupLogger
type Options struct {
	Dir            string
	Level          string
	RetentionWeeks int
	MaxFileSize    int64
	Console        io.Writer
}

// SetupLogger builds a logger writing text to the console and JSON to a rotating file.
// With an empty Dir only the console handler is used. The returned closer is never nil.
func SetupLogger(opts Options) (*slog.Logger, io.Closer) {
	level := ParseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	if opts.Dir == "" {
		return slog.New(consoleHandler), nopCloser{}
	}

	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}

	writer, err := NewRotatingWriter(opts.Dir, retention, opts.MaxFileSize)
	if err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to initialize rotating log file, logging to console only", "error", err)
		return logger, nopCloser{}
	}

	fileHandler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})

	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}), writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// multiHandler fans records out to several handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
