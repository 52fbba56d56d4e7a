// Package scheduler provides model and records reload scheduling for the forecast service.
// It handles the initial load, periodic reloads and staleness monitoring, and coordinates
// swaps with the data container using dependency injection.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/Yafet01/drug-prescription-app/interfaces"
	"github.com/Yafet01/drug-prescription-app/logging"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// ErrUpdateInProgress is returned by Reload when another reload holds the update flag
var ErrUpdateInProgress = errors.New("reload already in progress")

// Scheduler reloads the model and the historical records using injected dependencies
type Scheduler struct {
	models       interfaces.ModelStore
	records      interfaces.RecordStore
	modelLoader  interfaces.ModelLoader
	recordLoader interfaces.RecordLoader
	interval     time.Duration
	loadTimeout  time.Duration

	scheduler *gocron.Scheduler
	stop      chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// recordLoader may be nil when no historical data is configured.
func NewScheduler(models interfaces.ModelStore, recs interfaces.RecordStore,
	modelLoader interfaces.ModelLoader, recordLoader interfaces.RecordLoader, interval time.Duration) *Scheduler {
	return &Scheduler{
		models:       models,
		records:      recs,
		modelLoader:  modelLoader,
		recordLoader: recordLoader,
		interval:     interval,
		loadTimeout:  2 * time.Minute,
		scheduler:    gocron.NewScheduler(time.Local),
		stop:         make(chan struct{}),
	}
}

// Start performs the initial load and schedules periodic reloads.
// A failed initial model load is not fatal: the service starts without a model and forecasts
// fail with ErrModelUnavailable until a reload succeeds.
func (s *Scheduler) Start() error {
	if err := s.Reload(context.Background()); err != nil {
		logging.Error("Initial load incomplete, serving without a model until the next reload", "error", err)
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(func() {
		if err := s.Reload(context.Background()); err != nil && !errors.Is(err, ErrUpdateInProgress) {
			logging.Error("Failed to reload", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule reloads", "error", err)
		return fmt.Errorf("failed to schedule reloads: %w", err)
	}

	s.scheduler.StartAsync()

	// Start staleness monitoring
	s.startHealthMonitoring(time.Hour)

	return nil
}

// Stop stops the scheduler and the monitoring goroutine
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Reload loads the model and the records and swaps them into the stores.
// A failed model load keeps the previously loaded model, if any.
func (s *Scheduler) Reload(ctx context.Context) error {
	// Prevent concurrent reloads
	if !s.models.BeginUpdate() {
		logging.Info("Reload already in progress, skipping...")
		return ErrUpdateInProgress
	}
	defer s.models.EndUpdate()

	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	logging.Info(fmt.Sprintf("Starting reload at: %s", time.Now().Format(time.RFC3339)))
	start := time.Now()

	modelErr := s.reloadModel(ctx)
	recordsErr := s.reloadRecords(ctx)

	logging.Info("Reload completed", "duration", time.Since(start).String(),
		"model_ok", modelErr == nil, "records_ok", recordsErr == nil)

	return errors.Join(modelErr, recordsErr)
}

func (s *Scheduler) reloadModel(ctx context.Context) error {
	model, info, err := s.modelLoader.Load(ctx)
	if err != nil {
		if _, ok := s.models.CurrentModel(); ok {
			logging.Warn("Model reload failed, keeping the current model", "source", s.modelLoader.Source(), "error", err)
		}
		return fmt.Errorf("failed to load model from %s: %w", s.modelLoader.Source(), err)
	}

	s.models.StoreModel(model, info)
	logging.Info("Model loaded",
		"name", info.Name,
		"version", info.Version,
		"source", info.Source,
		"features", info.FeatureCount)
	return nil
}

func (s *Scheduler) reloadRecords(ctx context.Context) error {
	if s.recordLoader == nil || s.records == nil {
		return nil
	}

	recs, stats, err := s.recordLoader.Load(ctx)
	if err != nil {
		logging.Warn("Failed to load historical records", "error", err)
		return fmt.Errorf("failed to load records: %w", err)
	}

	if stats.Skipped() > 0 {
		logging.Warn("Historical records with skipped rows",
			"parsed", stats.Parsed,
			"skipped_empty", stats.SkippedEmptyLines,
			"skipped_missing_columns", stats.SkippedMissingColumns,
			"skipped_format_errors", stats.SkippedFormatErrors,
		)
	}

	s.records.UpdateRecords(recs, stats)
	logging.Info("Historical records loaded", "records", len(recs))
	return nil
}

// startHealthMonitoring warns when the model has not been refreshed for two reload intervals
func (s *Scheduler) startHealthMonitoring(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if _, ok := s.models.CurrentModel(); !ok {
					logging.Warn("No model loaded, forecasts are unavailable")
					continue
				}
				if time.Since(s.models.GetLastUpdated()) > 2*s.interval {
					logging.Warn("Model hasn't been reloaded in over two reload intervals",
						"last_updated", s.models.GetLastUpdated().Format(time.RFC3339))
				}
			}
		}
	}()
}
