package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Yafet01/drug-prescription-app/data"
	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/interfaces"
	"github.com/Yafet01/drug-prescription-app/logging"
	"github.com/Yafet01/drug-prescription-app/records"
)

type fixedModel float64

func (m fixedModel) Predict(_ context.Context, rows []encoder.FeatureVector) ([]float64, error) {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = float64(m)
	}
	return out, nil
}

// mockModelLoader for testing scheduler
type mockModelLoader struct {
	loadCount  atomic.Int64
	shouldFail atomic.Bool
	version    string
}

func (m *mockModelLoader) Load(_ context.Context) (forecast.Model, interfaces.ModelInfo, error) {
	m.loadCount.Add(1)
	if m.shouldFail.Load() {
		return nil, interfaces.ModelInfo{}, &mockSchedulerError{"artifact missing"}
	}
	return fixedModel(1), interfaces.ModelInfo{
		Name:         "mock",
		Version:      m.version,
		Source:       m.Source(),
		FeatureCount: encoder.FeatureCount,
		LoadedAt:     time.Now(),
	}, nil
}

func (m *mockModelLoader) Source() string {
	return "mock://model"
}

// mockRecordLoader for testing scheduler
type mockRecordLoader struct {
	loadCount  atomic.Int64
	shouldFail bool
}

func (m *mockRecordLoader) Load(_ context.Context) ([]records.Record, records.ParseStats, error) {
	m.loadCount.Add(1)
	if m.shouldFail {
		return nil, records.ParseStats{}, &mockSchedulerError{"records missing"}
	}
	return []records.Record{
		{Medicine: "Aspirin", Quantity: 3},
		{Medicine: "Metformin", Quantity: 5},
	}, records.ParseStats{Lines: 3, Parsed: 2, SkippedFormatErrors: 1}, nil
}

type mockSchedulerError struct {
	msg string
}

func (e *mockSchedulerError) Error() string {
	return e.msg
}

func TestScheduler_SuccessfulStart(t *testing.T) {
	logging.InitLogger("")

	store := data.NewDataContainer()
	modelLoader := &mockModelLoader{version: "1"}
	recordLoader := &mockRecordLoader{}

	scheduler := NewScheduler(store, store, modelLoader, recordLoader, time.Hour)
	if err := scheduler.Start(); err != nil {
		t.Fatalf("Unexpected error during start: %v", err)
	}
	defer scheduler.Stop()

	if modelLoader.loadCount.Load() != 1 {
		t.Errorf("Expected 1 model load, got %d", modelLoader.loadCount.Load())
	}
	if recordLoader.loadCount.Load() != 1 {
		t.Errorf("Expected 1 records load, got %d", recordLoader.loadCount.Load())
	}

	if _, ok := store.CurrentModel(); !ok {
		t.Error("Expected model to be loaded")
	}
	info, _ := store.ModelInfo()
	if info.Version != "1" {
		t.Errorf("Expected model version 1, got %q", info.Version)
	}
	if len(store.GetRecords()) != 2 {
		t.Errorf("Expected 2 records, got %d", len(store.GetRecords()))
	}
	if store.IsUpdating() {
		t.Error("Update flag should be cleared after start")
	}
}

func TestScheduler_InitialModelFailureIsNotFatal(t *testing.T) {
	logging.InitLogger("")

	store := data.NewDataContainer()
	modelLoader := &mockModelLoader{}
	modelLoader.shouldFail.Store(true)

	scheduler := NewScheduler(store, store, modelLoader, &mockRecordLoader{}, time.Hour)
	if err := scheduler.Start(); err != nil {
		t.Fatalf("Start should not fail on model load error, got %v", err)
	}
	defer scheduler.Stop()

	if _, ok := store.CurrentModel(); ok {
		t.Error("Expected no model after failed load")
	}
	if len(store.GetRecords()) != 2 {
		t.Errorf("Records should still load, got %d", len(store.GetRecords()))
	}
}

func TestScheduler_ReloadKeepsModelOnFailure(t *testing.T) {
	logging.InitLogger("")

	store := data.NewDataContainer()
	modelLoader := &mockModelLoader{version: "1"}
	scheduler := NewScheduler(store, store, modelLoader, nil, time.Hour)

	if err := scheduler.Reload(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	modelLoader.shouldFail.Store(true)
	err := scheduler.Reload(context.Background())
	if err == nil {
		t.Fatal("Expected reload error")
	}
	var loadErr *mockSchedulerError
	if !errors.As(err, &loadErr) {
		t.Errorf("Expected loader error to be wrapped, got %v", err)
	}

	if _, ok := store.CurrentModel(); !ok {
		t.Error("Previous model should survive a failed reload")
	}
}

func TestScheduler_RecordsFailure(t *testing.T) {
	logging.InitLogger("")

	store := data.NewDataContainer()
	scheduler := NewScheduler(store, store, &mockModelLoader{version: "1"}, &mockRecordLoader{shouldFail: true}, time.Hour)

	err := scheduler.Reload(context.Background())
	if err == nil {
		t.Fatal("Expected records error")
	}
	if _, ok := store.CurrentModel(); !ok {
		t.Error("Model should load even when records fail")
	}
	if len(store.GetRecords()) != 0 {
		t.Errorf("Expected no records, got %d", len(store.GetRecords()))
	}
}

func TestScheduler_ConcurrentReloadSkipped(t *testing.T) {
	logging.InitLogger("")

	store := data.NewDataContainer()
	modelLoader := &mockModelLoader{version: "1"}
	scheduler := NewScheduler(store, store, modelLoader, nil, time.Hour)

	if !store.BeginUpdate() {
		t.Fatal("Failed to acquire update flag")
	}

	err := scheduler.Reload(context.Background())
	if !errors.Is(err, ErrUpdateInProgress) {
		t.Errorf("Expected ErrUpdateInProgress, got %v", err)
	}
	if modelLoader.loadCount.Load() != 0 {
		t.Errorf("Loader should not run while another reload is in progress, got %d calls", modelLoader.loadCount.Load())
	}

	store.EndUpdate()
}

func TestScheduler_PeriodicReload(t *testing.T) {
	logging.InitLogger("")

	store := data.NewDataContainer()
	modelLoader := &mockModelLoader{version: "1"}
	scheduler := NewScheduler(store, store, modelLoader, nil, 50*time.Millisecond)

	if err := scheduler.Start(); err != nil {
		t.Fatalf("Unexpected error during start: %v", err)
	}
	defer scheduler.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for modelLoader.loadCount.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if modelLoader.loadCount.Load() < 2 {
		t.Errorf("Expected at least one scheduled reload, got %d loads", modelLoader.loadCount.Load())
	}
}

func TestScheduler_StopTwice(t *testing.T) {
	logging.InitLogger("")

	store := data.NewDataContainer()
	scheduler := NewScheduler(store, store, &mockModelLoader{}, nil, time.Hour)
	if err := scheduler.Start(); err != nil {
		t.Fatalf("Unexpected error during start: %v", err)
	}

	scheduler.Stop()
	scheduler.Stop()
}
