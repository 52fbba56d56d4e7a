// Package interfaces defines core abstractions for the forecast service
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/records"
)

// ModelInfo describes the loaded model
type ModelInfo struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Source       string    `json:"source"`
	FeatureCount int       `json:"feature_count"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// ModelStore holds the process-wide model.
// It provides thread-safe access with atomic swaps for zero-downtime reloads.
type ModelStore interface {
	forecast.ModelProvider

	StoreModel(model forecast.Model, info ModelInfo)
	ModelInfo() (ModelInfo, bool)
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	BeginUpdate() bool
	EndUpdate()
}

// RecordStore holds the historical prescription records and their summary
type RecordStore interface {
	GetRecords() []records.Record
	GetSummary() records.Summary
	GetRecordsUpdated() time.Time
	UpdateRecords(recs []records.Record, stats records.ParseStats)
}

// ModelLoader loads a model from its source: an artifact file or an inference service
type ModelLoader interface {
	Load(ctx context.Context) (forecast.Model, ModelInfo, error)
	Source() string
}

// RecordLoader loads the historical records
type RecordLoader interface {
	Load(ctx context.Context) ([]records.Record, records.ParseStats, error)
}

// Forecaster computes forecasts for dashboard requests
type Forecaster interface {
	Forecast(ctx context.Context, req forecast.PredictionRequest) (*forecast.Result, error)
}

// ErrHistoryDisabled is returned by RecentRuns when forecast runs are not persisted
var ErrHistoryDisabled = errors.New("forecast history is disabled")

// ForecastRun is the summary row of a recorded forecast
type ForecastRun struct {
	ID         string    `db:"id" json:"id"`
	Year       int       `db:"year" json:"year"`
	Month      int       `db:"month" json:"month"`
	Season     string    `db:"season" json:"season"`
	Medicines  int       `db:"medicines" json:"medicines"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// ForecastRecorder persists successful forecast runs
type ForecastRecorder interface {
	Record(ctx context.Context, runID string, result *forecast.Result) error
	// RecentRuns returns up to limit runs, newest first
	RecentRuns(ctx context.Context, limit int) ([]ForecastRun, error)
	Close() error
}

// Scheduler defines the contract for job scheduling.
// It manages the initial load and periodic reloads of the model and records.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
type HTTPHandler interface {
	ServeMedicinesV1(w http.ResponseWriter, r *http.Request)
	ServeModelV1(w http.ResponseWriter, r *http.Request)
	ServeForecastV1(w http.ResponseWriter, r *http.Request)
	ExportForecastV1(w http.ResponseWriter, r *http.Request)
	ServeRecordsSummaryV1(w http.ResponseWriter, r *http.Request)
	ServeForecastHistoryV1(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)

	// Wait blocks until background work started by handlers has finished
	Wait()
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns current system health status and the HTTP status to report it with
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextReload returns the next scheduled model reload time
	CalculateNextReload() time.Time
}

// RequestValidator validates dashboard input
type RequestValidator interface {
	// ValidateRequest normalizes the medicine selection and checks the request bounds
	ValidateRequest(req forecast.PredictionRequest) (forecast.PredictionRequest, error)

	// ValidateMedicine validates one medicine name and returns its normalized form
	ValidateMedicine(input string) (string, error)

	// ParsePeriod parses a free-form date into year and month
	ParsePeriod(input string) (year, month int, err error)
}
