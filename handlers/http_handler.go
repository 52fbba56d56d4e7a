package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/interfaces"
	"github.com/Yafet01/drug-prescription-app/logging"
	"github.com/Yafet01/drug-prescription-app/records"
	"github.com/Yafet01/drug-prescription-app/validation"
	"github.com/Yafet01/drug-prescription-app/vocabulary"
)

const (
	recordTimeout = 5 * time.Second

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	models     interfaces.ModelStore
	records    interfaces.RecordStore
	forecaster interfaces.Forecaster
	validator  interfaces.RequestValidator
	recorder   interfaces.ForecastRecorder
	health     interfaces.HealthChecker
	now        func() time.Time

	// pending tracks runs still being recorded
	pending sync.WaitGroup
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies.
// A nil recorder disables forecast history.
func NewHTTPHandler(
	models interfaces.ModelStore,
	recordStore interfaces.RecordStore,
	forecaster interfaces.Forecaster,
	validator interfaces.RequestValidator,
	recorder interfaces.ForecastRecorder,
	health interfaces.HealthChecker,
) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		models:     models,
		records:    recordStore,
		forecaster: forecaster,
		validator:  validator,
		recorder:   recorder,
		health:     health,
		now:        time.Now,
	}
}

// MedicinesResponse lists the vocabulary the model was trained on
type MedicinesResponse struct {
	Medicines []vocabulary.Medicine `json:"medicines"`
	Diseases  []vocabulary.Category `json:"diseases"`
}

// ModelResponse describes the loaded model and its input layout
type ModelResponse struct {
	Model        interfaces.ModelInfo `json:"model"`
	FeatureNames []string             `json:"feature_names"`
}

// ForecastResponse is the body of a successful forecast
type ForecastResponse struct {
	ID      string                     `json:"id"`
	Request forecast.PredictionRequest `json:"request"`
	Points  []forecast.PointRow        `json:"points"`
	Trend   []forecast.TrendRow        `json:"trend"`
}

// PartialForecastResponse is returned when a model invocation fails midway. Points and Trend hold
// the medicines processed before the failing one.
type PartialForecastResponse struct {
	ErrorResponse
	Medicine string              `json:"medicine"`
	Month    int                 `json:"month"`
	Points   []forecast.PointRow `json:"points"`
	Trend    []forecast.TrendRow `json:"trend"`
}

// RecordsSummaryResponse holds the Explore statistics of the historical records
type RecordsSummaryResponse struct {
	Summary   records.Summary `json:"summary"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// ForecastHistoryResponse lists recorded runs, newest first
type ForecastHistoryResponse struct {
	Runs []interfaces.ForecastRun `json:"runs"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status string         `json:"status"`
	Uptime string         `json:"uptime"`
	Data   map[string]any `json:"data"`
}

// ServeMedicinesV1 handles GET /v1/medicines
func (h *HTTPHandlerImpl) ServeMedicinesV1(w http.ResponseWriter, r *http.Request) {
	vocab := vocabulary.Default()
	RespondWithJSON(w, http.StatusOK, MedicinesResponse{
		Medicines: vocab.Medicines(),
		Diseases:  vocab.Diseases(),
	})
}

// ServeModelV1 handles GET /v1/model
func (h *HTTPHandlerImpl) ServeModelV1(w http.ResponseWriter, r *http.Request) {
	info, ok := h.models.ModelInfo()
	if !ok {
		RespondWithError(w, http.StatusServiceUnavailable, "No model is loaded")
		return
	}

	RespondWithJSON(w, http.StatusOK, ModelResponse{
		Model:        info,
		FeatureNames: encoder.FeatureNames[:],
	})
}

// ServeForecastV1 handles GET /v1/forecast
func (h *HTTPHandlerImpl) ServeForecastV1(w http.ResponseWriter, r *http.Request) {
	result, ok := h.runForecast(w, r)
	if !ok {
		return
	}

	runID := uuid.NewString()
	h.record(r.Context(), runID, result)

	RespondWithJSON(w, http.StatusOK, ForecastResponse{
		ID:      runID,
		Request: result.Request,
		Points:  result.Points(),
		Trend:   result.Trend(),
	})
}

// ExportForecastV1 handles GET /v1/forecast/export, the point table as a CSV download
func (h *HTTPHandlerImpl) ExportForecastV1(w http.ResponseWriter, r *http.Request) {
	result, ok := h.runForecast(w, r)
	if !ok {
		return
	}

	writeForecastCSV(w, result, h.now())
}

// ServeRecordsSummaryV1 handles GET /v1/records/summary, optionally restricted to medicine parameters
func (h *HTTPHandlerImpl) ServeRecordsSummaryV1(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Historical records are not configured")
		return
	}

	var response RecordsSummaryResponse
	if updated := h.records.GetRecordsUpdated(); !updated.IsZero() {
		response.UpdatedAt = updated.Format(time.RFC3339)
	}

	names := medicineParams(r)
	if len(names) == 0 {
		response.Summary = h.records.GetSummary()
		RespondWithJSON(w, http.StatusOK, response)
		return
	}

	selected := make([]string, 0, len(names))
	for _, name := range names {
		normalized, err := h.validator.ValidateMedicine(name)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		selected = append(selected, normalized)
	}

	response.Summary = records.Summarize(records.Filter(h.records.GetRecords(), selected))
	RespondWithJSON(w, http.StatusOK, response)
}

// ServeForecastHistoryV1 handles GET /v1/forecast/history?limit=
func (h *HTTPHandlerImpl) ServeForecastHistoryV1(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		RespondWithError(w, http.StatusServiceUnavailable, interfaces.ErrHistoryDisabled.Error())
		return
	}

	limit := defaultHistoryLimit
	if r.URL.Query().Get("limit") != "" {
		n, err := intParam(r, "limit")
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if n < 1 || n > maxHistoryLimit {
			RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: must be between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	runs, err := h.recorder.RecentRuns(r.Context(), limit)
	switch {
	case errors.Is(err, interfaces.ErrHistoryDisabled):
		RespondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		logging.Debug("History request canceled by client")
	case err != nil:
		logging.Error("Failed to read forecast history", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to read forecast history")
	default:
		RespondWithJSON(w, http.StatusOK, ForecastHistoryResponse{Runs: runs})
	}
}

// HealthCheck handles GET /health
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.health.HealthCheck()

	RespondWithJSON(w, httpStatus, HealthResponse{
		Status: status,
		Uptime: formatUptimeHuman(time.Since(h.models.GetServerStartTime())),
		Data:   details,
	})
}

// runForecast parses, validates and runs the forecast of r. It writes the error response itself
// and reports ok=false when the request cannot be answered with a full result.
func (h *HTTPHandlerImpl) runForecast(w http.ResponseWriter, r *http.Request) (*forecast.Result, bool) {
	req, err := h.parseForecastRequest(r)
	if err != nil {
		logging.Debug("Rejected forecast query", "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	req, err = h.validator.ValidateRequest(req)
	if err != nil {
		if !errors.Is(err, validation.ErrInvalidRequest) {
			logging.Warn("Unexpected validation failure", "error", err)
		}
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	result, err := h.forecaster.Forecast(r.Context(), req)
	if err != nil {
		h.respondForecastError(w, result, err)
		return nil, false
	}

	return result, true
}

func (h *HTTPHandlerImpl) parseForecastRequest(r *http.Request) (forecast.PredictionRequest, error) {
	req := forecast.PredictionRequest{
		Medicines: medicineParams(r),
		Season:    strings.TrimSpace(r.URL.Query().Get("season")),
	}
	if req.Season == "" {
		req.Season = encoder.Dry.String()
	}

	if period := r.URL.Query().Get("period"); period != "" {
		year, month, err := h.validator.ParsePeriod(period)
		if err != nil {
			return req, err
		}
		req.Year, req.Month = year, month
		return req, nil
	}

	var err error
	if req.Year, err = intParam(r, "year"); err != nil {
		return req, err
	}
	if req.Month, err = intParam(r, "month"); err != nil {
		return req, err
	}
	return req, nil
}

func (h *HTTPHandlerImpl) respondForecastError(w http.ResponseWriter, partial *forecast.Result, err error) {
	var predErr *forecast.PredictionError
	switch {
	case errors.Is(err, forecast.ErrModelUnavailable):
		RespondWithError(w, http.StatusServiceUnavailable, "No model is loaded, try again later")

	case errors.Is(err, context.Canceled):
		logging.Debug("Forecast canceled by client")

	case errors.As(err, &predErr):
		if partial == nil {
			partial = &forecast.Result{}
		}
		RespondWithJSON(w, http.StatusBadGateway, PartialForecastResponse{
			ErrorResponse: ErrorResponse{
				Error:   http.StatusText(http.StatusBadGateway),
				Message: predErr.Error(),
				Code:    http.StatusBadGateway,
			},
			Medicine: predErr.Medicine,
			Month:    predErr.Month,
			Points:   partial.Points(),
			Trend:    partial.Trend(),
		})

	default:
		logging.Error("Forecast failed", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Forecast failed")
	}
}

// record persists a successful run in the background. Failures are logged and never reach the client.
func (h *HTTPHandlerImpl) record(ctx context.Context, runID string, result *forecast.Result) {
	if h.recorder == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	h.pending.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, recordTimeout)
		defer cancel()

		if err := h.recorder.Record(ctx, runID, result); err != nil {
			logging.Warn("Failed to record forecast run", "run_id", runID, "error", err)
		}
	})
}

// Wait blocks until every background recording has finished
func (h *HTTPHandlerImpl) Wait() {
	h.pending.Wait()
}
