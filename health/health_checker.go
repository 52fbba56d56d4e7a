// Package health provides health checking functionality for the forecast service.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/Yafet01/drug-prescription-app/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	models   interfaces.ModelStore
	records  interfaces.RecordStore
	interval time.Duration
}

// NewHealthChecker creates a new health checker with injected dependencies.
// interval is the model reload interval; a model older than twice that is degraded.
func NewHealthChecker(models interfaces.ModelStore, records interfaces.RecordStore, interval time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		models:   models,
		records:  records,
		interval: interval,
	}
}

// HealthCheck returns HTTP-specific health data
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	_, modelLoaded := h.models.CurrentModel()
	info, _ := h.models.ModelInfo()
	lastUpdate := h.models.GetLastUpdated()
	isUpdating := h.models.IsUpdating()

	recordCount := 0
	if h.records != nil {
		recordCount = len(h.records.GetRecords())
	}

	modelAge := time.Since(lastUpdate)

	// Degraded still serves forecasts, so it reports 200
	switch {
	case !modelLoaded:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case h.interval > 0 && modelAge > 2*h.interval:
		status = "degraded"
		httpStatus = http.StatusOK

	case recordCount == 0:
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	// Build response data (no system metrics, only model and data fields)
	data = map[string]any{
		"model_loaded":    modelLoaded,
		"records":         recordCount,
		"is_updating":     isUpdating,
		"next_reload":     h.CalculateNextReload().Format(time.RFC3339),
		"uptime_seconds":  math.Round(time.Since(h.models.GetServerStartTime()).Seconds()),
		"model_age_hours": 0.0,
	}

	if modelLoaded {
		data["model_name"] = info.Name
		data["model_version"] = info.Version
		data["model_source"] = info.Source
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["model_age_hours"] = math.Round(modelAge.Hours()*10) / 10
	}

	return status, data, httpStatus
}

// CalculateNextReload returns the next scheduled model reload time
func (h *HealthCheckerImpl) CalculateNextReload() time.Time {
	now := time.Now()
	lastUpdate := h.models.GetLastUpdated()

	if h.interval <= 0 || lastUpdate.IsZero() {
		return now.Add(h.interval)
	}

	next := lastUpdate.Add(h.interval)
	for !next.After(now) {
		next = next.Add(h.interval)
	}
	return next
}
