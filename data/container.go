// Package data provides thread-safe storage of the process-wide resources of the forecast service.
// It includes the DataContainer struct with atomic operations for zero-downtime model and
// records reloads.
package data

import (
	"sync/atomic"
	"time"

	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/interfaces"
	"github.com/Yafet01/drug-prescription-app/logging"
	"github.com/Yafet01/drug-prescription-app/metrics"
	"github.com/Yafet01/drug-prescription-app/records"
)

// Compile-time checks to ensure DataContainer implements the store contracts
var (
	_ interfaces.ModelStore  = (*DataContainer)(nil)
	_ interfaces.RecordStore = (*DataContainer)(nil)
)

// modelSnapshot keeps the model and its info consistent across one swap
type modelSnapshot struct {
	model forecast.Model
	info  interfaces.ModelInfo
}

type recordsSnapshot struct {
	records []records.Record
	summary records.Summary
	stats   records.ParseStats
}

// DataContainer holds all the data with atomic pointers for zero-downtime updates
type DataContainer struct {
	model           atomic.Pointer[modelSnapshot]
	records         atomic.Pointer[recordsSnapshot]
	lastUpdated     atomic.Value // time.Time
	recordsUpdated  atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with no model and an empty record set
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.records.Store(&recordsSnapshot{
		records: make([]records.Record, 0),
		summary: records.Summarize(nil),
	})
	dc.lastUpdated.Store(time.Time{})
	dc.recordsUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{}) // Initialize with zero value
	metrics.ModelLoaded.Set(0)
	return dc
}

// Thread-safe getters with type check

// CurrentModel implements forecast.ModelProvider
func (dc *DataContainer) CurrentModel() (forecast.Model, bool) {
	snapshot := dc.model.Load()
	if snapshot == nil || snapshot.model == nil {
		return nil, false
	}
	return snapshot.model, true
}

// ModelInfo returns the info of the loaded model
func (dc *DataContainer) ModelInfo() (interfaces.ModelInfo, bool) {
	snapshot := dc.model.Load()
	if snapshot == nil || snapshot.model == nil {
		return interfaces.ModelInfo{}, false
	}
	return snapshot.info, true
}

// StoreModel atomically replaces the model. A nil model marks the service model-unavailable.
func (dc *DataContainer) StoreModel(model forecast.Model, info interfaces.ModelInfo) {
	// Atomic swap (zero downtime replacement)
	dc.model.Store(&modelSnapshot{model: model, info: info})
	dc.lastUpdated.Store(time.Now())

	if model == nil {
		metrics.ModelLoaded.Set(0)
		return
	}
	metrics.ModelLoaded.Set(1)
}

// GetRecords returns the historical records
func (dc *DataContainer) GetRecords() []records.Record {
	if snapshot := dc.records.Load(); snapshot != nil {
		return snapshot.records
	}

	logging.Warn("Records list is empty or invalid")
	return []records.Record{}
}

// GetSummary returns the precomputed summary of the historical records
func (dc *DataContainer) GetSummary() records.Summary {
	if snapshot := dc.records.Load(); snapshot != nil {
		return snapshot.summary
	}
	return records.Summarize(nil)
}

// GetParseStats returns the parse statistics of the last records load
func (dc *DataContainer) GetParseStats() records.ParseStats {
	if snapshot := dc.records.Load(); snapshot != nil {
		return snapshot.stats
	}
	return records.ParseStats{}
}

// UpdateRecords atomically replaces the records and their summary
func (dc *DataContainer) UpdateRecords(recs []records.Record, stats records.ParseStats) {
	if recs == nil {
		recs = make([]records.Record, 0)
	}
	dc.records.Store(&recordsSnapshot{
		records: recs,
		summary: records.Summarize(recs),
		stats:   stats,
	})
	dc.recordsUpdated.Store(time.Now())
}

// GetLastUpdated returns the timestamp of the last model swap
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// GetRecordsUpdated returns the timestamp of the last records swap
func (dc *DataContainer) GetRecordsUpdated() time.Time {
	if v := dc.recordsUpdated.Load(); v != nil {
		if updated, ok := v.(time.Time); ok {
			return updated
		}
	}
	return time.Time{}
}

// IsUpdating returns true if a reload is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// BeginUpdate marks the start of a reload
// Returns true if the reload can proceed, false if another one is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
