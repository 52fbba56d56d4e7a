package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/interfaces"
	"github.com/Yafet01/drug-prescription-app/logging"
	"github.com/Yafet01/drug-prescription-app/records"
)

type constantModel float64

func (m constantModel) Predict(_ context.Context, rows []encoder.FeatureVector) ([]float64, error) {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = float64(m)
	}
	return out, nil
}

type otherModel struct{}

func (otherModel) Predict(_ context.Context, rows []encoder.FeatureVector) ([]float64, error) {
	return make([]float64, len(rows)), nil
}

func TestNewDataContainer(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()

	if dc == nil {
		t.Fatal("NewDataContainer returned nil")
	}

	// Test initial state
	if dc.IsUpdating() {
		t.Error("NewDataContainer should not be updating")
	}

	if !dc.GetLastUpdated().IsZero() {
		t.Error("NewDataContainer should have zero lastUpdated time")
	}

	if _, ok := dc.CurrentModel(); ok {
		t.Error("NewDataContainer should have no model")
	}

	if _, ok := dc.ModelInfo(); ok {
		t.Error("NewDataContainer should have no model info")
	}

	if len(dc.GetRecords()) != 0 {
		t.Error("NewDataContainer should have empty records")
	}

	if dc.GetSummary().TotalRecords != 0 {
		t.Error("NewDataContainer should have an empty summary")
	}

	if !dc.GetRecordsUpdated().IsZero() {
		t.Error("NewDataContainer should have zero recordsUpdated time")
	}
}

func TestStoreModel(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	info := interfaces.ModelInfo{Name: "linear", Version: "1", FeatureCount: encoder.FeatureCount}

	dc.StoreModel(constantModel(5), info)

	model, ok := dc.CurrentModel()
	if !ok {
		t.Fatal("Expected a model after StoreModel")
	}
	out, err := model.Predict(context.Background(), []encoder.FeatureVector{{}})
	if err != nil || out[0] != 5 {
		t.Errorf("Unexpected prediction %v, %v", out, err)
	}

	gotInfo, ok := dc.ModelInfo()
	if !ok || gotInfo != info {
		t.Errorf("Expected info %+v, got %+v", info, gotInfo)
	}

	if dc.GetLastUpdated().IsZero() {
		t.Error("Expected lastUpdated to be set")
	}

	// Different concrete model types can be swapped in
	dc.StoreModel(otherModel{}, interfaces.ModelInfo{Name: "other"})
	if gotInfo, _ := dc.ModelInfo(); gotInfo.Name != "other" {
		t.Errorf("Expected model 'other', got %q", gotInfo.Name)
	}

	dc.StoreModel(nil, interfaces.ModelInfo{})
	if _, ok := dc.CurrentModel(); ok {
		t.Error("Expected no model after storing nil")
	}
}

func TestUpdateRecords(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()

	recs := []records.Record{
		{Medicine: "Aspirin", Quantity: 2},
		{Medicine: "Aspirin", Quantity: 4},
		{Medicine: "Metformin", Quantity: 9},
	}
	dc.UpdateRecords(recs, records.ParseStats{Lines: 4, Parsed: 3, SkippedFormatErrors: 1})

	if len(dc.GetRecords()) != 3 {
		t.Errorf("Expected 3 records, got %d", len(dc.GetRecords()))
	}

	summary := dc.GetSummary()
	if summary.TotalRecords != 3 || summary.UniqueMedicines != 2 || summary.MaxQuantity != 9 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	if dc.GetParseStats().SkippedFormatErrors != 1 {
		t.Errorf("Expected 1 skipped row, got %+v", dc.GetParseStats())
	}

	if dc.GetRecordsUpdated().IsZero() {
		t.Error("Expected recordsUpdated to be set")
	}

	dc.UpdateRecords(nil, records.ParseStats{})
	if dc.GetRecords() == nil {
		t.Error("GetRecords should never return nil")
	}
}

func TestBeginUpdateEndUpdate(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()

	if !dc.BeginUpdate() {
		t.Fatal("First BeginUpdate should succeed")
	}
	if !dc.IsUpdating() {
		t.Error("IsUpdating should be true after BeginUpdate")
	}
	if dc.BeginUpdate() {
		t.Error("Second BeginUpdate should fail while updating")
	}

	dc.EndUpdate()
	if dc.IsUpdating() {
		t.Error("IsUpdating should be false after EndUpdate")
	}
	if !dc.BeginUpdate() {
		t.Error("BeginUpdate should succeed after EndUpdate")
	}
	dc.EndUpdate()
}

func TestServerStartTime(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	if !dc.GetServerStartTime().IsZero() {
		t.Error("Expected zero server start time")
	}

	start := time.Now()
	dc.SetServerStartTime(start)
	if !dc.GetServerStartTime().Equal(start) {
		t.Errorf("Expected %v, got %v", start, dc.GetServerStartTime())
	}
}

func TestConcurrentReadsDuringSwap(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	dc.StoreModel(constantModel(1), interfaces.ModelInfo{Name: "v1"})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}

				model, ok := dc.CurrentModel()
				if !ok {
					t.Errorf("Reader %d: model disappeared during swap", id)
					return
				}
				if _, err := model.Predict(context.Background(), []encoder.FeatureVector{{}}); err != nil {
					t.Errorf("Reader %d: unexpected error %v", id, err)
					return
				}
				_ = dc.GetSummary()
			}
		}(i)
	}

	for i := 0; i < 100; i++ {
		if dc.BeginUpdate() {
			dc.StoreModel(constantModel(float64(i)), interfaces.ModelInfo{Name: "reload"})
			dc.UpdateRecords([]records.Record{{Medicine: "Aspirin", Quantity: float64(i)}}, records.ParseStats{Parsed: 1})
			dc.EndUpdate()
		}
	}

	close(stop)
	wg.Wait()

	if info, _ := dc.ModelInfo(); info.Name != "reload" {
		t.Errorf("Expected final model 'reload', got %q", info.Name)
	}
}
