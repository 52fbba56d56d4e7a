// Package forecast turns single-point model predictions into per-medicine point estimates and
// twelve-month trends, reshaped into the two tables the dashboard renders.
package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/Yafet01/drug-prescription-app/encoder"
)

// Model is the pre-trained regression model: one output per input row, in input order
type Model interface {
	Predict(ctx context.Context, rows []encoder.FeatureVector) ([]float64, error)
}

// ModelProvider hands out the currently loaded model. ok is false when no model is loaded.
type ModelProvider interface {
	CurrentModel() (model Model, ok bool)
}

// Catalog is the medicine vocabulary as seen by the forecaster
type Catalog interface {
	encoder.Catalog
	DiseaseOf(medicine string) (string, bool)
}

// PredictionRequest is one dashboard request
type PredictionRequest struct {
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	Medicines []string `json:"medicines"`
	Season    string   `json:"season"`
}

// TrendPoint is one month of a medicine's trend
type TrendPoint struct {
	Month     int     `json:"month"`
	Predicted float64 `json:"predicted_quantity"`
}

// MedicineForecast is the outcome for one selected medicine
type MedicineForecast struct {
	Medicine   string       `json:"medicine"`
	Disease    string       `json:"disease,omitempty"`
	HasDisease bool         `json:"-"`
	Month      int          `json:"month"`
	Predicted  int64        `json:"predicted_quantity"`
	Raw        float64      `json:"raw_prediction"`
	Trend      []TrendPoint `json:"trend"`
}

// PointRow is a row of the wide point-estimate table
type PointRow struct {
	Month     int    `json:"month"`
	Medicine  string `json:"medicine"`
	Disease   string `json:"disease,omitempty"`
	Predicted int64  `json:"predicted_quantity"`
}

// TrendRow is a row of the long trend table, keyed on medicine as the chart series
type TrendRow struct {
	Month     int     `json:"month"`
	Medicine  string  `json:"medicine"`
	Predicted float64 `json:"predicted_quantity"`
}

// Result holds the forecasts of every processed medicine, in request order
type Result struct {
	Request   PredictionRequest  `json:"request"`
	Medicines []MedicineForecast `json:"medicines"`
}

// Points returns one row per medicine for tabular display
func (r *Result) Points() []PointRow {
	rows := make([]PointRow, 0, len(r.Medicines))
	for _, m := range r.Medicines {
		rows = append(rows, PointRow{
			Month:     m.Month,
			Medicine:  m.Medicine,
			Disease:   m.Disease,
			Predicted: m.Predicted,
		})
	}
	return rows
}

// Trend returns one row per (month, medicine) pair, months ascending within each medicine
func (r *Result) Trend() []TrendRow {
	rows := make([]TrendRow, 0, len(r.Medicines)*encoder.MonthsPerYear)
	for _, m := range r.Medicines {
		for _, p := range m.Trend {
			rows = append(rows, TrendRow{
				Month:     p.Month,
				Medicine:  m.Medicine,
				Predicted: p.Predicted,
			})
		}
	}
	return rows
}

var (
	// ErrModelUnavailable is returned before any prediction when no model is loaded
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrPredictionFailed matches every *PredictionError via errors.Is
	ErrPredictionFailed = errors.New("prediction failed")
)

// PredictionError reports the medicine and month of a failed model invocation
type PredictionError struct {
	Medicine string
	Month    int
	Err      error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed for %s (month %d): %v", e.Medicine, e.Month, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPredictionFailed) true
func (e *PredictionError) Is(target error) bool {
	return target == ErrPredictionFailed
}
