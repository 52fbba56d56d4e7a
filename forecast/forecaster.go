package forecast

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/logging"
	"github.com/Yafet01/drug-prescription-app/metrics"
)

// Forecaster orchestrates encoder and model calls. All per-request state is local to Forecast,
// so one Forecaster serves overlapping requests.
type Forecaster struct {
	models  ModelProvider
	catalog Catalog
	encoder *encoder.Encoder
	workers int
}

// NewForecaster creates a forecaster. workers > 1 forecasts that many medicines concurrently.
func NewForecaster(models ModelProvider, catalog Catalog, workers int) *Forecaster {
	if workers < 1 {
		workers = 1
	}
	return &Forecaster{
		models:  models,
		catalog: catalog,
		encoder: encoder.New(catalog),
		workers: workers,
	}
}

// Forecast computes the point estimate and twelve-month trend of every requested medicine.
//
// It fails with ErrModelUnavailable before any model call when no model is loaded. A failed model
// call is not retried: the returned *PredictionError names the medicine and month, and the result
// still holds the medicines preceding it in request order.
func (f *Forecaster) Forecast(ctx context.Context, req PredictionRequest) (*Result, error) {
	model, ok := f.models.CurrentModel()
	if !ok || model == nil {
		metrics.ForecastsTotal.WithLabelValues(metrics.OutcomeModelUnavailable).Inc()
		return nil, ErrModelUnavailable
	}

	start := time.Now()
	forecasts, err := f.forecastAll(ctx, model, req)

	result := &Result{
		Request:   req,
		Medicines: forecasts,
	}

	if err != nil {
		metrics.ForecastsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		logging.Warn("Forecast failed",
			"error", err,
			"completed_medicines", len(forecasts),
			"requested_medicines", len(req.Medicines))
		return result, err
	}

	metrics.ForecastsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logging.Debug("Forecast completed",
		"year", req.Year,
		"month", req.Month,
		"season", encoder.ParseSeason(req.Season).String(),
		"medicines", len(req.Medicines),
		"duration", time.Since(start).String())

	return result, nil
}

// forecastAll returns the forecasts preceding the first failure in request order, so the output
// does not depend on the worker count
func (f *Forecaster) forecastAll(ctx context.Context, model Model, req PredictionRequest) ([]MedicineForecast, error) {
	n := len(req.Medicines)
	out := make([]MedicineForecast, n)

	if f.workers == 1 || n < 2 {
		for i, medicine := range req.Medicines {
			mf, err := f.forecastMedicine(ctx, model, req, medicine)
			if err != nil {
				return out[:i], err
			}
			out[i] = mf
		}
		return out, nil
	}

	errs := make([]error, n)
	sem := make(chan struct{}, f.workers)
	var wg sync.WaitGroup

	for i, medicine := range req.Medicines {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, medicine string) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i], errs[i] = f.forecastMedicine(ctx, model, req, medicine)
		}(i, medicine)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return out[:i], err
		}
	}
	return out, nil
}

func (f *Forecaster) forecastMedicine(ctx context.Context, model Model, req PredictionRequest, medicine string) (MedicineForecast, error) {
	disease, hasDisease := f.catalog.DiseaseOf(medicine)

	point := f.encoder.Encode(req.Year, req.Month, medicine, req.Season)
	raw, err := f.predictOne(ctx, model, point, medicine, req.Month)
	if err != nil {
		return MedicineForecast{}, err
	}

	trend := make([]TrendPoint, 0, encoder.MonthsPerYear)
	for i, row := range f.encoder.EncodeTrend(req.Year, medicine, req.Season) {
		month := i + 1
		value, err := f.predictOne(ctx, model, row, medicine, month)
		if err != nil {
			return MedicineForecast{}, err
		}
		trend = append(trend, TrendPoint{Month: month, Predicted: value})
	}

	return MedicineForecast{
		Medicine:   medicine,
		Disease:    disease,
		HasDisease: hasDisease,
		Month:      req.Month,
		Predicted:  Round(raw),
		Raw:        raw,
		Trend:      trend,
	}, nil
}

// predictOne invokes the model with a single-row matrix
func (f *Forecaster) predictOne(ctx context.Context, model Model, row encoder.FeatureVector, medicine string, month int) (float64, error) {
	start := time.Now()
	values, err := model.Predict(ctx, []encoder.FeatureVector{row})
	metrics.ModelPredictionDuration.Observe(time.Since(start).Seconds())

	if err == nil && len(values) != 1 {
		err = fmt.Errorf("model returned %d predictions for 1 row", len(values))
	}
	if err == nil && (math.IsNaN(values[0]) || math.IsInf(values[0], 0)) {
		err = fmt.Errorf("model returned non-finite prediction %v", values[0])
	}
	if err != nil {
		metrics.ModelPredictionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return 0, &PredictionError{Medicine: medicine, Month: month, Err: err}
	}

	metrics.ModelPredictionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return values[0], nil
}

// Round rounds a prediction to the nearest integer for display, halves to even
func Round(v float64) int64 {
	return decimal.NewFromFloat(v).RoundBank(0).IntPart()
}
