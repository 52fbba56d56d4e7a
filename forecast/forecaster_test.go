package forecast

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/vocabulary"
)

// funcModel adapts a per-row function to Model and counts invocations
type funcModel struct {
	fn    func(row encoder.FeatureVector) (float64, error)
	calls atomic.Int64
}

func (m *funcModel) Predict(_ context.Context, rows []encoder.FeatureVector) ([]float64, error) {
	m.calls.Add(1)
	out := make([]float64, len(rows))
	for i, row := range rows {
		v, err := m.fn(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func constantModel(v float64) *funcModel {
	return &funcModel{fn: func(encoder.FeatureVector) (float64, error) { return v, nil }}
}

type staticProvider struct {
	model Model
}

func (p staticProvider) CurrentModel() (Model, bool) {
	return p.model, p.model != nil
}

func newTestForecaster(m Model, workers int) *Forecaster {
	return NewForecaster(staticProvider{model: m}, vocabulary.Default(), workers)
}

func TestForecastConstantModel(t *testing.T) {
	model := constantModel(100)
	f := newTestForecaster(model, 1)

	result, err := f.Forecast(context.Background(), PredictionRequest{
		Year:      2025,
		Month:     3,
		Medicines: []string{"Aspirin"},
		Season:    "Dry",
	})
	require.NoError(t, err)
	require.Len(t, result.Medicines, 1)

	mf := result.Medicines[0]
	assert.Equal(t, "Aspirin", mf.Medicine)
	assert.Equal(t, "Pain", mf.Disease)
	assert.True(t, mf.HasDisease)
	assert.Equal(t, 3, mf.Month)
	assert.Equal(t, int64(100), mf.Predicted)
	require.Len(t, mf.Trend, 12)
	for i, p := range mf.Trend {
		assert.Equal(t, i+1, p.Month)
		assert.Equal(t, 100.0, p.Predicted)
	}

	assert.Equal(t, int64(13), model.calls.Load())

	points := result.Points()
	require.Len(t, points, 1)
	assert.Equal(t, PointRow{Month: 3, Medicine: "Aspirin", Disease: "Pain", Predicted: 100}, points[0])
	assert.Len(t, result.Trend(), 12)
}

func TestForecastRowsFollowEncoding(t *testing.T) {
	var mu sync.Mutex
	var seen []encoder.FeatureVector
	model := &funcModel{fn: func(row encoder.FeatureVector) (float64, error) {
		mu.Lock()
		seen = append(seen, row)
		mu.Unlock()
		return row[1] * 10, nil
	}}
	f := newTestForecaster(model, 1)

	result, err := f.Forecast(context.Background(), PredictionRequest{
		Year:      2025,
		Month:     3,
		Medicines: []string{"Paracetamol"},
		Season:    "Wet",
	})
	require.NoError(t, err)

	enc := encoder.Default()
	require.Len(t, seen, 13)
	assert.Equal(t, enc.Encode(2025, 3, "Paracetamol", "Wet"), seen[0])
	for m := 1; m <= 12; m++ {
		assert.Equal(t, enc.Encode(2025, m, "Paracetamol", "Wet"), seen[m])
	}

	mf := result.Medicines[0]
	assert.Equal(t, int64(30), mf.Predicted)
	for i, p := range mf.Trend {
		assert.Equal(t, float64((i+1)*10), p.Predicted)
	}
}

func TestForecastUnknownMedicine(t *testing.T) {
	var mu sync.Mutex
	var seen []encoder.FeatureVector
	model := &funcModel{fn: func(row encoder.FeatureVector) (float64, error) {
		mu.Lock()
		seen = append(seen, row)
		mu.Unlock()
		return 7, nil
	}}
	f := newTestForecaster(model, 1)

	result, err := f.Forecast(context.Background(), PredictionRequest{
		Year:      2025,
		Month:     3,
		Medicines: []string{"UnknownDrug"},
		Season:    "Dry",
	})
	require.NoError(t, err)
	require.Len(t, result.Medicines, 1)

	mf := result.Medicines[0]
	assert.Equal(t, "UnknownDrug", mf.Medicine)
	assert.False(t, mf.HasDisease)
	assert.Empty(t, mf.Disease)
	assert.Equal(t, int64(7), mf.Predicted)
	assert.Len(t, mf.Trend, 12)

	require.Len(t, seen, 13)
	zero := make([]float64, encoder.FeatureCount-4)
	for i, row := range seen {
		assert.Equal(t, zero, row.Categorical(), "row %d", i)
		dry, wet := row.Season()
		assert.Equal(t, 1.0, dry, "row %d", i)
		assert.Equal(t, 0.0, wet, "row %d", i)
	}
}

func TestForecastPreservesRequestOrder(t *testing.T) {
	medicines := []string{"Metformin", "Aspirin", "Cetirizine", "Ibuprofen", "Omeprazole"}

	for _, workers := range []int{1, 4} {
		f := newTestForecaster(constantModel(1), workers)
		result, err := f.Forecast(context.Background(), PredictionRequest{
			Year:      2024,
			Month:     6,
			Medicines: medicines,
			Season:    "Wet",
		})
		require.NoError(t, err)

		var got []string
		for _, mf := range result.Medicines {
			got = append(got, mf.Medicine)
		}
		assert.Equal(t, medicines, got, "workers=%d", workers)

		trend := result.Trend()
		require.Len(t, trend, len(medicines)*12)
		for i, row := range trend {
			assert.Equal(t, medicines[i/12], row.Medicine)
			assert.Equal(t, i%12+1, row.Month)
		}
	}
}

func TestForecastDeterministic(t *testing.T) {
	model := &funcModel{fn: func(row encoder.FeatureVector) (float64, error) {
		return row[0]/100 + row[1]*1.5, nil
	}}
	req := PredictionRequest{Year: 2024, Month: 8, Medicines: []string{"Aspirin", "Salbutamol"}, Season: "Dry"}

	sequential, err := newTestForecaster(model, 1).Forecast(context.Background(), req)
	require.NoError(t, err)
	parallel, err := newTestForecaster(model, 3).Forecast(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

func TestForecastModelUnavailable(t *testing.T) {
	f := NewForecaster(staticProvider{}, vocabulary.Default(), 1)

	result, err := f.Forecast(context.Background(), PredictionRequest{
		Year:      2024,
		Month:     1,
		Medicines: []string{"Aspirin"},
		Season:    "Dry",
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.NotErrorIs(t, err, ErrPredictionFailed)
}

func TestForecastPredictionFailureKeepsPartialResult(t *testing.T) {
	boom := errors.New("boom")
	ibuprofen := vocabulary.Default().Indicators("Ibuprofen")
	model := &funcModel{fn: func(row encoder.FeatureVector) (float64, error) {
		// fail on Ibuprofen at month 4 of its trend
		isIbuprofen := false
		for i, set := range ibuprofen.Medicines {
			if set && row[11+i] == 1 {
				isIbuprofen = true
			}
		}
		if isIbuprofen && row[1] == 4 {
			return 0, boom
		}
		return 42, nil
	}}

	for _, workers := range []int{1, 3} {
		f := newTestForecaster(model, workers)
		result, err := f.Forecast(context.Background(), PredictionRequest{
			Year:      2024,
			Month:     1,
			Medicines: []string{"Aspirin", "Ibuprofen", "Cetirizine"},
			Season:    "Dry",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPredictionFailed)
		assert.ErrorIs(t, err, boom)

		var perr *PredictionError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "Ibuprofen", perr.Medicine)
		assert.Equal(t, 4, perr.Month)

		require.NotNil(t, result)
		require.Len(t, result.Medicines, 1, "workers=%d", workers)
		assert.Equal(t, "Aspirin", result.Medicines[0].Medicine)
	}
}

func TestForecastRejectsNonFinitePrediction(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		f := newTestForecaster(constantModel(v), 1)
		result, err := f.Forecast(context.Background(), PredictionRequest{
			Year:      2024,
			Month:     2,
			Medicines: []string{"Aspirin"},
			Season:    "Dry",
		})
		assert.ErrorIs(t, err, ErrPredictionFailed)
		require.NotNil(t, result)
		assert.Empty(t, result.Medicines)
	}
}

type wrongLengthModel struct{}

func (wrongLengthModel) Predict(context.Context, []encoder.FeatureVector) ([]float64, error) {
	return []float64{1, 2}, nil
}

func TestForecastRejectsWrongOutputLength(t *testing.T) {
	f := newTestForecaster(wrongLengthModel{}, 1)
	_, err := f.Forecast(context.Background(), PredictionRequest{
		Year:      2024,
		Month:     2,
		Medicines: []string{"Aspirin"},
		Season:    "Dry",
	})

	var perr *PredictionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Aspirin", perr.Medicine)
	assert.Equal(t, 2, perr.Month)
}

func TestForecastEmptySelection(t *testing.T) {
	model := constantModel(5)
	f := newTestForecaster(model, 2)

	result, err := f.Forecast(context.Background(), PredictionRequest{Year: 2024, Month: 1, Season: "Dry"})
	require.NoError(t, err)
	assert.Empty(t, result.Medicines)
	assert.Empty(t, result.Points())
	assert.Empty(t, result.Trend())
	assert.Zero(t, model.calls.Load())
}

func TestRound(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{100, 100},
		{99.4, 99},
		{99.6, 100},
		{0.5, 0},
		{1.5, 2},
		{2.5, 2},
		{-1.5, -2},
		{-0.4, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in), "Round(%v)", tt.in)
	}
}
