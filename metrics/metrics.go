// Package metrics provides Prometheus metrics for the forecast service.
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Model metrics:
//   - model_predictions_total: Counter of model invocations by outcome
//   - model_prediction_duration_seconds: Histogram of a single invocation
//   - model_loaded: 1 when a model is available, 0 otherwise
//   - forecasts_total: Counter of forecast requests by outcome
//
// All metrics are registered with the Prometheus default registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (clients seen since last cleanup)",
		},
	)

	ModelPredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_predictions_total",
			Help: "Model invocations by outcome",
		},
		[]string{"outcome"},
	)

	ModelPredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_prediction_duration_seconds",
			Help:    "Latency of a single model invocation",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2.5},
		},
	)

	ModelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "1 when a model is loaded and serving, 0 otherwise",
		},
	)

	ForecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecasts_total",
			Help: "Forecast requests by outcome",
		},
		[]string{"outcome"},
	)
)

// Outcome label values
const (
	OutcomeSuccess          = "success"
	OutcomeError            = "error"
	OutcomeModelUnavailable = "model_unavailable"
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(ModelPredictionsTotal)
	prometheus.MustRegister(ModelPredictionDuration)
	prometheus.MustRegister(ModelLoaded)
	prometheus.MustRegister(ForecastsTotal)
}
