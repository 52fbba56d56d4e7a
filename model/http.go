package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/logging"
)

var _ forecast.Model = (*HTTPModel)(nil)

// maxResponseSize bounds what is read from the inference service
const maxResponseSize = 1 << 20

// Metadata is what the inference service reports about its model
type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	NFeaturesIn  int      `json:"n_features_in"`
	FeatureNames []string `json:"feature_names"`
}

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// HTTPModel calls an external inference service:
// GET {base}/metadata and POST {base}/predict.
type HTTPModel struct {
	baseURL string
	client  *http.Client
}

// NewHTTPModel creates a client for the service at baseURL
func NewHTTPModel(baseURL string, timeout time.Duration) *HTTPModel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Metadata fetches the service metadata
func (m *HTTPModel) Metadata(ctx context.Context) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/metadata", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata request: %w", err)
	}

	var meta Metadata
	if err := m.do(req, &meta); err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	return &meta, nil
}

// Predict implements forecast.Model
func (m *HTTPModel) Predict(ctx context.Context, rows []encoder.FeatureVector) ([]float64, error) {
	instances := make([][]float64, len(rows))
	for i, row := range rows {
		instances[i] = row.Slice()
	}

	body, err := json.Marshal(predictRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp predictResponse
	if err := m.do(req, &resp); err != nil {
		return nil, fmt.Errorf("predict request failed: %w", err)
	}

	if len(resp.Predictions) != len(rows) {
		return nil, fmt.Errorf("inference service returned %d predictions for %d rows", len(resp.Predictions), len(rows))
	}
	return resp.Predictions, nil
}

func (m *HTTPModel) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
