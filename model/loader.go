package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/interfaces"
)

var (
	_ interfaces.ModelLoader = (*FileLoader)(nil)
	_ interfaces.ModelLoader = (*RemoteLoader)(nil)
)

// FileLoader loads a LinearModel from a YAML artifact on disk
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: filepath.Clean(path)}
}

func (l *FileLoader) Source() string {
	return "file://" + l.path
}

// Load implements interfaces.ModelLoader
func (l *FileLoader) Load(ctx context.Context) (forecast.Model, interfaces.ModelInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, interfaces.ModelInfo{}, err
	}

	file, err := os.Open(l.path)
	if err != nil {
		return nil, interfaces.ModelInfo{}, fmt.Errorf("failed to open model artifact: %w", err)
	}
	defer file.Close()

	model, err := DecodeLinearModel(file)
	if err != nil {
		return nil, interfaces.ModelInfo{}, fmt.Errorf("failed to load %s: %w", l.path, err)
	}

	return model, interfaces.ModelInfo{
		Name:         model.Name(),
		Version:      model.Version(),
		Source:       l.Source(),
		FeatureCount: encoder.FeatureCount,
		LoadedAt:     time.Now(),
	}, nil
}

// RemoteLoader connects to an inference service and checks its feature layout
type RemoteLoader struct {
	baseURL string
	timeout time.Duration
}

func NewRemoteLoader(baseURL string, timeout time.Duration) *RemoteLoader {
	return &RemoteLoader{baseURL: baseURL, timeout: timeout}
}

func (l *RemoteLoader) Source() string {
	return l.baseURL
}

// Load implements interfaces.ModelLoader
func (l *RemoteLoader) Load(ctx context.Context) (forecast.Model, interfaces.ModelInfo, error) {
	client := NewHTTPModel(l.baseURL, l.timeout)

	meta, err := client.Metadata(ctx)
	if err != nil {
		return nil, interfaces.ModelInfo{}, err
	}

	if meta.NFeaturesIn != encoder.FeatureCount {
		return nil, interfaces.ModelInfo{}, fmt.Errorf("%w: service expects %d features, want %d",
			ErrFeatureMismatch, meta.NFeaturesIn, encoder.FeatureCount)
	}
	if len(meta.FeatureNames) > 0 {
		if err := CheckFeatureNames(meta.FeatureNames); err != nil {
			return nil, interfaces.ModelInfo{}, err
		}
	}

	return client, interfaces.ModelInfo{
		Name:         meta.Name,
		Version:      meta.Version,
		Source:       l.Source(),
		FeatureCount: meta.NFeaturesIn,
		LoadedAt:     time.Now(),
	}, nil
}

// NewLoader picks the remote loader when url is set, the file loader otherwise
func NewLoader(path, url string, timeout time.Duration) interfaces.ModelLoader {
	if url != "" {
		return NewRemoteLoader(url, timeout)
	}
	return NewFileLoader(path)
}
