// Package model implements the regression models the forecaster consumes: a linear model read
// from a YAML artifact and a client for an external inference service.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/Yafet01/drug-prescription-app/encoder"
	"github.com/Yafet01/drug-prescription-app/forecast"
)

var _ forecast.Model = (*LinearModel)(nil)

// ErrFeatureMismatch is returned when a model was trained on a different feature layout
var ErrFeatureMismatch = errors.New("model feature layout does not match encoder")

// Coefficient is the weight of one named feature
type Coefficient struct {
	Feature string  `yaml:"feature"`
	Weight  float64 `yaml:"weight"`
}

// Artifact is the serialized form of a LinearModel
type Artifact struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Intercept    float64       `yaml:"intercept"`
	Coefficients []Coefficient `yaml:"coefficients"`
}

// LinearModel predicts intercept + sum(weight_i * feature_i)
type LinearModel struct {
	name      string
	version   string
	intercept float64
	weights   [encoder.FeatureCount]float64
}

// NewLinearModel builds a model from weights in encoder.FeatureNames order
func NewLinearModel(name, version string, intercept float64, weights [encoder.FeatureCount]float64) *LinearModel {
	return &LinearModel{
		name:      name,
		version:   version,
		intercept: intercept,
		weights:   weights,
	}
}

// DecodeLinearModel reads a YAML artifact. The coefficient features must be exactly
// encoder.FeatureNames, in order.
func DecodeLinearModel(r io.Reader) (*LinearModel, error) {
	var artifact Artifact
	if err := yaml.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	return FromArtifact(artifact)
}

// FromArtifact validates an artifact and builds the model
func FromArtifact(artifact Artifact) (*LinearModel, error) {
	names := make([]string, len(artifact.Coefficients))
	for i, c := range artifact.Coefficients {
		names[i] = c.Feature
	}
	if err := CheckFeatureNames(names); err != nil {
		return nil, err
	}

	if math.IsNaN(artifact.Intercept) || math.IsInf(artifact.Intercept, 0) {
		return nil, fmt.Errorf("invalid intercept %v", artifact.Intercept)
	}

	var weights [encoder.FeatureCount]float64
	for i, c := range artifact.Coefficients {
		if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return nil, fmt.Errorf("invalid weight %v for feature %s", c.Weight, c.Feature)
		}
		weights[i] = c.Weight
	}

	return NewLinearModel(artifact.Name, artifact.Version, artifact.Intercept, weights), nil
}

// Artifact returns the serializable form of the model
func (m *LinearModel) Artifact() Artifact {
	coefficients := make([]Coefficient, encoder.FeatureCount)
	for i, name := range encoder.FeatureNames {
		coefficients[i] = Coefficient{Feature: name, Weight: m.weights[i]}
	}
	return Artifact{
		Name:         m.name,
		Version:      m.version,
		Intercept:    m.intercept,
		Coefficients: coefficients,
	}
}

// Encode writes the model as a YAML artifact
func (m *LinearModel) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m.Artifact()); err != nil {
		return fmt.Errorf("failed to encode model artifact: %w", err)
	}
	return enc.Close()
}

func (m *LinearModel) Name() string    { return m.name }
func (m *LinearModel) Version() string { return m.version }

// Predict implements forecast.Model
func (m *LinearModel) Predict(ctx context.Context, rows []encoder.FeatureVector) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		sum := m.intercept
		for j, x := range row {
			sum += m.weights[j] * x
		}
		out[i] = sum
	}
	return out, nil
}

// CheckFeatureNames verifies a model's input layout against encoder.FeatureNames
func CheckFeatureNames(names []string) error {
	if len(names) != encoder.FeatureCount {
		return fmt.Errorf("%w: got %d features, want %d", ErrFeatureMismatch, len(names), encoder.FeatureCount)
	}
	for i, name := range names {
		if name != encoder.FeatureNames[i] {
			return fmt.Errorf("%w: feature %d is %q, want %q", ErrFeatureMismatch, i, name, encoder.FeatureNames[i])
		}
	}
	return nil
}
