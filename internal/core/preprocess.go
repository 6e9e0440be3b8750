package core

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotFitted       = errors.New("stage has not been fitted")
	ErrFeatureMismatch = errors.New("feature count mismatch")
)

// Transformer is a stage that learns parameters from training data and then
// applies them unchanged to any later input.
type Transformer interface {
	Fit(X mat.Matrix) error

	Transform(X mat.Matrix) (*mat.Dense, error)
}

// Classifier is a stage that learns to map feature rows to class labels.
type Classifier interface {
	Fit(X mat.Matrix, y []int) error

	Predict(X mat.Matrix) ([]int, error)
}

// StandardScaler centers each feature on its mean and divides by its
// population standard deviation.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

var _ Transformer = (*StandardScaler)(nil)

func GetPreprocessor() *StandardScaler {
	return &StandardScaler{}
}

func (s *StandardScaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("cannot fit scaler on empty input (%dx%d)", rows, cols)
	}

	mean := make([]float64, cols)
	scale := make([]float64, cols)
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, X)
		if floats.HasNaN(column) {
			return fmt.Errorf("feature %d contains NaN values", j)
		}

		m, variance := stat.PopMeanVariance(column, nil)
		std := math.Sqrt(variance)
		if std == 0 || math.IsNaN(std) {
			// constant features pass through centered but unscaled
			std = 1
		}
		mean[j], scale[j] = m, std
	}

	s.Mean, s.Scale = mean, scale
	return nil
}

func (s *StandardScaler) Fitted() bool {
	return len(s.Mean) > 0 && len(s.Mean) == len(s.Scale)
}

func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !s.Fitted() {
		return nil, fmt.Errorf("scaler: %w", ErrNotFitted)
	}

	rows, cols := X.Dims()
	if rows == 0 {
		return nil, fmt.Errorf("cannot transform empty input")
	}
	if cols != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrFeatureMismatch, len(s.Mean), cols)
	}

	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)

	return out, nil
}
