package core

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	PreprocessorStage = "preprocessor"
	ModelStage        = "model"
)

type NamedStage struct {
	Name  string
	Stage any
}

// Pipeline chains a preprocessor and a model. The preprocessor is fit only
// inside Pipeline.Fit; Predict reuses its learned parameters as they are.
type Pipeline struct {
	Preprocessor Transformer
	Model        Classifier
	Fitted       bool
}

var _ Classifier = (*Pipeline)(nil)

func NewPipeline(preprocessor Transformer, model Classifier) *Pipeline {
	return &Pipeline{Preprocessor: preprocessor, Model: model}
}

// GetPipe builds an unfitted standard scaler + random forest pipeline.
func GetPipe(opts ...ModelOption) *Pipeline {
	return NewPipeline(GetPreprocessor(), GetModel(opts...))
}

func (p *Pipeline) Stages() []NamedStage {
	return []NamedStage{
		{Name: PreprocessorStage, Stage: p.Preprocessor},
		{Name: ModelStage, Stage: p.Model},
	}
}

func (p *Pipeline) StageNames() []string {
	stages := p.Stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

func (p *Pipeline) Stage(name string) (any, bool) {
	for _, s := range p.Stages() {
		if s.Name == name {
			return s.Stage, true
		}
	}
	return nil, false
}

func (p *Pipeline) Fit(X mat.Matrix, y []int) error {
	p.Fitted = false

	if err := p.Preprocessor.Fit(X); err != nil {
		return fmt.Errorf("error fitting %s: %w", PreprocessorStage, err)
	}

	transformed, err := p.Preprocessor.Transform(X)
	if err != nil {
		return fmt.Errorf("error transforming training data: %w", err)
	}

	if err := p.Model.Fit(transformed, y); err != nil {
		return fmt.Errorf("error fitting %s: %w", ModelStage, err)
	}

	p.Fitted = true
	return nil
}

func (p *Pipeline) Predict(X mat.Matrix) ([]int, error) {
	if !p.Fitted {
		return nil, fmt.Errorf("pipeline: %w", ErrNotFitted)
	}

	transformed, err := p.Preprocessor.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("error applying %s: %w", PreprocessorStage, err)
	}

	return p.Model.Predict(transformed)
}
