package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ModelOptions is the serializable form of the forest construction options.
// Zero values (and nil pointers) leave the defaults in place.
type ModelOptions struct {
	NEstimators     int    `yaml:"n_estimators" json:"n_estimators,omitempty"`
	RandomState     *int64 `yaml:"random_state" json:"random_state,omitempty"`
	MaxDepth        int    `yaml:"max_depth" json:"max_depth,omitempty"`
	MinSamplesSplit int    `yaml:"min_samples_split" json:"min_samples_split,omitempty"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf" json:"min_samples_leaf,omitempty"`
	MaxFeatures     int    `yaml:"max_features" json:"max_features,omitempty"`
	Bootstrap       *bool  `yaml:"bootstrap" json:"bootstrap,omitempty"`
}

func (o ModelOptions) Options() []ModelOption {
	var opts []ModelOption
	if o.NEstimators != 0 {
		opts = append(opts, WithNEstimators(o.NEstimators))
	}
	if o.RandomState != nil {
		opts = append(opts, WithRandomState(*o.RandomState))
	}
	if o.MaxDepth != 0 {
		opts = append(opts, WithMaxDepth(o.MaxDepth))
	}
	if o.MinSamplesSplit != 0 {
		opts = append(opts, WithMinSamplesSplit(o.MinSamplesSplit))
	}
	if o.MinSamplesLeaf != 0 {
		opts = append(opts, WithMinSamplesLeaf(o.MinSamplesLeaf))
	}
	if o.MaxFeatures != 0 {
		opts = append(opts, WithMaxFeatures(o.MaxFeatures))
	}
	if o.Bootstrap != nil {
		opts = append(opts, WithBootstrap(*o.Bootstrap))
	}
	return opts
}

// Resolved returns the options with every default filled in, as recorded
// alongside experiment runs.
func (o ModelOptions) Resolved() ModelOptions {
	f := GetModel(o.Options()...)
	return ModelOptions{
		NEstimators:     f.NEstimators,
		RandomState:     &f.RandomState,
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		MinSamplesLeaf:  f.MinSamplesLeaf,
		MaxFeatures:     f.MaxFeatures,
		Bootstrap:       &f.Bootstrap,
	}
}

func LoadModelOptions(path string) (ModelOptions, error) {
	var opts ModelOptions

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("error reading model options %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(data, &opts); err != nil {
		return opts, fmt.Errorf("error parsing model options %s: %w", path, err)
	}

	return opts, nil
}
