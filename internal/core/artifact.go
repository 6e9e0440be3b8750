package core

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	ArtifactVersion = 1
	ArtifactName    = "model.bst"
)

func init() {
	gob.Register(&StandardScaler{})
	gob.Register(&RandomForest{})
}

// Artifact is the persisted form of a fitted pipeline.
type Artifact struct {
	Version      int
	CreatedAt    time.Time
	FeatureNames []string
	ClassNames   []string
	Pipeline     *Pipeline
}

func NewArtifact(pipe *Pipeline, featureNames, classNames []string) *Artifact {
	return &Artifact{
		Version:      ArtifactVersion,
		CreatedAt:    time.Now().UTC(),
		FeatureNames: featureNames,
		ClassNames:   classNames,
		Pipeline:     pipe,
	}
}

func (a *Artifact) Predict(X mat.Matrix) ([]int, error) {
	return a.Pipeline.Predict(X)
}

// Labels maps predicted class indices to class names.
func (a *Artifact) Labels(preds []int) []string {
	labels := make([]string, len(preds))
	for i, p := range preds {
		if p >= 0 && p < len(a.ClassNames) {
			labels[i] = a.ClassNames[p]
		}
	}
	return labels
}

func EncodeArtifact(w io.Writer, a *Artifact) error {
	if a.Pipeline == nil || !a.Pipeline.Fitted {
		return fmt.Errorf("refusing to encode artifact: %w", ErrNotFitted)
	}
	if err := gob.NewEncoder(w).Encode(a); err != nil {
		return fmt.Errorf("error encoding artifact: %w", err)
	}
	return nil
}

func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := gob.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("error decoding artifact: %w", err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d (expected %d)", a.Version, ArtifactVersion)
	}
	if a.Pipeline == nil || !a.Pipeline.Fitted {
		return nil, fmt.Errorf("artifact does not contain a fitted pipeline")
	}
	return &a, nil
}

// SaveArtifact writes to a temporary file next to path and renames it into
// place, so readers only ever see a complete artifact. Parent directories are
// created as needed.
func SaveArtifact(path string, a *Artifact) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("error creating artifact directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("error creating temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err := EncodeArtifact(buf, a); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("error writing artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("error syncing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error moving artifact into place at %s: %w", path, err)
	}
	return nil
}

func LoadArtifact(path string) (*Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening artifact %s: %w", path, err)
	}
	defer file.Close()

	return DecodeArtifact(bufio.NewReader(file))
}
