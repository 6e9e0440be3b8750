package core

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

//go:embed data/iris.csv
var irisCSV string

// Dataset is an immutable labeled feature table. Labels index into ClassNames.
type Dataset struct {
	Features     *mat.Dense
	Labels       []int
	FeatureNames []string
	ClassNames   []string
}

// DatasetSource produces the dataset for one training run.
type DatasetSource func() (*Dataset, error)

// LoadIris returns the built-in four feature, three class iris table.
func LoadIris() (*Dataset, error) {
	return LoadCSV(strings.NewReader(irisCSV))
}

// LoadCSV reads a header row followed by rows of numeric features with the
// class name in the last column. Classes are numbered in order of first
// appearance.
func LoadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dataset is empty")
		}
		return nil, fmt.Errorf("error reading dataset header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("dataset header must have at least one feature and a label column, got %d columns", len(header))
	}

	nFeatures := len(header) - 1
	classIndex := make(map[string]int)

	var (
		values     []float64
		labels     []int
		classNames []string
	)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading dataset line %d: %w", line, err)
		}

		for j := 0; j < nFeatures; j++ {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value for %s on line %d: %w", header[j], line, err)
			}
			values = append(values, v)
		}

		class := record[nFeatures]
		idx, ok := classIndex[class]
		if !ok {
			idx = len(classNames)
			classIndex[class] = idx
			classNames = append(classNames, class)
		}
		labels = append(labels, idx)
	}

	if len(labels) == 0 {
		return nil, fmt.Errorf("dataset has no rows")
	}

	return &Dataset{
		Features:     mat.NewDense(len(labels), nFeatures, values),
		Labels:       labels,
		FeatureNames: header[:nFeatures],
		ClassNames:   classNames,
	}, nil
}

func (d *Dataset) Len() int {
	return len(d.Labels)
}

func (d *Dataset) NumFeatures() int {
	_, c := d.Features.Dims()
	return c
}

func (d *Dataset) NumClasses() int {
	return len(d.ClassNames)
}

// Subset copies the given rows into a new dataset that keeps the full class
// list, even if some classes are absent from the selected rows.
func (d *Dataset) Subset(rows []int) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot take an empty subset")
	}

	features := mat.NewDense(len(rows), d.NumFeatures(), nil)
	labels := make([]int, len(rows))
	for i, row := range rows {
		if row < 0 || row >= d.Len() {
			return nil, fmt.Errorf("row %d out of range [0, %d)", row, d.Len())
		}
		features.SetRow(i, d.Features.RawRowView(row))
		labels[i] = d.Labels[row]
	}

	return &Dataset{
		Features:     features,
		Labels:       labels,
		FeatureNames: d.FeatureNames,
		ClassNames:   d.ClassNames,
	}, nil
}

func (d *Dataset) validate() error {
	if d == nil || d.Features == nil {
		return fmt.Errorf("dataset has no feature matrix")
	}
	rows, _ := d.Features.Dims()
	if rows != len(d.Labels) {
		return fmt.Errorf("dataset has %d feature rows but %d labels", rows, len(d.Labels))
	}
	for i, label := range d.Labels {
		if label < 0 || label >= len(d.ClassNames) {
			return fmt.Errorf("label %d on row %d is outside the %d known classes", label, i, len(d.ClassNames))
		}
	}
	return nil
}
