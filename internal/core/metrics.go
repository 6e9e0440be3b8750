package core

import (
	"fmt"
	"strings"
)

type Metrics struct {
	Accuracy        float64
	ConfusionMatrix [][]int
	ClassNames      []string
}

// Accuracy is the fraction of positions where the labels match exactly.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("got %d true labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, fmt.Errorf("cannot compute accuracy of zero predictions")
	}

	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ConfusionMatrix counts true (row) against predicted (column) labels over
// nClasses classes, whether or not every class occurs.
func ConfusionMatrix(yTrue, yPred []int, nClasses int) ([][]int, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("got %d true labels but %d predictions", len(yTrue), len(yPred))
	}

	cm := make([][]int, nClasses)
	for i := range cm {
		cm[i] = make([]int, nClasses)
	}

	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			return nil, fmt.Errorf("label pair (%d, %d) at position %d outside of %d classes", t, p, i, nClasses)
		}
		cm[t][p]++
	}
	return cm, nil
}

func Evaluate(yTrue, yPred []int, classNames []string) (Metrics, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return Metrics{}, err
	}

	cm, err := ConfusionMatrix(yTrue, yPred, len(classNames))
	if err != nil {
		return Metrics{}, err
	}

	return Metrics{Accuracy: acc, ConfusionMatrix: cm, ClassNames: classNames}, nil
}

func (m Metrics) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Accuracy: %.4f\n", m.Accuracy)
	sb.WriteString("Confusion matrix (rows = true, columns = predicted):\n")
	for i, row := range m.ConfusionMatrix {
		name := fmt.Sprint(i)
		if i < len(m.ClassNames) {
			name = m.ClassNames[i]
		}
		fmt.Fprintf(&sb, "  %-12s", name)
		for _, c := range row {
			fmt.Fprintf(&sb, " %4d", c)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
