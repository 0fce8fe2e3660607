// Package metrics scores class-probability matrices against their labels.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Argmax returns the column index of the largest entry of every row of m.
func Argmax(m mat.Matrix) []int {
	r, c := m.Dims()
	out := make([]int, r)
	row := make([]float64, c)
	for i := range out {
		mat.Row(row, i, m)
		out[i] = floats.MaxIdx(row)
	}
	return out
}

// Accuracy returns the fraction of rows whose argmax matches between the
// predicted probabilities and the one-hot targets.
func Accuracy(probs, targets mat.Matrix) (float64, error) {
	pr, pc := probs.Dims()
	tr, tc := targets.Dims()
	if pr != tr || pc != tc {
		return 0, fmt.Errorf("accuracy: predictions are %dx%d, targets are %dx%d", pr, pc, tr, tc)
	}
	return LabelAccuracy(Argmax(probs), Argmax(targets))
}

// LabelAccuracy returns the fraction of equal entries of pred and truth.
func LabelAccuracy(pred, truth []int) (float64, error) {
	if len(pred) != len(truth) {
		return 0, fmt.Errorf("accuracy: %d predictions for %d labels", len(pred), len(truth))
	}
	if len(pred) == 0 {
		return 0, fmt.Errorf("accuracy: no samples")
	}
	correct := 0
	for i := range pred {
		if pred[i] == truth[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), nil
}

// ConfusionMatrix counts samples by true class (row) and predicted class
// (column).
func ConfusionMatrix(pred, truth []int, classes int) ([][]int, error) {
	if len(pred) != len(truth) {
		return nil, fmt.Errorf("confusion matrix: %d predictions for %d labels", len(pred), len(truth))
	}
	cm := make([][]int, classes)
	for i := range cm {
		cm[i] = make([]int, classes)
	}
	for i := range pred {
		p, t := pred[i], truth[i]
		if p < 0 || p >= classes || t < 0 || t >= classes {
			return nil, fmt.Errorf("confusion matrix: sample %d has class pair (%d, %d) outside [0, %d)", i, t, p, classes)
		}
		cm[t][p]++
	}
	return cm, nil
}

// WriteConfusion renders cm as a text table with true classes as rows.
func WriteConfusion(w io.Writer, cm [][]int) error {
	var b strings.Builder
	b.WriteString("true\\pred")
	for j := range cm {
		fmt.Fprintf(&b, " %5d", j)
	}
	b.WriteString("\n")
	for i, row := range cm {
		fmt.Fprintf(&b, "%9d", i)
		for _, n := range row {
			fmt.Fprintf(&b, " %5d", n)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
