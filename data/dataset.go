// Package data loads, encodes, splits and standardises labelled feature
// matrices for the trainer.
package data

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Dataset is an N x F feature matrix with one integer class label per row.
type Dataset struct {
	X       *mat.Dense
	Labels  []int
	Classes int
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// OneHot returns the N x Classes one-hot encoding of the labels.
func (d *Dataset) OneHot() (*mat.Dense, error) {
	return OneHot(d.Labels, d.Classes)
}

// Subset returns the rows at idx as a new dataset.
func (d *Dataset) Subset(idx []int) *Dataset {
	_, c := d.X.Dims()
	x := mat.NewDense(len(idx), c, nil)
	labels := make([]int, len(idx))
	for i, j := range idx {
		x.SetRow(i, d.X.RawRowView(j))
		labels[i] = d.Labels[j]
	}
	return &Dataset{X: x, Labels: labels, Classes: d.Classes}
}

// OneHot encodes labels as an N x classes matrix with a single 1 per row.
func OneHot(labels []int, classes int) (*mat.Dense, error) {
	if classes <= 0 {
		return nil, fmt.Errorf("one-hot: need a positive class count, got %d", classes)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("one-hot: no labels")
	}
	out := mat.NewDense(len(labels), classes, nil)
	for i, l := range labels {
		if l < 0 || l >= classes {
			return nil, fmt.Errorf("one-hot: label %d at row %d outside [0, %d)", l, i, classes)
		}
		out.Set(i, l, 1)
	}
	return out, nil
}

// Standardize rescales every feature column to zero mean and unit variance
// using statistics fitted on train only, then applies the same transform to
// others. Constant columns are only centred.
func Standardize(train *Dataset, others ...*Dataset) {
	r, c := train.X.Dims()
	mean := make([]float64, c)
	std := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, train.X)
		mean[j], std[j] = stat.PopMeanStdDev(col, nil)
		if std[j] == 0 {
			std[j] = 1
		}
	}
	for _, d := range append([]*Dataset{train}, others...) {
		rows, _ := d.X.Dims()
		for i := 0; i < rows; i++ {
			row := d.X.RawRowView(i)
			for j := range row {
				row[j] = (row[j] - mean[j]) / std[j]
			}
		}
	}
}
