package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RunRecord is one row of the analysis log.
type RunRecord struct {
	Name           string
	Activation     string
	Architecture   []int
	Optimizer      string
	Epochs         int
	BatchSize      int
	LearningRate   float64
	WeightDecay    float64
	EndTime        int64 // unix seconds
	SecondsToTrain float64
	ValAccuracy    float64
	TestAccuracy   float64
}

var analysisHeaders = []string{
	"Name", "Activator", "Layers", "Optimizer", "Epochs", "Batch", "LR", "Weight Decay",
	"End Time", "SecondsToTrain", "Val Accuracy", "Test Accuracy",
}

func (r RunRecord) fields() []string {
	layers := make([]string, len(r.Architecture))
	for i, n := range r.Architecture {
		layers[i] = strconv.Itoa(n)
	}
	return []string{
		r.Name,
		r.Activation,
		strings.Join(layers, " "),
		r.Optimizer,
		strconv.Itoa(r.Epochs),
		strconv.Itoa(r.BatchSize),
		strconv.FormatFloat(r.LearningRate, 'f', 4, 64),
		strconv.FormatFloat(r.WeightDecay, 'f', 4, 64),
		strconv.FormatInt(r.EndTime, 10),
		strconv.FormatFloat(r.SecondsToTrain, 'f', 2, 64),
		strconv.FormatFloat(100*r.ValAccuracy, 'f', 5, 64),
		strconv.FormatFloat(100*r.TestAccuracy, 'f', 5, 64),
	}
}

// AppendRun appends rec to the CSV file at path, writing the header row first
// when the file does not exist yet. Missing parent directories are created.
func AppendRun(path string, rec RunRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("creating analysis directory: %w", err)
	}
	var needsHeaders bool
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeaders = true
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if needsHeaders {
		if err := w.Write(analysisHeaders); err != nil {
			return fmt.Errorf("writing csv headers: %w", err)
		}
	}
	if err := w.Write(rec.fields()); err != nil {
		return fmt.Errorf("writing csv record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error writing csv: %w", err)
	}
	return nil
}
