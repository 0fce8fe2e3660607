package data

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LabelColumn says where the class label sits in each CSV record.
type LabelColumn int

const (
	// LabelLast is the scikit-learn export layout: features..., label.
	LabelLast LabelColumn = iota
	// LabelFirst is the MNIST CSV layout: label, features...
	LabelFirst
)

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

// LoadCSVFile opens filename and reads it with LoadCSV.
func LoadCSVFile(filename string, layout LabelColumn) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer file.Close()
	return LoadCSV(bufio.NewReader(file), layout)
}

// LoadCSV reads one sample per record: numeric features plus an integer class
// label in the column given by layout. Every record must have the same width.
// A first record whose label does not parse is treated as a header and skipped.
// The class count is one more than the largest label.
func LoadCSV(reader io.Reader, layout LabelColumn) (*Dataset, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var (
		values  []float64
		labels  []int
		width   int
		lineNum int
	)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		lineNum++
		if width == 0 {
			width = len(record)
			if width < 2 {
				return nil, errInvalidLine{lineNum: lineNum, splits: width, expected: 2}
			}
		}
		if len(record) != width {
			return nil, errInvalidLine{lineNum: lineNum, splits: len(record), expected: width}
		}

		labelField, features := record[width-1], record[:width-1]
		if layout == LabelFirst {
			labelField, features = record[0], record[1:]
		}
		label, err := strconv.Atoi(strings.TrimSpace(labelField))
		if err != nil {
			if lineNum == 1 {
				continue
			}
			return nil, fmt.Errorf("parsing label at line %d: %w", lineNum, err)
		}
		if label < 0 {
			return nil, fmt.Errorf("negative label %d at line %d", label, lineNum)
		}
		for _, f := range features {
			num, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("parsing input at line %d: %w", lineNum, err)
			}
			values = append(values, num)
		}
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("dataset has no samples")
	}

	classes := 0
	for _, l := range labels {
		if l+1 > classes {
			classes = l + 1
		}
	}
	return &Dataset{
		X:       mat.NewDense(len(labels), width-1, values),
		Labels:  labels,
		Classes: classes,
	}, nil
}
