package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAccuracy(t *testing.T) {
	probs := mat.NewDense(4, 3, []float64{
		0.7, 0.2, 0.1,
		0.1, 0.8, 0.1,
		0.3, 0.3, 0.4,
		0.5, 0.4, 0.1,
	})
	targets := mat.NewDense(4, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 1, 0,
		0, 0, 1,
	})
	acc, err := Accuracy(probs, targets)
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc)
	assert.Equal(t, []int{0, 1, 2, 0}, Argmax(probs))

	_, err = Accuracy(probs, mat.NewDense(3, 3, nil))
	require.Error(t, err)
}

func TestLabelAccuracy(t *testing.T) {
	acc, err := LabelAccuracy([]int{1, 2, 3}, []int{1, 0, 3})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3, acc, 1e-12)

	_, err = LabelAccuracy(nil, nil)
	require.Error(t, err)
	_, err = LabelAccuracy([]int{1}, []int{1, 2})
	require.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	cm, err := ConfusionMatrix([]int{0, 1, 1, 2}, []int{0, 1, 2, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 0, 0}, {0, 1, 0}, {0, 1, 1}}, cm)

	var b strings.Builder
	require.NoError(t, WriteConfusion(&b, cm))
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "true\\pred"))

	_, err = ConfusionMatrix([]int{3}, []int{0}, 3)
	require.Error(t, err)
}

func TestAppendRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis", "runs.csv")
	rec := RunRecord{
		Name:         "adam-relu-42",
		Activation:   "relu",
		Architecture: []int{64, 32, 16, 10},
		Optimizer:    "adam",
		Epochs:       10,
		BatchSize:    32,
		LearningRate: 0.001,
		ValAccuracy:  0.9,
		TestAccuracy: 0.85,
	}
	require.NoError(t, AppendRun(path, rec))
	require.NoError(t, AppendRun(path, rec))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "one header row and two runs")
	assert.Equal(t, analysisHeaders, records[0])
	assert.Equal(t, "64 32 16 10", records[1][2])
	assert.Equal(t, "90.00000", records[1][10])
}
