package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCrossEntropy(t *testing.T) {
	y := mat.NewDense(2, 3, []float64{1, 0, 0, 0, 0, 1})

	perfect := mat.NewDense(2, 3, []float64{1, 0, 0, 0, 0, 1})
	loss, err := CrossEntropy(perfect, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, loss, 1e-9)

	uniform := mat.NewDense(2, 3, []float64{1. / 3, 1. / 3, 1. / 3, 1. / 3, 1. / 3, 1. / 3})
	loss, err = CrossEntropy(uniform, y)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(3), loss, 1e-9)

	wrong := mat.NewDense(2, 3, []float64{0, 1, 0, 1, 0, 0})
	loss, err = CrossEntropy(wrong, y)
	require.NoError(t, err)
	assert.False(t, math.IsInf(loss, 0))
	assert.InDelta(t, -math.Log(1e-12), loss, 1e-6)
}

func TestMeanSquaredError(t *testing.T) {
	p := mat.NewDense(2, 2, []float64{0.5, 0.5, 1, 0})
	y := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	mse, err := MeanSquaredError(p, y)
	require.NoError(t, err)
	assert.InDelta(t, (0.25+0.25+1+1)/4, mse, 1e-12)
}

func TestLossShapeMismatch(t *testing.T) {
	p := mat.NewDense(2, 3, nil)
	y := mat.NewDense(2, 2, nil)
	_, err := CrossEntropy(p, y)
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = MeanSquaredError(p, y)
	require.ErrorIs(t, err, ErrShapeMismatch)
}
