package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// twoByTwo returns a single-layer network with weights w0 and zero biases.
func twoByTwo(t *testing.T) *Network {
	t.Helper()
	net, err := NewNetwork(Config{Sizes: []int{2, 2}})
	require.NoError(t, err)
	require.NoError(t, net.SetWeights([]mat.Matrix{mat.NewDense(2, 2, []float64{1, 2, 3, 4})}))
	return net
}

func constGrads() []Gradient {
	return []Gradient{{
		Weight: mat.NewDense(2, 2, []float64{0.5, -1, 2, 0}),
		Bias:   mat.NewDense(1, 2, []float64{1, -1}),
	}}
}

func TestSGDUpdate(t *testing.T) {
	net := twoByTwo(t)
	opt, err := NewOptimizer("sgd", OptimizerConfig{})
	require.NoError(t, err)
	require.NoError(t, opt.Update(net, constGrads(), 0.1))

	want := mat.NewDense(2, 2, []float64{0.95, 2.1, 2.8, 4})
	assert.True(t, mat.EqualApprox(want, net.Weights()[0], 1e-12))
	assert.True(t, mat.EqualApprox(mat.NewDense(1, 2, []float64{-0.1, 0.1}), net.Biases()[0], 1e-12))
	assert.Equal(t, 1, net.State().Step)
}

func TestMomentumUpdate(t *testing.T) {
	net := twoByTwo(t)
	opt, err := NewOptimizer("momentum", OptimizerConfig{Momentum: 0.5})
	require.NoError(t, err)
	lr := 0.1

	require.NoError(t, opt.Update(net, constGrads(), lr))
	require.NoError(t, opt.Update(net, constGrads(), lr))

	// v1 = -lr*g, v2 = 0.5*v1 - lr*g = -1.5*lr*g, w2 = w0 - 2.5*lr*g
	g := constGrads()[0].Weight
	want := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want.Set(i, j, want.At(i, j)-2.5*lr*g.At(i, j))
		}
	}
	assert.True(t, mat.EqualApprox(want, net.Weights()[0], 1e-12))
	assert.InDelta(t, -1.5*lr*0.5, net.State().Velocity[0].At(0, 0), 1e-12)
}

func TestAdamFirstStepIsSignedLearningRate(t *testing.T) {
	for _, bc := range []BiasCorrection{BiasCorrectionLayer, BiasCorrectionStep} {
		t.Run(bc.String(), func(t *testing.T) {
			net := twoByTwo(t)
			opt, err := NewOptimizer("adam", OptimizerConfig{Adam: AdamConfig{BiasCorrection: bc}})
			require.NoError(t, err)
			require.NoError(t, opt.Update(net, constGrads(), 0.01))

			w := net.Weights()[0]
			assert.InDelta(t, 1-0.01, w.At(0, 0), 1e-6)
			assert.InDelta(t, 2+0.01, w.At(0, 1), 1e-6)
			assert.InDelta(t, 3-0.01, w.At(1, 0), 1e-6)
			assert.Equal(t, 4.0, w.At(1, 1), "zero gradient leaves the weight")
		})
	}
}

func TestAdamBiasCorrectionModes(t *testing.T) {
	lr := 0.01
	run := func(bc BiasCorrection) float64 {
		net := twoByTwo(t)
		opt, err := NewOptimizer("adam", OptimizerConfig{Adam: AdamConfig{BiasCorrection: bc}})
		require.NoError(t, err)
		require.NoError(t, opt.Update(net, constGrads(), lr))
		before := net.Weights()[0].At(0, 0)
		require.NoError(t, opt.Update(net, constGrads(), lr))
		assert.Equal(t, 2, net.State().Step)
		return before - net.Weights()[0].At(0, 0)
	}

	// With a constant gradient the step-indexed correction keeps the step at lr.
	assert.InDelta(t, lr, run(BiasCorrectionStep), 1e-6)

	// The layer-indexed correction stays at t=1 for the first layer:
	// m = 0.19g, v = 0.001999g^2, step = lr * 1.9 / sqrt(1.999).
	assert.InDelta(t, lr*1.9/math.Sqrt(1.999), run(BiasCorrectionLayer), 1e-6)
}

func TestAdamLayerIndexedCorrection(t *testing.T) {
	net, err := NewNetwork(Config{Sizes: []int{2, 2, 2}})
	require.NoError(t, err)
	start := []mat.Matrix{
		mat.NewDense(2, 2, []float64{1, 1, 1, 1}),
		mat.NewDense(2, 2, []float64{1, 1, 1, 1}),
	}
	require.NoError(t, net.SetWeights(start))
	g := func() *mat.Dense { return mat.NewDense(2, 2, []float64{1, 1, 1, 1}) }
	grads := []Gradient{
		{Weight: g(), Bias: mat.NewDense(1, 2, nil)},
		{Weight: g(), Bias: mat.NewDense(1, 2, nil)},
	}
	opt, err := NewOptimizer("adam", OptimizerConfig{})
	require.NoError(t, err)
	lr := 0.01
	require.NoError(t, opt.Update(net, grads, lr))

	// Layer 2 corrects with t=2: mHat = 0.1/0.19, vHat = 0.001/0.001999.
	want2 := lr * (0.1 / 0.19) / math.Sqrt(0.001/0.001999)
	w := net.Weights()
	assert.InDelta(t, 1-lr, w[0].At(0, 0), 1e-6)
	assert.InDelta(t, 1-want2, w[1].At(0, 0), 1e-6)
}

func TestNewOptimizer(t *testing.T) {
	for _, name := range []string{"sgd", "momentum", "adam"} {
		opt, err := NewOptimizer(name, OptimizerConfig{})
		require.NoError(t, err)
		assert.Equal(t, name, opt.String())
	}
	opt, err := NewOptimizer("adam", OptimizerConfig{})
	require.NoError(t, err)
	adam := opt.(Adam)
	assert.Equal(t, 0.9, adam.Beta1)
	assert.Equal(t, 0.999, adam.Beta2)
	assert.Equal(t, 1e-8, adam.Eps)
	assert.Equal(t, BiasCorrectionLayer, adam.BiasCorrection)

	_, err = NewOptimizer("rmsprop", OptimizerConfig{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestParseBiasCorrection(t *testing.T) {
	bc, err := ParseBiasCorrection("step")
	require.NoError(t, err)
	assert.Equal(t, BiasCorrectionStep, bc)
	bc, err = ParseBiasCorrection("")
	require.NoError(t, err)
	assert.Equal(t, BiasCorrectionLayer, bc)
	_, err = ParseBiasCorrection("global")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestUpdateRejectsMismatchedGradients(t *testing.T) {
	net := twoByTwo(t)
	for _, name := range []string{"sgd", "momentum", "adam"} {
		opt, err := NewOptimizer(name, OptimizerConfig{})
		require.NoError(t, err)
		err = opt.Update(net, []Gradient{{Weight: mat.NewDense(3, 2, nil), Bias: mat.NewDense(1, 2, nil)}}, 0.1)
		require.ErrorIs(t, err, ErrShapeMismatch, name)
		err = opt.Update(net, nil, 0.1)
		require.ErrorIs(t, err, ErrShapeMismatch, name)
	}
	assert.Equal(t, 0, net.State().Step)
}
