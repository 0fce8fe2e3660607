package nn

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config describes the network to build.
type Config struct {
	// Sizes holds the neuron count of every layer, input and output included.
	Sizes []int
	// Activation names the hidden-layer activator (default "relu"). The output
	// layer is always softmax.
	Activation string
	// Init names the weight initialisation scheme (default "xavier").
	Init string
	// Seed makes initialisation reproducible.
	Seed uint64
}

// Gradient holds the loss gradient for one layer's parameters. Shapes match the
// layer's weight matrix and bias vector exactly.
type Gradient struct {
	Weight *mat.Dense
	Bias   *mat.Dense
}

// Network is a fully connected feedforward network with a softmax output layer.
//
// Weight i has shape (sizes[i], sizes[i+1]) and bias i has shape (1, sizes[i+1]).
// The activation and pre-activation caches belong to the network: every call to
// Forward overwrites them and Backward consumes them. A Network is not safe for
// concurrent use.
type Network struct {
	sizes     []int
	activator Activator

	weights []*mat.Dense
	biases  []*mat.Dense

	layers       []*mat.Dense // activations, layers[0] is a copy of the input batch
	weightedSums []*mat.Dense // pre-activations of every non-input layer
	fresh        bool

	state *OptimizerState
}

// NewNetwork validates cfg and returns a network with initialised weights, zero
// biases and zeroed optimizer state.
func NewNetwork(cfg Config) (*Network, error) {
	if len(cfg.Sizes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layers (input and output), got %d", ErrConfiguration, len(cfg.Sizes))
	}
	for i, s := range cfg.Sizes {
		if s <= 0 {
			return nil, fmt.Errorf("%w: layer %d has non-positive size %d", ErrConfiguration, i, s)
		}
	}
	if cfg.Activation == "" {
		cfg.Activation = "relu"
	}
	if cfg.Init == "" {
		cfg.Init = "xavier"
	}
	activator, err := LookupActivator(cfg.Activation)
	if err != nil {
		return nil, err
	}
	initWeights, err := LookupInit(cfg.Init)
	if err != nil {
		return nil, err
	}

	totalWeights := len(cfg.Sizes) - 1
	net := &Network{
		sizes:        append([]int(nil), cfg.Sizes...),
		activator:    activator,
		weights:      make([]*mat.Dense, totalWeights),
		biases:       make([]*mat.Dense, totalWeights),
		layers:       make([]*mat.Dense, len(cfg.Sizes)),
		weightedSums: make([]*mat.Dense, totalWeights),
	}

	src := rand.NewSource(cfg.Seed)
	for i := 0; i < totalWeights; i++ {
		net.weights[i] = initWeights(cfg.Sizes[i], cfg.Sizes[i+1], src)
		net.biases[i] = mat.NewDense(1, cfg.Sizes[i+1], nil)
	}
	net.state = newOptimizerState(net.weights)

	return net, nil
}

// Sizes returns a copy of the layer sizes.
func (net *Network) Sizes() []int {
	return append([]int(nil), net.sizes...)
}

// Activator returns the hidden-layer activator.
func (net *Network) Activator() Activator {
	return net.activator
}

// Weights returns copies of the weight matrices, first layer first.
func (net *Network) Weights() []mat.Matrix {
	out := make([]mat.Matrix, len(net.weights))
	for i, w := range net.weights {
		out[i] = mat.DenseCopyOf(w)
	}
	return out
}

// Biases returns copies of the bias vectors, first layer first.
func (net *Network) Biases() []mat.Matrix {
	out := make([]mat.Matrix, len(net.biases))
	for i, b := range net.biases {
		out[i] = mat.DenseCopyOf(b)
	}
	return out
}

// SetWeights overwrites every weight matrix. Each replacement must have the
// shape of the matrix it replaces. The forward cache is invalidated.
func (net *Network) SetWeights(newWeights []mat.Matrix) error {
	if len(newWeights) != len(net.weights) {
		return fmt.Errorf("%w: got %d weight matrices, network has %d", ErrShapeMismatch, len(newWeights), len(net.weights))
	}
	for i, w := range newWeights {
		if !sameShape(w, net.weights[i]) {
			return fmt.Errorf("layer %d: %w", i, shapeError("set weights", w, net.weights[i]))
		}
	}
	for i, w := range newWeights {
		net.weights[i].Copy(w)
	}
	net.fresh = false
	return nil
}

// SetBiases overwrites every bias vector, with the same rules as SetWeights.
func (net *Network) SetBiases(newBiases []mat.Matrix) error {
	if len(newBiases) != len(net.biases) {
		return fmt.Errorf("%w: got %d bias vectors, network has %d", ErrShapeMismatch, len(newBiases), len(net.biases))
	}
	for i, b := range newBiases {
		if !sameShape(b, net.biases[i]) {
			return fmt.Errorf("layer %d: %w", i, shapeError("set biases", b, net.biases[i]))
		}
	}
	for i, b := range newBiases {
		net.biases[i].Copy(b)
	}
	net.fresh = false
	return nil
}

// State returns the optimizer state owned by the network.
func (net *Network) State() *OptimizerState {
	return net.state
}

func (net *Network) lastIndex() int {
	return len(net.layers) - 1
}

// Forward runs the batch x (N x sizes[0]) through the network and returns the
// N x sizes[last] matrix of class probabilities. The activation and
// pre-activation caches are replaced by the values of this call.
func (net *Network) Forward(x mat.Matrix) (*mat.Dense, error) {
	if _, c := x.Dims(); c != net.sizes[0] {
		return nil, fmt.Errorf("%w: input batch has %d features, first layer has %d", ErrShapeMismatch, c, net.sizes[0])
	}
	net.layers[0] = mat.DenseCopyOf(x)
	out := net.feedForward(0)
	net.fresh = true
	return mat.DenseCopyOf(out), nil
}

// ResumeForward finishes a forward pass from first-layer pre-activations z1
// (N x sizes[1]) computed elsewhere, for example on encrypted inputs. The
// result cannot be used by Backward.
func (net *Network) ResumeForward(z1 mat.Matrix) (*mat.Dense, error) {
	if _, c := z1.Dims(); c != net.sizes[1] {
		return nil, fmt.Errorf("%w: pre-activations have %d columns, second layer has %d", ErrShapeMismatch, c, net.sizes[1])
	}
	net.fresh = false
	net.layers[0] = nil
	net.weightedSums[0] = mat.DenseCopyOf(z1)
	net.layers[1] = net.activate(0, net.weightedSums[0])
	return mat.DenseCopyOf(net.feedForward(1)), nil
}

// Predict returns the argmax class of every row of x.
func (net *Network) Predict(x mat.Matrix) ([]int, error) {
	probs, err := net.Forward(x)
	if err != nil {
		return nil, err
	}
	r, _ := probs.Dims()
	labels := make([]int, r)
	for i := range labels {
		labels[i] = floats.MaxIdx(probs.RawRowView(i))
	}
	return labels, nil
}

func (net *Network) feedForward(from int) *mat.Dense {
	for i := from; i < len(net.weights); i++ {
		z := dot(net.layers[i], net.weights[i])
		addRowVector(z, net.biases[i])
		net.weightedSums[i] = z
		net.layers[i+1] = net.activate(i, z)
	}
	return net.layers[net.lastIndex()]
}

// activate applies softmax to the output layer and the hidden activator elsewhere.
func (net *Network) activate(i int, z *mat.Dense) *mat.Dense {
	if i == len(net.weights)-1 {
		return Softmax(z)
	}
	return apply(net.activator.Activate, z)
}

// Backward returns the gradient of the mean cross-entropy loss with respect to
// every weight and bias, ordered first layer to last. x must be the batch passed
// to the immediately preceding Forward and y its N x sizes[last] one-hot targets.
// The forward cache is consumed.
func (net *Network) Backward(x, y mat.Matrix) ([]Gradient, error) {
	n, c := x.Dims()
	if c != net.sizes[0] {
		return nil, fmt.Errorf("%w: input batch has %d features, first layer has %d", ErrShapeMismatch, c, net.sizes[0])
	}
	yr, yc := y.Dims()
	if yc != net.sizes[net.lastIndex()] {
		return nil, fmt.Errorf("%w: labels have width %d, output layer has %d", ErrShapeMismatch, yc, net.sizes[net.lastIndex()])
	}
	if yr != n {
		return nil, fmt.Errorf("%w: %d label rows for %d samples", ErrShapeMismatch, yr, n)
	}
	if !net.fresh || net.layers[0] == nil {
		return nil, fmt.Errorf("%w: backward called without a preceding forward", ErrStaleCache)
	}
	if !sameShape(x, net.layers[0]) || !mat.Equal(x, net.layers[0]) {
		return nil, fmt.Errorf("%w: batch differs from the one passed to the last forward", ErrStaleCache)
	}
	net.fresh = false

	grads := make([]Gradient, len(net.weights))
	invN := 1 / float64(n)
	delta := CrossEntropyDelta(net.layers[net.lastIndex()], y)
	for l := len(net.weights) - 1; l >= 0; l-- {
		grads[l] = Gradient{
			Weight: scale(invN, dot(net.layers[l].T(), delta)),
			Bias:   scale(invN, columnSums(delta)),
		}
		if l > 0 {
			delta = multiply(dot(delta, net.weights[l].T()), net.activator.Deactivate(net.layers[l]))
		}
	}
	return grads, nil
}
