package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// OptimizerState is the per-network auxiliary state of the stateful update
// rules. Every slice holds one zero-initialised matrix per weight matrix,
// allocated when the network is built whichever optimizer is used later.
type OptimizerState struct {
	Velocity []*mat.Dense // momentum
	M        []*mat.Dense // Adam first moment
	V        []*mat.Dense // Adam second moment
	Step     int          // number of completed optimizer updates
}

func newOptimizerState(weights []*mat.Dense) *OptimizerState {
	zeros := func() []*mat.Dense {
		out := make([]*mat.Dense, len(weights))
		for i, w := range weights {
			r, c := w.Dims()
			out[i] = mat.NewDense(r, c, nil)
		}
		return out
	}
	return &OptimizerState{Velocity: zeros(), M: zeros(), V: zeros()}
}

// Optimizer turns a gradient record into in-place parameter updates.
type Optimizer interface {
	Update(net *Network, grads []Gradient, lr float64) error
	fmt.Stringer
}

// BiasCorrection selects the exponent t used by Adam's bias-correction terms.
type BiasCorrection int

const (
	// BiasCorrectionLayer uses the 1-based index of the layer being updated, so
	// the correction differs per layer and never advances between updates.
	BiasCorrectionLayer BiasCorrection = iota
	// BiasCorrectionStep uses the cumulative number of updates, as in Kingma & Ba.
	BiasCorrectionStep
)

func (b BiasCorrection) String() string {
	switch b {
	case BiasCorrectionLayer:
		return "layer"
	case BiasCorrectionStep:
		return "step"
	default:
		return fmt.Sprintf("BiasCorrection(%d)", int(b))
	}
}

// ParseBiasCorrection maps "layer" and "step" to their BiasCorrection.
func ParseBiasCorrection(name string) (BiasCorrection, error) {
	switch name {
	case "layer", "":
		return BiasCorrectionLayer, nil
	case "step":
		return BiasCorrectionStep, nil
	default:
		return 0, fmt.Errorf("%w: unknown Adam bias correction %q", ErrConfiguration, name)
	}
}

// OptimizerConfig carries the hyper-parameters of every update rule. Zero
// values are replaced by the defaults.
type OptimizerConfig struct {
	Momentum float64 // default 0.9
	Adam     AdamConfig
}

// AdamConfig holds Adam's hyper-parameters.
type AdamConfig struct {
	Beta1          float64 // default 0.9
	Beta2          float64 // default 0.999
	Eps            float64 // default 1e-8
	BiasCorrection BiasCorrection
}

// NewOptimizer returns the update rule registered under name: "sgd",
// "momentum" or "adam".
func NewOptimizer(name string, cfg OptimizerConfig) (Optimizer, error) {
	switch name {
	case "sgd":
		return SGD{}, nil
	case "momentum":
		if cfg.Momentum == 0 {
			cfg.Momentum = 0.9
		}
		return Momentum{Coefficient: cfg.Momentum}, nil
	case "adam":
		a := cfg.Adam
		if a.Beta1 == 0 {
			a.Beta1 = 0.9
		}
		if a.Beta2 == 0 {
			a.Beta2 = 0.999
		}
		if a.Eps == 0 {
			a.Eps = 1e-8
		}
		return Adam{AdamConfig: a}, nil
	default:
		return nil, fmt.Errorf("%w: unknown optimizer %q", ErrConfiguration, name)
	}
}

// SGD updates w -= lr*g and b -= lr*g_b.
type SGD struct{}

func (SGD) Update(net *Network, grads []Gradient, lr float64) error {
	if err := checkGradients(net, grads); err != nil {
		return err
	}
	for i, g := range grads {
		net.weights[i].Sub(net.weights[i], scale(lr, g.Weight))
	}
	updateBiases(net, grads, lr)
	net.state.Step++
	return nil
}

func (SGD) String() string {
	return "sgd"
}

// Momentum keeps a velocity per weight matrix: v = mu*v - lr*g, w += v.
// Biases follow plain SGD.
type Momentum struct {
	Coefficient float64
}

func (m Momentum) Update(net *Network, grads []Gradient, lr float64) error {
	if err := checkGradients(net, grads); err != nil {
		return err
	}
	for i, g := range grads {
		v := net.state.Velocity[i]
		v.Scale(m.Coefficient, v)
		v.Sub(v, scale(lr, g.Weight))
		net.weights[i].Add(net.weights[i], v)
	}
	updateBiases(net, grads, lr)
	net.state.Step++
	return nil
}

func (m Momentum) String() string {
	return "momentum"
}

// Adam tracks first and second moment estimates for every weight matrix.
// Biases follow plain SGD and carry no moment estimates.
type Adam struct {
	AdamConfig
}

func (a Adam) Update(net *Network, grads []Gradient, lr float64) error {
	if err := checkGradients(net, grads); err != nil {
		return err
	}
	step := net.state.Step + 1
	for i, g := range grads {
		t := step
		if a.BiasCorrection == BiasCorrectionLayer {
			t = i + 1
		}
		correction1 := 1 - math.Pow(a.Beta1, float64(t))
		correction2 := 1 - math.Pow(a.Beta2, float64(t))

		w := net.weights[i]
		m := net.state.M[i]
		v := net.state.V[i]
		r, c := w.Dims()
		for row := 0; row < r; row++ {
			gRow := g.Weight.RawRowView(row)
			mRow := m.RawRowView(row)
			vRow := v.RawRowView(row)
			wRow := w.RawRowView(row)
			for col := 0; col < c; col++ {
				gv := gRow[col]
				mRow[col] = a.Beta1*mRow[col] + (1-a.Beta1)*gv
				vRow[col] = a.Beta2*vRow[col] + (1-a.Beta2)*gv*gv
				mHat := mRow[col] / correction1
				vHat := vRow[col] / correction2
				wRow[col] -= lr * mHat / (math.Sqrt(vHat) + a.Eps)
			}
		}
	}
	updateBiases(net, grads, lr)
	net.state.Step = step
	return nil
}

func (a Adam) String() string {
	return "adam"
}

func updateBiases(net *Network, grads []Gradient, lr float64) {
	for i, g := range grads {
		net.biases[i].Sub(net.biases[i], scale(lr, g.Bias))
	}
}

func checkGradients(net *Network, grads []Gradient) error {
	if len(grads) != len(net.weights) {
		return fmt.Errorf("%w: got %d gradients, network has %d layers of weights", ErrShapeMismatch, len(grads), len(net.weights))
	}
	for i, g := range grads {
		if g.Weight == nil || g.Bias == nil {
			return fmt.Errorf("%w: layer %d gradient is missing", ErrShapeMismatch, i)
		}
		if !sameShape(g.Weight, net.weights[i]) {
			return fmt.Errorf("layer %d weight gradient: %w", i, shapeError("update", g.Weight, net.weights[i]))
		}
		if !sameShape(g.Bias, net.biases[i]) {
			return fmt.Errorf("layer %d bias gradient: %w", i, shapeError("update", g.Bias, net.biases[i]))
		}
	}
	return nil
}
