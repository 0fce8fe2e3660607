package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// sigmoidClip bounds the sigmoid input so math.Exp never overflows.
const sigmoidClip = 500.0

// Activator is a hidden-layer activation function.
//
// Activate has the signature expected by mat.Dense.Apply. Deactivate returns the
// derivative evaluated from the post-activation values a, which is what the
// backward pass has cached.
type Activator interface {
	Activate(i, j int, sum float64) float64
	Deactivate(a mat.Matrix) mat.Matrix
	fmt.Stringer
}

var ActivatorLookup = map[string]Activator{
	"sigmoid": Sigmoid{},
	"tanh":    Tanh{},
	"relu":    ReLU{},
}

// LookupActivator returns the activator registered under name.
func LookupActivator(name string) (Activator, error) {
	act, ok := ActivatorLookup[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown activation %q", ErrConfiguration, name)
	}
	return act, nil
}

type Sigmoid struct{}

func (s Sigmoid) Activate(i, j int, sum float64) float64 {
	sum = math.Max(-sigmoidClip, math.Min(sigmoidClip, sum))
	return 1.0 / (1.0 + math.Exp(-sum))
}

// Deactivate returns a*(1-a).
func (s Sigmoid) Deactivate(a mat.Matrix) mat.Matrix {
	return apply(func(i, j int, v float64) float64 {
		return v * (1 - v)
	}, a)
}

func (s Sigmoid) String() string {
	return "sigmoid"
}

type Tanh struct{}

func (t Tanh) Activate(i, j int, sum float64) float64 {
	return math.Tanh(sum)
}

// Deactivate returns 1-a^2.
func (t Tanh) Deactivate(a mat.Matrix) mat.Matrix {
	return apply(func(i, j int, v float64) float64 {
		return 1 - v*v
	}, a)
}

func (t Tanh) String() string {
	return "tanh"
}

type ReLU struct{}

func (r ReLU) Activate(i, j int, sum float64) float64 {
	if sum > 0 {
		return sum
	}
	return 0
}

// Deactivate returns 1 where a > 0 and 0 elsewhere.
func (r ReLU) Deactivate(a mat.Matrix) mat.Matrix {
	return apply(func(i, j int, v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	}, a)
}

func (r ReLU) String() string {
	return "relu"
}

// Softmax applies the softmax function to every row of z. The row maximum is
// subtracted before exponentiating, so the result never overflows and every row
// sums to 1.
func Softmax(z mat.Matrix) *mat.Dense {
	r, c := z.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		mat.Row(row, i, z)
		floats.AddConst(-floats.Max(row), row)
		for j, v := range row {
			row[j] = math.Exp(v)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return out
}
