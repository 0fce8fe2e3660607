package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Initializer fills a fanIn x fanOut weight matrix.
type Initializer func(fanIn, fanOut int, src rand.Source) *mat.Dense

var InitLookup = map[string]Initializer{
	"xavier": XavierUniform,
	"he":     HeNormal,
	"normal": SmallNormal,
}

// LookupInit returns the initializer registered under name.
func LookupInit(name string) (Initializer, error) {
	fn, ok := InitLookup[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown weight initialisation %q", ErrConfiguration, name)
	}
	return fn, nil
}

// XavierUniform draws from U(-l, l) with l = sqrt(6 / (fanIn + fanOut)).
func XavierUniform(fanIn, fanOut int, src rand.Source) *mat.Dense {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return randomDense(fanIn, fanOut, distuv.Uniform{Min: -limit, Max: limit, Src: src})
}

// HeNormal draws from N(0, 2/fanIn), suited to ReLU hidden layers.
func HeNormal(fanIn, fanOut int, src rand.Source) *mat.Dense {
	return randomDense(fanIn, fanOut, distuv.Normal{Mu: 0, Sigma: math.Sqrt(2.0 / float64(fanIn)), Src: src})
}

// SmallNormal draws from N(0, 0.01^2).
func SmallNormal(fanIn, fanOut int, src rand.Source) *mat.Dense {
	return randomDense(fanIn, fanOut, distuv.Normal{Mu: 0, Sigma: 0.01, Src: src})
}

func randomDense(rows, cols int, dist distuv.Rander) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(rows, cols, data)
}
