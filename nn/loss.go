package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// logEpsilon keeps log(p) finite when a predicted probability is exactly zero.
const logEpsilon = 1e-12

// CrossEntropy returns the mean categorical cross-entropy of the predicted
// probabilities p against the one-hot targets y: -sum(y*log(p+eps)) / N.
func CrossEntropy(p, y mat.Matrix) (float64, error) {
	if !sameShape(p, y) {
		return 0, shapeError("cross-entropy", p, y)
	}
	r, c := p.Dims()
	loss := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if t := y.At(i, j); t != 0 {
				loss -= t * math.Log(p.At(i, j)+logEpsilon)
			}
		}
	}
	return loss / float64(r), nil
}

// MeanSquaredError returns the mean of (p-y)^2 over every entry of the batch.
func MeanSquaredError(p, y mat.Matrix) (float64, error) {
	if !sameShape(p, y) {
		return 0, shapeError("mean squared error", p, y)
	}
	r, c := p.Dims()
	diff := subtract(p, y)
	sum := 0.0
	for i := 0; i < r; i++ {
		for _, v := range diff.RawRowView(i) {
			sum += v * v
		}
	}
	return sum / float64(r*c), nil
}

// CrossEntropyDelta is the gradient of cross-entropy with respect to the
// pre-softmax logits, p - y. It is only valid when the output layer is softmax.
func CrossEntropyDelta(p, y mat.Matrix) *mat.Dense {
	return subtract(p, y)
}

func shapeError(op string, a, b mat.Matrix) error {
	r1, c1 := a.Dims()
	r2, c2 := b.Dims()
	return fmt.Errorf("%w: %s: %dx%d vs %dx%d", ErrShapeMismatch, op, r1, c1, r2, c2)
}
