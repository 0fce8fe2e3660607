package nn

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func dot(m, n mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func apply(fn func(i, j int, v float64) float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func scale(s float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func multiply(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func subtract(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Sub(m, n)
	return o
}

// addRowVector adds the 1 x c row vector b to every row of m in place.
func addRowVector(m *mat.Dense, b mat.Matrix) {
	r, _ := m.Dims()
	row := mat.Row(nil, 0, b)
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), row)
	}
}

// columnSums returns a 1 x c matrix holding the sum of every column of m.
func columnSums(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	sums := make([]float64, c)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		floats.Add(sums, row)
	}
	return mat.NewDense(1, c, sums)
}

func sameShape(m, n mat.Matrix) bool {
	r1, c1 := m.Dims()
	r2, c2 := n.Dims()
	return r1 == r2 && c1 == c2
}
