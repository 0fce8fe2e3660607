package data

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Partitions holds disjoint train, validation and test subsets.
type Partitions struct {
	Train, Val, Test *Dataset
}

// Split shuffles ds with seed and cuts it into disjoint train, validation and
// test subsets holding roughly (1-valFrac-testFrac), valFrac and testFrac of the
// samples. Every subset is guaranteed to be non-empty.
func Split(ds *Dataset, valFrac, testFrac float64, seed uint64) (*Partitions, error) {
	if valFrac <= 0 || testFrac <= 0 || valFrac+testFrac >= 1 {
		return nil, fmt.Errorf("split: fractions %.3f/%.3f must be positive and sum below 1", valFrac, testFrac)
	}
	n := ds.Len()
	if n < 3 {
		return nil, fmt.Errorf("split: need at least 3 samples, got %d", n)
	}
	nVal := atLeastOne(int(float64(n) * valFrac))
	nTest := atLeastOne(int(float64(n) * testFrac))
	if nVal+nTest >= n {
		return nil, fmt.Errorf("split: %d samples leave no training data", n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return &Partitions{
		Test:  ds.Subset(perm[:nTest]),
		Val:   ds.Subset(perm[nTest : nTest+nVal]),
		Train: ds.Subset(perm[nTest+nVal:]),
	}, nil
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// GaussianBlobs draws n samples from a mixture of classes isotropic Gaussians in
// features dimensions. Class centres are drawn from N(0, spread^2) per
// dimension and samples add unit-variance noise around their centre, so
// smaller spreads give harder problems. Labels cycle through the classes.
func GaussianBlobs(n, features, classes int, spread float64, seed uint64) *Dataset {
	src := rand.NewSource(seed)
	centre := distuv.Normal{Mu: 0, Sigma: spread, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	centres := mat.NewDense(classes, features, nil)
	for i := 0; i < classes; i++ {
		for j := 0; j < features; j++ {
			centres.Set(i, j, centre.Rand())
		}
	}

	x := mat.NewDense(n, features, nil)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		label := i % classes
		labels[i] = label
		row := x.RawRowView(i)
		for j := range row {
			row[j] = centres.At(label, j) + noise.Rand()
		}
	}
	return &Dataset{X: x, Labels: labels, Classes: classes}
}
