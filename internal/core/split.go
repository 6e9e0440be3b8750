package core

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	DefaultTestSize  = 0.2
	DefaultSplitSeed = 42
)

// Split holds row indices into the dataset it was computed for.
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles row indices with a generator seeded by seed and
// takes the first ceil(testSize*n) as the evaluation partition. Class
// proportions are not preserved.
func TrainTestSplit(n int, testSize float64, seed int64) (Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return Split{}, fmt.Errorf("cannot split %d rows with test size %v: both partitions need at least one row", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return Split{Train: perm[nTest:], Test: perm[:nTest]}, nil
}
