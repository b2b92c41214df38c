package tuner

import (
	"math"
	"math/rand"
)

// Split shuffles 0..n-1 with seed and holds out max(1, round(n*valFrac))
// indices for validation.
func Split(n int, valFrac float64, seed int64) (train, val []int, err error) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	valN := max(1, int(math.RoundToEven(float64(n)*valFrac)))
	if valN >= n {
		return nil, nil, &SplitError{N: n, ValN: valN, ValFrac: valFrac}
	}
	return idx[valN:], idx[:valN], nil
}
