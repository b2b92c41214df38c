package tuner

import (
	"math"

	"chess-tuner/features"
)

// sigmoid is the logistic function with its argument clipped to [-60, 60].
func sigmoid(x float64) float64 {
	if x > 60 {
		x = 60
	} else if x < -60 {
		x = -60
	}
	return 1.0 / (1.0 + math.Exp(-x))
}

// MSE is the mean squared error of sigmoid(k*score) against the labels of rows idx.
func MSE(m *features.Matrix, idx []int, scales []float64, k float64) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		d := sigmoid(k*m.Score(i, scales)) - m.Labels[i]
		sum += d * d
	}
	return sum / float64(len(idx))
}

// l2Penalty pulls scales toward 1.
func l2Penalty(scales []float64, l2 float64) float64 {
	s := 0.0
	for _, v := range scales {
		s += (v - 1) * (v - 1)
	}
	return l2 * s
}

// lossGrad evaluates the regularised loss on rows idx and writes its
// gradient into grad. dscore holds d score / d scale per row of idx.
func lossGrad(m *features.Matrix, idx []int, dscore [][]float64, scales []float64, k, l2 float64, grad []float64) (loss, mse float64) {
	for j := range grad {
		grad[j] = 0
	}
	for r, i := range idx {
		p := sigmoid(k * m.Score(i, scales))
		err := p - m.Labels[i]
		mse += err * err
		common := 2 * err * k * p * (1 - p)
		for j, d := range dscore[r] {
			grad[j] += common * d
		}
	}
	n := float64(len(idx))
	mse /= n
	for j := range grad {
		grad[j] = grad[j]/n + 2*l2*(scales[j]-1)
	}
	return mse + l2Penalty(scales, l2), mse
}
