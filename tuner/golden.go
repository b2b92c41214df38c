package tuner

import "math"

var invPhi = 2 / (1 + math.Sqrt(5))

// GoldenSection minimises a unimodal f on [lo, hi] and returns the midpoint
// of the final bracket after iters shrink steps.
func GoldenSection(f func(float64) float64, lo, hi float64, iters int) float64 {
	a, b := lo, hi
	c := b - (b-a)*invPhi
	d := a + (b-a)*invPhi
	fc, fd := f(c), f(d)
	for i := 0; i < iters; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - (b-a)*invPhi
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + (b-a)*invPhi
			fd = f(d)
		}
	}
	return (a + b) / 2
}
