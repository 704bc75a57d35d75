package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ClipNorm rescales the gradients so their global L2 norm does not exceed
// maxNorm. Returns the norm before clipping.
func ClipNorm(params []*Param, maxNorm float64) float64 {
	var total float64
	for _, p := range params {
		var n = floats.Norm(p.Grad.RawMatrix().Data, 2)
		total += n * n
	}
	var norm = math.Sqrt(total)
	if maxNorm > 0 && norm > maxNorm {
		var scale = maxNorm / norm
		for _, p := range params {
			floats.Scale(scale, p.Grad.RawMatrix().Data)
		}
	}
	return norm
}
