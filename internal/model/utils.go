package model

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// applyDropout returns a copy of m with inverted dropout applied: dropped
// entries become zero, survivors are scaled by 1/(1-rate) so the expected
// activation is unchanged.
func applyDropout(m *mat.Dense, rate float64, rnd *rand.Rand) *mat.Dense {
	var out = mat.DenseCopyOf(m)
	var data = out.RawMatrix().Data
	var keep = 1 - rate
	for i := range data {
		if rnd.Float64() < rate {
			data[i] = 0
		} else {
			data[i] /= keep
		}
	}
	return out
}

// addOuter accumulates scale * (x outer y) into dst.
func addOuter(dst *mat.Dense, scale float64, x, y []float64) {
	for r, xr := range x {
		if xr == 0 {
			continue
		}
		floats.AddScaled(dst.RawRowView(r), scale*xr, y)
	}
}

// rowDot returns the dot product of row i of a and row i of b.
func rowDot(a, b *mat.Dense, i int) float64 {
	return floats.Dot(a.RawRowView(i), b.RawRowView(i))
}

func checkTriplet(anchor, pos, neg *mat.Dense, dim int) (batch int, err error) {
	var ar, ac = anchor.Dims()
	var pr, pc = pos.Dims()
	var nr, nc = neg.Dims()
	if pr != ar || nr != ar || pc != ac || nc != ac {
		return 0, errors.Errorf("triplet shapes differ: %dx%d, %dx%d, %dx%d", ar, ac, pr, pc, nr, nc)
	}
	if ac != dim {
		return 0, errors.Errorf("triplet has %d features, model expects %d", ac, dim)
	}
	return ar, nil
}

func checkPair(a, b *mat.Dense, dim int) (batch int, err error) {
	var ar, ac = a.Dims()
	var br, bc = b.Dims()
	if br != ar || bc != ac {
		return 0, errors.Errorf("pair shapes differ: %dx%d, %dx%d", ar, ac, br, bc)
	}
	if ac != dim {
		return 0, errors.Errorf("pair has %d features, model expects %d", ac, dim)
	}
	return ar, nil
}
