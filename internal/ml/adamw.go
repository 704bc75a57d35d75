package ml

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	Beta1 = 0.9
	Beta2 = 0.999
)

// AdamW applies bias-corrected Adam updates with decoupled weight decay.
// LR is public so a schedule can adjust it between steps.
type AdamW struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	params []*Param
	m      []*mat.Dense
	v      []*mat.Dense
	step   int
}

func NewAdamW(params []*Param, lr float64) *AdamW {
	var o = &AdamW{
		LR:     lr,
		Beta1:  Beta1,
		Beta2:  Beta2,
		Eps:    1e-6,
		params: params,
		m:      make([]*mat.Dense, len(params)),
		v:      make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		var rows, cols = p.Dims()
		o.m[i] = mat.NewDense(rows, cols, nil)
		o.v[i] = mat.NewDense(rows, cols, nil)
	}
	return o
}

// Step consumes the accumulated gradients and updates the weights in place.
// Gradients are left untouched; the caller decides when to zero them.
func (o *AdamW) Step() {
	o.step++
	var c1 = 1 / (1 - math.Pow(o.Beta1, float64(o.step)))
	var c2 = 1 / (1 - math.Pow(o.Beta2, float64(o.step)))
	for i, p := range o.params {
		var value = p.Value.RawMatrix().Data
		var grad = p.Grad.RawMatrix().Data
		var m = o.m[i].RawMatrix().Data
		var v = o.v[i].RawMatrix().Data
		for j := range value {
			var g = grad[j]
			m[j] = o.Beta1*m[j] + (1-o.Beta1)*g
			v[j] = o.Beta2*v[j] + (1-o.Beta2)*g*g
			var mhat = m[j] * c1
			var vhat = v[j] * c2
			value[j] -= o.LR * (mhat/(math.Sqrt(vhat)+o.Eps) + o.WeightDecay*value[j])
		}
	}
}

// Steps reports how many optimizer steps have been applied.
func (o *AdamW) Steps() int {
	return o.step
}
