package ml

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is one named weight matrix together with its gradient buffer.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func NewParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

func (p *Param) Dims() (rows, cols int) {
	return p.Value.Dims()
}

// Init fills the weights uniformly with the given variance and returns p.
func (p *Param) Init(rnd *rand.Rand, variance float64) *Param {
	InitUniform(rnd, p.Value.RawMatrix().Data, variance)
	return p
}

func (p *Param) ZeroGrad() {
	var data = p.Grad.RawMatrix().Data
	for i := range data {
		data[i] = 0
	}
}

// ThreadCopy returns a view sharing the weights but with a private gradient
// buffer, so replicas can accumulate concurrently.
func (p *Param) ThreadCopy() *Param {
	var rows, cols = p.Value.Dims()
	return &Param{
		Name:  p.Name,
		Value: p.Value,
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
