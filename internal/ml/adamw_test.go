package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAdamWFirstStep(t *testing.T) {
	var p = NewParam("w", 1, 2)
	p.Value.Set(0, 0, 1)
	p.Value.Set(0, 1, 2)
	p.Grad.Set(0, 0, 0.1)
	p.Grad.Set(0, 1, -0.2)

	var opt = NewAdamW([]*Param{p}, 0.01)
	opt.Step()

	// On the first step the bias correction makes mhat equal the raw
	// gradient and sqrt(vhat) its magnitude.
	var want0 = 1 - 0.01*(0.1/(0.1+1e-6))
	var want1 = 2 + 0.01*(0.2/(0.2+1e-6))
	assert.InDelta(t, want0, p.Value.At(0, 0), 1e-12)
	assert.InDelta(t, want1, p.Value.At(0, 1), 1e-12)
	assert.Equal(t, 1, opt.Steps())
}

func TestAdamWWeightDecay(t *testing.T) {
	var p = NewParam("w", 1, 1)
	p.Value.Set(0, 0, 1)
	p.Grad.Set(0, 0, 0.1)

	var opt = NewAdamW([]*Param{p}, 0.01)
	opt.WeightDecay = 0.01
	opt.Step()

	var want = 1 - 0.01*(0.1/(0.1+1e-6)+0.01*1)
	assert.InDelta(t, want, p.Value.At(0, 0), 1e-12)
}

func TestAdamWZeroGradientHolds(t *testing.T) {
	var p = NewParam("w", 2, 2)
	p.Value.Set(1, 1, 3)

	var opt = NewAdamW([]*Param{p}, 0.1)
	opt.Step()

	assert.InDelta(t, 3, p.Value.At(1, 1), 1e-12)
}

func TestAdamWLeavesGradients(t *testing.T) {
	var p = NewParam("w", 1, 1)
	p.Grad.Set(0, 0, 0.5)

	var opt = NewAdamW([]*Param{p}, 0.01)
	opt.Step()

	// Zeroing is the caller's call, to allow accumulation across batches.
	assert.InDelta(t, 0.5, p.Grad.At(0, 0), 1e-12)
}

func TestAdamWConverges(t *testing.T) {
	// Minimize (w - 5)^2 by feeding the analytic gradient.
	var p = NewParam("w", 1, 1)
	var opt = NewAdamW([]*Param{p}, 0.1)
	for i := 0; i < 2000; i++ {
		var w = p.Value.At(0, 0)
		p.Grad.Set(0, 0, 2*(w-5))
		opt.Step()
		p.ZeroGrad()
	}
	assert.InDelta(t, 5, p.Value.At(0, 0), 1e-2)
	require.Equal(t, 2000, opt.Steps())
}

func TestAdamWMomentShapes(t *testing.T) {
	var params = []*Param{NewParam("a", 2, 3), NewParam("b", 4, 1)}
	var opt = NewAdamW(params, 0.01)
	require.Len(t, opt.m, 2)
	var rows, cols = opt.m[0].Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	rows, cols = opt.v[1].Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 1, cols)
	assert.True(t, mat.Equal(opt.m[0], mat.NewDense(2, 3, nil)))
}
