package ml

import "math"

// WarmupLinear raises the learning rate linearly from zero over the warmup
// steps, then decays it linearly to zero at totalSteps. The factor for the
// current step is applied to the optimizer before the next Step call, so with
// a positive warmup the very first optimizer step runs at learning rate zero.
type WarmupLinear struct {
	opt    *AdamW
	baseLR float64
	warmup int
	total  int
	step   int
}

func NewWarmupLinear(opt *AdamW, warmupSteps, totalSteps int) *WarmupLinear {
	var s = &WarmupLinear{
		opt:    opt,
		baseLR: opt.LR,
		warmup: warmupSteps,
		total:  totalSteps,
	}
	s.opt.LR = s.baseLR * s.Factor(0)
	return s
}

// Factor is the learning rate multiplier at the given schedule step.
func (s *WarmupLinear) Factor(step int) float64 {
	if step < s.warmup {
		return float64(step) / float64(max(1, s.warmup))
	}
	return math.Max(0, float64(s.total-step)/float64(max(1, s.total-s.warmup)))
}

// Step advances the schedule and sets the optimizer learning rate.
func (s *WarmupLinear) Step() {
	s.step++
	s.opt.LR = s.baseLR * s.Factor(s.step)
}

// Steps reports how many schedule steps have been taken.
func (s *WarmupLinear) Steps() int {
	return s.step
}
