package model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"

	"github.com/mortonjt/poplar/internal/ml"
)

// Replicated fans a forward pass out over thread copies of one head. The
// copies share weights with the main head but accumulate into private
// gradient buffers, which are merged back scaled by 1/replicas after every
// pass. With evenly divisible batches the merged gradient equals the
// single-copy gradient over the whole batch.
type Replicated struct {
	main     IReplicable
	replicas []IScoringModel
	training bool
}

func NewReplicated(main IReplicable, n int) *Replicated {
	var replicas = make([]IScoringModel, n)
	for i := range replicas {
		replicas[i] = main.ThreadCopy()
	}
	return &Replicated{main: main, replicas: replicas, training: true}
}

func (r *Replicated) Encode(seqs []string) (*mat.Dense, error) {
	return r.main.Encode(seqs)
}

// Forward splits the batch into contiguous chunks, one per replica, and
// returns the per-replica losses. Replicas whose chunk is empty (batches
// smaller than the replica count) contribute neither a loss nor a gradient.
func (r *Replicated) Forward(anchor, pos, neg *mat.Dense) ([]float64, error) {
	var rows, cols = anchor.Dims()
	var chunks = splitRows(rows, len(r.replicas))
	var losses = make([]float64, len(r.replicas))
	var used = make([]bool, len(r.replicas))

	var g errgroup.Group
	for k, ch := range chunks {
		if ch.begin == ch.end {
			continue
		}
		used[k] = true
		k, ch := k, ch
		g.Go(func() error {
			var la = anchor.Slice(ch.begin, ch.end, 0, cols).(*mat.Dense)
			var lp = pos.Slice(ch.begin, ch.end, 0, cols).(*mat.Dense)
			var ln = neg.Slice(ch.begin, ch.end, 0, cols).(*mat.Dense)
			part, err := r.replicas[k].Forward(la, lp, ln)
			if err != nil {
				return err
			}
			losses[k] = part[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out = make([]float64, 0, len(r.replicas))
	for k, u := range used {
		if u {
			out = append(out, losses[k])
		}
	}
	if r.training {
		r.mergeGradients(used)
	}
	return out, nil
}

// mergeGradients folds replica gradients into the main head and clears the
// replica buffers for the next pass.
func (r *Replicated) mergeGradients(used []bool) {
	var n = 0
	for _, u := range used {
		if u {
			n++
		}
	}
	if n == 0 {
		return
	}
	var scale = 1 / float64(n)
	var mainParams = r.main.Parameters()
	for k, replica := range r.replicas {
		if !used[k] {
			continue
		}
		for j, p := range replica.Parameters() {
			floats.AddScaled(
				mainParams[j].Grad.RawMatrix().Data,
				scale,
				p.Grad.RawMatrix().Data,
			)
			p.ZeroGrad()
		}
	}
}

func (r *Replicated) Predict(a, b *mat.Dense) ([]float64, error) {
	return r.main.Predict(a, b)
}

func (r *Replicated) SetTraining(on bool) {
	r.training = on
	r.main.SetTraining(on)
	for _, replica := range r.replicas {
		replica.SetTraining(on)
	}
}

func (r *Replicated) SetLossScale(s float64) {
	r.main.SetLossScale(s)
	for _, replica := range r.replicas {
		replica.SetLossScale(s)
	}
}

func (r *Replicated) ZeroGrad() {
	r.main.ZeroGrad()
	for _, replica := range r.replicas {
		replica.ZeroGrad()
	}
}

func (r *Replicated) Replicas() int { return len(r.replicas) }

func (r *Replicated) Parameters() []*ml.Param { return r.main.Parameters() }

func (r *Replicated) UnderlyingParameters() []*ml.Param {
	return r.main.UnderlyingParameters()
}

type rowChunk struct {
	begin, end int
}

// splitRows cuts rows into n contiguous chunks; the remainder spreads one
// extra row over the leading chunks.
func splitRows(rows, n int) []rowChunk {
	var chunks = make([]rowChunk, n)
	var base, rem = rows / n, rows % n
	var at = 0
	for i := range chunks {
		var size = base
		if i < rem {
			size++
		}
		chunks[i] = rowChunk{begin: at, end: at + size}
		at += size
	}
	return chunks
}
