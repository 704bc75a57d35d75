package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/mortonjt/poplar/internal/ml"
)

// ContrastiveHead scores a pair by projecting both embeddings through one
// shared matrix and taking the dot product. Training minimizes the triplet
// hinge max(0, margin - sim(a,p) + sim(a,n)) averaged over the batch, with
// gradients derived by hand against the projection.
type ContrastiveHead struct {
	encoder   *Pretrained
	proj      *ml.Param
	margin    float64
	dropout   float64
	lossScale float64
	training  bool
	rnd       *rand.Rand
}

func NewContrastiveHead(encoder *Pretrained, outDim int, rnd *rand.Rand) *ContrastiveHead {
	var dim = encoder.Dim()
	return &ContrastiveHead{
		encoder:   encoder,
		proj:      ml.NewParam("proj.weight", dim, outDim).Init(rnd, 2/float64(dim+outDim)),
		margin:    defaultMargin,
		dropout:   defaultDropout,
		lossScale: 1,
		training:  true,
		rnd:       rnd,
	}
}

func (h *ContrastiveHead) Encode(seqs []string) (*mat.Dense, error) {
	return h.encoder.Encode(seqs)
}

func (h *ContrastiveHead) Forward(anchor, pos, neg *mat.Dense) ([]float64, error) {
	batch, err := checkTriplet(anchor, pos, neg, h.encoder.Dim())
	if err != nil {
		return nil, err
	}
	if h.training && h.dropout > 0 {
		anchor = applyDropout(anchor, h.dropout, h.rnd)
		pos = applyDropout(pos, h.dropout, h.rnd)
		neg = applyDropout(neg, h.dropout, h.rnd)
	}

	var ap, pp, np mat.Dense
	ap.Mul(anchor, h.proj.Value)
	pp.Mul(pos, h.proj.Value)
	np.Mul(neg, h.proj.Value)

	var loss float64
	for i := 0; i < batch; i++ {
		var hinge = h.margin - rowDot(&ap, &pp, i) + rowDot(&ap, &np, i)
		if hinge <= 0 {
			continue
		}
		loss += hinge
		if h.training {
			// d sim(u,v) / dP = u^T (vP) + v^T (uP), applied with -1
			// for the positive similarity and +1 for the negative.
			var c = h.lossScale / float64(batch)
			addOuter(h.proj.Grad, -c, anchor.RawRowView(i), pp.RawRowView(i))
			addOuter(h.proj.Grad, -c, pos.RawRowView(i), ap.RawRowView(i))
			addOuter(h.proj.Grad, c, anchor.RawRowView(i), np.RawRowView(i))
			addOuter(h.proj.Grad, c, neg.RawRowView(i), ap.RawRowView(i))
		}
	}
	return []float64{h.lossScale * loss / float64(batch)}, nil
}

func (h *ContrastiveHead) Predict(a, b *mat.Dense) ([]float64, error) {
	batch, err := checkPair(a, b, h.encoder.Dim())
	if err != nil {
		return nil, err
	}
	var ua, ub mat.Dense
	ua.Mul(a, h.proj.Value)
	ub.Mul(b, h.proj.Value)
	var scores = make([]float64, batch)
	for i := range scores {
		scores[i] = rowDot(&ua, &ub, i)
	}
	return scores, nil
}

func (h *ContrastiveHead) SetTraining(on bool) { h.training = on }

func (h *ContrastiveHead) SetLossScale(s float64) { h.lossScale = s }

func (h *ContrastiveHead) ZeroGrad() { h.proj.ZeroGrad() }

func (h *ContrastiveHead) Replicas() int { return 1 }

func (h *ContrastiveHead) Parameters() []*ml.Param {
	return []*ml.Param{h.proj}
}

func (h *ContrastiveHead) UnderlyingParameters() []*ml.Param {
	return append(h.encoder.Parameters(), h.proj)
}

func (h *ContrastiveHead) ThreadCopy() IScoringModel {
	return &ContrastiveHead{
		encoder:   h.encoder,
		proj:      h.proj.ThreadCopy(),
		margin:    h.margin,
		dropout:   h.dropout,
		lossScale: h.lossScale,
		training:  h.training,
		rnd:       rand.New(rand.NewSource(h.rnd.Int63())),
	}
}
