package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/mortonjt/poplar/internal/ml"
)

// Binder scores an ordered pair through separate left and right projections:
// the logit is dot(a*L, b*R) and Predict squashes it through a sigmoid. The
// asymmetry lets the head model directional interactions the shared
// projection of ContrastiveHead cannot.
type Binder struct {
	encoder   *Pretrained
	left      *ml.Param
	right     *ml.Param
	margin    float64
	dropout   float64
	lossScale float64
	training  bool
	rnd       *rand.Rand
}

func NewBinder(encoder *Pretrained, outDim int, rnd *rand.Rand) *Binder {
	var dim = encoder.Dim()
	var variance = 2 / float64(dim+outDim)
	return &Binder{
		encoder:   encoder,
		left:      ml.NewParam("left.weight", dim, outDim).Init(rnd, variance),
		right:     ml.NewParam("right.weight", dim, outDim).Init(rnd, variance),
		margin:    defaultMargin,
		dropout:   defaultDropout,
		lossScale: 1,
		training:  true,
		rnd:       rnd,
	}
}

func (h *Binder) Encode(seqs []string) (*mat.Dense, error) {
	return h.encoder.Encode(seqs)
}

// Forward ranks the positive logit above the negative one by the margin.
// The hinge acts on raw logits, not sigmoid outputs, matching the training
// objective of the upstream binder.
func (h *Binder) Forward(anchor, pos, neg *mat.Dense) ([]float64, error) {
	batch, err := checkTriplet(anchor, pos, neg, h.encoder.Dim())
	if err != nil {
		return nil, err
	}
	if h.training && h.dropout > 0 {
		anchor = applyDropout(anchor, h.dropout, h.rnd)
		pos = applyDropout(pos, h.dropout, h.rnd)
		neg = applyDropout(neg, h.dropout, h.rnd)
	}

	var al, pr, nr mat.Dense
	al.Mul(anchor, h.left.Value)
	pr.Mul(pos, h.right.Value)
	nr.Mul(neg, h.right.Value)

	var loss float64
	for i := 0; i < batch; i++ {
		var hinge = h.margin - rowDot(&al, &pr, i) + rowDot(&al, &nr, i)
		if hinge <= 0 {
			continue
		}
		loss += hinge
		if h.training {
			var c = h.lossScale / float64(batch)
			addOuter(h.left.Grad, -c, anchor.RawRowView(i), pr.RawRowView(i))
			addOuter(h.left.Grad, c, anchor.RawRowView(i), nr.RawRowView(i))
			addOuter(h.right.Grad, -c, pos.RawRowView(i), al.RawRowView(i))
			addOuter(h.right.Grad, c, neg.RawRowView(i), al.RawRowView(i))
		}
	}
	return []float64{h.lossScale * loss / float64(batch)}, nil
}

func (h *Binder) Predict(a, b *mat.Dense) ([]float64, error) {
	batch, err := checkPair(a, b, h.encoder.Dim())
	if err != nil {
		return nil, err
	}
	var ua, ub mat.Dense
	ua.Mul(a, h.left.Value)
	ub.Mul(b, h.right.Value)
	var scores = make([]float64, batch)
	for i := range scores {
		scores[i] = ml.Sigmoid(rowDot(&ua, &ub, i))
	}
	return scores, nil
}

func (h *Binder) SetTraining(on bool) { h.training = on }

func (h *Binder) SetLossScale(s float64) { h.lossScale = s }

func (h *Binder) ZeroGrad() {
	h.left.ZeroGrad()
	h.right.ZeroGrad()
}

func (h *Binder) Replicas() int { return 1 }

func (h *Binder) Parameters() []*ml.Param {
	return []*ml.Param{h.left, h.right}
}

func (h *Binder) UnderlyingParameters() []*ml.Param {
	return append(h.encoder.Parameters(), h.left, h.right)
}

func (h *Binder) ThreadCopy() IScoringModel {
	return &Binder{
		encoder:   h.encoder,
		left:      h.left.ThreadCopy(),
		right:     h.right.ThreadCopy(),
		margin:    h.margin,
		dropout:   h.dropout,
		lossScale: h.lossScale,
		training:  h.training,
		rnd:       rand.New(rand.NewSource(h.rnd.Int63())),
	}
}
