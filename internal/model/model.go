// Package model implements interaction scoring models: a frozen sequence
// encoder plus trainable heads that score protein pairs over its embeddings.
package model

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mortonjt/poplar/internal/checkpoint"
	"github.com/mortonjt/poplar/internal/ml"
)

// Head kinds accepted by NewHead.
const (
	HeadContrastive = "contrastive"
	HeadBinder      = "binder"
)

const (
	defaultMargin  = 1.0
	defaultDropout = 0.1
)

// IScoringModel is the contract the trainer drives. One interface covers
// plain heads and replicated wrappers alike, so training and cross
// validation never branch on the concrete model.
type IScoringModel interface {
	// Encode embeds raw residue sequences, one row per sequence.
	Encode(seqs []string) (*mat.Dense, error)
	// Forward computes per-replica hinge losses for a triplet batch. In
	// training mode it also accumulates gradients, scaled by the loss
	// scale set via SetLossScale.
	Forward(anchor, pos, neg *mat.Dense) ([]float64, error)
	// Predict scores pairs row by row. It never applies dropout.
	Predict(a, b *mat.Dense) ([]float64, error)
	SetTraining(on bool)
	SetLossScale(s float64)
	ZeroGrad()
	Replicas() int
	// Parameters returns the weights the optimizer updates.
	Parameters() []*ml.Param
	// UnderlyingParameters returns every persistent weight of the model
	// itself, frozen encoder state included, never a replica's buffers.
	UnderlyingParameters() []*ml.Param
}

// IReplicable is satisfied by heads that can hand out thread copies sharing
// weights but owning private gradient buffers.
type IReplicable interface {
	IScoringModel
	ThreadCopy() IScoringModel
}

// NewHead builds a scoring head of the given kind over a frozen encoder.
func NewHead(kind string, encoder *Pretrained, outDim int, rnd *rand.Rand) (IReplicable, error) {
	switch kind {
	case HeadContrastive:
		return NewContrastiveHead(encoder, outDim, rnd), nil
	case HeadBinder:
		return NewBinder(encoder, outDim, rnd), nil
	}
	return nil, errors.Errorf("unknown head kind %q", kind)
}

// LoadModel rebuilds a scoring head from a training checkpoint, inferring
// the head kind from the entry names.
func LoadModel(path string, maxLen int) (IReplicable, error) {
	entries, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}
	var find = func(name string) *mat.Dense {
		for _, e := range entries {
			if e.Name == name {
				return e.Matrix
			}
		}
		return nil
	}
	var emb = find(EncoderEntry)
	if emb == nil {
		return nil, errors.Errorf("checkpoint %s has no %s entry", path, EncoderEntry)
	}
	encoder, err := NewPretrained(emb, maxLen)
	if err != nil {
		return nil, err
	}

	var rnd = rand.New(rand.NewSource(0))
	var head IReplicable
	if proj := find("proj.weight"); proj != nil {
		var _, outDim = proj.Dims()
		head = NewContrastiveHead(encoder, outDim, rnd)
	} else if left := find("left.weight"); left != nil {
		var _, outDim = left.Dims()
		head = NewBinder(encoder, outDim, rnd)
	} else {
		return nil, errors.Errorf("checkpoint %s has no scoring head entries", path)
	}
	if err := checkpoint.Restore(entries, head.UnderlyingParameters()); err != nil {
		return nil, err
	}
	return head, nil
}
