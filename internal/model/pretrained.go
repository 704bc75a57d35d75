package model

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mortonjt/poplar/internal/checkpoint"
	"github.com/mortonjt/poplar/internal/ml"
	"github.com/mortonjt/poplar/internal/peptide"
)

// EncoderEntry names the embedding matrix inside checkpoint files.
const EncoderEntry = "encoder.embedding"

// Pretrained is the frozen sequence encoder: a token embedding table mean
// pooled over the real tokens of each sequence. Its weights are saved with
// checkpoints but never handed to the optimizer.
type Pretrained struct {
	emb    *ml.Param
	dim    int
	maxLen int
}

// NewPretrained wraps an existing embedding table. The table must have one
// row per vocabulary symbol.
func NewPretrained(embedding *mat.Dense, maxLen int) (*Pretrained, error) {
	var rows, cols = embedding.Dims()
	if rows != peptide.VocabSize {
		return nil, errors.Errorf("embedding has %d rows, vocabulary needs %d", rows, peptide.VocabSize)
	}
	return &Pretrained{
		emb:    &ml.Param{Name: EncoderEntry, Value: embedding, Grad: mat.NewDense(rows, cols, nil)},
		dim:    cols,
		maxLen: maxLen,
	}, nil
}

// NewRandomPretrained builds an encoder with uniformly initialized
// embeddings, used when no pretrained checkpoint is supplied.
func NewRandomPretrained(dim, maxLen int, rnd *rand.Rand) *Pretrained {
	var emb = ml.NewParam(EncoderEntry, peptide.VocabSize, dim).
		Init(rnd, 2/float64(peptide.VocabSize+dim))
	return &Pretrained{emb: emb, dim: dim, maxLen: maxLen}
}

// LoadPretrained reads the embedding table from a checkpoint file.
func LoadPretrained(path string, maxLen int) (*Pretrained, error) {
	entries, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == EncoderEntry {
			return NewPretrained(e.Matrix, maxLen)
		}
	}
	return nil, errors.Errorf("checkpoint %s has no %s entry", path, EncoderEntry)
}

func (p *Pretrained) Dim() int { return p.dim }

func (p *Pretrained) MaxLen() int { return p.maxLen }

// Parameters returns the embedding as a named parameter for checkpointing.
func (p *Pretrained) Parameters() []*ml.Param {
	return []*ml.Param{p.emb}
}

// Encode embeds each sequence as the mean of its token embeddings. Sequences
// longer than the window are truncated before the start and end markers are
// added; padding never enters the mean.
func (p *Pretrained) Encode(seqs []string) (*mat.Dense, error) {
	var out = mat.NewDense(len(seqs), p.dim, nil)
	for i, seq := range seqs {
		if p.maxLen > 2 && len(seq) > p.maxLen-2 {
			seq = seq[:p.maxLen-2]
		}
		tokens, err := peptide.Encode(peptide.Spaced(seq))
		if err != nil {
			return nil, err
		}
		var row = out.RawRowView(i)
		for _, t := range tokens {
			floats.Add(row, p.emb.Value.RawRowView(t))
		}
		floats.Scale(1/float64(len(tokens)), row)
	}
	return out, nil
}
