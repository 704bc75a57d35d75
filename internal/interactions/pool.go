package interactions

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/mortonjt/poplar/internal/fasta"
)

// Pool is the id to sequence lookup parsed from a fasta file.
type Pool struct {
	ids  []string
	seqs map[string]string
}

func NewPool(records []fasta.Record) *Pool {
	var p = &Pool{seqs: make(map[string]string, len(records))}
	for _, rec := range records {
		if _, ok := p.seqs[rec.ID]; ok {
			// keep the first of duplicate ids
			continue
		}
		p.ids = append(p.ids, rec.ID)
		p.seqs[rec.ID] = rec.Seq
	}
	return p
}

func LoadPool(path string) (*Pool, error) {
	records, err := fasta.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Errorf("no sequences in %s", path)
	}
	return NewPool(records), nil
}

func (p *Pool) Len() int {
	return len(p.ids)
}

func (p *Pool) IDs() []string {
	return p.ids
}

func (p *Pool) Sequence(id string) (string, bool) {
	seq, ok := p.seqs[id]
	return seq, ok
}

// At returns the id and sequence at position i in fasta order.
func (p *Pool) At(i int) (string, string) {
	var id = p.ids[i]
	return id, p.seqs[id]
}

// NegativeSampler draws presumed non-interacting partners uniformly from the
// sequence pool.
type NegativeSampler struct {
	pool *Pool
	rnd  *rand.Rand
}

func NewNegativeSampler(pool *Pool, seed int64) *NegativeSampler {
	return &NegativeSampler{pool: pool, rnd: rand.New(rand.NewSource(seed))}
}

// Draw samples n sequences with replacement.
func (s *NegativeSampler) Draw(n int) []string {
	var seqs = make([]string, n)
	for i := range seqs {
		_, seqs[i] = s.pool.At(s.rnd.Intn(s.pool.Len()))
	}
	return seqs
}
