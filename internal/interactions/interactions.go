// Package interactions loads protein interaction datasets: a directory of
// links files backed by a fasta sequence pool, split per file into
// train/test/valid loaders that yield anchor/positive/negative triples.
package interactions

// Pair is one known interacting pair, resolved to raw sequences.
type Pair struct {
	Anchor   string
	Positive string
}

// Batch carries the sequences for one training step.
type Batch struct {
	Anchors   []string
	Positives []string
	Negatives []string
}

func (b *Batch) Len() int {
	return len(b.Anchors)
}

// Loader serves fixed-size triple batches. Negatives are drawn fresh from
// the sampler on every pass, so repeated iteration re-rolls them.
type Loader struct {
	pairs     []Pair
	batchSize int
	sampler   *NegativeSampler
}

func NewLoader(pairs []Pair, batchSize int, sampler *NegativeSampler) *Loader {
	return &Loader{pairs: pairs, batchSize: batchSize, sampler: sampler}
}

func (l *Loader) BatchSize() int {
	return l.batchSize
}

// Pairs counts the interaction rows behind the loader.
func (l *Loader) Pairs() int {
	return len(l.pairs)
}

// Len is the number of full batches; a trailing partial batch is dropped.
func (l *Loader) Len() int {
	return len(l.pairs) / l.batchSize
}

func (l *Loader) Batches() []Batch {
	var batches = make([]Batch, 0, l.Len())
	for i := 0; i+l.batchSize <= len(l.pairs); i += l.batchSize {
		var chunk = l.pairs[i : i+l.batchSize]
		var b = Batch{
			Anchors:   make([]string, len(chunk)),
			Positives: make([]string, len(chunk)),
		}
		for j, pair := range chunk {
			b.Anchors[j] = pair.Anchor
			b.Positives[j] = pair.Positive
		}
		b.Negatives = l.sampler.Draw(len(chunk))
		batches = append(batches, b)
	}
	return batches
}

// Shard is one links file split into loaders. Valid is nil when the file has
// no validation rows.
type Shard struct {
	Name  string
	Train *Loader
	Test  *Loader
	Valid *Loader
}

// Pairs counts every interaction row in the shard.
func (s *Shard) Pairs() int {
	var total = s.Train.Pairs() + s.Test.Pairs()
	if s.Valid != nil {
		total += s.Valid.Pairs()
	}
	return total
}

// Directory is the ordered collection of shards under one links directory.
type Directory struct {
	shards []*Shard
}

func NewDirectory(shards []*Shard) *Directory {
	return &Directory{shards: shards}
}

func (d *Directory) Len() int {
	return len(d.shards)
}

func (d *Directory) Shards() []*Shard {
	return d.shards
}

// Total counts interaction pairs across every shard.
func (d *Directory) Total() int {
	var total int
	for _, s := range d.shards {
		total += s.Pairs()
	}
	return total
}
