package interactions

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortonjt/poplar/internal/fasta"
)

func testPool() *Pool {
	return NewPool([]fasta.Record{
		{ID: "P1", Seq: "MKV"},
		{ID: "P2", Seq: "AGQ"},
		{ID: "P3", Seq: "LKC"},
		{ID: "P4", Seq: "YWH"},
	})
}

func TestPool(t *testing.T) {
	var pool = NewPool([]fasta.Record{
		{ID: "P1", Seq: "MKV"},
		{ID: "P1", Seq: "XXX"},
		{ID: "P2", Seq: "AGQ"},
	})
	assert.Equal(t, 2, pool.Len())

	seq, ok := pool.Sequence("P1")
	require.True(t, ok)
	assert.Equal(t, "MKV", seq)

	_, ok = pool.Sequence("P9")
	assert.False(t, ok)

	id, seq := pool.At(1)
	assert.Equal(t, "P2", id)
	assert.Equal(t, "AGQ", seq)
}

func TestNegativeSampler(t *testing.T) {
	var pool = testPool()
	var seqs = NewNegativeSampler(pool, 1).Draw(32)
	require.Len(t, seqs, 32)
	for _, s := range seqs {
		assert.Contains(t, []string{"MKV", "AGQ", "LKC", "YWH"}, s)
	}

	var again = NewNegativeSampler(pool, 1).Draw(32)
	assert.Equal(t, seqs, again)
}

func TestLoaderBatches(t *testing.T) {
	var pool = testPool()
	var pairs = []Pair{
		{Anchor: "MKV", Positive: "AGQ"},
		{Anchor: "AGQ", Positive: "LKC"},
		{Anchor: "LKC", Positive: "YWH"},
		{Anchor: "YWH", Positive: "MKV"},
		{Anchor: "MKV", Positive: "LKC"},
	}
	var loader = NewLoader(pairs, 2, NewNegativeSampler(pool, 7))

	assert.Equal(t, 2, loader.BatchSize())
	assert.Equal(t, 5, loader.Pairs())
	// the trailing partial batch is dropped
	assert.Equal(t, 2, loader.Len())

	var batches = loader.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"MKV", "AGQ"}, batches[0].Anchors)
	assert.Equal(t, []string{"AGQ", "LKC"}, batches[0].Positives)
	assert.Len(t, batches[0].Negatives, 2)
	assert.Equal(t, 2, batches[0].Len())

	// the same seed reproduces the same negatives
	var replay = NewLoader(pairs, 2, NewNegativeSampler(pool, 7)).Batches()
	assert.Equal(t, batches, replay)
}

func TestLoaderRerollsNegatives(t *testing.T) {
	var pool = testPool()
	var pairs = make([]Pair, 16)
	for i := range pairs {
		pairs[i] = Pair{Anchor: "MKV", Positive: "AGQ"}
	}
	var loader = NewLoader(pairs, 16, NewNegativeSampler(pool, 3))

	var first = loader.Batches()[0].Negatives
	var second = loader.Batches()[0].Negatives
	assert.NotEqual(t, first, second)
}

func TestLoaderEmpty(t *testing.T) {
	var loader = NewLoader(nil, 2, NewNegativeSampler(testPool(), 0))
	assert.Equal(t, 0, loader.Len())
	assert.Empty(t, loader.Batches())
}

func TestShardPairs(t *testing.T) {
	var sampler = NewNegativeSampler(testPool(), 0)
	var shard = &Shard{
		Name:  "links",
		Train: NewLoader(make([]Pair, 4), 2, sampler),
		Test:  NewLoader(make([]Pair, 2), 2, sampler),
	}
	assert.Equal(t, 6, shard.Pairs())

	shard.Valid = NewLoader(make([]Pair, 3), 2, sampler)
	assert.Equal(t, 9, shard.Pairs())
}

func TestDirectoryTotal(t *testing.T) {
	var sampler = NewNegativeSampler(testPool(), 0)
	var dir = NewDirectory([]*Shard{
		{Name: "a", Train: NewLoader(make([]Pair, 4), 2, sampler), Test: NewLoader(nil, 2, sampler)},
		{Name: "b", Train: NewLoader(make([]Pair, 3), 2, sampler), Test: NewLoader(make([]Pair, 1), 2, sampler)},
	})
	assert.Equal(t, 2, dir.Len())
	assert.Equal(t, 8, dir.Total())
}

func TestParseLinksTrainingColumn(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "links.txt")
	var content = "protein1\tprotein2\tscore\tTraining\n" +
		"P1\tP2\t0.9\tTrain\n" +
		"P2\tP3\t0.8\tTrain\n" +
		"P3\tP4\t0.7\tTest\n" +
		"P4\tP1\t0.6\tValid\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := parseLinks(path, "Training", testPool(), rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	assert.Len(t, table.train, 2)
	assert.Len(t, table.test, 1)
	assert.Len(t, table.valid, 1)
	assert.Equal(t, Pair{Anchor: "MKV", Positive: "AGQ"}, table.train[0])
}

func TestParseLinksFallbackSplit(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "links.txt")
	var content = "protein1\tprotein2\n"
	for i := 0; i < 200; i++ {
		content += "P1\tP2\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := parseLinks(path, "Training", testPool(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 200, len(table.train)+len(table.test))
	assert.Greater(t, len(table.train), 160)
	assert.Greater(t, len(table.test), 0)
	assert.Empty(t, table.valid)
}

func TestParseLinksErrors(t *testing.T) {
	var tests = []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"one column header", "protein1\nP1\n"},
		{"unknown id", "protein1\tprotein2\nP1\tP9\n"},
		{"unknown label", "protein1\tprotein2\tTraining\nP1\tP2\tMaybe\n"},
		{"short row", "protein1\tprotein2\nP1\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var path = filepath.Join(t.TempDir(), "links.txt")
			require.NoError(t, os.WriteFile(path, []byte(test.content), 0o644))
			_, err := parseLinks(path, "Training", testPool(), rand.New(rand.NewSource(0)))
			assert.Error(t, err)
		})
	}
}

func TestParseLinksHeaderOnly(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "links.txt")
	require.NoError(t, os.WriteFile(path, []byte("protein1\tprotein2\tTraining\n"), 0o644))

	table, err := parseLinks(path, "Training", testPool(), rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	assert.Empty(t, table.train)
	assert.Empty(t, table.test)
}
