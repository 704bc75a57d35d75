package interactions

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DirectoryProvider builds the interaction Directory. The fasta pool is read
// up front, then links files are parsed on Workers goroutines while a
// collector reassembles them in directory order.
type DirectoryProvider struct {
	FastaPath      string
	LinksDir       string
	TrainingColumn string
	BatchSize      int
	Workers        int
	Seed           int64
	Logger         *zap.Logger
}

type linksJob struct {
	index int
	path  string
}

type shardResult struct {
	index int
	shard *Shard
}

func (dp *DirectoryProvider) Load(ctx context.Context) (*Directory, error) {
	if dp.BatchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	var logger = dp.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := LoadPool(dp.FastaPath)
	if err != nil {
		return nil, err
	}
	paths, err := linksFiles(dp.LinksDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no links files in %s", dp.LinksDir)
	}
	logger.Info("loading interaction directory",
		zap.Int("files", len(paths)),
		zap.Int("sequences", pool.Len()))

	var sampler = NewNegativeSampler(pool, dp.Seed)
	var workers = dp.Workers
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)

	var jobs = make(chan linksJob, 16)
	var results = make(chan shardResult, 16)

	g.Go(func() error {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- linksJob{index: i, path: path}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var shards = make([]*Shard, len(paths))
	g.Go(func() error {
		for res := range results {
			shards[res.index] = res.shard
		}
		return nil
	})

	var wg = &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return dp.parseShards(jobs, results, pool, sampler)
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewDirectory(shards), nil
}

func (dp *DirectoryProvider) parseShards(
	jobs <-chan linksJob,
	results chan<- shardResult,
	pool *Pool,
	sampler *NegativeSampler,
) error {
	for job := range jobs {
		// The split rng is seeded per file so results do not depend on
		// which worker picks the job up.
		var rnd = rand.New(rand.NewSource(dp.Seed + int64(job.index)))
		table, err := parseLinks(job.path, dp.TrainingColumn, pool, rnd)
		if err != nil {
			return err
		}
		var shard = &Shard{
			Name:  shardName(job.path),
			Train: NewLoader(table.train, dp.BatchSize, sampler),
			Test:  NewLoader(table.test, dp.BatchSize, sampler),
		}
		if len(table.valid) > 0 {
			shard.Valid = NewLoader(table.valid, dp.BatchSize, sampler)
		}
		results <- shardResult{index: job.index, shard: shard}
	}
	return nil
}

func linksFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

func shardName(path string) string {
	var base = filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
