package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mortonjt/poplar/internal/fasta"
	"github.com/mortonjt/poplar/internal/interactions"
	"github.com/mortonjt/poplar/internal/peptide"
)

type Config struct {
	fastaFile      string
	linksDir       string
	trainingColumn string
	workers        int
	seed           int64
}

var config Config

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	flag.StringVar(&config.fastaFile, "fasta", "", "FASTA file of protein sequences")
	flag.StringVar(&config.linksDir, "links", "", "Directory of interaction link files")
	flag.StringVar(&config.trainingColumn, "column", "Training", "Links column holding the Train/Test/Validate split")
	flag.IntVar(&config.workers, "workers", runtime.NumCPU(), "Links parser goroutines")
	flag.Int64Var(&config.seed, "seed", 0, "Random seed for shard splits without a training column")
	flag.Parse()

	log.Printf("%+v", config)

	var err = run()
	if err != nil {
		log.Println(err)
	}
}

func run() error {
	records, err := fasta.ReadFile(config.fastaFile)
	if err != nil {
		return err
	}

	var lengths = make([]float64, 0, len(records))
	var invalid int
	err = tqdm.With(iterators.Interval(0, len(records)), "Validating sequences", func(c interface{}) (brk bool) {
		var rec = records[c.(int)]
		if _, encErr := peptide.Encode(peptide.Spaced(rec.Seq)); encErr != nil {
			invalid++
			log.Printf("sequence %s: %v", rec.ID, encErr)
			return
		}
		lengths = append(lengths, float64(len(rec.Seq)))
		return
	})
	if err != nil {
		return err
	}

	var provider = &interactions.DirectoryProvider{
		FastaPath:      config.fastaFile,
		LinksDir:       config.linksDir,
		TrainingColumn: config.trainingColumn,
		BatchSize:      1,
		Workers:        config.workers,
		Seed:           config.seed,
	}
	dir, err := provider.Load(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("sequences: %d valid, %d invalid\n", len(lengths), invalid)
	if len(lengths) > 0 {
		var mean, std, lo, hi = lengthStats(lengths)
		fmt.Printf("residues per sequence: mean=%.1f std=%.1f min=%.0f max=%.0f\n",
			mean, std, lo, hi)
	}
	fmt.Printf("shards: %d, interaction pairs: %d\n", dir.Len(), dir.Total())

	var w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "shard\ttrain\ttest\tvalid")
	for _, shard := range dir.Shards() {
		var valid int
		if shard.Valid != nil {
			valid = shard.Valid.Pairs()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n",
			shard.Name, shard.Train.Pairs(), shard.Test.Pairs(), valid)
	}
	return w.Flush()
}

// lengthStats summarizes sequence lengths. The sample deviation needs two
// observations, so a single sequence reports zero spread instead of NaN.
func lengthStats(lengths []float64) (mean, std, lo, hi float64) {
	mean, std = stat.MeanStdDev(lengths, nil)
	if len(lengths) < 2 {
		std = 0
	}
	return mean, std, floats.Min(lengths), floats.Max(lengths)
}
