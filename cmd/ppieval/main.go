package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mortonjt/poplar/internal/interactions"
	"github.com/mortonjt/poplar/internal/logutil"
	"github.com/mortonjt/poplar/internal/model"
	"github.com/mortonjt/poplar/internal/train"
)

type Config struct {
	modelPath      string
	fastaFile      string
	linksDir       string
	trainingColumn string
	batchSize      int
	maxSeqLen      int
	workers        int
	seed           int64
	validation     bool
}

var config Config

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	flag.StringVar(&config.modelPath, "model", "", "Checkpoint to evaluate")
	flag.StringVar(&config.fastaFile, "fasta", "", "FASTA file of protein sequences")
	flag.StringVar(&config.linksDir, "links", "", "Directory of interaction link files")
	flag.StringVar(&config.trainingColumn, "column", "Training", "Links column holding the Train/Test/Validate split")
	flag.IntVar(&config.batchSize, "bs", 10, "Triplets per batch")
	flag.IntVar(&config.maxSeqLen, "maxlen", 1024, "Max encoded sequence length")
	flag.IntVar(&config.workers, "workers", runtime.NumCPU(), "Links parser goroutines")
	flag.Int64Var(&config.seed, "seed", 0, "Random seed for negative sampling")
	flag.BoolVar(&config.validation, "valid", false, "Score validation splits instead of test splits")
	flag.Parse()

	log.Printf("%+v", config)

	var err = run()
	if err != nil {
		log.Println(err)
	}
}

func run() error {
	var logger = logutil.New()
	defer logger.Sync()

	head, err := model.LoadModel(config.modelPath, config.maxSeqLen)
	if err != nil {
		return err
	}
	logger.Info("loaded model", zap.String("path", config.modelPath))

	var provider = &interactions.DirectoryProvider{
		FastaPath:      config.fastaFile,
		LinksDir:       config.linksDir,
		TrainingColumn: config.trainingColumn,
		BatchSize:      config.batchSize,
		Workers:        config.workers,
		Seed:           config.seed,
		Logger:         logger,
	}
	dir, err := provider.Load(context.Background())
	if err != nil {
		return err
	}

	var w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "shard\tbatches\ttest_error\tTPR\tpos_score")
	var scored int
	for _, shard := range dir.Shards() {
		var loader = shard.Test
		if config.validation {
			loader = shard.Valid
		}
		cv, err := train.CrossValidate(head, loader)
		if err != nil {
			return err
		}
		if cv == nil {
			logger.Info("shard has no batches to score", zap.String("shard", shard.Name))
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\t%.4f\n",
			shard.Name, cv.Batches, cv.Err, cv.TPR, cv.PosScore)
		logger.Info("scored shard",
			zap.String("shard", shard.Name),
			zap.Int("batches", cv.Batches),
			zap.Float64("test_error", cv.Err),
			zap.Float64("TPR", cv.TPR),
			zap.Float64("pos_score", cv.PosScore))
		scored++
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if scored == 0 {
		return errors.New("no shard had batches to score")
	}
	return nil
}
