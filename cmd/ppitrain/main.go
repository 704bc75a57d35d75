package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/mortonjt/poplar/internal/logutil"
	"github.com/mortonjt/poplar/internal/train"
)

var config = train.DefaultRunConfig()

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// The config file loads before flag registration so explicit flags
	// override its values.
	if path := configArg(os.Args[1:]); path != "" {
		if err := train.LoadRunConfig(path, &config); err != nil {
			log.Fatalln(err)
		}
	}

	flag.String("config", "", "YAML config file with the same keys; flags override it")
	flag.StringVar(&config.FastaFile, "fasta", config.FastaFile, "FASTA file of protein sequences")
	flag.StringVar(&config.LinksDir, "links", config.LinksDir, "Directory of interaction link files")
	flag.StringVar(&config.PretrainedPath, "pretrained", config.PretrainedPath, "Pretrained encoder checkpoint")
	flag.StringVar(&config.ModelPath, "model", config.ModelPath, "Checkpoint path prefix")
	flag.StringVar(&config.LogDir, "logdir", config.LogDir, "Metric log directory")
	flag.StringVar(&config.TrainingColumn, "column", config.TrainingColumn, "Links column holding the Train/Test/Validate split")
	flag.StringVar(&config.Head, "head", config.Head, "Scoring head: contrastive or binder")
	flag.IntVar(&config.EncoderDim, "dim", config.EncoderDim, "Random encoder embedding dimension")
	flag.IntVar(&config.EmbDimension, "emb", config.EmbDimension, "Head output dimension")
	flag.IntVar(&config.MaxSeqLen, "maxlen", config.MaxSeqLen, "Max encoded sequence length")
	flag.IntVar(&config.MaxSteps, "steps", config.MaxSteps, "Examples to train on")
	flag.Float64Var(&config.LearningRate, "lr", config.LearningRate, "Peak learning rate")
	flag.IntVar(&config.WarmupSteps, "warmup", config.WarmupSteps, "Scheduler warmup steps")
	flag.IntVar(&config.AccumulationSteps, "accum", config.AccumulationSteps, "Gradient accumulation steps")
	flag.Float64Var(&config.ClipNorm, "clip", config.ClipNorm, "Gradient clipping norm")
	flag.IntVar(&config.BatchSize, "bs", config.BatchSize, "Triplets per batch")
	flag.IntVar(&config.Workers, "workers", config.Workers, "Links parser goroutines")
	flag.Float64Var(&config.SummarySeconds, "summary", config.SummarySeconds, "Seconds between metric summaries")
	flag.IntVar(&config.SummarySteps, "summarysteps", config.SummarySteps, "Examples between summaries, overrides -summary")
	flag.Float64Var(&config.CheckpointSeconds, "checkpoint", config.CheckpointSeconds, "Seconds between checkpoints")
	flag.IntVar(&config.Replicas, "replicas", config.Replicas, "Data-parallel model replicas")
	flag.Int64Var(&config.Seed, "seed", config.Seed, "Random seed")
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

	summary, err := train.Run(context.Background(), config, logger)
	if err != nil {
		return err
	}
	log.Printf("trained on %d examples over %d epochs, %d optimizer steps",
		summary.Examples, summary.Epochs, summary.OptimSteps)
	return nil
}

func configArg(args []string) string {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
