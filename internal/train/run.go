package train

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mortonjt/poplar/internal/checkpoint"
	"github.com/mortonjt/poplar/internal/interactions"
	"github.com/mortonjt/poplar/internal/metrics"
	"github.com/mortonjt/poplar/internal/ml"
	"github.com/mortonjt/poplar/internal/model"
)

// RunConfig carries every knob of a training run. Interval fields are in
// seconds so configs stay plain YAML numbers.
type RunConfig struct {
	FastaFile         string  `yaml:"fasta_file"`
	LinksDir          string  `yaml:"links_directory"`
	PretrainedPath    string  `yaml:"pretrained_checkpoint"`
	ModelPath         string  `yaml:"model_path"`
	LogDir            string  `yaml:"logging_path"`
	TrainingColumn    string  `yaml:"training_column"`
	Head              string  `yaml:"model_head"`
	EncoderDim        int     `yaml:"encoder_dimension"`
	EmbDimension      int     `yaml:"emb_dimension"`
	MaxSeqLen         int     `yaml:"max_sequence_length"`
	MaxSteps          int     `yaml:"max_steps"`
	LearningRate      float64 `yaml:"learning_rate"`
	WarmupSteps       int     `yaml:"warmup_steps"`
	AccumulationSteps int     `yaml:"gradient_accumulation_steps"`
	ClipNorm          float64 `yaml:"clip_norm"`
	BatchSize         int     `yaml:"batch_size"`
	Workers           int     `yaml:"num_workers"`
	SummarySeconds    float64 `yaml:"summary_interval"`
	SummarySteps      int     `yaml:"summary_steps"`
	CheckpointSeconds float64 `yaml:"checkpoint_interval"`
	Replicas          int     `yaml:"replicas"`
	Seed              int64   `yaml:"seed"`
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		TrainingColumn:    "Training",
		Head:              model.HeadContrastive,
		EncoderDim:        768,
		EmbDimension:      100,
		MaxSeqLen:         1024,
		MaxSteps:          10,
		LearningRate:      5e-5,
		WarmupSteps:       1000,
		AccumulationSteps: 1,
		ClipNorm:          10,
		BatchSize:         10,
		Workers:           10,
		SummarySeconds:    1,
		CheckpointSeconds: 1000,
		Replicas:          1,
	}
}

// LoadRunConfig overlays a YAML config file onto cfg.
func LoadRunConfig(path string, cfg *RunConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	return errors.Wrapf(yaml.Unmarshal(raw, cfg), "parse config %s", path)
}

// Run wires a full training run from configuration: encoder, head and
// optional replication, dataset directory, optimizer, scheduler and metric
// sink, then fits and saves the final checkpoint at {model_path}last.
func Run(ctx context.Context, cfg RunConfig, logger *zap.Logger) (*FitSummary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var rnd = rand.New(rand.NewSource(cfg.Seed))

	var encoder *model.Pretrained
	var err error
	if cfg.PretrainedPath != "" {
		encoder, err = model.LoadPretrained(cfg.PretrainedPath, cfg.MaxSeqLen)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded pretrained encoder",
			zap.String("path", cfg.PretrainedPath),
			zap.Int("dim", encoder.Dim()))
	} else {
		encoder = model.NewRandomPretrained(cfg.EncoderDim, cfg.MaxSeqLen, rnd)
		logger.Info("initialized random encoder", zap.Int("dim", encoder.Dim()))
	}
	head, err := model.NewHead(cfg.Head, encoder, cfg.EmbDimension, rnd)
	if err != nil {
		return nil, err
	}

	var m model.IScoringModel = head
	var batch = cfg.BatchSize
	if cfg.Replicas > 1 {
		m = model.NewReplicated(head, cfg.Replicas)
		batch = cfg.BatchSize * cfg.Replicas
		logger.Info("replicated model",
			zap.Int("replicas", cfg.Replicas),
			zap.Int("effective_batch_size", batch))
	}

	var provider = &interactions.DirectoryProvider{
		FastaPath:      cfg.FastaFile,
		LinksDir:       cfg.LinksDir,
		TrainingColumn: cfg.TrainingColumn,
		BatchSize:      batch,
		Workers:        cfg.Workers,
		Seed:           cfg.Seed,
		Logger:         logger,
	}
	dir, err := provider.Load(ctx)
	if err != nil {
		return nil, err
	}

	var accum = cfg.AccumulationSteps
	if accum < 1 {
		accum = 1
	}
	var opt = ml.NewAdamW(m.Parameters(), cfg.LearningRate)
	var tTotal = dir.Total() / accum
	if cfg.MaxSteps > 0 {
		tTotal = cfg.MaxSteps/accum + 1
	}
	var sched = ml.NewWarmupLinear(opt, cfg.WarmupSteps, tTotal)

	writer, err := metrics.NewDirWriter(cfg.LogDir)
	if err != nil {
		return nil, err
	}
	logger.Info("logging metrics", zap.String("dir", writer.Dir()))

	var orch = &Orchestrator{
		Model:              m,
		Optimizer:          opt,
		Scheduler:          sched,
		Metrics:            writer,
		Logger:             logger,
		MaxSteps:           cfg.MaxSteps,
		AccumulationSteps:  cfg.AccumulationSteps,
		ClipNorm:           cfg.ClipNorm,
		SummaryInterval:    secondsDuration(cfg.SummarySeconds),
		SummarySteps:       cfg.SummarySteps,
		CheckpointInterval: secondsDuration(cfg.CheckpointSeconds),
		ModelPath:          cfg.ModelPath,
		HParams: map[string]float64{
			"emb_dimension":               float64(cfg.EmbDimension),
			"learning_rate":               cfg.LearningRate,
			"warmup_steps":                float64(cfg.WarmupSteps),
			"gradient_accumulation_steps": float64(cfg.AccumulationSteps),
		},
	}
	summary, err := orch.Fit(dir)
	if err != nil {
		writer.Close()
		return nil, err
	}

	if cfg.ModelPath != "" {
		var path = cfg.ModelPath + checkpoint.LastSuffix
		var entries = checkpoint.FromParams(m.UnderlyingParameters())
		if err := checkpoint.Save(path, entries); err != nil {
			writer.Close()
			return nil, err
		}
		logger.Info("saved final model", zap.String("path", path))
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return summary, nil
}

func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
