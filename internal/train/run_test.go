package train

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mortonjt/poplar/internal/model"
)

func writeRunDataset(t *testing.T) (fastaPath, linksDir string) {
	t.Helper()
	var dir = t.TempDir()

	fastaPath = filepath.Join(dir, "proteins.fasta")
	var fa = ">P1\nMKV\n>P2\nAGQ\n>P3\nLKC\n>P4\nYWH\n"
	require.NoError(t, os.WriteFile(fastaPath, []byte(fa), 0o644))

	linksDir = filepath.Join(dir, "links")
	require.NoError(t, os.Mkdir(linksDir, 0o755))
	var links = "protein1\tprotein2\tTraining\n" +
		"P1\tP2\tTrain\n" +
		"P2\tP3\tTrain\n" +
		"P3\tP4\tTrain\n" +
		"P4\tP1\tTrain\n" +
		"P1\tP3\tTest\n" +
		"P2\tP4\tTest\n"
	require.NoError(t, os.WriteFile(filepath.Join(linksDir, "hpylori.txt"), []byte(links), 0o644))
	return fastaPath, linksDir
}

func smallRunConfig(t *testing.T) RunConfig {
	fastaPath, linksDir := writeRunDataset(t)
	var out = t.TempDir()

	var cfg = DefaultRunConfig()
	cfg.FastaFile = fastaPath
	cfg.LinksDir = linksDir
	cfg.ModelPath = filepath.Join(out, "ppi_")
	cfg.LogDir = filepath.Join(out, "logs")
	cfg.EncoderDim = 8
	cfg.EmbDimension = 4
	cfg.MaxSeqLen = 32
	cfg.MaxSteps = 6
	cfg.BatchSize = 2
	cfg.Workers = 2
	cfg.WarmupSteps = 2
	cfg.SummarySteps = 2
	cfg.SummarySeconds = 0
	cfg.CheckpointSeconds = 0
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	var cfg = smallRunConfig(t)
	summary, err := Run(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Epochs)
	assert.Equal(t, 4, summary.Examples)
	assert.Equal(t, 2, summary.OptimSteps)
	require.NotNil(t, summary.CV)

	head, err := model.LoadModel(cfg.ModelPath+"last", cfg.MaxSeqLen)
	require.NoError(t, err)
	assert.IsType(t, &model.ContrastiveHead{}, head)

	_, err = os.Stat(filepath.Join(cfg.LogDir, "events.jsonl"))
	assert.NoError(t, err)
}

func TestRunBinderWithReplicas(t *testing.T) {
	var cfg = smallRunConfig(t)
	cfg.Head = model.HeadBinder
	cfg.Replicas = 2
	cfg.BatchSize = 1
	// two replicas double the effective batch size back to two

	summary, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.OptimSteps)

	head, err := model.LoadModel(cfg.ModelPath+"last", cfg.MaxSeqLen)
	require.NoError(t, err)
	assert.IsType(t, &model.Binder{}, head)
}

func TestRunWithPretrainedEncoder(t *testing.T) {
	var cfg = smallRunConfig(t)

	// train once from random init, then reuse the saved encoder
	_, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	var again = smallRunConfig(t)
	again.PretrainedPath = cfg.ModelPath + "last"
	again.EncoderDim = 0 // the checkpoint dictates the dimension
	summary, err := Run(context.Background(), again, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.OptimSteps)
}

func TestRunRejectsUnknownHead(t *testing.T) {
	var cfg = smallRunConfig(t)
	cfg.Head = "transformer"
	_, err := Run(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestLoadRunConfig(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "run.yaml")
	var body = "fasta_file: data/prots.fasta\n" +
		"learning_rate: 0.001\n" +
		"gradient_accumulation_steps: 4\n" +
		"summary_interval: 2.5\n" +
		"model_head: binder\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	var cfg = DefaultRunConfig()
	require.NoError(t, LoadRunConfig(path, &cfg))
	assert.Equal(t, "data/prots.fasta", cfg.FastaFile)
	assert.Equal(t, 0.001, cfg.LearningRate)
	assert.Equal(t, 4, cfg.AccumulationSteps)
	assert.Equal(t, 2.5, cfg.SummarySeconds)
	assert.Equal(t, model.HeadBinder, cfg.Head)
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, "Training", cfg.TrainingColumn)

	assert.Error(t, LoadRunConfig(filepath.Join(t.TempDir(), "absent.yaml"), &cfg))
}

func TestSecondsDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, secondsDuration(1.5))
	assert.Equal(t, time.Duration(0), secondsDuration(0))
}
