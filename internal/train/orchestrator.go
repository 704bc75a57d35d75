// Package train drives the fine-tuning procedure: epoch and shard
// iteration, gradient accumulation and clipping, scheduler stepping,
// periodic summaries and checkpoints, and the per-shard cross-validation
// pass.
package train

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/mortonjt/poplar/internal/checkpoint"
	"github.com/mortonjt/poplar/internal/interactions"
	"github.com/mortonjt/poplar/internal/metrics"
	"github.com/mortonjt/poplar/internal/ml"
	"github.com/mortonjt/poplar/internal/model"
)

// Orchestrator runs the training loop over an interaction directory. Step
// counts are in examples, not batches: MaxSteps and the summary cadence both
// use example units.
type Orchestrator struct {
	Model     model.IScoringModel
	Optimizer *ml.AdamW
	Scheduler *ml.WarmupLinear
	Metrics   metrics.IMetricWriter
	Logger    *zap.Logger

	// MaxSteps is the requested number of training examples. The epoch
	// count is max(1, MaxSteps)/Total() with integer division, so values
	// below one epoch truncate to zero passes.
	MaxSteps          int
	AccumulationSteps int
	ClipNorm          float64

	// SummarySteps switches summaries to the step-count cadence; when
	// zero, SummaryInterval wall-clock cadence applies instead.
	SummaryInterval    time.Duration
	SummarySteps       int
	CheckpointInterval time.Duration
	ModelPath          string

	// HParams is merged into the final hyper-parameter record.
	HParams map[string]float64

	// Now stands in for time.Now in tests.
	Now func() time.Time
}

// FitSummary reports what a call to Fit actually did.
type FitSummary struct {
	Examples   int
	OptimSteps int
	Epochs     int
	TrainError float64
	CV         *CVMetrics
}

type fitState struct {
	it             int
	optimSteps     int
	lastBatchSize  int
	trainErr       float64
	lastSummary    time.Time
	lastCheckpoint time.Time
	summaryBucket  int
	results        map[string]float64
	lastCV         *CVMetrics
}

// Fit trains the model over the directory and writes the closing
// hyper-parameter record. The model is mutated in place.
func (o *Orchestrator) Fit(dir *interactions.Directory) (*FitSummary, error) {
	var logger = o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var sink = o.Metrics
	if sink == nil {
		sink = metrics.Nop{}
	}
	var accum = o.AccumulationSteps
	if accum < 1 {
		accum = 1
	}

	var total = dir.Total()
	if total == 0 {
		return nil, errors.New("interaction directory has no pairs")
	}
	var epochs = max(1, o.MaxSteps) / total
	if o.MaxSteps > 0 && o.MaxSteps%total != 0 {
		logger.Warn("max steps is not a multiple of the directory pair count; epochs truncate",
			zap.Int("max_steps", o.MaxSteps),
			zap.Int("pairs", total),
			zap.Int("epochs", epochs))
	}
	if epochs == 0 {
		logger.Warn("max steps resolves to zero epochs; no training will run",
			zap.Int("max_steps", o.MaxSteps),
			zap.Int("pairs", total))
	}

	var st = &fitState{
		lastSummary:    o.clock(),
		lastCheckpoint: o.clock(),
		results: map[string]float64{
			"train_error": 0,
			"test_error":  0,
			"TPR":         0,
			"pos_score":   0,
		},
	}
	var scale = 1.0
	if accum > 1 {
		scale = 1 / float64(accum)
	}

	logger.Info("training",
		zap.Int("epochs", epochs),
		zap.Int("pairs", total),
		zap.Int("shards", dir.Len()))

	for epoch := 0; epoch < epochs; epoch++ {
		for _, shard := range dir.Shards() {
			if err := o.trainShard(st, shard, sink, accum, scale); err != nil {
				return nil, err
			}
			cv, err := CrossValidate(o.Model, shard.Test)
			if err != nil {
				return nil, err
			}
			if cv == nil {
				logger.Info("shard has no test batches, skipping cross validation",
					zap.String("shard", shard.Name))
				continue
			}
			st.lastCV = cv
			st.results["test_error"] = cv.Err
			st.results["TPR"] = cv.TPR
			st.results["pos_score"] = cv.PosScore
			if err := sink.Scalar("test_error", cv.Err, st.it); err != nil {
				return nil, err
			}
			if err := sink.Scalar("TPR", cv.TPR, st.it); err != nil {
				return nil, err
			}
			if err := sink.Scalar("pos_score", cv.PosScore, st.it); err != nil {
				return nil, err
			}
			logger.Info("cross validation",
				zap.String("shard", shard.Name),
				zap.Int("epoch", epoch),
				zap.Float64("test_error", cv.Err),
				zap.Float64("tpr", cv.TPR))
		}
	}

	st.results["train_error"] = st.trainErr
	var hparams = make(map[string]float64, len(o.HParams)+1)
	for k, v := range o.HParams {
		hparams[k] = v
	}
	hparams["batch_size"] = float64(st.lastBatchSize)
	if err := sink.HParams(hparams, st.results); err != nil {
		return nil, err
	}

	return &FitSummary{
		Examples:   st.it,
		OptimSteps: st.optimSteps,
		Epochs:     epochs,
		TrainError: st.trainErr,
		CV:         st.lastCV,
	}, nil
}

func (o *Orchestrator) trainShard(st *fitState, shard *interactions.Shard, sink metrics.IMetricWriter, accum int, scale float64) error {
	o.Model.SetTraining(true)
	o.Model.SetLossScale(scale)

	for j, batch := range shard.Train.Batches() {
		anchors, err := o.Model.Encode(batch.Anchors)
		if err != nil {
			return err
		}
		positives, err := o.Model.Encode(batch.Positives)
		if err != nil {
			return err
		}
		negatives, err := o.Model.Encode(batch.Negatives)
		if err != nil {
			return err
		}
		losses, err := o.Model.Forward(anchors, positives, negatives)
		if err != nil {
			return err
		}
		st.trainErr = reduceLoss(losses, o.Model.Replicas())
		ml.ClipNorm(o.Model.Parameters(), o.ClipNorm)
		st.it += batch.Len()
		st.lastBatchSize = batch.Len()

		// summaries and checkpoints observe the pre-step state: the
		// histograms hold the clipped accumulated gradients and saved
		// weights predate the step
		if err := o.maybeSummarize(st, sink); err != nil {
			return err
		}
		if err := o.maybeCheckpoint(st); err != nil {
			return err
		}

		// keyed off the raw batch index, this fires on the first batch
		// of every shard pass as well
		if j%accum == 0 {
			o.Optimizer.Step()
			if o.Scheduler != nil {
				o.Scheduler.Step()
			}
			o.Model.ZeroGrad()
			st.optimSteps++
		}
	}
	return nil
}

func (o *Orchestrator) maybeSummarize(st *fitState, sink metrics.IMetricWriter) error {
	if o.SummarySteps > 0 {
		var bucket = st.it / o.SummarySteps
		if bucket <= st.summaryBucket {
			return nil
		}
		st.summaryBucket = bucket
	} else {
		if o.SummaryInterval <= 0 || o.clock().Sub(st.lastSummary) <= o.SummaryInterval {
			return nil
		}
		st.lastSummary = o.clock()
	}

	if err := sink.Scalar("train_error", st.trainErr, st.it); err != nil {
		return err
	}
	for _, p := range o.Model.Parameters() {
		if err := sink.Histogram("grad/"+p.Name, p.Grad.RawMatrix().Data, st.it); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) maybeCheckpoint(st *fitState) error {
	if o.CheckpointInterval <= 0 || o.ModelPath == "" {
		return nil
	}
	if o.clock().Sub(st.lastCheckpoint) <= o.CheckpointInterval {
		return nil
	}
	var path = o.ModelPath + checkpoint.TimestampSuffix(o.clock())
	var entries = checkpoint.FromParams(o.Model.UnderlyingParameters())
	if err := checkpoint.Save(path, entries); err != nil {
		return err
	}
	if o.Logger != nil {
		o.Logger.Info("checkpoint written", zap.String("path", path))
	}
	st.lastCheckpoint = o.clock()
	return nil
}

func (o *Orchestrator) clock() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// reduceLoss averages per-replica losses when the model actually replicates;
// a single-copy model already returns the reduced scalar.
func reduceLoss(losses []float64, replicas int) float64 {
	if replicas > 1 {
		return stat.Mean(losses, nil)
	}
	return losses[0]
}
