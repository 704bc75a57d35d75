package train

import (
	"github.com/mortonjt/poplar/internal/interactions"
	"github.com/mortonjt/poplar/internal/model"
)

// CVMetrics summarizes one cross-validation pass over a shard's test split.
type CVMetrics struct {
	// Err is the triplet loss averaged over test batches.
	Err float64
	// AvgRank is the per-batch average count of examples whose positive
	// score beats their negative score.
	AvgRank float64
	// TPR is AvgRank normalized by the batch size, a coarse per-example
	// true-positive proxy rather than a calibrated rank statistic.
	TPR float64
	// PosScore is the per-batch average of summed anchor-positive scores.
	PosScore float64
	// Batches is the number of test batches evaluated.
	Batches int
}

// CrossValidate scores a model over a test loader without touching its
// gradients. It flips the model into inference mode and resets the loss
// scale; callers that keep training afterwards re-arm both. A loader with no
// full batches yields (nil, nil) so empty shards never divide by zero.
func CrossValidate(m model.IScoringModel, loader *interactions.Loader) (*CVMetrics, error) {
	if loader == nil {
		return nil, nil
	}
	var batches = loader.Batches()
	if len(batches) == 0 {
		return nil, nil
	}

	m.SetTraining(false)
	m.SetLossScale(1)

	var cvErr, posSum float64
	var rankCounts int
	for _, batch := range batches {
		anchors, err := m.Encode(batch.Anchors)
		if err != nil {
			return nil, err
		}
		positives, err := m.Encode(batch.Positives)
		if err != nil {
			return nil, err
		}
		negatives, err := m.Encode(batch.Negatives)
		if err != nil {
			return nil, err
		}
		losses, err := m.Forward(anchors, positives, negatives)
		if err != nil {
			return nil, err
		}
		cvErr += reduceLoss(losses, m.Replicas())

		posScores, err := m.Predict(anchors, positives)
		if err != nil {
			return nil, err
		}
		negScores, err := m.Predict(anchors, negatives)
		if err != nil {
			return nil, err
		}
		for i, ps := range posScores {
			posSum += ps
			if ps > negScores[i] {
				rankCounts++
			}
		}
	}

	var n = float64(len(batches))
	var avgRank = float64(rankCounts) / n
	return &CVMetrics{
		Err:      cvErr / n,
		AvgRank:  avgRank,
		TPR:      avgRank / float64(loader.BatchSize()),
		PosScore: posSum / n,
		Batches:  len(batches),
	}, nil
}
