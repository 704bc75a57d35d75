// Package metrics records training telemetry: scalar series, gradient
// histograms and the closing hyper-parameter record of a run.
package metrics

// IMetricWriter is the sink the trainer reports into.
type IMetricWriter interface {
	Scalar(name string, value float64, step int) error
	Histogram(name string, values []float64, step int) error
	HParams(hparams, results map[string]float64) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Scalar(string, float64, int) error      { return nil }
func (Nop) Histogram(string, []float64, int) error { return nil }
func (Nop) HParams(_, _ map[string]float64) error  { return nil }
func (Nop) Close() error                           { return nil }
