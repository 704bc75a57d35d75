package metrics

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	eventsFile    = "events.jsonl"
	histogramBins = 10
)

// DirWriter appends one JSON object per event to events.jsonl inside its
// directory and, on Close, renders each scalar series to a PNG line chart.
type DirWriter struct {
	dir     string
	f       *os.File
	enc     *json.Encoder
	series  map[string]*scalarSeries
	order   []string
	now     func() time.Time
}

type scalarSeries struct {
	steps  []float64
	values []float64
}

type scalarEvent struct {
	Type  string  `json:"type"`
	Name  string  `json:"name"`
	Step  int     `json:"step"`
	Value float64 `json:"value"`
	Wall  float64 `json:"wall_time"`
}

type histogramEvent struct {
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	Step   int       `json:"step"`
	Count  int       `json:"count"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Mean   float64   `json:"mean"`
	Stddev float64   `json:"stddev"`
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
	Wall   float64   `json:"wall_time"`
}

type hparamsEvent struct {
	Type    string             `json:"type"`
	HParams map[string]float64 `json:"hparams"`
	Results map[string]float64 `json:"results"`
	Wall    float64            `json:"wall_time"`
}

// NewDirWriter opens a metric sink under dir, creating it as needed. An
// empty dir falls back to logdir_<timestamp> in the working directory.
func NewDirWriter(dir string) (*DirWriter, error) {
	if dir == "" {
		dir = "logdir_" + time.Now().Format("060102_150405")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create log directory %s", dir)
	}
	f, err := os.Create(filepath.Join(dir, eventsFile))
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", eventsFile)
	}
	return &DirWriter{
		dir:    dir,
		f:      f,
		enc:    json.NewEncoder(f),
		series: make(map[string]*scalarSeries),
		now:    time.Now,
	}, nil
}

// Dir returns the directory events and charts are written to.
func (w *DirWriter) Dir() string { return w.dir }

func (w *DirWriter) Scalar(name string, value float64, step int) error {
	s, ok := w.series[name]
	if !ok {
		s = &scalarSeries{}
		w.series[name] = s
		w.order = append(w.order, name)
	}
	s.steps = append(s.steps, float64(step))
	s.values = append(s.values, value)

	return errors.Wrap(w.enc.Encode(scalarEvent{
		Type:  "scalar",
		Name:  name,
		Step:  step,
		Value: value,
		Wall:  w.wall(),
	}), "write scalar event")
}

func (w *DirWriter) Histogram(name string, values []float64, step int) error {
	if len(values) == 0 {
		return errors.Errorf("histogram %s needs at least one value", name)
	}
	var sorted = make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var lo = sorted[0]
	var hi = sorted[len(sorted)-1]
	if hi == lo {
		hi = lo + 1
	}
	var edges = make([]float64, histogramBins+1)
	floats.Span(edges, lo, hi)
	// the top divider is exclusive; nudge it so the max lands in-range
	edges[len(edges)-1] = math.Nextafter(hi, math.Inf(1))
	var counts = stat.Histogram(nil, edges, sorted, nil)

	mean, stddev := stat.MeanStdDev(sorted, nil)
	if math.IsNaN(stddev) {
		stddev = 0
	}
	return errors.Wrap(w.enc.Encode(histogramEvent{
		Type:   "histogram",
		Name:   name,
		Step:   step,
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Stddev: stddev,
		Edges:  edges,
		Counts: counts,
		Wall:   w.wall(),
	}), "write histogram event")
}

func (w *DirWriter) HParams(hparams, results map[string]float64) error {
	return errors.Wrap(w.enc.Encode(hparamsEvent{
		Type:    "hparams",
		HParams: hparams,
		Results: results,
		Wall:    w.wall(),
	}), "write hparams event")
}

// Close renders the collected scalar series to charts and closes the event
// stream. Series too short or flat to plot are skipped.
func (w *DirWriter) Close() error {
	var firstErr error
	for _, name := range w.order {
		if err := w.renderChart(name, w.series[name]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := w.f.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close event stream")
	}
	return firstErr
}

func (w *DirWriter) renderChart(name string, s *scalarSeries) error {
	if len(s.values) < 2 || floats.Min(s.values) == floats.Max(s.values) {
		return nil
	}
	var graph = chart.Chart{
		Title:      name,
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "step",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Style: chart.StyleShow(),
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    name,
				XValues: s.steps,
				YValues: s.values,
				Style: chart.Style{
					Show:        true,
					StrokeColor: chart.ColorBlue,
				},
			},
		},
	}
	var path = filepath.Join(w.dir, chartFileName(name))
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create chart %s", path)
	}
	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		return errors.Wrapf(err, "render chart %s", path)
	}
	return errors.Wrapf(f.Close(), "close chart %s", path)
}

func chartFileName(name string) string {
	return strings.ReplaceAll(name, "/", "_") + ".png"
}

func (w *DirWriter) wall() float64 {
	return float64(w.now().UnixNano()) / float64(time.Second)
}
