package engine

import (
	"fmt"
	"math"
	"sync"

	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/model"
)

// ModelType identifies a capacity-estimation curve shape.
type ModelType int

const (
	// ModelHyperbolic fits BPP = a + b/PPM, the expected shape when a
	// fixed per-block header cost is amortized over more points.
	ModelHyperbolic ModelType = iota
	// ModelPower fits BPP = a * PPM^b.
	ModelPower
)

func (t ModelType) String() string {
	switch t {
	case ModelHyperbolic:
		return "hyperbolic"
	case ModelPower:
		return "power"
	default:
		return "unknown"
	}
}

// curveEstimator predicts bytes-per-point (BPP) from points-per-metric
// (PPM, the number of points accumulated in a flush).
type curveEstimator interface {
	estimate(ppm float64) float64
	modelType() ModelType
}

// hyperbolicEstimator implements BPP = a + b/PPM.
type hyperbolicEstimator struct {
	a, b float64
}

func (e *hyperbolicEstimator) estimate(ppm float64) float64 {
	if ppm <= 0 {
		return e.a
	}

	return e.a + e.b/ppm
}

func (e *hyperbolicEstimator) modelType() ModelType { return ModelHyperbolic }

// powerEstimator implements BPP = a * PPM^b.
type powerEstimator struct {
	a, b float64
}

func (e *powerEstimator) estimate(ppm float64) float64 {
	if ppm <= 0 {
		return 0
	}

	return e.a * math.Pow(ppm, e.b)
}

func (e *powerEstimator) modelType() ModelType { return ModelPower }

// fittedModel is a curveEstimator plus its goodness-of-fit, so the better
// of the two candidate shapes can be picked per series.
type fittedModel struct {
	estimator curveEstimator
	rSquared  float64
}

// fitHyperbolic fits BPP = a + b/PPM via ordinary least squares on the
// transformed variable X' = 1/PPM, Y' = BPP.
func fitHyperbolic(ppm, bpp []float64) (*fittedModel, error) {
	n := len(ppm)
	x := make([]float64, n)
	for i, p := range ppm {
		if p <= 0 {
			return nil, fmt.Errorf("chronodb: non-positive ppm sample: %w", errs.ErrInvalidInput)
		}
		x[i] = 1 / p
	}

	b, a := linearFit(x, bpp)
	est := &hyperbolicEstimator{a: a, b: b}

	predicted := make([]float64, n)
	for i, xi := range x {
		predicted[i] = a + b*xi
	}

	return &fittedModel{estimator: est, rSquared: rSquared(bpp, predicted)}, nil
}

// fitPower fits BPP = a * PPM^b via least squares on the log-log
// transform ln(BPP) = ln(a) + b*ln(PPM).
func fitPower(ppm, bpp []float64) (*fittedModel, error) {
	n := len(ppm)
	lx := make([]float64, n)
	ly := make([]float64, n)
	for i := range ppm {
		if ppm[i] <= 0 || bpp[i] <= 0 {
			return nil, fmt.Errorf("chronodb: non-positive sample for power fit: %w", errs.ErrInvalidInput)
		}
		lx[i] = math.Log(ppm[i])
		ly[i] = math.Log(bpp[i])
	}

	b, logA := linearFit(lx, ly)
	a := math.Exp(logA)
	est := &powerEstimator{a: a, b: b}

	predicted := make([]float64, n)
	for i, p := range ppm {
		predicted[i] = a * math.Pow(p, b)
	}

	return &fittedModel{estimator: est, rSquared: rSquared(bpp, predicted)}, nil
}

// linearFit returns (slope, intercept) of the least-squares line through
// (x[i], y[i]).
func linearFit(x, y []float64) (slope, intercept float64) {
	n := float64(len(x))

	var sumX, sumY, sumXY, sumX2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
	}

	meanX := sumX / n
	meanY := sumY / n

	denom := sumX2 - n*meanX*meanX
	if denom == 0 {
		return 0, meanY
	}

	slope = (sumXY - n*meanX*meanY) / denom
	intercept = meanY - slope*meanX

	return slope, intercept
}

func rSquared(actual, predicted []float64) float64 {
	var mean float64
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i, v := range actual {
		ssRes += (v - predicted[i]) * (v - predicted[i])
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		return 1
	}

	return 1 - ssRes/ssTot
}

// Estimator is a diagnostic capacity-planning helper: it accumulates
// (points-per-flush, bytes-per-point) samples per series as flushes
// happen, fits the better of a hyperbolic or power curve once enough
// samples exist, and answers "roughly how many bytes will N additional
// points cost". It never gates or influences ingest or flush control
// flow — callers consult it; the engine never consults it.
type Estimator struct {
	minSamples int

	mu      sync.Mutex
	samples map[model.SeriesKey][]sample
}

type sample struct {
	ppm float64
	bpp float64
}

// NewEstimator returns an Estimator that waits for at least minSamples
// flush observations per series before producing an estimate.
func NewEstimator(minSamples int) *Estimator {
	if minSamples < 2 {
		minSamples = 2
	}

	return &Estimator{
		minSamples: minSamples,
		samples:    make(map[model.SeriesKey][]sample),
	}
}

// Observe records one flush's (points written, bytes written) for
// series. Called from ForceFlush; never returns an error because a
// failed observation must never fail a flush.
func (est *Estimator) Observe(series model.SeriesKey, points int, bytes int) {
	if points <= 0 || bytes <= 0 {
		return
	}

	est.mu.Lock()
	defer est.mu.Unlock()

	est.samples[series] = append(est.samples[series], sample{
		ppm: float64(points),
		bpp: float64(bytes) / float64(points),
	})
}

// EstimateBytes estimates the additional bytes series would occupy on
// disk if additionalPoints more points were flushed, based on the
// better-fitting of the hyperbolic or power curve over observed
// samples. Returns errs.ErrNotFound if fewer than minSamples
// observations exist for series.
func (est *Estimator) EstimateBytes(series model.SeriesKey, additionalPoints int) (int64, error) {
	est.mu.Lock()
	samples := append([]sample(nil), est.samples[series]...)
	est.mu.Unlock()

	if len(samples) < est.minSamples {
		return 0, fmt.Errorf("chronodb: insufficient samples for %s: %w", series, errs.ErrNotFound)
	}
	if additionalPoints <= 0 {
		return 0, nil
	}

	ppm := make([]float64, len(samples))
	bpp := make([]float64, len(samples))
	for i, s := range samples {
		ppm[i] = s.ppm
		bpp[i] = s.bpp
	}

	hyper, herr := fitHyperbolic(ppm, bpp)
	power, perr := fitPower(ppm, bpp)

	var best *fittedModel
	switch {
	case herr != nil && perr != nil:
		return 0, fmt.Errorf("chronodb: fit capacity model for %s: %w", series, herr)
	case herr != nil:
		best = power
	case perr != nil:
		best = hyper
	case power.rSquared > hyper.rSquared:
		best = power
	default:
		best = hyper
	}

	avgPPM := 0.0
	for _, p := range ppm {
		avgPPM += p
	}
	avgPPM /= float64(len(ppm))

	bytesPerPoint := best.estimator.estimate(avgPPM)
	if bytesPerPoint < 0 {
		bytesPerPoint = 0
	}

	return int64(bytesPerPoint * float64(additionalPoints)), nil
}
