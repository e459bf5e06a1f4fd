// Package query implements the aggregation and windowing functions the
// Engine's query path applies to an already-fetched slice of points.
package query

import (
	"fmt"
	"math"

	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/model"
)

// Kind identifies an aggregation function.
type Kind string

const (
	Sum    Kind = "sum"
	Mean   Kind = "mean"
	Min    Kind = "min"
	Max    Kind = "max"
	Count  Kind = "count"
	First  Kind = "first"
	Last   Kind = "last"
	StdDev Kind = "stddev"
)

// Aggregate reduces points to a single value per kind. An empty slice
// returns 0.0 for every kind, per spec.md's boundary behavior.
func Aggregate(points []model.DataPoint, kind Kind) (float64, error) {
	switch kind {
	case Sum:
		var s float64
		for _, p := range points {
			s += p.Value
		}

		return s, nil
	case Mean:
		if len(points) == 0 {
			return 0, nil
		}
		var s float64
		for _, p := range points {
			s += p.Value
		}

		return s / float64(len(points)), nil
	case Min:
		if len(points) == 0 {
			return 0, nil
		}
		m := points[0].Value
		for _, p := range points[1:] {
			if p.Value < m {
				m = p.Value
			}
		}

		return m, nil
	case Max:
		if len(points) == 0 {
			return 0, nil
		}
		m := points[0].Value
		for _, p := range points[1:] {
			if p.Value > m {
				m = p.Value
			}
		}

		return m, nil
	case Count:
		return float64(len(points)), nil
	case First:
		if len(points) == 0 {
			return 0, nil
		}

		return points[0].Value, nil
	case Last:
		if len(points) == 0 {
			return 0, nil
		}

		return points[len(points)-1].Value, nil
	case StdDev:
		return stddev(points), nil
	default:
		return 0, fmt.Errorf("chronodb: unknown aggregation kind %q: %w", kind, errs.ErrInvalidInput)
	}
}

// stddev computes the population standard deviation.
func stddev(points []model.DataPoint) float64 {
	if len(points) == 0 {
		return 0
	}

	var mean float64
	for _, p := range points {
		mean += p.Value
	}
	mean /= float64(len(points))

	var variance float64
	for _, p := range points {
		d := p.Value - mean
		variance += d * d
	}
	variance /= float64(len(points))

	return math.Sqrt(variance)
}

// Windowed buckets points by floor((ts-first_ts)/windowMs) and aggregates
// each bucket independently, returning one point per non-empty bucket
// (timestamped at the bucket's start).
func Windowed(points []model.DataPoint, windowMs int64, kind Kind) ([]model.DataPoint, error) {
	if len(points) == 0 || windowMs <= 0 {
		return nil, nil
	}

	first := points[0].Timestamp
	buckets := make(map[int64][]model.DataPoint)
	var order []int64
	for _, p := range points {
		b := (p.Timestamp - first) / windowMs
		if _, ok := buckets[b]; !ok {
			order = append(order, b)
		}
		buckets[b] = append(buckets[b], p)
	}

	out := make([]model.DataPoint, 0, len(order))
	for _, b := range order {
		v, err := Aggregate(buckets[b], kind)
		if err != nil {
			return nil, err
		}
		out = append(out, model.DataPoint{Timestamp: first + b*windowMs, Value: v})
	}

	return out, nil
}

// Downsample reduces points to at most maxN points by fixed-step sampling,
// for a caller rendering a chart. It never writes to disk and does not
// conflict with the "no downsampling to disk" non-goal.
func Downsample(points []model.DataPoint, maxN int) []model.DataPoint {
	if maxN <= 0 || len(points) <= maxN {
		return points
	}

	step := float64(len(points)) / float64(maxN)
	out := make([]model.DataPoint, 0, maxN)
	for i := 0; i < maxN; i++ {
		idx := int(float64(i) * step)
		if idx >= len(points) {
			idx = len(points) - 1
		}
		out = append(out, points[idx])
	}

	return out
}
