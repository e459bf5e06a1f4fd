package query

import (
	"testing"

	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func points(pairs ...float64) []model.DataPoint {
	out := make([]model.DataPoint, 0, len(pairs))
	for i, v := range pairs {
		out = append(out, model.DataPoint{Timestamp: int64((i + 1) * 1000), Value: v})
	}

	return out
}

func TestAggregate_LiteralScenario(t *testing.T) {
	pts := points(10, 20, 30, 40, 50)

	sum, err := Aggregate(pts, Sum)
	require.NoError(t, err)
	assert.Equal(t, 150.0, sum)

	mean, err := Aggregate(pts, Mean)
	require.NoError(t, err)
	assert.Equal(t, 30.0, mean)

	min, err := Aggregate(pts, Min)
	require.NoError(t, err)
	assert.Equal(t, 10.0, min)

	max, err := Aggregate(pts, Max)
	require.NoError(t, err)
	assert.Equal(t, 50.0, max)

	count, err := Aggregate(pts, Count)
	require.NoError(t, err)
	assert.Equal(t, 5.0, count)
}

func TestAggregate_EmptySeriesReturnsZero(t *testing.T) {
	for _, kind := range []Kind{Sum, Mean, Min, Max, Count, First, Last, StdDev} {
		v, err := Aggregate(nil, kind)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	}
}

func TestAggregate_FirstLast(t *testing.T) {
	pts := points(1, 2, 3)

	first, err := Aggregate(pts, First)
	require.NoError(t, err)
	assert.Equal(t, 1.0, first)

	last, err := Aggregate(pts, Last)
	require.NoError(t, err)
	assert.Equal(t, 3.0, last)
}

func TestAggregate_StdDev(t *testing.T) {
	pts := points(2, 4, 4, 4, 5, 5, 7, 9)
	sd, err := Aggregate(pts, StdDev)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sd, 1e-9)
}

func TestAggregate_UnknownKind(t *testing.T) {
	_, err := Aggregate(points(1), Kind("bogus"))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestWindowed_BucketsByWindow(t *testing.T) {
	pts := []model.DataPoint{
		{Timestamp: 0, Value: 1},
		{Timestamp: 50, Value: 2},
		{Timestamp: 100, Value: 3},
		{Timestamp: 149, Value: 4},
		{Timestamp: 150, Value: 5},
	}

	out, err := Windowed(pts, 100, Sum)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(0), out[0].Timestamp)
	assert.Equal(t, 3.0, out[0].Value) // ts 0, 50: 1+2
	assert.Equal(t, int64(100), out[1].Timestamp)
	assert.Equal(t, 12.0, out[1].Value) // ts 100, 149, 150: 3+4+5
}

func TestWindowed_EmptyInput(t *testing.T) {
	out, err := Windowed(nil, 100, Sum)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDownsample_ReducesToMaxN(t *testing.T) {
	pts := make([]model.DataPoint, 100)
	for i := range pts {
		pts[i] = model.DataPoint{Timestamp: int64(i), Value: float64(i)}
	}

	out := Downsample(pts, 10)
	assert.Len(t, out, 10)
}

func TestDownsample_NoOpWhenUnderLimit(t *testing.T) {
	pts := points(1, 2, 3)
	out := Downsample(pts, 10)
	assert.Equal(t, pts, out)
}
