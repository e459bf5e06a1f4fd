package codec

import (
	"testing"

	"github.com/chronodb/chronodb/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundtripTimestamps(t *testing.T, points []int64) []int64 {
	t.Helper()

	enc := NewTimestampEncoder(points[0])
	for _, ts := range points[1:] {
		require.NoError(t, enc.Write(ts))
	}
	data := enc.Finish()

	dec := NewTimestampDecoder(data, points[0], len(points))
	got := []int64{points[0]}
	for i := 1; i < len(points); i++ {
		ts, err := dec.Next()
		require.NoError(t, err)
		got = append(got, ts)
	}

	return got
}

func TestTimestampEncoder_ZeroDelta(t *testing.T) {
	points := []int64{1000, 1010, 1020, 1030}
	got := roundtripTimestamps(t, points)
	assert.Equal(t, points, got)
}

func TestTimestampEncoder_SmallDelta(t *testing.T) {
	points := []int64{1000, 1010, 1021, 1032}
	got := roundtripTimestamps(t, points)
	assert.Equal(t, points, got)
}

func TestTimestampEncoder_LargeDelta(t *testing.T) {
	points := []int64{1000, 1010, 2000, 2010}
	got := roundtripTimestamps(t, points)
	assert.Equal(t, points, got)
}

func TestTimestampEncoder_HugeDelta(t *testing.T) {
	// dods of +999,880,000 and -999,440,000: both need the 32-bit bucket.
	points := []int64{0, 60_000, 1_000_000_000, 1_000_500_000}
	got := roundtripTimestamps(t, points)
	assert.Equal(t, points, got)
}

func TestTimestampEncoder_SinglePoint(t *testing.T) {
	points := []int64{42}
	got := roundtripTimestamps(t, points)
	assert.Equal(t, points, got)
}

func TestTimestampEncoder_RegularInterval_CompactSize(t *testing.T) {
	const n = 1000
	points := make([]int64, n)
	for i := range points {
		points[i] = int64(i) * 60000
	}

	enc := NewTimestampEncoder(points[0])
	for _, ts := range points[1:] {
		require.NoError(t, enc.Write(ts))
	}

	// A perfectly regular interval has dod==0 for every point after the
	// second, each costing exactly 1 bit; the second point costs a fixed
	// 64-bit raw delta. 64 + 998 dod-zero bits packs to well under 200
	// bytes once byte-aligned.
	assert.LessOrEqual(t, len(enc.Finish()), 200)

	got := roundtripTimestamps(t, points)
	assert.Equal(t, points, got)
}

func TestTimestampEncoder_OverflowRejected(t *testing.T) {
	enc := NewTimestampEncoder(0)
	require.NoError(t, enc.Write(1000))
	// Second dod relative to lastDelta=1000 must exceed the 32-bit signed
	// two's-complement range to trigger InvalidInput.
	require.NoError(t, enc.Write(2000))
	err := enc.Write(2000 + 1000 + (1 << 32))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestTimestampDecoder_ExhaustedReturnsNotFound(t *testing.T) {
	points := []int64{10, 20, 30}
	enc := NewTimestampEncoder(points[0])
	for _, ts := range points[1:] {
		require.NoError(t, enc.Write(ts))
	}
	data := enc.Finish()

	dec := NewTimestampDecoder(data, points[0], len(points))
	_, err := dec.Next()
	require.NoError(t, err)
	_, err = dec.Next()
	require.NoError(t, err)
	_, err = dec.Next()
	assert.Error(t, err)
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, int64(-1), signExtend(0x7F, 7))
	assert.Equal(t, int64(63), signExtend(0x3F, 7))
	assert.Equal(t, int64(0), signExtend(0, 9))
}
