package store

import (
	"strings"
	"testing"

	"github.com/chronodb/chronodb/model"
	"github.com/stretchr/testify/assert"
)

func TestSeriesDir_Deterministic(t *testing.T) {
	a := SeriesDir(model.SeriesKey("cpu.usage.total"))
	b := SeriesDir(model.SeriesKey("cpu.usage.total"))
	assert.Equal(t, a, b)
}

func TestSeriesDir_DistinctKeysDiffer(t *testing.T) {
	a := SeriesDir(model.SeriesKey("cpu.usage.total"))
	b := SeriesDir(model.SeriesKey("mem.usage.total"))
	assert.NotEqual(t, a, b)
}

func TestSeriesDir_SanitizesPathTraversal(t *testing.T) {
	dir := SeriesDir(model.SeriesKey("../../etc/passwd"))
	assert.NotContains(t, dir, "..")
	assert.NotContains(t, dir, "/")
}

func TestSeriesDir_HasReadablePrefix(t *testing.T) {
	dir := SeriesDir(model.SeriesKey("cpu.usage.total"))
	assert.True(t, strings.Contains(dir, "cpu.usage.total"))
}

func TestBlockLocator_Unique(t *testing.T) {
	a := BlockLocator(0, 100)
	b := BlockLocator(100, 200)
	assert.NotEqual(t, a, b)
}

func TestBlockLocator_FreshEvenForIdenticalWindow(t *testing.T) {
	// Overlapping concurrent-window flushes can legitimately produce two
	// blocks with the same [start,end]; each call must still be fresh.
	a := BlockLocator(0, 100)
	b := BlockLocator(0, 100)
	assert.NotEqual(t, a, b)
}
