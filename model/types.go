// Package model defines the data types shared across chronodb's codec,
// store, and engine layers.
package model

// DataPoint is a single (timestamp, value) observation. Equality is
// structural.
type DataPoint struct {
	Timestamp int64 // milliseconds since epoch
	Value     float64
}

// SeriesKey names a series. Non-empty, opaque UTF-8; namespaced with dots by
// convention (e.g. "cpu.usage.total").
type SeriesKey string

// BlockMetadata describes one sealed block within a series manifest.
type BlockMetadata struct {
	Locator    string // unique within the owning tier: a file name or object key
	StartTime  int64
	EndTime    int64
	PointCount int
}

// SeriesManifest is the list of blocks backing one series within one tier
// (disk or archive), in the order the blocks were written to that tier. It
// is not re-sorted by StartTime, and blocks may overlap (for example after
// an out-of-order insert), so readers must deduplicate by timestamp.
type SeriesManifest struct {
	Series SeriesKey
	Blocks []BlockMetadata
}
