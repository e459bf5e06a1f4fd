// Package chronodb provides a high-performance, space-efficient time-series
// engine for storing numeric metrics with Gorilla-style compression.
//
// chronodb is optimized for scenarios with many series and relatively
// regular sampling intervals, providing excellent compression ratios
// through delta-of-delta timestamp encoding and XOR value encoding across
// a three-tier read path (memory, disk, archive).
//
// # Core Features
//
//   - Delta-of-delta timestamp compression (bit ≈1 for regular intervals)
//   - XOR value compression (bit ≈1 for repeated or slowly-changing values)
//   - Tiered storage: in-memory hot buffer, crash-safe disk blocks, and an
//     optional archive tier behind an abstract object-store contract
//   - Pluggable at-rest payload compression (None, Zstd, S2, LZ4)
//
// # Basic Usage
//
//	cfg, _ := chronodb.NewConfig("/var/lib/chronodb")
//	eng, _ := chronodb.NewEngine(cfg)
//	defer eng.Shutdown()
//
//	eng.Insert("cpu.usage", chronodb.DataPoint{Timestamp: 1_000, Value: 42.5})
//	points, _ := eng.QueryRange("cpu.usage", 0, 2_000)
//
// This package re-exports the engine package's Core API; for advanced
// usage (custom archivers, capacity estimation) use the engine and store
// packages directly.
package chronodb

import (
	"github.com/chronodb/chronodb/engine"
	"github.com/chronodb/chronodb/model"
	"github.com/chronodb/chronodb/query"
)

type (
	DataPoint     = model.DataPoint
	SeriesKey     = model.SeriesKey
	Engine        = engine.Engine
	Config        = engine.Config
	EngineOption  = engine.EngineOption
	AggregateKind = query.Kind
)

const (
	Sum    = query.Sum
	Mean   = query.Mean
	Min    = query.Min
	Max    = query.Max
	Count  = query.Count
	First  = query.First
	Last   = query.Last
	StdDev = query.StdDev
)

// NewEngine constructs an Engine from cfg.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	return engine.NewEngine(cfg, opts...)
}

// NewConfig returns the documented defaults for dataDir with opts applied.
func NewConfig(dataDir string, opts ...engine.Option) (Config, error) {
	return engine.NewConfig(dataDir, opts...)
}

// LoadConfigFromEnv reads the Core API's environment surface.
func LoadConfigFromEnv() (Config, error) {
	return engine.LoadConfigFromEnv()
}
