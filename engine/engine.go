// Package engine ties the memory, disk, and archive tiers together behind
// the Core API: Insert, QueryRange, QueryAggregated, ListSeries,
// ForceFlush, ForceArchive, CleanupOldData, Shutdown.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	gklog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/chronodb/chronodb/codec"
	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/model"
	"github.com/chronodb/chronodb/query"
	"github.com/chronodb/chronodb/store"
)

// Engine is a single-node time-series engine. The disk root directory is
// exclusive to one Engine instance; concurrent Engines on the same root
// produce undefined behavior, per the concurrency model.
type Engine struct {
	cfg Config

	memory *store.MemoryBuffer
	disk   *store.DiskStore
	arch   *store.ArchiveTier // nil when archiving is disabled

	logger gklog.Logger

	seriesMu  sync.Mutex
	seriesSet map[model.SeriesKey]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once

	pendingArchiver store.Archiver

	estimator *Estimator
}

// EngineOption configures optional Engine collaborators.
type EngineOption func(*Engine)

// WithLogger overrides the default no-op logger.
func WithLogger(logger gklog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithArchiver overrides the archive tier's backing Archiver (defaults to
// a LocalArchiver rooted at data_dir/_archive when archiving is enabled
// and no archiver is supplied).
func WithArchiver(archiver store.Archiver) EngineOption {
	return func(e *Engine) { e.pendingArchiver = archiver }
}

// NewEngine constructs an Engine from cfg. Archiving is wired only when
// cfg.ArchiveEnabled is set.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	disk, err := store.NewDiskStore(cfg.DataDir, cfg.BlockCompression)
	if err != nil {
		return nil, fmt.Errorf("chronodb: open disk store: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		memory:    store.NewMemoryBuffer(cfg.MemoryBufferSize),
		disk:      disk,
		logger:    gklog.NewNopLogger(),
		seriesSet: make(map[model.SeriesKey]struct{}),
		estimator: NewEstimator(3),
	}

	for _, opt := range opts {
		opt(e)
	}

	if cfg.ArchiveEnabled {
		archiver := e.pendingArchiver
		if archiver == nil {
			local, err := store.NewLocalArchiver(cfg.DataDir + "/_archive")
			if err != nil {
				return nil, fmt.Errorf("chronodb: default archiver: %w", err)
			}
			archiver = local
		}

		tier, err := store.NewArchiveTier(archiver, cfg.ArchivePrefix, cfg.BlockCompression)
		if err != nil {
			return nil, fmt.Errorf("chronodb: open archive tier: %w", err)
		}
		e.arch = tier
	}

	if err := e.restoreSeriesSet(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go e.flushLoop(ctx)

	if e.arch != nil {
		e.wg.Add(1)
		go e.archivalLoop(ctx)
	}

	return e, nil
}

// restoreSeriesSet rebuilds the live series set on startup from the
// series.key sidecar each tier writes alongside a series' first manifest,
// since the hashed directory/object prefix alone does not recover the
// original SeriesKey.
func (e *Engine) restoreSeriesSet() error {
	keys, err := e.disk.ListSeriesKeys()
	if err != nil {
		return fmt.Errorf("chronodb: list disk series keys: %w", err)
	}
	for _, k := range keys {
		e.trackSeries(k)
	}

	if e.arch != nil {
		keys, err := e.arch.ListSeriesKeys()
		if err != nil {
			return fmt.Errorf("chronodb: list archive series keys: %w", err)
		}
		for _, k := range keys {
			e.trackSeries(k)
		}
	}

	return nil
}

func (e *Engine) trackSeries(series model.SeriesKey) {
	e.seriesMu.Lock()
	e.seriesSet[series] = struct{}{}
	e.seriesMu.Unlock()
}

// Insert writes one point for series. Visible to a subsequent QueryRange
// issued after Insert returns, regardless of tier.
func (e *Engine) Insert(series model.SeriesKey, p model.DataPoint) error {
	if err := e.memory.Insert(series, p); err != nil {
		return fmt.Errorf("chronodb: insert: %w", err)
	}
	e.trackSeries(series)

	return nil
}

// QueryRange merges raw/pending (memory), disk, and archive tiers,
// deduplicating by timestamp with last-write-wins precedence memory >
// disk > archive (memory is freshest since flush only ever copies
// forward).
func (e *Engine) QueryRange(series model.SeriesKey, lo, hi int64) ([]model.DataPoint, error) {
	if lo > hi {
		return nil, fmt.Errorf("chronodb: query range lo=%d > hi=%d: %w", lo, hi, errs.ErrInvalidInput)
	}

	byTS := make(map[int64]float64)

	if e.arch != nil {
		if err := mergeTier(byTS, func() ([]model.DataPoint, error) {
			return e.readArchiveRange(series, lo, hi)
		}, e.logger); err != nil {
			return nil, err
		}
	}

	if err := mergeTier(byTS, func() ([]model.DataPoint, error) {
		return e.readDiskRange(series, lo, hi)
	}, e.logger); err != nil {
		return nil, err
	}

	memPoints, err := e.memory.QueryRange(series, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("chronodb: query memory: %w", err)
	}
	for _, p := range memPoints {
		byTS[p.Timestamp] = p.Value
	}

	out := make([]model.DataPoint, 0, len(byTS))
	for ts, v := range byTS {
		out = append(out, model.DataPoint{Timestamp: ts, Value: v})
	}
	sortPoints(out)

	return out, nil
}

// mergeTier runs fetch and layers its points into byTS. Codec-level
// corruption fails the query in strict mode (the default and only mode
// implemented here) so silent data loss is impossible, per §4.7; a
// missing manifest (ErrNotFound) is treated as an empty tier, not an
// error.
func mergeTier(byTS map[int64]float64, fetch func() ([]model.DataPoint, error), logger gklog.Logger) error {
	pts, err := fetch()
	if err != nil {
		if err == errs.ErrNotFound {
			return nil
		}

		level.Error(logger).Log("msg", "tier read failed", "err", err)

		return fmt.Errorf("chronodb: tier read: %w", err)
	}
	for _, p := range pts {
		byTS[p.Timestamp] = p.Value
	}

	return nil
}

func (e *Engine) readDiskRange(series model.SeriesKey, lo, hi int64) ([]model.DataPoint, error) {
	manifest, err := e.disk.ReadManifest(series)
	if err != nil {
		return nil, err
	}

	var out []model.DataPoint
	for _, meta := range manifest.Blocks {
		if hi < meta.StartTime || lo > meta.EndTime {
			continue
		}
		blk, err := e.disk.ReadBlock(series, meta.Locator)
		if err != nil {
			return nil, fmt.Errorf("chronodb: read disk block %s: %w", meta.Locator, err)
		}
		pts, err := codec.QueryRange(blk, lo, hi)
		if err != nil {
			return nil, err
		}
		out = append(out, pts...)
	}

	return out, nil
}

func (e *Engine) readArchiveRange(series model.SeriesKey, lo, hi int64) ([]model.DataPoint, error) {
	manifest, err := e.arch.ReadManifest(series)
	if err != nil {
		return nil, err
	}

	var out []model.DataPoint
	for _, meta := range manifest.Blocks {
		if hi < meta.StartTime || lo > meta.EndTime {
			continue
		}
		blk, err := e.arch.ReadBlock(series, meta.Locator)
		if err != nil {
			return nil, fmt.Errorf("chronodb: read archive block %s: %w", meta.Locator, err)
		}
		pts, err := codec.QueryRange(blk, lo, hi)
		if err != nil {
			return nil, err
		}
		out = append(out, pts...)
	}

	return out, nil
}

func sortPoints(pts []model.DataPoint) {
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && pts[j-1].Timestamp > pts[j].Timestamp; j-- {
			pts[j-1], pts[j] = pts[j], pts[j-1]
		}
	}
}

// QueryAggregated reduces QueryRange's result with kind.
func (e *Engine) QueryAggregated(series model.SeriesKey, lo, hi int64, kind query.Kind) (float64, error) {
	pts, err := e.QueryRange(series, lo, hi)
	if err != nil {
		return 0, err
	}

	return query.Aggregate(pts, kind)
}

// EstimateBytes reports a diagnostic estimate of the additional disk
// bytes series would occupy if additionalPoints more points were
// flushed, based on this Engine's observed flush history. It never
// gates Insert or ForceFlush; callers consult it for capacity planning
// only. Returns errs.ErrNotFound until enough flushes have happened to
// fit a curve.
func (e *Engine) EstimateBytes(series model.SeriesKey, additionalPoints int) (int64, error) {
	return e.estimator.EstimateBytes(series, additionalPoints)
}

// ListSeries returns the union of every series this Engine has observed
// via Insert, the disk manifest set, and (when enabled) the archive
// manifest set.
func (e *Engine) ListSeries() []model.SeriesKey {
	e.seriesMu.Lock()
	out := make([]model.SeriesKey, 0, len(e.seriesSet))
	for k := range e.seriesSet {
		out = append(out, k)
	}
	e.seriesMu.Unlock()

	return out
}

// ForceFlush drains every known series' memory buffer to disk. Completes
// only after all eligible series have been written and manifests renamed.
func (e *Engine) ForceFlush() error {
	for _, series := range e.ListSeries() {
		blocks, err := e.memory.DrainForFlush(series)
		if err != nil {
			level.Warn(e.logger).Log("msg", "drain failed", "series", series, "err", err)

			return fmt.Errorf("chronodb: drain %s: %w", series, err)
		}
		if len(blocks) == 0 {
			continue
		}
		if err := e.disk.AppendBlocks(series, blocks); err != nil {
			e.memory.RestorePendingBlocks(series, blocks)
			level.Warn(e.logger).Log("msg", "flush failed, retained for retry", "series", series, "err", err)

			return fmt.Errorf("chronodb: flush %s: %w", series, err)
		}

		points, bytes := flushedPointsAndBytes(blocks)
		e.estimator.Observe(series, points, bytes)
	}

	return nil
}

// flushedPointsAndBytes totals the point count and compressed byte size
// across a flush's sealed blocks, for capacity-estimation sampling.
func flushedPointsAndBytes(blocks []codec.Block) (points int, bytes int) {
	for _, b := range blocks {
		points += b.PointCount
		bytes += len(b.CompressedTimestamps) + len(b.CompressedValues)
	}

	return points, bytes
}

// ForceArchive moves every disk block whose end_time is older than
// archival_age_days to the archive tier, deleting it from disk only
// after the archive Put succeeds. Returns 0 when archiving is disabled.
func (e *Engine) ForceArchive() (int, error) {
	if e.arch == nil {
		return 0, nil
	}

	cutoff := time.Now().Add(-time.Duration(e.cfg.ArchivalAgeDays) * 24 * time.Hour).UnixMilli()

	count := 0
	for _, series := range e.ListSeries() {
		manifest, err := e.disk.ReadManifest(series)
		if err != nil {
			if err == errs.ErrNotFound {
				continue
			}

			return count, fmt.Errorf("chronodb: read disk manifest %s: %w", series, err)
		}

		toRemove := make(map[string]struct{})
		for _, meta := range manifest.Blocks {
			if meta.EndTime >= cutoff {
				continue
			}

			blk, err := e.disk.ReadBlock(series, meta.Locator)
			if err != nil {
				return count, fmt.Errorf("chronodb: read block for archival %s: %w", meta.Locator, err)
			}
			if err := e.arch.PutBlock(series, blk); err != nil {
				level.Warn(e.logger).Log("msg", "archive put failed", "series", series, "err", err)

				return count, fmt.Errorf("chronodb: archive put %s: %w", meta.Locator, err)
			}

			toRemove[meta.Locator] = struct{}{}
			count++
		}

		if len(toRemove) > 0 {
			if err := e.disk.RemoveBlocks(series, toRemove); err != nil {
				return count, fmt.Errorf("chronodb: remove archived disk blocks %s: %w", series, err)
			}
		}
	}

	return count, nil
}

// CleanupOldData removes blocks whose end_time < cutoffMs from disk and
// archive. A block spanning the cutoff (start < cutoff <= end) is kept
// entirely; cleanup is whole-block.
func (e *Engine) CleanupOldData(cutoffMs int64) (int, error) {
	count := 0
	for _, series := range e.ListSeries() {
		n, err := cleanupTier(e.disk, series, cutoffMs)
		if err != nil {
			return count, err
		}
		count += n

		if e.arch != nil {
			n, err := cleanupArchiveTier(e.arch, series, cutoffMs)
			if err != nil {
				return count, err
			}
			count += n
		}
	}

	return count, nil
}

func cleanupTier(disk *store.DiskStore, series model.SeriesKey, cutoffMs int64) (int, error) {
	manifest, err := disk.ReadManifest(series)
	if err != nil {
		if err == errs.ErrNotFound {
			return 0, nil
		}

		return 0, fmt.Errorf("chronodb: read disk manifest %s: %w", series, err)
	}

	toRemove := make(map[string]struct{})
	for _, meta := range manifest.Blocks {
		if meta.EndTime < cutoffMs {
			toRemove[meta.Locator] = struct{}{}
		}
	}
	if len(toRemove) == 0 {
		return 0, nil
	}

	if err := disk.RemoveBlocks(series, toRemove); err != nil {
		return 0, fmt.Errorf("chronodb: cleanup disk %s: %w", series, err)
	}

	return len(toRemove), nil
}

func cleanupArchiveTier(arch *store.ArchiveTier, series model.SeriesKey, cutoffMs int64) (int, error) {
	manifest, err := arch.ReadManifest(series)
	if err != nil {
		if err == errs.ErrNotFound {
			return 0, nil
		}

		return 0, fmt.Errorf("chronodb: read archive manifest %s: %w", series, err)
	}

	toRemove := make(map[string]struct{})
	for _, meta := range manifest.Blocks {
		if meta.EndTime < cutoffMs {
			toRemove[meta.Locator] = struct{}{}
		}
	}
	if len(toRemove) == 0 {
		return 0, nil
	}

	if err := arch.RemoveBlocks(series, toRemove); err != nil {
		return 0, fmt.Errorf("chronodb: cleanup archive %s: %w", series, err)
	}

	return len(toRemove), nil
}

// Shutdown runs a final synchronous ForceFlush, then tears down the
// background flush/archival loops. Idempotent.
func (e *Engine) Shutdown() error {
	var flushErr error
	e.shutdownOnce.Do(func() {
		flushErr = e.ForceFlush()
		e.cancel()
		e.wg.Wait()
	})

	return flushErr
}

func (e *Engine) flushLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Duration(e.cfg.FlushIntervalSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.ForceFlush(); err != nil {
				level.Error(e.logger).Log("msg", "periodic flush failed", "err", err)
			}
		}
	}
}

func (e *Engine) archivalLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Duration(e.cfg.FlushIntervalSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.ForceArchive(); err != nil {
				level.Error(e.logger).Log("msg", "periodic archival failed", "err", err)
			}
		}
	}
}
