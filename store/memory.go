package store

import (
	"sort"
	"sync"

	"github.com/chronodb/chronodb/codec"
	"github.com/chronodb/chronodb/internal/pool"
	"github.com/chronodb/chronodb/model"
)

// seriesBuffer is one series' hot state: an ordered map of raw points plus
// sealed-but-not-yet-flushed compressed blocks. Protected by a single
// exclusive lock per the concurrency model: ingest acquires it to write,
// queries acquire it to read the raw map and clone pending_blocks.
type seriesBuffer struct {
	mu sync.Mutex

	raw           map[int64]float64
	pendingBlocks []codec.Block
}

func newSeriesBuffer() *seriesBuffer {
	return &seriesBuffer{raw: make(map[int64]float64)}
}

// MemoryBuffer holds every series' hot state and enforces the
// memory_buffer_size compression trigger.
type MemoryBuffer struct {
	bufferSize int

	mu     sync.RWMutex // protects the series map itself, not its contents
	series map[model.SeriesKey]*seriesBuffer
}

// NewMemoryBuffer returns an empty buffer that compresses a series' oldest
// half of its raw points into a block once the raw map exceeds
// bufferSize entries.
func NewMemoryBuffer(bufferSize int) *MemoryBuffer {
	return &MemoryBuffer{
		bufferSize: bufferSize,
		series:     make(map[model.SeriesKey]*seriesBuffer),
	}
}

func (m *MemoryBuffer) bufferFor(series model.SeriesKey) *seriesBuffer {
	m.mu.RLock()
	sb, ok := m.series[series]
	m.mu.RUnlock()
	if ok {
		return sb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sb, ok := m.series[series]; ok {
		return sb
	}
	sb = newSeriesBuffer()
	m.series[series] = sb

	return sb
}

// Insert writes a point into the raw map (last write wins for a duplicate
// timestamp), then compresses the oldest half of the raw map into a
// pending block if the trigger threshold is exceeded.
func (m *MemoryBuffer) Insert(series model.SeriesKey, p model.DataPoint) error {
	sb := m.bufferFor(series)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.raw[p.Timestamp] = p.Value

	if len(sb.raw) > m.bufferSize {
		if err := compressOldestHalf(sb); err != nil {
			return err
		}
	}

	return nil
}

// compressOldestHalf builds a block from the oldest len(raw)/2 points
// (sorted by timestamp), appends it to pendingBlocks, and removes those
// points from raw. Caller must hold sb.mu.
func compressOldestHalf(sb *seriesBuffer) error {
	n := len(sb.raw) / 2
	if n == 0 {
		return nil
	}

	timestamps, cleanup := pool.GetInt64Slice(len(sb.raw))
	defer cleanup()

	i := 0
	for ts := range sb.raw {
		timestamps[i] = ts
		i++
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	b := codec.NewBuilder()
	for _, ts := range timestamps[:n] {
		if err := b.AddPoint(model.DataPoint{Timestamp: ts, Value: sb.raw[ts]}); err != nil {
			return err
		}
	}

	sb.pendingBlocks = append(sb.pendingBlocks, b.Seal())
	for _, ts := range timestamps[:n] {
		delete(sb.raw, ts)
	}

	return nil
}

// DrainForFlush removes and returns every raw point (sorted, sealed into a
// trailing block if non-empty) and pending block for series, leaving the
// buffer empty. Returns (nil, nil) if the series has no buffered data.
func (m *MemoryBuffer) DrainForFlush(series model.SeriesKey) ([]codec.Block, error) {
	sb := m.bufferFor(series)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	blocks := sb.pendingBlocks
	sb.pendingBlocks = nil

	if len(sb.raw) > 0 {
		timestamps, cleanup := pool.GetInt64Slice(len(sb.raw))
		defer cleanup()

		i := 0
		for ts := range sb.raw {
			timestamps[i] = ts
			i++
		}
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

		b := codec.NewBuilder()
		for _, ts := range timestamps {
			if err := b.AddPoint(model.DataPoint{Timestamp: ts, Value: sb.raw[ts]}); err != nil {
				// Leave the buffer as it was: raw is untouched, and the
				// pending blocks go back for the next flush attempt.
				sb.pendingBlocks = blocks

				return nil, err
			}
		}
		blocks = append(blocks, b.Seal())
		sb.raw = make(map[int64]float64)
	}

	if len(blocks) == 0 {
		return nil, nil
	}

	return blocks, nil
}

// RestorePendingBlocks re-stages blocks drained by DrainForFlush ahead of
// any pending blocks accumulated since, for retry on the next flush
// interval. Used when the disk write that was meant to consume them fails,
// so a flush error never loses data.
func (m *MemoryBuffer) RestorePendingBlocks(series model.SeriesKey, blocks []codec.Block) {
	if len(blocks) == 0 {
		return
	}

	sb := m.bufferFor(series)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.pendingBlocks = append(append([]codec.Block(nil), blocks...), sb.pendingBlocks...)
}

// QueryRange returns raw and decompressed pending-block points in [lo, hi]
// for series, deduplicated by timestamp with raw taking precedence over
// pending: a timestamp can appear in both when it was re-inserted after its
// original value was already compressed into a pending block, and raw is
// always the fresher write.
func (m *MemoryBuffer) QueryRange(series model.SeriesKey, lo, hi int64) ([]model.DataPoint, error) {
	sb := m.bufferFor(series)

	sb.mu.Lock()
	pending := append([]codec.Block(nil), sb.pendingBlocks...)
	raw := make(map[int64]float64, len(sb.raw))
	for ts, v := range sb.raw {
		if ts >= lo && ts <= hi {
			raw[ts] = v
		}
	}
	sb.mu.Unlock()

	byTS := make(map[int64]float64, len(raw))
	for _, blk := range pending {
		pts, err := codec.QueryRange(blk, lo, hi)
		if err != nil {
			return nil, err
		}
		for _, p := range pts {
			byTS[p.Timestamp] = p.Value
		}
	}
	for ts, v := range raw {
		byTS[ts] = v
	}

	out := make([]model.DataPoint, 0, len(byTS))
	for ts, v := range byTS {
		out = append(out, model.DataPoint{Timestamp: ts, Value: v})
	}

	return out, nil
}

// Series lists every series currently tracked in memory (including series
// with no raw points left but a non-empty pending-block history).
func (m *MemoryBuffer) Series() []model.SeriesKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.SeriesKey, 0, len(m.series))
	for k := range m.series {
		out = append(out, k)
	}

	return out
}
