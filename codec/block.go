package codec

import (
	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/model"
)

// Block is the unit of durability: a sealed, compressed run of points.
// Decompressing CompressedTimestamps and CompressedValues in lockstep
// yields exactly PointCount pairs; the first timestamp equals StartTime,
// the last equals EndTime.
type Block struct {
	StartTime            int64
	EndTime              int64
	PointCount           int
	CompressedTimestamps []byte
	CompressedValues     []byte
}

// Builder accumulates points in timestamp order and seals them into a Block.
// A Builder is single-use: call Seal once, then discard it.
type Builder struct {
	ts  *TimestampEncoder
	val *ValueEncoder

	started    bool
	startTime  int64
	endTime    int64
	pointCount int
}

// NewBuilder returns an empty block builder.
func NewBuilder() *Builder {
	return &Builder{
		val: NewValueEncoder(),
	}
}

// AddPoint appends one point. Points must arrive in non-decreasing
// timestamp order; a timestamp strictly less than the block's current
// EndTime is rejected (monotonicity within a sealed-in-progress block).
func (b *Builder) AddPoint(p model.DataPoint) error {
	if b.started && p.Timestamp < b.endTime {
		return errs.ErrInvalidInput
	}

	if !b.started {
		b.ts = NewTimestampEncoder(p.Timestamp)
		b.startTime = p.Timestamp
		b.started = true
	} else {
		if err := b.ts.Write(p.Timestamp); err != nil {
			return err
		}
	}

	b.val.Write(p.Value)
	b.endTime = p.Timestamp
	b.pointCount++

	return nil
}

// Len reports how many points have been added so far.
func (b *Builder) Len() int {
	return b.pointCount
}

// Seal finalizes the builder into an immutable Block. Calling Seal on an
// empty builder yields a zero-point block with empty streams.
func (b *Builder) Seal() Block {
	if !b.started {
		return Block{}
	}

	return Block{
		StartTime:            b.startTime,
		EndTime:              b.endTime,
		PointCount:           b.pointCount,
		CompressedTimestamps: b.ts.Finish(),
		CompressedValues:     b.val.Finish(),
	}
}

// Reader yields a Block's points lazily in ascending timestamp order.
type Reader struct {
	ts  *TimestampDecoder
	val *ValueDecoder

	first     bool
	remaining int
}

// NewReader returns a reader over blk. blk must have been produced by a
// Builder (or deserialized from an equivalent on-disk representation).
func NewReader(blk Block) *Reader {
	return &Reader{
		ts:        NewTimestampDecoder(blk.CompressedTimestamps, blk.StartTime, blk.PointCount),
		val:       NewValueDecoder(blk.CompressedValues, blk.PointCount),
		first:     true,
		remaining: blk.PointCount,
	}
}

// Next returns the next point, or errs.ErrNotFound once the block is
// exhausted.
func (r *Reader) Next() (model.DataPoint, error) {
	if r.remaining <= 0 {
		return model.DataPoint{}, errs.ErrNotFound
	}

	v, err := r.val.Next()
	if err != nil {
		return model.DataPoint{}, err
	}

	var ts int64
	if r.first {
		// The first timestamp lives in block metadata, not the bitstream;
		// TimestampDecoder was primed with it at construction.
		ts = r.ts.lastTS
		r.first = false
	} else {
		ts, err = r.ts.Next()
		if err != nil {
			return model.DataPoint{}, err
		}
	}

	r.remaining--

	return model.DataPoint{Timestamp: ts, Value: v}, nil
}

// All decodes every point in blk.
func All(blk Block) ([]model.DataPoint, error) {
	r := NewReader(blk)
	out := make([]model.DataPoint, 0, blk.PointCount)
	for {
		p, err := r.Next()
		if err != nil {
			if err == errs.ErrNotFound {
				break
			}

			return nil, err
		}
		out = append(out, p)
	}

	return out, nil
}

// QueryRange decodes blk and returns the subsequence with lo <= ts <= hi.
func QueryRange(blk Block, lo, hi int64) ([]model.DataPoint, error) {
	if blk.PointCount == 0 || hi < blk.StartTime || lo > blk.EndTime {
		return nil, nil
	}

	all, err := All(blk)
	if err != nil {
		return nil, err
	}

	out := make([]model.DataPoint, 0, len(all))
	for _, p := range all {
		if p.Timestamp >= lo && p.Timestamp <= hi {
			out = append(out, p)
		}
	}

	return out, nil
}
