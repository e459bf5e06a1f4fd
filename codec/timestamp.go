// Package codec implements the Gorilla-style timestamp and value
// compressors, plus the block builder/reader that sits on top of them.
package codec

import (
	"github.com/chronodb/chronodb/bitio"
	"github.com/chronodb/chronodb/errs"
)

// dod prefix widths, per the delta-of-delta table: the payload bit count for
// each bucket, indexed by how many leading 1-bits precede the terminating 0
// (or, for the widest bucket, the all-1s prefix).
const (
	dodSmallBits  = 7  // -63..64
	dodMediumBits = 9  // -255..256
	dodLargeBits  = 12 // -2047..2048
	dodHugeBits   = 32 // else
)

// TimestampEncoder compresses a strictly-increasing (within the tolerances
// allowed by the store) sequence of millisecond timestamps using
// delta-of-delta encoding. The first timestamp is never written to the
// bitstream; it is carried as block metadata (start_time) instead.
type TimestampEncoder struct {
	w *bitio.Writer

	count     int
	lastTS    int64
	lastDelta int64
}

// NewTimestampEncoder returns an encoder primed with the block's first
// timestamp. first is not written to the stream.
func NewTimestampEncoder(first int64) *TimestampEncoder {
	return &TimestampEncoder{
		w:      bitio.NewWriter(),
		count:  1,
		lastTS: first,
	}
}

// Write appends the next timestamp, which must be >= the previous one.
func (e *TimestampEncoder) Write(ts int64) error {
	switch e.count {
	case 0:
		// Unreachable: NewTimestampEncoder always seeds count=1.
		return errs.ErrInvalidInput
	case 1:
		delta := ts - e.lastTS
		e.w.WriteBits(uint64(delta), 64)
		e.lastDelta = delta
	default:
		delta := ts - e.lastTS
		dod := delta - e.lastDelta
		if err := e.writeDod(dod); err != nil {
			return err
		}
		e.lastDelta = delta
	}

	e.lastTS = ts
	e.count++

	return nil
}

func (e *TimestampEncoder) writeDod(dod int64) error {
	switch {
	case dod == 0:
		e.w.WriteBit(0)
	case dod >= -63 && dod <= 64:
		e.w.WriteBits(0b10, 2)
		e.w.WriteBits(uint64(dod)&mask(dodSmallBits), dodSmallBits)
	case dod >= -255 && dod <= 256:
		e.w.WriteBits(0b110, 3)
		e.w.WriteBits(uint64(dod)&mask(dodMediumBits), dodMediumBits)
	case dod >= -2047 && dod <= 2048:
		e.w.WriteBits(0b1110, 4)
		e.w.WriteBits(uint64(dod)&mask(dodLargeBits), dodLargeBits)
	case dod >= -(1<<31) && dod <= (1<<31)-1:
		e.w.WriteBits(0b1111, 4)
		e.w.WriteBits(uint64(dod)&mask(dodHugeBits), dodHugeBits)
	default:
		return errs.ErrInvalidInput
	}

	return nil
}

func mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << uint(n)) - 1
}

// Finish seals the bitstream and returns its bytes. The count of points
// written (including the seed first timestamp) is tracked separately by the
// block builder.
func (e *TimestampEncoder) Finish() []byte {
	return e.w.Finish()
}

// BitLen reports the number of bits written so far.
func (e *TimestampEncoder) BitLen() int {
	return e.w.BitLen()
}

// TimestampDecoder reverses TimestampEncoder, given the block's first
// timestamp and the total number of points the block holds.
type TimestampDecoder struct {
	r *bitio.Reader

	remaining int // timestamps still to decode, after the seeded first
	decoded   int // number of Next() calls so far
	lastTS    int64
	lastDelta int64
}

// NewTimestampDecoder returns a decoder over data, yielding pointCount-1
// further timestamps via Next (the first is known from block metadata).
func NewTimestampDecoder(data []byte, first int64, pointCount int) *TimestampDecoder {
	n := pointCount - 1
	if n < 0 {
		n = 0
	}

	return &TimestampDecoder{
		r:         bitio.NewReader(data),
		remaining: n,
		lastTS:    first,
	}
}

// Next returns the next timestamp, or errs.ErrNotFound once exhausted.
func (d *TimestampDecoder) Next() (int64, error) {
	if d.remaining <= 0 {
		return 0, errs.ErrNotFound
	}

	var delta int64
	if d.decoded == 0 {
		raw, err := d.r.ReadBits(64)
		if err != nil {
			return 0, err
		}
		delta = int64(raw)
	} else {
		dod, err := d.readDod()
		if err != nil {
			return 0, err
		}
		delta = d.lastDelta + dod
	}

	ts := d.lastTS + delta
	d.lastTS = ts
	d.lastDelta = delta
	d.remaining--
	d.decoded++

	return ts, nil
}

func (d *TimestampDecoder) readDod() (int64, error) {
	b0, err := d.r.ReadBit()
	if err != nil {
		return 0, err
	}
	if b0 == 0 {
		return 0, nil
	}

	b1, err := d.r.ReadBit()
	if err != nil {
		return 0, err
	}
	if b1 == 0 {
		v, err := d.r.ReadBits(dodSmallBits)
		if err != nil {
			return 0, err
		}

		return signExtend(v, dodSmallBits), nil
	}

	b2, err := d.r.ReadBit()
	if err != nil {
		return 0, err
	}
	if b2 == 0 {
		v, err := d.r.ReadBits(dodMediumBits)
		if err != nil {
			return 0, err
		}

		return signExtend(v, dodMediumBits), nil
	}

	b3, err := d.r.ReadBit()
	if err != nil {
		return 0, err
	}
	if b3 == 0 {
		v, err := d.r.ReadBits(dodLargeBits)
		if err != nil {
			return 0, err
		}

		return signExtend(v, dodLargeBits), nil
	}

	v, err := d.r.ReadBits(dodHugeBits)
	if err != nil {
		return 0, err
	}

	return signExtend(v, dodHugeBits), nil
}

// signExtend interprets the low n bits of v as a two's-complement integer.
func signExtend(v uint64, n int) int64 {
	shift := uint(64 - n)

	return int64(v<<shift) >> shift
}
