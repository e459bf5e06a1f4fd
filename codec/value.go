package codec

import (
	"math"
	"math/bits"

	"github.com/chronodb/chronodb/bitio"
	"github.com/chronodb/chronodb/errs"
)

// ValueEncoder compresses a sequence of float64 values using Facebook's
// Gorilla XOR algorithm: the first value is stored verbatim, subsequent
// values are XORed against their predecessor and only the meaningful
// (non-zero) bit window is written, reusing the previous window's bounds
// when possible.
type ValueEncoder struct {
	w *bitio.Writer

	count        int
	prevBits     uint64
	prevLeading  int
	prevTrailing int
	haveWindow   bool
}

// NewValueEncoder returns an empty encoder.
func NewValueEncoder() *ValueEncoder {
	return &ValueEncoder{w: bitio.NewWriter()}
}

// Write appends the next value, preserving its exact IEEE-754 bit pattern
// (so NaN payloads, ±Inf, and ±0 all round-trip bit-for-bit).
func (e *ValueEncoder) Write(v float64) {
	valBits := math.Float64bits(v)

	if e.count == 0 {
		e.w.WriteBits(valBits, 64)
		e.prevBits = valBits
		e.count++

		return
	}

	xor := valBits ^ e.prevBits
	e.prevBits = valBits
	e.count++

	if xor == 0 {
		e.w.WriteBit(0)

		return
	}

	e.w.WriteBit(1)

	leading := bits.LeadingZeros64(xor)
	trailing := bits.TrailingZeros64(xor)

	if e.haveWindow && leading >= e.prevLeading && trailing >= e.prevTrailing {
		e.w.WriteBit(0)
		meaningful := 64 - e.prevLeading - e.prevTrailing
		e.w.WriteBits(xor>>uint(e.prevTrailing), meaningful)

		return
	}

	e.w.WriteBit(1)
	// 5 bits for leading zeros (0-31): Gorilla caps leading at 31 so the
	// field fits; an XOR with more leading zeros is written with a wider
	// meaningful window starting at bit 31, never with a leading count past 31.
	if leading > 31 {
		leading = 31
	}
	meaningful := 64 - leading - trailing
	e.w.WriteBits(uint64(leading), 5)
	e.w.WriteBits(uint64(meaningful-1), 6)
	e.w.WriteBits(xor>>uint(trailing), meaningful)

	e.prevLeading = leading
	e.prevTrailing = trailing
	e.haveWindow = true
}

// Finish seals the bitstream and returns its bytes.
func (e *ValueEncoder) Finish() []byte {
	return e.w.Finish()
}

// BitLen reports the number of bits written so far.
func (e *ValueEncoder) BitLen() int {
	return e.w.BitLen()
}

// ValueDecoder reverses ValueEncoder.
type ValueDecoder struct {
	r *bitio.Reader

	remaining    int
	decoded      int
	prevBits     uint64
	prevLeading  int
	prevTrailing int
	haveWindow   bool
}

// NewValueDecoder returns a decoder over data, yielding pointCount values
// via Next.
func NewValueDecoder(data []byte, pointCount int) *ValueDecoder {
	return &ValueDecoder{
		r:         bitio.NewReader(data),
		remaining: pointCount,
	}
}

// Next returns the next decoded value, or errs.ErrNotFound once exhausted.
func (d *ValueDecoder) Next() (float64, error) {
	if d.remaining <= 0 {
		return 0, errs.ErrNotFound
	}

	if d.decoded == 0 {
		raw, err := d.r.ReadBits(64)
		if err != nil {
			return 0, err
		}
		d.prevBits = raw
		d.remaining--
		d.decoded++

		return math.Float64frombits(raw), nil
	}

	control, err := d.r.ReadBit()
	if err != nil {
		return 0, err
	}

	if control == 0 {
		d.remaining--
		d.decoded++

		return math.Float64frombits(d.prevBits), nil
	}

	reuse, err := d.r.ReadBit()
	if err != nil {
		return 0, err
	}

	var leading, meaningful int
	if reuse == 0 {
		if !d.haveWindow {
			return 0, errs.ErrCorruption
		}
		leading = d.prevLeading
		meaningful = 64 - d.prevLeading - d.prevTrailing
	} else {
		l, err := d.r.ReadBits(5)
		if err != nil {
			return 0, err
		}
		m, err := d.r.ReadBits(6)
		if err != nil {
			return 0, err
		}
		leading = int(l)
		meaningful = int(m) + 1
	}

	trailing := 64 - leading - meaningful
	if trailing < 0 || meaningful <= 0 || meaningful > 64 {
		return 0, errs.ErrCorruption
	}

	bitsVal, err := d.r.ReadBits(meaningful)
	if err != nil {
		return 0, err
	}

	xor := bitsVal << uint(trailing)
	d.prevBits ^= xor
	d.prevLeading = leading
	d.prevTrailing = trailing
	d.haveWindow = true
	d.remaining--
	d.decoded++

	return math.Float64frombits(d.prevBits), nil
}
