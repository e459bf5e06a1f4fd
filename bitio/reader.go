package bitio

import (
	"encoding/binary"

	"github.com/chronodb/chronodb/errs"
)

// Reader reads a most-significant-bit-first bit stream from a byte slice.
type Reader struct {
	data     []byte
	bytePos  int
	bitBuf   uint64
	bitCount int // valid bits currently held in bitBuf, left-aligned
}

// NewReader returns a Reader over data. The slice is not copied; the caller
// must not mutate it while the Reader is in use.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadBit reads a single bit. Returns errs.ErrInsufficientData at end of stream.
func (r *Reader) ReadBit() (uint64, error) {
	if r.bitCount == 0 && !r.fill() {
		return 0, errs.ErrInsufficientData
	}

	bit := r.bitBuf >> 63
	r.bitBuf <<= 1
	r.bitCount--

	return bit, nil
}

// ReadBits reads n bits (0..64), right-aligned in the result.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if n < 0 || n > 64 {
		return 0, errs.ErrInvalidInput
	}

	if n <= r.bitCount {
		shift := 64 - n
		result := r.bitBuf >> uint(shift)
		r.bitBuf <<= uint(n)
		r.bitCount -= n

		return result, nil
	}

	var result uint64
	remaining := n
	first := true
	for remaining > 0 {
		if r.bitCount == 0 && !r.fill() {
			return 0, errs.ErrInsufficientData
		}

		take := remaining
		if take > r.bitCount {
			take = r.bitCount
		}

		shift := 64 - take
		chunk := r.bitBuf >> uint(shift)
		if first {
			result = chunk
			first = false
		} else {
			result = (result << uint(take)) | chunk
		}

		r.bitBuf <<= uint(take)
		r.bitCount -= take
		remaining -= take
	}

	return result, nil
}

// PeekBits reads n bits without advancing the stream.
func (r *Reader) PeekBits(n int) (uint64, error) {
	saved := *r
	v, err := r.ReadBits(n)
	*r = saved

	return v, err
}

// fill refills the bit buffer with up to 8 fresh bytes, left-aligned.
func (r *Reader) fill() bool {
	if r.bytePos >= len(r.data) {
		return false
	}

	avail := len(r.data) - r.bytePos
	toRead := 8
	if toRead > avail {
		toRead = avail
	}

	if toRead == 8 {
		r.bitBuf = binary.BigEndian.Uint64(r.data[r.bytePos : r.bytePos+8])
		r.bytePos += 8
		r.bitCount = 64

		return true
	}

	var buf uint64
	for i := 0; i < toRead; i++ {
		buf = (buf << 8) | uint64(r.data[r.bytePos])
		r.bytePos++
	}
	buf <<= uint((8 - toRead) * 8)
	r.bitBuf = buf
	r.bitCount = toRead * 8

	return true
}

// Remaining reports whether any bits are left to read.
func (r *Reader) Remaining() bool {
	return r.bitCount > 0 || r.bytePos < len(r.data)
}
