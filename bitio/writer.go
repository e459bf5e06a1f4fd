// Package bitio provides most-significant-bit-first bit-level I/O over a byte
// buffer. It is the substrate the codec package builds the Gorilla-style
// timestamp and value compressors on top of.
package bitio

import "github.com/chronodb/chronodb/internal/pool"

// Writer appends bits to a growing byte buffer, most significant bit first
// within each byte. The zero value is not usable; construct with NewWriter.
type Writer struct {
	buf      *pool.ByteBuffer
	bitBuf   uint64
	bitCount int // number of valid bits accumulated in bitBuf, 0..63
}

// NewWriter returns a Writer backed by a freshly pooled byte buffer.
func NewWriter() *Writer {
	return &Writer{buf: pool.GetBuffer()}
}

// WriteBit appends a single bit (0 or 1) to the stream.
func (w *Writer) WriteBit(bit uint64) {
	w.bitBuf = (w.bitBuf << 1) | (bit & 1)
	w.bitCount++
	if w.bitCount == 64 {
		w.flush()
	}
}

// WriteBits appends the low n bits of value, most significant first.
// n must be in [0, 64].
func (w *Writer) WriteBits(value uint64, n int) {
	if n <= 0 {
		return
	}
	if n < 64 {
		value &= (uint64(1) << uint(n)) - 1
	}

	available := 64 - w.bitCount
	if n <= available {
		w.bitBuf = (w.bitBuf << uint(n)) | value
		w.bitCount += n
		if w.bitCount == 64 {
			w.flush()
		}

		return
	}

	// Split across the buffer boundary: fill the current buffer, flush, then
	// stash the remaining low bits.
	high := n - available
	w.bitBuf = (w.bitBuf << uint(available)) | (value >> uint(high))
	w.bitCount = 64
	w.flush()

	w.bitBuf = value & ((uint64(1) << uint(high)) - 1)
	w.bitCount = high
}

// flush drains a full 64-bit accumulator into the byte buffer.
func (w *Writer) flush() {
	var tmp [8]byte
	tmp[0] = byte(w.bitBuf >> 56)
	tmp[1] = byte(w.bitBuf >> 48)
	tmp[2] = byte(w.bitBuf >> 40)
	tmp[3] = byte(w.bitBuf >> 32)
	tmp[4] = byte(w.bitBuf >> 24)
	tmp[5] = byte(w.bitBuf >> 16)
	tmp[6] = byte(w.bitBuf >> 8)
	tmp[7] = byte(w.bitBuf)
	w.buf.MustWrite(tmp[:])
	w.bitBuf = 0
	w.bitCount = 0
}

// Finish flushes any partial byte (unused trailing bits read back as zero)
// and returns the accumulated buffer. The Writer must not be reused after
// Finish without a call to Reset.
func (w *Writer) Finish() []byte {
	if w.bitCount > 0 {
		pending := w.bitCount
		// Left-align the remaining bits into a full byte-aligned run, then
		// flush just the whole bytes they occupy.
		w.bitBuf <<= uint(64 - pending)
		nBytes := (pending + 7) / 8
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(w.bitBuf >> uint(56-8*i))
		}
		w.buf.MustWrite(tmp[:nBytes])
		w.bitBuf = 0
		w.bitCount = 0
	}

	return w.buf.Bytes()
}

// Reset clears the writer for reuse, releasing its buffer back to the pool
// and acquiring a fresh one.
func (w *Writer) Reset() {
	pool.PutBuffer(w.buf)
	w.buf = pool.GetBuffer()
	w.bitBuf = 0
	w.bitCount = 0
}

// BitLen returns the number of bits written so far, including any pending
// partial byte.
func (w *Writer) BitLen() int {
	return w.buf.Len()*8 + w.bitCount
}

// Release returns the writer's buffer to the pool. Call after Finish() once
// the returned slice is no longer needed, or skip it and let GC reclaim it.
func (w *Writer) Release() {
	pool.PutBuffer(w.buf)
	w.buf = nil
}
