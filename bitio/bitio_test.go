package bitio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_WriteBit_ReadBit_Roundtrip(t *testing.T) {
	bits := []uint64{1, 0, 1, 1, 0, 0, 0, 1, 1, 1, 0, 1}

	w := NewWriter()
	for _, b := range bits {
		w.WriteBit(b)
	}
	data := w.Finish()

	r := NewReader(data)
	for i, want := range bits {
		got, err := r.ReadBit()
		require.NoError(t, err)
		assert.Equal(t, want, got, "bit %d", i)
	}
}

func TestWriter_WriteBits_ReadBits_Roundtrip(t *testing.T) {
	type entry struct {
		value uint64
		n     int
	}
	entries := []entry{
		{0x1, 1},
		{0x3, 2},
		{0x7F, 7},
		{0x1FF, 9},
		{0xFFF, 12},
		{0xFFFFFFFF, 32},
		{0xDEADBEEFCAFEBABE, 64},
		{0, 5},
	}

	w := NewWriter()
	for _, e := range entries {
		w.WriteBits(e.value, e.n)
	}
	data := w.Finish()

	r := NewReader(data)
	for i, e := range entries {
		got, err := r.ReadBits(e.n)
		require.NoError(t, err)
		mask := uint64(1)<<uint(e.n) - 1
		if e.n == 64 {
			mask = ^uint64(0)
		}
		assert.Equal(t, e.value&mask, got, "entry %d", i)
	}
}

func TestReader_ErrInsufficientData(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0b101, 3)
	data := w.Finish()

	// Finish pads the 3 written bits to one whole byte; the 5 pad bits read
	// back as zero, so the stream only runs out after all 8 bits.
	r := NewReader(data)
	_, err := r.ReadBits(8)
	require.NoError(t, err)

	_, err = r.ReadBit()
	assert.Error(t, err)
}

func TestReader_PeekBits_DoesNotAdvance(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0b1011, 4)
	w.WriteBits(0b0110, 4)
	data := w.Finish()

	r := NewReader(data)
	peeked, err := r.PeekBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b1011), peeked)

	got, err := r.ReadBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b1011), got, "peek must not consume bits")

	got2, err := r.ReadBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b0110), got2)
}

func TestWriter_BitLen(t *testing.T) {
	w := NewWriter()
	assert.Equal(t, 0, w.BitLen())
	w.WriteBits(0x1, 1)
	assert.Equal(t, 1, w.BitLen())
	w.WriteBits(0x3, 7)
	assert.Equal(t, 8, w.BitLen())
}

func TestWriter_Reset(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0xFF, 8)
	w.Reset()
	assert.Equal(t, 0, w.BitLen())
	w.WriteBits(0xAA, 8)
	data := w.Finish()
	require.Len(t, data, 1)
	assert.Equal(t, byte(0xAA), data[0])
}

func TestWriter_ArbitrarySequence_AcrossByteBoundaries(t *testing.T) {
	sizes := []int{1, 2, 3, 5, 7, 9, 11, 13, 17, 31, 32, 63, 64}
	var values []uint64
	w := NewWriter()
	for i, n := range sizes {
		v := uint64(i*2654435761 + 7)
		if n < 64 {
			v &= (uint64(1) << uint(n)) - 1
		}
		values = append(values, v)
		w.WriteBits(v, n)
	}
	data := w.Finish()

	r := NewReader(data)
	for i, n := range sizes {
		got, err := r.ReadBits(n)
		require.NoError(t, err)
		assert.Equal(t, values[i], got, "index %d size %d", i, n)
	}
}
