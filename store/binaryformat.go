// Package store implements chronodb's tiered persistence: per-series disk
// blocks and manifests, and the Archiver contract used to migrate cold
// blocks to an object-store-shaped tier.
package store

import (
	"hash/crc32"

	"github.com/chronodb/chronodb/codec"
	"github.com/chronodb/chronodb/endian"
	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/internal/pool"
)

var byteOrder = endian.GetLittleEndianEngine()

// EncodeBlock serializes a block to chronodb's self-describing binary
// record format:
//
//	[crc32(4) | start_time(8) | end_time(8) | point_count(8) |
//	 ts_len(4) | ts_bytes | val_len(4) | val_bytes]
//
// all fields little-endian. The CRC covers every byte after it.
func EncodeBlock(blk codec.Block) []byte {
	size := 4 + 8 + 8 + 8 + 4 + len(blk.CompressedTimestamps) + 4 + len(blk.CompressedValues)
	buf := make([]byte, size)

	body := buf[4:]
	off := 0
	byteOrder.PutUint64(body[off:], uint64(blk.StartTime))
	off += 8
	byteOrder.PutUint64(body[off:], uint64(blk.EndTime))
	off += 8
	byteOrder.PutUint64(body[off:], uint64(blk.PointCount))
	off += 8
	byteOrder.PutUint32(body[off:], uint32(len(blk.CompressedTimestamps)))
	off += 4
	off += copy(body[off:], blk.CompressedTimestamps)
	byteOrder.PutUint32(body[off:], uint32(len(blk.CompressedValues)))
	off += 4
	copy(body[off:], blk.CompressedValues)

	crc := crc32.ChecksumIEEE(body)
	byteOrder.PutUint32(buf[:4], crc)

	return buf
}

// DecodeBlock reverses EncodeBlock, returning errs.ErrCorruption on a CRC
// mismatch or truncated record, and the number of bytes consumed.
func DecodeBlock(data []byte) (codec.Block, int, error) {
	if len(data) < 4+8+8+8+4 {
		return codec.Block{}, 0, errs.ErrCorruption
	}

	wantCRC := byteOrder.Uint32(data[:4])
	body := data[4:]

	off := 0
	startTime := int64(byteOrder.Uint64(body[off:]))
	off += 8
	endTime := int64(byteOrder.Uint64(body[off:]))
	off += 8
	pointCount := int64(byteOrder.Uint64(body[off:]))
	off += 8
	tsLen := int(byteOrder.Uint32(body[off:]))
	off += 4

	if off+tsLen+4 > len(body) {
		return codec.Block{}, 0, errs.ErrCorruption
	}
	tsBytes := body[off : off+tsLen]
	off += tsLen

	valLen := int(byteOrder.Uint32(body[off:]))
	off += 4
	if off+valLen > len(body) {
		return codec.Block{}, 0, errs.ErrCorruption
	}
	valBytes := body[off : off+valLen]
	off += valLen

	gotCRC := crc32.ChecksumIEEE(body[:off])
	if gotCRC != wantCRC {
		return codec.Block{}, 0, errs.ErrCorruption
	}

	blk := codec.Block{
		StartTime:            startTime,
		EndTime:              endTime,
		PointCount:           int(pointCount),
		CompressedTimestamps: append([]byte(nil), tsBytes...),
		CompressedValues:     append([]byte(nil), valBytes...),
	}

	return blk, off + 4, nil
}

// encodeManifestEntry appends one model.BlockMetadata in its wire form:
// [locator_len(4) | locator | start_time(8) | end_time(8) | point_count(8)].
func encodeManifestEntry(buf []byte, locator string, startTime, endTime int64, pointCount int) []byte {
	start := len(buf)
	buf = append(buf, make([]byte, 4+len(locator)+8+8+8)...)

	off := start
	byteOrder.PutUint32(buf[off:], uint32(len(locator)))
	off += 4
	off += copy(buf[off:], locator)
	byteOrder.PutUint64(buf[off:], uint64(startTime))
	off += 8
	byteOrder.PutUint64(buf[off:], uint64(endTime))
	off += 8
	byteOrder.PutUint64(buf[off:], uint64(pointCount))

	return buf
}

func decodeManifestEntry(data []byte) (locator string, startTime, endTime int64, pointCount int, n int, err error) {
	if len(data) < 4 {
		return "", 0, 0, 0, 0, errs.ErrCorruption
	}

	locLen := int(byteOrder.Uint32(data))
	off := 4
	if off+locLen+8+8+8 > len(data) {
		return "", 0, 0, 0, 0, errs.ErrCorruption
	}
	locator = string(data[off : off+locLen])
	off += locLen

	startTime = int64(byteOrder.Uint64(data[off:]))
	off += 8
	endTime = int64(byteOrder.Uint64(data[off:]))
	off += 8
	pointCount = int(byteOrder.Uint64(data[off:]))
	off += 8

	return locator, startTime, endTime, pointCount, off, nil
}

// EncodeManifest serializes a manifest as a length-prefixed sequence of
// entries, one per block, each CRC32-checked as a whole:
// [count(4)] followed by count entries of
// [crc32(4) | entry_len(4) | entry_bytes].
func EncodeManifest(entries []ManifestEntry) []byte {
	out := pool.GetBuffer()
	defer pool.PutBuffer(out)

	header := make([]byte, 4)
	byteOrder.PutUint32(header, uint32(len(entries)))
	out.MustWrite(header)

	var body []byte
	for _, e := range entries {
		body = encodeManifestEntry(body[:0], e.Locator, e.StartTime, e.EndTime, e.PointCount)
		crc := crc32.ChecksumIEEE(body)

		rec := make([]byte, 4+4+len(body))
		byteOrder.PutUint32(rec[:4], crc)
		byteOrder.PutUint32(rec[4:8], uint32(len(body)))
		copy(rec[8:], body)

		out.MustWrite(rec)
	}

	return append([]byte(nil), out.Bytes()...)
}

// ManifestEntry is the wire-level shape of one manifest record.
type ManifestEntry struct {
	Locator    string
	StartTime  int64
	EndTime    int64
	PointCount int
}

// DecodeManifest reverses EncodeManifest.
func DecodeManifest(data []byte) ([]ManifestEntry, error) {
	if len(data) < 4 {
		return nil, errs.ErrCorruption
	}

	count := int(byteOrder.Uint32(data))
	data = data[4:]

	entries := make([]ManifestEntry, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < 8 {
			return nil, errs.ErrCorruption
		}

		wantCRC := byteOrder.Uint32(data[:4])
		entryLen := int(byteOrder.Uint32(data[4:8]))
		if 8+entryLen > len(data) {
			return nil, errs.ErrCorruption
		}
		body := data[8 : 8+entryLen]

		if crc32.ChecksumIEEE(body) != wantCRC {
			return nil, errs.ErrCorruption
		}

		locator, startTime, endTime, pointCount, _, err := decodeManifestEntry(body)
		if err != nil {
			return nil, err
		}

		entries = append(entries, ManifestEntry{
			Locator:    locator,
			StartTime:  startTime,
			EndTime:    endTime,
			PointCount: pointCount,
		})

		data = data[8+entryLen:]
	}

	return entries, nil
}
