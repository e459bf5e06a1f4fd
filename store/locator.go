package store

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chronodb/chronodb/internal/hash"
	"github.com/chronodb/chronodb/model"
)

// SeriesDir returns the filesystem-safe directory name for a series: an
// xxHash64 hex prefix (for uniqueness and path-traversal safety) followed
// by a sanitized, human-readable fragment of the original key.
func SeriesDir(series model.SeriesKey) string {
	id := hash.ID(string(series))

	return fmt.Sprintf("%016x_%s", id, sanitize(string(series)))
}

// blockSeq is a process-wide counter folded into BlockLocator so that two
// flushes yielding the same [start,end] window (overlapping concurrent
// windows are expected per the hot-window ordering rules) never collide on
// one file.
var blockSeq uint64

// BlockLocator returns the file name for a block within its series
// directory. It is derived from the block's time range for readability,
// plus a monotonic sequence number so every call returns a fresh name even
// when two blocks share an identical [start,end].
func BlockLocator(startTime, endTime int64) string {
	seq := atomic.AddUint64(&blockSeq, 1)

	return fmt.Sprintf("block_%d_%d_%d.bin", startTime, endTime, seq)
}

const maxSanitizedLen = 48

// sanitize strips path separators and any byte outside a conservative
// filesystem-safe set, replaces a dot that would follow another dot so the
// result never contains "..", and truncates to keep directory names short.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && strings.HasSuffix(b.String(), "."):
			b.WriteRune('_')
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= maxSanitizedLen {
			break
		}
	}

	if b.Len() == 0 {
		return "series"
	}

	return b.String()
}
