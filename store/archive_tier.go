package store

import (
	"fmt"
	"sync"

	"github.com/chronodb/chronodb/codec"
	"github.com/chronodb/chronodb/compress"
	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/format"
	"github.com/chronodb/chronodb/model"
)

// ArchiveTier mirrors DiskStore's manifest/block shape on top of an
// Archiver, so cold blocks migrated from disk are queryable the same way.
type ArchiveTier struct {
	archiver Archiver
	prefix   string
	codec    compress.Codec

	mu sync.Mutex
}

// NewArchiveTier wraps archiver with the given key prefix and at-rest
// payload compression.
func NewArchiveTier(archiver Archiver, prefix string, compression format.CompressionType) (*ArchiveTier, error) {
	c, err := compress.GetCodec(compression)
	if err != nil {
		return nil, err
	}

	return &ArchiveTier{archiver: archiver, prefix: prefix, codec: c}, nil
}

func (t *ArchiveTier) seriesPrefix(series model.SeriesKey) string {
	return t.prefix + "/" + SeriesDir(series) + "/"
}

const archiveSeriesKeyObject = "series.key"

// PutBlock copies a sealed block into the archive under the same locator
// scheme disk uses, and appends it to the archive manifest.
func (t *ArchiveTier) PutBlock(series model.SeriesKey, blk codec.Block) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	locator := BlockLocator(blk.StartTime, blk.EndTime)
	payload := EncodeBlock(blk)

	compressed, err := t.codec.Compress(payload)
	if err != nil {
		return fmt.Errorf("chronodb: compress archive block: %w", err)
	}

	if err := t.archiver.Put(t.seriesPrefix(series)+locator, compressed); err != nil {
		return err
	}

	if _, err := t.archiver.Get(t.seriesPrefix(series) + archiveSeriesKeyObject); err != nil {
		if err := t.archiver.Put(t.seriesPrefix(series)+archiveSeriesKeyObject, []byte(series)); err != nil {
			return err
		}
	}

	manifest, err := t.readManifestLocked(series)
	if err != nil && err != errs.ErrNotFound {
		return err
	}

	manifest.Blocks = append(manifest.Blocks, model.BlockMetadata{
		Locator:    locator,
		StartTime:  blk.StartTime,
		EndTime:    blk.EndTime,
		PointCount: blk.PointCount,
	})

	return t.writeManifestLocked(series, manifest)
}

// ReadManifest returns the archive manifest for series.
func (t *ArchiveTier) ReadManifest(series model.SeriesKey) (model.SeriesManifest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.readManifestLocked(series)
}

func (t *ArchiveTier) readManifestLocked(series model.SeriesKey) (model.SeriesManifest, error) {
	data, err := t.archiver.Get(t.seriesPrefix(series) + manifestFileName)
	if err != nil {
		if err == errs.ErrNotFound {
			return model.SeriesManifest{Series: series}, errs.ErrNotFound
		}

		return model.SeriesManifest{}, err
	}

	entries, err := DecodeManifest(data)
	if err != nil {
		return model.SeriesManifest{}, err
	}

	blocks := make([]model.BlockMetadata, len(entries))
	for i, e := range entries {
		blocks[i] = model.BlockMetadata{
			Locator:    e.Locator,
			StartTime:  e.StartTime,
			EndTime:    e.EndTime,
			PointCount: e.PointCount,
		}
	}

	return model.SeriesManifest{Series: series, Blocks: blocks}, nil
}

func (t *ArchiveTier) writeManifestLocked(series model.SeriesKey, manifest model.SeriesManifest) error {
	entries := make([]ManifestEntry, len(manifest.Blocks))
	for i, b := range manifest.Blocks {
		entries[i] = ManifestEntry{
			Locator:    b.Locator,
			StartTime:  b.StartTime,
			EndTime:    b.EndTime,
			PointCount: b.PointCount,
		}
	}

	return t.archiver.Put(t.seriesPrefix(series)+manifestFileName, EncodeManifest(entries))
}

// ReadBlock loads and decompresses one archived block by locator.
func (t *ArchiveTier) ReadBlock(series model.SeriesKey, locator string) (codec.Block, error) {
	data, err := t.archiver.Get(t.seriesPrefix(series) + locator)
	if err != nil {
		return codec.Block{}, err
	}

	raw, err := t.codec.Decompress(data)
	if err != nil {
		return codec.Block{}, fmt.Errorf("chronodb: decompress archive block: %w", errs.ErrCorruption)
	}

	blk, _, err := DecodeBlock(raw)

	return blk, err
}

// RemoveBlocks deletes the given archived block objects and their manifest
// entries. Used by retention cleanup; archival itself never deletes disk
// blocks until after a confirmed Put here.
func (t *ArchiveTier) RemoveBlocks(series model.SeriesKey, locators map[string]struct{}) error {
	if len(locators) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	manifest, err := t.readManifestLocked(series)
	if err != nil {
		if err == errs.ErrNotFound {
			return nil
		}

		return err
	}

	kept := manifest.Blocks[:0]
	for _, b := range manifest.Blocks {
		if _, remove := locators[b.Locator]; remove {
			if err := t.archiver.Delete(t.seriesPrefix(series) + b.Locator); err != nil {
				return err
			}

			continue
		}
		kept = append(kept, b)
	}
	manifest.Blocks = kept

	return t.writeManifestLocked(series, manifest)
}

// ListSeriesKeys recovers every archived series' original SeriesKey via
// the archiver's common-prefix listing plus the series.key sidecar
// PutBlock writes alongside each series' first object.
func (t *ArchiveTier) ListSeriesKeys() ([]model.SeriesKey, error) {
	prefixes, err := t.archiver.List(t.prefix+"/", "/")
	if err != nil {
		return nil, err
	}

	keys := make([]model.SeriesKey, 0, len(prefixes))
	for _, p := range prefixes {
		data, err := t.archiver.Get(p + archiveSeriesKeyObject)
		if err != nil {
			if err == errs.ErrNotFound {
				continue
			}

			return nil, err
		}
		keys = append(keys, model.SeriesKey(data))
	}

	return keys, nil
}
