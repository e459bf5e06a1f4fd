package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chronodb/chronodb/codec"
	"github.com/chronodb/chronodb/compress"
	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/format"
	"github.com/chronodb/chronodb/model"
)

const manifestFileName = "manifest.bin"
const seriesKeyFileName = "series.key"

// DiskStore persists sealed blocks and per-series manifests under a root
// directory. Manifest updates are crash-safe: a new manifest is written to
// a temp file in the series directory, then renamed over the old one:
// a crash mid-write leaves the previous manifest intact.
type DiskStore struct {
	root  string
	codec compress.Codec

	mu sync.Mutex // serializes manifest read-modify-write per DiskStore instance
}

// NewDiskStore returns a store rooted at dir, applying the given at-rest
// payload compression to block bodies (format.CompressionNone for none).
func NewDiskStore(dir string, compression format.CompressionType) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chronodb: create data dir: %w", errs.ErrIO)
	}

	c, err := compress.GetCodec(compression)
	if err != nil {
		return nil, err
	}

	return &DiskStore{root: dir, codec: c}, nil
}

func (s *DiskStore) seriesDir(series model.SeriesKey) string {
	return filepath.Join(s.root, SeriesDir(series))
}

// AppendBlocks durably writes each block under a fresh locator and commits
// the updated manifest in one crash-safe rename. Existing manifest entries
// are preserved; new entries are appended after them in the order given.
// The manifest is not re-sorted, so it is in StartTime order only when
// blocks are flushed in time order.
func (s *DiskStore) AppendBlocks(series model.SeriesKey, blocks []codec.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.seriesDir(series)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("chronodb: create series dir: %w", errs.ErrIO)
	}

	keyPath := filepath.Join(dir, seriesKeyFileName)
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		if err := writeFileAtomic(keyPath, []byte(series)); err != nil {
			return err
		}
	}

	manifest, err := s.readManifestLocked(series)
	if err != nil && err != errs.ErrNotFound {
		return err
	}

	for _, blk := range blocks {
		locator := BlockLocator(blk.StartTime, blk.EndTime)
		payload := EncodeBlock(blk)

		compressed, err := s.codec.Compress(payload)
		if err != nil {
			return fmt.Errorf("chronodb: compress block: %w", err)
		}

		if err := writeFileAtomic(filepath.Join(dir, locator), compressed); err != nil {
			return err
		}

		manifest.Blocks = append(manifest.Blocks, model.BlockMetadata{
			Locator:    locator,
			StartTime:  blk.StartTime,
			EndTime:    blk.EndTime,
			PointCount: blk.PointCount,
		})
	}

	return s.writeManifestLocked(series, manifest)
}

// ReadManifest returns the series' disk manifest, or an empty manifest
// (errs.ErrNotFound) if the series has never been flushed.
func (s *DiskStore) ReadManifest(series model.SeriesKey) (model.SeriesManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readManifestLocked(series)
}

func (s *DiskStore) readManifestLocked(series model.SeriesKey) (model.SeriesManifest, error) {
	path := filepath.Join(s.seriesDir(series), manifestFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.SeriesManifest{Series: series}, errs.ErrNotFound
		}

		return model.SeriesManifest{}, fmt.Errorf("chronodb: read manifest: %w", errs.ErrIO)
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

func (s *DiskStore) writeManifestLocked(series model.SeriesKey, manifest model.SeriesManifest) error {
	entries := make([]ManifestEntry, len(manifest.Blocks))
	for i, b := range manifest.Blocks {
		entries[i] = ManifestEntry{
			Locator:    b.Locator,
			StartTime:  b.StartTime,
			EndTime:    b.EndTime,
			PointCount: b.PointCount,
		}
	}

	data := EncodeManifest(entries)
	path := filepath.Join(s.seriesDir(series), manifestFileName)

	return writeFileAtomic(path, data)
}

// ReadBlock loads and decompresses one block by locator.
func (s *DiskStore) ReadBlock(series model.SeriesKey, locator string) (codec.Block, error) {
	path := filepath.Join(s.seriesDir(series), locator)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return codec.Block{}, errs.ErrNotFound
		}

		return codec.Block{}, fmt.Errorf("chronodb: read block: %w", errs.ErrIO)
	}

	raw, err := s.codec.Decompress(data)
	if err != nil {
		return codec.Block{}, fmt.Errorf("chronodb: decompress block: %w", errs.ErrCorruption)
	}

	blk, _, err := DecodeBlock(raw)

	return blk, err
}

// RemoveBlocks deletes the given block files and their manifest entries.
// Used by both archival (after a confirmed copy) and retention cleanup.
func (s *DiskStore) RemoveBlocks(series model.SeriesKey, locators map[string]struct{}) error {
	if len(locators) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := s.readManifestLocked(series)
	if err != nil {
		if err == errs.ErrNotFound {
			return nil
		}

		return err
	}

	kept := manifest.Blocks[:0]
	for _, b := range manifest.Blocks {
		if _, remove := locators[b.Locator]; remove {
			path := filepath.Join(s.seriesDir(series), b.Locator)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("chronodb: remove block: %w", errs.ErrIO)
			}

			continue
		}
		kept = append(kept, b)
	}
	manifest.Blocks = kept

	return s.writeManifestLocked(series, manifest)
}

// ListSeriesDirs returns every series directory name present under root.
// The hashed directory name alone does not recover the original SeriesKey;
// use ListSeriesKeys for that.
func (s *DiskStore) ListSeriesDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("chronodb: list series: %w", errs.ErrIO)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}

	return dirs, nil
}

// ListSeriesKeys recovers every series' original SeriesKey by reading the
// sidecar file AppendBlocks writes alongside each series' first manifest.
// Used on Engine restart to rebuild the live series set, since the disk
// directory name is only a one-way hash of the key.
func (s *DiskStore) ListSeriesKeys() ([]model.SeriesKey, error) {
	dirs, err := s.ListSeriesDirs()
	if err != nil {
		return nil, err
	}

	keys := make([]model.SeriesKey, 0, len(dirs))
	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(s.root, dir, seriesKeyFileName))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, fmt.Errorf("chronodb: read series key: %w", errs.ErrIO)
		}
		keys = append(keys, model.SeriesKey(data))
	}

	return keys, nil
}

// writeFileAtomic writes data to a temp file in the same directory as path,
// then renames it into place: the rename is the commit point.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("chronodb: create temp file: %w", errs.ErrIO)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("chronodb: write temp file: %w", errs.ErrIO)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("chronodb: close temp file: %w", errs.ErrIO)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("chronodb: rename temp file: %w", errs.ErrIO)
	}

	return nil
}
