package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chronodb/chronodb/compress"
	"github.com/chronodb/chronodb/errs"
	"github.com/chronodb/chronodb/format"
	"github.com/chronodb/chronodb/internal/options"
)

// Documented environment/config defaults per the Core API's environment
// surface: buffer 10000, interval 300s, archival 14 days, archive disabled.
const (
	DefaultMemoryBufferSize  = 10_000
	DefaultFlushIntervalSecs = 300
	DefaultArchivalAgeDays   = 14
)

// Config enumerates the Core API's new_engine configuration.
type Config struct {
	DataDir string

	MemoryBufferSize  int
	FlushIntervalSecs int

	ArchiveEnabled  bool
	ArchiveBucket   string
	ArchiveRegion   string
	ArchivePrefix   string
	ArchivalAgeDays int

	// BlockCompression is the at-rest codec applied to a sealed block's
	// already-bit-packed timestamp/value streams before it is written to
	// disk or archive. Defaults to format.CompressionNone since
	// Gorilla-style streams are already dense; a workload with long runs
	// of repeated deltas can still benefit from LZ4/S2/Zstd on top.
	BlockCompression format.CompressionType
}

// Option configures a Config via the teacher's generic functional-options
// pattern.
type Option = options.Option[*Config]

func WithDataDir(dir string) Option {
	return options.NoError[*Config](func(c *Config) { c.DataDir = dir })
}

func WithMemoryBufferSize(n int) Option {
	return options.New[*Config](func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("chronodb: memory buffer size must be positive: %w", errs.ErrInvalidInput)
		}
		c.MemoryBufferSize = n

		return nil
	})
}

func WithFlushInterval(seconds int) Option {
	return options.New[*Config](func(c *Config) error {
		if seconds <= 0 {
			return fmt.Errorf("chronodb: flush interval must be positive: %w", errs.ErrInvalidInput)
		}
		c.FlushIntervalSecs = seconds

		return nil
	})
}

func WithArchive(bucket, region, prefix string) Option {
	return options.NoError[*Config](func(c *Config) {
		c.ArchiveEnabled = true
		c.ArchiveBucket = bucket
		c.ArchiveRegion = region
		c.ArchivePrefix = prefix
	})
}

// WithBlockCompression sets the at-rest codec for sealed blocks. Returns
// errs.ErrInvalidInput if compress.GetCodec rejects compression.
func WithBlockCompression(compression format.CompressionType) Option {
	return options.New[*Config](func(c *Config) error {
		if _, err := compress.GetCodec(compression); err != nil {
			return fmt.Errorf("chronodb: %w: %w", err, errs.ErrInvalidInput)
		}
		c.BlockCompression = compression

		return nil
	})
}

func WithArchivalAge(days int) Option {
	return options.New[*Config](func(c *Config) error {
		if days <= 0 {
			return fmt.Errorf("chronodb: archival age must be positive: %w", errs.ErrInvalidInput)
		}
		c.ArchivalAgeDays = days

		return nil
	})
}

// NewConfig returns the documented defaults with opts applied on top.
func NewConfig(dataDir string, opts ...Option) (Config, error) {
	cfg := &Config{
		DataDir:           dataDir,
		MemoryBufferSize:  DefaultMemoryBufferSize,
		FlushIntervalSecs: DefaultFlushIntervalSecs,
		ArchivalAgeDays:   DefaultArchivalAgeDays,
		BlockCompression:  format.CompressionNone,
	}

	if err := options.Apply(cfg, opts...); err != nil {
		return Config{}, err
	}

	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("chronodb: data_dir is required: %w", errs.ErrInvalidInput)
	}

	return *cfg, nil
}

// LoadConfigFromEnv reads the environment surface documented in spec §6:
// DATA_DIR, MEMORY_BUFFER_SIZE, FLUSH_INTERVAL_SECONDS, ARCHIVE_ENABLED,
// ARCHIVE_BUCKET, ARCHIVE_REGION, ARCHIVE_PREFIX, ARCHIVAL_AGE_DAYS. Unset
// values fall back to the package defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		DataDir:           os.Getenv("DATA_DIR"),
		MemoryBufferSize:  DefaultMemoryBufferSize,
		FlushIntervalSecs: DefaultFlushIntervalSecs,
		ArchivalAgeDays:   DefaultArchivalAgeDays,
		BlockCompression:  format.CompressionNone,
	}

	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("chronodb: DATA_DIR is required: %w", errs.ErrInvalidInput)
	}

	if v := os.Getenv("MEMORY_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("chronodb: MEMORY_BUFFER_SIZE: %w", errs.ErrInvalidInput)
		}
		cfg.MemoryBufferSize = n
	}

	if v := os.Getenv("FLUSH_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("chronodb: FLUSH_INTERVAL_SECONDS: %w", errs.ErrInvalidInput)
		}
		cfg.FlushIntervalSecs = n
	}

	if v := os.Getenv("ARCHIVE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("chronodb: ARCHIVE_ENABLED: %w", errs.ErrInvalidInput)
		}
		cfg.ArchiveEnabled = enabled
	}

	cfg.ArchiveBucket = os.Getenv("ARCHIVE_BUCKET")
	cfg.ArchiveRegion = os.Getenv("ARCHIVE_REGION")
	cfg.ArchivePrefix = os.Getenv("ARCHIVE_PREFIX")

	if v := os.Getenv("ARCHIVAL_AGE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("chronodb: ARCHIVAL_AGE_DAYS: %w", errs.ErrInvalidInput)
		}
		cfg.ArchivalAgeDays = n
	}

	if v := os.Getenv("BLOCK_COMPRESSION"); v != "" {
		ct, err := parseCompressionType(v)
		if err != nil {
			return Config{}, fmt.Errorf("chronodb: BLOCK_COMPRESSION: %w", errs.ErrInvalidInput)
		}
		cfg.BlockCompression = ct
	}

	return cfg, nil
}

func parseCompressionType(v string) (format.CompressionType, error) {
	switch strings.ToLower(v) {
	case "none":
		return format.CompressionNone, nil
	case "zstd":
		return format.CompressionZstd, nil
	case "s2":
		return format.CompressionS2, nil
	case "lz4":
		return format.CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression type %q", v)
	}
}
