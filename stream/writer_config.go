package stream

import (
	"fmt"
	"io"
	"runtime"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
	"github.com/arloliu/s2x/internal/options"
)

// WriterConfig holds the settings shared by Writer and ConcurrentWriter.
type WriterConfig struct {
	blockSize   int
	level       format.Level
	padding     int
	paddingSrc  io.Reader
	dict        *block.Dict
	index       bool
	snappy      bool
	concurrency int
}

// WriterOption configures a Writer or ConcurrentWriter.
type WriterOption = options.Option[*WriterConfig]

func newWriterConfig(opts ...WriterOption) (*WriterConfig, error) {
	cfg := &WriterConfig{
		blockSize:   format.DefaultBlockSize,
		level:       format.LevelFast,
		concurrency: runtime.GOMAXPROCS(0),
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.snappy {
		if cfg.dict != nil {
			return nil, fmt.Errorf("%w: dictionaries cannot be used with snappy output", errs.ErrInvalidInput)
		}
		cfg.blockSize = min(cfg.blockSize, format.SnappyBlockSize)
	}
	if cfg.paddingSrc == nil {
		cfg.paddingSrc = zeroReader{}
	}

	return cfg, nil
}

// magic returns the stream identifier chunk.
func (c *WriterConfig) magic() string {
	if c.snappy {
		return format.MagicChunkSnap
	}

	return format.MagicChunk
}

// BlockSize returns the uncompressed size of each block.
func (c *WriterConfig) BlockSize() int { return c.blockSize }

// Level returns the compression level.
func (c *WriterConfig) Level() format.Level { return c.level }

// Concurrency returns the number of blocks compressed in parallel by a ConcurrentWriter.
func (c *WriterConfig) Concurrency() int { return c.concurrency }

// WithBlockSize sets the uncompressed block size, between 4KiB and 4MiB.
// Snappy-compatible output caps the block size at 64KiB.
func WithBlockSize(n int) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if n < format.MinBlockSize || n > format.MaxBlockSize {
			return fmt.Errorf("%w: block size %d outside [%d, %d]",
				errs.ErrInvalidInput, n, format.MinBlockSize, format.MaxBlockSize)
		}
		c.blockSize = n

		return nil
	})
}

// WithLevel sets the compression level of every block.
func WithLevel(level format.Level) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if !level.Valid() {
			return fmt.Errorf("%w: compression level %d", errs.ErrInvalidInput, level)
		}
		c.level = level

		return nil
	})
}

// WithPadding pads the stream at Close with a padding chunk so that its total
// size, index included, is a multiple of n. Values below 2 disable padding.
func WithPadding(n int) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if n > format.MaxBlockSize {
			return fmt.Errorf("%w: padding %d above %d", errs.ErrInvalidInput, n, format.MaxBlockSize)
		}
		c.padding = max(n, 0)

		return nil
	})
}

// WithPaddingSource sets where padding bytes are read from. Padding is zero
// bytes by default.
func WithPaddingSource(r io.Reader) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if r == nil {
			return fmt.Errorf("%w: nil padding source", errs.ErrInvalidInput)
		}
		c.paddingSrc = r

		return nil
	})
}

// WithDict compresses every block with d as history. The stream must be read
// with the same dictionary.
func WithDict(d *block.Dict) WriterOption {
	return options.NoError(func(c *WriterConfig) {
		c.dict = d
	})
}

// WithIndex controls whether Close appends a seek index chunk to the stream.
func WithIndex(enabled bool) WriterOption {
	return options.NoError(func(c *WriterConfig) {
		c.index = enabled
	})
}

// WithSnappyCompat writes a stream that Snappy framing readers accept: a
// Snappy stream identifier, blocks of at most 64KiB and no repeat codes.
func WithSnappyCompat() WriterOption {
	return options.NoError(func(c *WriterConfig) {
		c.snappy = true
	})
}

// WithConcurrency sets how many blocks a ConcurrentWriter compresses in
// parallel. It also bounds how many blocks may wait to be written.
func WithConcurrency(n int) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if n < 1 {
			return fmt.Errorf("%w: concurrency %d", errs.ErrInvalidInput, n)
		}
		c.concurrency = n

		return nil
	})
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
