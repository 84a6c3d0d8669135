package stream

import (
	"fmt"
	"io"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
	"github.com/arloliu/s2x/internal/options"
)

// SkippableFunc receives the body of a skippable chunk. Bytes it leaves
// unread are discarded.
type SkippableFunc func(r io.Reader) error

// ReaderConfig holds the settings of a Reader.
type ReaderConfig struct {
	maxBlock       int
	ignoreStreamID bool
	ignoreCRC      bool
	dict           *block.Dict
	skippable      map[format.ChunkType]SkippableFunc
}

// ReaderOption configures a Reader.
type ReaderOption = options.Option[*ReaderConfig]

func newReaderConfig(opts ...ReaderOption) (*ReaderConfig, error) {
	cfg := &ReaderConfig{maxBlock: format.MaxBlockSize}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MaxBlockSize returns the largest decoded block the Reader accepts.
func (c *ReaderConfig) MaxBlockSize() int { return c.maxBlock }

// WithMaxBlockSize bounds the decoded size of a block and with it the memory a
// Reader allocates. Chunks that declare more are rejected as corrupt before
// they are read. Snappy streams need no more than 64KiB.
func WithMaxBlockSize(n int) ReaderOption {
	return options.New(func(c *ReaderConfig) error {
		if n < 1 || n > format.MaxBlockSize {
			return fmt.Errorf("%w: max block size %d outside [1, %d]", errs.ErrInvalidInput, n, format.MaxBlockSize)
		}
		c.maxBlock = n

		return nil
	})
}

// WithIgnoreStreamIdentifier lets a stream start without a stream identifier,
// for input that was forwarded past it, and accepts identifiers in the middle
// of the stream, as found in concatenated streams.
func WithIgnoreStreamIdentifier() ReaderOption {
	return options.NoError(func(c *ReaderConfig) {
		c.ignoreStreamID = true
	})
}

// WithIgnoreCRC skips checksum verification of data chunks.
func WithIgnoreCRC() ReaderOption {
	return options.NoError(func(c *ReaderConfig) {
		c.ignoreCRC = true
	})
}

// WithReaderDict decodes every block with d as history.
func WithReaderDict(d *block.Dict) ReaderOption {
	return options.NoError(func(c *ReaderConfig) {
		c.dict = d
	})
}

// WithSkippableCB calls fn with the body of every skippable chunk of type id,
// which must be in 0x80-0xfd. A nil fn removes the callback.
func WithSkippableCB(id format.ChunkType, fn SkippableFunc) ReaderOption {
	return options.New(func(c *ReaderConfig) error {
		if !id.Skippable() || id == format.ChunkTypePadding {
			return fmt.Errorf("%w: chunk type %#x is not skippable", errs.ErrInvalidInput, byte(id))
		}
		if fn == nil {
			delete(c.skippable, id)
			return nil
		}
		if c.skippable == nil {
			c.skippable = make(map[format.ChunkType]SkippableFunc)
		}
		c.skippable[id] = fn

		return nil
	})
}
