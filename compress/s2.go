package compress

import (
	"github.com/klauspost/compress/s2"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/format"
)

// S2Compressor compresses single S2 blocks with this module's encoders.
type S2Compressor struct {
	level format.Level
}

var _ Codec = (*S2Compressor)(nil)

// NewS2Compressor creates an S2 block codec encoding at the given level.
func NewS2Compressor(level format.Level) S2Compressor {
	return S2Compressor{level: level}
}

// Type returns the compression type of the codec's level.
func (c S2Compressor) Type() format.CompressionType {
	switch c.level {
	case format.LevelBetter:
		return format.CompressionS2Better
	case format.LevelBest:
		return format.CompressionS2Best
	default:
		return format.CompressionS2Fast
	}
}

// Compress encodes data as one S2 block. Empty input encodes to the
// one-byte empty block.
func (c S2Compressor) Compress(data []byte) ([]byte, error) {
	return block.EncodeLevel(nil, data, c.level), nil
}

// Decompress decodes one S2 or Snappy block.
func (c S2Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return block.Decode(nil, data)
}

// SnappyCompressor produces blocks that Snappy decoders accept.
type SnappyCompressor struct{}

var _ Codec = (*SnappyCompressor)(nil)

// NewSnappyCompressor creates a Snappy-compatible block codec.
func NewSnappyCompressor() SnappyCompressor {
	return SnappyCompressor{}
}

func (c SnappyCompressor) Type() format.CompressionType { return format.CompressionSnappy }

// Compress encodes data as a Snappy-compatible block.
func (c SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return block.EncodeSnappy(nil, data), nil
}

// Decompress decodes one block.
func (c SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return block.Decode(nil, data)
}

// S2RefCompressor uses the klauspost/compress S2 encoder, as a baseline for
// the S2 tiers of this module.
type S2RefCompressor struct{}

var _ Codec = (*S2RefCompressor)(nil)

// NewS2RefCompressor creates a codec backed by klauspost/compress/s2.
func NewS2RefCompressor() S2RefCompressor {
	return S2RefCompressor{}
}

func (c S2RefCompressor) Type() format.CompressionType { return format.CompressionS2Ref }

// Compress compresses the input data using S2 compression.
func (c S2RefCompressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

// Decompress decompresses the input data using S2 decompression.
func (c S2RefCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Decode(nil, data)
}
