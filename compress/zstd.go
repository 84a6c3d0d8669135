package compress

import "github.com/arloliu/s2x/format"

// ZstdCompressor provides Zstandard compression as a ratio-oriented baseline
// for the S2 tiers.
//
// The default build uses the pure Go klauspost/compress/zstd package. Building
// with the gozstd tag (and cgo enabled) switches to the libzstd binding.
//
// Performance characteristics:
//   - Compression: several times slower than S2 Fast
//   - Decompression: ~2-5 ns/byte
//   - Compression ratio: usually better than S2 Best on text
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
//
// Example:
//
//	compressor := NewZstdCompressor()
//	compressed, err := compressor.Compress(data)
//	if err != nil {
//		return err
//	}
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}

func (c ZstdCompressor) Type() format.CompressionType { return format.CompressionZstd }
