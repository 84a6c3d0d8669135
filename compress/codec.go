package compress

import (
	"bytes"
	"fmt"
	"time"

	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
)

// Compressor compresses a complete payload in one call.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
//   - Internal buffers may be reused for efficiency
type Compressor interface {
	// Compress compresses the input data and returns the compressed result.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor of the same algorithm.
//
// Example:
//
//	codec, _ := GetCodec(format.CompressionS2Better)
//	originalData, err := codec.Decompress(compressedPayload)
//	if err != nil {
//	    return fmt.Errorf("decompression failed: %w", err)
//	}
//
// Thread Safety: all built-in implementations are safe for concurrent use.
type Decompressor interface {
	// Decompress decompresses the input data and returns the original result.
	//
	// Input that was not produced by the matching compressor, or that was
	// damaged, is reported as an error and never as silently wrong output.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor

	// Type identifies the algorithm.
	Type() format.CompressionType
}

// CompressionStats describes one compression round trip, so that the S2
// tiers can be compared with each other and with other algorithms.
type CompressionStats struct {
	// Algorithm identifies the compression algorithm used
	Algorithm format.CompressionType

	// OriginalSize is the size of input data before compression
	OriginalSize int64

	// CompressedSize is the size of data after compression
	CompressedSize int64

	// CompressionTimeNs is the time taken to compress the data
	CompressionTimeNs int64

	// DecompressionTimeNs is the time taken to decompress the data
	DecompressionTimeNs int64
}

// CompressionRatio returns the compression ratio (compressed size / original size).
//
// Values less than 1.0 indicate successful compression.
// Returns 0.0 if original size is zero.
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the space savings as a percentage (0-100%).
func (s CompressionStats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}

// CompressionThroughput returns the compression speed in MB/s of input.
func (s CompressionStats) CompressionThroughput() float64 {
	return throughput(s.OriginalSize, s.CompressionTimeNs)
}

// DecompressionThroughput returns the decompression speed in MB/s of output.
func (s CompressionStats) DecompressionThroughput() float64 {
	return throughput(s.OriginalSize, s.DecompressionTimeNs)
}

func throughput(size, ns int64) float64 {
	if ns <= 0 {
		return 0
	}

	return float64(size) / 1e6 / (float64(ns) / 1e9)
}

// Measure compresses and decompresses data with codec and reports sizes and
// timings. A round trip that does not reproduce data is an errs.ErrCorrupt error.
func Measure(codec Codec, data []byte) (CompressionStats, error) {
	stats := CompressionStats{
		Algorithm:    codec.Type(),
		OriginalSize: int64(len(data)),
	}

	start := time.Now()
	compressed, err := codec.Compress(data)
	stats.CompressionTimeNs = time.Since(start).Nanoseconds()
	if err != nil {
		return stats, fmt.Errorf("%s compress: %w", codec.Type(), err)
	}
	stats.CompressedSize = int64(len(compressed))

	start = time.Now()
	decompressed, err := codec.Decompress(compressed)
	stats.DecompressionTimeNs = time.Since(start).Nanoseconds()
	if err != nil {
		return stats, fmt.Errorf("%s decompress: %w", codec.Type(), err)
	}
	if !bytes.Equal(data, decompressed) {
		return stats, fmt.Errorf("%w: %s round trip differs", errs.ErrCorrupt, codec.Type())
	}

	return stats, nil
}

// CreateCodec is a factory function that creates a Codec based on the specified compression type.
//
// Parameters:
//   - compressionType: Type of compression
//   - target: Description of target usage (for error messages)
//
// Returns:
//   - Codec: Codec instance for the specified type
//   - error: Invalid compression type error
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2Ref:
		return NewS2RefCompressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	case format.CompressionS2Fast:
		return NewS2Compressor(format.LevelFast), nil
	case format.CompressionS2Better:
		return NewS2Compressor(format.LevelBetter), nil
	case format.CompressionS2Best:
		return NewS2Compressor(format.LevelBest), nil
	case format.CompressionSnappy:
		return NewSnappyCompressor(), nil
	default:
		return nil, fmt.Errorf("%w: %s compression %s", errs.ErrInvalidInput, target, compressionType)
	}
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone:     NewNoOpCompressor(),
	format.CompressionZstd:     NewZstdCompressor(),
	format.CompressionS2Ref:    NewS2RefCompressor(),
	format.CompressionLZ4:      NewLZ4Compressor(),
	format.CompressionS2Fast:   NewS2Compressor(format.LevelFast),
	format.CompressionS2Better: NewS2Compressor(format.LevelBetter),
	format.CompressionS2Best:   NewS2Compressor(format.LevelBest),
	format.CompressionSnappy:   NewSnappyCompressor(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: unsupported compression type %s", errs.ErrUnsupported, compressionType)
}
