// Package compress provides one-shot block codecs behind a common interface,
// so that the S2 tiers of this module can be measured against each other and
// against the algorithms they usually replace.
//
// # Overview
//
// Every codec compresses a complete payload in one call. There is no framing
// and no checksum; use the stream package for that. The supported algorithms
// are identified by format.CompressionType:
//   - None: no compression (baseline)
//   - S2Fast, S2Better, S2Best: S2 blocks from this module's encoders
//   - Snappy: Snappy-compatible blocks from this module's encoder
//   - S2Ref: the klauspost/compress S2 encoder
//   - LZ4: raw LZ4 blocks (pierrec/lz4)
//   - Zstd: Zstandard frames (klauspost/compress/zstd, or gozstd with the gozstd build tag)
//
// # Architecture
//
// The package defines three core interfaces:
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	    Type() format.CompressionType
//	}
//
// Codecs are obtained from GetCodec, which returns shared instances, or from
// CreateCodec. All built-in codecs are safe for concurrent use.
//
// # Measuring
//
// Measure runs one round trip and reports sizes and timings:
//
//	for _, ct := range []format.CompressionType{format.CompressionS2Fast, format.CompressionS2Best, format.CompressionZstd} {
//	    codec, _ := compress.GetCodec(ct)
//	    stats, err := compress.Measure(codec, payload)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Printf("%-10s ratio %.3f  %.0f MB/s\n", ct, stats.CompressionRatio(), stats.CompressionThroughput())
//	}
//
// A round trip that does not reproduce the input is reported as errs.ErrCorrupt.
//
// # Algorithm Selection Guide
//
// | Workload Type          | Recommended | Reason                              |
// |------------------------|-------------|-------------------------------------|
// | Hot path, large inputs | S2Fast      | Highest throughput                  |
// | Write once, read often | S2Best      | Best S2 ratio, same decode speed    |
// | Snappy consumers       | Snappy      | Readable by any Snappy decoder      |
// | Storage-constrained    | Zstd        | Best ratio, slower                  |
// | Incompressible data    | None        | No CPU spent                        |
//
// # Error Handling
//
// Decompression of damaged or foreign input returns an error, never wrong
// output. The S2 and Snappy codecs report errs.ErrCorrupt; LZ4 reports
// errs.ErrCorrupt, or errs.ErrTooLarge when the output would exceed 128 MiB.
package compress
