// Package s2x implements S2, the Snappy extension compression format, for
// single blocks and for framed streams.
//
// Output is compatible with github.com/klauspost/compress/s2 in both
// directions, and the Snappy-compatible modes produce data any Snappy decoder
// reads.
//
// # Core Features
//
//   - Three block encoder tiers (Fast, Better, Best) sharing one decoder
//   - Snappy-compatible block and stream output
//   - Shared dictionaries for small payloads
//   - Framed streams with CRC-32C per chunk, skippable user chunks and padding
//   - Concurrent stream compression with output identical to the serial writer
//   - Seek index for random access into compressed streams
//
// # Basic Usage
//
// Compressing a single block:
//
//	compressed := s2x.Encode(nil, data)
//	original, err := s2x.Decode(nil, compressed)
//
// Compressing a stream:
//
//	w, _ := s2x.NewWriter(dst)
//	if _, err := io.Copy(w, src); err != nil {
//	    return err
//	}
//	if err := w.Close(); err != nil {
//	    return err
//	}
//
// Decompressing a stream:
//
//	r, _ := s2x.NewReader(src)
//	_, err := io.Copy(dst, r)
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the block and
// stream packages, simplifying the most common use cases. For dictionaries,
// seeking and reader options, use those packages directly.
package s2x

import (
	"fmt"
	"io"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/format"
	"github.com/arloliu/s2x/internal/options"
	"github.com/arloliu/s2x/stream"
)

var archiveWriterOptions = []stream.WriterOption{
	stream.WithLevel(format.LevelBest),
	stream.WithBlockSize(format.MaxBlockSize),
	stream.WithIndex(true),
}

var snappyWriterOptions = []stream.WriterOption{
	stream.WithSnappyCompat(),
}

// Encode returns the S2 block encoding of src at the Fast tier.
//
// dst is used if it is large enough (see MaxEncodedLen). The result is
// decodable by Decode and by klauspost/compress/s2.
func Encode(dst, src []byte) []byte {
	return block.Encode(dst, src)
}

// EncodeBetter returns the S2 block encoding of src at the Better tier.
func EncodeBetter(dst, src []byte) []byte {
	return block.EncodeBetter(dst, src)
}

// EncodeBest returns the S2 block encoding of src at the Best tier.
func EncodeBest(dst, src []byte) []byte {
	return block.EncodeBest(dst, src)
}

// EncodeSnappy returns a block that both S2 and Snappy decoders accept.
func EncodeSnappy(dst, src []byte) []byte {
	return block.EncodeSnappy(dst, src)
}

// Decode returns the decoded form of an S2 or Snappy block.
//
// Damaged input returns an error wrapping errs.ErrCorrupt and never panics.
func Decode(dst, src []byte) ([]byte, error) {
	return block.Decode(dst, src)
}

// DecodedLen returns the length of the decoded block without decoding it.
func DecodedLen(src []byte) (int, error) {
	return block.DecodedLen(src)
}

// MaxEncodedLen returns the maximum length of an encoded block of srcLen
// bytes, or -1 if srcLen is too large to encode.
func MaxEncodedLen(srcLen int) int {
	return block.MaxEncodedLen(srcLen)
}

// NewWriter creates a stream writer that compresses blocks on the calling goroutine.
//
// Available options:
//   - stream.WithLevel: Encoder tier (default format.LevelFast)
//   - stream.WithBlockSize: Uncompressed bytes per chunk (default 1 MiB)
//   - stream.WithPadding: Pad the stream to a multiple of n bytes
//   - stream.WithDict: Shared dictionary
//   - stream.WithIndex: Append a seek index on Close
//   - stream.WithSnappyCompat: Produce a Snappy framed stream
//
// Close must be called to flush buffered data and write the stream trailer.
func NewWriter(w io.Writer, opts ...stream.WriterOption) (*stream.Writer, error) {
	return stream.NewWriter(w, opts...)
}

// NewConcurrentWriter creates a stream writer that compresses blocks on up to
// stream.WithConcurrency goroutines (default GOMAXPROCS). Its output is
// byte-identical to NewWriter with the same options.
func NewConcurrentWriter(w io.Writer, opts ...stream.WriterOption) (*stream.ConcurrentWriter, error) {
	return stream.NewConcurrentWriter(w, opts...)
}

// ArchiveOptions returns the settings NewArchiveWriter applies as one option:
// Best tier, 4 MiB blocks and an appended seek index.
func ArchiveOptions() stream.WriterOption {
	return options.Join(archiveWriterOptions...)
}

// NewArchiveWriter creates a concurrent writer tuned for data that is written
// once and read many times. Additional options override the archive settings.
//
// Example:
//
//	w, err := s2x.NewArchiveWriter(f, stream.WithPadding(4096))
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
func NewArchiveWriter(w io.Writer, opts ...stream.WriterOption) (*stream.ConcurrentWriter, error) {
	allOpts := append([]stream.WriterOption{ArchiveOptions()}, opts...)
	return stream.NewConcurrentWriter(w, allOpts...)
}

// NewSnappyWriter creates a writer whose output any Snappy framed-stream
// reader accepts. Blocks are capped at 64 KiB.
func NewSnappyWriter(w io.Writer, opts ...stream.WriterOption) (*stream.Writer, error) {
	allOpts := append(append([]stream.WriterOption{}, snappyWriterOptions...), opts...)
	return stream.NewWriter(w, allOpts...)
}

// NewReader creates a stream reader. It reads S2 and Snappy framed streams.
func NewReader(r io.Reader, opts ...stream.ReaderOption) (*stream.Reader, error) {
	return stream.NewReader(r, opts...)
}

// CompressStream compresses everything from src into dst as one complete
// stream and returns the number of uncompressed bytes read.
func CompressStream(dst io.Writer, src io.Reader, opts ...stream.WriterOption) (int64, error) {
	w, err := stream.NewConcurrentWriter(dst, opts...)
	if err != nil {
		return 0, err
	}
	n, err := w.ReadFrom(src)
	if err != nil {
		_ = w.Close()
		return n, fmt.Errorf("compress stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("compress stream: %w", err)
	}

	return n, nil
}

// DecompressStream decompresses a complete stream from src into dst and
// returns the number of bytes written.
func DecompressStream(dst io.Writer, src io.Reader, opts ...stream.ReaderOption) (int64, error) {
	r, err := stream.NewReader(src, opts...)
	if err != nil {
		return 0, err
	}
	n, err := r.WriteTo(dst)
	if err != nil {
		return n, fmt.Errorf("decompress stream: %w", err)
	}

	return n, nil
}
