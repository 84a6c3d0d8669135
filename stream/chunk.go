package stream

import (
	"fmt"
	"io"
	"slices"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/encoding"
	"github.com/arloliu/s2x/endian"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
)

// chunkOverhead is the chunk header plus the checksum of a data chunk.
const chunkOverhead = format.ChunkHeaderSize + format.ChecksumSize

// maxChunkLen returns the largest data chunk body a block of blockSize bytes
// may produce, checksum included.
func maxChunkLen(blockSize int) int {
	return block.MaxEncodedLen(blockSize) + format.ChecksumSize
}

// appendChunk frames src as one data chunk and appends it to dst.
//
// The block is stored uncompressed when the encoder cannot shrink it.
func appendChunk(enc *block.Encoder, dst, src []byte, cfg *WriterConfig) []byte {
	start := len(dst)
	need := chunkOverhead + block.MaxEncodedLen(len(src))
	dst = slices.Grow(dst, need)[:start+need]
	out := dst[start:]

	le := endian.GetLittleEndianEngine()
	le.PutUint32(out[format.ChunkHeaderSize:], encoding.CRC(src))

	chunkType := format.ChunkTypeCompressedData
	n := enc.EncodeBlock(out[chunkOverhead:], src, cfg.level, cfg.dict, cfg.snappy)
	if n == 0 {
		chunkType = format.ChunkTypeUncompressedData
		n = copy(out[chunkOverhead:], src)
	}
	out[0] = byte(chunkType)
	endian.PutUint24(out[1:], uint32(n+format.ChecksumSize)) //nolint:gosec

	return dst[:start+chunkOverhead+n]
}

// appendSkippable appends data as a skippable chunk of the given type.
func appendSkippable(dst []byte, id format.ChunkType, data []byte) []byte {
	dst = append(dst, byte(id))
	dst = endian.AppendUint24(dst, uint32(len(data))) //nolint:gosec

	return append(dst, data...)
}

// paddingSize returns the size of the padding chunk that makes written a
// multiple of multiple, or 0 when it already is. A padding chunk is never
// shorter than its header.
func paddingSize(written, multiple int64) int {
	if multiple <= 1 {
		return 0
	}
	leftOver := written % multiple
	if leftOver == 0 {
		return 0
	}
	toAdd := multiple - leftOver
	for toAdd < format.ChunkHeaderSize {
		toAdd += multiple
	}

	return int(toAdd)
}

// appendPadding appends a padding chunk of exactly total bytes, header
// included, filled from r.
func appendPadding(dst []byte, total int, r io.Reader) ([]byte, error) {
	if total == 0 {
		return dst, nil
	}
	if total < format.ChunkHeaderSize || total-format.ChunkHeaderSize > format.MaxChunkSize {
		return dst, fmt.Errorf("%w: padding chunk of %d bytes", errs.ErrInvalidInput, total)
	}
	dst = append(dst, byte(format.ChunkTypePadding))
	dst = endian.AppendUint24(dst, uint32(total-format.ChunkHeaderSize)) //nolint:gosec

	start := len(dst)
	dst = slices.Grow(dst, total-format.ChunkHeaderSize)[:start+total-format.ChunkHeaderSize]
	if _, err := io.ReadFull(r, dst[start:]); err != nil {
		return dst[:start-format.ChunkHeaderSize], fmt.Errorf("read padding: %w", err)
	}

	return dst, nil
}
