package index

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/endian"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
)

// IndexStream reads a complete S2 or Snappy stream from r and returns an
// index chunk describing it. The first data chunk sets the block size estimate.
func IndexStream(r io.Reader) ([]byte, error) {
	var idx Index
	idx.TotalCompressed, idx.TotalUncompressed = 0, 0

	buf := make([]byte, format.MaxChunkSize)
	seenIdentifier := false
	for {
		if _, err := io.ReadFull(r, buf[:format.ChunkHeaderSize]); err != nil {
			if errors.Is(err, io.EOF) {
				return idx.AppendTo(nil, idx.TotalUncompressed, idx.TotalCompressed), nil
			}

			return nil, fmt.Errorf("%w: chunk header: %w", errs.ErrCorrupt, err)
		}
		chunkStart := idx.TotalCompressed
		chunkType := format.ChunkType(buf[0])
		chunkLen := int(endian.Uint24(buf[1:]))
		idx.TotalCompressed += int64(format.ChunkHeaderSize + chunkLen)

		if !seenIdentifier {
			if chunkType != format.ChunkTypeStreamIdentifier {
				return nil, fmt.Errorf("%w: stream does not start with an identifier", errs.ErrCorrupt)
			}
			seenIdentifier = true
		}
		if _, err := io.ReadFull(r, buf[:chunkLen]); err != nil {
			return nil, fmt.Errorf("%w: chunk body: %w", errs.ErrCorrupt, err)
		}
		body := buf[:chunkLen]

		var dLen int
		switch {
		case chunkType == format.ChunkTypeCompressedData:
			if chunkLen < format.ChecksumSize {
				return nil, fmt.Errorf("%w: short compressed chunk", errs.ErrCorrupt)
			}
			n, err := block.DecodedLen(body[format.ChecksumSize:])
			if err != nil {
				return nil, err
			}
			dLen = n
		case chunkType == format.ChunkTypeUncompressedData:
			if chunkLen < format.ChecksumSize {
				return nil, fmt.Errorf("%w: short uncompressed chunk", errs.ErrCorrupt)
			}
			dLen = chunkLen - format.ChecksumSize
		case chunkType == format.ChunkTypeStreamIdentifier:
			if magic := string(body); magic != format.MagicBody && magic != format.MagicBodySnappy {
				return nil, fmt.Errorf("%w: stream identifier %q", errs.ErrCorrupt, magic)
			}

			continue
		case chunkType.Skippable():
			continue
		default:
			return nil, fmt.Errorf("%w: chunk type %s", errs.ErrUnsupported, chunkType)
		}

		if dLen > format.MaxBlockSize {
			return nil, fmt.Errorf("%w: block of %d bytes", errs.ErrCorrupt, dLen)
		}
		if idx.estBlockUncomp == 0 {
			idx.estBlockUncomp = int64(dLen)
		}
		if err := idx.Add(chunkStart, idx.TotalUncompressed); err != nil {
			return nil, err
		}
		idx.TotalUncompressed += int64(dLen)
	}
}
