package stream

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/encoding"
	"github.com/arloliu/s2x/endian"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
)

type readerState uint8

const (
	stateAwaitingStreamID readerState = iota
	stateStreaming
	stateExhausted
	stateFailed
)

// Reader decompresses an S2 or Snappy stream.
//
// Every data chunk is checked against its checksum before any of its bytes
// are returned. The first corrupt chunk puts the Reader in a failed state in
// which every call returns the same error until Reset.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	cfg *ReaderConfig
	r   io.Reader
	dec *block.Decoder

	hdr     [format.ChunkHeaderSize]byte
	buf     []byte
	decoded []byte
	i, j    int

	// blockOff is the uncompressed stream offset of decoded[0].
	blockOff int64

	state readerState
	err   error
}

// NewReader returns a Reader decompressing the stream read from src.
func NewReader(src io.Reader, opts ...ReaderOption) (*Reader, error) {
	cfg, err := newReaderConfig(opts...)
	if err != nil {
		return nil, err
	}
	decOpts := []block.DecoderOption{block.WithMaxDecodedLen(cfg.maxBlock)}
	if cfg.dict != nil {
		decOpts = append(decOpts, block.WithDict(cfg.dict))
	}
	dec, err := block.NewDecoder(decOpts...)
	if err != nil {
		return nil, err
	}

	r := &Reader{cfg: cfg, dec: dec}
	r.Reset(src)

	return r, nil
}

// Reset discards buffered data and any error and makes the Reader read a new
// stream from src. Buffers are kept.
func (r *Reader) Reset(src io.Reader) {
	r.r = src
	r.i, r.j = 0, 0
	r.blockOff = 0
	r.state = stateAwaitingStreamID
	r.err = nil
}

func (r *Reader) fail(err error) error {
	r.state = stateFailed
	r.err = err

	return err
}

// readFull fills p from the source. A stream that ends inside a chunk is corrupt.
func (r *Reader) readFull(p []byte) error {
	if _, err := io.ReadFull(r.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return r.fail(fmt.Errorf("%w: truncated chunk", errs.ErrCorrupt))
		}

		return r.fail(err)
	}

	return nil
}

func (r *Reader) skipBytes(n int) error {
	if _, err := io.CopyN(io.Discard, r.r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			return r.fail(fmt.Errorf("%w: truncated chunk", errs.ErrCorrupt))
		}

		return r.fail(err)
	}

	return nil
}

// nextBlock reads chunks until one holds data and decodes it into r.decoded.
// It returns io.EOF when the stream ends cleanly between chunks.
func (r *Reader) nextBlock() error {
	if r.err != nil {
		return r.err
	}
	r.blockOff += int64(r.j)
	r.i, r.j = 0, 0

	for {
		n, err := io.ReadFull(r.r, r.hdr[:])
		if err != nil {
			if errors.Is(err, io.EOF) && n == 0 {
				r.state = stateExhausted
				r.err = io.EOF

				return io.EOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return r.fail(fmt.Errorf("%w: truncated chunk header", errs.ErrCorrupt))
			}

			return r.fail(err)
		}
		chunkType := format.ChunkType(r.hdr[0])
		chunkLen := int(endian.Uint24(r.hdr[1:]))

		if r.state == stateAwaitingStreamID {
			if chunkType != format.ChunkTypeStreamIdentifier && !r.cfg.ignoreStreamID {
				return r.fail(fmt.Errorf("%w: stream does not start with an identifier", errs.ErrCorrupt))
			}
			r.state = stateStreaming
		} else if chunkType == format.ChunkTypeStreamIdentifier && !r.cfg.ignoreStreamID {
			return r.fail(fmt.Errorf("%w: stream identifier inside stream", errs.ErrCorrupt))
		}

		switch {
		case chunkType == format.ChunkTypeCompressedData:
			return r.readCompressed(chunkLen)
		case chunkType == format.ChunkTypeUncompressedData:
			return r.readUncompressed(chunkLen)
		case chunkType == format.ChunkTypeStreamIdentifier:
			if err := r.readIdentifier(chunkLen); err != nil {
				return err
			}
		case chunkType.Skippable():
			if err := r.readSkippable(chunkType, chunkLen); err != nil {
				return err
			}
		default:
			return r.fail(fmt.Errorf("%w: reserved chunk type %#x", errs.ErrUnsupported, byte(chunkType)))
		}
	}
}

func (r *Reader) readIdentifier(chunkLen int) error {
	if chunkLen != len(format.MagicBody) {
		return r.fail(fmt.Errorf("%w: stream identifier of %d bytes", errs.ErrCorrupt, chunkLen))
	}
	var magic [len(format.MagicBody)]byte
	if err := r.readFull(magic[:]); err != nil {
		return err
	}
	if m := string(magic[:]); m != format.MagicBody && m != format.MagicBodySnappy {
		return r.fail(fmt.Errorf("%w: stream identifier %q", errs.ErrCorrupt, m))
	}

	return nil
}

func (r *Reader) readSkippable(chunkType format.ChunkType, chunkLen int) error {
	fn := r.cfg.skippable[chunkType]
	if fn == nil {
		return r.skipBytes(chunkLen)
	}
	lr := &io.LimitedReader{R: r.r, N: int64(chunkLen)}
	if err := fn(lr); err != nil {
		return r.fail(fmt.Errorf("skippable chunk %#x: %w", byte(chunkType), err))
	}

	return r.skipBytes(int(lr.N))
}

func (r *Reader) checkLen(chunkLen int) error {
	if chunkLen < format.ChecksumSize {
		return r.fail(fmt.Errorf("%w: data chunk of %d bytes", errs.ErrCorrupt, chunkLen))
	}
	if chunkLen > maxChunkLen(r.cfg.maxBlock) {
		return r.fail(fmt.Errorf("%w: data chunk of %d bytes exceeds block limit %d",
			errs.ErrCorrupt, chunkLen, r.cfg.maxBlock))
	}

	return nil
}

func (r *Reader) readCompressed(chunkLen int) error {
	if err := r.checkLen(chunkLen); err != nil {
		return err
	}
	r.buf = slices.Grow(r.buf[:0], chunkLen)[:chunkLen]
	if err := r.readFull(r.buf); err != nil {
		return err
	}
	checksum := endian.GetLittleEndianEngine().Uint32(r.buf)
	body := r.buf[format.ChecksumSize:]

	n, err := r.dec.DecodedLen(body)
	if err != nil {
		if errors.Is(err, errs.ErrTooLarge) {
			err = fmt.Errorf("%w: %w", errs.ErrCorrupt, err)
		}

		return r.fail(err)
	}
	r.decoded = slices.Grow(r.decoded[:0], n)[:n]
	if _, err := r.dec.DecodeInto(r.decoded, body); err != nil {
		return r.fail(err)
	}

	return r.verify(checksum)
}

func (r *Reader) readUncompressed(chunkLen int) error {
	if err := r.checkLen(chunkLen); err != nil {
		return err
	}
	n := chunkLen - format.ChecksumSize
	if n > r.cfg.maxBlock {
		return r.fail(fmt.Errorf("%w: uncompressed block of %d bytes exceeds limit %d", errs.ErrCorrupt, n, r.cfg.maxBlock))
	}
	var sum [format.ChecksumSize]byte
	if err := r.readFull(sum[:]); err != nil {
		return err
	}
	r.decoded = slices.Grow(r.decoded[:0], n)[:n]
	if err := r.readFull(r.decoded); err != nil {
		return err
	}

	return r.verify(endian.GetLittleEndianEngine().Uint32(sum[:]))
}

func (r *Reader) verify(checksum uint32) error {
	if !r.cfg.ignoreCRC && encoding.CRC(r.decoded) != checksum {
		r.decoded = r.decoded[:0]
		return r.fail(errs.ErrCRC)
	}
	r.j = len(r.decoded)

	return nil
}

// Read reads decompressed data into p.
func (r *Reader) Read(p []byte) (int, error) {
	for r.i >= r.j {
		if err := r.nextBlock(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.decoded[r.i:r.j])
	r.i += n

	return n, nil
}

// ReadByte returns the next decompressed byte.
func (r *Reader) ReadByte() (byte, error) {
	for r.i >= r.j {
		if err := r.nextBlock(); err != nil {
			return 0, err
		}
	}
	c := r.decoded[r.i]
	r.i++

	return c, nil
}

// WriteTo writes the rest of the decompressed stream to w.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		if r.i < r.j {
			n, err := w.Write(r.decoded[r.i:r.j])
			total += int64(n)
			r.i += n
			if err != nil {
				return total, err
			}
			if r.i < r.j {
				return total, io.ErrShortWrite
			}
		}
		if err := r.nextBlock(); err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}

			return total, err
		}
	}
}

// Skip discards the next n decompressed bytes. Skipped blocks are still
// decoded and verified. It returns io.ErrUnexpectedEOF if the stream ends first.
func (r *Reader) Skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: negative skip %d", errs.ErrInvalidInput, n)
	}
	for n > 0 {
		if r.i >= r.j {
			if err := r.nextBlock(); err != nil {
				if errors.Is(err, io.EOF) {
					return io.ErrUnexpectedEOF
				}

				return err
			}

			continue
		}
		k := min(n, int64(r.j-r.i))
		r.i += int(k)
		n -= k
	}

	return nil
}

// Offset returns the number of decompressed bytes consumed from the stream.
func (r *Reader) Offset() int64 {
	return r.blockOff + int64(r.i)
}
