package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
	"github.com/arloliu/s2x/index"
	"github.com/arloliu/s2x/internal/pool"
)

type writerState uint8

const (
	stateCreated writerState = iota
	stateWriting
	stateFlushed
	stateClosed
)

// framer writes framed chunks to the destination. It emits the stream
// identifier before the first chunk, counts compressed and uncompressed bytes,
// records index checkpoints and finishes the stream with padding and index.
//
// Writer and ConcurrentWriter share it so that their output is identical.
// The first write error is kept and returned by every later call.
type framer struct {
	cfg           *WriterConfig
	dst           io.Writer
	idx           index.Index
	written       int64
	uncompWritten int64
	wroteHeader   bool
	err           error
}

func (f *framer) reset(dst io.Writer) {
	f.dst = dst
	f.idx.Reset(f.cfg.blockSize)
	f.written = 0
	f.uncompWritten = 0
	f.wroteHeader = false
	f.err = nil
}

func (f *framer) write(p []byte) error {
	if f.err != nil {
		return f.err
	}
	n, err := f.dst.Write(p)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	f.written += int64(n)
	if err != nil {
		f.err = fmt.Errorf("s2: write stream: %w", err)
	}

	return f.err
}

func (f *framer) writeHeader() error {
	if f.wroteHeader {
		return f.err
	}
	f.wroteHeader = true

	return f.write([]byte(f.cfg.magic()))
}

// writeChunk writes a data chunk holding uLen uncompressed bytes.
func (f *framer) writeChunk(chunk []byte, uLen int) error {
	if err := f.writeHeader(); err != nil {
		return err
	}
	if err := f.idx.Add(f.written, f.uncompWritten); err != nil {
		f.err = err
		return err
	}
	if err := f.write(chunk); err != nil {
		return err
	}
	f.uncompWritten += int64(uLen)

	return nil
}

// writeRaw writes a chunk that carries no stream data.
func (f *framer) writeRaw(chunk []byte) error {
	if err := f.writeHeader(); err != nil {
		return err
	}

	return f.write(chunk)
}

// finish ends the stream. With buildIndex set the index chunk is built and
// returned, and it is written to the stream when the index option is on.
//
// Padding goes before the index, sized so that the stream including the index
// is a multiple of the padding. A padded index records an unknown compressed
// total.
func (f *framer) finish(buildIndex bool, scratch []byte) ([]byte, error) {
	if err := f.writeHeader(); err != nil {
		return nil, err
	}

	var idxChunk []byte
	if buildIndex {
		cTotal := f.written
		if f.cfg.padding > 1 {
			cTotal = -1
		}
		idxChunk = f.idx.AppendTo(nil, f.uncompWritten, cTotal)
	}
	appendIndex := f.cfg.index && len(idxChunk) > 0

	if f.cfg.padding > 1 {
		total := f.written
		if appendIndex {
			total += int64(len(idxChunk))
		}
		pad, err := appendPadding(scratch[:0], paddingSize(total, int64(f.cfg.padding)), f.cfg.paddingSrc)
		if err != nil {
			f.err = err
			return nil, err
		}
		if err := f.write(pad); err != nil {
			return nil, err
		}
	}
	if appendIndex {
		if err := f.write(idxChunk); err != nil {
			return nil, err
		}
	}

	return idxChunk, nil
}

// checkSkippable validates a user skippable chunk.
func checkSkippable(id format.ChunkType, data []byte) error {
	if id < format.MinUserSkippableChunk || id > format.MaxUserSkippableChunk {
		return fmt.Errorf("%w: skippable chunk type %#x outside [%#x, %#x]",
			errs.ErrInvalidInput, byte(id), byte(format.MinUserSkippableChunk), byte(format.MaxUserSkippableChunk))
	}
	if id == format.ChunkTypeIndex {
		return fmt.Errorf("%w: skippable chunk type %#x is reserved for the seek index", errs.ErrInvalidInput, byte(id))
	}
	if len(data) > format.MaxChunkSize {
		return fmt.Errorf("%w: skippable chunk of %d bytes", errs.ErrInvalidInput, len(data))
	}

	return nil
}

// Writer compresses data into the S2 stream format.
//
// Input is buffered until a full block is available; each block is written as
// one compressed chunk, or an uncompressed chunk when compression does not
// shrink it. Close must be called to write any buffered data.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	cfg   *WriterConfig
	f     framer
	enc   *block.Encoder
	buf   *pool.ByteBuffer
	out   *pool.ByteBuffer
	state writerState
}

// NewWriter returns a Writer writing the stream to dst.
func NewWriter(dst io.Writer, opts ...WriterOption) (*Writer, error) {
	cfg, err := newWriterConfig(opts...)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		cfg: cfg,
		enc: block.NewEncoder(),
	}
	w.f.cfg = cfg
	w.Reset(dst)

	return w, nil
}

// Reset discards buffered data and any error and makes the Writer write a new
// stream to dst with the same options.
func (w *Writer) Reset(dst io.Writer) {
	w.f.reset(dst)
	if w.buf == nil {
		w.buf = pool.GetBlockBuffer()
		w.out = pool.GetChunkBuffer()
	}
	w.buf.Reset()
	w.buf.Grow(w.cfg.blockSize)
	w.state = stateCreated
}

func (w *Writer) writable() error {
	if w.state == stateClosed {
		return errs.ErrClosed
	}

	return w.f.err
}

// Write buffers p and writes every block it completes.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.writable(); err != nil {
		return 0, err
	}
	w.state = stateWriting

	bs := w.cfg.blockSize
	total := 0
	for len(p) > 0 {
		// Full blocks are compressed straight from p.
		if w.buf.Len() == 0 && len(p) >= bs {
			if err := w.writeBlock(p[:bs]); err != nil {
				return total, err
			}
			p = p[bs:]
			total += bs

			continue
		}
		n := min(len(p), bs-w.buf.Len())
		w.buf.B = append(w.buf.B, p[:n]...)
		p = p[n:]
		total += n
		if w.buf.Len() == bs {
			if err := w.writeBlock(w.buf.B); err != nil {
				return total, err
			}
			w.buf.Reset()
		}
	}

	return total, nil
}

// ReadFrom reads r until EOF and writes everything read to the stream.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	if err := w.writable(); err != nil {
		return 0, err
	}
	w.state = stateWriting

	var total int64
	bs := w.cfg.blockSize
	for {
		n, err := io.ReadFull(r, w.buf.B[w.buf.Len():bs])
		w.buf.B = w.buf.B[:w.buf.Len()+n]
		total += int64(n)
		if w.buf.Len() == bs {
			if werr := w.writeBlock(w.buf.B); werr != nil {
				return total, werr
			}
			w.buf.Reset()
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func (w *Writer) writeBlock(src []byte) error {
	w.out.B = appendChunk(w.enc, w.out.B[:0], src, w.cfg)
	return w.f.writeChunk(w.out.B, len(src))
}

// Flush writes buffered data as a possibly short block.
func (w *Writer) Flush() error {
	if err := w.writable(); err != nil {
		return err
	}
	if w.buf.Len() > 0 {
		if err := w.writeBlock(w.buf.B); err != nil {
			return err
		}
		w.buf.Reset()
	}
	w.state = stateFlushed

	return nil
}

// AddSkippableBlock writes data as a skippable chunk of type id, which must be
// in the application range 0x80-0xbf other than the index type 0x99. Buffered
// data is flushed first so the chunk keeps its position relative to written
// data.
func (w *Writer) AddSkippableBlock(id format.ChunkType, data []byte) error {
	if err := checkSkippable(id, data); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.out.B = appendSkippable(w.out.B[:0], id, data)

	return w.f.writeRaw(w.out.B)
}

// Close flushes buffered data and finishes the stream, writing padding and
// the index when configured. Closing a closed Writer does nothing.
func (w *Writer) Close() error {
	_, err := w.close(false)
	return err
}

// CloseIndex closes the Writer like Close and returns the index of the stream.
// The index is also appended to the stream when the index option is on.
func (w *Writer) CloseIndex() ([]byte, error) {
	return w.close(true)
}

func (w *Writer) close(wantIndex bool) ([]byte, error) {
	if w.state == stateClosed {
		return nil, nil
	}
	err := w.Flush()
	var idx []byte
	if err == nil {
		idx, err = w.f.finish(wantIndex || w.cfg.index, w.out.B)
	}
	w.state = stateClosed
	pool.PutBlockBuffer(w.buf)
	pool.PutChunkBuffer(w.out)
	w.buf, w.out = nil, nil

	if !wantIndex {
		idx = nil
	}

	return idx, err
}

// Written returns the number of compressed bytes written to the destination
// and the number of uncompressed bytes they hold.
func (w *Writer) Written() (compressed, uncompressed int64) {
	return w.f.written, w.f.uncompWritten
}
