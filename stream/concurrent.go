package stream

import (
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/s2x/block"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
	"github.com/arloliu/s2x/internal/pool"
)

// blockResult is what a queued job hands to the output goroutine: a framed
// chunk, or a flush request when ack is set.
type blockResult struct {
	chunk *pool.ByteBuffer
	uLen  int
	raw   bool
	ack   chan error
}

// ConcurrentWriter compresses blocks on up to Concurrency goroutines and writes
// the chunks in input order. Its output is byte-identical to a Writer with the
// same options.
//
// Write returns once its blocks are queued. When Concurrency blocks are
// waiting to be written, Write blocks until the oldest one is written.
//
// A ConcurrentWriter is not safe for concurrent use.
type ConcurrentWriter struct {
	cfg      *WriterConfig
	encoders sync.Pool
	buf      *pool.ByteBuffer
	state    writerState

	g     *errgroup.Group
	queue chan chan blockResult
	done  chan struct{}

	// mu guards f while the output goroutine runs.
	mu sync.Mutex
	f  framer
}

// NewConcurrentWriter returns a ConcurrentWriter writing the stream to dst.
func NewConcurrentWriter(dst io.Writer, opts ...WriterOption) (*ConcurrentWriter, error) {
	cfg, err := newWriterConfig(opts...)
	if err != nil {
		return nil, err
	}
	w := &ConcurrentWriter{cfg: cfg}
	w.encoders.New = func() any { return block.NewEncoder() }
	w.f.cfg = cfg
	w.f.reset(dst)

	return w, nil
}

// Reset waits for queued blocks, discards buffered data and any error, and
// makes the writer write a new stream to dst.
func (w *ConcurrentWriter) Reset(dst io.Writer) {
	w.stop()
	if w.buf != nil {
		w.buf.Reset()
	}
	w.mu.Lock()
	w.f.reset(dst)
	w.mu.Unlock()
	w.state = stateCreated
}

func (w *ConcurrentWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.f.err
}

func (w *ConcurrentWriter) writable() error {
	if w.state == stateClosed {
		return errs.ErrClosed
	}

	return w.err()
}

// start launches the output goroutine.
func (w *ConcurrentWriter) start() {
	if w.queue != nil {
		return
	}
	w.g = &errgroup.Group{}
	w.g.SetLimit(w.cfg.concurrency)
	w.queue = make(chan chan blockResult, w.cfg.concurrency)
	w.done = make(chan struct{})
	go w.drain(w.queue, w.done)
}

// stop waits until every queued job is written and the output goroutine exits.
func (w *ConcurrentWriter) stop() {
	if w.queue == nil {
		return
	}
	close(w.queue)
	<-w.done
	_ = w.g.Wait()
	w.queue, w.done, w.g = nil, nil, nil
}

func (w *ConcurrentWriter) drain(queue chan chan blockResult, done chan struct{}) {
	defer close(done)
	for ch := range queue {
		res := <-ch
		w.mu.Lock()
		switch {
		case res.ack != nil:
			res.ack <- w.f.err
		case res.raw:
			_ = w.f.writeRaw(res.chunk.B)
		default:
			_ = w.f.writeChunk(res.chunk.B, res.uLen)
		}
		w.mu.Unlock()
		if res.chunk != nil {
			pool.PutChunkBuffer(res.chunk)
		}
	}
}

// submit queues src for compression and takes ownership of it.
func (w *ConcurrentWriter) submit(src *pool.ByteBuffer) {
	w.start()
	ch := make(chan blockResult, 1)
	w.queue <- ch

	w.g.Go(func() error {
		enc, _ := w.encoders.Get().(*block.Encoder)
		out := pool.GetChunkBuffer()
		out.B = appendChunk(enc, out.B[:0], src.B, w.cfg)
		w.encoders.Put(enc)

		ch <- blockResult{chunk: out, uLen: src.Len()}
		pool.PutBlockBuffer(src)

		return nil
	})
}

// enqueue queues a result that needs no compression.
func (w *ConcurrentWriter) enqueue(res blockResult) {
	w.start()
	ch := make(chan blockResult, 1)
	ch <- res
	w.queue <- ch
}

func (w *ConcurrentWriter) pending() *pool.ByteBuffer {
	if w.buf == nil {
		w.buf = pool.GetBlockBuffer()
		w.buf.Grow(w.cfg.blockSize)
	}

	return w.buf
}

// submitPending queues the buffered partial block, if any.
func (w *ConcurrentWriter) submitPending() {
	if w.buf == nil || w.buf.Len() == 0 {
		return
	}
	w.submit(w.buf)
	w.buf = nil
}

// Write copies p into blocks and queues every block it completes.
func (w *ConcurrentWriter) Write(p []byte) (int, error) {
	if err := w.writable(); err != nil {
		return 0, err
	}
	w.state = stateWriting

	bs := w.cfg.blockSize
	total := 0
	for len(p) > 0 {
		buf := w.pending()
		n := min(len(p), bs-buf.Len())
		buf.B = append(buf.B, p[:n]...)
		p = p[n:]
		total += n
		if buf.Len() == bs {
			w.submitPending()
		}
	}

	return total, w.err()
}

// ReadFrom reads r until EOF and writes everything read to the stream.
func (w *ConcurrentWriter) ReadFrom(r io.Reader) (int64, error) {
	if err := w.writable(); err != nil {
		return 0, err
	}
	w.state = stateWriting

	var total int64
	bs := w.cfg.blockSize
	for {
		buf := w.pending()
		n, err := io.ReadFull(r, buf.B[buf.Len():bs])
		buf.B = buf.B[:buf.Len()+n]
		total += int64(n)
		if buf.Len() == bs {
			w.submitPending()
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return total, w.err()
		}
		if err != nil {
			return total, err
		}
		if err := w.err(); err != nil {
			return total, err
		}
	}
}

// Flush queues buffered data as a possibly short block and waits until every
// queued block is written.
func (w *ConcurrentWriter) Flush() error {
	if err := w.writable(); err != nil {
		return err
	}
	w.submitPending()
	w.state = stateFlushed
	if w.queue == nil {
		return nil
	}
	ack := make(chan error, 1)
	w.enqueue(blockResult{ack: ack})

	return <-ack
}

// AddSkippableBlock writes data as a skippable chunk of type id, which must be
// in the application range 0x80-0xbf other than the index type 0x99. It is
// written after all data written so far.
func (w *ConcurrentWriter) AddSkippableBlock(id format.ChunkType, data []byte) error {
	if err := checkSkippable(id, data); err != nil {
		return err
	}
	if err := w.writable(); err != nil {
		return err
	}
	w.submitPending()
	out := pool.GetChunkBuffer()
	out.B = appendSkippable(out.B[:0], id, data)
	w.enqueue(blockResult{chunk: out, raw: true})

	return nil
}

// Close writes all queued data and finishes the stream, writing padding and
// the index when configured. Closing a closed writer does nothing.
func (w *ConcurrentWriter) Close() error {
	_, err := w.close(false)
	return err
}

// CloseIndex closes the writer like Close and returns the index of the stream.
// The index is also appended to the stream when the index option is on.
func (w *ConcurrentWriter) CloseIndex() ([]byte, error) {
	return w.close(true)
}

func (w *ConcurrentWriter) close(wantIndex bool) ([]byte, error) {
	if w.state == stateClosed {
		return nil, nil
	}
	w.submitPending()
	w.stop()
	w.state = stateClosed
	pool.PutBlockBuffer(w.buf)
	w.buf = nil

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f.err != nil {
		return nil, w.f.err
	}
	scratch := pool.GetChunkBuffer()
	defer pool.PutChunkBuffer(scratch)

	idx, err := w.f.finish(wantIndex || w.cfg.index, scratch.B)
	if !wantIndex {
		idx = nil
	}

	return idx, err
}

// Written returns the number of compressed bytes written to the destination
// and the number of uncompressed bytes they hold. Queued blocks are counted
// once they are written.
func (w *ConcurrentWriter) Written() (compressed, uncompressed int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.f.written, w.f.uncompWritten
}
