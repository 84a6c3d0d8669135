package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/index"
)

// ReadSeeker is a Reader that seeks with a stream index.
type ReadSeeker struct {
	*Reader
	rs    io.ReadSeeker
	index *index.Index

	// mu serializes ReadAt calls.
	mu sync.Mutex
}

// ReadSeeker returns a seeking view of r. The source must implement
// io.ReadSeeker, otherwise errs.ErrCantSeek is returned.
//
// When idx is nil the index is loaded from the end of the stream and the
// source is returned to its current position.
func (r *Reader) ReadSeeker(idx []byte) (*ReadSeeker, error) {
	rs, ok := r.r.(io.ReadSeeker)
	if !ok {
		return nil, errs.ErrCantSeek
	}

	var x index.Index
	if idx != nil {
		if _, err := x.Load(idx); err != nil {
			return nil, err
		}
	} else {
		pos, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrCantSeek, err)
		}
		if err := x.LoadStream(rs); err != nil {
			return nil, err
		}
		if _, err := rs.Seek(pos, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrCantSeek, err)
		}
	}
	if x.TotalUncompressed < 0 {
		return nil, fmt.Errorf("%w: index has no uncompressed size", errs.ErrUnsupported)
	}

	return &ReadSeeker{Reader: r, rs: rs, index: &x}, nil
}

// Index returns the index used for seeking.
func (s *ReadSeeker) Index() *index.Index {
	return s.index
}

// Seek moves to an uncompressed offset of the stream. A target inside the
// current block only moves the read position. Otherwise the source is moved
// to the nearest checkpoint before the target and decoded forward from there.
func (s *ReadSeeker) Seek(offset int64, whence int) (int64, error) {
	if s.err != nil && !errors.Is(s.err, io.EOF) {
		return 0, s.err
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += s.Offset()
	case io.SeekEnd:
		offset += s.index.TotalUncompressed
	default:
		return 0, fmt.Errorf("%w: whence %d", errs.ErrInvalidInput, whence)
	}
	if offset < 0 || offset > s.index.TotalUncompressed {
		return 0, fmt.Errorf("%w: seek to %d in stream of %d bytes", errs.ErrInvalidInput, offset, s.index.TotalUncompressed)
	}

	if s.state == stateStreaming && offset >= s.blockOff && offset < s.blockOff+int64(s.j) {
		s.i = int(offset - s.blockOff)
		return offset, nil
	}

	cOff, uOff, err := s.index.Find(offset)
	if err != nil {
		return 0, err
	}
	if _, err := s.rs.Seek(cOff, io.SeekStart); err != nil {
		return 0, s.fail(fmt.Errorf("seek source: %w", err))
	}
	s.i, s.j = 0, 0
	s.blockOff = uOff
	s.err = nil
	s.state = stateStreaming
	if cOff == 0 {
		s.state = stateAwaitingStreamID
	}
	if err := s.Skip(offset - uOff); err != nil {
		return 0, err
	}

	return offset, nil
}

// ReadAt reads len(p) bytes at uncompressed offset off. Calls may run
// concurrently with each other but not with Read or Seek.
func (s *ReadSeeker) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.Reader, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	return n, err
}
