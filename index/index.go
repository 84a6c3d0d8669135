// Package index implements the seek index of S2 streams.
//
// An index maps uncompressed offsets to the compressed offsets of the chunks
// that contain them. It is stored as a skippable chunk of type 0x99, usually
// at the end of a stream, so that readers which do not understand it skip it:
//
//	[0x99][u24 length]["s2idx\x00"][varint fields...][u32 total size]["\x00xdi2s"]
//
// The fixed-size trailer lets a reader locate the index from the end of the
// stream with LoadStream.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/arloliu/s2x/encoding"
	"github.com/arloliu/s2x/endian"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
)

const (
	Header  = "s2idx\x00"
	Trailer = "\x00xdi2s"

	// MaxEntries is the largest number of checkpoints an index holds.
	MaxEntries = 1 << 16

	// MinDistance is the smallest uncompressed distance between checkpoints.
	MinDistance = 1 << 20

	// trailerSize is the u32 total size followed by the 6-byte trailer. It is
	// untyped so it mixes with the int64 sizes of LoadStream.
	trailerSize = 4 + 6

	// linearSearchMax is the entry count up to which Find scans linearly.
	linearSearchMax = 200
)

type entry struct {
	compressedOffset   int64
	uncompressedOffset int64
}

// Index maps uncompressed stream offsets to compressed chunk offsets.
type Index struct {
	// TotalUncompressed is the decoded size of the stream, or -1 if unknown.
	TotalUncompressed int64
	// TotalCompressed is the encoded size of the stream, or -1 if unknown.
	TotalCompressed int64

	entries        []entry
	estBlockUncomp int64
}

// New returns an empty index for streams with the given block size.
func New(maxBlock int) *Index {
	idx := &Index{}
	idx.Reset(maxBlock)

	return idx
}

// Reset clears the index and sets the expected uncompressed block size.
func (idx *Index) Reset(maxBlock int) {
	idx.estBlockUncomp = int64(maxBlock)
	idx.TotalCompressed = -1
	idx.TotalUncompressed = -1
	idx.entries = idx.entries[:0]
}

// Len returns the number of checkpoints.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Add records that the chunk starting at compressedOffset begins at
// uncompressedOffset of the decoded stream.
//
// A checkpoint at the same uncompressed offset as the previous one replaces
// it. A checkpoint closer than MinDistance to the previous one is dropped.
// Offsets smaller than the previous checkpoint's are rejected.
func (idx *Index) Add(compressedOffset, uncompressedOffset int64) error {
	if n := len(idx.entries); n > 0 {
		last := &idx.entries[n-1]
		if last.uncompressedOffset == uncompressedOffset {
			last.compressedOffset = compressedOffset
			return nil
		}
		if last.uncompressedOffset > uncompressedOffset {
			return fmt.Errorf("%w: uncompressed offset %d after %d", errs.ErrCorrupt, uncompressedOffset, last.uncompressedOffset)
		}
		if last.compressedOffset > compressedOffset {
			return fmt.Errorf("%w: compressed offset %d after %d", errs.ErrCorrupt, compressedOffset, last.compressedOffset)
		}
		if last.uncompressedOffset+MinDistance > uncompressedOffset {
			return nil
		}
	}
	idx.entries = append(idx.entries, entry{compressedOffset: compressedOffset, uncompressedOffset: uncompressedOffset})

	return nil
}

// Find returns the checkpoint at or before offset: the compressed offset of
// the chunk to start reading at and the uncompressed offset it decodes to.
//
// A negative offset counts from the end of the stream, so -1 is the last byte.
func (idx *Index) Find(offset int64) (compressedOff, uncompressedOff int64, err error) {
	if idx.TotalUncompressed < 0 {
		return 0, 0, fmt.Errorf("%w: index has no total size", errs.ErrCorrupt)
	}
	if offset < 0 {
		offset += idx.TotalUncompressed
		if offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset before start of stream", errs.ErrInvalidInput)
		}
	}
	if offset > idx.TotalUncompressed {
		return 0, 0, fmt.Errorf("%w: offset %d beyond stream of %d bytes", errs.ErrInvalidInput, offset, idx.TotalUncompressed)
	}

	if len(idx.entries) > linearSearchMax {
		n := sort.Search(len(idx.entries), func(n int) bool {
			return idx.entries[n].uncompressedOffset > offset
		})
		if n == 0 {
			n = 1
		}
		e := idx.entries[n-1]

		return e.compressedOffset, e.uncompressedOffset, nil
	}
	for _, e := range idx.entries {
		if e.uncompressedOffset > offset {
			break
		}
		compressedOff, uncompressedOff = e.compressedOffset, e.uncompressedOffset
	}

	return compressedOff, uncompressedOff, nil
}

// Reduce thins the checkpoints to fewer than MaxEntries, and to at least
// MinDistance apart while more than 1000 remain.
func (idx *Index) Reduce() {
	if len(idx.entries) < MaxEntries && idx.estBlockUncomp >= MinDistance {
		return
	}

	// Keep one entry, then skip removeN.
	removeN := (len(idx.entries) + 1) / MaxEntries
	for idx.estBlockUncomp*int64(removeN+1) < MinDistance && len(idx.entries)/(removeN+1) > 1000 {
		removeN++
	}
	j := 0
	for i := 0; i < len(idx.entries); i += removeN + 1 {
		idx.entries[j] = idx.entries[i]
		j++
	}
	idx.entries = idx.entries[:j]
	idx.estBlockUncomp += idx.estBlockUncomp * int64(removeN)
}

// AppendTo reduces the index and appends it to b as a complete index chunk,
// recording uTotal and cTotal as the stream totals.
func (idx *Index) AppendTo(b []byte, uTotal, cTotal int64) []byte {
	idx.Reduce()
	le := endian.GetLittleEndianEngine()

	start := len(b)
	b = append(b, byte(format.ChunkTypeIndex), 0, 0, 0)
	b = append(b, Header...)
	b = encoding.AppendVarint(b, uTotal)
	b = encoding.AppendVarint(b, cTotal)
	b = encoding.AppendVarint(b, idx.estBlockUncomp)
	b = encoding.AppendVarint(b, int64(len(idx.entries)))

	// Uncompressed offsets are only stored when they differ from the estimate.
	hasUncompressed := byte(0)
	for i, e := range idx.entries {
		want := int64(0)
		if i > 0 {
			want = idx.entries[i-1].uncompressedOffset + idx.estBlockUncomp
		}
		if e.uncompressedOffset != want {
			hasUncompressed = 1
			break
		}
	}
	b = append(b, hasUncompressed)
	if hasUncompressed == 1 {
		for i, e := range idx.entries {
			uOff := e.uncompressedOffset
			if i > 0 {
				uOff -= idx.entries[i-1].uncompressedOffset + idx.estBlockUncomp
			}
			b = encoding.AppendVarint(b, uOff)
		}
	}

	// Compressed offsets are stored as the error against a prediction that
	// moves by half of each error.
	cPredict := idx.estBlockUncomp / 2
	for i, e := range idx.entries {
		cOff := e.compressedOffset
		if i > 0 {
			cOff -= idx.entries[i-1].compressedOffset + cPredict
			cPredict += cOff / 2
		}
		b = encoding.AppendVarint(b, cOff)
	}

	total := len(b) - start + trailerSize
	b = le.AppendUint32(b, uint32(total)) //nolint:gosec
	b = append(b, Trailer...)

	endian.PutUint24(b[start+1:], uint32(total-format.ChunkHeaderSize)) //nolint:gosec

	return b
}

// Load parses an index chunk from the start of b and returns the bytes that
// follow it.
func (idx *Index) Load(b []byte) ([]byte, error) {
	if len(b) <= format.ChunkHeaderSize+len(Header)+trailerSize {
		return b, fmt.Errorf("%w: %d bytes cannot hold an index", errs.ErrCorrupt, len(b))
	}
	if format.ChunkType(b[0]) != format.ChunkTypeIndex {
		return b, fmt.Errorf("%w: chunk type %s is not an index", errs.ErrCorrupt, format.ChunkType(b[0]))
	}
	chunkLen := int(endian.Uint24(b[1:]))
	b = b[format.ChunkHeaderSize:]
	if len(b) < chunkLen {
		return b, fmt.Errorf("%w: index chunk of %d bytes truncated to %d", errs.ErrCorrupt, chunkLen, len(b))
	}
	rest := b[chunkLen:]
	b = b[:chunkLen]
	if len(b) < len(Header)+trailerSize || !bytes.HasPrefix(b, []byte(Header)) {
		return rest, fmt.Errorf("%w: index header", errs.ErrUnsupported)
	}
	if !bytes.HasSuffix(b, []byte(Trailer)) {
		return rest, fmt.Errorf("%w: index trailer", errs.ErrCorrupt)
	}
	le := endian.GetLittleEndianEngine()
	if total := le.Uint32(b[len(b)-trailerSize:]); int(total) != chunkLen+format.ChunkHeaderSize {
		return rest, fmt.Errorf("%w: index size %d, chunk holds %d", errs.ErrCorrupt, total, chunkLen+format.ChunkHeaderSize)
	}
	fields := &fieldReader{b: b[len(Header) : len(b)-trailerSize]}

	idx.TotalUncompressed = fields.next()
	idx.TotalCompressed = fields.next()
	idx.estBlockUncomp = fields.next()
	count := fields.next()
	if fields.err != nil {
		return rest, fields.err
	}
	if idx.TotalUncompressed < 0 || idx.TotalCompressed < -1 || idx.estBlockUncomp < 0 {
		return rest, fmt.Errorf("%w: negative index totals", errs.ErrCorrupt)
	}
	if count < 0 || count > MaxEntries {
		return rest, fmt.Errorf("%w: %d index entries", errs.ErrCorrupt, count)
	}
	if len(fields.b) == 0 || fields.b[0] > 1 {
		return rest, fmt.Errorf("%w: index offset flag", errs.ErrCorrupt)
	}
	hasUncompressed := fields.b[0] == 1
	fields.b = fields.b[1:]

	entries := make([]entry, count)
	for i := range entries {
		uOff := int64(0)
		if hasUncompressed {
			uOff = fields.next()
		}
		if i > 0 {
			prev := entries[i-1].uncompressedOffset
			uOff += prev + idx.estBlockUncomp
			if uOff <= prev {
				return rest, fmt.Errorf("%w: index uncompressed offsets not increasing", errs.ErrCorrupt)
			}
		}
		if uOff < 0 || uOff > idx.TotalUncompressed {
			return rest, fmt.Errorf("%w: index uncompressed offset %d", errs.ErrCorrupt, uOff)
		}
		entries[i].uncompressedOffset = uOff
	}

	cPredict := idx.estBlockUncomp / 2
	for i := range entries {
		cOff := fields.next()
		if i > 0 {
			nextPredict := cPredict + cOff/2
			prev := entries[i-1].compressedOffset
			cOff += prev + cPredict
			if cOff <= prev {
				return rest, fmt.Errorf("%w: index compressed offsets not increasing", errs.ErrCorrupt)
			}
			cPredict = nextPredict
		}
		if cOff < 0 {
			return rest, fmt.Errorf("%w: index compressed offset %d", errs.ErrCorrupt, cOff)
		}
		entries[i].compressedOffset = cOff
	}
	if fields.err != nil {
		return rest, fields.err
	}
	if len(fields.b) != 0 {
		return rest, fmt.Errorf("%w: %d unread index bytes", errs.ErrCorrupt, len(fields.b))
	}
	idx.entries = entries

	return rest, nil
}

// LoadStream loads the index stored at the end of rs. The read position of
// rs is left unspecified.
func (idx *Index) LoadStream(rs io.ReadSeeker) error {
	var tail [trailerSize]byte
	if _, err := rs.Seek(-trailerSize, io.SeekEnd); err != nil {
		return fmt.Errorf("%w: seek to index trailer: %w", errs.ErrUnsupported, err)
	}
	if _, err := io.ReadFull(rs, tail[:]); err != nil {
		return fmt.Errorf("read index trailer: %w", err)
	}
	if string(tail[4:]) != Trailer {
		return fmt.Errorf("%w: no index at end of stream", errs.ErrUnsupported)
	}
	size := int64(endian.GetLittleEndianEngine().Uint32(tail[:4]))
	if size > format.MaxChunkSize+format.ChunkHeaderSize || size <= trailerSize {
		return fmt.Errorf("%w: index size %d", errs.ErrCorrupt, size)
	}
	if _, err := rs.Seek(-size, io.SeekEnd); err != nil {
		return fmt.Errorf("%w: seek to index: %w", errs.ErrCorrupt, err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(rs, buf); err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	_, err := idx.Load(buf)

	return err
}

type jsonOffset struct {
	CompressedOffset   int64 `json:"compressed"`
	UncompressedOffset int64 `json:"uncompressed"`
}

// JSON returns a human readable dump of the index.
func (idx *Index) JSON() []byte {
	x := struct {
		TotalUncompressed int64        `json:"total_uncompressed"`
		TotalCompressed   int64        `json:"total_compressed"`
		EstBlockUncomp    int64        `json:"est_block_uncompressed"`
		Offsets           []jsonOffset `json:"offsets"`
	}{
		TotalUncompressed: idx.TotalUncompressed,
		TotalCompressed:   idx.TotalCompressed,
		EstBlockUncomp:    idx.estBlockUncomp,
		Offsets:           make([]jsonOffset, 0, len(idx.entries)),
	}
	for _, e := range idx.entries {
		x.Offsets = append(x.Offsets, jsonOffset{CompressedOffset: e.compressedOffset, UncompressedOffset: e.uncompressedOffset})
	}
	b, _ := json.MarshalIndent(x, "", "  ")

	return b
}

// fieldReader reads zig-zag varints and keeps the first error.
type fieldReader struct {
	b   []byte
	err error
}

func (r *fieldReader) next() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := encoding.Varint(r.b)
	if err != nil {
		r.err = fmt.Errorf("index field: %w", err)
		return 0
	}
	r.b = r.b[n:]

	return v
}
