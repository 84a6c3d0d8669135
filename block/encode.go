package block

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/arloliu/s2x/encoding"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
)

const (
	tagLiteral = 0x00
	tagCopy1   = 0x01
	tagCopy2   = 0x02
	tagCopy4   = 0x03
)

const (
	// inputMargin is the number of trailing bytes the search loops never start a match in.
	inputMargin = 8

	// minNonLiteralBlockSize is the smallest block the encoders search for matches in.
	// Shorter blocks are stored as a single literal.
	minNonLiteralBlockSize = 32

	maxCopy1Offset = 1 << 11
	maxCopy2Offset = 1 << 16
)

// MaxEncodedLen returns the maximum length of an encoded block of srcLen bytes.
//
// It returns -1 when srcLen is negative or too large to be encoded.
func MaxEncodedLen(srcLen int) int {
	if srcLen < 0 {
		return -1
	}
	n := uint64(srcLen)
	if n > maxDecodedLen {
		return -1
	}
	// Length header, then the whole input as one literal.
	n += uint64((bits.Len64(n) + 7) / 7)
	n += literalExtraSize(uint64(srcLen))
	if n > maxDecodedLen || n > math.MaxInt {
		return -1
	}

	return int(n)
}

func literalExtraSize(n uint64) uint64 {
	switch {
	case n == 0:
		return 0
	case n < 60:
		return 1
	case n < 1<<8:
		return 2
	case n < 1<<16:
		return 3
	case n < 1<<24:
		return 4
	default:
		return 5
	}
}

// Encoder owns the match tables of every compression level.
//
// Tables are allocated on first use of a level and reset on every call, so
// successive calls never observe each other's state. An Encoder is not safe
// for concurrent use; the package level functions draw Encoders from a pool.
type Encoder struct {
	fastSmall []uint32
	fastLarge []uint32
	betterL   []uint32
	betterS   []uint32
	bestL     []uint64
	bestS     []uint64

	// hist holds dictionary bytes followed by the block being encoded.
	hist []byte
}

// NewEncoder creates an Encoder with no tables allocated.
func NewEncoder() *Encoder {
	return &Encoder{}
}

var encoderPool = sync.Pool{
	New: func() any {
		return NewEncoder()
	},
}

func pooledEncode(dst, src []byte, level format.Level, dict *Dict) []byte {
	e, _ := encoderPool.Get().(*Encoder)
	defer encoderPool.Put(e)

	return e.Encode(dst, src, level, dict)
}

// Encode returns the encoded form of src using the standard encoder. The
// returned slice may be a sub-slice of dst if dst was large enough to hold
// the entire encoded block.
//
// Encode panics with errs.ErrTooLarge if len(src) exceeds the format limit of 4 GiB - 1.
func Encode(dst, src []byte) []byte {
	return pooledEncode(dst, src, format.LevelFast, nil)
}

// EncodeBetter is like Encode but searches two hash tables per position,
// giving better compression at roughly half the speed.
func EncodeBetter(dst, src []byte) []byte {
	return pooledEncode(dst, src, format.LevelBetter, nil)
}

// EncodeBest is like Encode but scores several candidate matches per position
// by their encoded cost. It is the slowest and strongest level.
func EncodeBest(dst, src []byte) []byte {
	return pooledEncode(dst, src, format.LevelBest, nil)
}

// EncodeLevel encodes src at the given level. LevelUncompressed produces a
// block holding src as a single literal.
func EncodeLevel(dst, src []byte, level format.Level) []byte {
	return pooledEncode(dst, src, level, nil)
}

// EncodeSnappy encodes src without repeat codes, so that the output is also a
// valid Snappy block.
func EncodeSnappy(dst, src []byte) []byte {
	e, _ := encoderPool.Get().(*Encoder)
	defer encoderPool.Put(e)

	return e.EncodeSnappy(dst, src)
}

// EncodeInto encodes src at the given level into the fixed buffer dst and
// returns the number of bytes written. dst must hold at least
// MaxEncodedLen(len(src)) bytes, otherwise errs.ErrBufferTooSmall is returned.
func EncodeInto(dst, src []byte, level format.Level) (int, error) {
	n := MaxEncodedLen(len(src))
	if n < 0 {
		return 0, fmt.Errorf("%w: %d byte input", errs.ErrTooLarge, len(src))
	}
	if len(dst) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", errs.ErrBufferTooSmall, n, len(dst))
	}
	if !level.Valid() {
		return 0, fmt.Errorf("%w: level %d", errs.ErrInvalidInput, level)
	}
	e, _ := encoderPool.Get().(*Encoder)
	defer encoderPool.Put(e)

	return e.encodeTo(dst, src, level, nil, false), nil
}

// Encode encodes src at the given level, seeded with dict when it is not nil.
// It panics with errs.ErrTooLarge if src cannot be described by the format.
func (e *Encoder) Encode(dst, src []byte, level format.Level, dict *Dict) []byte {
	dst = sizedDst(dst, len(src))
	return dst[:e.encodeTo(dst, src, level, dict, false)]
}

// EncodeSnappy encodes src as a Snappy-compatible block.
func (e *Encoder) EncodeSnappy(dst, src []byte) []byte {
	dst = sizedDst(dst, len(src))
	return dst[:e.encodeTo(dst, src, format.LevelFast, nil, true)]
}

func sizedDst(dst []byte, srcLen int) []byte {
	n := MaxEncodedLen(srcLen)
	if n < 0 {
		panic(errs.ErrTooLarge)
	}
	if cap(dst) < n {
		return make([]byte, n)
	}

	return dst[:n]
}

// EncodeBlock encodes src into dst, which must hold at least
// MaxEncodedLen(len(src)) bytes, and returns the number of bytes written.
//
// Unlike Encode it does not fall back to a literal block: it returns 0 when
// src does not compress below len - len/32 - 5 bytes, so that a stream writer
// can store the data uncompressed instead. With snappy set no repeat codes
// are emitted and dict is ignored.
func (e *Encoder) EncodeBlock(dst, src []byte, level format.Level, dict *Dict, snappy bool) int {
	if len(src) < minNonLiteralBlockSize || level == format.LevelUncompressed {
		return 0
	}
	d := encoding.PutUvarint(dst, uint64(len(src)))
	n := e.encodeBody(dst[d:], src, level, dict, snappy)
	if n == 0 {
		return 0
	}

	return d + n
}

// encodeTo writes the length header and block body into dst, which holds at
// least MaxEncodedLen(len(src)) bytes, and returns the number of bytes written.
func (e *Encoder) encodeTo(dst, src []byte, level format.Level, dict *Dict, snappy bool) int {
	d := encoding.PutUvarint(dst, uint64(len(src)))
	if len(src) == 0 {
		return d
	}
	if len(src) < minNonLiteralBlockSize || level == format.LevelUncompressed {
		return d + emitLiteral(dst[d:], src)
	}
	if n := e.encodeBody(dst[d:], src, level, dict, snappy); n > 0 {
		return d + n
	}

	return d + emitLiteral(dst[d:], src)
}

// encodeBody runs the search of the given level over src, or returns 0.
func (e *Encoder) encodeBody(dst, src []byte, level format.Level, dict *Dict, snappy bool) int {
	if snappy {
		return e.encodeFast(dst, src, 0, nil, true)
	}

	hist, start := src, 0
	if dict != nil {
		e.hist = append(append(e.hist[:0], dict.dict...), src...)
		hist, start = e.hist, len(dict.dict)
	}

	switch level {
	case format.LevelBetter:
		return e.encodeBetter(dst, hist, start, dict)
	case format.LevelBest:
		return e.encodeBest(dst, hist, start, dict)
	default:
		return e.encodeFast(dst, hist, start, dict, false)
	}
}

// window describes a history buffer made of dictionary bytes src[:start]
// followed by the block src[start:].
//
// A match may reference the dictionary only while it ends within
// MaxDictSrcOffset bytes of the block start, and never continue from the
// dictionary into the block.
type window struct {
	start int
	end   int
}

// usable reports whether a 4-byte match of cand at position s may be emitted.
func (w window) usable(cand, s int) bool {
	if cand >= w.start {
		return true
	}

	return s+4-w.start <= format.MaxDictSrcOffset && w.start-cand >= 4
}

// low returns the lowest candidate position backward extension may reach.
func (w window) low(cand int) int {
	if cand < w.start {
		return 0
	}

	return w.start
}

// limit returns the exclusive bound on s when extending a match of cand at s.
func (w window) limit(cand, s int) int {
	if cand < w.start {
		return min(w.end, s+w.start-cand, w.start+format.MaxDictSrcOffset)
	}

	return w.end
}

// extendMatch returns the end of the match between src[cand:] and src[s:]
// where cand < s, advancing s no further than limit.
func extendMatch(src []byte, cand, s, limit int) int {
	for s+8 <= limit {
		if diff := load64(src, s) ^ load64(src, cand); diff != 0 {
			return s + bits.TrailingZeros64(diff)>>3
		}
		s += 8
		cand += 8
	}
	for s < limit && src[s] == src[cand] {
		s++
		cand++
	}

	return s
}

// emitLiteral writes a literal chunk and returns the number of bytes written.
//
// It assumes that:
//
//	dst is long enough to hold the encoded bytes
//	0 <= len(lit) && len(lit) <= math.MaxUint32
func emitLiteral(dst, lit []byte) int {
	if len(lit) == 0 {
		return 0
	}
	i, n := 0, uint(len(lit)-1)
	switch {
	case n < 60:
		dst[0] = uint8(n)<<2 | tagLiteral
		i = 1
	case n < 1<<8:
		dst[1] = uint8(n)
		dst[0] = 60<<2 | tagLiteral
		i = 2
	case n < 1<<16:
		dst[2] = uint8(n >> 8)
		dst[1] = uint8(n)
		dst[0] = 61<<2 | tagLiteral
		i = 3
	case n < 1<<24:
		dst[3] = uint8(n >> 16)
		dst[2] = uint8(n >> 8)
		dst[1] = uint8(n)
		dst[0] = 62<<2 | tagLiteral
		i = 4
	default:
		dst[4] = uint8(n >> 24)
		dst[3] = uint8(n >> 16)
		dst[2] = uint8(n >> 8)
		dst[1] = uint8(n)
		dst[0] = 63<<2 | tagLiteral
		i = 5
	}

	return i + copy(dst[i:], lit)
}

// literalHeaderSize returns the tag overhead of a literal of n bytes.
func literalHeaderSize(n int) int {
	switch {
	case n == 0:
		return 0
	case n <= 60:
		return 1
	case n <= 1<<8:
		return 2
	case n <= 1<<16:
		return 3
	case n <= 1<<24:
		return 4
	default:
		return 5
	}
}

// emitRepeat writes a repeat chunk and returns the number of bytes written.
// Length must be at least 4 and < 1<<32.
func emitRepeat(dst []byte, offset, length int) int {
	// Repeat offset, make length cheaper
	length -= 4
	if length <= 4 {
		dst[0] = uint8(length)<<2 | tagCopy1
		dst[1] = 0
		return 2
	}
	if length < 8 && offset < maxCopy1Offset {
		// Encode WITH offset
		dst[1] = uint8(offset)
		dst[0] = uint8(offset>>8)<<5 | uint8(length)<<2 | tagCopy1
		return 2
	}
	if length < (1<<8)+4 {
		length -= 4
		dst[2] = uint8(length)
		dst[1] = 0
		dst[0] = 5<<2 | tagCopy1
		return 3
	}
	if length < (1<<16)+(1<<8) {
		length -= 1 << 8
		dst[3] = uint8(length >> 8)
		dst[2] = uint8(length)
		dst[1] = 0
		dst[0] = 6<<2 | tagCopy1
		return 4
	}
	const maxRepeat = (1 << 24) - 1
	length -= 1 << 16
	left := 0
	if length > maxRepeat {
		left = length - maxRepeat + 4
		length = maxRepeat - 4
	}
	dst[4] = uint8(length >> 16)
	dst[3] = uint8(length >> 8)
	dst[2] = uint8(length)
	dst[1] = 0
	dst[0] = 7<<2 | tagCopy1
	if left > 0 {
		return 5 + emitRepeat(dst[5:], offset, left)
	}

	return 5
}

// emitRepeatSize returns the number of bytes emitRepeat would write.
func emitRepeatSize(offset, length int) int {
	length -= 4
	if length <= 4 {
		return 2
	}
	if length < 8 && offset < maxCopy1Offset {
		return 2
	}
	if length < (1<<8)+4 {
		return 3
	}
	if length < (1<<16)+(1<<8) {
		return 4
	}
	const maxRepeat = (1 << 24) - 1
	length -= 1 << 16
	if length > maxRepeat {
		return 5 + emitRepeatSize(offset, length-maxRepeat+4)
	}

	return 5
}

// emitCopy writes a copy chunk and returns the number of bytes written.
//
// It assumes that:
//
//	dst is long enough to hold the encoded bytes
//	1 <= offset && offset <= math.MaxUint32
//	4 <= length
func emitCopy(dst []byte, offset, length int) int {
	if offset >= maxCopy2Offset {
		i := 0
		if length > 64 {
			// Emit a length 64 copy, encoded as 5 bytes.
			dst[4] = uint8(offset >> 24)
			dst[3] = uint8(offset >> 16)
			dst[2] = uint8(offset >> 8)
			dst[1] = uint8(offset)
			dst[0] = 63<<2 | tagCopy4
			length -= 64
			if length >= 4 {
				// Emit remaining as repeats
				return 5 + emitRepeat(dst[5:], offset, length)
			}
			i = 5
		}
		if length == 0 {
			return i
		}
		dst[i+0] = uint8(length-1)<<2 | tagCopy4
		dst[i+1] = uint8(offset)
		dst[i+2] = uint8(offset >> 8)
		dst[i+3] = uint8(offset >> 16)
		dst[i+4] = uint8(offset >> 24)

		return i + 5
	}

	// Offset no more than 2 bytes.
	if length > 64 {
		off := 3
		if offset < maxCopy1Offset {
			// Emit 8 bytes as a short copy, the rest as repeats.
			dst[1] = uint8(offset)
			dst[0] = uint8(offset>>8)<<5 | uint8(8-4)<<2 | tagCopy1
			length -= 8
			off = 2
		} else {
			// Emit a length 60 copy, encoded as 3 bytes.
			dst[2] = uint8(offset >> 8)
			dst[1] = uint8(offset)
			dst[0] = 59<<2 | tagCopy2
			length -= 60
		}
		// At least 4 bytes remain.
		return off + emitRepeat(dst[off:], offset, length)
	}
	if length >= 12 || offset >= maxCopy1Offset {
		dst[2] = uint8(offset >> 8)
		dst[1] = uint8(offset)
		dst[0] = uint8(length-1)<<2 | tagCopy2
		return 3
	}
	dst[1] = uint8(offset)
	dst[0] = uint8(offset>>8)<<5 | uint8(length-4)<<2 | tagCopy1

	return 2
}

// emitCopySize returns the number of bytes emitCopy would write.
func emitCopySize(offset, length int) int {
	if offset >= maxCopy2Offset {
		i := 0
		if length > 64 {
			length -= 64
			if length >= 4 {
				return 5 + emitRepeatSize(offset, length)
			}
			i = 5
		}
		if length == 0 {
			return i
		}

		return i + 5
	}
	if length > 64 {
		if offset < maxCopy1Offset {
			return 2 + emitRepeatSize(offset, length-8)
		}

		return 3 + emitRepeatSize(offset, length-60)
	}
	if length >= 12 || offset >= maxCopy1Offset {
		return 3
	}

	return 2
}

// emitCopyNoRepeat is like emitCopy but never emits repeat codes, so the
// output stays readable by Snappy decoders.
func emitCopyNoRepeat(dst []byte, offset, length int) int {
	if offset >= maxCopy2Offset {
		i := 0
		if length > 64 {
			dst[4] = uint8(offset >> 24)
			dst[3] = uint8(offset >> 16)
			dst[2] = uint8(offset >> 8)
			dst[1] = uint8(offset)
			dst[0] = 63<<2 | tagCopy4
			length -= 64
			if length >= 4 {
				return 5 + emitCopyNoRepeat(dst[5:], offset, length)
			}
			i = 5
		}
		if length == 0 {
			return i
		}
		dst[i+0] = uint8(length-1)<<2 | tagCopy4
		dst[i+1] = uint8(offset)
		dst[i+2] = uint8(offset >> 8)
		dst[i+3] = uint8(offset >> 16)
		dst[i+4] = uint8(offset >> 24)

		return i + 5
	}
	if length > 64 {
		// Emit a length 60 copy, encoded as 3 bytes.
		dst[2] = uint8(offset >> 8)
		dst[1] = uint8(offset)
		dst[0] = 59<<2 | tagCopy2

		return 3 + emitCopyNoRepeat(dst[3:], offset, length-60)
	}
	if length >= 12 || offset >= maxCopy1Offset {
		dst[2] = uint8(offset >> 8)
		dst[1] = uint8(offset)
		dst[0] = uint8(length-1)<<2 | tagCopy2
		return 3
	}
	dst[1] = uint8(offset)
	dst[0] = uint8(offset>>8)<<5 | uint8(length-4)<<2 | tagCopy1

	return 2
}

// emitCopyNoRepeatSize returns the number of bytes emitCopyNoRepeat would write.
func emitCopyNoRepeatSize(offset, length int) int {
	if offset >= maxCopy2Offset {
		if length > 64 {
			if length-64 >= 4 {
				return 5 + emitCopyNoRepeatSize(offset, length-64)
			}

			return 10
		}

		return 5
	}
	if length > 64 {
		return 3 + emitCopyNoRepeatSize(offset, length-60)
	}
	if length >= 12 || offset >= maxCopy1Offset {
		return 3
	}

	return 2
}

func load32(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i:])
}

func load64(b []byte, i int) uint64 {
	return binary.LittleEndian.Uint64(b[i:])
}

const (
	prime4bytes = 2654435761
	prime6bytes = 227718039650203
	prime7bytes = 58295818150454627
	prime8bytes = 0xcf1bbcdcb7a56463
)

// hash4 returns the hash of the lowest 4 bytes of u to fit in a hash table with h bits.
func hash4(u uint64, h uint8) uint32 {
	return (uint32(u) * prime4bytes) >> ((32 - h) & 31)
}

// hash6 returns the hash of the lowest 6 bytes of u to fit in a hash table with h bits.
func hash6(u uint64, h uint8) uint32 {
	return uint32(((u << (64 - 48)) * prime6bytes) >> ((64 - h) & 63))
}

// hash7 returns the hash of the lowest 7 bytes of u to fit in a hash table with h bits.
func hash7(u uint64, h uint8) uint32 {
	return uint32(((u << (64 - 56)) * prime7bytes) >> ((64 - h) & 63))
}

// hash8 returns the hash of u to fit in a hash table with h bits.
func hash8(u uint64, h uint8) uint32 {
	return uint32((u * prime8bytes) >> ((64 - h) & 63))
}
