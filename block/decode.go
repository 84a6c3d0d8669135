package block

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arloliu/s2x/encoding"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/internal/options"
)

// maxDecodedLen is the largest block length the format can describe.
const maxDecodedLen = math.MaxUint32

// Decoder decodes S2 and Snappy blocks.
//
// A Decoder holds only configuration, so one value may be shared by any number
// of goroutines.
type Decoder struct {
	maxLen uint64
	dict   *Dict
}

// DecoderOption configures a Decoder.
type DecoderOption = options.Option[*Decoder]

// WithMaxDecodedLen bounds the decoded length a block may declare.
// Larger declarations fail with errs.ErrTooLarge before any allocation.
func WithMaxDecodedLen(n int) DecoderOption {
	return options.New(func(dec *Decoder) error {
		if n < 0 {
			return fmt.Errorf("%w: negative max decoded length %d", errs.ErrInvalidInput, n)
		}
		dec.maxLen = min(uint64(n), maxDecodedLen)

		return nil
	})
}

// WithDict makes copies that reach before the start of the output read from d.
func WithDict(d *Dict) DecoderOption {
	return options.NoError(func(dec *Decoder) {
		dec.dict = d
	})
}

// NewDecoder creates a Decoder. Without options it accepts any block length
// the format can describe and uses no dictionary.
func NewDecoder(opts ...DecoderOption) (*Decoder, error) {
	dec := &Decoder{maxLen: maxDecodedLen}
	if err := options.Apply(dec, opts...); err != nil {
		return nil, err
	}
	if uint64(math.MaxInt) < dec.maxLen {
		dec.maxLen = uint64(math.MaxInt)
	}

	return dec, nil
}

var defaultDecoder, _ = NewDecoder()

// DecodedLen returns the length of the decoded block.
func DecodedLen(src []byte) (int, error) {
	return defaultDecoder.DecodedLen(src)
}

// Decode returns the decoded form of src. The returned slice may be a sub-slice
// of dst if dst was large enough to hold the entire decoded block.
// Otherwise, a newly allocated slice will be returned.
//
// The dst and src must not overlap. It is valid to pass a nil dst.
func Decode(dst, src []byte) ([]byte, error) {
	return defaultDecoder.Decode(dst, src)
}

// DecodeInto decodes src into the fixed buffer dst and returns the number of
// bytes written. It fails with errs.ErrBufferTooSmall if dst cannot hold the block.
func DecodeInto(dst, src []byte) (int, error) {
	return defaultDecoder.DecodeInto(dst, src)
}

// DecodedLen returns the length of the decoded block, checked against the configured maximum.
func (dec *Decoder) DecodedLen(src []byte) (int, error) {
	n, _, err := dec.decodedLen(src)
	return n, err
}

// Decode decodes src, reusing dst when it has enough capacity.
func (dec *Decoder) Decode(dst, src []byte) ([]byte, error) {
	dLen, hdr, err := dec.decodedLen(src)
	if err != nil {
		return nil, err
	}
	if cap(dst) < dLen {
		dst = make([]byte, dLen)
	} else {
		dst = dst[:dLen]
	}
	if err := dec.decodeBody(dst, src[hdr:]); err != nil {
		return nil, err
	}

	return dst, nil
}

// DecodeInto decodes src into dst and returns the decoded length.
func (dec *Decoder) DecodeInto(dst, src []byte) (int, error) {
	dLen, hdr, err := dec.decodedLen(src)
	if err != nil {
		return 0, err
	}
	if len(dst) < dLen {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", errs.ErrBufferTooSmall, dLen, len(dst))
	}
	if err := dec.decodeBody(dst[:dLen], src[hdr:]); err != nil {
		return 0, err
	}

	return dLen, nil
}

func (dec *Decoder) decodedLen(src []byte) (blockLen, headerLen int, err error) {
	v, n, err := encoding.Uvarint(src)
	if err != nil {
		return 0, 0, err
	}
	if v > dec.maxLen {
		return 0, 0, fmt.Errorf("%w: declared %d bytes, limit %d", errs.ErrTooLarge, v, dec.maxLen)
	}

	return int(v), n, nil //nolint:gosec
}

func (dec *Decoder) decodeBody(dst, src []byte) error {
	if dec.dict == nil {
		return decodeBody(dst, src, nil, 0)
	}

	return decodeBody(dst, src, dec.dict.dict, dec.dict.repeat)
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrCorrupt}, args...)...)
}

// decodeBody decodes the tags in src into dst, which has exactly the declared length.
// dict, when not nil, is history that logically precedes dst[0].
func decodeBody(dst, src, dict []byte, dictRepeat int) error {
	var d, s, offset, length int
	if dict != nil {
		offset = len(dict) - dictRepeat
	}

	for s < len(src) {
		tag := src[s]
		switch tag & 0x03 {
		case tagLiteral:
			x := uint32(tag >> 2)
			switch {
			case x < 60:
				s++
			case x == 60:
				s += 2
				if s > len(src) {
					return corruptf("truncated literal length")
				}
				x = uint32(src[s-1])
			case x == 61:
				s += 3
				if s > len(src) {
					return corruptf("truncated literal length")
				}
				x = uint32(binary.LittleEndian.Uint16(src[s-2:]))
			case x == 62:
				s += 4
				if s > len(src) {
					return corruptf("truncated literal length")
				}
				x = uint32(src[s-3]) | uint32(src[s-2])<<8 | uint32(src[s-1])<<16
			default:
				s += 5
				if s > len(src) {
					return corruptf("truncated literal length")
				}
				x = binary.LittleEndian.Uint32(src[s-4:])
			}
			length = int(x) + 1
			if length <= 0 || length > len(dst)-d || length > len(src)-s {
				return corruptf("literal of %d bytes at output %d overruns block", int64(x)+1, d)
			}
			copy(dst[d:], src[s:s+length])
			d += length
			s += length

			continue

		case tagCopy1:
			s += 2
			if s > len(src) {
				return corruptf("truncated copy tag")
			}
			length = int(tag>>2) & 0x7
			toffset := int(uint32(tag&0xe0)<<3 | uint32(src[s-1]))
			if toffset == 0 {
				// Repeat: the previous offset with an extended length.
				switch length {
				case 5:
					s++
					if s > len(src) {
						return corruptf("truncated repeat length")
					}
					length = int(src[s-1]) + 4
				case 6:
					s += 2
					if s > len(src) {
						return corruptf("truncated repeat length")
					}
					length = int(binary.LittleEndian.Uint16(src[s-2:])) + 1<<8
				case 7:
					s += 3
					if s > len(src) {
						return corruptf("truncated repeat length")
					}
					length = int(uint32(src[s-3])|uint32(src[s-2])<<8|uint32(src[s-1])<<16) + 1<<16
				}
			} else {
				offset = toffset
			}
			length += 4

		case tagCopy2:
			s += 3
			if s > len(src) {
				return corruptf("truncated copy tag")
			}
			length = 1 + int(tag>>2)
			offset = int(binary.LittleEndian.Uint16(src[s-2:]))

		default:
			s += 5
			if s > len(src) {
				return corruptf("truncated copy tag")
			}
			length = 1 + int(tag>>2)
			offset = int(binary.LittleEndian.Uint32(src[s-4:]))
		}

		if offset <= 0 || length > len(dst)-d {
			return corruptf("copy offset %d length %d at output %d", offset, length, d)
		}

		if offset > d {
			back := offset - d
			if back > len(dict) {
				return corruptf("copy offset %d reaches before history at output %d", offset, d)
			}
			pos := len(dict) - back
			n := min(length, back)
			copy(dst[d:d+n], dict[pos:pos+n])
			d += n
			length -= n
			if length == 0 {
				continue
			}
		}

		from := d - offset
		if offset >= length {
			copy(dst[d:d+length], dst[from:from+length])
		} else {
			// The source overlaps the bytes being written.
			for i := range length {
				dst[d+i] = dst[from+i]
			}
		}
		d += length
	}

	if d != len(dst) {
		return corruptf("decoded %d bytes, block declares %d", d, len(dst))
	}

	return nil
}
