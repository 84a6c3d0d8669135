package encoding

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/arloliu/s2x/errs"
)

// MaxVarintLen64 is the maximum number of bytes a 64-bit varint occupies.
const MaxVarintLen64 = binary.MaxVarintLen64

// AppendUvarint appends the LEB128 encoding of v to dst.
func AppendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

// PutUvarint encodes v into buf and returns the number of bytes written.
// It panics if buf is too small, like binary.PutUvarint.
func PutUvarint(buf []byte, v uint64) int {
	return binary.PutUvarint(buf, v)
}

// UvarintLen returns the encoded size of v in bytes.
func UvarintLen(v uint64) int {
	return (bits.Len64(v|1) + 6) / 7
}

// Uvarint decodes a LEB128 value from the start of buf.
//
// It returns the value and the number of bytes consumed. A truncated value, a
// value longer than MaxVarintLen64 bytes, or one that overflows 64 bits is
// reported as errs.ErrCorrupt.
func Uvarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if i == MaxVarintLen64 {
			return 0, 0, fmt.Errorf("%w: varint longer than %d bytes", errs.ErrCorrupt, MaxVarintLen64)
		}
		if b < 0x80 {
			if i == MaxVarintLen64-1 && b > 1 {
				return 0, 0, fmt.Errorf("%w: varint overflows 64 bits", errs.ErrCorrupt)
			}

			return v | uint64(b)<<shift, i + 1, nil
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}

	return 0, 0, fmt.Errorf("%w: truncated varint", errs.ErrCorrupt)
}

// AppendVarint appends the zig-zag LEB128 encoding of v to dst.
func AppendVarint(dst []byte, v int64) []byte {
	return binary.AppendVarint(dst, v)
}

// Varint decodes a zig-zag LEB128 value from the start of buf.
func Varint(buf []byte) (int64, int, error) {
	ux, n, err := Uvarint(buf)
	if err != nil {
		return 0, 0, err
	}
	x := int64(ux >> 1) //nolint:gosec
	if ux&1 != 0 {
		x = ^x
	}

	return x, n, nil
}
