// Package endian provides the byte order helpers used by the s2x framing code.
//
// Every multi-byte field in the S2 block and stream formats is little-endian.
// The chunk header additionally carries a 24-bit length, which encoding/binary
// does not cover, so this package adds Uint24 helpers next to the standard
// ByteOrder and AppendByteOrder interfaces.
//
//	engine := endian.GetLittleEndianEngine()
//	hdr := endian.AppendUint24(append(buf, chunkType), uint32(len(payload)))
//	crc := engine.Uint32(payload[:4])
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// MaxUint24 is the largest value a 24-bit field can hold.
const MaxUint24 = 1<<24 - 1

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// Uint24 reads a little-endian 24-bit value from b[0:3].
func Uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// PutUint24 writes v as a little-endian 24-bit value into b[0:3].
// Bits above 24 are discarded.
func PutUint24(b []byte, v uint32) {
	_ = b[2]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// AppendUint24 appends v as a little-endian 24-bit value.
func AppendUint24(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16))
}
