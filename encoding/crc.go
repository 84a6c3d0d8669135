package encoding

import (
	"hash/crc32"

	"github.com/arloliu/s2x/endian"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// CRC returns the masked CRC-32C checksum of b as used by S2 and Snappy chunks.
//
// The mask rotates the raw checksum right by 15 bits and adds a constant, so
// that checksums of data that itself contains checksums stay well distributed.
func CRC(b []byte) uint32 {
	c := crc32.Update(0, crcTable, b)
	return (c>>15 | c<<17) + 0xa282ead8
}

// AppendCRC appends the little-endian masked checksum of b to dst.
func AppendCRC(dst, b []byte) []byte {
	return endian.GetLittleEndianEngine().AppendUint32(dst, CRC(b))
}
