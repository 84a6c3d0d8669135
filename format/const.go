package format

// Stream chunk types.
const (
	ChunkTypeCompressedData   ChunkType = 0x00
	ChunkTypeUncompressedData ChunkType = 0x01
	ChunkTypeIndex            ChunkType = 0x99
	ChunkTypePadding          ChunkType = 0xfe
	ChunkTypeStreamIdentifier ChunkType = 0xff

	// MinSkippableChunk is the first chunk type a reader may skip.
	MinSkippableChunk ChunkType = 0x80
	// MinUserSkippableChunk and MaxUserSkippableChunk bound the application range.
	MinUserSkippableChunk ChunkType = 0x80
	MaxUserSkippableChunk ChunkType = 0xbf
)

// Stream magic. The identifier chunk body is 6 bytes for both S2 and Snappy.
const (
	MagicBody       = "S2sTwO"
	MagicBodySnappy = "sNaPpY"
	MagicChunk      = "\xff\x06\x00\x00" + MagicBody
	MagicChunkSnap  = "\xff\x06\x00\x00" + MagicBodySnappy
)

// Stream framing sizes.
const (
	ChunkHeaderSize = 4
	ChecksumSize    = 4

	// MaxChunkSize is the largest payload a 24-bit chunk length can describe.
	MaxChunkSize = 1<<24 - 1

	MinBlockSize     = 4 << 10
	DefaultBlockSize = 1 << 20
	MaxBlockSize     = 4 << 20

	// SnappyBlockSize is the block size Snappy framing readers accept.
	SnappyBlockSize = 64 << 10
)

// Dictionary bounds.
const (
	MinDictSize = 16
	MaxDictSize = 65536

	// MaxDictSrcOffset is the last output offset that may reference a dictionary.
	MaxDictSrcOffset = 65535
)
