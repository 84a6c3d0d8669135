package format

type (
	Level           uint8
	CompressionType uint8
	ChunkType       uint8
)

const (
	LevelUncompressed Level = 0x0 // LevelUncompressed stores every block as an uncompressed chunk.
	LevelFast         Level = 0x1 // LevelFast selects the standard single-table encoder.
	LevelBetter       Level = 0x2 // LevelBetter selects the two-table encoder.
	LevelBest         Level = 0x3 // LevelBest selects the scoring encoder.

	CompressionNone     CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd     CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2Ref    CompressionType = 0x3 // CompressionS2Ref represents the klauspost S2 reference encoder.
	CompressionLZ4      CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
	CompressionS2Fast   CompressionType = 0x5 // CompressionS2Fast represents s2x standard blocks.
	CompressionS2Better CompressionType = 0x6 // CompressionS2Better represents s2x better blocks.
	CompressionS2Best   CompressionType = 0x7 // CompressionS2Best represents s2x best blocks.
	CompressionSnappy   CompressionType = 0x8 // CompressionSnappy represents Snappy-compatible s2x blocks.
)

func (l Level) String() string {
	switch l {
	case LevelUncompressed:
		return "Uncompressed"
	case LevelFast:
		return "Fast"
	case LevelBetter:
		return "Better"
	case LevelBest:
		return "Best"
	default:
		return "Unknown"
	}
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l <= LevelBest
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2Ref:
		return "S2Ref"
	case CompressionLZ4:
		return "LZ4"
	case CompressionS2Fast:
		return "S2Fast"
	case CompressionS2Better:
		return "S2Better"
	case CompressionS2Best:
		return "S2Best"
	case CompressionSnappy:
		return "Snappy"
	default:
		return "Unknown"
	}
}

// ParseCompressionType returns the CompressionType named by s, matching String.
func ParseCompressionType(s string) (CompressionType, bool) {
	for c := CompressionNone; c <= CompressionSnappy; c++ {
		if c.String() == s {
			return c, true
		}
	}

	return 0, false
}

func (c ChunkType) String() string {
	switch {
	case c == ChunkTypeCompressedData:
		return "Compressed"
	case c == ChunkTypeUncompressedData:
		return "Uncompressed"
	case c == ChunkTypeIndex:
		return "Index"
	case c == ChunkTypePadding:
		return "Padding"
	case c == ChunkTypeStreamIdentifier:
		return "StreamIdentifier"
	case c.Skippable():
		return "Skippable"
	default:
		return "Reserved"
	}
}

// Skippable reports whether a reader may discard a chunk of this type unread.
func (c ChunkType) Skippable() bool {
	return c >= MinSkippableChunk && c <= ChunkTypePadding
}
