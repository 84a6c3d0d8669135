package block

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/arloliu/s2x/encoding"
	"github.com/arloliu/s2x/endian"
	"github.com/arloliu/s2x/errs"
	"github.com/arloliu/s2x/format"
	"github.com/arloliu/s2x/internal/hash"
)

const (
	dictMagic   = "s2xd"
	dictVersion = 1

	// dictIDSize is the size of the xxHash64 identity in the envelope.
	dictIDSize = 8
)

// Dict is shared history that precedes every block encoded or decoded with it.
//
// A Dict is immutable once created and safe for concurrent use. The hash
// tables each encoder level seeds from it are built on first use.
type Dict struct {
	dict   []byte
	repeat int
	id     uint64

	fastOnce  [2]sync.Once
	fastSeeds [2][]uint32

	betterOnce sync.Once
	betterL    []uint32
	betterS    []uint32

	bestOnce sync.Once
	bestL    []uint64
	bestS    []uint64
}

func newDict(data []byte, repeat int) *Dict {
	b := make([]byte, len(data))
	copy(b, data)

	return &Dict{dict: b, repeat: repeat, id: hash.ID(b)}
}

func checkDictSize(n int) error {
	if n < format.MinDictSize || n > format.MaxDictSize {
		return fmt.Errorf("%w: dictionary size %d outside [%d, %d]",
			errs.ErrInvalidInput, n, format.MinDictSize, format.MaxDictSize)
	}

	return nil
}

// MakeDict creates a dictionary from the last MaxDictSize bytes of data.
//
// When searchStart is not empty, the initial repeat offset points at the last
// occurrence in data of its longest prefix of at least 4 bytes. An occurrence
// that leaves fewer than 8 bytes after it is rejected and the next shorter
// prefix is tried. Without an accepted occurrence the repeat offset points at
// the start.
func MakeDict(data, searchStart []byte) (*Dict, error) {
	if len(data) > format.MaxDictSize {
		data = data[len(data)-format.MaxDictSize:]
	}
	if err := checkDictSize(len(data)); err != nil {
		return nil, err
	}

	repeat := 0
	for n := min(len(searchStart), len(data)); n >= 4; n-- {
		if i := bytes.LastIndex(data, searchStart[:n]); i >= 0 && i <= len(data)-8 {
			repeat = i
			break
		}
	}

	return newDict(data, repeat), nil
}

// MakeDictManual creates a dictionary from data with the initial repeat offset
// at firstIdx, which must leave at least 8 bytes after it.
func MakeDictManual(data []byte, firstIdx int) (*Dict, error) {
	if err := checkDictSize(len(data)); err != nil {
		return nil, err
	}
	if firstIdx < 0 || firstIdx > len(data)-8 {
		return nil, fmt.Errorf("%w: repeat index %d outside dictionary of %d bytes",
			errs.ErrInvalidInput, firstIdx, len(data))
	}

	return newDict(data, firstIdx), nil
}

// NewDict parses a dictionary in the S2 wire form written by Bytes: a uvarint
// repeat offset followed by the dictionary bytes.
func NewDict(raw []byte) (*Dict, error) {
	repeat, n, err := encoding.Uvarint(raw)
	if err != nil {
		return nil, fmt.Errorf("dictionary repeat: %w", err)
	}
	data := raw[n:]
	if len(data) < format.MinDictSize || len(data) > format.MaxDictSize {
		return nil, fmt.Errorf("%w: dictionary size %d", errs.ErrCorrupt, len(data))
	}
	if repeat >= uint64(len(data)) {
		return nil, fmt.Errorf("%w: dictionary repeat %d beyond %d bytes", errs.ErrCorrupt, repeat, len(data))
	}

	return newDict(data, int(repeat)), nil //nolint:gosec
}

// UnmarshalDict parses the envelope written by MarshalBinary. The identity
// hash is verified before the dictionary is returned.
func UnmarshalDict(b []byte) (*Dict, error) {
	if !bytes.HasPrefix(b, []byte(dictMagic)) {
		return nil, fmt.Errorf("%w: missing dictionary magic", errs.ErrCorrupt)
	}
	b = b[len(dictMagic):]
	if len(b) == 0 || b[0] != dictVersion {
		return nil, fmt.Errorf("%w: unknown dictionary version", errs.ErrCorrupt)
	}
	b = b[1:]

	size, n, err := encoding.Uvarint(b)
	if err != nil {
		return nil, fmt.Errorf("dictionary length: %w", err)
	}
	b = b[n:]
	repeat, n, err := encoding.Uvarint(b)
	if err != nil {
		return nil, fmt.Errorf("dictionary repeat: %w", err)
	}
	b = b[n:]

	if len(b) < dictIDSize || uint64(len(b)-dictIDSize) != size {
		return nil, fmt.Errorf("%w: dictionary envelope holds %d bytes, header declares %d", errs.ErrCorrupt, len(b), size)
	}
	if size < format.MinDictSize || size > format.MaxDictSize || repeat >= size {
		return nil, fmt.Errorf("%w: dictionary size %d repeat %d", errs.ErrCorrupt, size, repeat)
	}
	id := endian.GetLittleEndianEngine().Uint64(b)
	data := b[dictIDSize:]
	if !hash.Verify(data, id) {
		return nil, fmt.Errorf("%w: dictionary id %016x", errs.ErrDictMismatch, id)
	}

	return newDict(data, int(repeat)), nil //nolint:gosec
}

// Bytes returns the S2 wire form of the dictionary, as read by NewDict.
func (d *Dict) Bytes() []byte {
	out := make([]byte, 0, encoding.UvarintLen(uint64(d.repeat))+len(d.dict))
	out = encoding.AppendUvarint(out, uint64(d.repeat))

	return append(out, d.dict...)
}

// MarshalBinary encodes the dictionary in a versioned envelope that carries
// its identity hash.
func (d *Dict) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, len(dictMagic)+1+2*encoding.MaxVarintLen64+dictIDSize+len(d.dict))
	out = append(out, dictMagic...)
	out = append(out, dictVersion)
	out = encoding.AppendUvarint(out, uint64(len(d.dict)))
	out = encoding.AppendUvarint(out, uint64(d.repeat))
	out = endian.GetLittleEndianEngine().AppendUint64(out, d.id)

	return append(out, d.dict...), nil
}

// ID returns the xxHash64 of the dictionary bytes.
func (d *Dict) ID() uint64 { return d.id }

// Len returns the dictionary size in bytes.
func (d *Dict) Len() int { return len(d.dict) }

// Repeat returns the index of the initial repeat offset.
func (d *Dict) Repeat() int { return d.repeat }

// Data returns the dictionary bytes. The slice must not be modified.
func (d *Dict) Data() []byte { return d.dict }

// Encode encodes src with the standard encoder, using d as history.
// Blocks encoded with a dictionary can only be decoded with the same dictionary.
func (d *Dict) Encode(dst, src []byte) []byte {
	return pooledEncode(dst, src, format.LevelFast, d)
}

// EncodeBetter encodes src with the better encoder, using d as history.
func (d *Dict) EncodeBetter(dst, src []byte) []byte {
	return pooledEncode(dst, src, format.LevelBetter, d)
}

// EncodeBest encodes src with the best encoder, using d as history.
func (d *Dict) EncodeBest(dst, src []byte) []byte {
	return pooledEncode(dst, src, format.LevelBest, d)
}

// Decode decodes a block encoded with d.
func (d *Dict) Decode(dst, src []byte) ([]byte, error) {
	dec := Decoder{maxLen: defaultDecoder.maxLen, dict: d}
	return dec.Decode(dst, src)
}

// DecodeInto decodes a block encoded with d into the fixed buffer dst.
func (d *Dict) DecodeInto(dst, src []byte) (int, error) {
	dec := Decoder{maxLen: defaultDecoder.maxLen, dict: d}
	return dec.DecodeInto(dst, src)
}

// seedEnd is the exclusive bound of positions that have a full 8-byte load.
func (d *Dict) seedEnd() int {
	return len(d.dict) - 7
}

func (d *Dict) fastSeed(tableBits uint8) []uint32 {
	i := 0
	if tableBits == fastLargeTableBits {
		i = 1
	}
	d.fastOnce[i].Do(func() {
		table := make([]uint32, 1<<tableBits)
		for p := 0; p < d.seedEnd(); p++ {
			table[hash6(load64(d.dict, p), tableBits)] = uint32(p) //nolint:gosec
		}
		d.fastSeeds[i] = table
	})

	return d.fastSeeds[i]
}

func (d *Dict) betterSeed() (lTable, sTable []uint32) {
	d.betterOnce.Do(func() {
		d.betterL = make([]uint32, 1<<betterLongTableBits)
		d.betterS = make([]uint32, 1<<betterShortTableBits)
		for p := 0; p < d.seedEnd(); p++ {
			cv := load64(d.dict, p)
			d.betterL[hash7(cv, betterLongTableBits)] = uint32(p) //nolint:gosec
			d.betterS[hash4(cv, betterShortTableBits)] = uint32(p) //nolint:gosec
		}
	})

	return d.betterL, d.betterS
}

func (d *Dict) bestSeed() (lTable, sTable []uint64) {
	d.bestOnce.Do(func() {
		d.bestL = make([]uint64, 1<<bestLongTableBits)
		d.bestS = make([]uint64, 1<<bestShortTableBits)
		for p := 0; p < d.seedEnd(); p++ {
			cv := load64(d.dict, p)
			hl := hash8(cv, bestLongTableBits)
			hs := hash4(cv, bestShortTableBits)
			d.bestL[hl] = uint64(p) | d.bestL[hl]<<32
			d.bestS[hs] = uint64(p) | d.bestS[hs]<<32
		}
	})

	return d.bestL, d.bestS
}
