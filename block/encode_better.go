package block

const (
	betterLongTableBits  = 17
	betterShortTableBits = 14
)

func (e *Encoder) betterTables() (lTable, sTable []uint32) {
	if e.betterL == nil {
		e.betterL = make([]uint32, 1<<betterLongTableBits)
		e.betterS = make([]uint32, 1<<betterShortTableBits)
	}

	return e.betterL, e.betterS
}

// encodeBetter encodes src[start:] into dst using a long table of 7-byte
// hashes and a short table of 4-byte hashes. src[:start] holds the bytes of
// dict, if any.
//
// It returns 0 when the block does not compress below
// len - len/32 - 5 bytes.
func (e *Encoder) encodeBetter(dst, src []byte, start int, dict *Dict) (d int) {
	blockLen := len(src) - start
	if blockLen < minNonLiteralBlockSize {
		return 0
	}

	lTable, sTable := e.betterTables()
	if dict != nil {
		seedL, seedS := dict.betterSeed()
		copy(lTable, seedL)
		copy(sTable, seedS)
	} else {
		clear(lTable)
		clear(sTable)
	}

	w := window{start: start, end: len(src)}
	sLimit := len(src) - inputMargin
	dstLimit := blockLen - blockLen>>5 - 5

	nextEmit := start
	s := start + 1
	// Zero never equals an offset, so no repeat is emitted before the first copy.
	repeat := 0
	if dict != nil {
		s = start
		repeat = start - dict.repeat
	}
	cv := load64(src, s)

	for {
		candidateL := 0
		nextS := 0
		for {
			nextS = s + (s-nextEmit)>>7 + 1
			if nextS > sLimit {
				goto emitRemainder
			}
			hashL := hash7(cv, betterLongTableBits)
			hashS := hash4(cv, betterShortTableBits)
			candidateL = int(lTable[hashL])
			candidateS := int(sTable[hashS])
			lTable[hashL] = uint32(s)
			sTable[hashS] = uint32(s)

			valLong := load64(src, candidateL)
			valShort := load64(src, candidateS)

			// An 8-byte match on either table wins outright.
			if cv == valLong && w.usable(candidateL, s) {
				break
			}
			if cv == valShort && w.usable(candidateS, s) {
				candidateL = candidateS
				break
			}

			// The long table likely matches 7 bytes.
			if uint32(cv) == uint32(valLong) && w.usable(candidateL, s) {
				break
			}

			if uint32(cv) == uint32(valShort) && w.usable(candidateS, s) {
				// Try a long candidate at s+1 before settling for the short one.
				hashL = hash7(cv>>8, betterLongTableBits)
				candidateL = int(lTable[hashL])
				lTable[hashL] = uint32(s + 1)
				if uint32(cv>>8) == load32(src, candidateL) && w.usable(candidateL, s+1) {
					s++
					break
				}
				candidateL = candidateS

				break
			}

			cv = load64(src, nextS)
			s = nextS
		}

		// Extend backwards.
		lo := w.low(candidateL)
		for candidateL > lo && s > nextEmit && src[candidateL-1] == src[s-1] {
			candidateL--
			s--
		}

		base := s
		offset := base - candidateL
		s = extendMatch(src, candidateL+4, s+4, w.limit(candidateL, base))
		length := s - base

		if offset >= maxCopy2Offset && length <= 5 && repeat != offset {
			// A copy4 would cost as much as the bytes it covers.
			s = nextS + 1
			if s >= sLimit {
				goto emitRemainder
			}
			cv = load64(src, s)

			continue
		}

		lit := base - nextEmit
		size := emitCopySize(offset, length)
		if repeat == offset {
			size = emitRepeatSize(offset, length)
		}
		if d+literalHeaderSize(lit)+lit+size > dstLimit {
			return 0
		}
		d += emitLiteral(dst[d:], src[nextEmit:base])
		if repeat == offset {
			d += emitRepeat(dst[d:], offset, length)
		} else {
			d += emitCopy(dst[d:], offset, length)
			repeat = offset
		}

		nextEmit = s
		if s >= sLimit {
			goto emitRemainder
		}

		// Index the first and last positions of the match in both tables.
		index0 := base + 1
		index1 := s - 2

		cv0 := load64(src, index0)
		cv1 := load64(src, index1)
		lTable[hash7(cv0, betterLongTableBits)] = uint32(index0)
		sTable[hash4(cv0>>8, betterShortTableBits)] = uint32(index0 + 1)
		lTable[hash7(cv1, betterLongTableBits)] = uint32(index1)
		sTable[hash4(cv1>>8, betterShortTableBits)] = uint32(index1 + 1)

		// Index the long table sparsely in between, from two starting points.
		index2 := (index0 + index1 + 1) >> 1
		for index2 < index1 {
			lTable[hash7(load64(src, index0), betterLongTableBits)] = uint32(index0)
			lTable[hash7(load64(src, index2), betterLongTableBits)] = uint32(index2)
			index0 += 2
			index2 += 2
		}
		cv = load64(src, s)
	}

emitRemainder:
	if nextEmit < len(src) {
		lit := len(src) - nextEmit
		if d+literalHeaderSize(lit)+lit > dstLimit {
			return 0
		}
		d += emitLiteral(dst[d:], src[nextEmit:])
	}

	return d
}
