package block

const (
	fastSmallTableBits = 14
	fastLargeTableBits = 17

	// fastSmallLimit is the largest history that uses the small table.
	fastSmallLimit = 64 << 10
)

func (e *Encoder) fastTable(histLen int) ([]uint32, uint8) {
	if histLen <= fastSmallLimit {
		if e.fastSmall == nil {
			e.fastSmall = make([]uint32, 1<<fastSmallTableBits)
		}

		return e.fastSmall, fastSmallTableBits
	}
	if e.fastLarge == nil {
		e.fastLarge = make([]uint32, 1<<fastLargeTableBits)
	}

	return e.fastLarge, fastLargeTableBits
}

// encodeFast encodes src[start:] into dst using a single table of 6-byte
// hashes. src[:start] holds the bytes of dict, if any.
//
// With snappy set no repeat codes are emitted.
//
// It returns 0 when the block does not compress below
// len - len/32 - 5 bytes; dst must hold at least that many bytes.
func (e *Encoder) encodeFast(dst, src []byte, start int, dict *Dict, snappy bool) (d int) {
	blockLen := len(src) - start
	if blockLen < minNonLiteralBlockSize {
		return 0
	}

	table, tableBits := e.fastTable(len(src))
	if dict != nil {
		copy(table, dict.fastSeed(tableBits))
	} else {
		clear(table)
	}

	w := window{start: start, end: len(src)}
	sLimit := len(src) - inputMargin
	dstLimit := blockLen - blockLen>>5 - 5

	copySize := emitCopySize
	emitCopyFn := emitCopy
	if snappy {
		copySize = emitCopyNoRepeatSize
		emitCopyFn = emitCopyNoRepeat
	}

	nextEmit := start
	// The block must start with a literal unless a dictionary precedes it.
	s := start + 1
	// The repeat offset is probed from the start, but only emitted as a
	// repeat code once the decoder knows it.
	repeat, haveRepeat := 1, false
	if dict != nil {
		s = start
		repeat, haveRepeat = start-dict.repeat, true
	}
	cv := load64(src, s)

	for {
		candidate := 0
		for {
			nextS := s + (s-nextEmit)>>6 + 4
			if nextS > sLimit {
				goto emitRemainder
			}
			hash0 := hash6(cv, tableBits)
			hash1 := hash6(cv>>8, tableBits)
			candidate = int(table[hash0])
			candidate2 := int(table[hash1])
			table[hash0] = uint32(s)
			table[hash1] = uint32(s + 1)
			hash2 := hash6(cv>>16, tableBits)

			// Check the repeat offset at s+1.
			if rc := s + 1 - repeat; !snappy && rc >= 0 && uint32(cv>>8) == load32(src, rc) && w.usable(rc, s+1) {
				base := s + 1
				lo := w.low(rc)
				for base > nextEmit && rc > lo && src[rc-1] == src[base-1] {
					rc--
					base--
				}
				end := extendMatch(src, rc+4, base+4, w.limit(rc, base))
				lit := base - nextEmit
				length := end - base

				size := emitCopySize(repeat, length)
				if haveRepeat {
					size = emitRepeatSize(repeat, length)
				}
				if d+literalHeaderSize(lit)+lit+size > dstLimit {
					return 0
				}
				d += emitLiteral(dst[d:], src[nextEmit:base])
				if haveRepeat {
					d += emitRepeat(dst[d:], repeat, length)
				} else {
					d += emitCopy(dst[d:], repeat, length)
					haveRepeat = true
				}

				s = end
				nextEmit = s
				if s >= sLimit {
					goto emitRemainder
				}
				cv = load64(src, s)

				continue
			}

			if uint32(cv) == load32(src, candidate) && w.usable(candidate, s) {
				break
			}
			candidate = int(table[hash2])
			if uint32(cv>>8) == load32(src, candidate2) && w.usable(candidate2, s+1) {
				table[hash2] = uint32(s + 2)
				candidate = candidate2
				s++

				break
			}
			table[hash2] = uint32(s + 2)
			if uint32(cv>>16) == load32(src, candidate) && w.usable(candidate, s+2) {
				s += 2
				break
			}

			cv = load64(src, nextS)
			s = nextS
		}

		// Extend backwards.
		lo := w.low(candidate)
		for candidate > lo && s > nextEmit && src[candidate-1] == src[s-1] {
			candidate--
			s--
		}

		litStart := nextEmit
		for {
			// A 4-byte match at s needs no literal before it except the first time around.
			base := s
			offset := base - candidate
			s = extendMatch(src, candidate+4, s+4, w.limit(candidate, base))
			length := s - base

			lit := base - litStart
			if d+literalHeaderSize(lit)+lit+copySize(offset, length) > dstLimit {
				return 0
			}
			d += emitLiteral(dst[d:], src[litStart:base])
			d += emitCopyFn(dst[d:], offset, length)
			repeat, haveRepeat = offset, true
			litStart = s
			nextEmit = s
			if s >= sLimit {
				goto emitRemainder
			}

			// Check for an immediate match, otherwise start search at s+1.
			x := load64(src, s-2)
			m2Hash := hash6(x, tableBits)
			currHash := hash6(x>>16, tableBits)
			candidate = int(table[currHash])
			table[m2Hash] = uint32(s - 2)
			table[currHash] = uint32(s)
			if uint32(x>>16) != load32(src, candidate) || !w.usable(candidate, s) {
				cv = load64(src, s+1)
				s++

				break
			}
		}
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
