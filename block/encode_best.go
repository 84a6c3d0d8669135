package block

const (
	bestLongTableBits  = 19
	bestShortTableBits = 16

	// bestInputMargin leaves room for probing two positions past s.
	bestInputMargin = inputMargin + 2

	// bestMaxSkip caps how far the search advances after a failed probe.
	bestMaxSkip = 64
)

func (e *Encoder) bestTables() (lTable, sTable []uint64) {
	if e.bestL == nil {
		e.bestL = make([]uint64, 1<<bestLongTableBits)
		e.bestS = make([]uint64, 1<<bestShortTableBits)
	}

	return e.bestL, e.bestS
}

// Best table entries hold the latest position in the low 32 bits and the one
// before it in the high 32 bits.
func getCur(x uint64) int  { return int(x & 0xffffffff) }
func getPrev(x uint64) int { return int(x >> 32) }

// bestMatch is a scored match candidate of the best encoder.
type bestMatch struct {
	cand   int
	s      int
	length int
	score  int
	rep    bool
}

// better reports whether b should replace a as the chosen match.
//
// Scores are normalized to a common start by adding the other match's
// position. An exact tie keeps a unless only b reuses the repeat offset.
func (a bestMatch) better(b bestMatch) bool {
	if b.length == 0 {
		return false
	}
	if a.length == 0 {
		return true
	}
	as := a.score + b.s
	bs := b.score + a.s
	if as != bs {
		return bs > as
	}

	return b.rep && !a.rep
}

// encodeBest encodes src[start:] into dst, scoring up to two candidates from
// each of a long table of 8-byte hashes and a short table of 4-byte hashes at
// several nearby positions. src[:start] holds the bytes of dict, if any.
//
// It returns 0 when the block does not compress below
// len - len/32 - 5 bytes.
func (e *Encoder) encodeBest(dst, src []byte, start int, dict *Dict) (d int) {
	blockLen := len(src) - start
	if blockLen < minNonLiteralBlockSize {
		return 0
	}

	lTable, sTable := e.bestTables()
	if dict != nil {
		seedL, seedS := dict.bestSeed()
		copy(lTable, seedL)
		copy(sTable, seedS)
	} else {
		clear(lTable)
		clear(sTable)
	}

	w := window{start: start, end: len(src)}
	sLimit := len(src) - bestInputMargin
	dstLimit := blockLen - blockLen>>5 - 5

	nextEmit := start
	s := start + 1
	repeat, haveRepeat := 1, false
	if dict != nil {
		s = start
		repeat, haveRepeat = start-dict.repeat, true
	}
	cv := load64(src, s)

	var best bestMatch

	score := func(m bestMatch) int {
		// Bytes that must be emitted as literals before the match count against it.
		score := m.length - m.s
		if nextEmit == m.s {
			score++
		}
		offset := m.s - m.cand
		if m.rep && haveRepeat {
			return score - emitRepeatSize(offset, m.length)
		}

		return score - emitCopySize(offset, m.length)
	}

	matchAt := func(cand, s int, first uint32, rep bool) bestMatch {
		if best.length != 0 && best.s-best.cand == s-cand {
			// Same offset as the current best, no need to test again.
			return bestMatch{}
		}
		if cand < 0 || cand >= s || load32(src, cand) != first || !w.usable(cand, s) {
			return bestMatch{}
		}
		end := extendMatch(src, cand+4, s+4, w.limit(cand, s))
		m := bestMatch{cand: cand, s: s, length: end - s, rep: rep}
		m.score = score(m)
		if m.score <= -m.s {
			// No savings over literals.
			m.length = 0
		}

		return m
	}

	consider := func(m bestMatch) {
		if best.better(m) {
			best = m
		}
	}

	for {
		best = bestMatch{}
		for {
			nextS := (s-nextEmit)>>8 + 1
			if nextS > bestMaxSkip {
				nextS = s + bestMaxSkip
			} else {
				nextS += s
			}
			if nextS > sLimit {
				goto emitRemainder
			}
			hashL := hash8(cv, bestLongTableBits)
			hashS := hash4(cv, bestShortTableBits)
			candidateL := lTable[hashL]
			candidateS := sTable[hashS]

			consider(matchAt(getCur(candidateL), s, uint32(cv), false))
			consider(matchAt(getPrev(candidateL), s, uint32(cv), false))
			consider(matchAt(getCur(candidateS), s, uint32(cv), false))
			consider(matchAt(getPrev(candidateS), s, uint32(cv), false))

			if repeat <= s {
				consider(matchAt(s-repeat+1, s+1, uint32(cv>>8), true))
			}

			if best.length > 0 {
				// Probe s+1.
				s1 := s + 1
				cv1 := load64(src, s1)
				nextShort := sTable[hash4(cv>>8, bestShortTableBits)]
				nextLong := lTable[hash8(cv1, bestLongTableBits)]
				consider(matchAt(getCur(nextShort), s1, uint32(cv1), false))
				consider(matchAt(getPrev(nextShort), s1, uint32(cv1), false))
				consider(matchAt(getCur(nextLong), s1, uint32(cv1), false))
				consider(matchAt(getPrev(nextLong), s1, uint32(cv1), false))

				// Probe s+2, including the repeat offset.
				s2 := s + 2
				cv2 := load64(src, s2)
				nextShort = sTable[hash4(cv1>>8, bestShortTableBits)]
				nextLong = lTable[hash8(cv2, bestLongTableBits)]
				if repeat <= s2 {
					consider(matchAt(s2-repeat, s2, uint32(cv2), true))
				}
				consider(matchAt(getCur(nextShort), s2, uint32(cv2), false))
				consider(matchAt(getPrev(nextShort), s2, uint32(cv2), false))
				consider(matchAt(getCur(nextLong), s2, uint32(cv2), false))
				consider(matchAt(getPrev(nextLong), s2, uint32(cv2), false))

				// Look for a match ending where the best one ends, allowing a few
				// mismatching bytes at its start; backward extension recovers them.
				const skipBeginning = 2
				const skipEnd = 1
				if sAt := best.s + best.length - skipEnd; sAt < sLimit {
					sBack := best.s + skipBeginning - skipEnd
					backL := best.length - skipBeginning
					cvBack := load64(src, sBack)
					next := lTable[hash8(load64(src, sAt), bestLongTableBits)]
					if checkAt := getCur(next) - backL; checkAt > 0 {
						consider(matchAt(checkAt, sBack, uint32(cvBack), false))
					}
					if checkAt := getPrev(next) - backL; checkAt > 0 {
						consider(matchAt(checkAt, sBack, uint32(cvBack), false))
					}
				}
			}

			lTable[hashL] = uint64(s) | candidateL<<32
			sTable[hashS] = uint64(s) | candidateS<<32

			if best.length > 0 {
				break
			}

			cv = load64(src, nextS)
			s = nextS
		}

		// Extend backwards; a repeat keeps its offset either way.
		s = best.s
		if !best.rep {
			lo := w.low(best.cand)
			for best.cand > lo && s > nextEmit && src[best.cand-1] == src[s-1] {
				best.cand--
				best.length++
				s--
			}
		}

		base := s
		offset := s - best.cand
		s += best.length

		if offset >= maxCopy2Offset && best.length <= 5 && !best.rep {
			// A copy4 would cost as much as the bytes it covers.
			s = best.s + 1
			if s >= sLimit {
				goto emitRemainder
			}
			cv = load64(src, s)

			continue
		}

		lit := base - nextEmit
		useRepeat := best.rep && haveRepeat
		size := emitCopySize(offset, best.length)
		if useRepeat {
			size = emitRepeatSize(offset, best.length)
		}
		if d+literalHeaderSize(lit)+lit+size > dstLimit {
			return 0
		}
		d += emitLiteral(dst[d:], src[nextEmit:base])
		if useRepeat {
			d += emitRepeat(dst[d:], offset, best.length)
		} else {
			d += emitCopy(dst[d:], offset, best.length)
		}
		repeat, haveRepeat = offset, true

		nextEmit = s
		if s >= sLimit {
			goto emitRemainder
		}

		// Index every position covered by the match.
		for i := best.s + 1; i < s; i++ {
			cv0 := load64(src, i)
			long0 := hash8(cv0, bestLongTableBits)
			short0 := hash4(cv0, bestShortTableBits)
			lTable[long0] = uint64(i) | lTable[long0]<<32
			sTable[short0] = uint64(i) | sTable[short0]<<32
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
