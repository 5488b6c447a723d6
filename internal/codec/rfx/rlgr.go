package rfx

import "math/bits"

// RLGREncode adaptively entropy-codes data (a full 4096-coefficient tile
// component, post quantize/linearize/differential) into out using RLGR1 or
// RLGR3 (MS-RDPRFX 3.1.8.1.7.3). Returns the number of bytes written, or
// ErrBufferOverflow if out is exhausted mid-stream.
//
// This is the forward counterpart of RLGRDecode below; both share the same
// adaptive-parameter update rules so that RLGRDecode(RLGREncode(x)) == x for
// every coefficient array.
func RLGREncode(data []int16, mode int, out []byte) (int, error) {
	bw := NewBitWriter(out)

	kp := uint32(1 << LSGR)
	krp := uint32(1 << LSGR)

	n := len(data)
	idx := 0

	for idx < n {
		k := kp >> LSGR

		if k != 0 {
			// Run-length mode: count the zero run starting at idx.
			zeroRun := 0
			for idx+zeroRun < n && data[idx+zeroRun] == 0 {
				zeroRun++
			}
			reachedEnd := idx+zeroRun >= n
			remaining := zeroRun

			for remaining >= (1 << k) {
				if err := bw.WriteBit(0); err != nil {
					return 0, err
				}
				remaining -= 1 << k
				kp += UP_GR
				if kp > KPMAX {
					kp = KPMAX
				}
				k = kp >> LSGR
			}

			if err := bw.WriteBit(1); err != nil {
				return 0, err
			}
			if k > 0 {
				if err := bw.WriteBits(uint32(remaining), uint(k)); err != nil {
					return 0, err
				}
			}

			idx += zeroRun
			if reachedEnd {
				break
			}

			v := data[idx]
			sign := uint32(0)
			mag := uint32(v)
			if v < 0 {
				sign = 1
				mag = uint32(-int32(v))
			}
			if err := bw.WriteBit(sign); err != nil {
				return 0, err
			}
			if err := encodeGR(bw, mag-1, &krp); err != nil {
				return 0, err
			}

			if kp >= DN_GR {
				kp -= DN_GR
			} else {
				kp = 0
			}
			idx++

		} else if mode == RLGR1 {
			v := data[idx]
			m := embedSign(v)

			if err := encodeGR(bw, m, &krp); err != nil {
				return 0, err
			}

			if m == 0 {
				kp += UQ_GR
				if kp > KPMAX {
					kp = KPMAX
				}
			} else {
				if kp >= DQ_GR {
					kp -= DQ_GR
				} else {
					kp = 0
				}
			}
			idx++

		} else {
			// RLGR3: batch two coefficients.
			v1 := data[idx]
			var v2 int16
			if idx+1 < n {
				v2 = data[idx+1]
			}
			m1 := embedSign(v1)
			m2 := embedSign(v2)
			sum := m1 + m2

			if err := encodeGR(bw, sum, &krp); err != nil {
				return 0, err
			}

			nbits := 0
			if sum > 0 {
				nbits = bits.Len32(sum)
			}
			if nbits > 0 {
				if err := bw.WriteBits(m1, uint(nbits)); err != nil {
					return 0, err
				}
			}

			if m1 != 0 && m2 != 0 {
				if kp >= 2*DQ_GR {
					kp -= 2 * DQ_GR
				} else {
					kp = 0
				}
			} else if m1 == 0 && m2 == 0 {
				kp += 2 * UQ_GR
				if kp > KPMAX {
					kp = KPMAX
				}
			}

			if idx+1 < n {
				idx += 2
			} else {
				idx++
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return bw.Len(), nil
}

// embedSign maps a signed coefficient to the unsigned "2|v| - sign" form used
// by both RLGR1's GR mode and RLGR3's paired GR mode.
func embedSign(v int16) uint32 {
	if v == 0 {
		return 0
	}
	if v > 0 {
		return uint32(v) * 2
	}
	return uint32(-int32(v))*2 - 1
}

// unembedSign is the inverse of embedSign.
func unembedSign(m uint32) int16 {
	if m == 0 {
		return 0
	}
	if m&1 == 0 {
		return int16(m >> 1)
	}
	return -int16((m + 1) >> 1)
}

// encodeGR writes value as a Golomb-Rice code using the adaptive parameter
// krp (kr = krp>>LSGR bits of remainder, preceded by a unary quotient), then
// updates krp per the MS-RDPRFX adaptation rule.
func encodeGR(bw *BitWriter, value uint32, krp *uint32) error {
	kr := *krp >> LSGR
	q := value >> kr
	r := value & ((1 << kr) - 1)

	for i := uint32(0); i < q; i++ {
		if err := bw.WriteBit(1); err != nil {
			return err
		}
	}
	if err := bw.WriteBit(0); err != nil {
		return err
	}
	if kr > 0 {
		if err := bw.WriteBits(r, uint(kr)); err != nil {
			return err
		}
	}

	if q == 0 {
		if *krp >= 2 {
			*krp -= 2
		} else {
			*krp = 0
		}
	} else if q > 1 {
		*krp += q
		if *krp > KPMAX {
			*krp = KPMAX
		}
	}
	return nil
}

// RLGRDecode decodes RLGR-encoded data into a 4096-coefficient array. Kept
// only as the decode-side half of this package's round-trip tests.
// mode: RLGR1 for Y, RLGR3 for Cb/Cr.
func RLGRDecode(data []byte, mode int, output []int16) error {
	if len(output) < TilePixels {
		return ErrBufferTooSmall
	}

	for i := range output {
		output[i] = 0
	}

	if len(data) == 0 {
		return nil
	}

	bs := NewBitStream(data)

	kp := uint32(1 << LSGR)
	krp := uint32(1 << LSGR)

	idx := 0

	for idx < TilePixels && bs.RemainingBits() > 0 {
		k := kp >> LSGR

		if k != 0 {
			nIdx := bs.CountLeadingZeros()
			if bs.RemainingBits() == 0 {
				return ErrRLGRDecodeError
			}

			runLength := 0
			for i := 0; i < nIdx; i++ {
				runLength += 1 << k
				kp += UP_GR
				if kp > KPMAX {
					kp = KPMAX
				}
				k = kp >> LSGR
			}

			if k > 0 && bs.RemainingBits() >= int(k) {
				remainder := bs.ReadBits(int(k))
				runLength += int(remainder)
			}

			for i := 0; i < runLength && idx < TilePixels; i++ {
				output[idx] = 0
				idx++
			}

			if idx >= TilePixels {
				break
			}

			if bs.RemainingBits() == 0 {
				return ErrRLGRDecodeError
			}
			sign := bs.ReadBit()

			nIdx = bs.CountLeadingOnes()
			if bs.RemainingBits() == 0 && nIdx == 0 {
				return ErrRLGRDecodeError
			}

			mag := uint32(0)
			if krp>>LSGR > 0 && bs.RemainingBits() >= int(krp>>LSGR) {
				mag = bs.ReadBits(int(krp >> LSGR))
			}
			mag |= uint32(nIdx) << (krp >> LSGR)

			if nIdx == 0 {
				if krp >= 2 {
					krp -= 2
				} else {
					krp = 0
				}
			} else if nIdx > 1 {
				krp += uint32(nIdx)
				if krp > KPMAX {
					krp = KPMAX
				}
			}

			if kp >= DN_GR {
				kp -= DN_GR
			} else {
				kp = 0
			}

			value := int16(mag + 1)
			if sign != 0 {
				value = -value
			}
			output[idx] = value
			idx++

		} else if mode == RLGR1 {
			kr := krp >> LSGR
			nIdx := bs.CountLeadingOnes()
			if bs.RemainingBits() == 0 && nIdx == 0 {
				return ErrRLGRDecodeError
			}

			mag := uint32(0)
			if kr > 0 && bs.RemainingBits() >= int(kr) {
				mag = bs.ReadBits(int(kr))
			}
			mag |= uint32(nIdx) << kr

			if nIdx == 0 {
				if krp >= 2 {
					krp -= 2
				} else {
					krp = 0
				}
			} else if nIdx > 1 {
				krp += uint32(nIdx)
				if krp > KPMAX {
					krp = KPMAX
				}
			}

			value := unembedSign(mag)
			if mag == 0 {
				kp += UQ_GR
				if kp > KPMAX {
					kp = KPMAX
				}
			} else {
				if kp >= DQ_GR {
					kp -= DQ_GR
				} else {
					kp = 0
				}
			}

			output[idx] = value
			idx++

		} else {
			kr := krp >> LSGR
			nIdx := bs.CountLeadingOnes()
			if bs.RemainingBits() == 0 && nIdx == 0 {
				return ErrRLGRDecodeError
			}

			code := uint32(0)
			if kr > 0 && bs.RemainingBits() >= int(kr) {
				code = bs.ReadBits(int(kr))
			}
			code |= uint32(nIdx) << kr

			if nIdx == 0 {
				if krp >= 2 {
					krp -= 2
				} else {
					krp = 0
				}
			} else if nIdx > 1 {
				krp += uint32(nIdx)
				if krp > KPMAX {
					krp = KPMAX
				}
			}

			nIdx2 := 0
			if code > 0 {
				nIdx2 = bits.Len32(code)
			}

			var val1, val2 uint32
			if nIdx2 > 0 {
				if bs.RemainingBits() < nIdx2 {
					return ErrRLGRDecodeError
				}
				val1 = bs.ReadBits(nIdx2)
			}
			val2 = code - val1

			if val1 != 0 && val2 != 0 {
				if kp >= 2*DQ_GR {
					kp -= 2 * DQ_GR
				} else {
					kp = 0
				}
			} else if val1 == 0 && val2 == 0 {
				kp += 2 * UQ_GR
				if kp > KPMAX {
					kp = KPMAX
				}
			}

			output[idx] = unembedSign(val1)
			idx++
			if idx >= TilePixels {
				break
			}
			output[idx] = unembedSign(val2)
			idx++
		}
	}

	return nil
}
