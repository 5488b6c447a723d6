package rfx

// Subband layout for 64×64 tile coefficient buffer (linear/packed format):
// See rfx.go for offset constants (OffsetHL1, OffsetLH1, etc.)
//
// Quantization shift: s = (qnibble - 6) + 5, i.e. the quant-table shift
// plus the fixed DWT scale of 5 baked into Prescale's "<<5".
// Forward quantize rounds toward nearest: (c + (1<<(s-1))) >> s. The
// inverse (Dequantize) is the left-shift c << s, kept for round-trip
// tests.
//
// Quantization value ordering (indices 0-9 in quant array):
// [0]=LL3, [1]=LH3, [2]=HL3, [3]=HH3, [4]=LH2, [5]=HL2, [6]=HH2, [7]=LH1, [8]=HL1, [9]=HH1

// quantShift returns the effective right-shift for a quant nibble.
func quantShift(qnibble uint8) int {
	return int(qnibble) - 6 + 5
}

// Quantize applies forward quantization to DWT coefficients in place,
// per sub-band. The buffer uses the linear/packed layout
// documented in rfx.go.
func Quantize(buffer []int16, quant *SubbandQuant) {
	if quant == nil || len(buffer) < TilePixels {
		return
	}

	quantBlock(buffer[OffsetHL1:OffsetHL1+SizeL1], quant.HL1)
	quantBlock(buffer[OffsetLH1:OffsetLH1+SizeL1], quant.LH1)
	quantBlock(buffer[OffsetHH1:OffsetHH1+SizeL1], quant.HH1)

	quantBlock(buffer[OffsetHL2:OffsetHL2+SizeL2], quant.HL2)
	quantBlock(buffer[OffsetLH2:OffsetLH2+SizeL2], quant.LH2)
	quantBlock(buffer[OffsetHH2:OffsetHH2+SizeL2], quant.HH2)

	quantBlock(buffer[OffsetHL3:OffsetHL3+SizeL3], quant.HL3)
	quantBlock(buffer[OffsetLH3:OffsetLH3+SizeL3], quant.LH3)
	quantBlock(buffer[OffsetHH3:OffsetHH3+SizeL3], quant.HH3)
	quantBlock(buffer[OffsetLL3:OffsetLL3+SizeL3], quant.LL3)
}

// quantBlock rounds and right-shifts a contiguous block of coefficients.
func quantBlock(data []int16, qnibble uint8) {
	s := quantShift(qnibble)
	if s <= 0 {
		return
	}
	round := int16(1) << (s - 1)
	for i := range data {
		data[i] = (data[i] + round) >> uint(s)
	}
}

// QuantizeRE applies forward quantization to a Reduce-Extrapolate coefficient
// buffer in place, using the RE packed layout offsets (see dwt_re.go).
func QuantizeRE(buffer []int16, quant *SubbandQuant) {
	if quant == nil || len(buffer) < TilePixels {
		return
	}

	quantBlock(buffer[OffsetHL1RE:OffsetHL1RE+SizeL1HLRE], quant.HL1)
	quantBlock(buffer[OffsetLH1RE:OffsetLH1RE+SizeL1HLRE], quant.LH1)
	quantBlock(buffer[OffsetHH1RE:OffsetHH1RE+SizeL1HHRE], quant.HH1)

	quantBlock(buffer[OffsetHL2RE:OffsetHL2RE+SizeL2HLRE], quant.HL2)
	quantBlock(buffer[OffsetLH2RE:OffsetLH2RE+SizeL2HLRE], quant.LH2)
	quantBlock(buffer[OffsetHH2RE:OffsetHH2RE+SizeL2HHRE], quant.HH2)

	quantBlock(buffer[OffsetHL3RE:OffsetHL3RE+SizeL3HLRE], quant.HL3)
	quantBlock(buffer[OffsetLH3RE:OffsetLH3RE+SizeL3HLRE], quant.LH3)
	quantBlock(buffer[OffsetHH3RE:OffsetHH3RE+SizeL3HHRE], quant.HH3)
	quantBlock(buffer[OffsetLL3RE:OffsetLL3RE+SizeLL3RE], quant.LL3)
}

// DequantizeRE is QuantizeRE's inverse, kept for round-trip tests.
func DequantizeRE(buffer []int16, quant *SubbandQuant) {
	if quant == nil || len(buffer) < TilePixels {
		return
	}

	dequantBlock(buffer[OffsetHL1RE:OffsetHL1RE+SizeL1HLRE], quant.HL1)
	dequantBlock(buffer[OffsetLH1RE:OffsetLH1RE+SizeL1HLRE], quant.LH1)
	dequantBlock(buffer[OffsetHH1RE:OffsetHH1RE+SizeL1HHRE], quant.HH1)

	dequantBlock(buffer[OffsetHL2RE:OffsetHL2RE+SizeL2HLRE], quant.HL2)
	dequantBlock(buffer[OffsetLH2RE:OffsetLH2RE+SizeL2HLRE], quant.LH2)
	dequantBlock(buffer[OffsetHH2RE:OffsetHH2RE+SizeL2HHRE], quant.HH2)

	dequantBlock(buffer[OffsetHL3RE:OffsetHL3RE+SizeL3HLRE], quant.HL3)
	dequantBlock(buffer[OffsetLH3RE:OffsetLH3RE+SizeL3HLRE], quant.LH3)
	dequantBlock(buffer[OffsetHH3RE:OffsetHH3RE+SizeL3HHRE], quant.HH3)
	dequantBlock(buffer[OffsetLL3RE:OffsetLL3RE+SizeLL3RE], quant.LL3)
}

// Dequantize applies inverse quantization to DWT coefficients.
// The buffer uses linear/packed layout matching FreeRDP.
func Dequantize(buffer []int16, quant *SubbandQuant) {
	if quant == nil || len(buffer) < TilePixels {
		return
	}

	// Level 1 subbands (32×32 = 1024 each)
	dequantBlock(buffer[OffsetHL1:OffsetHL1+SizeL1], quant.HL1)
	dequantBlock(buffer[OffsetLH1:OffsetLH1+SizeL1], quant.LH1)
	dequantBlock(buffer[OffsetHH1:OffsetHH1+SizeL1], quant.HH1)

	// Level 2 subbands (16×16 = 256 each)
	dequantBlock(buffer[OffsetHL2:OffsetHL2+SizeL2], quant.HL2)
	dequantBlock(buffer[OffsetLH2:OffsetLH2+SizeL2], quant.LH2)
	dequantBlock(buffer[OffsetHH2:OffsetHH2+SizeL2], quant.HH2)

	// Level 3 subbands (8×8 = 64 each)
	dequantBlock(buffer[OffsetHL3:OffsetHL3+SizeL3], quant.HL3)
	dequantBlock(buffer[OffsetLH3:OffsetLH3+SizeL3], quant.LH3)
	dequantBlock(buffer[OffsetHH3:OffsetHH3+SizeL3], quant.HH3)
	dequantBlock(buffer[OffsetLL3:OffsetLL3+SizeL3], quant.LL3)
}

// dequantBlock applies dequantization shift to a contiguous block.
func dequantBlock(data []int16, quantValue uint8) {
	shift := quantShift(quantValue)
	if shift <= 0 {
		return
	}
	for i := range data {
		data[i] <<= uint(shift)
	}
}
