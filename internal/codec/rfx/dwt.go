package rfx

// Standard (non-progressive) 2-D DWT using the 5/3 LeGall wavelet in
// lifting form. Both directions share the packed subband layout documented
// in rfx.go:
//
//	HL1 (32x32) @0, LH1 (32x32) @1024, HH1 (32x32) @2048,
//	HL2 (16x16) @3072, LH2 (16x16) @3328, HH2 (16x16) @3584,
//	HL3 (8x8)   @3840, LH3 (8x8)   @3904, HH3 (8x8)   @3968, LL3 (8x8) @4032
//
// Forward and inverse both operate in place over a 4096-element buffer
// supplied by the caller (Encoder's fixed scratch arrays; see
// tile.go), using one 4096-element temp buffer for the intermediate
// vertical/horizontal pass.
//
// Forward lifting, per MS-RDPRFX (mirror boundaries: s[2w] -> s[2w-2] on
// the right edge, and L[0] takes H[-1] = H[0] so it degenerates to
// s[0] + H[0]):
//
//	H[n] = (s[2n+1] - ((s[2n]+s[2n+2]) >> 1)) >> 1
//	L[n] = s[2n] + ((H[n-1]+H[n]) >> 1)
//
// The trailing >>1 on H drops a bit no later step recovers, so the
// transform is lossy by design. The inverse below is the reference
// decoder's reconstruction (even[n] = L[n] - ((H[n-1]+H[n]+1)>>1),
// odd[n] = (H[n]<<1) + ((even[n]+even[n+1])>>1)), which recovers the
// input to within a small bounded error rather than exactly; see
// DESIGN.md for the round-trip error discussion.

// Prescale converts an 8-bit spatial plane into the fixed-point samples the
// level-1 lifting step expects: (src-128)<<5, the fixed "DWT factor"
// pre-scale. plane must have TilePixels bytes in row-major 64x64 order.
func Prescale(plane []byte, buffer []int16) {
	for i := 0; i < TilePixels && i < len(plane); i++ {
		buffer[i] = (int16(plane[i]) - 128) << 5
	}
}

// ForwardDWT2D performs the 3-level forward 2D DWT on a prescaled 64x64
// plane held in buffer (see Prescale), writing the packed subband layout in
// place. temp must have length >= TilePixels.
func ForwardDWT2D(buffer, temp []int16) []int16 {
	if len(buffer) < TilePixels || len(temp) < TilePixels {
		return nil
	}

	// Level 1: full 64x64 tile -> HL1/LH1/HH1 (@0/1024/2048) + LL1 (@3072).
	fdwt2DBlock(buffer, temp, 0, 32)
	// Level 2: LL1 (32x32 @3072) -> HL2/LH2/HH2 (@3072/3328/3584) + LL2 (@3840).
	fdwt2DBlock(buffer, temp, 3072, 16)
	// Level 3: LL2 (16x16 @3840) -> HL3/LH3/HH3 (@3840/3904/3968) + LL3 (@4032).
	fdwt2DBlock(buffer, temp, 3840, 8)

	return buffer
}

// fdwt2DBlock performs one level of forward 2D DWT. The total x total
// spatial block (total = 2*size) is read in row-major order from
// buffer[offset : offset+4*size*size]; the result is written back into the
// same region as HL (offset), LH (offset+size2), HH (offset+2*size2), LL
// (offset+3*size2) -- the exact reverse of idwt2DBlock's layout, and
// applied in the opposite pass order (vertical first, then horizontal,
// since the inverse does horizontal then vertical).
func fdwt2DBlock(buffer, temp []int16, offset, size int) {
	size2 := size * size
	hlOfs := offset
	lhOfs := offset + size2
	hhOfs := offset + 2*size2
	llOfs := offset + 3*size2

	total := size * 2

	// Vertical pass: split each of the `total` columns into a low half
	// (size samples) and a high half (size samples). temp holds the
	// low-region (rows 0..size-1) followed by the high-region, both
	// `total`-wide and row-major.
	lRegion := 0
	hRegion := total * size
	for x := 0; x < total; x++ {
		fdwt1DCol(buffer, offset+x, total, size, temp, lRegion+x, hRegion+x, total)
	}

	// Horizontal pass: lift each row of the low-region into LL/HL, each row
	// of the high-region into LH/HH.
	for y := 0; y < size; y++ {
		fdwt1DRow(temp[lRegion+y*total:], buffer[llOfs+y*size:], buffer[hlOfs+y*size:], size)
		fdwt1DRow(temp[hRegion+y*total:], buffer[lhOfs+y*size:], buffer[hhOfs+y*size:], size)
	}
}

// fdwt1DRow lifts a contiguous row src of length 2*size into low[0:size]
// (L) and high[0:size] (H); see the package doc comment for the exact
// formulae. Mirror boundaries: s[2w] mirrors to s[2w-2] (right edge),
// L[0] = s[0] + H[0] (left edge).
func fdwt1DRow(src []int16, low, high []int16, size int) {
	total := size * 2
	for n := 0; n < size; n++ {
		s2n := src[2*n]
		s2n1 := src[2*n+1]
		var s2n2 int16
		if 2*n+2 < total {
			s2n2 = src[2*n+2]
		} else {
			s2n2 = s2n
		}
		high[n] = (s2n1 - ((s2n + s2n2) >> 1)) >> 1
	}
	low[0] = src[0] + high[0]
	for n := 1; n < size; n++ {
		low[n] = src[2*n] + ((high[n-1] + high[n]) >> 1)
	}
}

// fdwt1DCol is fdwt1DRow's strided column counterpart: the input column has
// `2*size` samples at src[srcOfs + n*stride], and low/high are written at
// dst[lOfs/hOfs + n*dstStride].
func fdwt1DCol(src []int16, srcOfs, stride, size int, dst []int16, lOfs, hOfs, dstStride int) {
	total := size * 2
	for n := 0; n < size; n++ {
		s2n := src[srcOfs+2*n*stride]
		s2n1 := src[srcOfs+(2*n+1)*stride]
		var s2n2 int16
		if 2*n+2 < total {
			s2n2 = src[srcOfs+(2*n+2)*stride]
		} else {
			s2n2 = s2n
		}
		dst[hOfs+n*dstStride] = (s2n1 - ((s2n + s2n2) >> 1)) >> 1
	}
	dst[lOfs] = src[srcOfs] + dst[hOfs]
	for n := 1; n < size; n++ {
		hPrev := dst[hOfs+(n-1)*dstStride]
		hn := dst[hOfs+n*dstStride]
		dst[lOfs+n*dstStride] = src[srcOfs+2*n*stride] + ((hPrev + hn) >> 1)
	}
}

// InverseDWT2D performs the 3-level inverse 2D DWT on tile coefficients,
// following the reference decoder's reconstruction. Kept as the round-trip
// verification helper for this package's tests; not part of the public API.
// temp must have length >= TilePixels.
func InverseDWT2D(buffer, temp []int16) []int16 {
	if len(buffer) < TilePixels || len(temp) < TilePixels {
		return nil
	}

	// Level 3: 8x8 -> 16x16 (HL3/LH3/HH3/LL3 -> LL2 in place).
	idwt2DBlock(buffer, temp, 3840, 8)
	// Level 2: 16x16 -> 32x32 (HL2/LH2/HH2/LL2 -> LL1 in place).
	idwt2DBlock(buffer, temp, 3072, 16)
	// Level 1: 32x32 -> 64x64 (HL1/LH1/HH1/LL1 -> full spatial tile).
	idwt2DBlock(buffer, temp, 0, 32)

	return buffer
}

// idwt2DBlock performs one level of inverse 2D DWT: horizontal pass first
// (undoing the forward's horizontal pass), then vertical.
func idwt2DBlock(buffer, temp []int16, offset, size int) {
	size2 := size * size
	hlOfs := offset
	lhOfs := offset + size2
	hhOfs := offset + 2*size2
	llOfs := offset + 3*size2

	total := size * 2

	lDst := 0
	hDst := total * size
	for y := 0; y < size; y++ {
		idwt1DRow(buffer[llOfs+y*size:], buffer[hlOfs+y*size:], temp[lDst:], size)
		lDst += total
		idwt1DRow(buffer[lhOfs+y*size:], buffer[hhOfs+y*size:], temp[hDst:], size)
		hDst += total
	}

	lSrc := 0
	hSrc := total * size
	for x := 0; x < total; x++ {
		idwt1DCol(temp, lSrc+x, hSrc+x, buffer, offset+x, total, size)
	}
}

// idwt1DRow performs horizontal 1D inverse DWT, reconstructing a row of
// 2*halfSize samples from low[0:halfSize] and high[0:halfSize]:
//
//	even[n] = low[n] - ((high[n-1]+high[n]+1)>>1)
//	odd[n]  = (high[n]<<1) + ((even[n]+even[n+1])>>1)
//
// Mirror boundaries: high[-1] -> high[0], even[halfSize] -> even[halfSize-1].
func idwt1DRow(low, high []int16, dst []int16, halfSize int) {
	dst[0] = low[0] - ((high[0] + high[0] + 1) >> 1)
	for n := 1; n < halfSize; n++ {
		dst[n*2] = low[n] - ((high[n-1] + high[n] + 1) >> 1)
	}

	for n := 0; n < halfSize-1; n++ {
		dst[n*2+1] = (high[n] << 1) + ((dst[n*2] + dst[n*2+2]) >> 1)
	}
	n := halfSize - 1
	dst[n*2+1] = (high[n] << 1) + ((dst[n*2] + dst[n*2]) >> 1)
}

// idwt1DCol performs vertical 1D inverse DWT on a column; see idwt1DRow.
func idwt1DCol(src []int16, lOfs, hOfs int, dst []int16, dstOfs, stride, halfSize int) {
	l0 := src[lOfs]
	h0 := src[hOfs]
	dst[dstOfs] = l0 - ((h0 + h0 + 1) >> 1)

	for n := 1; n < halfSize; n++ {
		ln := src[lOfs+n*stride]
		hPrev := src[hOfs+(n-1)*stride]
		hn := src[hOfs+n*stride]
		dst[dstOfs+n*2*stride] = ln - ((hPrev + hn + 1) >> 1)
	}

	for n := 0; n < halfSize-1; n++ {
		hn := src[hOfs+n*stride]
		en := dst[dstOfs+n*2*stride]
		enNext := dst[dstOfs+(n*2+2)*stride]
		dst[dstOfs+(n*2+1)*stride] = (hn << 1) + ((en + enNext) >> 1)
	}

	n := halfSize - 1
	hn := src[hOfs+n*stride]
	en := dst[dstOfs+n*2*stride]
	dst[dstOfs+(n*2+1)*stride] = (hn << 1) + ((en + en) >> 1)
}
