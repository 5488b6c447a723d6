package rfx

// Reduce-Extrapolate progressive variant of the 5/3 lifting DWT, used by
// the progressive ("Pro v1") pipeline. Each level keeps an odd-length
// low-pass by extrapolating one sample past the right edge, so low and
// high band sizes differ (33/31, 17/16, 9/8) instead of the standard
// transform's even halves.
//
// Packed layout:
//
//	HL1 (31x33=1023) @0, LH1 (1023) @1023, HH1 (31x31=961) @2046,
//	HL2 (16x17=272)  @3007, LH2 (272) @3279, HH2 (16x16=256) @3551,
//	HL3 (8x9=72)     @3807, LH3 (72) @3879, HH3 (8x8=64) @3951,
//	LL3 (9x9=81)     @4015
//
// Each level's input is an n x n row-major block (n = 64, 33, 17 for
// levels 1-3); reLevelSizes(n) gives the low/high counts (33/31, 17/16,
// 9/8) and low+high == n always. Same packed-buffer reuse trick as the
// standard transform: each level's LL output overwrites the region that
// will be read as the next level's input.
//
// The lifting steps are the same as the standard transform's
// (H[n] = (s[2n+1] - ((s[2n]+s[2n+2])>>1)) >> 1, L[0] = s[0] + H[0],
// L[n] = s[2n] + ((H[n-1]+H[n]) >> 1)); only the right edge differs:
//
//   - odd axis length (33, 17): the final low coefficient pairs the last
//     sample with a virtual H computed through the mirror
//     (s[n] -> s[n-2], s[n+1] -> s[n-3]).
//   - even axis length (64): one extra low coefficient is produced from
//     the extrapolated sample s[2w] = 2*s[2w-1] - s[2w-2]; the H that
//     extrapolated pair would produce is algebraically zero, so no extra
//     high-pass value is ever stored.

// reLevelSizes returns the low-pass and high-pass band lengths the
// Reduce-Extrapolate lift produces for an axis of length n: low = n/2+1,
// high = n-low.
func reLevelSizes(n int) (low, high int) {
	low = (n >> 1) + 1
	high = n - low
	return
}

// ForwardDWTReduceExtrapolate performs the 3-level forward
// Reduce-Extrapolate 2D DWT on a prescaled 64x64 plane (see Prescale),
// writing the packed subband layout above in place. temp must have length
// >= TilePixels.
func ForwardDWTReduceExtrapolate(buffer, temp []int16) []int16 {
	if len(buffer) < TilePixels || len(temp) < TilePixels {
		return nil
	}

	fre2DBlock(buffer, temp, 0, 64)    // level 1: 64 -> HL1/LH1/HH1 + LL1(33x33)@3007
	fre2DBlock(buffer, temp, 3007, 33) // level 2: 33 -> HL2/LH2/HH2 + LL2(17x17)@3807
	fre2DBlock(buffer, temp, 3807, 17) // level 3: 17 -> HL3/LH3/HH3 + LL3(9x9)@4015

	return buffer
}

// fre2DBlock performs one level of the forward Reduce-Extrapolate 2D DWT.
// The n x n spatial input is read row-major from buffer[base:base+n*n];
// the four sub-bands are written back in place: HL@base, LH@base+low*high,
// HH@base+2*low*high, LL@base+2*low*high+high*high (size low*low).
func fre2DBlock(buffer, temp []int16, base, n int) {
	low, high := reLevelSizes(n)

	hlSize := low * high
	hhSize := high * high

	hlOfs := base
	lhOfs := base + hlSize
	hhOfs := base + 2*hlSize
	llOfs := hhOfs + hhSize

	// Vertical pass: each of the n columns (height n) splits into a
	// low-vertical region (low rows) and a high-vertical region (high
	// rows), both n-wide and row-major, stored consecutively in temp.
	lRegion := 0
	hRegion := low * n
	for x := 0; x < n; x++ {
		reForwardLiftCol(buffer, base+x, n, n, temp, lRegion+x, hRegion+x, n)
	}

	// Horizontal pass: lift each row of the low-vertical region (width n)
	// into LL (width low) + HL (width high); each row of the high-vertical
	// region into LH (width low) + HH (width high).
	for y := 0; y < low; y++ {
		llRow := buffer[llOfs+y*low : llOfs+y*low+low]
		hlRow := buffer[hlOfs+y*high : hlOfs+y*high+high]
		reForwardLiftRow(temp[lRegion+y*n:], n, llRow, hlRow)
	}
	for y := 0; y < high; y++ {
		lhRow := buffer[lhOfs+y*low : lhOfs+y*low+low]
		hhRow := buffer[hhOfs+y*high : hhOfs+y*high+high]
		reForwardLiftRow(temp[hRegion+y*n:], n, lhRow, hhRow)
	}
}

// reForwardLiftRow lifts a contiguous row src of n samples into low
// (length (n>>1)+1) and high (length n-len(low)) using the lifting steps
// in the package doc comment.
func reForwardLiftRow(src []int16, n int, low, high []int16) {
	highCount := len(high)
	m := 2 * highCount

	for k := 0; k < highCount; k++ {
		high[k] = (src[2*k+1] - ((src[2*k] + src[2*k+2]) >> 1)) >> 1
	}
	low[0] = src[0] + high[0]
	for k := 1; k < highCount; k++ {
		low[k] = src[2*k] + ((high[k-1] + high[k]) >> 1)
	}

	if n-m == 1 {
		// Odd axis: virtual H through the mirror (s[n] -> s[n-2],
		// s[n+1] -> s[n-3]).
		hv := (src[m-1] - ((src[m] + src[m-2]) >> 1)) >> 1
		low[highCount] = src[m] + ((high[highCount-1] + hv) >> 1)
	} else {
		// Even axis: extrapolate s[2w] = 2*s[2w-1] - s[2w-2] and emit one
		// extra low coefficient from it.
		low[highCount] = src[m] + (high[highCount-1] >> 1)
		ext := 2*src[m+1] - src[m]
		hv := (src[m+1] - ((ext + src[m]) >> 1)) >> 1
		low[highCount+1] = ext + (hv >> 1)
	}
}

// reForwardLiftCol is reForwardLiftRow's strided column counterpart.
func reForwardLiftCol(src []int16, srcOfs, stride, n int, dst []int16, lOfs, hOfs, dstStride int) {
	_, highCount := reLevelSizes(n)
	m := 2 * highCount

	for k := 0; k < highCount; k++ {
		s2k := src[srcOfs+2*k*stride]
		s2k1 := src[srcOfs+(2*k+1)*stride]
		s2k2 := src[srcOfs+(2*k+2)*stride]
		dst[hOfs+k*dstStride] = (s2k1 - ((s2k + s2k2) >> 1)) >> 1
	}
	dst[lOfs] = src[srcOfs] + dst[hOfs]
	for k := 1; k < highCount; k++ {
		hPrev := dst[hOfs+(k-1)*dstStride]
		hk := dst[hOfs+k*dstStride]
		dst[lOfs+k*dstStride] = src[srcOfs+2*k*stride] + ((hPrev + hk) >> 1)
	}

	hLast := dst[hOfs+(highCount-1)*dstStride]
	if n-m == 1 {
		sm := src[srcOfs+m*stride]
		hv := (src[srcOfs+(m-1)*stride] - ((sm + src[srcOfs+(m-2)*stride]) >> 1)) >> 1
		dst[lOfs+highCount*dstStride] = sm + ((hLast + hv) >> 1)
	} else {
		sm := src[srcOfs+m*stride]
		sm1 := src[srcOfs+(m+1)*stride]
		dst[lOfs+highCount*dstStride] = sm + (hLast >> 1)
		ext := 2*sm1 - sm
		hv := (sm1 - ((ext + sm) >> 1)) >> 1
		dst[lOfs+(highCount+1)*dstStride] = ext + (hv >> 1)
	}
}

// InverseDWTReduceExtrapolate performs the 3-level inverse
// Reduce-Extrapolate 2D DWT. Kept only as this package's own round-trip
// test helper (there is no shipped decoder): no decode-side counterpart of
// this variant exists in the source tree, so the inverse here is the
// analytic inverse of the forward's floor-rounded lifting -- exact on even
// samples and the extrapolated tail, within one unit on odd samples (the
// bit the forward's trailing >>1 on H discards). temp must have length >=
// TilePixels.
func InverseDWTReduceExtrapolate(buffer, temp []int16) []int16 {
	if len(buffer) < TilePixels || len(temp) < TilePixels {
		return nil
	}

	ire2DBlock(buffer, temp, 3807, 17)
	ire2DBlock(buffer, temp, 3007, 33)
	ire2DBlock(buffer, temp, 0, 64)

	return buffer
}

func ire2DBlock(buffer, temp []int16, base, n int) {
	low, high := reLevelSizes(n)
	hlSize := low * high
	hhSize := high * high

	hlOfs := base
	lhOfs := base + hlSize
	hhOfs := base + 2*hlSize
	llOfs := hhOfs + hhSize

	// Horizontal pass: reconstruct the low-vertical and high-vertical
	// regions (each n-wide) from LL/HL and LH/HH respectively.
	lRegion := 0
	hRegion := low * n
	for y := 0; y < low; y++ {
		llRow := buffer[llOfs+y*low : llOfs+y*low+low]
		hlRow := buffer[hlOfs+y*high : hlOfs+y*high+high]
		reInverseLiftRow(llRow, hlRow, n, temp[lRegion+y*n:])
	}
	for y := 0; y < high; y++ {
		lhRow := buffer[lhOfs+y*low : lhOfs+y*low+low]
		hhRow := buffer[hhOfs+y*high : hhOfs+y*high+high]
		reInverseLiftRow(lhRow, hhRow, n, temp[hRegion+y*n:])
	}

	// Vertical pass: reconstruct each of the n columns from the low/high
	// vertical regions.
	for x := 0; x < n; x++ {
		reInverseLiftCol(temp, lRegion+x, hRegion+x, n, low, high, buffer, base+x, n)
	}
}

// reInverseLiftRow undoes reForwardLiftRow: even samples and the
// extrapolated tail invert the forward's floor-rounded update exactly;
// odd samples rebuild via odd[k] = (H[k]<<1) + ((even[k]+even[k+1])>>1).
func reInverseLiftRow(low, high []int16, n int, dst []int16) {
	highCount := len(high)
	m := 2 * highCount

	dst[0] = low[0] - high[0]
	for k := 1; k < highCount; k++ {
		dst[2*k] = low[k] - ((high[k-1] + high[k]) >> 1)
	}

	if n-m == 1 {
		// The forward's virtual H reads the same sample pair as
		// H[highCount-1], so the final low degenerates to s[m] + H[hc-1].
		dst[m] = low[highCount] - high[highCount-1]
	} else {
		dst[m] = low[highCount] - (high[highCount-1] >> 1)
		// The extrapolated pair's H is zero, so low[highCount+1] is the
		// extrapolated sample itself: s[m+1] = (ext + s[m]) >> 1 exactly.
		dst[m+1] = (low[highCount+1] + dst[m]) >> 1
	}

	for k := 0; k < highCount; k++ {
		dst[2*k+1] = (high[k] << 1) + ((dst[2*k] + dst[2*k+2]) >> 1)
	}
}

func reInverseLiftCol(src []int16, lSrcOfs, hSrcOfs, srcStride int, low, high int, dst []int16, dstOfs, dstStride int) {
	highCount := high
	m := 2 * highCount
	n := low + high

	dst[dstOfs] = src[lSrcOfs] - src[hSrcOfs]
	for k := 1; k < highCount; k++ {
		hPrev := src[hSrcOfs+(k-1)*srcStride]
		hk := src[hSrcOfs+k*srcStride]
		dst[dstOfs+2*k*dstStride] = src[lSrcOfs+k*srcStride] - ((hPrev + hk) >> 1)
	}

	hLast := src[hSrcOfs+(highCount-1)*srcStride]
	if n-m == 1 {
		dst[dstOfs+m*dstStride] = src[lSrcOfs+highCount*srcStride] - hLast
	} else {
		sm := src[lSrcOfs+highCount*srcStride] - (hLast >> 1)
		dst[dstOfs+m*dstStride] = sm
		dst[dstOfs+(m+1)*dstStride] = (src[lSrcOfs+(highCount+1)*srcStride] + sm) >> 1
	}

	for k := 0; k < highCount; k++ {
		hk := src[hSrcOfs+k*srcStride]
		dst[dstOfs+(2*k+1)*dstStride] = (hk << 1) + ((dst[dstOfs+2*k*dstStride] + dst[dstOfs+(2*k+2)*dstStride]) >> 1)
	}
}
