package rfx

// Progressive sub-band diffing ring cache. Tiles are
// addressed by grid coordinates (xIdx, yIdx), both in [0, 64). For each
// progressive tile the encoder keeps the last quantized/linearised
// coefficient array it saw at that grid cell and, on the next tile at the
// same cell, decides whether to transmit the raw coefficients or their
// difference against the cached reference -- whichever has more zeros
// outside the LL3 tail (which is always differentially coded separately,
// see differential.go).
//
// Reference blocks are heap-allocated lazily; the 64x64 grid itself is a
// fixed-size array field on ringCache. They are not the only allocation on
// the encode path: Encode also allocates its tile arena and record slice
// on every call.

const ringGridSize = 64

type refBlock struct {
	coeff [TilePixels]int16
}

// ringCache is the progressive reference ring owned by an Encoder.
type ringCache struct {
	blocks [ringGridSize][ringGridSize]*refBlock
}

// newRingCache returns an empty ring with no reference blocks allocated.
func newRingCache() *ringCache {
	return &ringCache{}
}

// Reset clears every reference block, as triggered by the PROKEY flag.
func (rc *ringCache) Reset() {
	for y := range rc.blocks {
		for x := range rc.blocks[y] {
			rc.blocks[y][x] = nil
		}
	}
}

// DiffAndUpdate computes d = o - r for the reference block at (xIdx, yIdx)
// (r is treated as all-zero if no block has been cached yet), compares
// zero-counts over the first TilePixels-diffWindow elements of o and d, and
// reports whether the difference should be transmitted. The
// reference is then updated to o (R <- O) regardless of the outcome.
//
// Returns ErrOutOfMemory if xIdx/yIdx are out of range, so that the grid
// has no reference block for the cell; Encode treats that as a fatal
// per-frame error.
func (rc *ringCache) DiffAndUpdate(xIdx, yIdx int, o, d []int16, diffWindow int) (useDiff bool, err error) {
	if xIdx < 0 || xIdx >= ringGridSize || yIdx < 0 || yIdx >= ringGridSize {
		return false, ErrOutOfMemory
	}
	if len(o) < TilePixels || len(d) < TilePixels {
		return false, ErrInternal
	}

	rb := rc.blocks[yIdx][xIdx]
	if rb == nil {
		rb = &refBlock{}
		rc.blocks[yIdx][xIdx] = rb
	}

	for i := 0; i < TilePixels; i++ {
		d[i] = o[i] - rb.coeff[i]
	}

	window := TilePixels - diffWindow
	if window < 0 {
		window = 0
	}
	zerosO := countZeros(o[:window])
	zerosD := countZeros(d[:window])
	useDiff = zerosD > zerosO

	copy(rb.coeff[:], o[:TilePixels])

	return useDiff, nil
}

func countZeros(data []int16) int {
	n := 0
	for _, v := range data {
		if v == 0 {
			n++
		}
	}
	return n
}
