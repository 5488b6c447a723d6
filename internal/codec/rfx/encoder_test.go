package rfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidBGRA(w, h int, b, g, r, a byte) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		buf[i*4+0] = b
		buf[i*4+1] = g
		buf[i*4+2] = r
		buf[i*4+3] = a
	}
	return buf
}

// TestEncode_SingleSolidTile encodes one 64x64 solid BGRA(0,0,0,255) tile
// with default quants and RLGR3, and checks that encoding it a second time
// reports the same tile count.
func TestEncode_SingleSolidTile(t *testing.T) {
	enc, err := NewEncoder(TileSize, TileSize, FormatBGRA, 0)
	require.NoError(t, err)
	defer enc.Close()

	in := solidBGRA(TileSize, TileSize, 0, 0, 0, 255)
	out := make([]byte, 4096)
	regions := []Rect{{X: 0, Y: 0, Width: TileSize, Height: TileSize}}
	tiles := []TileDescriptor{{X: 0, Y: 0, Cx: TileSize, Cy: TileSize}}
	quants := []SubbandQuant{*DefaultQuant()}

	n, err := enc.Encode(out, in, TileSize, regions, tiles, quants, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n2, err := enc.Encode(out, in, TileSize, regions, tiles, quants, 0)
	require.NoError(t, err)
	assert.Equal(t, n, n2, "encoding the same solid tile twice must reproduce the same tile count")
}

// TestEncode_TwoTiles_RLGR1_NoAccel encodes a 128x64 surface as two tiles
// with RLGR1 + NOACCEL; the header is emitted once and both tiles are
// reported written.
func TestEncode_TwoTiles_RLGR1_NoAccel(t *testing.T) {
	enc, err := NewEncoder(128, TileSize, FormatBGRA, FlagRLGR1|NOACCEL)
	require.NoError(t, err)
	defer enc.Close()

	in := solidBGRA(128, TileSize, 10, 20, 30, 255)
	out := make([]byte, 1<<20)
	regions := []Rect{{X: 0, Y: 0, Width: 128, Height: TileSize}}
	tiles := []TileDescriptor{
		{X: 0, Y: 0, Cx: TileSize, Cy: TileSize},
		{X: TileSize, Y: 0, Cx: TileSize, Cy: TileSize},
	}
	quants := []SubbandQuant{*DefaultQuant()}

	n, err := enc.Encode(out, in, 128, regions, tiles, quants, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, enc.headerProcessed)
}

// TestEncode_ProgressiveDiffing encodes the same textured tile twice with PRO1: the
// second encode must tag the tile DIFFERENCE, and PROKEY on a third call
// resets the ring so the tile is tagged original again.
func TestEncode_ProgressiveDiffing(t *testing.T) {
	enc, err := NewEncoder(TileSize, TileSize, FormatBGRA, PRO1)
	require.NoError(t, err)
	defer enc.Close()

	// A solid tile has no non-zero high-band coefficient, so its original
	// and difference arrays tie on zero count and the strict rule keeps the
	// original; texture the green channel so the original has non-zeros.
	in := solidBGRA(TileSize, TileSize, 5, 6, 7, 255)
	for i := 0; i < TileSize*TileSize; i++ {
		in[i*4+1] = byte(i * 37)
	}
	out := make([]byte, 1<<20)
	regions := []Rect{{X: 0, Y: 0, Width: TileSize, Height: TileSize}}
	tiles := []TileDescriptor{{X: 0, Y: 0, Cx: TileSize, Cy: TileSize}}
	quants := []SubbandQuant{*DefaultQuant()}

	_, err = enc.Encode(out, in, TileSize, regions, tiles, quants, 0)
	require.NoError(t, err)

	rec := encodeOneProgressiveTileForTest(t, enc, out, in, regions, tiles, quants, 0)
	assert.True(t, rec, "second encode of an identical tile must use the DIFFERENCE branch")

	rec = encodeOneProgressiveTileForTest(t, enc, out, in, regions, tiles, quants, PROKEY)
	assert.False(t, rec, "PRO_KEY must reset the ring so the tile is original again")
}

// encodeOneProgressiveTileForTest drives Encode and reports whether the one
// tile it wrote was flagged DIFFERENCE, by re-parsing the flags byte out of
// the raw PRO_WBT_TILE_SIMPLE record this single-tile frame produces.
func encodeOneProgressiveTileForTest(t *testing.T, enc *Encoder, out, in []byte, regions []Rect, tiles []TileDescriptor, quants []SubbandQuant, flags Flags) bool {
	t.Helper()
	n, err := enc.Encode(out, in, TileSize, regions, tiles, quants, flags)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Locate the tile record by scanning for PRO_WBT_TILE_SIMPLE; the frame
	// composed by this call always starts at offset 0 of out because the
	// test reuses a buffer larger than any single frame produced here.
	idx := findProTileFlagsOffset(out)
	require.NotEqual(t, -1, idx, "PRO_WBT_TILE_SIMPLE record not found")
	flagsByte := out[idx]
	return flagsByte&RFX_TILE_DIFFERENCE != 0
}

// findProTileFlagsOffset scans for the PRO_WBT_TILE_SIMPLE block type and
// returns the offset of its flags byte (6 bytes of block header + 7 bytes
// of quant indices/xIdx/yIdx precede it).
func findProTileFlagsOffset(data []byte) int {
	blockType := PRO_WBT_TILE_SIMPLE
	for i := 0; i+6 <= len(data); i++ {
		if data[i] == byte(blockType) && data[i+1] == byte(blockType>>8) {
			flagsOfs := i + 6 + 3 + 2 + 2
			if flagsOfs < len(data) {
				return flagsOfs
			}
		}
	}
	return -1
}

// TestEncode_SmallOutputBuffer checks that a tiny output buffer on a 2-tile
// input never returns a negative tile count nor more than the two tiles
// requested.
func TestEncode_SmallOutputBuffer(t *testing.T) {
	enc, err := NewEncoder(128, TileSize, FormatBGRA, 0)
	require.NoError(t, err)
	defer enc.Close()

	in := solidBGRA(128, TileSize, 1, 2, 3, 255)
	regions := []Rect{{X: 0, Y: 0, Width: 128, Height: TileSize}}
	tiles := []TileDescriptor{
		{X: 0, Y: 0, Cx: TileSize, Cy: TileSize},
		{X: TileSize, Y: 0, Cx: TileSize, Cy: TileSize},
	}
	quants := []SubbandQuant{*DefaultQuant()}

	// Prime the encoder past HeaderSent with a generously sized buffer; the
	// 256-byte budget below then applies to the frame body alone, matching
	// scenario 5's intent of a tile-starved frame rather than a header that
	// can't fit at all.
	primer := make([]byte, 1<<16)
	_, err = enc.Encode(primer, in, 128, regions, tiles, quants, 0)
	require.NoError(t, err)

	out := make([]byte, 256)
	n, err := enc.Encode(out, in, 128, regions, tiles, quants, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
	assert.LessOrEqual(t, n, 2)
}

// TestEncode_InvalidQuantIndex checks that a quant index beyond the quant
// table on the first tile aborts the frame with an error before anything
// is written.
func TestEncode_InvalidQuantIndex(t *testing.T) {
	enc, err := NewEncoder(TileSize, TileSize, FormatBGRA, 0)
	require.NoError(t, err)
	defer enc.Close()

	in := solidBGRA(TileSize, TileSize, 1, 2, 3, 255)
	out := make([]byte, 4096)
	regions := []Rect{{X: 0, Y: 0, Width: TileSize, Height: TileSize}}
	tiles := []TileDescriptor{{X: 0, Y: 0, Cx: TileSize, Cy: TileSize, QuantIdxY: 5}}
	quants := []SubbandQuant{*DefaultQuant()}

	n, err := enc.Encode(out, in, TileSize, regions, tiles, quants, 0)
	assert.Error(t, err)
	assert.Equal(t, -1, n)
	assert.False(t, enc.headerProcessed, "header must not have been written when the first encode call fails validation")
}

// TestEncode_PartialTilePadding: encoding a region whose trailing tile has
// cx<64 must produce the same encoded bytes as encoding a synthetic 64x64
// tile whose right/bottom edges replicate the last valid pixel. It drives
// the colour-conversion/tile pipeline directly (bypassing the composer),
// which is the layer the padding happens in.
func TestEncode_PartialTilePadding(t *testing.T) {
	w, h := 40, 40
	in := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := (y*w + x) * 4
			in[p+0] = byte(x * 3)
			in[p+1] = byte(y * 5)
			in[p+2] = byte(x + y)
			in[p+3] = 255
		}
	}

	full := make([]byte, TileSize*TileSize*4)
	for y := 0; y < TileSize; y++ {
		sy := y
		if sy >= h {
			sy = h - 1
		}
		for x := 0; x < TileSize; x++ {
			sx := x
			if sx >= w {
				sx = w - 1
			}
			srcP := (sy*w + sx) * 4
			dstP := (y*TileSize + x) * 4
			copy(full[dstP:dstP+4], in[srcP:srcP+4])
		}
	}

	quant := DefaultQuant()

	encodeOne := func(src []byte, stride, cx, cy int) (yOut, cbOut, crOut []byte) {
		r := make([]byte, TilePixels)
		g := make([]byte, TilePixels)
		b := make([]byte, TilePixels)
		a := make([]byte, TilePixels)
		DeinterleaveBGRA(src, stride, cx, cy, r, g, b, a)

		yPlane := make([]byte, TilePixels)
		cbPlane := make([]byte, TilePixels)
		crPlane := make([]byte, TilePixels)
		RGBToYCbCr(r, g, b, yPlane, cbPlane, crPlane)

		yCoeff := make([]int16, TilePixels)
		cbCoeff := make([]int16, TilePixels)
		crCoeff := make([]int16, TilePixels)
		aCoeff := make([]int16, TilePixels)
		temp := make([]int16, TilePixels)
		out := make([]byte, TileMaxSize)

		yLen, cbLen, crLen, _, err := EncodeTile(
			yPlane, cbPlane, crPlane, nil,
			quant, quant, quant,
			RLGR3, false,
			yCoeff, cbCoeff, crCoeff, aCoeff, temp,
			out,
		)
		require.NoError(t, err)
		return append([]byte{}, out[:yLen]...),
			append([]byte{}, out[yLen:yLen+cbLen]...),
			append([]byte{}, out[yLen+cbLen:yLen+cbLen+crLen]...)
	}

	yPartial, cbPartial, crPartial := encodeOne(in, w, w, h)
	yFull, cbFull, crFull := encodeOne(full, TileSize, TileSize, TileSize)

	assert.Equal(t, yFull, yPartial)
	assert.Equal(t, cbFull, cbPartial)
	assert.Equal(t, crFull, crPartial)
}

func TestEncode_UnknownPixelFormat(t *testing.T) {
	_, err := NewEncoder(TileSize, TileSize, PixelFormat(99), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEncode_InvalidDimensions(t *testing.T) {
	_, err := NewEncoder(0, TileSize, FormatBGRA, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEncode_AlphaV1(t *testing.T) {
	enc, err := NewEncoder(TileSize, TileSize, FormatBGRA, 0)
	require.NoError(t, err)
	defer enc.Close()

	in := solidBGRA(TileSize, TileSize, 9, 8, 7, 200)
	out := make([]byte, 8192)
	regions := []Rect{{X: 0, Y: 0, Width: TileSize, Height: TileSize}}
	tiles := []TileDescriptor{{X: 0, Y: 0, Cx: TileSize, Cy: TileSize}}
	quants := []SubbandQuant{*DefaultQuant()}

	n, err := enc.Encode(out, in, TileSize, regions, tiles, quants, ALPHAV1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	foundExtPlus := false
	extPlusBlockType := WBT_EXTENSION_PLUS
	for i := 0; i+2 <= len(out); i++ {
		if out[i] == byte(extPlusBlockType) && out[i+1] == byte(extPlusBlockType>>8) {
			foundExtPlus = true
			break
		}
	}
	assert.True(t, foundExtPlus, "ALPHAV1 frame must emit a WBT_EXTENSION_PLUS tileset block")
}

func TestEncoder_Internals(t *testing.T) {
	enc, err := NewEncoder(TileSize, TileSize, FormatBGRA, 0)
	require.NoError(t, err)
	defer enc.Close()

	in := enc.Internals()
	require.NotNil(t, in.RLGREncode)
	require.NotNil(t, in.ForwardDWT)
	require.NotNil(t, in.ForwardDWTReduceExtrapolate)

	data := make([]int16, TilePixels)
	out := make([]byte, TileMaxSize)
	_, err = in.RLGREncode(data, RLGR3, out)
	assert.NoError(t, err)
}

func TestEncoder_CloseThenEncodeFails(t *testing.T) {
	enc, err := NewEncoder(TileSize, TileSize, FormatBGRA, 0)
	require.NoError(t, err)
	enc.Close()

	in := solidBGRA(TileSize, TileSize, 1, 1, 1, 255)
	out := make([]byte, 4096)
	regions := []Rect{{X: 0, Y: 0, Width: TileSize, Height: TileSize}}
	tiles := []TileDescriptor{{X: 0, Y: 0, Cx: TileSize, Cy: TileSize}}
	quants := []SubbandQuant{*DefaultQuant()}

	n, err := enc.Encode(out, in, TileSize, regions, tiles, quants, 0)
	assert.Error(t, err)
	assert.Equal(t, -1, n)
}
