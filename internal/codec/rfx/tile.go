package rfx

import (
	"encoding/binary"
)

// EncodeComponent runs the forward per-component pipeline: DWT
// (standard or Reduce-Extrapolate), quantize, differentially code the LL3
// tail, then RLGR entropy code. plane holds a 64x64 8-bit spatial plane;
// coeff and temp are TilePixels-length scratch buffers owned by the caller
// (an Encoder's scratch arrays). Returns the number of entropy-coded
// bytes written to out.
func EncodeComponent(plane []byte, quant *SubbandQuant, mode int, useRE bool, coeff, temp []int16, out []byte) (int, error) {
	if len(coeff) < TilePixels || len(temp) < TilePixels {
		return 0, ErrInternal
	}

	Prescale(plane, coeff)

	if useRE {
		ForwardDWTReduceExtrapolate(coeff, temp)
		QuantizeRE(coeff, quant)
		DifferentialEncode(coeff[OffsetLL3RE:], DiffWindowRE)
	} else {
		ForwardDWT2D(coeff, temp)
		Quantize(coeff, quant)
		DifferentialEncode(coeff[OffsetLL3:], DiffWindowStandard)
	}

	return RLGREncode(coeff[:TilePixels], mode, out)
}

// EncodeAlpha runs the alpha sub-pipeline for ALPHAV1 tiles: RLGR-coded but
// without DWT, quantization, or differential coding -- the raw
// plane samples are entropy coded directly.
func EncodeAlpha(plane []byte, mode int, coeff []int16, out []byte) (int, error) {
	if len(coeff) < TilePixels {
		return 0, ErrInternal
	}
	for i := 0; i < TilePixels && i < len(plane); i++ {
		coeff[i] = int16(plane[i])
	}
	for i := len(plane); i < TilePixels; i++ {
		coeff[i] = 0
	}
	return RLGREncode(coeff[:TilePixels], mode, out)
}

// EncodeTile runs the forward pipeline for all of a tile's components and
// packs their entropy-coded streams back-to-back into out, returning the
// byte length of each (aLen is 0 when aPlane is nil). Before encoding it
// verifies out has at least TileMaxSize bytes available, the worst-case
// bound; callers that can't satisfy this must stop the
// tileset here and report partial success.
func EncodeTile(
	yPlane, cbPlane, crPlane, aPlane []byte,
	quantY, quantCb, quantCr *SubbandQuant,
	mode int, useRE bool,
	yCoeff, cbCoeff, crCoeff, aCoeff, temp []int16,
	out []byte,
) (yLen, cbLen, crLen, aLen int, err error) {
	if len(out) < TileMaxSize {
		return 0, 0, 0, 0, ErrBufferFull
	}

	yLen, err = EncodeComponent(yPlane, quantY, mode, useRE, yCoeff, temp, out)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	off := yLen

	cbLen, err = EncodeComponent(cbPlane, quantCb, mode, useRE, cbCoeff, temp, out[off:])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	off += cbLen

	crLen, err = EncodeComponent(crPlane, quantCr, mode, useRE, crCoeff, temp, out[off:])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	off += crLen

	if aPlane != nil {
		aLen, err = EncodeAlpha(aPlane, mode, aCoeff, out[off:])
		if err != nil {
			return 0, 0, 0, 0, err
		}
	}

	return yLen, cbLen, crLen, aLen, nil
}

// DecodeTile decodes a single RFX tile from compressed data. Kept only as
// this package's own round-trip test helper; no decoder is part of the
// public API.
func DecodeTile(data []byte, quantY, quantCb, quantCr *SubbandQuant) (*Tile, error) {
	if len(data) < 19 { // Minimum tile header size
		return nil, ErrInvalidTileData
	}

	offset := 0

	blockType := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	if blockType != CBT_TILE {
		return nil, ErrInvalidBlockType
	}

	blockLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	if int(blockLen) > len(data) {
		return nil, ErrInvalidBlockLength
	}

	// quantIdxY/Cb/Cr occupy this range on the wire; the caller already
	// resolved them to *SubbandQuant before calling DecodeTile.
	offset += 3

	xIdx := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yIdx := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	cbLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	crLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	if offset+yLen+cbLen+crLen > len(data) {
		return nil, ErrInvalidTileData
	}

	yData := data[offset : offset+yLen]
	offset += yLen

	cbData := data[offset : offset+cbLen]
	offset += cbLen

	crData := data[offset : offset+crLen]

	yCoeff := make([]int16, TilePixels)
	cbCoeff := make([]int16, TilePixels)
	crCoeff := make([]int16, TilePixels)
	temp := make([]int16, TilePixels)

	if err := RLGRDecode(yData, RLGR1, yCoeff); err != nil {
		return nil, err
	}
	if err := RLGRDecode(cbData, RLGR3, cbCoeff); err != nil {
		return nil, err
	}
	if err := RLGRDecode(crData, RLGR3, crCoeff); err != nil {
		return nil, err
	}

	DifferentialDecode(yCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(cbCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(crCoeff[OffsetLL3:], SizeL3)

	Dequantize(yCoeff, quantY)
	Dequantize(cbCoeff, quantCb)
	Dequantize(crCoeff, quantCr)

	yPixels := InverseDWT2D(yCoeff, temp)
	cbPixels := InverseDWT2D(cbCoeff, temp)
	crPixels := InverseDWT2D(crCoeff, temp)

	rgba := make([]byte, TileRGBASize)
	YCbCrToRGBA(yPixels, cbPixels, crPixels, rgba)

	return &Tile{
		X:    xIdx,
		Y:    yIdx,
		RGBA: rgba,
	}, nil
}

// DecodeTileWithBuffers decodes a tile using pre-allocated buffers, avoiding
// per-tile allocation. Test helper only, see DecodeTile.
func DecodeTileWithBuffers(
	data []byte,
	quantY, quantCb, quantCr *SubbandQuant,
	yCoeff, cbCoeff, crCoeff, temp []int16,
	rgba []byte,
) (xIdx, yIdx uint16, err error) {
	if len(data) < 19 {
		return 0, 0, ErrInvalidTileData
	}

	offset := 0

	blockType := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	if blockType != CBT_TILE {
		return 0, 0, ErrInvalidBlockType
	}

	blockLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	if int(blockLen) > len(data) {
		return 0, 0, ErrInvalidBlockLength
	}

	offset += 3

	xIdx = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yIdx = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	cbLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	crLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	if offset+yLen+cbLen+crLen > len(data) {
		return 0, 0, ErrInvalidTileData
	}

	if err := RLGRDecode(data[offset:offset+yLen], RLGR1, yCoeff); err != nil {
		return 0, 0, err
	}
	offset += yLen

	if err := RLGRDecode(data[offset:offset+cbLen], RLGR3, cbCoeff); err != nil {
		return 0, 0, err
	}
	offset += cbLen

	if err := RLGRDecode(data[offset:offset+crLen], RLGR3, crCoeff); err != nil {
		return 0, 0, err
	}

	DifferentialDecode(yCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(cbCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(crCoeff[OffsetLL3:], SizeL3)

	Dequantize(yCoeff, quantY)
	Dequantize(cbCoeff, quantCb)
	Dequantize(crCoeff, quantCr)

	yPixels := InverseDWT2D(yCoeff, temp)
	cbPixels := InverseDWT2D(cbCoeff, temp)
	crPixels := InverseDWT2D(crCoeff, temp)

	YCbCrToRGBA(yPixels, cbPixels, crPixels, rgba)

	return xIdx, yIdx, nil
}
