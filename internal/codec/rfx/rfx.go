// Package rfx implements the encoder core of the RemoteFX (RFX) codec as
// specified in MS-RDPRFX. RemoteFX is a tile-based wavelet codec used for
// efficient remote desktop graphics: 64x64 pixel tiles are colour-converted,
// wavelet-transformed, quantized, and entropy coded into a block-framed byte
// stream.
//
// Only the encode direction is a supported capability of this package. A
// handful of inverse primitives (inverse DWT, dequantize, differential
// decode, RLGR decode, YCbCr->RGB) are kept unexported-adjacent and used
// exclusively by this package's own round-trip tests; they are not part of
// the public API and no decoder is shipped.
package rfx

import "errors"

// Tile dimensions (fixed by MS-RDPRFX specification).
const (
	TileSize     = 64
	TilePixels   = TileSize * TileSize // 4096
	TileRGBASize = TilePixels * 4      // 16384 bytes
)

// Subband buffer offsets for the standard (non-progressive) DWT, linear/
// packed layout. Coefficients are stored in this order in a 4096-element
// buffer:
//   - HL1 (32x32 = 1024) at offset 0
//   - LH1 (32x32 = 1024) at offset 1024
//   - HH1 (32x32 = 1024) at offset 2048
//   - HL2 (16x16 = 256)  at offset 3072
//   - LH2 (16x16 = 256)  at offset 3328
//   - HH2 (16x16 = 256)  at offset 3584
//   - HL3 (8x8 = 64)     at offset 3840
//   - LH3 (8x8 = 64)     at offset 3904
//   - HH3 (8x8 = 64)     at offset 3968
//   - LL3 (8x8 = 64)     at offset 4032
const (
	OffsetHL1 = 0
	OffsetLH1 = 1024
	OffsetHH1 = 2048
	OffsetHL2 = 3072
	OffsetLH2 = 3328
	OffsetHH2 = 3584
	OffsetHL3 = 3840
	OffsetLH3 = 3904
	OffsetHH3 = 3968
	OffsetLL3 = 4032

	SizeL1 = 1024 // 32x32
	SizeL2 = 256  // 16x16
	SizeL3 = 64   // 8x8

	// DiffWindowStandard is the number of trailing LL3 coefficients the
	// differential coder runs over for the standard DWT layout.
	DiffWindowStandard = SizeL3
)

// Subband buffer offsets for the Reduce-Extrapolate progressive DWT,
// packed layout (see dwt_re.go):
//   - HL1 (31x33=1023) at offset 0
//   - LH1 (1023)       at offset 1023
//   - HH1 (31x31=961)  at offset 2046
//   - HL2 (16x17=272)  at offset 3007
//   - LH2 (272)        at offset 3279
//   - HH2 (16x16=256)  at offset 3551
//   - HL3 (8x9=72)     at offset 3807
//   - LH3 (72)         at offset 3879
//   - HH3 (8x8=64)     at offset 3951
//   - LL3 (9x9=81)     at offset 4015
const (
	OffsetHL1RE = 0
	OffsetLH1RE = 1023
	OffsetHH1RE = 2046
	OffsetHL2RE = 3007
	OffsetLH2RE = 3279
	OffsetHH2RE = 3551
	OffsetHL3RE = 3807
	OffsetLH3RE = 3879
	OffsetHH3RE = 3951
	OffsetLL3RE = 4015

	SizeL1HLRE = 1023 // 31x33
	SizeL1HHRE = 961  // 31x31
	SizeL2HLRE = 272  // 16x17
	SizeL2HHRE = 256  // 16x16
	SizeL3HLRE = 72   // 8x9
	SizeL3HHRE = 64   // 8x8
	SizeLL3RE  = 81   // 9x9

	// DiffWindowRE is the number of trailing LL3 coefficients the
	// differential coder runs over for the Reduce-Extrapolate layout, and
	// the tail excluded from the progressive ring's zero-count.
	DiffWindowRE = SizeLL3RE
)

// RLGR coding modes.
const (
	RLGR1 = 1 // RLGR1 coder, used for every component when FlagRLGR1 is set
	RLGR3 = 3 // RLGR3 coder, the default for every component
)

// RLGR adaptive coding constants (MS-RDPRFX section 3.1.8.1.7.1).
const (
	KPMAX = 80 // Maximum value for the kp parameter
	LSGR  = 3  // Log2 scale factor for the Golomb-Rice parameter
	UP_GR = 4  // kp increment in run-length mode, per full run
	DN_GR = 6  // kp decrement after coding a non-zero value in run-length mode
	UQ_GR = 3  // kp increment for a zero value in GR mode (RLGR1)
	DQ_GR = 3  // kp decrement for a non-zero value in GR mode (RLGR1)
)

// Standard block type constants (MS-RDPRFX section 2.2.2.1.1).
const (
	WBT_SYNC           uint16 = 0xCCC0
	WBT_CODEC_VERSIONS uint16 = 0xCCC1
	WBT_CHANNELS       uint16 = 0xCCC2
	WBT_CONTEXT        uint16 = 0xCCC3
	WBT_FRAME_BEGIN    uint16 = 0xCCC4
	WBT_FRAME_END      uint16 = 0xCCC5
	WBT_REGION         uint16 = 0xCCC6
	WBT_EXTENSION      uint16 = 0xCCC7
	WBT_EXTENSION_PLUS uint16 = 0xDDD7
	CBT_REGION         uint16 = 0xCAC1
	WBT_TILESET        uint16 = 0xCAC2
	CBT_TILE           uint16 = 0xCAC3
)

// Progressive block type constants (MS-RDPRFX progressive extension).
const (
	PRO_WBT_SYNC                  uint16 = 0xCCC0
	PRO_WBT_FRAME_BEGIN           uint16 = 0xCCC1
	PRO_WBT_FRAME_END             uint16 = 0xCCC2
	PRO_WBT_CONTEXT               uint16 = 0xCCC3
	PRO_WBT_REGION                uint16 = 0xCCC4
	PRO_WBT_TILE_SIMPLE           uint16 = 0xCCC5
	PRO_WBT_TILE_PROGRESSIVE_FST  uint16 = 0xCCC6
	PRO_WBT_TILE_PROGRESSIVE_UPGR uint16 = 0xCCC7
)

// Codec capability constants.
const (
	CLW_VERSION_1_0    uint16 = 0x0100
	CT_TILE_64x64      uint16 = 0x0040
	CLW_COL_CONV_ICT   uint8  = 0x01
	CLW_XFORM_DWT_53_A uint8  = 0x01
	CLW_ENTROPY_RLGR1  uint8  = 0x01
	CLW_ENTROPY_RLGR3  uint8  = 0x04

	SyncMagic uint32 = 0xCACCACCA

	// RFX_TILE_DIFFERENCE marks a progressive tile as carrying sub-band
	// diffed coefficients rather than the original quantized coefficients.
	RFX_TILE_DIFFERENCE uint8 = 0x01

	// RFX_DWT_REDUCE_EXTRAPOLATE marks the Reduce-Extrapolate DWT variant.
	RFX_DWT_REDUCE_EXTRAPOLATE uint8 = 0x01
	// RFX_SUBBAND_DIFFING marks that sub-band diffing is enabled for a context.
	RFX_SUBBAND_DIFFING uint8 = 0x01
)

// TileMaxSize bounds the worst-case coded size of one tile's three
// component streams plus its small per-tile header. Every coefficient may
// expand to at most 2 bytes under RLGR. An alpha stream is not included in
// this bound.
const TileMaxSize = 18 + 3*2*TilePixels

// Errors surfaced by the encode-side API. These are
// sentinels; wrap with github.com/pkg/errors when additional context (tile
// index, component) is useful to a caller.
var (
	ErrInvalidArgument = errors.New("rfx: invalid argument")
	ErrBufferFull      = errors.New("rfx: output buffer exhausted before tile completed")
	ErrBufferOverflow  = errors.New("rfx: entropy coder output overflow")
	ErrOutOfMemory     = errors.New("rfx: allocation failed")
	ErrInternal        = errors.New("rfx: internal invariant violated")
)

// Decode-side sentinels, retained because the package's round-trip tests
// exercise the inverse primitives that originally backed a full decoder.
var (
	ErrInvalidBlockType   = errors.New("rfx: invalid block type")
	ErrInvalidBlockLength = errors.New("rfx: invalid block length")
	ErrInvalidTileData    = errors.New("rfx: invalid tile data")
	ErrRLGRDecodeError    = errors.New("rfx: RLGR decode error")
	ErrBufferTooSmall     = errors.New("rfx: buffer too small")
	ErrInvalidQuantValues = errors.New("rfx: invalid quantization values")
)

// PixelFormat identifies the layout of caller-supplied pixels.
type PixelFormat uint8

const (
	FormatBGRA PixelFormat = iota
	FormatRGBA
	FormatBGR
	FormatRGB
	FormatYUV // pre-planarised, 64-byte-stride Y/Cb/Cr
)

// Flags is the creation/per-encode bit set.
type Flags uint32

const (
	// NOACCEL forces the scalar DWT kernel.
	NOACCEL Flags = 1 << iota
	// FlagRLGR1 selects the RLGR1 entropy coder (default is RLGR3).
	FlagRLGR1
	// PRO1 enables progressive ("Pro v1") mode.
	PRO1
	// ALPHAV1 emits the tileset as WBT_EXTENSION_PLUS with 4-channel tiles.
	ALPHAV1
	// PROKEY resets the progressive reference ring before encoding the frame.
	PROKEY
)

// SubbandQuant holds quantization nibbles for all 10 subbands, in MS-RDPRFX
// order: LL3, LH3, HL3, HH3, LH2, HL2, HH2, LH1, HL1, HH1.
type SubbandQuant struct {
	LL3 uint8
	LH3 uint8
	HL3 uint8
	HH3 uint8
	LH2 uint8
	HL2 uint8
	HH2 uint8
	LH1 uint8
	HL1 uint8
	HH1 uint8
}

// TileDescriptor is the caller-supplied description of one tile to encode.
// X and Y must be multiples of TileSize; Cx and Cy must be <= TileSize.
// QuantIdxY/Cb/Cr index into the caller's quant table slice.
type TileDescriptor struct {
	X, Y           uint16
	Cx, Cy         uint16
	QuantIdxY      uint8
	QuantIdxCb     uint8
	QuantIdxCr     uint8
}

// Rect is a region rectangle; all fields fit in 16 bits on the wire.
type Rect struct {
	X, Y          uint16
	Width, Height uint16
}

// Tile represents a decoded 64x64 pixel tile. Only used by this package's
// round-trip tests (there is no shipped decoder).
type Tile struct {
	X    uint16
	Y    uint16
	RGBA []byte
}

// Frame represents a decoded multi-tile frame. Test-only, see Tile.
type Frame struct {
	FrameIdx uint32
	Tiles    []*Tile
	Rects    []Rect
}

// Context mirrors the wire-level decoding context (width/height/entropy mode
// plus quant tables). Kept so the composer's round-trip tests can assert
// that encoded blocks parse back to the values that were written.
type Context struct {
	Width       uint16
	Height      uint16
	EntropyMode uint8

	QuantTables []SubbandQuant
}

// NewContext creates an empty decoding context for use by tests.
func NewContext() *Context {
	return &Context{
		QuantTables: make([]SubbandQuant, 0, 8),
	}
}

// DefaultQuant returns default quantization values (quality ~85%).
func DefaultQuant() *SubbandQuant {
	return &SubbandQuant{
		LL3: 6, LH3: 6, HL3: 6, HH3: 6,
		LH2: 7, HL2: 7, HH2: 8,
		LH1: 8, HL1: 8, HH1: 9,
	}
}

// ParseQuantValues parses packed quantization values from the wire format.
// The quant values are packed as pairs of 4-bit nibbles:
//
//	Byte 0: LL3 (low nibble), LH3 (high nibble)
//	Byte 1: HL3 (low nibble), HH3 (high nibble)
//	Byte 2: LH2 (low nibble), HL2 (high nibble)
//	Byte 3: HH2 (low nibble), LH1 (high nibble)
//	Byte 4: HL1 (low nibble), HH1 (high nibble)
func ParseQuantValues(data []byte) (*SubbandQuant, error) {
	if len(data) < 5 {
		return nil, ErrInvalidQuantValues
	}

	return &SubbandQuant{
		LL3: data[0] & 0x0F,
		LH3: (data[0] >> 4) & 0x0F,
		HL3: data[1] & 0x0F,
		HH3: (data[1] >> 4) & 0x0F,
		LH2: data[2] & 0x0F,
		HL2: (data[2] >> 4) & 0x0F,
		HH2: data[3] & 0x0F,
		LH1: (data[3] >> 4) & 0x0F,
		HL1: data[4] & 0x0F,
		HH1: (data[4] >> 4) & 0x0F,
	}, nil
}

// PackQuantValues is the inverse of ParseQuantValues: it packs a SubbandQuant
// into the 5-byte wire representation used by the quantization block.
func PackQuantValues(q *SubbandQuant) [5]byte {
	return [5]byte{
		(q.LL3 & 0x0F) | (q.LH3&0x0F)<<4,
		(q.HL3 & 0x0F) | (q.HH3&0x0F)<<4,
		(q.LH2 & 0x0F) | (q.HL2&0x0F)<<4,
		(q.HH2 & 0x0F) | (q.LH1&0x0F)<<4,
		(q.HL1 & 0x0F) | (q.HH1&0x0F)<<4,
	}
}
