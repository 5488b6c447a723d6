package rfx

import "encoding/binary"

// OutputCursor wraps a caller-supplied byte slice with a write position, the
// same "caller owns the buffer" discipline Encoder uses for coefficient
// scratch space. Every Write*Block function advances it and returns
// ErrBufferFull rather than growing the slice.
type OutputCursor struct {
	buf []byte
	pos int
}

// NewOutputCursor wraps buf for sequential block writes starting at offset 0.
func NewOutputCursor(buf []byte) *OutputCursor {
	return &OutputCursor{buf: buf}
}

// Len reports how many bytes have been written so far.
func (c *OutputCursor) Len() int { return c.pos }

// Remaining reports how much space is left in the underlying buffer.
func (c *OutputCursor) Remaining() int { return len(c.buf) - c.pos }

func (c *OutputCursor) writeUint8(v uint8) error {
	if c.Remaining() < 1 {
		return ErrBufferFull
	}
	c.buf[c.pos] = v
	c.pos++
	return nil
}

func (c *OutputCursor) writeUint16(v uint16) error {
	if c.Remaining() < 2 {
		return ErrBufferFull
	}
	binary.LittleEndian.PutUint16(c.buf[c.pos:], v)
	c.pos += 2
	return nil
}

func (c *OutputCursor) writeUint32(v uint32) error {
	if c.Remaining() < 4 {
		return ErrBufferFull
	}
	binary.LittleEndian.PutUint32(c.buf[c.pos:], v)
	c.pos += 4
	return nil
}

func (c *OutputCursor) writeBytes(b []byte) error {
	if c.Remaining() < len(b) {
		return ErrBufferFull
	}
	copy(c.buf[c.pos:], b)
	c.pos += len(b)
	return nil
}

// reserve advances the cursor by n bytes without writing, returning the
// start offset so the caller can patch it in later (deferred-length fields).
func (c *OutputCursor) reserve(n int) (start int, err error) {
	if c.Remaining() < n {
		return 0, ErrBufferFull
	}
	start = c.pos
	c.pos += n
	return start, nil
}

// beginBlock writes blockType followed by a zero-valued length placeholder
// and returns the offset endBlock needs to patch it.
func (c *OutputCursor) beginBlock(blockType uint16) (start int, err error) {
	start = c.pos
	if err = c.writeUint16(blockType); err != nil {
		return 0, err
	}
	if err = c.writeUint32(0); err != nil {
		return 0, err
	}
	return start, nil
}

func (c *OutputCursor) endBlock(start int) {
	length := uint32(c.pos - start)
	binary.LittleEndian.PutUint32(c.buf[start+2:], length)
}

// contextProperties packs the top-level TS_RFX_CONTEXT properties word
// (cct<<3, xft<<5, et<<9, qt<<13; low 3 bits reserved for context-scoped
// flags this encoder never sets). The tileset-embedded word uses a
// different shift pattern, see tilesetProperties; both forms are fixed by
// MS-RDPRFX.
func contextProperties(mode int) uint16 {
	var props uint16
	props |= uint16(CLW_COL_CONV_ICT) << 3
	props |= uint16(CLW_XFORM_DWT_53_A) << 5
	props |= uint16(entropyBits(mode)) << 9
	props |= uint16(1) << 13 // qt: scalar quantization
	return props
}

// tilesetProperties packs the properties word carried in every TS_RFX_TILESET
// (and ProContext) block: same fields as contextProperties shifted one bit
// higher, plus a low "lt" bit that is always set.
func tilesetProperties(mode int) uint16 {
	props := uint16(1) // lt
	props |= uint16(CLW_COL_CONV_ICT) << 4
	props |= uint16(CLW_XFORM_DWT_53_A) << 6
	props |= uint16(entropyBits(mode)) << 10
	props |= uint16(1) << 14 // qt: scalar quantization
	return props
}

func entropyBits(mode int) uint8 {
	if mode == RLGR1 {
		return CLW_ENTROPY_RLGR1
	}
	return CLW_ENTROPY_RLGR3
}

// WriteSyncBlock emits the fixed-size WBT_SYNC block every message starts with.
func WriteSyncBlock(c *OutputCursor) error {
	start, err := c.beginBlock(WBT_SYNC)
	if err != nil {
		return err
	}
	if err := c.writeUint32(SyncMagic); err != nil {
		return err
	}
	if err := c.writeUint16(CLW_VERSION_1_0); err != nil {
		return err
	}
	c.endBlock(start)
	return nil
}

// WriteCodecVersionsBlock emits the single-codec WBT_CODEC_VERSIONS block.
func WriteCodecVersionsBlock(c *OutputCursor) error {
	start, err := c.beginBlock(WBT_CODEC_VERSIONS)
	if err != nil {
		return err
	}
	if err := c.writeUint8(1); err != nil { // numCodecs
		return err
	}
	if err := c.writeUint8(1); err != nil { // codecId
		return err
	}
	if err := c.writeUint16(CLW_VERSION_1_0); err != nil {
		return err
	}
	c.endBlock(start)
	return nil
}

// WriteChannelsBlock emits the single-channel WBT_CHANNELS block describing
// the overall surface dimensions.
func WriteChannelsBlock(c *OutputCursor, width, height uint16) error {
	start, err := c.beginBlock(WBT_CHANNELS)
	if err != nil {
		return err
	}
	if err := c.writeUint8(1); err != nil { // numChannels
		return err
	}
	if err := c.writeUint8(0); err != nil { // channelId
		return err
	}
	if err := c.writeUint16(width); err != nil {
		return err
	}
	if err := c.writeUint16(height); err != nil {
		return err
	}
	c.endBlock(start)
	return nil
}

// WriteContextBlock emits the WBT_CONTEXT block carrying the top-level
// properties word, and returns the differently-packed word that must later
// be embedded in every WBT_TILESET block of this session (the encoder caches
// it at context time for reuse at tileset-compose time).
func WriteContextBlock(c *OutputCursor, mode int) (tilesetProps uint16, err error) {
	start, err := c.beginBlock(WBT_CONTEXT)
	if err != nil {
		return 0, err
	}
	if err := c.writeUint8(0); err != nil { // ctxId
		return 0, err
	}
	if err := c.writeUint16(CT_TILE_64x64); err != nil {
		return 0, err
	}
	if err := c.writeUint16(contextProperties(mode)); err != nil {
		return 0, err
	}
	c.endBlock(start)
	return tilesetProperties(mode), nil
}

// WriteHeader emits Sync . Context . CodecVersions . Channels, the
// once-per-encoder-lifetime header block run. The encoder moves from its
// fresh state to header-sent once this call succeeds.
func WriteHeader(c *OutputCursor, width, height uint16, mode int) (tilesetProps uint16, err error) {
	if err = WriteSyncBlock(c); err != nil {
		return 0, err
	}
	tilesetProps, err = WriteContextBlock(c, mode)
	if err != nil {
		return 0, err
	}
	if err = WriteCodecVersionsBlock(c); err != nil {
		return 0, err
	}
	if err = WriteChannelsBlock(c, width, height); err != nil {
		return 0, err
	}
	return tilesetProps, nil
}

// WriteFrameBeginBlock emits WBT_FRAME_BEGIN for a single-region frame.
func WriteFrameBeginBlock(c *OutputCursor, frameIdx uint32) error {
	start, err := c.beginBlock(WBT_FRAME_BEGIN)
	if err != nil {
		return err
	}
	if err := c.writeUint32(frameIdx); err != nil {
		return err
	}
	if err := c.writeUint16(1); err != nil { // numRegions
		return err
	}
	if err := c.writeUint16(0); err != nil { // reserved
		return err
	}
	c.endBlock(start)
	return nil
}

// WriteRegionBlock emits WBT_REGION listing the dirty rectangles for a frame.
func WriteRegionBlock(c *OutputCursor, rects []Rect) error {
	start, err := c.beginBlock(WBT_REGION)
	if err != nil {
		return err
	}
	if err := c.writeUint8(1); err != nil { // regionFlags
		return err
	}
	if err := c.writeUint16(uint16(len(rects))); err != nil {
		return err
	}
	for _, r := range rects {
		if err := c.writeUint16(r.X); err != nil {
			return err
		}
		if err := c.writeUint16(r.Y); err != nil {
			return err
		}
		if err := c.writeUint16(r.Width); err != nil {
			return err
		}
		if err := c.writeUint16(r.Height); err != nil {
			return err
		}
	}
	if err := c.writeUint16(CBT_REGION); err != nil { // regionType
		return err
	}
	if err := c.writeUint16(1); err != nil { // numTilesets
		return err
	}
	c.endBlock(start)
	return nil
}

// WriteFrameEndBlock emits the empty-payload WBT_FRAME_END block.
func WriteFrameEndBlock(c *OutputCursor) error {
	start, err := c.beginBlock(WBT_FRAME_END)
	if err != nil {
		return err
	}
	c.endBlock(start)
	return nil
}

// TileRecord is one already entropy-coded tile, ready to be framed into a
// CBT_TILE (or progressive tile) block. AData is nil unless ALPHAV1 tiles
// are being emitted. Difference reports whether Y/Cb/Cr hold subband-diffed
// coefficients; it is only meaningful for progressive tiles.
type TileRecord struct {
	QuantIdxY, QuantIdxCb, QuantIdxCr uint8
	XIdx, YIdx                        uint16
	YData, CbData, CrData, AData      []byte
	Difference                        bool
}

const (
	tileHeaderSize    = 19                 // header(6) + 3 quant idx + xIdx/yIdx(4) + 3 lengths(6)
	proTileHeaderSize = tileHeaderSize + 3 // + flags(1) + tailLen(2)

	// frameEndSize is the trailing FrameEnd/ProFrameEnd block, a bare block
	// header. ComposeFrame/ComposeProFrame hold this much back from the
	// tileset writers so a frame whose tiles only partially fit still
	// closes cleanly instead of failing on the final block.
	frameEndSize = 6
)

// withTailReserve returns a cursor over c's buffer truncated by reserve
// bytes, sharing c's position. Commit the child's position back with
// c.pos = child.pos once the reserved tail is about to be written.
func (c *OutputCursor) withTailReserve(reserve int) *OutputCursor {
	end := len(c.buf) - reserve
	if end < 0 {
		end = 0
	}
	return &OutputCursor{buf: c.buf[:end], pos: c.pos}
}

func (r *TileRecord) wireSize(alpha bool) int {
	n := tileHeaderSize + len(r.YData) + len(r.CbData) + len(r.CrData)
	if alpha {
		n += 2 + len(r.AData)
	}
	return n
}

func (r *TileRecord) proWireSize() int {
	n := proTileHeaderSize + len(r.YData) + len(r.CbData) + len(r.CrData)
	if r.AData != nil {
		n += 2 + len(r.AData)
	}
	return n
}

func writeTileRecord(c *OutputCursor, r *TileRecord, alpha bool) error {
	start, err := c.beginBlock(CBT_TILE)
	if err != nil {
		return err
	}
	if err := c.writeUint8(r.QuantIdxY); err != nil {
		return err
	}
	if err := c.writeUint8(r.QuantIdxCb); err != nil {
		return err
	}
	if err := c.writeUint8(r.QuantIdxCr); err != nil {
		return err
	}
	if err := c.writeUint16(r.XIdx); err != nil {
		return err
	}
	if err := c.writeUint16(r.YIdx); err != nil {
		return err
	}
	if err := c.writeUint16(uint16(len(r.YData))); err != nil {
		return err
	}
	if err := c.writeUint16(uint16(len(r.CbData))); err != nil {
		return err
	}
	if err := c.writeUint16(uint16(len(r.CrData))); err != nil {
		return err
	}
	if alpha {
		if err := c.writeUint16(uint16(len(r.AData))); err != nil {
			return err
		}
	}
	if err := c.writeBytes(r.YData); err != nil {
		return err
	}
	if err := c.writeBytes(r.CbData); err != nil {
		return err
	}
	if err := c.writeBytes(r.CrData); err != nil {
		return err
	}
	if alpha {
		if err := c.writeBytes(r.AData); err != nil {
			return err
		}
	}
	c.endBlock(start)
	return nil
}

// WriteTilesetBlock emits WBT_TILESET (or WBT_EXTENSION_PLUS when alpha is
// true) containing the quantization tables followed by as many tile records
// as fit in the remaining buffer. It stops at the first tile that doesn't
// fit rather than erroring, fixes up numTiles/tilesDataSize/blockLen to the
// true written count, and returns that count.
func WriteTilesetBlock(c *OutputCursor, quants []SubbandQuant, tilesetProps uint16, alpha bool, records []TileRecord) (int, error) {
	if len(quants) == 0 || len(quants) > 255 {
		return 0, ErrInvalidArgument
	}

	blockType := WBT_TILESET
	if alpha {
		blockType = WBT_EXTENSION_PLUS
	}

	start, err := c.beginBlock(blockType)
	if err != nil {
		return 0, err
	}
	if err := c.writeUint16(WBT_TILESET); err != nil { // subtype
		return 0, err
	}
	if err := c.writeUint16(0); err != nil { // idx
		return 0, err
	}
	if err := c.writeUint16(tilesetProps); err != nil {
		return 0, err
	}
	if err := c.writeUint8(uint8(len(quants))); err != nil {
		return 0, err
	}
	if err := c.writeUint8(uint8(TileSize)); err != nil { // tileSize byte, 0x40
		return 0, err
	}
	numTilesPos, err := c.reserve(2)
	if err != nil {
		return 0, err
	}
	tileDataSizePos, err := c.reserve(4)
	if err != nil {
		return 0, err
	}
	for i := range quants {
		packed := PackQuantValues(&quants[i])
		if err := c.writeBytes(packed[:]); err != nil {
			return 0, err
		}
	}

	tilesDataStart := c.pos
	tilesWritten := 0
	for i := range records {
		rec := &records[i]
		if c.Remaining() < rec.wireSize(alpha) {
			break
		}
		if err := writeTileRecord(c, rec, alpha); err != nil {
			return 0, err
		}
		tilesWritten++
	}

	tileDataSize := c.pos - tilesDataStart
	binary.LittleEndian.PutUint16(c.buf[numTilesPos:], uint16(tilesWritten))
	binary.LittleEndian.PutUint32(c.buf[tileDataSizePos:], uint32(tileDataSize))
	c.endBlock(start)
	return tilesWritten, nil
}

// ComposeFrame emits FrameBegin . Region . Tileset . FrameEnd for one frame,
// returning the number of tiles actually written, or -1 on a fatal error:
// a frame-begin/region/frame-end write failure aborts the whole frame,
// while a tileset that only partially fits is not fatal.
func ComposeFrame(c *OutputCursor, frameIdx uint32, rects []Rect, quants []SubbandQuant, tilesetProps uint16, alpha bool, records []TileRecord) (int, error) {
	if err := WriteFrameBeginBlock(c, frameIdx); err != nil {
		return -1, err
	}
	if err := WriteRegionBlock(c, rects); err != nil {
		return -1, err
	}
	body := c.withTailReserve(frameEndSize)
	tilesWritten, err := WriteTilesetBlock(body, quants, tilesetProps, alpha, records)
	if err != nil {
		return -1, err
	}
	c.pos = body.pos
	if err := WriteFrameEndBlock(c); err != nil {
		return -1, err
	}
	return tilesWritten, nil
}

// WriteProContextBlock emits PRO_WBT_CONTEXT, the progressive header's
// context descriptor. It carries the tileset-pattern properties word (the
// progressive grammar has no separate tileset block to embed it in).
func WriteProContextBlock(c *OutputCursor, mode int) (tilesetProps uint16, err error) {
	start, err := c.beginBlock(PRO_WBT_CONTEXT)
	if err != nil {
		return 0, err
	}
	if err := c.writeUint8(0); err != nil { // ctxId
		return 0, err
	}
	if err := c.writeUint16(CT_TILE_64x64); err != nil {
		return 0, err
	}
	if err := c.writeUint16(tilesetProperties(mode)); err != nil {
		return 0, err
	}
	c.endBlock(start)
	return tilesetProperties(mode), nil
}

// WriteProHeader emits Sync . ProContext, the progressive counterpart of
// WriteHeader.
func WriteProHeader(c *OutputCursor, mode int) (tilesetProps uint16, err error) {
	if err = WriteSyncBlock(c); err != nil {
		return 0, err
	}
	return WriteProContextBlock(c, mode)
}

// WriteProFrameBeginBlock emits PRO_WBT_FRAME_BEGIN.
func WriteProFrameBeginBlock(c *OutputCursor, frameIdx uint32) error {
	start, err := c.beginBlock(PRO_WBT_FRAME_BEGIN)
	if err != nil {
		return err
	}
	if err := c.writeUint32(frameIdx); err != nil {
		return err
	}
	if err := c.writeUint16(1); err != nil { // numRegions
		return err
	}
	if err := c.writeUint16(0); err != nil { // reserved
		return err
	}
	c.endBlock(start)
	return nil
}

// WriteProFrameEndBlock emits the empty-payload PRO_WBT_FRAME_END block.
func WriteProFrameEndBlock(c *OutputCursor) error {
	start, err := c.beginBlock(PRO_WBT_FRAME_END)
	if err != nil {
		return err
	}
	c.endBlock(start)
	return nil
}

func writeProTileRecord(c *OutputCursor, r *TileRecord) error {
	start, err := c.beginBlock(PRO_WBT_TILE_SIMPLE)
	if err != nil {
		return err
	}
	if err := c.writeUint8(r.QuantIdxY); err != nil {
		return err
	}
	if err := c.writeUint8(r.QuantIdxCb); err != nil {
		return err
	}
	if err := c.writeUint8(r.QuantIdxCr); err != nil {
		return err
	}
	if err := c.writeUint16(r.XIdx); err != nil {
		return err
	}
	if err := c.writeUint16(r.YIdx); err != nil {
		return err
	}
	var flags uint8
	if r.Difference {
		flags |= RFX_TILE_DIFFERENCE
	}
	if err := c.writeUint8(flags); err != nil {
		return err
	}
	if err := c.writeUint16(0); err != nil { // tailLen, reserved
		return err
	}
	alpha := r.AData != nil
	if err := c.writeUint16(uint16(len(r.YData))); err != nil {
		return err
	}
	if err := c.writeUint16(uint16(len(r.CbData))); err != nil {
		return err
	}
	if err := c.writeUint16(uint16(len(r.CrData))); err != nil {
		return err
	}
	if alpha {
		if err := c.writeUint16(uint16(len(r.AData))); err != nil {
			return err
		}
	}
	if err := c.writeBytes(r.YData); err != nil {
		return err
	}
	if err := c.writeBytes(r.CbData); err != nil {
		return err
	}
	if err := c.writeBytes(r.CrData); err != nil {
		return err
	}
	if alpha {
		if err := c.writeBytes(r.AData); err != nil {
			return err
		}
	}
	c.endBlock(start)
	return nil
}

// WriteProRegionBlock emits PRO_WBT_REGION: the dirty rectangles, the quant
// tables, and the tile records themselves (the progressive grammar has no
// separate Tileset block; ProRegion carries tiles directly). Only
// PRO_WBT_TILE_SIMPLE is emitted -- the multi-pass PROGRESSIVE_FIRST/UPGRADE
// refinement exchange is a client/server negotiation this single-shot
// encoder does not participate in; it always emits a complete tile.
func WriteProRegionBlock(c *OutputCursor, rects []Rect, quants []SubbandQuant, records []TileRecord) (int, error) {
	if len(quants) == 0 || len(quants) > 255 {
		return 0, ErrInvalidArgument
	}

	start, err := c.beginBlock(PRO_WBT_REGION)
	if err != nil {
		return 0, err
	}
	if err := c.writeUint8(1); err != nil { // regionFlags
		return 0, err
	}
	if err := c.writeUint16(uint16(len(rects))); err != nil {
		return 0, err
	}
	for _, r := range rects {
		if err := c.writeUint16(r.X); err != nil {
			return 0, err
		}
		if err := c.writeUint16(r.Y); err != nil {
			return 0, err
		}
		if err := c.writeUint16(r.Width); err != nil {
			return 0, err
		}
		if err := c.writeUint16(r.Height); err != nil {
			return 0, err
		}
	}
	if err := c.writeUint8(uint8(len(quants))); err != nil {
		return 0, err
	}
	for i := range quants {
		packed := PackQuantValues(&quants[i])
		if err := c.writeBytes(packed[:]); err != nil {
			return 0, err
		}
	}
	numTilesPos, err := c.reserve(2)
	if err != nil {
		return 0, err
	}

	tilesWritten := 0
	for i := range records {
		rec := &records[i]
		if c.Remaining() < rec.proWireSize() {
			break
		}
		if err := writeProTileRecord(c, rec); err != nil {
			return 0, err
		}
		tilesWritten++
	}

	binary.LittleEndian.PutUint16(c.buf[numTilesPos:], uint16(tilesWritten))
	c.endBlock(start)
	return tilesWritten, nil
}

// ComposeProFrame emits ProFrameBegin . ProRegion . ProFrameEnd, the
// progressive counterpart of ComposeFrame.
func ComposeProFrame(c *OutputCursor, frameIdx uint32, rects []Rect, quants []SubbandQuant, records []TileRecord) (int, error) {
	if err := WriteProFrameBeginBlock(c, frameIdx); err != nil {
		return -1, err
	}
	body := c.withTailReserve(frameEndSize)
	tilesWritten, err := WriteProRegionBlock(body, rects, quants, records)
	if err != nil {
		return -1, err
	}
	c.pos = body.pos
	if err := WriteProFrameEndBlock(c); err != nil {
		return -1, err
	}
	return tilesWritten, nil
}
