package rfx

import (
	"github.com/pkg/errors"

	"github.com/rcarmo/go-rfx/internal/logging"
)

// Encoder is the public entry point for the encode side of this package.
// It owns the scratch buffers, the progressive reference ring, and the
// header/frame-index state a single encode session accumulates across
// calls.
//
// An Encoder is not safe for concurrent use: it assumes single-goroutine
// ownership between creation and Close, and mutates its scratch buffers on
// every Encode call without any locking.
type Encoder struct {
	width, height uint16
	format        PixelFormat
	mode          int // RLGR1 or RLGR3
	creationFlags Flags
	proVer        int
	kernel        Kernel

	frameIdx        uint32
	headerProcessed bool
	tilesetProps    uint16
	closed          bool

	ringY, ringCb, ringCr *ringCache

	// 16-bit coefficient scratch, reused across every tile and component of
	// every Encode call. diffBuf additionally serves as the progressive
	// ring's per-call difference scratch.
	coeffY, coeffCb, coeffCr, coeffA [TilePixels]int16
	diffBuf                         [TilePixels]int16
	temp                            [TilePixels]int16

	// 8-bit planar scratch for the de-interleaved/colour-converted tile.
	planeR, planeG, planeB, planeA [TilePixels]byte
	planeY, planeCb, planeCr       [TilePixels]byte
}

// NewEncoder creates an encoder for a surface of the given dimensions and
// pixel format. flags selects the entropy coder (FlagRLGR1 vs the RLGR3
// default), progressive mode (PRO1), and the DWT kernel (NOACCEL).
func NewEncoder(width, height int, format PixelFormat, flags Flags) (*Encoder, error) {
	if width <= 0 || height <= 0 || width > 0xFFFF || height > 0xFFFF {
		return nil, errors.Wrap(ErrInvalidArgument, "rfx: invalid surface dimensions")
	}
	switch format {
	case FormatBGRA, FormatRGBA, FormatBGR, FormatRGB, FormatYUV:
	default:
		return nil, errors.Wrap(ErrInvalidArgument, "rfx: unknown pixel format")
	}

	mode := RLGR3
	if flags&FlagRLGR1 != 0 {
		mode = RLGR1
	}
	proVer := 0
	if flags&PRO1 != 0 {
		proVer = 1
	}

	e := &Encoder{
		width:         uint16(width),
		height:        uint16(height),
		format:        format,
		mode:          mode,
		creationFlags: flags,
		proVer:        proVer,
		kernel:        SelectKernel(flags&NOACCEL != 0),
	}
	if proVer >= 1 {
		e.ringY = newRingCache()
		e.ringCb = newRingCache()
		e.ringCr = newRingCache()
	}

	logging.Debug("rfx: encoder created %dx%d format=%d mode=%d pro=%d kernel=%s",
		width, height, int(format), mode, proVer, e.kernel)

	return e, nil
}

// Close releases the encoder. There is no host resource to free beyond the
// progressive reference ring, but Close is provided for API symmetry and
// to make reuse-after-close an explicit error rather than silent undefined
// behaviour.
func (e *Encoder) Close() {
	if e == nil || e.closed {
		return
	}
	e.closed = true
	e.ringY, e.ringCb, e.ringCr = nil, nil, nil
}

func bytesPerPixel(f PixelFormat) int {
	switch f {
	case FormatBGR, FormatRGB:
		return 3
	case FormatYUV:
		return 1
	default:
		return 4
	}
}

func copyPlaneTile(src []byte, stride, x, y, cx, cy int, dst []byte) {
	for ry := 0; ry < TileSize; ry++ {
		sy := ry
		if sy >= cy {
			sy = cy - 1
		}
		rowOfs := (y+sy)*stride + x
		for rx := 0; rx < TileSize; rx++ {
			sx := rx
			if sx >= cx {
				sx = cx - 1
			}
			dst[ry*TileSize+rx] = src[rowOfs+sx]
		}
	}
}

// extractPlanes fills e.planeY/planeCb/planeCr (and e.planeA when alpha is
// requested) from one tile's worth of the caller's input buffer, performing
// de-interleaving and colour conversion. Partial tiles (cx/cy < TileSize)
// replicate the last valid row/column, matching the de-interleavers in
// colorconv.go.
func (e *Encoder) extractPlanes(in []byte, stride int, td TileDescriptor, alpha bool) {
	cx, cy := int(td.Cx), int(td.Cy)
	if cx == 0 || cx > TileSize {
		cx = TileSize
	}
	if cy == 0 || cy > TileSize {
		cy = TileSize
	}

	if e.format == FormatYUV {
		planeSize := stride * int(e.height)
		yPlane := in
		cbPlane := in[planeSize:]
		crPlane := in[2*planeSize:]
		copyPlaneTile(yPlane, stride, int(td.X), int(td.Y), cx, cy, e.planeY[:])
		copyPlaneTile(cbPlane, stride, int(td.X), int(td.Y), cx, cy, e.planeCb[:])
		copyPlaneTile(crPlane, stride, int(td.X), int(td.Y), cx, cy, e.planeCr[:])
		if alpha {
			for i := range e.planeA {
				e.planeA[i] = 0xFF
			}
		}
		return
	}

	bpp := bytesPerPixel(e.format)
	tileSrc := in[(int(td.Y)*stride+int(td.X))*bpp:]

	switch e.format {
	case FormatBGRA:
		DeinterleaveBGRA(tileSrc, stride, cx, cy, e.planeR[:], e.planeG[:], e.planeB[:], e.planeA[:])
	case FormatRGBA:
		DeinterleaveRGBA(tileSrc, stride, cx, cy, e.planeR[:], e.planeG[:], e.planeB[:], e.planeA[:])
	case FormatBGR:
		DeinterleaveBGR(tileSrc, stride, cx, cy, e.planeR[:], e.planeG[:], e.planeB[:])
	case FormatRGB:
		DeinterleaveRGB(tileSrc, stride, cx, cy, e.planeR[:], e.planeG[:], e.planeB[:])
	}

	RGBToYCbCr(e.planeR[:], e.planeG[:], e.planeB[:], e.planeY[:], e.planeCb[:], e.planeCr[:])
}

// encodeProgressiveComponent runs the Reduce-Extrapolate pipeline for one
// component of one progressive tile: DWT -> quantize -> sub-band diffing
// against ring's reference for this grid cell -> differential code the
// chosen buffer's LL3 tail -> RLGR entropy code. It reports whether the
// difference branch was selected.
func encodeProgressiveComponent(plane []byte, quant *SubbandQuant, ring *ringCache, xIdx, yIdx int, coeff, diffBuf, temp *[TilePixels]int16, mode int, out []byte) (n int, difference bool, err error) {
	Prescale(plane, coeff[:])
	ForwardDWTReduceExtrapolate(coeff[:], temp[:])
	QuantizeRE(coeff[:], quant)

	useDiff, err := ring.DiffAndUpdate(xIdx, yIdx, coeff[:], diffBuf[:], DiffWindowRE)
	if err != nil {
		return 0, false, err
	}

	chosen := coeff
	if useDiff {
		chosen = diffBuf
	}
	DifferentialEncode(chosen[OffsetLL3RE:], DiffWindowRE)

	n, err = RLGREncode(chosen[:TilePixels], mode, out)
	if err != nil {
		return 0, false, err
	}
	return n, useDiff, nil
}

// Encode compresses the tiles described by tiles from the caller's raw
// pixel buffer in into out, emitting the header (once per encoder lifetime)
// followed by one frame's worth of FrameBegin/Region/Tileset/FrameEnd (or
// their progressive counterparts). It returns the number of tiles actually
// serialised, which may be less than len(tiles) on a full output buffer --
// never negative in that case. A return of -1 signals a fatal error:
// invalid arguments, an invalid quant index, a write failure in the
// framing blocks themselves, or ErrOutOfMemory from the progressive
// reference ring.
//
// flags augments the creation-time flags for this call only; ALPHAV1
// requests a 4-channel tileset for this frame, PRO_KEY resets the
// progressive reference ring before encoding (only meaningful when the
// encoder was created with PRO1).
func (e *Encoder) Encode(out, in []byte, stride int, regions []Rect, tiles []TileDescriptor, quants []SubbandQuant, flags Flags) (int, error) {
	if e == nil || e.closed {
		return -1, errors.Wrap(ErrInvalidArgument, "rfx: encode on closed encoder")
	}
	if out == nil || in == nil {
		return -1, errors.Wrap(ErrInvalidArgument, "rfx: nil buffer")
	}
	if len(quants) == 0 || len(quants) > 255 {
		return -1, errors.Wrap(ErrInvalidArgument, "rfx: invalid quant table")
	}
	for i := range tiles {
		td := &tiles[i]
		if td.X%TileSize != 0 || td.Y%TileSize != 0 || td.Cx > TileSize || td.Cy > TileSize {
			return -1, errors.Wrap(ErrInvalidArgument, "rfx: invalid tile descriptor")
		}
		if int(td.QuantIdxY) >= len(quants) || int(td.QuantIdxCb) >= len(quants) || int(td.QuantIdxCr) >= len(quants) {
			return -1, errors.Wrap(ErrInvalidArgument, "rfx: quant index out of range")
		}
	}

	cursor := NewOutputCursor(out)

	proKey := flags&PROKEY != 0 && e.proVer >= 1
	switch {
	case proKey:
		e.ringY.Reset()
		e.ringCb.Reset()
		e.ringCr.Reset()
		tilesetProps, err := WriteProHeader(cursor, e.mode)
		if err != nil {
			return -1, errors.Wrap(err, "rfx: pro header")
		}
		e.tilesetProps = tilesetProps
		e.headerProcessed = true
	case !e.headerProcessed:
		var (
			tilesetProps uint16
			err          error
		)
		if e.proVer >= 1 {
			tilesetProps, err = WriteProHeader(cursor, e.mode)
		} else {
			tilesetProps, err = WriteHeader(cursor, e.width, e.height, e.mode)
		}
		if err != nil {
			return -1, errors.Wrap(err, "rfx: header")
		}
		e.tilesetProps = tilesetProps
		e.headerProcessed = true
	}

	alpha := flags&ALPHAV1 != 0 && (e.format == FormatBGRA || e.format == FormatRGBA || e.format == FormatYUV)

	// Per-tile slots sized for the worst-case RLGR expansion; alpha tiles
	// carry a fourth entropy-coded stream beyond TileMaxSize's 3-component
	// bound.
	slotSize := TileMaxSize
	if alpha {
		slotSize += 2 * TilePixels
	}
	arena := make([]byte, len(tiles)*slotSize)
	records := make([]TileRecord, 0, len(tiles))

	for i := range tiles {
		td := tiles[i]
		base := i * slotSize
		tileOut := arena[base : base+slotSize]

		e.extractPlanes(in, stride, td, alpha)

		quantY := &quants[td.QuantIdxY]
		quantCb := &quants[td.QuantIdxCb]
		quantCr := &quants[td.QuantIdxCr]

		var aPlane []byte
		if alpha {
			aPlane = e.planeA[:]
		}

		xIdx := td.X / TileSize
		yIdx := td.Y / TileSize

		var (
			yLen, cbLen, crLen, aLen int
			diffY, diffCb, diffCr    bool
			err                      error
		)

		if e.proVer >= 1 {
			yLen, diffY, err = encodeProgressiveComponent(e.planeY[:], quantY, e.ringY, int(xIdx), int(yIdx), &e.coeffY, &e.diffBuf, &e.temp, e.mode, tileOut)
			if err != nil {
				logging.Debug("rfx: tile %d,%d Y component failed: %v", xIdx, yIdx, err)
				if errors.Is(err, ErrOutOfMemory) {
					return -1, errors.Wrap(err, "rfx: progressive reference ring")
				}
				break
			}
			off := yLen
			cbLen, diffCb, err = encodeProgressiveComponent(e.planeCb[:], quantCb, e.ringCb, int(xIdx), int(yIdx), &e.coeffCb, &e.diffBuf, &e.temp, e.mode, tileOut[off:])
			if err != nil {
				logging.Debug("rfx: tile %d,%d Cb component failed: %v", xIdx, yIdx, err)
				break
			}
			off += cbLen
			crLen, diffCr, err = encodeProgressiveComponent(e.planeCr[:], quantCr, e.ringCr, int(xIdx), int(yIdx), &e.coeffCr, &e.diffBuf, &e.temp, e.mode, tileOut[off:])
			if err != nil {
				logging.Debug("rfx: tile %d,%d Cr component failed: %v", xIdx, yIdx, err)
				break
			}
			off += crLen
			if alpha {
				aLen, err = EncodeAlpha(aPlane, e.mode, e.coeffA[:], tileOut[off:])
				if err != nil {
					logging.Debug("rfx: tile %d,%d alpha failed: %v", xIdx, yIdx, err)
					break
				}
			}
		} else {
			yLen, cbLen, crLen, aLen, err = EncodeTile(
				e.planeY[:], e.planeCb[:], e.planeCr[:], aPlane,
				quantY, quantCb, quantCr,
				e.mode, false,
				e.coeffY[:], e.coeffCb[:], e.coeffCr[:], e.coeffA[:], e.temp[:],
				tileOut,
			)
			if err != nil {
				logging.Debug("rfx: tile %d,%d failed: %v", xIdx, yIdx, err)
				break
			}
		}

		rec := TileRecord{
			QuantIdxY:  td.QuantIdxY,
			QuantIdxCb: td.QuantIdxCb,
			QuantIdxCr: td.QuantIdxCr,
			XIdx:       xIdx,
			YIdx:       yIdx,
			YData:      tileOut[:yLen],
			CbData:     tileOut[yLen : yLen+cbLen],
			CrData:     tileOut[yLen+cbLen : yLen+cbLen+crLen],
			Difference: diffY || diffCb || diffCr,
		}
		if alpha {
			rec.AData = tileOut[yLen+cbLen+crLen : yLen+cbLen+crLen+aLen]
		}
		records = append(records, rec)
	}

	e.frameIdx++

	var (
		tilesWritten int
		err          error
	)
	if e.proVer >= 1 {
		tilesWritten, err = ComposeProFrame(cursor, e.frameIdx, regions, quants, records)
	} else {
		tilesWritten, err = ComposeFrame(cursor, e.frameIdx, regions, quants, e.tilesetProps, alpha, records)
	}
	if err != nil {
		logging.Debug("rfx: frame %d compose failed: %v", e.frameIdx, err)
		return -1, errors.Wrap(err, "rfx: compose frame")
	}

	return tilesWritten, nil
}

// Internals exposes the low-level primitives this package implements so
// callers that need the raw RLGR/DWT building blocks can reach them without
// going through the tile/frame pipeline.
type Internals struct {
	RLGREncode                  func(data []int16, mode int, out []byte) (int, error)
	ForwardDWT                  func(buffer, temp []int16) []int16
	ForwardDWTReduceExtrapolate func(buffer, temp []int16) []int16
}

// Internals returns the function-value struct described above. The
// returned functions are the same package-level primitives Encode uses
// internally; they do not depend on encoder state and may be called
// concurrently from multiple goroutines even though Encode itself may not.
func (e *Encoder) Internals() Internals {
	return Internals{
		RLGREncode:                  RLGREncode,
		ForwardDWT:                  ForwardDWT2D,
		ForwardDWTReduceExtrapolate: ForwardDWTReduceExtrapolate,
	}
}
