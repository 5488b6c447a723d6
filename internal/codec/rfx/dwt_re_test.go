package rfx

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReLevelSizes(t *testing.T) {
	low, high := reLevelSizes(64)
	assert.Equal(t, 33, low)
	assert.Equal(t, 31, high)

	low, high = reLevelSizes(33)
	assert.Equal(t, 17, low)
	assert.Equal(t, 16, high)

	low, high = reLevelSizes(17)
	assert.Equal(t, 9, low)
	assert.Equal(t, 8, high)
}

func TestReSubbandOffsets(t *testing.T) {
	assert.Equal(t, 0, OffsetHL1RE)
	assert.Equal(t, 1023, OffsetLH1RE)
	assert.Equal(t, 2046, OffsetHH1RE)
	assert.Equal(t, 3007, OffsetHL2RE)
	assert.Equal(t, 3279, OffsetLH2RE)
	assert.Equal(t, 3551, OffsetHH2RE)
	assert.Equal(t, 3807, OffsetHL3RE)
	assert.Equal(t, 3879, OffsetLH3RE)
	assert.Equal(t, 3951, OffsetHH3RE)
	assert.Equal(t, 4015, OffsetLL3RE)

	total := SizeL1HLRE*2 + SizeL1HHRE + SizeL2HLRE*2 + SizeL2HHRE + SizeL3HLRE*2 + SizeL3HHRE + SizeLL3RE
	assert.Equal(t, TilePixels, total)
}

// TestReduceExtrapolateRoundTripError mirrors TestDWTRoundTripError for
// the progressive Reduce-Extrapolate transform: the inverse recovers even
// samples exactly and odd samples within the bit the forward's >>1 on H
// discards, so the total round-trip error stays within a few units of 11.5
// fixed point across the three levels.
func TestReduceExtrapolateRoundTripError(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for trial := 0; trial < 20; trial++ {
		plane := make([]byte, TilePixels)
		for i := range plane {
			plane[i] = byte(rng.Intn(256))
		}

		buffer := make([]int16, TilePixels)
		temp := make([]int16, TilePixels)
		want := make([]int16, TilePixels)

		Prescale(plane, buffer)
		copy(want, buffer)

		ForwardDWTReduceExtrapolate(buffer, temp)
		InverseDWTReduceExtrapolate(buffer, temp)

		maxErr := 0
		for i := range buffer {
			e := int(buffer[i]) - int(want[i])
			if e < 0 {
				e = -e
			}
			if e > maxErr {
				maxErr = e
			}
		}
		assert.LessOrEqual(t, maxErr, 16, "trial %d: RE DWT round trip error too large", trial)
	}
}

func TestReduceExtrapolateRoundTrip_AllZero(t *testing.T) {
	buffer := make([]int16, TilePixels)
	temp := make([]int16, TilePixels)

	ForwardDWTReduceExtrapolate(buffer, temp)
	InverseDWTReduceExtrapolate(buffer, temp)

	for i, v := range buffer {
		assert.Equal(t, int16(0), v, "index %d", i)
	}
}

func TestForwardDWTReduceExtrapolate_NilInput(t *testing.T) {
	temp := make([]int16, TilePixels)
	assert.Nil(t, ForwardDWTReduceExtrapolate(nil, temp))
	assert.Nil(t, ForwardDWTReduceExtrapolate(make([]int16, 10), temp))
}
