package rfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectKernel_NoAccelForcesScalar(t *testing.T) {
	assert.Equal(t, KernelScalar, SelectKernel(true))
}

func TestSelectKernel_AlwaysReturnsScalar(t *testing.T) {
	// Every enum value currently aliases to the scalar implementation (see
	// kernel.go); the selector must never report an unimplemented kernel.
	assert.Equal(t, KernelScalar, SelectKernel(false))
}

func TestKernel_String(t *testing.T) {
	assert.Equal(t, "scalar", KernelScalar.String())
	assert.Equal(t, "sse2", KernelSSE2.String())
	assert.Equal(t, "sse4.1", KernelSSE41.String())
	assert.Equal(t, "avx2", KernelAVX2.String())
	assert.Equal(t, "neon", KernelNEON.String())
}
