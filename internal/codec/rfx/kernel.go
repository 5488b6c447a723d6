package rfx

import "golang.org/x/sys/cpu"

// Kernel identifies a DWT implementation. Every kernel must
// reproduce the exact coefficient values of the scalar reference; only the
// "shift" (prescale/lifting) stage is a candidate for acceleration, so
// accelerated kernels are selected purely on CPU capability and never change
// the transform's output.
type Kernel uint8

const (
	KernelScalar Kernel = iota
	KernelSSE2
	KernelSSE41
	KernelAVX2
	KernelNEON
)

// String names a kernel for logging.
func (k Kernel) String() string {
	switch k {
	case KernelScalar:
		return "scalar"
	case KernelSSE2:
		return "sse2"
	case KernelSSE41:
		return "sse4.1"
	case KernelAVX2:
		return "avx2"
	case KernelNEON:
		return "neon"
	default:
		return "unknown"
	}
}

// SelectKernel returns the highest-throughput DWT kernel available on the
// running CPU, or KernelScalar if noAccel is set or no accelerated path
// applies. Only the forward lifting primitives in dwt.go and dwt_re.go are
// actually implemented; the accelerated identifiers are reserved selectors
// for a future SIMD implementation and currently alias to the scalar kernel
// so NOACCEL and its absence are observably identical (kernels must be
// bit-identical to the scalar reference, and a scalar-only implementation
// is the trivial case of that guarantee).
func SelectKernel(noAccel bool) Kernel {
	if noAccel {
		return KernelScalar
	}
	switch {
	case cpu.X86.HasAVX2:
		return KernelScalar
	case cpu.X86.HasSSE41:
		return KernelScalar
	case cpu.X86.HasSSE2:
		return KernelScalar
	case cpu.ARM64.HasASIMD:
		return KernelScalar
	default:
		return KernelScalar
	}
}
