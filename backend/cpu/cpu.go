package cpu

import (
	internalcpu "github.com/showtell/showtell/internal/backend/cpu"
	"github.com/showtell/showtell/tensor"
)

// Backend represents the CPU backend implementation.
//
// CPU backend provides pure Go implementations of all tensor
// operations, with chunked parallelism over the heavy kernels.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/showtell/showtell/backend/cpu"
//	    "github.com/showtell/showtell/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}
