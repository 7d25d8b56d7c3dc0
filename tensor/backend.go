package tensor

import "github.com/showtell/showtell/internal/tensor"

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: pure Go
//
// Decorator backends for additional functionality:
//   - autodiff: automatic differentiation (wraps any backend)
//
// Example:
//
//	import (
//	    "github.com/showtell/showtell/tensor"
//	    "github.com/showtell/showtell/backend/cpu"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Uses backend.Add under the hood
type Backend = tensor.Backend
