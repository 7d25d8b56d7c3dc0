package tensor

import (
	"fmt"
	"math"
)

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a simple backend for testing.
// It implements all operations naively for correctness verification.
type MockBackend struct{}

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return CPU
}

// Add performs element-wise addition with broadcasting.
func (m *MockBackend) Add(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (m *MockBackend) Sub(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (m *MockBackend) Mul(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (m *MockBackend) Div(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x / y })
}

// elementWise performs element-wise operations with broadcasting.
func (m *MockBackend) elementWise(a, b *RawTensor, op func(float64, float64) float64) *RawTensor {
	// Broadcast shapes
	outShape, _, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(err)
	}

	// Create output tensor
	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	// Perform operation (naive implementation)
	numElements := outShape.NumElements()

	// Convert to float64 for generic processing
	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := m.toFloat64Slice(result)

	for i := 0; i < numElements; i++ {
		aIdx := m.broadcastIndex(i, outShape, a.Shape())
		bIdx := m.broadcastIndex(i, outShape, b.Shape())

		resultData[i] = op(aData[aIdx], bData[bIdx])
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// MatMul performs matrix multiplication.
func (m *MockBackend) MatMul(a, b *RawTensor) *RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	// Only support 2D
	if len(aShape) != 2 || len(bShape) != 2 {
		panic("MatMul only supports 2D tensors in mock backend")
	}

	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("incompatible shapes for MatMul: %v @ %v", aShape, bShape))
	}

	M, K := aShape[0], aShape[1]
	N := bShape[1]

	outShape := Shape{M, N}
	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := m.toFloat64Slice(result)

	// Naive matrix multiplication
	for i := 0; i < M; i++ {
		for j := 0; j < N; j++ {
			sum := 0.0
			for k := 0; k < K; k++ {
				sum += aData[i*K+k] * bData[k*N+j]
			}
			resultData[i*N+j] = sum
		}
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Conv2D performs 2D convolution (naive implementation for testing).
func (m *MockBackend) Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 || len(kernelShape) != 4 {
		panic("Conv2D requires 4D tensors [N,C,H,W]")
	}

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	KH := kernelShape[2]
	KW := kernelShape[3]

	if CIn != kernelShape[1] {
		panic(fmt.Sprintf("Conv2D: input channels %d != kernel channels %d", CIn, kernelShape[1]))
	}

	HOut := (H+2*padding-KH)/stride + 1
	WOut := (W+2*padding-KW)/stride + 1

	output, err := NewRaw(Shape{N, COut, HOut, WOut}, input.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	inputData := m.toFloat64Slice(input)
	kernelData := m.toFloat64Slice(kernel)
	outputData := m.toFloat64Slice(output)

	// Naive convolution (direct implementation)
	for n := 0; n < N; n++ {
		for cOut := 0; cOut < COut; cOut++ {
			for outH := 0; outH < HOut; outH++ {
				for outW := 0; outW < WOut; outW++ {
					sum := 0.0

					// Convolve over input patch
					for cIn := 0; cIn < CIn; cIn++ {
						for kh := 0; kh < KH; kh++ {
							for kw := 0; kw < KW; kw++ {
								h := outH*stride - padding + kh
								w := outW*stride - padding + kw

								// Check bounds (zero padding)
								if h >= 0 && h < H && w >= 0 && w < W {
									inputIdx := n*CIn*H*W + cIn*H*W + h*W + w
									kernelIdx := cOut*CIn*KH*KW + cIn*KH*KW + kh*KW + kw
									sum += inputData[inputIdx] * kernelData[kernelIdx]
								}
							}
						}
					}

					outputIdx := n*COut*HOut*WOut + cOut*HOut*WOut + outH*WOut + outW
					outputData[outputIdx] = sum
				}
			}
		}
	}

	m.fromFloat64Slice(outputData, output)
	return output
}

// MaxPool2D performs 2D max pooling (naive implementation for testing).
func (m *MockBackend) MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("MaxPool2D: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	N := inputShape[0]
	C := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]

	// Compute output dimensions
	HOut := (H-kernelSize)/stride + 1
	WOut := (W-kernelSize)/stride + 1

	output, err := NewRaw(Shape{N, C, HOut, WOut}, input.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	inputData := m.toFloat64Slice(input)
	outputData := m.toFloat64Slice(output)

	// Naive max pooling
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			for outH := 0; outH < HOut; outH++ {
				for outW := 0; outW < WOut; outW++ {
					hStart := outH * stride
					wStart := outW * stride

					// Find max in pooling window
					maxVal := -1e308 // Negative infinity
					for kh := 0; kh < kernelSize; kh++ {
						for kw := 0; kw < kernelSize; kw++ {
							h := hStart + kh
							w := wStart + kw
							inputIdx := n*C*H*W + c*H*W + h*W + w
							if inputData[inputIdx] > maxVal {
								maxVal = inputData[inputIdx]
							}
						}
					}

					outputIdx := n*C*HOut*WOut + c*HOut*WOut + outH*WOut + outW
					outputData[outputIdx] = maxVal
				}
			}
		}
	}

	m.fromFloat64Slice(outputData, output)
	return output
}

// Conv2DInputBackward is not supported; the mock backend only covers
// forward operations.
func (m *MockBackend) Conv2DInputBackward(_, _, _ *RawTensor, _, _ int) *RawTensor {
	panic("MockBackend: Conv2DInputBackward not supported")
}

// Conv2DKernelBackward is not supported.
func (m *MockBackend) Conv2DKernelBackward(_, _, _ *RawTensor, _, _ int) *RawTensor {
	panic("MockBackend: Conv2DKernelBackward not supported")
}

// MaxPool2DBackward is not supported.
func (m *MockBackend) MaxPool2DBackward(_, _ *RawTensor, _ []int, _, _ int) *RawTensor {
	panic("MockBackend: MaxPool2DBackward not supported")
}

// Reshape changes tensor shape.
func (m *MockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(err)
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("cannot reshape tensor with %d elements to shape %v (%d elements)",
			t.NumElements(), newShape, newShape.NumElements()))
	}

	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	// Copy data
	copy(result.Data(), t.Data())
	return result
}

// Transpose transposes tensor dimensions.
func (m *MockBackend) Transpose(t *RawTensor, axes ...int) *RawTensor {
	shape := t.Shape()

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, len(shape))
		for i := range axes {
			axes[i] = len(shape) - 1 - i
		}
	}

	// Validate axes
	if len(axes) != len(shape) {
		panic(fmt.Sprintf("axes length %d doesn't match tensor dimensions %d", len(axes), len(shape)))
	}

	// Compute new shape
	newShape := make(Shape, len(shape))
	for i, axis := range axes {
		if axis < 0 || axis >= len(shape) {
			panic(fmt.Sprintf("axis %d out of bounds for tensor with %d dimensions", axis, len(shape)))
		}
		newShape[i] = shape[axis]
	}

	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	// Transpose data (naive implementation)
	tData := m.toFloat64Slice(t)
	resultData := m.toFloat64Slice(result)

	oldStrides := shape.ComputeStrides()
	newStrides := newShape.ComputeStrides()

	for i := 0; i < t.NumElements(); i++ {
		// Convert flat index to multi-dimensional indices
		indices := make([]int, len(shape))
		temp := i
		for j := 0; j < len(shape); j++ {
			indices[j] = temp / oldStrides[j]
			temp %= oldStrides[j]
		}

		// Permute indices
		permuted := make([]int, len(indices))
		for j, axis := range axes {
			permuted[j] = indices[axis]
		}

		// Convert permuted indices to flat index
		newIdx := 0
		for j, idx := range permuted {
			newIdx += idx * newStrides[j]
		}

		resultData[newIdx] = tData[i]
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// MulScalar multiplies each element by a scalar.
func (m *MockBackend) MulScalar(x *RawTensor, scalar any) *RawTensor {
	s := toFloat64Scalar(scalar)
	return m.unary(x, func(v float64) float64 { return v * s })
}

// AddScalar adds a scalar to each element.
func (m *MockBackend) AddScalar(x *RawTensor, scalar any) *RawTensor {
	s := toFloat64Scalar(scalar)
	return m.unary(x, func(v float64) float64 { return v + s })
}

// SubScalar subtracts a scalar from each element.
func (m *MockBackend) SubScalar(x *RawTensor, scalar any) *RawTensor {
	s := toFloat64Scalar(scalar)
	return m.unary(x, func(v float64) float64 { return v - s })
}

// DivScalar divides each element by a scalar.
func (m *MockBackend) DivScalar(x *RawTensor, scalar any) *RawTensor {
	s := toFloat64Scalar(scalar)
	return m.unary(x, func(v float64) float64 { return v / s })
}

// Exp computes e^x for each element.
func (m *MockBackend) Exp(x *RawTensor) *RawTensor {
	return m.unary(x, math.Exp)
}

// Log computes ln(x) for each element.
func (m *MockBackend) Log(x *RawTensor) *RawTensor {
	return m.unary(x, math.Log)
}

// Sqrt computes the square root of each element.
func (m *MockBackend) Sqrt(x *RawTensor) *RawTensor {
	return m.unary(x, math.Sqrt)
}

// unary applies op to each element.
func (m *MockBackend) unary(x *RawTensor, op func(float64) float64) *RawTensor {
	result, err := NewRaw(x.Shape(), x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = op(v)
	}

	m.fromFloat64Slice(out, result)
	return result
}

// Softmax computes softmax along the given dimension.
func (m *MockBackend) Softmax(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}

	result, err := NewRaw(shape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	out := make([]float64, len(data))

	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	numRows := x.NumElements() / dimSize
	for row := 0; row < numRows; row++ {
		baseIdx := 0
		remaining := row
		for i := len(shape) - 1; i >= 0; i-- {
			if i == dim {
				continue
			}
			coord := remaining % shape[i]
			remaining /= shape[i]
			baseIdx += coord * strides[i]
		}

		maxVal := math.Inf(-1)
		for i := 0; i < dimSize; i++ {
			if v := data[baseIdx+i*dimStride]; v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for i := 0; i < dimSize; i++ {
			e := math.Exp(data[baseIdx+i*dimStride] - maxVal)
			out[baseIdx+i*dimStride] = e
			sum += e
		}
		for i := 0; i < dimSize; i++ {
			out[baseIdx+i*dimStride] /= sum
		}
	}

	m.fromFloat64Slice(out, result)
	return result
}

// Sum computes the total sum, returning a scalar tensor.
func (m *MockBackend) Sum(x *RawTensor) *RawTensor {
	result, err := NewRaw(Shape{}, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	sum := 0.0
	for _, v := range m.toFloat64Slice(x) {
		sum += v
	}

	m.fromFloat64Slice([]float64{sum}, result)
	return result
}

// SumDim sums along a dimension.
func (m *MockBackend) SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	return m.reduceDim(x, dim, keepDim, false)
}

// MeanDim computes the mean along a dimension.
func (m *MockBackend) MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	return m.reduceDim(x, dim, keepDim, true)
}

func (m *MockBackend) reduceDim(x *RawTensor, dim int, keepDim, mean bool) *RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}

	outShape := make(Shape, 0, len(shape))
	for i, s := range shape {
		if i == dim {
			if keepDim {
				outShape = append(outShape, 1)
			}
			continue
		}
		outShape = append(outShape, s)
	}

	result, err := NewRaw(outShape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	out := make([]float64, outShape.NumElements())

	strides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	dimSize := shape[dim]

	// Accumulate each input element into its reduced output slot.
	for i := 0; i < x.NumElements(); i++ {
		outIdx := 0
		temp := i
		j := 0
		for d := 0; d < len(shape); d++ {
			coord := temp / strides[d]
			temp %= strides[d]
			if d == dim {
				if keepDim {
					j++
				}
				continue
			}
			outIdx += coord * outStrides[j]
			j++
		}
		out[outIdx] += data[i]
	}

	if mean {
		for i := range out {
			out[i] /= float64(dimSize)
		}
	}

	m.fromFloat64Slice(out, result)
	return result
}

// Argmax returns the index of the maximum value along a dimension.
// Ties resolve to the lowest index.
func (m *MockBackend) Argmax(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}

	outShape := make(Shape, 0, len(shape)-1)
	for i, s := range shape {
		if i != dim {
			outShape = append(outShape, s)
		}
	}

	result, err := NewRaw(outShape, Int32, m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	out := result.AsInt32()

	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	numRows := x.NumElements() / dimSize
	for row := 0; row < numRows; row++ {
		baseIdx := 0
		remaining := row
		coords := make([]int, 0, len(shape)-1)
		for i := len(shape) - 1; i >= 0; i-- {
			if i == dim {
				continue
			}
			coord := remaining % shape[i]
			remaining /= shape[i]
			baseIdx += coord * strides[i]
			coords = append([]int{coord}, coords...)
		}

		best := 0
		bestVal := data[baseIdx]
		for i := 1; i < dimSize; i++ {
			if v := data[baseIdx+i*dimStride]; v > bestVal {
				bestVal = v
				best = i
			}
		}

		outIdx := 0
		outStrides := outShape.ComputeStrides()
		for i, c := range coords {
			outIdx += c * outStrides[i]
		}
		out[outIdx] = int32(best)
	}

	return result
}

// Cat concatenates tensors along a dimension.
func (m *MockBackend) Cat(tensors []*RawTensor, dim int) *RawTensor {
	if len(tensors) == 0 {
		panic("Cat: at least one tensor required")
	}

	base := tensors[0].Shape()
	if dim < 0 {
		dim = len(base) + dim
	}

	outShape := base.Clone()
	for _, t := range tensors[1:] {
		outShape[dim] += t.Shape()[dim]
	}

	result, err := NewRaw(outShape, tensors[0].DType(), m.Device())
	if err != nil {
		panic(err)
	}

	out := m.toFloat64Slice(result)
	outStrides := outShape.ComputeStrides()

	offset := 0
	for _, t := range tensors {
		shape := t.Shape()
		strides := shape.ComputeStrides()
		data := m.toFloat64Slice(t)

		for i := 0; i < t.NumElements(); i++ {
			// Decompose flat index into coordinates
			outIdx := 0
			temp := i
			for j := 0; j < len(shape); j++ {
				coord := temp / strides[j]
				temp %= strides[j]
				if j == dim {
					coord += offset
				}
				outIdx += coord * outStrides[j]
			}
			out[outIdx] = data[i]
		}

		offset += shape[dim]
	}

	m.fromFloat64Slice(out, result)
	return result
}

// Chunk splits the tensor into n equal parts along a dimension.
func (m *MockBackend) Chunk(x *RawTensor, n, dim int) []*RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}
	if shape[dim]%n != 0 {
		panic(fmt.Sprintf("Chunk: dimension %d (size %d) not divisible by %d", dim, shape[dim], n))
	}

	partSize := shape[dim] / n
	partShape := shape.Clone()
	partShape[dim] = partSize

	data := m.toFloat64Slice(x)
	strides := shape.ComputeStrides()
	partStrides := partShape.ComputeStrides()

	parts := make([]*RawTensor, n)
	for p := 0; p < n; p++ {
		part, err := NewRaw(partShape, x.DType(), m.Device())
		if err != nil {
			panic(err)
		}

		out := make([]float64, partShape.NumElements())
		for i := range out {
			// Coordinates in the part, then shift along dim
			srcIdx := 0
			temp := i
			for j := 0; j < len(partShape); j++ {
				coord := temp / partStrides[j]
				temp %= partStrides[j]
				if j == dim {
					coord += p * partSize
				}
				srcIdx += coord * strides[j]
			}
			out[i] = data[srcIdx]
		}

		m.fromFloat64Slice(out, part)
		parts[p] = part
	}

	return parts
}

// Unsqueeze adds a dimension of size 1.
func (m *MockBackend) Unsqueeze(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + 1 + dim
	}

	newShape := make(Shape, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)

	return m.Reshape(x, newShape)
}

// Squeeze removes a dimension of size 1.
func (m *MockBackend) Squeeze(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}
	if shape[dim] != 1 {
		panic(fmt.Sprintf("Squeeze: dimension %d has size %d, expected 1", dim, shape[dim]))
	}

	newShape := make(Shape, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)

	return m.Reshape(x, newShape)
}

// Embedding looks up rows of weight by integer indices.
func (m *MockBackend) Embedding(weight, indices *RawTensor) *RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic("Embedding: weight must be 2D [vocab, dim]")
	}

	vocab, embDim := wShape[0], wShape[1]
	idxShape := indices.Shape()

	outShape := make(Shape, 0, len(idxShape)+1)
	outShape = append(outShape, idxShape...)
	outShape = append(outShape, embDim)

	result, err := NewRaw(outShape, weight.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	wData := m.toFloat64Slice(weight)
	out := make([]float64, outShape.NumElements())

	idx := indices.AsInt32()
	for i, id := range idx {
		if int(id) < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("Embedding: index %d out of range [0, %d)", id, vocab))
		}
		copy(out[i*embDim:(i+1)*embDim], wData[int(id)*embDim:(int(id)+1)*embDim])
	}

	m.fromFloat64Slice(out, result)
	return result
}

// Cast converts the tensor to a different dtype.
func (m *MockBackend) Cast(x *RawTensor, dtype DataType) *RawTensor {
	result, err := NewRaw(x.Shape(), dtype, m.Device())
	if err != nil {
		panic(err)
	}

	m.fromFloat64Slice(m.toFloat64Slice(x), result)
	return result
}

// Helper functions

func toFloat64Scalar(scalar any) float64 {
	switch v := scalar.(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		panic(fmt.Sprintf("unsupported scalar type: %T", scalar))
	}
}

func (m *MockBackend) toFloat64Slice(t *RawTensor) []float64 {
	switch t.DType() {
	case Float32:
		src := t.AsFloat32()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	case Float64:
		return t.AsFloat64()
	case Int32:
		src := t.AsInt32()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	case Int64:
		src := t.AsInt64()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	default:
		panic(fmt.Sprintf("unsupported dtype: %s", t.DType()))
	}
}

func (m *MockBackend) fromFloat64Slice(src []float64, t *RawTensor) {
	switch t.DType() {
	case Float32:
		dst := t.AsFloat32()
		for i, v := range src {
			dst[i] = float32(v)
		}
	case Float64:
		copy(t.AsFloat64(), src)
	case Int32:
		dst := t.AsInt32()
		for i, v := range src {
			dst[i] = int32(v)
		}
	case Int64:
		dst := t.AsInt64()
		for i, v := range src {
			dst[i] = int64(v)
		}
	}
}

func (m *MockBackend) broadcastIndex(flatIdx int, outShape, inShape Shape) int {
	// Convert flat index to multi-dimensional indices in output shape
	outStrides := outShape.ComputeStrides()
	indices := make([]int, len(outShape))

	temp := flatIdx
	for i := 0; i < len(outShape); i++ {
		indices[i] = temp / outStrides[i]
		temp %= outStrides[i]
	}

	// Map to input shape (accounting for broadcasting)
	inStrides := inShape.ComputeStrides()
	inIdx := 0

	offset := len(outShape) - len(inShape)
	for i := 0; i < len(inShape); i++ {
		outDimIdx := indices[offset+i]
		inDim := inShape[i]

		// If input dimension is 1, always use index 0 (broadcasting)
		if inDim == 1 {
			outDimIdx = 0
		}

		inIdx += outDimIdx * inStrides[i]
	}

	return inIdx
}
