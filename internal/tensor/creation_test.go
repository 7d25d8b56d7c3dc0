package tensor

import (
	"math"
	"testing"
)

// Randn Tests

func TestRandn(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{100, 50}

	tensor := Randn[float32](shape, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Randn shape")

	// Check that values are not all zeros (with high probability)
	data := tensor.Data()
	nonZero := 0
	for _, v := range data {
		if v != 0 {
			nonZero++
		}
	}

	if nonZero < len(data)/2 {
		t.Errorf("Randn should produce mostly non-zero values, got %d non-zero out of %d", nonZero, len(data))
	}

	// Check that values are roughly normally distributed (mean ~0, std ~1)
	// Calculate mean
	sum := float32(0)
	for _, v := range data {
		sum += v
	}
	mean := sum / float32(len(data))

	// Mean should be close to 0 (within 0.2)
	if math.Abs(float64(mean)) > 0.2 {
		t.Logf("Warning: Randn mean = %v, expected close to 0 (but this can happen randomly)", mean)
	}

	// Calculate standard deviation
	sumSq := float32(0)
	for _, v := range data {
		diff := v - mean
		sumSq += diff * diff
	}
	variance := sumSq / float32(len(data))
	std := float32(math.Sqrt(float64(variance)))

	// Std should be close to 1 (within 0.3)
	if math.Abs(float64(std-1)) > 0.3 {
		t.Logf("Warning: Randn std = %v, expected close to 1 (but this can happen randomly)", std)
	}
}

func TestRandnFloat64(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{50, 40}

	tensor := Randn[float64](shape, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Randn float64 shape")

	// Check that values are not all zeros
	data := tensor.Data()
	nonZero := 0
	for _, v := range data {
		if v != 0 {
			nonZero++
		}
	}

	if nonZero < len(data)/2 {
		t.Errorf("Randn should produce mostly non-zero values, got %d non-zero out of %d", nonZero, len(data))
	}
}

// Rand Tests

func TestRand(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{100, 50}

	tensor := Rand[float32](shape, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Rand shape")

	// Check that values are in [0, 1)
	data := tensor.Data()
	for i, v := range data {
		if v < 0 || v >= 1 {
			t.Errorf("Rand[%d] = %v, should be in [0, 1)", i, v)
		}
	}

	// Check that values are not all the same
	firstVal := data[0]
	allSame := true
	for _, v := range data[1:] {
		if v != firstVal {
			allSame = false
			break
		}
	}

	if allSame {
		t.Error("Rand should produce different values")
	}
}

func TestRandFloat64(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{50, 40}

	tensor := Rand[float64](shape, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Rand float64 shape")

	// Check that values are in [0, 1)
	data := tensor.Data()
	for i, v := range data {
		if v < 0 || v >= 1 {
			t.Errorf("Rand[%d] = %v, should be in [0, 1)", i, v)
		}
	}
}

// Arange Edge Cases

func TestArangeFloat(t *testing.T) {
	backend := NewMockBackend()

	tensor := Arange[float32](0, 5, backend)
	expected := []float32{0, 1, 2, 3, 4}
	assertEqualShape(t, Shape{5}, tensor.Shape(), "Arange float32 shape")

	data := tensor.Data()
	for i, exp := range expected {
		assertEqualFloat32(t, exp, data[i], "Arange float32")
	}
}

func TestArangeInt64(t *testing.T) {
	backend := NewMockBackend()

	tensor := Arange[int64](5, 10, backend)
	expected := []int64{5, 6, 7, 8, 9}
	assertEqualShape(t, Shape{5}, tensor.Shape(), "Arange int64 shape")

	data := tensor.Data()
	for i, exp := range expected {
		if data[i] != exp {
			t.Errorf("Arange int64[%d] = %v, want %v", i, data[i], exp)
		}
	}
}

// Eye Edge Cases

func TestEyeSquare(t *testing.T) {
	backend := NewMockBackend()

	tensor := Eye[float32](4, backend)
	assertEqualShape(t, Shape{4, 4}, tensor.Shape(), "Eye 4x4 shape")

	// Check diagonal
	for i := 0; i < 4; i++ {
		if tensor.At(i, i) != 1.0 {
			t.Errorf("Eye[%d, %d] = %v, want 1", i, i, tensor.At(i, i))
		}
	}

	// Check off-diagonal
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i != j {
				if tensor.At(i, j) != 0 {
					t.Errorf("Eye[%d, %d] = %v, want 0", i, j, tensor.At(i, j))
				}
			}
		}
	}
}

func TestEyeInt(t *testing.T) {
	backend := NewMockBackend()

	tensor := Eye[int32](3, backend)
	assertEqualShape(t, Shape{3, 3}, tensor.Shape(), "Eye int32 shape")

	// Check diagonal
	for i := 0; i < 3; i++ {
		if tensor.At(i, i) != 1 {
			t.Errorf("Eye[%d, %d] = %v, want 1", i, i, tensor.At(i, i))
		}
	}
}

// Zeros and Ones Edge Cases

func TestZerosInt64(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{2, 3}

	tensor := Zeros[int64](shape, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Zeros int64 shape")

	data := tensor.Data()
	for i, v := range data {
		if v != 0 {
			t.Errorf("Zeros[%d] = %v, want 0", i, v)
		}
	}
}

func TestOnesFloat64(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{3, 2}

	tensor := Ones[float64](shape, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Ones float64 shape")

	data := tensor.Data()
	for i, v := range data {
		if v != 1 {
			t.Errorf("Ones[%d] = %v, want 1", i, v)
		}
	}
}

func TestOnesUint8(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{2, 2}

	tensor := Ones[uint8](shape, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Ones uint8 shape")

	data := tensor.Data()
	for i, v := range data {
		if v != 1 {
			t.Errorf("Ones[%d] = %v, want 1", i, v)
		}
	}
}

// Full Tests

func TestFullInt64(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{3, 3}
	value := int64(42)

	tensor := Full(shape, value, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Full int64 shape")

	data := tensor.Data()
	for i, v := range data {
		if v != value {
			t.Errorf("Full[%d] = %v, want %v", i, v, value)
		}
	}
}

func TestFullBool(t *testing.T) {
	backend := NewMockBackend()
	shape := Shape{2, 2}
	value := true

	tensor := Full(shape, value, backend)

	assertEqualShape(t, shape, tensor.Shape(), "Full bool shape")

	data := tensor.Data()
	for i, v := range data {
		if v != value {
			t.Errorf("Full[%d] = %v, want %v", i, v, value)
		}
	}
}
