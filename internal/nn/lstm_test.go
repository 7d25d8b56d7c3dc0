package nn

import (
	"math"
	"testing"

	"github.com/showtell/showtell/internal/autodiff"
	"github.com/showtell/showtell/internal/backend/cpu"
	"github.com/showtell/showtell/internal/tensor"
)

// TestLSTMForwardShape tests the output shape of a full sequence pass.
func TestLSTMForwardShape(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(8, 16, 1, backend)

	input := tensor.Randn[float32](tensor.Shape{2, 5, 8}, backend)
	output := lstm.Forward(input)

	expected := tensor.Shape{2, 5, 16}
	if !output.Shape().Equal(expected) {
		t.Errorf("Forward output shape = %v, expected %v", output.Shape(), expected)
	}
}

// TestLSTMStepShape tests the shapes produced by a single timestep.
func TestLSTMStepShape(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(8, 16, 1, backend)

	input := tensor.Randn[float32](tensor.Shape{3, 8}, backend)
	state := lstm.InitState(3)

	h, newState := lstm.Step(input, state)

	expected := tensor.Shape{3, 16}
	if !h.Shape().Equal(expected) {
		t.Errorf("Step output shape = %v, expected %v", h.Shape(), expected)
	}
	if !newState.H[0].Shape().Equal(expected) {
		t.Errorf("hidden state shape = %v, expected %v", newState.H[0].Shape(), expected)
	}
	if !newState.C[0].Shape().Equal(expected) {
		t.Errorf("cell state shape = %v, expected %v", newState.C[0].Shape(), expected)
	}
}

// TestLSTMZeroInputFirstStep tests the first step on all-zero input.
//
// With zero input, zero state and zero bias, every gate pre-activation
// is zero, so the cell update is sigmoid(0)*0 + sigmoid(0)*tanh(0) = 0
// and the output is sigmoid(0)*tanh(0) = 0.
func TestLSTMZeroInputFirstStep(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(4, 6, 1, backend)

	input := Zeros(tensor.Shape{2, 4}, backend)
	h, _ := lstm.Step(input, lstm.InitState(2))

	for i, v := range h.Data() {
		if v != 0.0 {
			t.Errorf("output[%d] = %v, expected 0 for zero input and state", i, v)
		}
	}
}

// TestLSTMOutputRange tests that outputs stay within (-1, 1).
//
// h = sigmoid(o) * tanh(c), and both factors are bounded by 1 in
// absolute value.
func TestLSTMOutputRange(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(8, 16, 1, backend)

	input := tensor.Randn[float32](tensor.Shape{2, 10, 8}, backend)
	output := lstm.Forward(input)

	for i, v := range output.Data() {
		if v <= -1.0 || v >= 1.0 {
			t.Errorf("output[%d] = %v, expected value in (-1, 1)", i, v)
		}
	}
}

// TestLSTMForwardMatchesStep tests that Forward is equivalent to
// stepping through the sequence manually.
func TestLSTMForwardMatchesStep(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(4, 8, 1, backend)

	input := tensor.Randn[float32](tensor.Shape{2, 3, 4}, backend)
	output := lstm.Forward(input)

	steps := input.Chunk(3, 1)
	state := lstm.InitState(2)
	var h *tensor.Tensor[float32, *cpu.CPUBackend]
	stepped := make([]*tensor.Tensor[float32, *cpu.CPUBackend], 3)
	for i := 0; i < 3; i++ {
		h, state = lstm.Step(steps[i].Squeeze(1), state)
		stepped[i] = h.Unsqueeze(1)
	}
	manual := tensor.Cat(stepped, 1)

	outData := output.Data()
	manualData := manual.Data()
	for i := range outData {
		if math.Abs(float64(outData[i]-manualData[i])) > 1e-6 {
			t.Fatalf("Forward and manual stepping diverge at %d: %v vs %v",
				i, outData[i], manualData[i])
		}
	}
}

// TestLSTMParameters tests the trainable parameter list.
func TestLSTMParameters(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(8, 16, 1, backend)

	params := lstm.Parameters()
	if len(params) != 3 {
		t.Fatalf("Parameters() returned %d parameters, expected 3", len(params))
	}

	expectedShapes := map[string]tensor.Shape{
		"weight_ih_l0": {64, 8},
		"weight_hh_l0": {64, 16},
		"bias_l0":      {64},
	}
	for _, p := range params {
		expected, ok := expectedShapes[p.Name()]
		if !ok {
			t.Errorf("unexpected parameter %q", p.Name())
			continue
		}
		if !p.Tensor().Shape().Equal(expected) {
			t.Errorf("%s shape = %v, expected %v", p.Name(), p.Tensor().Shape(), expected)
		}
	}
}

// TestLSTMStateDictRoundTrip tests saving and restoring parameters.
func TestLSTMStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := NewLSTM(4, 8, 1, backend)
	dst := NewLSTM(4, 8, 1, backend)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	input := tensor.Randn[float32](tensor.Shape{2, 3, 4}, backend)
	srcOut := src.Forward(input).Data()
	dstOut := dst.Forward(input).Data()

	for i := range srcOut {
		if srcOut[i] != dstOut[i] {
			t.Fatalf("outputs diverge at %d after state dict round trip: %v vs %v",
				i, srcOut[i], dstOut[i])
		}
	}
}

// TestLSTMLoadStateDictShapeMismatch tests shape validation on load.
func TestLSTMLoadStateDictShapeMismatch(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(4, 8, 1, backend)
	other := NewLSTM(4, 16, 1, backend)

	if err := lstm.LoadStateDict(other.StateDict()); err == nil {
		t.Error("expected shape mismatch error, got nil")
	}
}

// TestLSTMGradientFlow tests that gradients reach all LSTM parameters
// through a full sequence pass.
func TestLSTMGradientFlow(t *testing.T) {
	backend := autodiff.New(cpu.New())
	lstm := NewLSTM(4, 6, 1, backend)

	input := tensor.Randn[float32](tensor.Shape{2, 3, 4}, backend)

	backend.Tape().StartRecording()
	output := lstm.Forward(input)

	outputGrad := tensor.Ones[float32](output.Shape(), backend)
	grads := backend.Tape().Backward(outputGrad.Raw(), backend)

	for _, p := range lstm.Parameters() {
		grad, exists := grads[p.Tensor().Raw()]
		if !exists {
			t.Errorf("no gradient computed for %s", p.Name())
			continue
		}
		nonZero := false
		for _, v := range grad.AsFloat32() {
			if v != 0 {
				nonZero = true
				break
			}
		}
		if !nonZero {
			t.Errorf("gradient for %s is all zeros", p.Name())
		}
	}
}

// TestLSTMStacked tests a two-layer stack: shapes, per-layer state and
// parameter count.
func TestLSTMStacked(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(4, 8, 2, backend)

	if lstm.NumLayers() != 2 {
		t.Fatalf("NumLayers() = %d, expected 2", lstm.NumLayers())
	}
	if len(lstm.Parameters()) != 6 {
		t.Fatalf("Parameters() returned %d parameters, expected 6", len(lstm.Parameters()))
	}

	input := tensor.Randn[float32](tensor.Shape{3, 5, 4}, backend)
	output := lstm.Forward(input)
	if !output.Shape().Equal(tensor.Shape{3, 5, 8}) {
		t.Errorf("Forward output shape = %v, expected [3 5 8]", output.Shape())
	}

	state := lstm.InitState(3)
	if len(state.H) != 2 || len(state.C) != 2 {
		t.Fatalf("InitState layers = %d/%d, expected 2/2", len(state.H), len(state.C))
	}

	h, newState := lstm.Step(tensor.Randn[float32](tensor.Shape{3, 4}, backend), state)
	if !h.Shape().Equal(tensor.Shape{3, 8}) {
		t.Errorf("Step output shape = %v, expected [3 8]", h.Shape())
	}
	for k := 0; k < 2; k++ {
		if !newState.H[k].Shape().Equal(tensor.Shape{3, 8}) {
			t.Errorf("layer %d hidden state shape = %v, expected [3 8]", k, newState.H[k].Shape())
		}
		if !newState.C[k].Shape().Equal(tensor.Shape{3, 8}) {
			t.Errorf("layer %d cell state shape = %v, expected [3 8]", k, newState.C[k].Shape())
		}
	}
}

// TestLSTMStackedStateDictRoundTrip tests per-layer key round trips.
func TestLSTMStackedStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := NewLSTM(4, 8, 3, backend)
	dst := NewLSTM(4, 8, 3, backend)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	input := tensor.Randn[float32](tensor.Shape{2, 3, 4}, backend)
	srcOut := src.Forward(input).Data()
	dstOut := dst.Forward(input).Data()

	for i := range srcOut {
		if srcOut[i] != dstOut[i] {
			t.Fatalf("outputs diverge at %d after state dict round trip: %v vs %v",
				i, srcOut[i], dstOut[i])
		}
	}
}

// TestLSTMInvalidNumLayersPanics tests depth validation.
func TestLSTMInvalidNumLayersPanics(t *testing.T) {
	backend := cpu.New()
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for numLayers 0")
		}
	}()
	NewLSTM(4, 8, 0, backend)
}

// TestLSTMStepMismatchedStatePanics tests that a state built for a
// different depth is rejected.
func TestLSTMStepMismatchedStatePanics(t *testing.T) {
	backend := cpu.New()
	lstm := NewLSTM(4, 8, 2, backend)
	shallow := NewLSTM(4, 8, 1, backend)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for single-layer state on two-layer stack")
		}
	}()
	lstm.Step(tensor.Randn[float32](tensor.Shape{1, 4}, backend), shallow.InitState(1))
}
