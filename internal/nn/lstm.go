package nn

import (
	"fmt"

	"github.com/showtell/showtell/internal/tensor"
)

// LSTMState holds the recurrent state of an LSTM stack.
//
// H and C hold one [batch_size, hidden_size] tensor per layer, bottom
// layer first. A fresh zero state is created with LSTM.InitState and
// threaded through successive Step calls.
type LSTMState[B tensor.Backend] struct {
	H []*tensor.Tensor[float32, B] // hidden state per layer
	C []*tensor.Tensor[float32, B] // cell state per layer
}

// lstmCell holds the gate parameters of one layer in the stack.
type lstmCell[B tensor.Backend] struct {
	weightIH *Parameter[B] // [4*hidden_size, input_size]
	weightHH *Parameter[B] // [4*hidden_size, hidden_size]
	bias     *Parameter[B] // [4*hidden_size]
}

// LSTM implements a stacked long short-term memory recurrent layer.
//
// Each layer computes its four gates (input, forget, cell, output) in
// one fused affine transformation and splits afterwards:
//
//	gates = x @ Wih.T + h @ Whh.T + b          [batch, 4*hidden]
//	i, f, g, o = chunk(gates, 4)               each [batch, hidden]
//	c' = sigmoid(f) * c + sigmoid(i) * tanh(g)
//	h' = sigmoid(o) * tanh(c')
//
// With more than one layer, each layer's hidden output feeds the next
// layer's input within the same timestep; the top layer's output is the
// stack's output.
//
// Two entry points are provided:
//   - Forward processes a whole batch-first sequence [batch, seq, input]
//     starting from a zero state, returning [batch, seq, hidden]. Used
//     during training where the full target sequence is known.
//   - Step advances the recurrence by a single timestep. Used during
//     autoregressive decoding where each input depends on the previous
//     output.
//
// Example:
//
//	lstm := nn.NewLSTM(256, 512, 1, backend)
//	hidden := lstm.Forward(embedded)  // [batch, seq, 512]
type LSTM[B tensor.Backend] struct {
	inputSize  int
	hiddenSize int
	cells      []lstmCell[B]
	backend    B
}

// NewLSTM creates a new LSTM stack with numLayers layers.
//
// Layer zero consumes inputSize features; every further layer consumes
// the hidden output of the layer below. Gate weights are initialized
// using Xavier/Glorot uniform distribution, biases to zeros.
//
// Panics if numLayers < 1.
func NewLSTM[B tensor.Backend](inputSize, hiddenSize, numLayers int, backend B) *LSTM[B] {
	if numLayers < 1 {
		panic(fmt.Sprintf("LSTM: numLayers must be >= 1, got %d", numLayers))
	}

	gateSize := 4 * hiddenSize
	cells := make([]lstmCell[B], numLayers)
	for k := range cells {
		in := inputSize
		if k > 0 {
			in = hiddenSize
		}
		cells[k] = lstmCell[B]{
			weightIH: NewParameter(fmt.Sprintf("weight_ih_l%d", k),
				Xavier(in, hiddenSize, tensor.Shape{gateSize, in}, backend)),
			weightHH: NewParameter(fmt.Sprintf("weight_hh_l%d", k),
				Xavier(hiddenSize, hiddenSize, tensor.Shape{gateSize, hiddenSize}, backend)),
			bias: NewParameter(fmt.Sprintf("bias_l%d", k),
				Zeros(tensor.Shape{gateSize}, backend)),
		}
	}

	return &LSTM[B]{
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
		cells:      cells,
		backend:    backend,
	}
}

// InitState returns a zero hidden and cell state for the given batch size.
func (l *LSTM[B]) InitState(batchSize int) *LSTMState[B] {
	state := &LSTMState[B]{
		H: make([]*tensor.Tensor[float32, B], len(l.cells)),
		C: make([]*tensor.Tensor[float32, B], len(l.cells)),
	}
	for k := range l.cells {
		state.H[k] = Zeros[B](tensor.Shape{batchSize, l.hiddenSize}, l.backend)
		state.C[k] = Zeros[B](tensor.Shape{batchSize, l.hiddenSize}, l.backend)
	}
	return state
}

// Step advances the recurrence by one timestep through all layers.
//
// Input shape: [batch_size, input_size]
// Returns the top layer's hidden output [batch_size, hidden_size] and
// the updated per-layer recurrent state.
func (l *LSTM[B]) Step(
	input *tensor.Tensor[float32, B],
	state *LSTMState[B],
) (*tensor.Tensor[float32, B], *LSTMState[B]) {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("LSTM.Step: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inputSize {
		panic(fmt.Sprintf("LSTM.Step: expected input with %d features, got %d", l.inputSize, inputShape[1]))
	}
	if len(state.H) != len(l.cells) || len(state.C) != len(l.cells) {
		panic(fmt.Sprintf("LSTM.Step: state has %d/%d layers, want %d", len(state.H), len(state.C), len(l.cells)))
	}

	next := &LSTMState[B]{
		H: make([]*tensor.Tensor[float32, B], len(l.cells)),
		C: make([]*tensor.Tensor[float32, B], len(l.cells)),
	}

	x := input
	for k := range l.cells {
		cell := &l.cells[k]

		// Fused gate pre-activations: [batch, 4*hidden]
		gates := x.MatMul(cell.weightIH.Tensor().Transpose())
		gates = gates.Add(state.H[k].MatMul(cell.weightHH.Tensor().Transpose()))
		gates = gates.Add(cell.bias.Tensor().Reshape(1, 4*l.hiddenSize))

		// Split into input, forget, cell and output gates.
		parts := gates.Chunk(4, 1)
		i := sigmoidActivation(parts[0])
		f := sigmoidActivation(parts[1])
		g := tanhActivation(parts[2])
		o := sigmoidActivation(parts[3])

		c := f.Mul(state.C[k]).Add(i.Mul(g))
		h := o.Mul(tanhActivation(c))

		next.H[k] = h
		next.C[k] = c
		x = h // feeds the layer above
	}

	return x, next
}

// Forward processes a full batch-first sequence from a zero initial state.
//
// Input shape: [batch_size, seq_len, input_size]
// Output shape: [batch_size, seq_len, hidden_size]
func (l *LSTM[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 3 {
		panic(fmt.Sprintf("LSTM.Forward: expected 3D input [batch, seq, features], got shape %v", inputShape))
	}
	if inputShape[2] != l.inputSize {
		panic(fmt.Sprintf("LSTM.Forward: expected input with %d features, got %d", l.inputSize, inputShape[2]))
	}

	batchSize := inputShape[0]
	seqLen := inputShape[1]

	// Split the sequence into per-timestep slices [batch, 1, input].
	steps := input.Chunk(seqLen, 1)

	state := l.InitState(batchSize)
	outputs := make([]*tensor.Tensor[float32, B], seqLen)
	for t := 0; t < seqLen; t++ {
		x := steps[t].Squeeze(1) // [batch, input]
		var h *tensor.Tensor[float32, B]
		h, state = l.Step(x, state)
		outputs[t] = h.Unsqueeze(1) // [batch, 1, hidden]
	}

	return tensor.Cat(outputs, 1)
}

// Parameters returns the trainable parameters of all layers.
func (l *LSTM[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 3*len(l.cells))
	for k := range l.cells {
		params = append(params, l.cells[k].weightIH, l.cells[k].weightHH, l.cells[k].bias)
	}
	return params
}

// InputSize returns the number of input features per timestep.
func (l *LSTM[B]) InputSize() int {
	return l.inputSize
}

// HiddenSize returns the number of hidden state features.
func (l *LSTM[B]) HiddenSize() int {
	return l.hiddenSize
}

// NumLayers returns the stack depth.
func (l *LSTM[B]) NumLayers() int {
	return len(l.cells)
}

// StateDict returns a map of parameter names to raw tensors.
func (l *LSTM[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, 3*len(l.cells))
	for k := range l.cells {
		stateDict[fmt.Sprintf("weight_ih_l%d", k)] = l.cells[k].weightIH.Tensor().Raw()
		stateDict[fmt.Sprintf("weight_hh_l%d", k)] = l.cells[k].weightHH.Tensor().Raw()
		stateDict[fmt.Sprintf("bias_l%d", k)] = l.cells[k].bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (l *LSTM[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	gateSize := 4 * l.hiddenSize

	for k := range l.cells {
		in := l.inputSize
		if k > 0 {
			in = l.hiddenSize
		}
		expected := map[string]tensor.Shape{
			fmt.Sprintf("weight_ih_l%d", k): {gateSize, in},
			fmt.Sprintf("weight_hh_l%d", k): {gateSize, l.hiddenSize},
			fmt.Sprintf("bias_l%d", k):      {gateSize},
		}
		params := map[string]*Parameter[B]{
			fmt.Sprintf("weight_ih_l%d", k): l.cells[k].weightIH,
			fmt.Sprintf("weight_hh_l%d", k): l.cells[k].weightHH,
			fmt.Sprintf("bias_l%d", k):      l.cells[k].bias,
		}

		for name, shape := range expected {
			raw, ok := stateDict[name]
			if !ok {
				return fmt.Errorf("missing %s in state dict", name)
			}
			if !raw.Shape().Equal(shape) {
				return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, shape, raw.Shape())
			}
			if raw.DType() != tensor.Float32 {
				return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
			}
			copy(params[name].Tensor().Data(), raw.AsFloat32())
		}
	}

	return nil
}

// sigmoidActivation applies the sigmoid function through the backend.
func sigmoidActivation[B tensor.Backend](t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := t.Backend()
	if sb, ok := any(backend).(SigmoidBackend); ok {
		return tensor.New[float32, B](sb.Sigmoid(t.Raw()), backend)
	}
	panic("LSTM: backend must implement Sigmoid operation")
}

// tanhActivation applies the tanh function through the backend.
func tanhActivation[B tensor.Backend](t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := t.Backend()
	if tb, ok := any(backend).(TanhBackend); ok {
		return tensor.New[float32, B](tb.Tanh(t.Raw()), backend)
	}
	panic("LSTM: backend must implement Tanh operation")
}
